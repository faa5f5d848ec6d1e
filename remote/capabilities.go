package remote

// Capabilities records which backends were compiled into this binary. It is
// computed once with DiscoverCapabilities and handed to the Selector.
type Capabilities struct {
	SecureShell bool
}

// DiscoverCapabilities reports the backends available in this build. The
// SecureShell backend is removed by building with the nosftp tag.
func DiscoverCapabilities() Capabilities {
	return Capabilities{SecureShell: secureShellBuilt}
}
