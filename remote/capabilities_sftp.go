//go:build !nosftp

package remote

const secureShellBuilt = true
