//go:build nosftp

package remote

const secureShellBuilt = false
