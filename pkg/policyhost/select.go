package policyhost

import "fmt"

// Backend names the policy execution backend, selectable via configuration
// per §4.13: a deployment picks one and wires it in at startup, it is not
// decided per-request.
type Backend string

const (
	BackendWASM   Backend = "wasm"
	BackendNative Backend = "native"
)

// ParseBackend maps a configuration string to a Backend, defaulting to
// BackendNative when unset — a fresh deployment with no WASM modules
// published yet still gets a working, fail-closed policy host.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case "", BackendNative:
		return BackendNative, nil
	case BackendWASM:
		return BackendWASM, nil
	default:
		return "", fmt.Errorf("policyhost: unknown backend %q", s)
	}
}
