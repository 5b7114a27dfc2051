//go:build !linux && !darwin && !windows

package watching

// newNativeEmitter falls back to the polling backend on platforms with no
// native watching support wired in, degrading gracefully rather than
// failing to construct a watch at all.
func newNativeEmitter(watch Watch, opts Options) (Emitter, error) {
	return newPollingEmitter(watch, opts)
}
