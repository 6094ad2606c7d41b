//go:build !darwin

package livekit

import "fmt"

// IsAvailable reports whether the native bridge library can be loaded. The
// LiveKit bridge is only built for macOS.
func IsAvailable() bool {
	return false
}

func loadNative(string) (Native, error) {
	return nil, fmt.Errorf("%w: unsupported platform", ErrNotAvailable)
}
