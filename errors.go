package livekit

import (
	"errors"
	"fmt"
)

var (
	// ErrBridgeContract reports a broken invariant between the bridge and the
	// native layer, such as a pending completion abandoned without a result.
	// It is never an ordinary operation failure.
	ErrBridgeContract = errors.New("livekit: native bridge contract violated")

	// ErrClosed is returned by operations on a closed room or client.
	ErrClosed = errors.New("livekit: closed")

	// ErrNotAvailable is returned when the native bridge library cannot be
	// loaded on this platform.
	ErrNotAvailable = errors.New("livekit: native bridge not available")
)

// Operation names used as context on errors.
const (
	opConnect          = "connect to room"
	opPublishVideo     = "publish video track"
	opDisplaySources   = "enumerate displays"
	opScreenShareTrack = "create screen share track"
)

// OperationError is a failure reported by the native layer, annotated with the
// operation that failed.
type OperationError struct {
	Op      string // Operation that failed, e.g. "connect to room"
	Message string // Failure text as reported by the native layer
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("livekit: %s: %s", e.Op, e.Message)
}

// contractError annotates ErrBridgeContract with the operation it broke.
func contractError(op string) error {
	return fmt.Errorf("%s: %w", op, ErrBridgeContract)
}
