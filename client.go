package livekit

import (
	"context"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"
)

// Client is the entry point to the native room SDK. It owns no native objects
// itself; rooms, tracks and displays created through it each own their own
// handles.
type Client struct {
	native Native
	logger *zap.Logger
	closed atomic.Bool
}

type options struct {
	logger      *zap.Logger
	libraryPath string
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger used for this client's callbacks. Without it the
// package logger (see SetLogger) is used.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLibraryPath loads the native bridge library from an explicit path
// instead of searching the default locations. Only used by Open, and only on
// the first successful load in the process.
func WithLibraryPath(path string) Option {
	return func(o *options) { o.libraryPath = path }
}

// New returns a client that drives the given native entry-point table.
func New(native Native, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{native: native, logger: o.logger}
}

// Open loads the platform native bridge library and returns a client bound to
// it. It returns an error wrapping ErrNotAvailable if the library cannot be
// loaded.
func Open(opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	native, err := loadNative(o.libraryPath)
	if err != nil {
		return nil, err
	}
	c := New(native, opts...)
	c.log().Info("native bridge loaded")
	return c, nil
}

func (c *Client) log() *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	return Logger()
}

// Stats describes callback bookkeeping, mostly useful in tests and for
// leak diagnostics.
type Stats struct {
	PendingCompletions int    // One-shot operations of this client awaiting their callback
	ContractViolations uint64 // Process-wide count of rejected trampoline invocations
}

// Stats returns a snapshot of the client's callback bookkeeping.
func (c *Client) Stats() Stats {
	return Stats{
		PendingCompletions: callbackContexts.countMatching(c.ownsCompletion),
		ContractViolations: contractViolations.Load(),
	}
}

func (c *Client) ownsCompletion(v any) bool {
	p, ok := v.(pendingCompletion)
	return ok && p.owner() == c
}

// NewRoom creates a room together with its delegate.
func (c *Client) NewRoom() (*Room, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return newRoom(c)
}

// DisplaySources enumerates the displays available for screen sharing. It
// blocks until the native layer answers or ctx is done; cancelling ctx does
// not stop the native enumeration.
func (c *Client) DisplaySources(ctx context.Context) ([]*Display, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	p, id := newCompletion[[]*Display](c, opDisplaySources)
	c.native.DisplaySources(id, onDisplaySources)
	return p.wait(ctx)
}

// NewScreenShareTrack creates a local video track capturing display.
func (c *Client) NewScreenShareTrack(display *Display) (*LocalVideoTrack, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	h := display.Handle()
	if h == 0 {
		return nil, ErrClosed
	}
	track := c.native.CreateScreenShareTrackForDisplay(h)
	runtime.KeepAlive(display)
	if track == 0 {
		return nil, &OperationError{Op: opScreenShareTrack, Message: "native layer returned no track"}
	}
	return newLocalVideoTrack(c, track), nil
}

// Close stops the client from starting new operations. Callers still waiting
// on a native callback are released with ErrBridgeContract, and a callback that
// arrives later is rejected. Rooms and tracks keep working until they are
// closed themselves.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	abandoned := callbackContexts.takeMatching(c.ownsCompletion)
	for _, v := range abandoned {
		v.(pendingCompletion).abandon()
	}
	if len(abandoned) > 0 {
		c.log().Warn("abandoned pending native operations", zap.Int("count", len(abandoned)))
	}
	return nil
}
