package livekit

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ImageBuffer is one decoded video frame owned by the caller. Close it when
// done; an unclosed buffer is released when it is garbage collected.
type ImageBuffer struct {
	ownedHandle
}

func newImageBuffer(native Native, h Handle) *ImageBuffer {
	b := &ImageBuffer{}
	b.ownedHandle = wrapHandle(b, native, h, GetRule)
	return b
}

// Size returns the frame dimensions in pixels, or zeros once closed.
func (b *ImageBuffer) Size() (width, height int) {
	h := b.Handle()
	if h == 0 {
		return 0, 0
	}
	width, height = b.native().ImageBufferSize(h)
	runtime.KeepAlive(b)
	return width, height
}

// Retain returns a new wrapper holding its own reference to the same frame.
func (b *ImageBuffer) Retain() *ImageBuffer {
	h := b.Handle()
	if h == 0 {
		return nil
	}
	return newImageBuffer(b.native(), h)
}

// Close releases the frame. Calling Close more than once is a no-op.
func (b *ImageBuffer) Close() error {
	b.close()
	return nil
}

// FrameCallback receives every frame rendered for a remote track. Calls for a
// single renderer never overlap, so the callback may keep mutable state
// without its own locking.
type FrameCallback func(frame *ImageBuffer)

// rendererContext is the boxed callback the native renderer refers to. It is
// looked up on every frame and taken out of the context table only when the
// native side discards the renderer.
type rendererContext struct {
	client *Client
	mu     sync.Mutex
	fn     FrameCallback
	frames atomic.Uint64
}

// AddRenderer attaches fn to the track. fn is called for every frame until the
// native side discards the renderer, which normally happens when the track
// itself is released natively. The callback stays registered until then.
func (t *RemoteVideoTrack) AddRenderer(fn FrameCallback) error {
	h := t.Handle()
	if h == 0 {
		return ErrClosed
	}
	n := t.native()
	rc := &rendererContext{client: t.client, fn: fn}
	id := callbackContexts.put(rc)
	renderer := n.VideoRendererCreate(id, onRenderFrame, onRendererDrop)
	if renderer == 0 {
		callbackContexts.take(id)
		return &OperationError{Op: "create renderer", Message: "native layer returned no renderer"}
	}
	n.VideoTrackAddRenderer(h, renderer)
	runtime.KeepAlive(t)
	// The track holds its own reference from here on.
	n.Release(renderer)
	return nil
}

// onRenderFrame is the per-frame renderer trampoline. frame is borrowed; the
// callback receives its own reference.
func onRenderFrame(ctx uintptr, frame Handle) {
	v, ok := callbackContexts.lookup(ctx)
	if !ok {
		reportContractViolation(Logger(), "frame delivered to a discarded renderer", ctx)
		return
	}
	rc, ok := v.(*rendererContext)
	if !ok {
		reportContractViolation(Logger(), "frame delivered with a foreign context", ctx)
		return
	}
	buf := newImageBuffer(rc.client.native, frame)
	rc.frames.Add(1)
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.fn(buf)
}

// onRendererDrop is the renderer teardown trampoline and the only place a
// renderer's callback is freed.
func onRendererDrop(ctx uintptr) {
	v, ok := callbackContexts.lookup(ctx)
	if !ok {
		reportContractViolation(Logger(), "renderer discarded twice", ctx)
		return
	}
	rc, ok := v.(*rendererContext)
	if !ok {
		reportContractViolation(Logger(), "renderer teardown with a foreign context", ctx)
		return
	}
	callbackContexts.take(ctx)
	rc.client.log().Debug("renderer discarded",
		zap.Uintptr("context", ctx), zap.Uint64("frames", rc.frames.Load()))
}
