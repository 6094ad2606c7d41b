package livekit

import (
	"runtime"
	"sync/atomic"
)

// OwnershipRule says whether a handle returned by the native layer already
// carries a reference for the caller.
type OwnershipRule uint8

const (
	// CreateRule: the caller already owns one reference.
	CreateRule OwnershipRule = iota
	// GetRule: the handle is borrowed and must be retained to outlive the call.
	GetRule
)

func (r OwnershipRule) String() string {
	switch r {
	case CreateRule:
		return "create"
	case GetRule:
		return "get"
	default:
		return "unknown"
	}
}

// nativeRef owns exactly one native reference. It is kept apart from the
// public wrapper types so a GC cleanup attached to a wrapper can release the
// reference without keeping the wrapper reachable.
type nativeRef struct {
	native   Native
	handle   Handle
	released atomic.Bool
}

// adopt takes ownership of h. Under GetRule one reference is added
// immediately; under CreateRule the caller's reference is adopted as is.
func adopt(native Native, h Handle, rule OwnershipRule) *nativeRef {
	if rule == GetRule {
		native.Retain(h)
	}
	return &nativeRef{native: native, handle: h}
}

// release drops the owned reference. Only the first call has any effect.
func (r *nativeRef) release() bool {
	if !r.released.CompareAndSwap(false, true) {
		return false
	}
	r.native.Release(r.handle)
	return true
}

// ownedHandle is embedded by every public type that holds a native object.
// Copying the wrapper pointer shares ownership; it never duplicates it.
type ownedHandle struct {
	ref *nativeRef
}

// wrapHandle adopts h on behalf of owner. If owner becomes unreachable
// without an explicit close, the reference is released by a cleanup.
func wrapHandle[T any](owner *T, native Native, h Handle, rule OwnershipRule) ownedHandle {
	ref := adopt(native, h, rule)
	runtime.AddCleanup(owner, func(r *nativeRef) { r.release() }, ref)
	return ownedHandle{ref: ref}
}

// Handle returns the underlying native handle, or zero once released.
func (o ownedHandle) Handle() Handle {
	if o.ref == nil || o.ref.released.Load() {
		return 0
	}
	return o.ref.handle
}

// Closed reports whether the native reference has been released.
func (o ownedHandle) Closed() bool {
	return o.ref == nil || o.ref.released.Load()
}

func (o ownedHandle) close() bool {
	if o.ref == nil {
		return false
	}
	return o.ref.release()
}

func (o ownedHandle) native() Native {
	return o.ref.native
}
