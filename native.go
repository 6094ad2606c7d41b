package livekit

// Handle is an opaque pointer-sized reference to an object owned by the native
// SDK. Its lifetime is governed by native retain/release calls, never by the Go
// garbage collector. Zero means "no object".
type Handle uintptr

// Trampoline signatures. The native layer receives these together with an
// opaque context value and calls back with that same value. Strings and arrays
// handed to a trampoline are borrowed: they are valid only for the duration of
// the call.
type (
	// CompletionFunc fires once when a connect or publish operation finishes.
	// A zero err means success; otherwise err is a borrowed string handle
	// holding the failure text.
	CompletionFunc func(ctx uintptr, err Handle)

	// DisplaysFunc fires once with either a borrowed array of display handles
	// or, when sources is zero, a borrowed error string.
	DisplaysFunc func(ctx uintptr, sources Handle, err Handle)

	// SubscribeFunc fires each time a remote video track is subscribed.
	SubscribeFunc func(ctx uintptr, publisherID Handle, trackID Handle, track Handle)

	// UnsubscribeFunc fires each time a remote video track goes away.
	UnsubscribeFunc func(ctx uintptr, publisherID Handle, trackID Handle)

	// FrameFunc fires for every frame delivered to a renderer.
	FrameFunc func(ctx uintptr, frame Handle)

	// DropFunc fires exactly once when the native side discards a renderer.
	DropFunc func(ctx uintptr)
)

// Native is the fixed entry-point table of the native room SDK.
//
// Functions returning a Handle follow the ownership rule noted on each method.
// Implementations must be safe for use from multiple goroutines to the extent
// the native SDK itself is; the bridge does not serialize calls through a
// handle.
type Native interface {
	// Retain adds one reference to h.
	Retain(h Handle)
	// Release drops one reference from h.
	Release(h Handle)

	// StringCreate returns a new immutable native string (create rule).
	StringCreate(s string) Handle
	// StringValue copies the contents of a native string.
	StringValue(h Handle) string

	// ArrayCount returns the number of elements in a native array.
	ArrayCount(array Handle) int
	// ArrayAt returns element i of a native array (get rule).
	ArrayAt(array Handle, i int) Handle

	// RoomDelegateCreate returns a new delegate object (create rule) that
	// forwards subscription events to the given trampolines.
	RoomDelegateCreate(ctx uintptr, onSubscribe SubscribeFunc, onUnsubscribe UnsubscribeFunc) Handle
	// RoomCreate returns a new room bound to delegate (create rule).
	RoomCreate(delegate Handle) Handle
	// RoomConnect starts connecting room; done fires once.
	RoomConnect(room Handle, url Handle, token Handle, done CompletionFunc, ctx uintptr)
	// RoomDisconnect disconnects room.
	RoomDisconnect(room Handle)
	// RoomPublishVideoTrack starts publishing track; done fires once.
	RoomPublishVideoTrack(room Handle, track Handle, done CompletionFunc, ctx uintptr)
	// RoomVideoTracksForRemoteParticipant returns an array of remote video
	// tracks (get rule), or zero when the participant has none.
	RoomVideoTracksForRemoteParticipant(room Handle, participantID Handle) Handle

	// RemoteVideoTrackSID returns the track's SID string (get rule).
	RemoteVideoTrackSID(track Handle) Handle
	// VideoRendererCreate returns a new renderer (create rule).
	VideoRendererCreate(ctx uintptr, onFrame FrameFunc, onDrop DropFunc) Handle
	// VideoTrackAddRenderer attaches renderer to track. The track keeps its
	// own reference to renderer.
	VideoTrackAddRenderer(track Handle, renderer Handle)

	// DisplaySources enumerates capturable displays; done fires once.
	DisplaySources(ctx uintptr, done DisplaysFunc)
	// CreateScreenShareTrackForDisplay returns a local screen share track
	// (create rule).
	CreateScreenShareTrackForDisplay(display Handle) Handle

	// ImageBufferSize returns the pixel dimensions of an image buffer.
	ImageBufferSize(buffer Handle) (width, height int)
}
