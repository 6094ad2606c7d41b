package livekit

import (
	"fmt"
	"sync"
	"testing"
)

// fakeObject is a reference-counted object owned by fakeNative.
type fakeObject struct {
	kind      string
	refs      int
	str       string   // String contents, or the SID of a remote track
	elems     []Handle // Array elements, retained by the array
	children  []Handle // Released when the object is deallocated
	onDealloc func()
}

type fakeDelegate struct {
	ctx           uintptr
	onSubscribe   SubscribeFunc
	onUnsubscribe UnsubscribeFunc
}

type fakeRenderer struct {
	ctx     uintptr
	onFrame FrameFunc
	onDrop  DropFunc
}

// fakeNative is an in-memory Native that models CoreFoundation reference
// counting. It records misuse (retaining or releasing a dead object) instead
// of crashing.
type fakeNative struct {
	mu         sync.Mutex
	next       Handle
	objects    map[Handle]*fakeObject
	retains    int
	releases   int
	creates    int
	violations []string
	pool       []Handle

	delegates    map[Handle]fakeDelegate
	renderers    map[Handle]fakeRenderer
	disconnected []Handle
	published    []Handle
	tracks       map[string][]Handle

	// onRoomCreate runs inside RoomCreate, after the delegate is retained and
	// before the room exists.
	onRoomCreate func(delegate Handle)

	// Hooks for one-shot operations. Nil hooks complete successfully and
	// synchronously.
	onConnect  func(url, token string, done CompletionFunc, ctx uintptr)
	onPublish  func(track Handle, done CompletionFunc, ctx uintptr)
	onDisplays func(done DisplaysFunc, ctx uintptr)
}

func newFakeNative() *fakeNative {
	return &fakeNative{
		next:      0x1000,
		objects:   make(map[Handle]*fakeObject),
		delegates: make(map[Handle]fakeDelegate),
		renderers: make(map[Handle]fakeRenderer),
		tracks:    make(map[string][]Handle),
	}
}

// alloc creates an object with one reference owned by the caller.
func (f *fakeNative) alloc(obj *fakeObject) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next += 0x10
	obj.refs = 1
	f.objects[f.next] = obj
	f.creates++
	return f.next
}

func (f *fakeNative) violate(format string, args ...any) {
	f.violations = append(f.violations, fmt.Sprintf(format, args...))
}

// requireLive records a violation if h is used after its last release.
func (f *fakeNative) requireLive(h Handle, op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj, ok := f.objects[h]; !ok || obj.refs == 0 {
		f.violate("%s on dead object %#x", op, h)
	}
}

func (f *fakeNative) Retain(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retains++
	obj, ok := f.objects[h]
	if !ok || obj.refs == 0 {
		f.violate("retain of dead object %#x", h)
		return
	}
	obj.refs++
}

func (f *fakeNative) Release(h Handle) {
	f.mu.Lock()
	f.releases++
	obj, ok := f.objects[h]
	if !ok || obj.refs == 0 {
		f.violate("release of dead object %#x", h)
		f.mu.Unlock()
		return
	}
	obj.refs--
	if obj.refs > 0 {
		f.mu.Unlock()
		return
	}
	release := append(append([]Handle(nil), obj.children...), obj.elems...)
	onDealloc := obj.onDealloc
	f.mu.Unlock()

	for _, child := range release {
		f.Release(child)
	}
	if onDealloc != nil {
		onDealloc()
	}
}

func (f *fakeNative) StringCreate(s string) Handle {
	return f.alloc(&fakeObject{kind: "string", str: s})
}

func (f *fakeNative) StringValue(h Handle) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[h]
	if !ok || obj.refs == 0 || obj.kind != "string" {
		f.violate("string value of %#x", h)
		return ""
	}
	return obj.str
}

// newArray creates an array that retains each element.
func (f *fakeNative) newArray(elems ...Handle) Handle {
	for _, e := range elems {
		f.Retain(e)
	}
	return f.alloc(&fakeObject{kind: "array", elems: elems})
}

func (f *fakeNative) ArrayCount(array Handle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects[array].elems)
}

func (f *fakeNative) ArrayAt(array Handle, i int) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[array].elems[i]
}

func (f *fakeNative) RoomDelegateCreate(ctx uintptr, onSubscribe SubscribeFunc, onUnsubscribe UnsubscribeFunc) Handle {
	h := f.alloc(&fakeObject{kind: "delegate"})
	f.mu.Lock()
	f.delegates[h] = fakeDelegate{ctx: ctx, onSubscribe: onSubscribe, onUnsubscribe: onUnsubscribe}
	f.mu.Unlock()
	return h
}

func (f *fakeNative) RoomCreate(delegate Handle) Handle {
	f.Retain(delegate)
	if f.onRoomCreate != nil {
		f.onRoomCreate(delegate)
	}
	return f.alloc(&fakeObject{kind: "room", children: []Handle{delegate}})
}

func (f *fakeNative) RoomConnect(room, url, token Handle, done CompletionFunc, ctx uintptr) {
	f.requireLive(room, "connect")
	u, tok := f.StringValue(url), f.StringValue(token)
	if f.onConnect != nil {
		f.onConnect(u, tok, done, ctx)
		return
	}
	done(ctx, 0)
}

func (f *fakeNative) RoomDisconnect(room Handle) {
	f.requireLive(room, "disconnect")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, room)
}

func (f *fakeNative) RoomPublishVideoTrack(room, track Handle, done CompletionFunc, ctx uintptr) {
	f.requireLive(room, "publish")
	f.mu.Lock()
	f.published = append(f.published, track)
	f.mu.Unlock()
	if f.onPublish != nil {
		f.onPublish(track, done, ctx)
		return
	}
	done(ctx, 0)
}

// RoomVideoTracksForRemoteParticipant returns a borrowed array: the fake
// keeps it in an autorelease list that drain releases.
func (f *fakeNative) RoomVideoTracksForRemoteParticipant(room, participantID Handle) Handle {
	f.requireLive(room, "list tracks")
	participant := f.StringValue(participantID)
	f.mu.Lock()
	tracks := f.tracks[participant]
	f.mu.Unlock()
	if len(tracks) == 0 {
		return 0
	}
	array := f.newArray(tracks...)
	f.autorelease(array)
	return array
}

func (f *fakeNative) RemoteVideoTrackSID(track Handle) Handle {
	f.mu.Lock()
	sid := f.objects[track].str
	f.mu.Unlock()
	h := f.StringCreate(sid)
	f.autorelease(h)
	return h
}

func (f *fakeNative) VideoRendererCreate(ctx uintptr, onFrame FrameFunc, onDrop DropFunc) Handle {
	h := f.alloc(&fakeObject{kind: "renderer", onDealloc: func() { onDrop(ctx) }})
	f.mu.Lock()
	f.renderers[h] = fakeRenderer{ctx: ctx, onFrame: onFrame, onDrop: onDrop}
	f.mu.Unlock()
	return h
}

func (f *fakeNative) VideoTrackAddRenderer(track, renderer Handle) {
	f.Retain(renderer)
	f.mu.Lock()
	defer f.mu.Unlock()
	obj := f.objects[track]
	obj.children = append(obj.children, renderer)
}

func (f *fakeNative) DisplaySources(ctx uintptr, done DisplaysFunc) {
	if f.onDisplays != nil {
		f.onDisplays(done, ctx)
		return
	}
	array := f.newArray()
	done(ctx, array, 0)
	f.Release(array)
}

func (f *fakeNative) CreateScreenShareTrackForDisplay(display Handle) Handle {
	f.Retain(display)
	return f.alloc(&fakeObject{kind: "local-track", children: []Handle{display}})
}

func (f *fakeNative) ImageBufferSize(buffer Handle) (int, int) {
	return 1280, 720
}

// autorelease defers the release of a returned object until drain, the way
// an autorelease pool keeps get-rule results alive for the caller.
func (f *fakeNative) autorelease(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pool = append(f.pool, h)
}

func (f *fakeNative) drain() {
	f.mu.Lock()
	pool := f.pool
	f.pool = nil
	f.mu.Unlock()
	for _, h := range pool {
		f.Release(h)
	}
}

// newRemoteTrack creates a remote track object owned by the fake.
func (f *fakeNative) newRemoteTrack(sid string) Handle {
	return f.alloc(&fakeObject{kind: "remote-track", str: sid})
}

// newDisplay creates a display object owned by the fake.
func (f *fakeNative) newDisplay() Handle {
	return f.alloc(&fakeObject{kind: "display"})
}

// subscribe fires the delegate's subscribe trampoline the way the SDK does:
// all arguments are borrowed and released once the callback returns.
func (f *fakeNative) subscribe(delegate Handle, publisherID, trackID string) Handle {
	f.mu.Lock()
	d := f.delegates[delegate]
	f.mu.Unlock()
	pub := f.StringCreate(publisherID)
	tid := f.StringCreate(trackID)
	track := f.newRemoteTrack(trackID)
	d.onSubscribe(d.ctx, pub, tid, track)
	f.Release(pub)
	f.Release(tid)
	f.Release(track)
	return track
}

func (f *fakeNative) unsubscribe(delegate Handle, publisherID, trackID string) {
	f.mu.Lock()
	d := f.delegates[delegate]
	f.mu.Unlock()
	pub := f.StringCreate(publisherID)
	tid := f.StringCreate(trackID)
	d.onUnsubscribe(d.ctx, pub, tid)
	f.Release(pub)
	f.Release(tid)
}

// renderFrame pushes one borrowed frame to a renderer.
func (f *fakeNative) renderFrame(renderer Handle) {
	f.mu.Lock()
	r := f.renderers[renderer]
	f.mu.Unlock()
	frame := f.alloc(&fakeObject{kind: "image-buffer"})
	r.onFrame(r.ctx, frame)
	f.Release(frame)
}

// onlyDelegate returns the handle of the single delegate created so far.
func (f *fakeNative) onlyDelegate(t *testing.T) Handle {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.delegates) != 1 {
		t.Fatalf("expected 1 delegate, have %d", len(f.delegates))
	}
	for h := range f.delegates {
		return h
	}
	return 0
}

func (f *fakeNative) onlyRenderer(t *testing.T) Handle {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.renderers) != 1 {
		t.Fatalf("expected 1 renderer, have %d", len(f.renderers))
	}
	for h := range f.renderers {
		return h
	}
	return 0
}

func (f *fakeNative) refs(h Handle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj, ok := f.objects[h]; ok {
		return obj.refs
	}
	return 0
}

// live returns the number of objects with a non-zero reference count.
func (f *fakeNative) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, obj := range f.objects {
		if obj.refs > 0 {
			n++
		}
	}
	return n
}

// checkBalanced fails the test if any object leaked or was over-released.
func (f *fakeNative) checkBalanced(t *testing.T) {
	t.Helper()
	f.drain()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.violations {
		t.Errorf("native misuse: %s", v)
	}
	for h, obj := range f.objects {
		if obj.refs != 0 {
			t.Errorf("leaked %s %#x with %d references", obj.kind, h, obj.refs)
		}
	}
	if f.creates+f.retains != f.releases {
		t.Errorf("creates(%d) + retains(%d) != releases(%d)", f.creates, f.retains, f.releases)
	}
}

var _ Native = (*fakeNative)(nil)
