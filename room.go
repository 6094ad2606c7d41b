package livekit

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"go.uber.org/zap"
)

// Room is a LiveKit room session. It owns the native room, its delegate and
// the subscriptions handed out by RemoteVideoTrackUpdates.
//
// A room is released by Close, or by a GC cleanup once it becomes
// unreachable. The delegate only holds a weak pointer back to the room, so
// native callbacks never keep it alive.
type Room struct {
	client *Client
	state  *roomState
	// live is set once state is assigned. The delegate can fire while the
	// native room is still being created; such events are dropped.
	live atomic.Bool
}

// roomState holds everything teardown needs. It must never point back at the
// Room, otherwise the cleanup attached to the Room would keep it reachable.
type roomState struct {
	// mu is held for reading around every native call that uses the room
	// handle, and for writing while the handle is released.
	mu       sync.RWMutex
	room     *nativeRef
	delegate *roomDelegate
	updates  updateFanout
	closed   atomic.Bool
}

func newRoom(c *Client) (*Room, error) {
	r := &Room{client: c}
	delegate, err := newRoomDelegate(c, weak.Make(r))
	if err != nil {
		return nil, err
	}
	h := c.native.RoomCreate(delegate.ref.handle)
	if h == 0 {
		delegate.teardown()
		return nil, &OperationError{Op: "create room", Message: "native layer returned no room"}
	}
	r.state = &roomState{
		room:     adopt(c.native, h, CreateRule),
		delegate: delegate,
	}
	r.live.Store(true)
	runtime.AddCleanup(r, func(s *roomState) { s.close() }, r.state)
	return r, nil
}

// close disconnects and releases the room, finishes every subscription and
// tears down the delegate. Only the first call has any effect.
func (s *roomState) close() {
	s.mu.Lock()
	if !s.closed.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return
	}
	s.room.native.RoomDisconnect(s.room.handle)
	s.room.release()
	s.mu.Unlock()

	s.updates.close()
	s.delegate.teardown()
}

// withRoom calls fn with the native room handle. Close waits for fn to
// return, so the handle stays valid for the duration of the call.
func (s *roomState) withRoom(fn func(room Handle)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return ErrClosed
	}
	fn(s.room.handle)
	return nil
}

// Connect joins the room at url using token. It blocks until the native layer
// reports the outcome or ctx is done. Cancelling ctx does not abort the native
// connection attempt.
func (r *Room) Connect(ctx context.Context, url, token string) error {
	n := r.client.native
	urlString := adopt(n, n.StringCreate(url), CreateRule)
	tokenString := adopt(n, n.StringCreate(token), CreateRule)

	p, id := newCompletion[struct{}](r.client, opConnect)
	err := r.state.withRoom(func(room Handle) {
		n.RoomConnect(room, urlString.handle, tokenString.handle, onOperationDone, id)
	})
	runtime.KeepAlive(r)
	urlString.release()
	tokenString.release()
	if err != nil {
		callbackContexts.take(id)
		return err
	}
	_, err = p.wait(ctx)
	return err
}

// PublishVideoTrack publishes a local track to the room. It blocks until the
// native layer reports the outcome or ctx is done.
func (r *Room) PublishVideoTrack(ctx context.Context, track *LocalVideoTrack) error {
	h := track.Handle()
	if h == 0 {
		return ErrClosed
	}
	p, id := newCompletion[struct{}](r.client, opPublishVideo)
	err := r.state.withRoom(func(room Handle) {
		r.client.native.RoomPublishVideoTrack(room, h, onOperationDone, id)
	})
	runtime.KeepAlive(r)
	runtime.KeepAlive(track)
	if err != nil {
		callbackContexts.take(id)
		return err
	}
	_, err = p.wait(ctx)
	return err
}

// RemoteVideoTracks returns the video tracks currently published by the
// given participant. Each returned track is independently owned by the
// caller. A participant without tracks yields an empty slice.
func (r *Room) RemoteVideoTracks(participantID string) ([]*RemoteVideoTrack, error) {
	n := r.client.native
	participant := adopt(n, n.StringCreate(participantID), CreateRule)
	var array Handle
	err := r.state.withRoom(func(room Handle) {
		array = n.RoomVideoTracksForRemoteParticipant(room, participant.handle)
	})
	participant.release()
	runtime.KeepAlive(r)
	if err != nil {
		return nil, err
	}

	if array == 0 {
		return []*RemoteVideoTrack{}, nil
	}
	arrayRef := adopt(n, array, GetRule)
	defer arrayRef.release()

	count := n.ArrayCount(array)
	tracks := make([]*RemoteVideoTrack, 0, count)
	for i := 0; i < count; i++ {
		h := n.ArrayAt(array, i)
		if h == 0 {
			continue
		}
		sid := n.StringValue(n.RemoteVideoTrackSID(h))
		tracks = append(tracks, newRemoteVideoTrack(r.client, h, sid, participantID))
	}
	return tracks, nil
}

// RemoteVideoTrackUpdates registers a new subscription for remote video track
// lifecycle events. Every live subscription sees every event published after
// it was registered, in order. Close the subscription when done with it.
func (r *Room) RemoteVideoTrackUpdates() *Subscription {
	return r.state.updates.register()
}

// Close disconnects from the room and releases its native resources.
// Subscriptions stop receiving updates but can still drain queued ones.
// Calling Close more than once is a no-op.
func (r *Room) Close() error {
	r.state.close()
	return nil
}

// didSubscribe publishes track. Every subscription gets its own reference, so
// the wrapper built for the event is closed once delivery is done.
func (r *Room) didSubscribe(track *RemoteVideoTrack) {
	delivered := r.state.updates.publish(TrackUpdate{
		Kind:        TrackSubscribed,
		Track:       track,
		PublisherID: track.publisherID,
		TrackID:     track.sid,
	})
	r.client.log().Debug("remote track subscribed",
		zap.String("publisher", track.publisherID),
		zap.String("sid", track.sid),
		zap.Stringer("kind", track.Kind()),
		zap.Int("subscribers", delivered))
	track.Close()
}

func (r *Room) didUnsubscribe(publisherID, trackID string) {
	r.state.updates.publish(TrackUpdate{
		Kind:        TrackUnsubscribed,
		PublisherID: publisherID,
		TrackID:     trackID,
	})
}

// roomDelegate receives subscription events from the native room. It is
// Active from construction until teardown, which happens exactly once.
type roomDelegate struct {
	ref      *nativeRef
	ctx      uintptr
	teardown func()
}

// delegateContext is what the delegate trampolines find in the context table.
type delegateContext struct {
	client *Client
	room   weak.Pointer[Room]
}

func newRoomDelegate(c *Client, room weak.Pointer[Room]) (*roomDelegate, error) {
	id := callbackContexts.put(&delegateContext{client: c, room: room})
	h := c.native.RoomDelegateCreate(id, onDidSubscribe, onDidUnsubscribe)
	if h == 0 {
		callbackContexts.take(id)
		return nil, &OperationError{Op: "create room delegate", Message: "native layer returned no delegate"}
	}
	d := &roomDelegate{
		ref: adopt(c.native, h, CreateRule),
		ctx: id,
	}
	d.teardown = sync.OnceFunc(func() {
		d.ref.release()
		callbackContexts.take(d.ctx)
	})
	return d, nil
}

// upgradeRoom resolves a delegate context to its room. It returns nil, and the
// event is dropped, when the delegate was torn down or the room is either
// collected or still being built.
func upgradeRoom(ctx uintptr, event string) (*Client, *Room) {
	v, ok := callbackContexts.lookup(ctx)
	if !ok {
		Logger().Debug("dropping event for torn down room delegate",
			zap.String("event", event), zap.Uintptr("context", ctx))
		return nil, nil
	}
	dc, ok := v.(*delegateContext)
	if !ok {
		reportContractViolation(Logger(), "room delegate callback fired with a foreign context", ctx)
		return nil, nil
	}
	room := dc.room.Value()
	if room == nil {
		dc.client.log().Debug("dropping event for collected room",
			zap.String("event", event), zap.Uintptr("context", ctx))
		return nil, nil
	}
	if !room.live.Load() {
		dc.client.log().Debug("dropping event for room under construction",
			zap.String("event", event), zap.Uintptr("context", ctx))
		return nil, nil
	}
	return dc.client, room
}

// onDidSubscribe is the delegate trampoline for a newly subscribed remote
// video track. track, publisherID and trackID are borrowed.
func onDidSubscribe(ctx uintptr, publisherID Handle, trackID Handle, track Handle) {
	c, room := upgradeRoom(ctx, "subscribed")
	if room == nil {
		return
	}
	n := c.native
	room.didSubscribe(newRemoteVideoTrack(c, track, n.StringValue(trackID), n.StringValue(publisherID)))
}

// onDidUnsubscribe is the delegate trampoline for a remote video track that
// went away.
func onDidUnsubscribe(ctx uintptr, publisherID Handle, trackID Handle) {
	c, room := upgradeRoom(ctx, "unsubscribed")
	if room == nil {
		return
	}
	n := c.native
	room.didUnsubscribe(n.StringValue(publisherID), n.StringValue(trackID))
}
