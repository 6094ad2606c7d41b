package livekit

import (
	"context"
	"sync"
)

// TrackUpdateKind tags a TrackUpdate.
type TrackUpdateKind uint8

const (
	TrackSubscribed   TrackUpdateKind = iota // A remote video track became available
	TrackUnsubscribed                        // A remote video track went away
)

func (k TrackUpdateKind) String() string {
	switch k {
	case TrackSubscribed:
		return "subscribed"
	case TrackUnsubscribed:
		return "unsubscribed"
	default:
		return "unknown"
	}
}

// TrackUpdate is a remote video track lifecycle event. Each subscription
// receives its own copy; for TrackSubscribed the receiver owns Track and
// should Close it when done.
type TrackUpdate struct {
	Kind        TrackUpdateKind
	Track       *RemoteVideoTrack // Set for TrackSubscribed only
	PublisherID string
	TrackID     string
}

// Subscription receives track updates in the order they were published. Its
// queue is unbounded, so publishing never blocks on a slow reader.
type Subscription struct {
	mu     sync.Mutex
	queue  []TrackUpdate
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newSubscription() *Subscription {
	return &Subscription{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// push appends u. It reports false if the subscription no longer accepts
// updates.
func (s *Subscription) push(u TrackUpdate) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, u)
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Subscription) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Next returns the next update. Updates queued before the room closed are
// still returned; after that Next returns ErrClosed.
func (s *Subscription) Next(ctx context.Context) (TrackUpdate, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			u := s.queue[0]
			s.queue[0] = TrackUpdate{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return u, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return TrackUpdate{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return TrackUpdate{}, ctx.Err()
		case <-s.wake:
		case <-s.done:
		}
	}
}

// Len returns the number of queued updates.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close drops the subscription. Queued updates are discarded, releasing the
// tracks they carry, and the room prunes it on its next event.
func (s *Subscription) Close() error {
	s.mu.Lock()
	s.markClosed()
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, u := range queue {
		if u.Track != nil {
			u.Track.Close()
		}
	}
	return nil
}

// finish stops accepting updates but leaves the queue readable.
func (s *Subscription) finish() {
	s.mu.Lock()
	s.markClosed()
	s.mu.Unlock()
}

// markClosed must be called with s.mu held.
func (s *Subscription) markClosed() {
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// updateFanout broadcasts track updates to every live subscription.
type updateFanout struct {
	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

// register adds a subscription. After the fanout is closed the returned
// subscription is already finished.
func (f *updateFanout) register() *Subscription {
	s := newSubscription()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		s.finish()
		return s
	}
	f.subs = append(f.subs, s)
	return s
}

// publish delivers u to every subscription in registration order and prunes
// those that were closed. Each subscription gets its own retained u.Track;
// the caller keeps ownership of the original. It returns how many
// subscriptions received u.
func (f *updateFanout) publish(u TrackUpdate) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	live := f.subs[:0]
	for _, s := range f.subs {
		v := u
		if u.Track != nil {
			v.Track = u.Track.Retain()
		}
		if s.push(v) {
			live = append(live, s)
		} else if v.Track != nil {
			v.Track.Close()
		}
	}
	clear(f.subs[len(live):])
	f.subs = live
	return len(live)
}

// close finishes every subscription; later publishes deliver nothing.
func (f *updateFanout) close() {
	f.mu.Lock()
	subs := f.subs
	f.subs = nil
	f.closed = true
	f.mu.Unlock()
	for _, s := range subs {
		s.finish()
	}
}

func (f *updateFanout) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
