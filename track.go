package livekit

import (
	"github.com/pion/webrtc/v4"
)

// Re-export pion's RTPCodecType for convenience
type RTPCodecType = webrtc.RTPCodecType

const (
	RTPCodecTypeUnknown = webrtc.RTPCodecTypeUnknown
	RTPCodecTypeAudio   = webrtc.RTPCodecTypeAudio
	RTPCodecTypeVideo   = webrtc.RTPCodecTypeVideo
)

// LocalVideoTrack is a video track produced on this machine, such as a screen
// share, ready to be published to a room.
type LocalVideoTrack struct {
	ownedHandle
	client *Client
}

func newLocalVideoTrack(c *Client, h Handle) *LocalVideoTrack {
	t := &LocalVideoTrack{client: c}
	t.ownedHandle = wrapHandle(t, c.native, h, CreateRule)
	return t
}

// Kind returns RTPCodecTypeVideo.
func (t *LocalVideoTrack) Kind() RTPCodecType {
	return RTPCodecTypeVideo
}

// Close releases the native track. Calling Close more than once is a no-op.
func (t *LocalVideoTrack) Close() error {
	t.close()
	return nil
}

// RemoteVideoTrack is a video track published by another participant. Every
// wrapper owns its own native reference: closing one never affects another,
// including the copies delivered to other subscriptions.
type RemoteVideoTrack struct {
	ownedHandle
	client      *Client
	sid         string
	publisherID string
}

// newRemoteVideoTrack promotes a borrowed native track to an owned one.
func newRemoteVideoTrack(c *Client, h Handle, sid, publisherID string) *RemoteVideoTrack {
	t := &RemoteVideoTrack{
		client:      c,
		sid:         sid,
		publisherID: publisherID,
	}
	t.ownedHandle = wrapHandle(t, c.native, h, GetRule)
	return t
}

// SID returns the track's server identifier.
func (t *RemoteVideoTrack) SID() string { return t.sid }

// PublisherID returns the identity of the participant publishing the track.
func (t *RemoteVideoTrack) PublisherID() string { return t.publisherID }

// Kind returns RTPCodecTypeVideo.
func (t *RemoteVideoTrack) Kind() RTPCodecType { return RTPCodecTypeVideo }

// Retain returns a new wrapper holding its own native reference to the same
// track. It returns nil if t is already closed.
func (t *RemoteVideoTrack) Retain() *RemoteVideoTrack {
	h := t.Handle()
	if h == 0 {
		return nil
	}
	return newRemoteVideoTrack(t.client, h, t.sid, t.publisherID)
}

// Close releases this wrapper's native reference. Renderers attached to the
// track stay attached for as long as the native side keeps the track alive.
func (t *RemoteVideoTrack) Close() error {
	t.close()
	return nil
}
