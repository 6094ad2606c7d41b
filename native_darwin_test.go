//go:build darwin

package livekit

import (
	"context"
	"testing"
	"time"
)

func TestOpen_DisplaySources(t *testing.T) {
	if !IsAvailable() {
		t.Skip("LiveKit bridge library not available")
	}

	c, err := Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	displays, err := c.DisplaySources(ctx)
	if err != nil {
		t.Fatalf("DisplaySources failed: %v", err)
	}

	t.Logf("Found %d displays", len(displays))
	for _, d := range displays {
		d.Close()
	}
}

func TestOpen_RoomLifecycle(t *testing.T) {
	if !IsAvailable() {
		t.Skip("LiveKit bridge library not available")
	}

	c, err := Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	r, err := c.NewRoom()
	if err != nil {
		t.Fatalf("NewRoom failed: %v", err)
	}
	sub := r.RemoteVideoTrackUpdates()
	r.Close()
	if _, err := sub.Next(context.Background()); err == nil {
		t.Error("subscription still open after room Close")
	}
}

func TestGetBridgeLibPaths_EnvFirst(t *testing.T) {
	t.Setenv("LIVEKIT_BRIDGE_LIB_PATH", "/tmp/custom/libLiveKitBridge.dylib")
	paths := getBridgeLibPaths()
	if len(paths) == 0 || paths[0] != "/tmp/custom/libLiveKitBridge.dylib" {
		t.Errorf("paths[0] = %v, want env override first", paths)
	}
}
