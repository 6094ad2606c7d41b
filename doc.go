// Package livekit bridges Go to the native LiveKit room SDK (libLiveKitBridge),
// an Objective-C/Swift library whose objects are reference counted with
// CFRetain/CFRelease and whose results arrive through C callbacks on threads
// the SDK owns.
//
// Key pieces include:
//   - Client: loads the native library (Open) or wraps any Native table (New)
//   - Room: connect, publish a local track, list remote tracks, and subscribe
//     to remote video track updates
//   - LocalVideoTrack/RemoteVideoTrack, Display, ImageBuffer: owned native handles
//   - DisplaySources and NewScreenShareTrack for screen sharing
//
// # Ownership
//
// Every native object is held by exactly one wrapper that releases it exactly
// once, on Close or when the wrapper is garbage collected. Handles obtained
// under the get rule are retained when wrapped; handles obtained under the
// create rule are adopted. Sharing a wrapper shares ownership; Retain creates
// an independent owner.
//
// # Callbacks
//
// Go pointers never cross into native memory. Each callback receives an
// integer context that the bridge resolves through a process-wide table:
//
//	connect/publish/enumerate: context -> one-shot completion (taken once)
//	room delegate:             context -> weak room pointer (looked up per event)
//	renderer:                  context -> frame callback (freed on renderer drop)
//
// The room delegate only holds a weak pointer, so a room that is no longer
// referenced is collected and its native resources are released even while
// the SDK keeps calling the delegate; such late events are dropped.
//
// Blocking calls take a context.Context. Cancelling it returns control to the
// caller but does not cancel the native operation, and the completion stays
// registered until the SDK eventually calls back.
//
// # Native Library
//
// On macOS the bridge loads libLiveKitBridge.dylib with purego (no cgo
// required). Set LIVEKIT_BRIDGE_LIB_PATH to the library file or
// LIVEKIT_SDK_LIB_PATH to its directory. Other platforms report
// ErrNotAvailable.
package livekit
