//go:build darwin

package livekit

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

const (
	coreFoundationPath = "/System/Library/Frameworks/CoreFoundation.framework/CoreFoundation"
	coreVideoPath      = "/System/Library/Frameworks/CoreVideo.framework/CoreVideo"
	bridgeLibName      = "libLiveKitBridge.dylib"

	kCFStringEncodingUTF8 = 0x08000100
)

var (
	bridgeOnce    sync.Once
	bridge        *bridgeLibrary
	bridgeInitErr error
)

// bridgeLibrary implements Native on top of libLiveKitBridge and the
// CoreFoundation/CoreVideo frameworks, loaded with purego.
type bridgeLibrary struct {
	cfRetain                          func(obj uintptr) uintptr
	cfRelease                         func(obj uintptr)
	cfStringCreateWithBytes           func(alloc, bytes uintptr, numBytes int, encoding uint32, isExternal bool) uintptr
	cfStringGetLength                 func(str uintptr) int
	cfStringGetMaximumSizeForEncoding func(length int, encoding uint32) int
	cfStringGetCString                func(str, buf uintptr, size int, encoding uint32) bool
	cfArrayGetCount                   func(array uintptr) int
	cfArrayGetValueAtIndex            func(array uintptr, index int) uintptr
	cvPixelBufferGetWidth             func(buffer uintptr) uintptr
	cvPixelBufferGetHeight            func(buffer uintptr) uintptr

	lkRoomDelegateCreate                  func(ctx, onSubscribe, onUnsubscribe uintptr) uintptr
	lkRoomCreate                          func(delegate uintptr) uintptr
	lkRoomConnect                         func(room, url, token, callback, ctx uintptr)
	lkRoomDisconnect                      func(room uintptr)
	lkRoomPublishVideoTrack               func(room, track, callback, ctx uintptr)
	lkRoomVideoTracksForRemoteParticipant func(room, participantID uintptr) uintptr
	lkVideoRendererCreate                 func(ctx, onFrame, onDrop uintptr) uintptr
	lkVideoTrackAddRenderer               func(track, renderer uintptr)
	lkRemoteVideoTrackGetSid              func(track uintptr) uintptr
	lkDisplaySources                      func(ctx, callback uintptr)
	lkCreateScreenShareTrackForDisplay    func(display uintptr) uintptr

	// purego callbacks are never freed, so each trampoline is converted once.
	callbacksMu sync.Mutex
	callbacks   map[uintptr]uintptr
}

// IsAvailable reports whether the native bridge library can be loaded.
func IsAvailable() bool {
	_, err := loadNative("")
	return err == nil
}

func loadNative(path string) (Native, error) {
	bridgeOnce.Do(func() {
		bridge, bridgeInitErr = loadBridgeLibrary(path)
	})
	if bridgeInitErr != nil {
		return nil, bridgeInitErr
	}
	return bridge, nil
}

func loadBridgeLibrary(path string) (*bridgeLibrary, error) {
	cf, err := purego.Dlopen(coreFoundationPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load CoreFoundation: %v", ErrNotAvailable, err)
	}
	cv, err := purego.Dlopen(coreVideoPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load CoreVideo: %v", ErrNotAvailable, err)
	}

	paths := getBridgeLibPaths()
	if path != "" {
		paths = []string{path}
	}

	var lastErr error
	for _, p := range paths {
		handle, err := purego.Dlopen(p, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		lib := &bridgeLibrary{callbacks: make(map[uintptr]uintptr)}
		lib.registerFrameworkSymbols(cf, cv)
		lib.registerBridgeSymbols(handle)
		return lib, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: failed to load %s: %v", ErrNotAvailable, bridgeLibName, lastErr)
	}
	return nil, fmt.Errorf("%w: %s not found in any standard location", ErrNotAvailable, bridgeLibName)
}

func getBridgeLibPaths() []string {
	var paths []string

	// Environment variable overrides (highest priority)
	if envPath := os.Getenv("LIVEKIT_BRIDGE_LIB_PATH"); envPath != "" {
		paths = append(paths, envPath)
	}
	if envPath := os.Getenv("LIVEKIT_SDK_LIB_PATH"); envPath != "" {
		paths = append(paths, filepath.Join(envPath, bridgeLibName))
	}

	// Next to the executable, including app bundle layouts
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, bridgeLibName),
			filepath.Join(exeDir, "..", "Frameworks", bridgeLibName),
			filepath.Join(exeDir, "..", "lib", bridgeLibName),
		)
	}

	if wd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(wd, "build", bridgeLibName),
			filepath.Join(wd, "..", "build", bridgeLibName),
			filepath.Join(wd, "..", "..", "build", bridgeLibName),
		)
	}

	if moduleRoot := findModuleRoot(); moduleRoot != "" {
		paths = append(paths, filepath.Join(moduleRoot, "build", bridgeLibName))
	}

	// System paths (lowest priority)
	paths = append(paths,
		bridgeLibName,
		"/usr/local/lib/"+bridgeLibName,
		"/opt/homebrew/lib/"+bridgeLibName,
	)
	return paths
}

func (l *bridgeLibrary) registerFrameworkSymbols(cf, cv uintptr) {
	purego.RegisterLibFunc(&l.cfRetain, cf, "CFRetain")
	purego.RegisterLibFunc(&l.cfRelease, cf, "CFRelease")
	purego.RegisterLibFunc(&l.cfStringCreateWithBytes, cf, "CFStringCreateWithBytes")
	purego.RegisterLibFunc(&l.cfStringGetLength, cf, "CFStringGetLength")
	purego.RegisterLibFunc(&l.cfStringGetMaximumSizeForEncoding, cf, "CFStringGetMaximumSizeForEncoding")
	purego.RegisterLibFunc(&l.cfStringGetCString, cf, "CFStringGetCString")
	purego.RegisterLibFunc(&l.cfArrayGetCount, cf, "CFArrayGetCount")
	purego.RegisterLibFunc(&l.cfArrayGetValueAtIndex, cf, "CFArrayGetValueAtIndex")
	purego.RegisterLibFunc(&l.cvPixelBufferGetWidth, cv, "CVPixelBufferGetWidth")
	purego.RegisterLibFunc(&l.cvPixelBufferGetHeight, cv, "CVPixelBufferGetHeight")
}

func (l *bridgeLibrary) registerBridgeSymbols(lib uintptr) {
	purego.RegisterLibFunc(&l.lkRoomDelegateCreate, lib, "LKRoomDelegateCreate")
	purego.RegisterLibFunc(&l.lkRoomCreate, lib, "LKRoomCreate")
	purego.RegisterLibFunc(&l.lkRoomConnect, lib, "LKRoomConnect")
	purego.RegisterLibFunc(&l.lkRoomDisconnect, lib, "LKRoomDisconnect")
	purego.RegisterLibFunc(&l.lkRoomPublishVideoTrack, lib, "LKRoomPublishVideoTrack")
	purego.RegisterLibFunc(&l.lkRoomVideoTracksForRemoteParticipant, lib, "LKRoomVideoTracksForRemoteParticipant")
	purego.RegisterLibFunc(&l.lkVideoRendererCreate, lib, "LKVideoRendererCreate")
	purego.RegisterLibFunc(&l.lkVideoTrackAddRenderer, lib, "LKVideoTrackAddRenderer")
	purego.RegisterLibFunc(&l.lkRemoteVideoTrackGetSid, lib, "LKRemoteVideoTrackGetSid")
	purego.RegisterLibFunc(&l.lkDisplaySources, lib, "LKDisplaySources")
	purego.RegisterLibFunc(&l.lkCreateScreenShareTrackForDisplay, lib, "LKCreateScreenShareTrackForDisplay")
}

// callback returns the C function pointer for a trampoline. Trampolines must
// be top-level functions: the cache is keyed by code pointer, which closures
// created from the same literal share.
func (l *bridgeLibrary) callback(fn any) uintptr {
	key := reflect.ValueOf(fn).Pointer()
	l.callbacksMu.Lock()
	defer l.callbacksMu.Unlock()
	if ptr, ok := l.callbacks[key]; ok {
		return ptr
	}
	ptr := purego.NewCallback(fn)
	l.callbacks[key] = ptr
	return ptr
}

func (l *bridgeLibrary) Retain(h Handle) {
	l.cfRetain(uintptr(h))
}

func (l *bridgeLibrary) Release(h Handle) {
	l.cfRelease(uintptr(h))
}

func (l *bridgeLibrary) StringCreate(s string) Handle {
	if s == "" {
		return Handle(l.cfStringCreateWithBytes(0, 0, 0, kCFStringEncodingUTF8, false))
	}
	b := []byte(s)
	h := l.cfStringCreateWithBytes(0, uintptr(unsafe.Pointer(&b[0])), len(b), kCFStringEncodingUTF8, false)
	runtime.KeepAlive(b)
	return Handle(h)
}

func (l *bridgeLibrary) StringValue(h Handle) string {
	if h == 0 {
		return ""
	}
	size := l.cfStringGetMaximumSizeForEncoding(l.cfStringGetLength(uintptr(h)), kCFStringEncodingUTF8) + 1
	buf := make([]byte, size)
	if !l.cfStringGetCString(uintptr(h), uintptr(unsafe.Pointer(&buf[0])), size, kCFStringEncodingUTF8) {
		return ""
	}
	return goStringFromBytes(buf)
}

func (l *bridgeLibrary) ArrayCount(array Handle) int {
	return l.cfArrayGetCount(uintptr(array))
}

func (l *bridgeLibrary) ArrayAt(array Handle, i int) Handle {
	return Handle(l.cfArrayGetValueAtIndex(uintptr(array), i))
}

func (l *bridgeLibrary) RoomDelegateCreate(ctx uintptr, onSubscribe SubscribeFunc, onUnsubscribe UnsubscribeFunc) Handle {
	return Handle(l.lkRoomDelegateCreate(ctx, l.callback(onSubscribe), l.callback(onUnsubscribe)))
}

func (l *bridgeLibrary) RoomCreate(delegate Handle) Handle {
	return Handle(l.lkRoomCreate(uintptr(delegate)))
}

func (l *bridgeLibrary) RoomConnect(room, url, token Handle, done CompletionFunc, ctx uintptr) {
	l.lkRoomConnect(uintptr(room), uintptr(url), uintptr(token), l.callback(done), ctx)
}

func (l *bridgeLibrary) RoomDisconnect(room Handle) {
	l.lkRoomDisconnect(uintptr(room))
}

func (l *bridgeLibrary) RoomPublishVideoTrack(room, track Handle, done CompletionFunc, ctx uintptr) {
	l.lkRoomPublishVideoTrack(uintptr(room), uintptr(track), l.callback(done), ctx)
}

func (l *bridgeLibrary) RoomVideoTracksForRemoteParticipant(room, participantID Handle) Handle {
	return Handle(l.lkRoomVideoTracksForRemoteParticipant(uintptr(room), uintptr(participantID)))
}

func (l *bridgeLibrary) RemoteVideoTrackSID(track Handle) Handle {
	return Handle(l.lkRemoteVideoTrackGetSid(uintptr(track)))
}

func (l *bridgeLibrary) VideoRendererCreate(ctx uintptr, onFrame FrameFunc, onDrop DropFunc) Handle {
	return Handle(l.lkVideoRendererCreate(ctx, l.callback(onFrame), l.callback(onDrop)))
}

func (l *bridgeLibrary) VideoTrackAddRenderer(track, renderer Handle) {
	l.lkVideoTrackAddRenderer(uintptr(track), uintptr(renderer))
}

func (l *bridgeLibrary) DisplaySources(ctx uintptr, done DisplaysFunc) {
	l.lkDisplaySources(ctx, l.callback(done))
}

func (l *bridgeLibrary) CreateScreenShareTrackForDisplay(display Handle) Handle {
	return Handle(l.lkCreateScreenShareTrackForDisplay(uintptr(display)))
}

func (l *bridgeLibrary) ImageBufferSize(buffer Handle) (width, height int) {
	return int(l.cvPixelBufferGetWidth(uintptr(buffer))), int(l.cvPixelBufferGetHeight(uintptr(buffer)))
}

var _ Native = (*bridgeLibrary)(nil)
