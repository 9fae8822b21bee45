package audio

import (
	"errors"
	"strings"
)

var (
	// ErrCaptureUnsupported means the platform exposes no stream-capture
	// primitive for the video's audio output.
	ErrCaptureUnsupported = errors.New("audio capture is not supported on this platform")

	// ErrNoAudioTrack means the capture graph was created but the stream
	// carries zero audio tracks.
	ErrNoAudioTrack = errors.New("captured stream has no audio track")
)

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Monitor devices mirror another stream's output; on PulseAudio these are
// the ".monitor" sources that carry whatever the video is playing.
func IsMonitor(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, ".monitor") || strings.Contains(lower, "monitor of")
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	Channels() uint32
	DeviceName() string
}
