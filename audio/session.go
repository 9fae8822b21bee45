package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// Chunk is one flush-worth of captured samples, tagged with the video
// playback position at drain time. Consumed exactly once by the dispatcher.
type Chunk struct {
	Samples    []int16
	Timestamp  float64 // seconds of video playback
	CapturedAt float64 // unix seconds at flush; freshness guard ages this
}

func (c *Chunk) DurationS(sampleRate uint32) float64 {
	return float64(len(c.Samples)) / float64(sampleRate)
}

// CaptureSession owns the capture graph bound to one video's audio output.
// The processing callback appends to an internal buffer; Drain hands the
// accumulated samples to the flush pipeline.
type CaptureSession struct {
	ctx Context

	mu     sync.Mutex
	buf    []int16
	device CaptureDevice
	active bool
}

func NewCaptureSession(ctx Context) *CaptureSession {
	return &CaptureSession{ctx: ctx}
}

// Start binds a capture graph to the given device. A failure leaves the
// session exactly as it was.
func (s *CaptureSession) Start(device *DeviceInfo, config CaptureConfig) error {
	if s.ctx == nil {
		return ErrCaptureUnsupported
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return fmt.Errorf("capture already active")
	}
	s.mu.Unlock()

	capture, err := s.ctx.NewCapture(device, config)
	if err != nil {
		return err
	}
	if capture.Channels() == 0 {
		capture.Close()
		return ErrNoAudioTrack
	}

	// The callback can fire during Start, so the session must accept
	// samples before Start returns.
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()

	capture.SetCallback(s.append)
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		s.mu.Lock()
		s.active = false
		s.buf = nil
		s.mu.Unlock()
		return fmt.Errorf("start capture: %w", err)
	}

	s.mu.Lock()
	s.device = capture
	s.mu.Unlock()
	return nil
}

// append is the only mutation path for the buffer while capture is active.
func (s *CaptureSession) append(data []byte, _ uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		s.buf = append(s.buf, int16(binary.LittleEndian.Uint16(data[i:])))
	}
}

// Stop tears down the graph (processing callback, then the source device)
// and clears the buffer. Safe to call when already stopped.
func (s *CaptureSession) Stop() {
	s.mu.Lock()
	device := s.device
	s.device = nil
	s.active = false
	s.buf = nil
	s.mu.Unlock()

	if device != nil {
		device.ClearCallback()
		device.Stop()
		device.Close()
	}
}

// Active reports whether a capture graph is currently bound.
func (s *CaptureSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Reset empties the buffer without touching the capture graph (seek,
// source change).
func (s *CaptureSession) Reset() {
	s.mu.Lock()
	s.buf = nil
	s.mu.Unlock()
}

// BufferedFrames returns the number of samples waiting for the next flush.
func (s *CaptureSession) BufferedFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Drain atomically empties the buffer and returns it as one timestamped
// chunk, or nil when there is nothing buffered.
func (s *CaptureSession) Drain(timestamp float64) *Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return nil
	}
	samples := s.buf
	s.buf = nil
	return &Chunk{
		Samples:    samples,
		Timestamp:  timestamp,
		CapturedAt: float64(time.Now().UnixNano()) / 1e9,
	}
}

// DeviceName names the bound capture device, if any.
func (s *CaptureSession) DeviceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return ""
	}
	return s.device.DeviceName()
}
