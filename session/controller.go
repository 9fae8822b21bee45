// Package session orchestrates one captioning session: it binds audio
// capture to the resolved video source, drives the adaptive flush loop,
// and fans results out to the renderer, the segment cache, and the sync
// gate.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"livecap/audio"
	"livecap/cache"
	"livecap/config"
	"livecap/encoder"
	"livecap/log"
	"livecap/media"
	"livecap/transcriber"
)

type State int

const (
	StateIdle State = iota
	StateCapturing
)

func (s State) String() string {
	if s == StateCapturing {
		return "capturing"
	}
	return "idle"
}

// Processor turns one drained chunk into a caption result.
type Processor interface {
	Process(ctx context.Context, chunk *audio.Chunk) (*transcriber.Result, error)
	Ledger() *transcriber.Ledger
}

// Renderer is the subtitle surface.
type Renderer interface {
	Show(original, translated string, showOriginal bool)
	Notice(text string)
	Clear()
}

// SegmentStore persists and replays caption segments.
type SegmentStore interface {
	SaveSegment(ctx context.Context, url, title string, seg cache.Segment) error
	SegmentAt(ctx context.Context, url string, t float64) (*cache.Segment, error)
}

// SyncGate uploads consented caption samples.
type SyncGate interface {
	SyncSegment(ctx context.Context, videoURL, original, translated, sourceLang, targetLang string) (bool, error)
}

// Transport is the persistent backend status channel used in proxied mode.
type Transport interface {
	Open(ctx context.Context) error
	Close()
}

// Controller is the session state machine. Store, gate, and transport
// are optional; a nil one disables that concern.
type Controller struct {
	registry  *media.Registry
	capture   *audio.CaptureSession
	processor Processor
	renderer  Renderer
	scheduler *AdaptiveScheduler
	store     SegmentStore
	gate      SyncGate
	transport Transport
	cfg       *config.Config
	device    *audio.DeviceInfo
	now       func() time.Time

	mu     sync.Mutex
	state  State
	source *media.Source
}

// Deps bundles the controller's collaborators.
type Deps struct {
	Registry  *media.Registry
	Capture   *audio.CaptureSession
	Processor Processor
	Renderer  Renderer
	Store     SegmentStore
	Gate      SyncGate
	Transport Transport
	Config    *config.Config
	Device    *audio.DeviceInfo
}

func NewController(deps Deps) *Controller {
	return &Controller{
		registry:  deps.Registry,
		capture:   deps.Capture,
		processor: deps.Processor,
		renderer:  deps.Renderer,
		scheduler: NewAdaptiveScheduler(),
		store:     deps.Store,
		gate:      deps.Gate,
		transport: deps.Transport,
		cfg:       deps.Config,
		device:    deps.Device,
		now:       time.Now,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Enable resolves the video source, binds capture to it, and starts the
// flush loop. Enabling while already capturing is a no-op.
func (c *Controller) Enable(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateCapturing {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	source, err := c.registry.Resolve()
	if err != nil {
		return err
	}

	if err := c.capture.Start(c.device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}); err != nil {
		return fmt.Errorf("bind capture: %w", err)
	}

	if notice := credentialNotice(c.cfg); notice != "" {
		c.renderer.Notice(notice)
	}

	if c.transport != nil && c.cfg.APIMode == config.ModeProxied {
		if err := c.transport.Open(ctx); err != nil {
			log.Warnf("backend stream unavailable: %v", err)
		}
	}

	c.mu.Lock()
	c.source = source
	c.state = StateCapturing
	c.mu.Unlock()

	c.scheduler.Start(ctx, c.tick)
	log.SessionStart(providerName(c.cfg.APIMode), string(c.cfg.APIMode), source.URL)
	return nil
}

// Disable tears the session down: flush loop, capture graph, transport,
// and the displayed subtitle. Safe to call when idle.
func (c *Controller) Disable() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.source = nil
	c.mu.Unlock()

	c.scheduler.Stop()
	c.capture.Stop()
	if c.transport != nil {
		c.transport.Close()
	}
	c.renderer.Clear()
	c.scheduler.Reset()
}

// SourceChanged handles the active video changing identity in place:
// translation context, buffered audio, and the tuned period all reset.
func (c *Controller) SourceChanged() {
	c.mu.Lock()
	capturing := c.state == StateCapturing
	c.mu.Unlock()
	if !capturing {
		return
	}
	c.processor.Ledger().Reset()
	c.capture.Reset()
	c.scheduler.Reset()
	c.renderer.Clear()
}

// NewVideo rebinds the session to a different source without tearing
// down the capture graph.
func (c *Controller) NewVideo(source *media.Source) {
	c.registry.Select(source)

	c.mu.Lock()
	capturing := c.state == StateCapturing
	c.source = source
	c.mu.Unlock()
	if !capturing {
		return
	}
	c.processor.Ledger().Reset()
	c.capture.Reset()
	c.scheduler.Reset()
	c.renderer.Clear()
}

// Seek discards buffered audio and the displayed subtitle; stale text
// from before the jump must not survive it.
func (c *Controller) Seek(pos float64) {
	c.mu.Lock()
	source := c.source
	capturing := c.state == StateCapturing
	c.mu.Unlock()
	if source != nil {
		source.Seek(pos)
	}
	if !capturing {
		return
	}
	c.capture.Reset()
	c.renderer.Clear()
}

// RateChange applies the new playback rate and surfaces the advisory
// notices for rates outside the comfortable captioning range.
func (c *Controller) RateChange(rate float64) {
	c.mu.Lock()
	source := c.source
	capturing := c.state == StateCapturing
	c.mu.Unlock()
	if source != nil {
		source.SetRate(rate)
	}
	if !capturing {
		return
	}
	switch {
	case rate > 2.0:
		c.renderer.Notice("live captioning is not supported above 2x playback")
	case rate > 1.5:
		c.renderer.Notice("caption accuracy may drop above 1.5x playback")
	case rate < 0.5:
		c.renderer.Notice("captions will update at a slower pace below 0.5x playback")
	}
}

// tick is one flush: drain, replay from cache or dispatch, render, store,
// sync. A failed tick logs and surfaces a notice; the next tick runs
// regardless.
func (c *Controller) tick(ctx context.Context) {
	c.mu.Lock()
	source := c.source
	c.mu.Unlock()
	if source == nil {
		return
	}

	chunk := c.capture.Drain(source.Position())
	if chunk == nil {
		return
	}

	if cached := c.replay(ctx, source.URL, chunk.Timestamp); cached != nil {
		c.renderer.Show(cached.Original, cached.Translations[c.cfg.TargetLang], c.cfg.ShowOriginal)
		return
	}

	start := c.now()
	result, err := c.processor.Process(ctx, chunk)
	elapsedMs := float64(c.now().Sub(start)) / float64(time.Millisecond)
	c.scheduler.Observe(elapsedMs)

	if err != nil {
		log.Errorf("chunk processing failed: %v", err)
		c.renderer.Notice(noticeText(err))
		return
	}
	if result == nil || result.Original == "" {
		return
	}

	c.renderer.Show(result.Original, result.Translated, c.cfg.ShowOriginal)
	log.ChunkMetrics(log.Metrics{
		AudioLengthS:  chunk.DurationS(encoder.SampleRate),
		ProcessTimeMs: elapsedMs,
		ChunkPeriodMs: float64(c.scheduler.PeriodMs()),
	}, string(c.cfg.APIMode), result.Provider)
	log.CaptionText(result.Original, result.Translated)

	c.persist(ctx, source, chunk, result)
}

// replay serves a previously cached segment for this playback position,
// if one exists with a usable translation.
func (c *Controller) replay(ctx context.Context, url string, t float64) *cache.Segment {
	if c.store == nil {
		return nil
	}
	seg, err := c.store.SegmentAt(ctx, url, t)
	if err != nil {
		log.Warnf("cache lookup failed: %v", err)
		return nil
	}
	if seg == nil || seg.Original == "" {
		return nil
	}
	if c.cfg.TargetLang != "" && seg.Translations[c.cfg.TargetLang] == "" {
		return nil
	}
	return seg
}

func (c *Controller) persist(ctx context.Context, source *media.Source, chunk *audio.Chunk, result *transcriber.Result) {
	if c.store != nil {
		translations := map[string]string{}
		if c.cfg.TargetLang != "" {
			translations[c.cfg.TargetLang] = result.Translated
		}
		err := c.store.SaveSegment(ctx, source.URL, source.Title, cache.Segment{
			StartTime:    chunk.Timestamp,
			EndTime:      chunk.Timestamp + chunk.DurationS(encoder.SampleRate),
			Original:     result.Original,
			SourceLang:   c.cfg.SourceLang,
			Translations: translations,
			Model:        result.Provider,
		})
		if err != nil {
			log.Errorf("cache segment save failed: %v", err)
		}
	}
	if c.gate != nil {
		_, err := c.gate.SyncSegment(ctx, source.URL, result.Original, result.Translated,
			c.cfg.SourceLang, c.cfg.TargetLang)
		if err != nil {
			log.Warnf("segment sync failed: %v", err)
		}
	}
}

func providerName(mode config.APIMode) string {
	if mode == config.ModeProxied {
		return "proxy"
	}
	return string(mode)
}

func credentialNotice(cfg *config.Config) string {
	switch cfg.APIMode {
	case config.ModeProxied:
		if cfg.BackendEndpoint == "" || cfg.BackendSecret == "" {
			return "backend endpoint and secret are not configured"
		}
	case config.ModeOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return "OpenAI API key is not configured"
		}
	default:
		if cfg.GroqAPIKey == "" {
			return "Groq API key is not configured"
		}
	}
	return ""
}

func noticeText(err error) string {
	var pErr *transcriber.ProcessingError
	if errors.As(err, &pErr) {
		return pErr.Reason
	}
	return err.Error()
}
