package transcriber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"livecap/audio"
	"livecap/config"
	"livecap/encoder"
)

// MaxChunkLagMs is the freshness bound: a chunk older than this at
// dispatch time is dropped instead of sent, so a slow backend can't push
// subtitles arbitrarily far behind live playback.
const MaxChunkLagMs = 5000

// Dispatcher routes ready chunks to the configured processing mode and
// maintains the rolling translation context.
type Dispatcher struct {
	ledger *Ledger
	now    func() time.Time

	mu     sync.Mutex
	mode   config.APIMode
	proxy  Processor
	groq   Processor
	openai Processor
	opts   Options
	lagMs  float64
}

func NewDispatcher(cfg *config.Config) *Dispatcher {
	d := &Dispatcher{
		ledger: NewLedger(),
		now:    time.Now,
	}
	d.Reconfigure(cfg)
	return d
}

// Reconfigure applies a settings change; in-flight chunks keep the
// processors they started with.
func (d *Dispatcher) Reconfigure(cfg *config.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = cfg.APIMode
	d.proxy = NewProxy(cfg.BackendEndpoint, cfg.BackendSecret)
	d.groq = NewGroq(cfg.GroqAPIKey)
	d.openai = NewOpenAI(cfg.OpenAIAPIKey)
	d.opts = Options{
		SourceLang:      cfg.SourceLang,
		TargetLang:      cfg.TargetLang,
		IncludeOriginal: cfg.ShowOriginal,
	}
}

func (d *Dispatcher) Ledger() *Ledger { return d.ledger }

func (d *Dispatcher) processor() (Processor, Options) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.mode {
	case config.ModeProxied:
		return d.proxy, d.opts
	case config.ModeOpenAI:
		return d.openai, d.opts
	default:
		return d.groq, d.opts
	}
}

// Process encodes and dispatches one chunk. A stale chunk is dropped
// without a network call and (nil, nil) is returned; the lag accumulator
// resets so one slow response doesn't cascade into dropping everything.
func (d *Dispatcher) Process(ctx context.Context, chunk *audio.Chunk) (*Result, error) {
	ageMs := float64(d.now().UnixMilli()) - chunk.CapturedAt*1000
	if ageMs > MaxChunkLagMs {
		d.mu.Lock()
		d.lagMs = 0
		d.mu.Unlock()
		return nil, nil
	}
	d.mu.Lock()
	d.lagMs += ageMs
	d.mu.Unlock()

	audioData, err := encoder.Encode(chunk.Samples)
	if err != nil {
		return nil, fmt.Errorf("encode chunk: %w", err)
	}

	proc, opts := d.processor()
	result, err := proc.Process(ctx, audioData, "flac", opts, d.ledger.Entries())
	if err != nil {
		return nil, err
	}

	if result.Original != "" {
		d.ledger.Append(result.Original, result.Translated)
	}
	return result, nil
}

// LagMs exposes the accumulated dispatch lag for diagnostics.
func (d *Dispatcher) LagMs() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lagMs
}
