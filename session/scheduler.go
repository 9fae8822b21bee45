package session

import (
	"context"
	"sync"
	"time"
)

// Flush period tuning. The period chases the backend's processing time:
// a chunk that takes most of the period to process pushes the period up,
// a fast one pulls it back toward the floor.
const (
	DefaultPeriodMs = 3000
	MinPeriodMs     = 2000
	MaxPeriodMs     = 6000
	PeriodStepMs    = 500

	raiseFraction = 0.8
	lowerFraction = 0.3
)

// AdaptiveScheduler drives the flush loop with a self-tuning period.
type AdaptiveScheduler struct {
	mu       sync.Mutex
	periodMs int
	cancel   context.CancelFunc
	done     chan struct{}

	resched chan struct{}
}

func NewAdaptiveScheduler() *AdaptiveScheduler {
	return &AdaptiveScheduler{
		periodMs: DefaultPeriodMs,
		resched:  make(chan struct{}, 1),
	}
}

func (s *AdaptiveScheduler) PeriodMs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periodMs
}

// Observe feeds one chunk's processing time into the tuner. It returns
// whether the period changed; a change also reschedules the pending tick.
func (s *AdaptiveScheduler) Observe(processingMs float64) bool {
	s.mu.Lock()
	period := float64(s.periodMs)
	next := s.periodMs
	switch {
	case processingMs > period*raiseFraction:
		next += PeriodStepMs
	case processingMs < period*lowerFraction:
		next -= PeriodStepMs
	}
	if next > MaxPeriodMs {
		next = MaxPeriodMs
	}
	if next < MinPeriodMs {
		next = MinPeriodMs
	}
	changed := next != s.periodMs
	s.periodMs = next
	s.mu.Unlock()

	if changed {
		s.signal()
	}
	return changed
}

// Reset returns the period to the default, rescheduling a pending tick.
func (s *AdaptiveScheduler) Reset() {
	s.mu.Lock()
	changed := s.periodMs != DefaultPeriodMs
	s.periodMs = DefaultPeriodMs
	s.mu.Unlock()
	if changed {
		s.signal()
	}
}

func (s *AdaptiveScheduler) signal() {
	select {
	case s.resched <- struct{}{}:
	default:
	}
}

// Start runs tick every period until Stop or ctx cancellation. Ticks run
// one at a time; a tick's own duration delays the next one.
func (s *AdaptiveScheduler) Start(ctx context.Context, tick func(context.Context)) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		timer := time.NewTimer(s.period())
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.resched:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.period())
			case <-timer.C:
				tick(ctx)
				timer.Reset(s.period())
			}
		}
	}()
}

// Stop cancels the flush loop and waits for it to exit. Safe to call
// when not started.
func (s *AdaptiveScheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *AdaptiveScheduler) period() time.Duration {
	return time.Duration(s.PeriodMs()) * time.Millisecond
}
