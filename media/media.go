// Package media models the playing videos whose audio the pipeline
// captions: each source carries a URL identity and a playback clock that
// chunk timestamps are read from.
package media

import (
	"errors"
	"sync"
	"time"
)

// ErrNoVideoFound means no source could be resolved for capture: the
// registry holds zero candidates, or several with no prior selection.
var ErrNoVideoFound = errors.New("no video found to caption")

// Source is one playing video.
type Source struct {
	URL      string
	Title    string
	Duration float64

	mu       sync.Mutex
	base     float64 // position when the clock was last synced
	syncedAt time.Time
	rate     float64
	playing  bool
	now      func() time.Time
}

func NewSource(url, title string, duration float64) *Source {
	return &Source{
		URL:      url,
		Title:    title,
		Duration: duration,
		rate:     1.0,
		now:      time.Now,
	}
}

// Position returns the current playback time in seconds.
func (s *Source) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *Source) positionLocked() float64 {
	if !s.playing {
		return s.base
	}
	return s.base + s.now().Sub(s.syncedAt).Seconds()*s.rate
}

func (s *Source) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return
	}
	s.playing = true
	s.syncedAt = s.now()
}

func (s *Source) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.base = s.positionLocked()
	s.playing = false
}

func (s *Source) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Source) Seek(pos float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = pos
	s.syncedAt = s.now()
}

func (s *Source) SetRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = s.positionLocked()
	s.syncedAt = s.now()
	s.rate = rate
}

func (s *Source) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// SetClock replaces the wall clock, for tests.
func (s *Source) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Registry tracks candidate sources and the user's explicit pick.
type Registry struct {
	mu       sync.Mutex
	sources  []*Source
	selected *Source
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(s *Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, s)
}

func (r *Registry) Remove(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.sources[:0]
	for _, s := range r.sources {
		if s.URL != url {
			kept = append(kept, s)
		}
	}
	r.sources = kept
	if r.selected != nil && r.selected.URL == url {
		r.selected = nil
	}
}

func (r *Registry) Sources() []*Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Select marks an explicit user choice for later Resolve calls.
func (r *Registry) Select(s *Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = s
}

// Resolve picks the active source: the single candidate when exactly one
// exists, otherwise a prior explicit selection.
func (r *Registry) Resolve() (*Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sources) == 1 {
		return r.sources[0], nil
	}
	if r.selected != nil {
		return r.selected, nil
	}
	return nil, ErrNoVideoFound
}
