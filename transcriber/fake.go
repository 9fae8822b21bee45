package transcriber

import (
	"context"
	"sync"
)

// FakeProcessor returns a canned result, recording what it was asked.
type FakeProcessor struct {
	Result *Result
	Err    error

	mu          sync.Mutex
	calls       int
	lastOpts    Options
	lastHistory []Entry
}

func NewFake(original, translated string, err error) *FakeProcessor {
	return &FakeProcessor{
		Result: &Result{Original: original, Translated: translated, Provider: "fake"},
		Err:    err,
	}
}

func (f *FakeProcessor) Name() string { return "fake" }

func (f *FakeProcessor) Process(_ context.Context, _ []byte, _ string, opts Options, history []Entry) (*Result, error) {
	f.mu.Lock()
	f.calls++
	f.lastOpts = opts
	f.lastHistory = append([]Entry(nil), history...)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Result, nil
}

func (f *FakeProcessor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeProcessor) LastHistory() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastHistory
}

func (f *FakeProcessor) LastOpts() Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}
