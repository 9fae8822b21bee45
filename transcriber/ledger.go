package transcriber

import (
	"encoding/json"
	"strings"
	"sync"
)

// ContextWindow bounds the rolling translation history.
const ContextWindow = 3

// Entry is one completed (original, translated) pair.
type Entry struct {
	Original   string `json:"original"`
	Translated string `json:"translated"`
}

// Ledger is a bounded FIFO window of recent caption pairs used to bias
// later translation calls toward pronoun and register consistency.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records a completed pair, evicting the oldest beyond the window.
func (l *Ledger) Append(original, translated string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Original: original, Translated: translated})
	if len(l.entries) > ContextWindow {
		l.entries = l.entries[len(l.entries)-ContextWindow:]
	}
}

// Entries returns a copy of the window, oldest first.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset empties the window (video source changed).
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Serialize renders the window as JSON for the proxy form field.
func Serialize(entries []Entry) string {
	if len(entries) == 0 {
		return "[]"
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// PromptLines renders the window as alternating original/translation
// lines for a chat-completion system instruction.
func PromptLines(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Original)
		b.WriteString("\n")
		b.WriteString(e.Translated)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
