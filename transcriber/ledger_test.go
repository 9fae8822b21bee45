package transcriber

import "testing"

func TestLedgerBoundedFIFO(t *testing.T) {
	l := NewLedger()
	l.Append("one", "một")
	l.Append("two", "hai")
	l.Append("three", "ba")
	l.Append("four", "bốn")

	entries := l.Entries()
	if len(entries) != ContextWindow {
		t.Fatalf("len = %d, want %d", len(entries), ContextWindow)
	}
	want := []Entry{
		{"two", "hai"},
		{"three", "ba"},
		{"four", "bốn"},
	}
	for i, e := range entries {
		if e != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, e, want[i])
		}
	}
}

func TestLedgerNeverExceedsWindow(t *testing.T) {
	l := NewLedger()
	for i := 0; i < 50; i++ {
		l.Append("o", "t")
		if l.Len() > ContextWindow {
			t.Fatalf("ledger grew to %d after %d appends", l.Len(), i+1)
		}
	}
}

func TestLedgerReset(t *testing.T) {
	l := NewLedger()
	l.Append("a", "b")
	l.Reset()
	if l.Len() != 0 {
		t.Errorf("len after reset = %d, want 0", l.Len())
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	l := NewLedger()
	l.Append("a", "b")
	entries := l.Entries()
	entries[0].Original = "mutated"
	if l.Entries()[0].Original != "a" {
		t.Error("Entries must return a copy")
	}
}

func TestSerialize(t *testing.T) {
	if got := Serialize(nil); got != "[]" {
		t.Errorf("Serialize(nil) = %q, want []", got)
	}
	got := Serialize([]Entry{{"hello", "xin chào"}})
	want := `[{"original":"hello","translated":"xin chào"}]`
	if got != want {
		t.Errorf("Serialize = %s, want %s", got, want)
	}
}

func TestPromptLines(t *testing.T) {
	got := PromptLines([]Entry{{"hello", "xin chào"}, {"bye", "tạm biệt"}})
	want := "hello\nxin chào\nbye\ntạm biệt"
	if got != want {
		t.Errorf("PromptLines = %q, want %q", got, want)
	}
}
