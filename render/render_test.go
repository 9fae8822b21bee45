package render

import (
	"strings"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return model
}

func TestCaptionLines(t *testing.T) {
	cases := []struct {
		name           string
		original       string
		translated     string
		showOriginal   bool
		wantMain       string
		wantSecondary  string
	}{
		{"both shown", "hello", "xin chào", true, "xin chào", "hello"},
		{"original hidden", "hello", "xin chào", false, "xin chào", ""},
		{"no translation", "hello", "", true, "hello", ""},
		{"identical lines collapse", "same", "same", true, "same", ""},
		{"no original", "", "xin chào", true, "xin chào", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			main, secondary := captionLines(tc.original, tc.translated, tc.showOriginal)
			if main != tc.wantMain || secondary != tc.wantSecondary {
				t.Errorf("captionLines = (%q, %q), want (%q, %q)", main, secondary, tc.wantMain, tc.wantSecondary)
			}
		})
	}
}

func TestCaptionReplacesPrevious(t *testing.T) {
	m := NewModel()
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m = update(t, m, CaptionMsg{Original: "first", Translated: "một", ShowOriginal: true})
	m = update(t, m, CaptionMsg{Original: "second", Translated: "hai", ShowOriginal: true})

	view := m.View()
	if !strings.Contains(view, "hai") {
		t.Error("view missing the current caption")
	}
	if strings.Contains(view, "một") {
		t.Error("replaced caption still visible")
	}
}

func TestStaleFadeTimerIgnored(t *testing.T) {
	m := NewModel()
	m = update(t, m, CaptionMsg{Translated: "first"})
	staleSeq := m.seq
	m = update(t, m, CaptionMsg{Translated: "second"})

	m = update(t, m, fadeStartMsg{seq: staleSeq})
	if m.fading {
		t.Error("stale fade timer dimmed the current caption")
	}
	m = update(t, m, removeMsg{seq: staleSeq})
	if m.translated != "second" {
		t.Error("stale removal timer cleared the current caption")
	}
}

func TestFadeThenRemove(t *testing.T) {
	m := NewModel()
	m = update(t, m, CaptionMsg{Translated: "line"})

	m = update(t, m, fadeStartMsg{seq: m.seq})
	if !m.fading {
		t.Fatal("fade did not start")
	}
	m = update(t, m, removeMsg{seq: m.seq})
	if m.translated != "" || m.fading {
		t.Errorf("caption not removed after fade: %+v", m)
	}
}

func TestCaptionDuringFadeRestartsFresh(t *testing.T) {
	m := NewModel()
	m = update(t, m, CaptionMsg{Translated: "old"})
	m = update(t, m, fadeStartMsg{seq: m.seq})

	m = update(t, m, CaptionMsg{Translated: "new"})
	if m.fading {
		t.Error("replacement caption started already fading")
	}
}

func TestClearWipesEverything(t *testing.T) {
	m := NewModel()
	m = update(t, m, CaptionMsg{Original: "a", Translated: "b"})
	m = update(t, m, NoticeMsg{Text: "warning"})

	m = update(t, m, ClearMsg{})
	if m.original != "" || m.translated != "" || m.notice != "" {
		t.Errorf("clear left state behind: %+v", m)
	}
}

func TestNoticeExpires(t *testing.T) {
	m := NewModel()
	m = update(t, m, NoticeMsg{Text: "first"})
	staleSeq := m.noticeSeq
	m = update(t, m, NoticeMsg{Text: "second"})

	m = update(t, m, noticeExpireMsg{seq: staleSeq})
	if m.notice != "second" {
		t.Error("stale expiry removed the current notice")
	}
	m = update(t, m, noticeExpireMsg{seq: m.noticeSeq})
	if m.notice != "" {
		t.Error("notice did not expire")
	}
}

func TestViewEmptyBeforeSize(t *testing.T) {
	m := NewModel()
	m = update(t, m, CaptionMsg{Translated: "line"})
	if m.View() != "" {
		t.Error("view rendered before the window size arrived")
	}
}

func TestRendererWithoutProgram(t *testing.T) {
	r := NewRenderer()
	// Headless: all of these must be safe no-ops.
	r.Show("a", "b", true)
	r.Notice("n")
	r.Clear()
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four", 9)
	want := []string{"one two", "three", "four"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestWrapTextMultibyte(t *testing.T) {
	text := "これは長い日本語の字幕テストです"
	lines := wrapText(text, 5)
	var rejoined string
	for _, line := range lines {
		if !utf8.ValidString(line) {
			t.Errorf("line %q is not valid UTF-8", line)
		}
		if n := utf8.RuneCountInString(line); n > 5 {
			t.Errorf("line %q is %d runes wide, want <= 5", line, n)
		}
		rejoined += line
	}
	if rejoined != text {
		t.Errorf("rejoined = %q, want %q", rejoined, text)
	}
}
