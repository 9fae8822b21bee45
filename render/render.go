// Package render draws the live subtitle overlay. The active caption
// replaces the previous one, fades after a quiet period, and is removed
// once the fade ends.
package render

import (
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"livecap/log"
)

// FadeAfter is how long a caption stays fully visible once nothing
// replaces it; fadeOut is how long the dimmed tail lasts before removal.
const (
	FadeAfter = 5 * time.Second
	fadeOut   = 1 * time.Second
)

type CaptionMsg struct {
	Original     string
	Translated   string
	ShowOriginal bool
}

type NoticeMsg struct{ Text string }

type ClearMsg struct{}

type fadeStartMsg struct{ seq int }

type removeMsg struct{ seq int }

type noticeExpireMsg struct{ seq int }

type Model struct {
	width, height int

	seq          int
	original     string
	translated   string
	showOriginal bool
	fading       bool

	noticeSeq int
	notice    string

	copied bool
}

func NewModel() Model { return Model{} }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "c":
			m.copied = m.copyCaption()
		}

	case CaptionMsg:
		m.seq++
		m.original = msg.Original
		m.translated = msg.Translated
		m.showOriginal = msg.ShowOriginal
		m.fading = false
		m.copied = false
		seq := m.seq
		return m, tea.Tick(FadeAfter, func(time.Time) tea.Msg {
			return fadeStartMsg{seq: seq}
		})

	case fadeStartMsg:
		// A caption shown after this timer was armed keeps its own timer.
		if msg.seq != m.seq {
			return m, nil
		}
		m.fading = true
		seq := m.seq
		return m, tea.Tick(fadeOut, func(time.Time) tea.Msg {
			return removeMsg{seq: seq}
		})

	case removeMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.original = ""
		m.translated = ""
		m.fading = false

	case NoticeMsg:
		m.noticeSeq++
		m.notice = msg.Text
		seq := m.noticeSeq
		return m, tea.Tick(FadeAfter, func(time.Time) tea.Msg {
			return noticeExpireMsg{seq: seq}
		})

	case noticeExpireMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}

	case ClearMsg:
		m.seq++
		m.original = ""
		m.translated = ""
		m.fading = false
		m.noticeSeq++
		m.notice = ""
	}
	return m, nil
}

func (m *Model) copyCaption() bool {
	text := m.translated
	if text == "" {
		text = m.original
	}
	if text == "" {
		return false
	}
	if err := clipboard.WriteAll(text); err != nil {
		log.Warnf("clipboard copy failed: %v", err)
		return false
	}
	return true
}

// captionLines applies the display policy: the translation is the main
// line when present, with the original above it only when both exist,
// differ, and the user asked for it.
func captionLines(original, translated string, showOriginal bool) (main, secondary string) {
	if translated == "" {
		return original, ""
	}
	if showOriginal && original != "" && original != translated {
		return translated, original
	}
	return translated, ""
}

var (
	mainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
	secondaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	fadedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	copiedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	main, secondary := captionLines(m.original, m.translated, m.showOriginal)
	wrapWidth := m.width - 4
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	if secondary != "" {
		style := secondaryStyle
		if m.fading {
			style = fadedStyle
		}
		for _, line := range wrapText(secondary, wrapWidth) {
			b.WriteString(style.Render(line) + "\n")
		}
	}
	if main != "" {
		style := mainStyle
		if m.fading {
			style = fadedStyle
		}
		for _, line := range wrapText(main, wrapWidth) {
			b.WriteString(style.Render(line) + "\n")
		}
		if m.copied {
			b.WriteString(copiedStyle.Render("[copied]") + "\n")
		}
	}

	if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.notice) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("c copy caption · q quit"))

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Padding(1, 2).
		Render(b.String())
}

// wrapText breaks on runes, not bytes: CJK captions would otherwise be
// cut mid-sequence.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if width <= 0 {
		width = 1
	}
	runes := []rune(text)
	var lines []string
	for len(runes) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = runes[splitAt:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}

// Renderer feeds the running program from the session goroutines. A nil
// program (headless runs, tests) drops output on the floor.
type Renderer struct {
	mu      sync.Mutex
	program *tea.Program
}

func NewRenderer() *Renderer { return &Renderer{} }

func NewProgram() *tea.Program {
	return tea.NewProgram(NewModel(), tea.WithAltScreen())
}

func (r *Renderer) SetProgram(p *tea.Program) {
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()
}

func (r *Renderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (r *Renderer) Show(original, translated string, showOriginal bool) {
	r.send(CaptionMsg{Original: original, Translated: translated, ShowOriginal: showOriginal})
}

func (r *Renderer) Notice(text string) {
	r.send(NoticeMsg{Text: text})
}

func (r *Renderer) Clear() {
	r.send(ClearMsg{})
}
