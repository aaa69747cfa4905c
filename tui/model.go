// Package tui provides the Bubble Tea stopwatch interface.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"just3sec/core"
	"just3sec/engine"
)

const tickInterval = 33 * time.Millisecond

// PersistFailedMsg tells the model a background write did not land.
type PersistFailedMsg struct{ Op string }

type tickMsg time.Time

type phase int

const (
	phaseIdle phase = iota
	phaseRunning
	phaseResult
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	unlockStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAAD14"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	displayStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4).Border(lipgloss.RoundedBorder())
)

// Model drives one session: space or enter starts and stops the
// stopwatch, c clears the history after a second confirmation, q quits.
type Model struct {
	ctx      context.Context
	session  *engine.Session
	registry *core.Registry

	phase        phase
	elapsed      time.Duration
	last         engine.AttemptResult
	confirming   bool
	notice       string
	persistFails int
}

// NewModel wraps session. registry names the unlocked achievements.
func NewModel(ctx context.Context, session *engine.Session, registry *core.Registry) *Model {
	if registry == nil {
		registry = core.DefaultRegistry()
	}
	return &Model{ctx: ctx, session: session, registry: registry}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd { return nil }

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.phase != phaseRunning {
			return m, nil
		}
		m.elapsed = m.session.Elapsed()
		return m, tick()
	case PersistFailedMsg:
		m.persistFails++
		m.notice = fmt.Sprintf("could not save (%s, %d failed so far); playing on from memory", msg.Op, m.persistFails)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		// an attempt still running is abandoned, not recorded
		return m, tea.Quit
	case " ", "space", "enter":
		m.confirming = false
		return m, m.toggle()
	case "c":
		if m.phase == phaseRunning {
			return m, nil
		}
		if !m.confirming {
			m.confirming = true
			m.notice = "press c again to clear your history"
			return m, nil
		}
		m.confirming = false
		if err := m.session.Clear(m.ctx, true); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.phase = phaseIdle
		m.last = engine.AttemptResult{}
		m.notice = "history cleared"
		return m, nil
	}
	m.confirming = false
	return m, nil
}

func (m *Model) toggle() tea.Cmd {
	if m.phase == phaseRunning {
		m.elapsed = m.session.Elapsed()
		res, ok := m.session.Stop(m.ctx)
		if !ok {
			m.phase = phaseIdle
			return nil
		}
		m.last = res
		m.phase = phaseResult
		m.notice = ""
		return nil
	}
	if !m.session.Start() {
		return nil
	}
	m.phase = phaseRunning
	m.elapsed = 0
	m.notice = ""
	return tick()
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	user := string(m.session.User())
	if user == "" {
		user = "anonymous"
	}
	b.WriteString(titleStyle.Render("just 3 seconds") + labelStyle.Render("  "+user) + "\n\n")
	b.WriteString(m.renderDisplay() + "\n\n")

	snap := m.session.Snapshot()
	fmt.Fprintf(&b, "%s %.2f   %s %d   %s %s\n",
		labelStyle.Render("rating"), snap.Rating(),
		labelStyle.Render("games"), snap.TotalGames,
		labelStyle.Render("best"), formatBest(snap.BestRecord))
	if chart := m.session.Chart(); len(chart) > 0 {
		b.WriteString(labelStyle.Render("recent ") + Sparkline(chart) + "\n")
	}

	if m.phase == phaseResult {
		b.WriteString("\n" + m.renderResult())
	}
	if m.notice != "" {
		b.WriteString("\n" + badStyle.Render(m.notice) + "\n")
	}
	b.WriteString("\n" + footerStyle.Render("space/enter start-stop · c clear · q quit"))
	return b.String()
}

func (m *Model) renderDisplay() string {
	switch m.phase {
	case phaseRunning:
		opacity := core.FeedbackOpacity(m.elapsed)
		text := fmt.Sprintf("%5.2f", m.elapsed.Seconds())
		if opacity == 0 {
			text = " ?.??"
		}
		return displayStyle.Foreground(Fade(opacity)).Render(text)
	case phaseResult:
		return displayStyle.Render(fmt.Sprintf("%5.2f", m.elapsed.Seconds()))
	default:
		return displayStyle.Foreground(lipgloss.Color("#8C8C8C")).Render(" 0.00")
	}
}

func (m *Model) renderResult() string {
	var b strings.Builder
	style := badStyle
	if m.last.ScoreDelta > 0 {
		style = goodStyle
	}
	fmt.Fprintf(&b, "%s %s   %s %s\n",
		labelStyle.Render("off by"), style.Render(fmt.Sprintf("%dms", m.last.ErrorMs)),
		labelStyle.Render("score"), style.Render(fmt.Sprintf("+%.3f", m.last.ScoreDelta)))
	for _, id := range m.last.NewlyUnlocked {
		name := string(id)
		if a, ok := m.registry.Get(id); ok {
			name = a.Name
		}
		b.WriteString(unlockStyle.Render("★ "+name) + "\n")
	}
	return b.String()
}

func formatBest(best *int64) string {
	if best == nil {
		return "-"
	}
	return fmt.Sprintf("%dms", *best)
}

// Fade maps an opacity in [0, 1] onto a grey between the terminal
// background and full brightness.
func Fade(opacity float64) lipgloss.Color {
	const lo, hi = 0x20, 0xF0
	opacity = math.Max(0, math.Min(1, opacity))
	v := lo + int(math.Round(float64(hi-lo)*opacity))
	return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", v, v, v))
}

var sparks = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws samples, taller meaning a larger error. Errors beyond
// the score cutoff use the tallest bar.
func Sparkline(samples []int64) string {
	out := make([]rune, len(samples))
	for i, s := range samples {
		if s < 0 {
			s = 0
		}
		idx := int(float64(s) / core.ScoreCutoffMs * float64(len(sparks)-1))
		if idx >= len(sparks) {
			idx = len(sparks) - 1
		}
		out[i] = sparks[idx]
	}
	return string(out)
}
