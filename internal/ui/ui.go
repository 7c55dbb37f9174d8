package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/bpulse/internal/model"
)

// Prober asks for a fresh sample without waiting for it.
type Prober interface {
	Probe()
}

// Messages
type (
	// TickMsg carries the latest published snapshot on every frame.
	TickMsg struct {
		Snapshot *model.Snapshot
		Now      time.Time
	}
	// RefreshMsg reports that a manual probe was requested.
	RefreshMsg struct{}
)

// smoothing blends each frame as old*smoothKeep + new*(1-smoothKeep).
const smoothKeep = 0.9

type gauges struct {
	user, nice, system float64
	mem, diskUsed      float64
	rx, tx, rd, wr     float64
	battery            float64
}

func ema(old, cur float64) float64 { return smoothKeep*old + (1-smoothKeep)*cur }

func (g *gauges) step(s *model.Snapshot) {
	g.user = ema(g.user, s.CPU.User)
	g.nice = ema(g.nice, s.CPU.Nice)
	g.system = ema(g.system, s.CPU.System)
	g.mem = ema(g.mem, s.Memory.UsedFraction)
	if s.Has(model.DiskFamily) {
		g.diskUsed = ema(g.diskUsed, 1-s.Disk.FreeFraction)
	}
	g.rx = ema(g.rx, s.Network.RecvPerSec)
	g.tx = ema(g.tx, s.Network.SentPerSec)
	g.rd = ema(g.rd, s.BlockIO.ReadPerSec)
	g.wr = ema(g.wr, s.BlockIO.WritePerSec)
	g.battery = ema(g.battery, s.Battery.Fraction)
}

// Model renders live snapshots from the sampler. It is driven by the
// reactor through Update rather than by a tea.Program.
type Model struct {
	keys   keyMap
	prober Prober
	snap   *model.Snapshot
	smooth gauges
	now    time.Time
	width  int
	height int
	paused bool
	frames uint64
}

func New(p Prober) *Model {
	return &Model{
		keys:   defaultKeyMap(),
		prober: p,
		snap:   model.Zero(),
		width:  80,
		height: 24,
	}
}

func (m *Model) Init() tea.Cmd { return nil }

// Paused reports whether rendering and probing are suspended.
func (m *Model) Paused() bool { return m.paused }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.refresh
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		}
	case TickMsg:
		if m.paused {
			return m, nil
		}
		if msg.Snapshot != nil {
			m.snap = msg.Snapshot
		}
		m.now = msg.Now
		m.smooth.step(m.snap)
		m.frames++
	}
	return m, nil
}

func (m *Model) refresh() tea.Msg {
	if m.prober != nil {
		m.prober.Probe()
	}
	return RefreshMsg{}
}

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	gaugeFill   = "█"
	gaugeEmpty  = "░"
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
)

const gaugeWidth = 20

func (m *Model) View() string {
	s := m.snap
	g := m.smooth

	clock := "--:--:--"
	if !m.now.IsZero() {
		clock = m.now.Format("15:04:05  Mon 02 Jan")
	}
	header := titleStyle.Render("bpulse") + "  " + subtleStyle.Render(clock)
	if m.paused {
		header += "  " + labelStyle.Render("[paused]")
	}

	var cards []string
	if s.Has(model.CPUFamily) {
		cards = append(cards, card("CPU", fmt.Sprintf("%s\nusr %4.1f%%  nic %4.1f%%  sys %4.1f%%",
			gaugeBar(g.user+g.nice+g.system, gaugeWidth),
			100*g.user, 100*g.nice, 100*g.system)))
	}
	if s.Has(model.MemoryFamily) {
		cards = append(cards, card("Memory", fmt.Sprintf("%s\n%s / %s",
			gaugeBar(g.mem, gaugeWidth),
			humanBytes(float64(s.Memory.UsedBytes)), humanBytes(float64(s.Memory.TotalBytes)))))
	}
	if s.Has(model.DiskFamily) {
		cards = append(cards, card("Disk "+truncate(s.Disk.Path, 12), fmt.Sprintf("%s\n%s free",
			gaugeBar(g.diskUsed, gaugeWidth), humanBytes(float64(s.Disk.FreeBytes)))))
	}
	line1 := lipgloss.JoinHorizontal(lipgloss.Top, cards...)

	cards = cards[:0]
	if s.Has(model.NetworkFamily) {
		cards = append(cards, card("Net "+orAll(s.Network.Interface), fmt.Sprintf("rx %9s/s\ntx %9s/s",
			humanBytes(g.rx), humanBytes(g.tx))))
	}
	if s.Has(model.BlockIOFamily) {
		cards = append(cards, card("IO "+orAll(s.BlockIO.Device), fmt.Sprintf("rd %9s/s\nwr %9s/s",
			humanBytes(g.rd), humanBytes(g.wr))))
	}
	if s.Has(model.BatteryFamily) {
		cards = append(cards, card("Battery", fmt.Sprintf("%s\n%s",
			gaugeBar(g.battery, gaugeWidth), s.Battery.State)))
	}
	if s.Has(model.UsersFamily) || s.Has(model.HostFamily) {
		cards = append(cards, card("Host", hostLine(s)))
	}
	line2 := lipgloss.JoinHorizontal(lipgloss.Top, cards...)

	footer := subtleStyle.Render(m.keys.help())
	return lipgloss.JoinVertical(lipgloss.Left, header, line1, line2, footer)
}

func hostLine(s *model.Snapshot) string {
	var b strings.Builder
	if s.Has(model.HostFamily) {
		fmt.Fprintf(&b, "%s@%s  up %s", s.Host.User, s.Host.Hostname, s.Host.Uptime.Truncate(time.Minute))
	}
	if s.Has(model.UsersFamily) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		switch n := len(s.Users.Names); n {
		case 0:
			b.WriteString("no users")
		case 1:
			b.WriteString(s.Users.First())
		default:
			fmt.Fprintf(&b, "%s +%d", s.Users.First(), n-1)
		}
	}
	return b.String()
}

// Helpers
func gaugeBar(frac float64, width int) string {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		frac*100)
}

func card(title, body string) string {
	return cardStyle.Render(labelStyle.Render(title) + "\n" + body)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orAll(name string) string {
	if name == "" {
		return "all"
	}
	return name
}

func humanBytes(b float64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%.0f B", b)
	}
	div, exp := float64(unit), 0
	for n := b / unit; n >= unit && exp < 4; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", b/div, "KMGTP"[exp])
}
