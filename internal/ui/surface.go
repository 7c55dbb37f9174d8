package ui

import (
	"errors"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/bpulse/internal/model"
)

// Surface feeds reactor events into a Model and draws its view on a Screen.
// All methods run on the reactor goroutine.
type Surface struct {
	model  *Model
	screen Screen
	quit   func()
	logger *slog.Logger
	buf    []byte
}

// NewSurface binds m to screen. quit is called when the model asks to exit
// or the input stream ends.
func NewSurface(m *Model, screen Screen, quit func(), logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Surface{model: m, screen: screen, quit: quit, logger: logger, buf: make([]byte, 256)}
}

// Fd is the descriptor to watch for input.
func (s *Surface) Fd() int { return s.screen.Fd() }

// Paused reports whether the model has suspended updates.
func (s *Surface) Paused() bool { return s.model.Paused() }

// HandleInput reads pending input and dispatches key presses. It is an
// event handler for Fd.
func (s *Surface) HandleInput() int {
	n, err := s.screen.Read(s.buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.logger.Info("ui: input closed")
			s.quit()
			return 0
		}
		s.logger.Warn("ui: read input", slog.String("error", err.Error()))
		return 0
	}
	for _, k := range DecodeKeys(s.buf[:n]) {
		if s.send(k) {
			return 0
		}
	}
	return 0
}

// Render advances one frame with snap and redraws.
func (s *Surface) Render(snap *model.Snapshot, now time.Time) int {
	s.send(TickMsg{Snapshot: snap, Now: now})
	if s.model.Paused() {
		return 0
	}
	if err := s.screen.Draw(s.model.View()); err != nil {
		s.logger.Warn("ui: draw", slog.String("error", err.Error()))
	}
	return 0
}

// Resize re-reads the screen size.
func (s *Surface) Resize() {
	w, h, err := s.screen.Size()
	if err != nil {
		s.logger.Debug("ui: size", slog.String("error", err.Error()))
		return
	}
	s.send(tea.WindowSizeMsg{Width: w, Height: h})
}

// send runs msg through Update and executes returned commands inline. It
// reports whether the model asked to quit.
func (s *Surface) send(msg tea.Msg) bool {
	for msg != nil {
		_, cmd := s.model.Update(msg)
		if cmd == nil {
			return false
		}
		msg = cmd()
		switch m := msg.(type) {
		case tea.QuitMsg:
			s.quit()
			return true
		case tea.BatchMsg:
			for _, c := range m {
				if c != nil && s.send(c()) {
					return true
				}
			}
			return false
		}
	}
	return false
}
