package ui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	enterAltScreen = "\x1b[?1049h\x1b[?25l"
	leaveAltScreen = "\x1b[?25h\x1b[?1049l"
	homeAndClear   = "\x1b[H\x1b[2J"
)

// Screen is the drawing surface the Surface renders onto.
type Screen interface {
	Fd() int
	Read(p []byte) (int, error)
	Size() (width, height int, err error)
	Draw(frame string) error
}

// Terminal is a raw-mode terminal screen.
type Terminal struct {
	in    *os.File
	out   io.Writer
	fd    int
	state *term.State
}

// OpenTerminal switches in to raw mode and enters the alternate screen on
// out. in must be a terminal.
func OpenTerminal(in *os.File, out io.Writer) (*Terminal, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("ui: %s is not a terminal", in.Name())
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("ui: raw mode: %w", err)
	}
	t := &Terminal{in: in, out: out, fd: fd, state: state}
	if _, err := io.WriteString(out, enterAltScreen); err != nil {
		_ = term.Restore(fd, state)
		return nil, fmt.Errorf("ui: enter alt screen: %w", err)
	}
	return t, nil
}

func (t *Terminal) Fd() int { return t.fd }

func (t *Terminal) Read(p []byte) (int, error) { return t.in.Read(p) }

func (t *Terminal) Size() (int, int, error) { return term.GetSize(t.fd) }

// Draw replaces the screen contents with frame. Raw mode disables output
// post-processing, so newlines are expanded to CRLF here.
func (t *Terminal) Draw(frame string) error {
	frame = strings.ReplaceAll(frame, "\n", "\r\n")
	_, err := io.WriteString(t.out, homeAndClear+frame)
	return err
}

// Close leaves the alternate screen and restores the original mode.
func (t *Terminal) Close() error {
	_, werr := io.WriteString(t.out, leaveAltScreen)
	return errors.Join(werr, term.Restore(t.fd, t.state))
}
