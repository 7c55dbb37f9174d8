package ui

import (
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
)

// DecodeKeys turns raw terminal input into key messages. Only the keys the
// gadget binds are recognised: control bytes, printable runes, and escape.
// CSI and SS3 sequences are skipped and decoding resumes after them.
func DecodeKeys(b []byte) []tea.KeyMsg {
	var out []tea.KeyMsg
	for len(b) > 0 {
		c := b[0]
		switch {
		case c == 0x1b:
			if len(b) > 1 && (b[1] == '[' || b[1] == 'O') {
				// CSI/SS3 sequences carry nothing we bind.
				b = b[escapeLen(b):]
				continue
			}
			out = append(out, tea.KeyMsg{Type: tea.KeyEsc})
			b = b[1:]
		case c == '\r' || c == '\n':
			out = append(out, tea.KeyMsg{Type: tea.KeyEnter})
			b = b[1:]
		case c == ' ':
			out = append(out, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			b = b[1:]
		case c < 0x20 || c == 0x7f:
			// Control bytes map directly onto bubbletea's key types
			// (0x03 is KeyCtrlC, 0x7f is KeyBackspace).
			out = append(out, tea.KeyMsg{Type: tea.KeyType(c)})
			b = b[1:]
		default:
			r, size := utf8.DecodeRune(b)
			if r == utf8.RuneError && size <= 1 {
				b = b[1:]
				continue
			}
			out = append(out, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
			b = b[size:]
		}
	}
	return out
}

// escapeLen returns the length of the CSI or SS3 sequence at the start of b:
// ESC, the introducer, any parameter bytes, and a final byte in 0x40-0x7e.
// An unterminated sequence runs to the end of b.
func escapeLen(b []byte) int {
	for i := 2; i < len(b); i++ {
		if b[i] >= 0x40 && b[i] <= 0x7e {
			return i + 1
		}
	}
	return len(b)
}
