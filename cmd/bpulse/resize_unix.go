//go:build unix

package main

import (
	"syscall"

	"github.com/Dicklesworthstone/bpulse/internal/reactor"
	"github.com/Dicklesworthstone/bpulse/internal/ui"
)

func registerResize(r *reactor.Reactor, surf *ui.Surface) error {
	return r.RegisterSignalHandler(syscall.SIGWINCH, func(syscall.Signal) int {
		surf.Resize()
		return 0
	})
}
