//go:build !unix

package main

import (
	"github.com/Dicklesworthstone/bpulse/internal/reactor"
	"github.com/Dicklesworthstone/bpulse/internal/ui"
)

func registerResize(*reactor.Reactor, *ui.Surface) error { return nil }
