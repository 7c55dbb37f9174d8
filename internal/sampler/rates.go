package sampler

import (
	"time"

	"github.com/Dicklesworthstone/bpulse/internal/model"
)

// counterDelta is cur-prev, or 0 when the counter went backwards (device
// reset or wrap).
func counterDelta(prev, cur uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}

// cpuRates converts two tick readings into state fractions. Each field delta
// is clamped at zero and divided by the sum of the clamped deltas, so the
// result is never negative and never sums above 1. ok is false when no ticks
// elapsed.
func cpuRates(prev, cur model.CPUCounters) (rates model.CPU, ok bool) {
	user := counterDelta(prev.User, cur.User)
	nice := counterDelta(prev.Nice, cur.Nice)
	system := counterDelta(prev.System, cur.System)
	idle := counterDelta(prev.Idle, cur.Idle)
	total := user + nice + system + idle
	if total == 0 {
		return model.CPU{}, false
	}
	t := float64(total)
	return model.CPU{
		User:   float64(user) / t,
		Nice:   float64(nice) / t,
		System: float64(system) / t,
		Idle:   float64(idle) / t,
	}, true
}

func perSecond(delta uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(delta) / elapsed.Seconds()
}

func networkRate(iface string, prev, cur model.NetCounters, elapsed time.Duration) model.Network {
	rx := counterDelta(prev.RecvBytes, cur.RecvBytes)
	tx := counterDelta(prev.SentBytes, cur.SentBytes)
	return model.Network{
		Interface:   iface,
		RecvDelta:   rx,
		SentDelta:   tx,
		RecvPerSec:  perSecond(rx, elapsed),
		SentPerSec:  perSecond(tx, elapsed),
		ElapsedSecs: elapsed.Seconds(),
	}
}

func blockIORate(device string, prev, cur model.IOCounters, elapsed time.Duration) model.BlockIO {
	rd := counterDelta(prev.ReadBytes, cur.ReadBytes)
	wr := counterDelta(prev.WrittenBytes, cur.WrittenBytes)
	return model.BlockIO{
		Device:       device,
		ReadDelta:    rd,
		WrittenDelta: wr,
		ReadPerSec:   perSecond(rd, elapsed),
		WritePerSec:  perSecond(wr, elapsed),
		ElapsedSecs:  elapsed.Seconds(),
	}
}

// loggedInUsers keeps user-process sessions and drops repeated names,
// preserving the order in which names were first seen.
func loggedInUsers(sessions []Session) []string {
	seen := make(map[string]struct{}, len(sessions))
	names := make([]string, 0, len(sessions))
	for _, s := range sessions {
		if !s.UserProcess || s.User == "" {
			continue
		}
		if _, dup := seen[s.User]; dup {
			continue
		}
		seen[s.User] = struct{}{}
		names = append(names, s.User)
	}
	return names
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
