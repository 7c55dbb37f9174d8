package reactor

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Dispatch rounds are recorded in microseconds, from 1us to 10s.
const (
	histMin    = 1
	histMax    = 10_000_000
	histSigFig = 3
)

// Stats summarizes how long dispatch rounds took.
type Stats struct {
	Rounds   int64
	Overruns int64 // periodic rounds that took longer than the period
	P50      time.Duration
	P99      time.Duration
	Max      time.Duration
}

type dispatchStats struct {
	mu       sync.Mutex
	hist     *hdrhistogram.Histogram
	overruns int64
}

func newDispatchStats() *dispatchStats {
	return &dispatchStats{hist: hdrhistogram.New(histMin, histMax, histSigFig)}
}

func (d *dispatchStats) record(took, period time.Duration, periodic bool) {
	us := took.Microseconds()
	if us < histMin {
		us = histMin
	}
	if us > histMax {
		us = histMax
	}
	d.mu.Lock()
	_ = d.hist.RecordValue(us)
	if periodic && took > period {
		d.overruns++
	}
	d.mu.Unlock()
}

func (d *dispatchStats) snapshot() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Rounds:   d.hist.TotalCount(),
		Overruns: d.overruns,
		P50:      time.Duration(d.hist.ValueAtQuantile(50)) * time.Microsecond,
		P99:      time.Duration(d.hist.ValueAtQuantile(99)) * time.Microsecond,
		Max:      time.Duration(d.hist.Max()) * time.Microsecond,
	}
}
