package model

import "time"

// CPUCounters are cumulative scheduler ticks for one CPU aggregate.
type CPUCounters struct {
	User   uint64
	Nice   uint64
	System uint64
	Idle   uint64
}

// Total is the sum of all four fields.
func (c CPUCounters) Total() uint64 { return c.User + c.Nice + c.System + c.Idle }

// NetCounters are cumulative interface byte counters.
type NetCounters struct {
	RecvBytes uint64
	SentBytes uint64
}

// IOCounters are cumulative block device byte counters.
type IOCounters struct {
	ReadBytes    uint64
	WrittenBytes uint64
}

// CPU holds the share of the last interval spent in each state.
// Fractions are in [0,1] and sum to at most 1.
type CPU struct {
	User   float64
	Nice   float64
	System float64
	Idle   float64
}

// Busy is everything that is not idle.
func (c CPU) Busy() float64 { return c.User + c.Nice + c.System }

// Memory captures RAM usage in bytes for precision.
type Memory struct {
	TotalBytes   uint64
	FreeBytes    uint64
	BufferBytes  uint64
	SharedBytes  uint64
	UsedBytes    uint64
	UsedFraction float64
}

// Disk is the point-in-time capacity of one mounted filesystem.
type Disk struct {
	Path         string
	TotalBytes   uint64
	FreeBytes    uint64
	FreeFraction float64
}

// Network holds per-interval deltas and derived throughput for one interface.
type Network struct {
	Interface   string
	RecvDelta   uint64
	SentDelta   uint64
	RecvPerSec  float64
	SentPerSec  float64
	ElapsedSecs float64
}

// BlockIO holds per-interval deltas and derived throughput for one device.
type BlockIO struct {
	Device       string
	ReadDelta    uint64
	WrittenDelta uint64
	ReadPerSec   float64
	WritePerSec  float64
	ElapsedSecs  float64
}

// Users is the de-duplicated list of logged-in accounts in first-seen order.
type Users struct {
	Names []string
}

// First returns the first user name, or "" when nobody is logged in.
func (u Users) First() string {
	if len(u.Names) == 0 {
		return ""
	}
	return u.Names[0]
}

// Host identifies the machine and the invoking account.
type Host struct {
	User     string
	Hostname string
	Uptime   time.Duration
}

// Battery shows charge and power state.
type Battery struct {
	Fraction float64
	State    PowerState
}

// Snapshot is the immutable group of results published by one sampling pass.
// A family that never produced data keeps its zero value; Has reports which
// families carry data.
type Snapshot struct {
	Generation uint64
	Taken      time.Time
	Families   Mask

	CPU     CPU
	Memory  Memory
	Disk    Disk
	Network Network
	BlockIO BlockIO
	Users   Users
	Host    Host
	Battery Battery
}

// Has reports whether the family has been published at least once.
func (s *Snapshot) Has(m Mask) bool { return s != nil && s.Families.Has(m) }

// Clone returns a copy that shares nothing mutable with s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return &Snapshot{}
	}
	c := *s
	if s.Users.Names != nil {
		c.Users.Names = append([]string(nil), s.Users.Names...)
	}
	return &c
}

// Zero returns an empty snapshot for initialization.
func Zero() *Snapshot { return &Snapshot{} }
