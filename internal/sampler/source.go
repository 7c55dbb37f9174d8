package sampler

import (
	"errors"
	"fmt"

	"github.com/Dicklesworthstone/bpulse/internal/model"
)

// ErrUnknownDevice is returned when a configured CPU, interface, block device
// or mount path matches nothing on this machine. Retrying does not help until
// the identifier changes.
var ErrUnknownDevice = errors.New("sampler: unknown device")

// ErrNoBattery is returned on machines without a power supply class entry.
var ErrNoBattery = errors.New("sampler: no battery present")

// Session is one login record. Only entries with UserProcess set count as
// logged-in users.
type Session struct {
	User        string
	UserProcess bool
}

// Source reads raw OS counters. Counter methods return cumulative values;
// the sampler turns consecutive readings into rates.
type Source interface {
	CPU(name string) (model.CPUCounters, error)
	Network(iface string) (model.NetCounters, error)
	BlockIO(device string) (model.IOCounters, error)
	DiskUsage(path string) (model.Disk, error)
	Memory() (model.Memory, error)
	Sessions() ([]Session, error)
	Host() (model.Host, error)
	Battery() (model.Battery, error)
}

// FamilyError records a failed read of one metric family during a pass.
type FamilyError struct {
	Family model.Mask
	Err    error
}

func (e *FamilyError) Error() string {
	return fmt.Sprintf("sampler: %s: %v", e.Family, e.Err)
}

func (e *FamilyError) Unwrap() error { return e.Err }

// Transient reports whether the next pass may succeed without a
// configuration change.
func (e *FamilyError) Transient() bool {
	return !errors.Is(e.Err, ErrUnknownDevice) &&
		!errors.Is(e.Err, ErrNoBattery) &&
		!errors.Is(e.Err, errors.ErrUnsupported)
}
