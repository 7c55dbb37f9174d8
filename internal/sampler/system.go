package sampler

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"

	"github.com/Dicklesworthstone/bpulse/internal/model"
)

// gopsutil reports CPU time in seconds; convert back to USER_HZ ticks so the
// counters stay integral.
const clockTicks = 100

// SystemSource reads counters from the running OS through gopsutil.
type SystemSource struct {
	// PowerSupplyRoot is the sysfs power supply class directory.
	PowerSupplyRoot string
	// Getenv resolves the invoking user; defaults to os.Getenv.
	Getenv func(string) string
}

// NewSystemSource returns a Source for the local machine.
func NewSystemSource() *SystemSource {
	return &SystemSource{
		PowerSupplyRoot: "/sys/class/power_supply",
		Getenv:          os.Getenv,
	}
}

func isAggregate(name string) bool {
	switch name {
	case "", "all", "cpu", "cpu-total":
		return true
	}
	return false
}

func (s *SystemSource) CPU(name string) (model.CPUCounters, error) {
	times, err := cpu.Times(!isAggregate(name))
	if err != nil {
		return model.CPUCounters{}, fmt.Errorf("read cpu times: %w", err)
	}
	for _, t := range times {
		if isAggregate(name) || t.CPU == name {
			return model.CPUCounters{
				User:   toTicks(t.User),
				Nice:   toTicks(t.Nice),
				System: toTicks(t.System),
				Idle:   toTicks(t.Idle),
			}, nil
		}
	}
	return model.CPUCounters{}, fmt.Errorf("%w: cpu %q", ErrUnknownDevice, name)
}

func toTicks(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(math.Round(seconds * clockTicks))
}

func (s *SystemSource) Network(iface string) (model.NetCounters, error) {
	all := iface == "" || iface == "all"
	counters, err := net.IOCounters(!all)
	if err != nil {
		return model.NetCounters{}, fmt.Errorf("read net counters: %w", err)
	}
	for _, c := range counters {
		if all || c.Name == iface {
			return model.NetCounters{RecvBytes: c.BytesRecv, SentBytes: c.BytesSent}, nil
		}
	}
	return model.NetCounters{}, fmt.Errorf("%w: interface %q", ErrUnknownDevice, iface)
}

// BlockIO returns byte counters for one device, or the sum over all whole
// devices when device is empty.
func (s *SystemSource) BlockIO(device string) (model.IOCounters, error) {
	if device != "" && device != "all" {
		counters, err := disk.IOCounters(device)
		if err != nil {
			return model.IOCounters{}, fmt.Errorf("read disk counters: %w", err)
		}
		st, ok := counters[device]
		if !ok {
			return model.IOCounters{}, fmt.Errorf("%w: block device %q", ErrUnknownDevice, device)
		}
		return model.IOCounters{ReadBytes: st.ReadBytes, WrittenBytes: st.WriteBytes}, nil
	}

	counters, err := disk.IOCounters()
	if err != nil {
		return model.IOCounters{}, fmt.Errorf("read disk counters: %w", err)
	}
	return sumWholeDevices(counters), nil
}

// sumWholeDevices adds up the counters of every whole device. Loop and ram
// devices and partitions are skipped so nothing is counted twice.
func sumWholeDevices(counters map[string]disk.IOCountersStat) model.IOCounters {
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	var sum model.IOCounters
	for name, st := range counters {
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") || isPartition(name, names) {
			continue
		}
		sum.ReadBytes += st.ReadBytes
		sum.WrittenBytes += st.WriteBytes
	}
	return sum
}

// isPartition reports whether name is a partition of another listed device:
// digits after a parent ending in a letter (sda1), or p and digits after a
// parent ending in a digit (nvme0n1p2, mmcblk0p1). Siblings such as sdaa,
// dm-10 or nvme0n10 are whole devices.
func isPartition(name string, names []string) bool {
	for _, parent := range names {
		if len(parent) == 0 || len(parent) >= len(name) || !strings.HasPrefix(name, parent) {
			continue
		}
		suffix := name[len(parent):]
		if isDigit(parent[len(parent)-1]) {
			if len(suffix) < 2 || suffix[0] != 'p' {
				continue
			}
			suffix = suffix[1:]
		}
		if allDigits(suffix) {
			return true
		}
	}
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func (s *SystemSource) DiskUsage(path string) (model.Disk, error) {
	if path == "" {
		path = "/"
	}
	st, err := disk.Usage(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Disk{}, fmt.Errorf("%w: mount %q", ErrUnknownDevice, path)
		}
		return model.Disk{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	d := model.Disk{Path: path, TotalBytes: st.Total, FreeBytes: st.Free}
	if st.Total > 0 {
		d.FreeFraction = float64(st.Free) / float64(st.Total)
	}
	return d, nil
}

func (s *SystemSource) Memory() (model.Memory, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return model.Memory{}, fmt.Errorf("read memory: %w", err)
	}
	m := model.Memory{
		TotalBytes:  vm.Total,
		FreeBytes:   vm.Free,
		BufferBytes: vm.Buffers,
		SharedBytes: vm.Shared,
		UsedBytes:   vm.Used,
	}
	if vm.Total > 0 {
		m.UsedFraction = float64(vm.Used) / float64(vm.Total)
	}
	return m, nil
}

// Sessions lists login records. gopsutil already drops everything except
// user processes from utmp.
func (s *SystemSource) Sessions() ([]Session, error) {
	users, err := host.Users()
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	out := make([]Session, 0, len(users))
	for _, u := range users {
		out = append(out, Session{User: u.User, UserProcess: true})
	}
	return out, nil
}

func (s *SystemSource) Host() (model.Host, error) {
	info, err := host.Info()
	if err != nil {
		return model.Host{}, fmt.Errorf("read host info: %w", err)
	}
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	return model.Host{
		User:     getenv("USER"),
		Hostname: info.Hostname,
		Uptime:   time.Duration(info.Uptime) * time.Second,
	}, nil
}

func (s *SystemSource) Battery() (model.Battery, error) {
	return readBattery(s.PowerSupplyRoot)
}
