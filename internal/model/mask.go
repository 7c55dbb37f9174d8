package model

import (
	"fmt"
	"strings"
)

// Mask selects which metric families a sampling pass reads.
type Mask uint16

const (
	CPUFamily Mask = 1 << iota
	MemoryFamily
	DiskFamily
	NetworkFamily
	BlockIOFamily
	UsersFamily
	BatteryFamily
	HostFamily

	AllFamilies = CPUFamily | MemoryFamily | DiskFamily | NetworkFamily |
		BlockIOFamily | UsersFamily | BatteryFamily | HostFamily
)

var familyNames = []struct {
	bit  Mask
	name string
}{
	{CPUFamily, "cpu"},
	{MemoryFamily, "mem"},
	{DiskFamily, "disk"},
	{NetworkFamily, "net"},
	{BlockIOFamily, "io"},
	{UsersFamily, "users"},
	{BatteryFamily, "battery"},
	{HostFamily, "host"},
}

// Has reports whether every bit of f is set in m.
func (m Mask) Has(f Mask) bool { return f != 0 && m&f == f }

// Families splits m into its single-bit members in canonical order.
func (m Mask) Families() []Mask {
	var out []Mask
	for _, fn := range familyNames {
		if m&fn.bit != 0 {
			out = append(out, fn.bit)
		}
	}
	return out
}

func (m Mask) String() string {
	if m == 0 {
		return "none"
	}
	if m == AllFamilies {
		return "all"
	}
	var parts []string
	for _, fn := range familyNames {
		if m&fn.bit != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseMask parses a comma separated family list such as "cpu,net".
// "all" selects every family and "none" or "" selects nothing.
func ParseMask(s string) (Mask, error) {
	var m Mask
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		switch part {
		case "", "none":
			continue
		case "all":
			m |= AllFamilies
			continue
		case "memory":
			part = "mem"
		case "network":
			part = "net"
		case "blockio":
			part = "io"
		case "batt":
			part = "battery"
		}
		found := false
		for _, fn := range familyNames {
			if fn.name == part {
				m |= fn.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("model: unknown metric family %q", part)
		}
	}
	return m, nil
}
