//go:build linux

package sampler

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Dicklesworthstone/bpulse/internal/model"
)

// readBattery scans the power supply class under root. The first battery
// wins; a machine with only mains power reports a full charge on AC.
func readBattery(root string) (model.Battery, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Battery{}, ErrNoBattery
		}
		return model.Battery{}, fmt.Errorf("read %s: %w", root, err)
	}

	mainsOnline := false
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		switch readAttr(dir, "type") {
		case "Mains":
			if readAttr(dir, "online") == "1" {
				mainsOnline = true
			}
		case "Battery":
			capStr := readAttr(dir, "capacity")
			if capStr == "" {
				continue
			}
			pct, err := strconv.ParseFloat(capStr, 64)
			if err != nil {
				return model.Battery{}, fmt.Errorf("parse %s capacity %q: %w", e.Name(), capStr, err)
			}
			return model.Battery{
				Fraction: clamp01(pct / 100),
				State:    classifyStatus(readAttr(dir, "status")),
			}, nil
		}
	}
	if mainsOnline {
		return model.Battery{Fraction: 1, State: model.ACPower}, nil
	}
	return model.Battery{}, ErrNoBattery
}

func classifyStatus(status string) model.PowerState {
	switch strings.ToLower(status) {
	case "charging":
		return model.BatteryCharging
	case "discharging":
		return model.BatteryDischarging
	case "full", "not charging":
		return model.ACPower
	default:
		return model.PowerUnknown
	}
}

func readAttr(dir, name string) string {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
