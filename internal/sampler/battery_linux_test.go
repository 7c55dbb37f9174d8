//go:build linux

package sampler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Dicklesworthstone/bpulse/internal/model"
)

func writeSupply(t *testing.T, root, name string, attrs map[string]string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for k, v := range attrs {
		if err := os.WriteFile(filepath.Join(dir, k), []byte(v+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestReadBattery(t *testing.T) {
	tests := []struct {
		name     string
		supplies map[string]map[string]string
		want     model.Battery
		wantErr  error
	}{
		{
			name: "discharging laptop",
			supplies: map[string]map[string]string{
				"AC":   {"type": "Mains", "online": "0"},
				"BAT0": {"type": "Battery", "capacity": "42", "status": "Discharging"},
			},
			want: model.Battery{Fraction: 0.42, State: model.BatteryDischarging},
		},
		{
			name: "charging",
			supplies: map[string]map[string]string{
				"BAT1": {"type": "Battery", "capacity": "80", "status": "Charging"},
			},
			want: model.Battery{Fraction: 0.8, State: model.BatteryCharging},
		},
		{
			name: "full on ac",
			supplies: map[string]map[string]string{
				"BAT0": {"type": "Battery", "capacity": "100", "status": "Full"},
			},
			want: model.Battery{Fraction: 1, State: model.ACPower},
		},
		{
			name: "desktop with mains only",
			supplies: map[string]map[string]string{
				"ADP1": {"type": "Mains", "online": "1"},
			},
			want: model.Battery{Fraction: 1, State: model.ACPower},
		},
		{
			name: "odd status",
			supplies: map[string]map[string]string{
				"BAT0": {"type": "Battery", "capacity": "10", "status": "Mystery"},
			},
			want: model.Battery{Fraction: 0.1, State: model.PowerUnknown},
		},
		{
			name:     "nothing present",
			supplies: map[string]map[string]string{},
			wantErr:  ErrNoBattery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for name, attrs := range tt.supplies {
				writeSupply(t, root, name, attrs)
			}
			got, err := readBattery(root)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("readBattery: %v", err)
			}
			if got != tt.want {
				t.Errorf("readBattery = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadBatteryMissingRoot(t *testing.T) {
	_, err := readBattery(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, ErrNoBattery) {
		t.Errorf("err = %v, want ErrNoBattery", err)
	}
}

func TestReadBatteryBadCapacity(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "BAT0", map[string]string{"type": "Battery", "capacity": "lots"})
	if _, err := readBattery(root); err == nil {
		t.Error("expected parse error")
	}
}
