package model

import "encoding/json"

// PowerState classifies where the machine draws power from.
type PowerState int

const (
	PowerUnknown PowerState = iota
	ACPower
	BatteryCharging
	BatteryDischarging
)

func (p PowerState) String() string {
	switch p {
	case ACPower:
		return "ac"
	case BatteryCharging:
		return "charging"
	case BatteryDischarging:
		return "discharging"
	default:
		return "unknown"
	}
}

// MarshalJSON writes the state by name so the JSON output stays readable.
func (p PowerState) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }
