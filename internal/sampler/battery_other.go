//go:build !linux

package sampler

import (
	"errors"
	"fmt"

	"github.com/Dicklesworthstone/bpulse/internal/model"
)

func readBattery(string) (model.Battery, error) {
	return model.Battery{}, fmt.Errorf("battery: %w", errors.ErrUnsupported)
}
