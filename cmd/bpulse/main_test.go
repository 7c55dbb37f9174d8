package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Dicklesworthstone/bpulse/internal/model"
	"github.com/Dicklesworthstone/bpulse/internal/sampler"
)

type stubSource struct {
	cpuCalls int
}

func (s *stubSource) CPU(string) (model.CPUCounters, error) {
	s.cpuCalls++
	return model.CPUCounters{User: uint64(100 * s.cpuCalls), Idle: uint64(300 * s.cpuCalls)}, nil
}

func (s *stubSource) Network(string) (model.NetCounters, error) { return model.NetCounters{}, nil }

func (s *stubSource) BlockIO(string) (model.IOCounters, error) { return model.IOCounters{}, nil }

func (s *stubSource) DiskUsage(string) (model.Disk, error) {
	return model.Disk{}, errors.New("statfs: permission denied")
}

func (s *stubSource) Memory() (model.Memory, error) {
	return model.Memory{TotalBytes: 100, UsedBytes: 50, UsedFraction: 0.5}, nil
}

func (s *stubSource) Sessions() ([]sampler.Session, error) { return nil, nil }

func (s *stubSource) Host() (model.Host, error) { return model.Host{Hostname: "box"}, nil }

func (s *stubSource) Battery() (model.Battery, error) { return model.Battery{}, sampler.ErrNoBattery }

func TestWriteJSON(t *testing.T) {
	smp := sampler.New(&stubSource{},
		sampler.WithMask(model.CPUFamily|model.MemoryFamily|model.DiskFamily|model.HostFamily))
	defer smp.Close()

	var buf bytes.Buffer
	if err := writeJSON(&buf, smp, 10*time.Millisecond); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}

	var out struct {
		Generation uint64
		Families   string
		CPU        model.CPU
		Host       model.Host
		Errors     []string
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", buf.String(), err)
	}
	if out.Generation != 2 {
		t.Errorf("generation = %d, want 2", out.Generation)
	}
	if out.CPU.User != 0.25 || out.CPU.Idle != 0.75 {
		t.Errorf("cpu = %+v, want user 0.25 idle 0.75", out.CPU)
	}
	if out.Families != "cpu,mem,host" {
		t.Errorf("families = %q, want cpu,mem,host", out.Families)
	}
	if out.Host.Hostname != "box" {
		t.Errorf("host = %+v", out.Host)
	}
	if len(out.Errors) != 1 {
		t.Errorf("errors = %v, want the disk failure", out.Errors)
	}
}
