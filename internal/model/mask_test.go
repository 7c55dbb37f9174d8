package model

import "testing"

func TestParseMask(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Mask
		wantErr bool
	}{
		{name: "empty selects nothing", in: "", want: 0},
		{name: "all", in: "all", want: AllFamilies},
		{name: "list with spaces", in: "cpu, net ,io", want: CPUFamily | NetworkFamily | BlockIOFamily},
		{name: "long aliases", in: "memory,network,blockio,batt", want: MemoryFamily | NetworkFamily | BlockIOFamily | BatteryFamily},
		{name: "case insensitive", in: "CPU,Users", want: CPUFamily | UsersFamily},
		{name: "unknown family", in: "cpu,gpu", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMask(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMask(%q) error = nil, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMask(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseMask(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMaskStringRoundTrip(t *testing.T) {
	for _, m := range []Mask{CPUFamily, CPUFamily | DiskFamily, AllFamilies, UsersFamily | HostFamily} {
		got, err := ParseMask(m.String())
		if err != nil {
			t.Fatalf("ParseMask(%q) error = %v", m.String(), err)
		}
		if got != m {
			t.Errorf("round trip of %v = %v", m, got)
		}
	}
	if Mask(0).String() != "none" {
		t.Errorf("zero mask = %q, want none", Mask(0).String())
	}
}

func TestMaskHas(t *testing.T) {
	m := CPUFamily | NetworkFamily
	if !m.Has(CPUFamily) || !m.Has(NetworkFamily) {
		t.Error("expected cpu and net bits set")
	}
	if m.Has(DiskFamily) {
		t.Error("disk bit should not be set")
	}
	if m.Has(0) {
		t.Error("empty family should never match")
	}
	if got := len(AllFamilies.Families()); got != 8 {
		t.Errorf("AllFamilies has %d members, want 8", got)
	}
}

func TestSnapshotClone(t *testing.T) {
	s := &Snapshot{Generation: 3, Users: Users{Names: []string{"ann", "bob"}}}
	c := s.Clone()
	c.Users.Names[0] = "zed"
	if s.Users.Names[0] != "ann" {
		t.Error("clone shares user slice with original")
	}
	if c.Generation != 3 {
		t.Errorf("clone generation = %d, want 3", c.Generation)
	}
	var nilSnap *Snapshot
	if nilSnap.Has(CPUFamily) {
		t.Error("nil snapshot reports data")
	}
}
