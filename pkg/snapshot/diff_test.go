package snapshot

import (
	"testing"
)

func sample() map[string]any {
	return map[string]any{
		"show running-config": RestructureConfig("hostname r1\ninterface Gi0/1\n description uplink\n ip address 10.0.0.1 255.255.255.0\n"),
		"show interfaces status": Restructure([]map[string]any{
			{"interface": "Gi0/1", "status": "connected", "vlan": "1"},
			{"interface": "Gi0/2", "status": "notconnect", "vlan": "1"},
		}),
		"show version": "Cisco IOS Software, Version 15.2",
	}
}

func TestCompare_Self(t *testing.T) {
	if changes := Compare(sample(), sample()); len(changes) != 0 {
		t.Errorf("self diff = %v, want none", changes)
	}
}

func TestCompare_OneChange(t *testing.T) {
	cur := sample()
	cur["show interfaces status"] = Restructure([]map[string]any{
		{"interface": "Gi0/1", "status": "connected", "vlan": "1"},
		{"interface": "Gi0/2", "status": "connected", "vlan": "1"},
	})

	changes := Compare(sample(), cur)
	if len(changes) != 1 {
		t.Fatalf("got %d changes %v, want 1", len(changes), changes)
	}
	c := changes[0]
	if c.Kind != Changed || c.Command != "show interfaces status" || c.Section != "Gi0/2" {
		t.Errorf("change = %+v", c)
	}
	if c.Old != "notconnect" || c.New != "connected" {
		t.Errorf("values = %v -> %v", c.Old, c.New)
	}
}

func TestCompare_AddedRemoved(t *testing.T) {
	cur := sample()
	delete(cur, "show version")
	cur["show clock"] = "12:00:00"

	changes := Compare(sample(), cur)
	got := Summary(changes)
	if got[Added] != 1 || got[Removed] != 1 || got[Changed] != 0 {
		t.Fatalf("summary = %v, changes = %v", got, changes)
	}
	for _, c := range changes {
		if c.Section != GlobalSection {
			t.Errorf("top-level change section = %q, want %q", c.Section, GlobalSection)
		}
	}
}

func TestCompare_ReorderIsNotAChange(t *testing.T) {
	prev := map[string]any{"show run": RestructureConfig("interface Gi0/1\n a\n b\n c\n")}
	cur := map[string]any{"show run": RestructureConfig("interface Gi0/1\n c\n a\n b\n")}
	if changes := Compare(prev, cur); len(changes) != 0 {
		t.Errorf("reordered lines produced %v", changes)
	}
}

func TestCompare_ConfigLineAdded(t *testing.T) {
	prev := map[string]any{"show run": RestructureConfig("interface Gi0/1\n description a\n")}
	cur := map[string]any{"show run": RestructureConfig("interface Gi0/1\n description a\n shutdown\n")}

	changes := Compare(prev, cur)
	if len(changes) != 1 {
		t.Fatalf("changes = %v", changes)
	}
	c := changes[0]
	if c.Kind != Added || c.Command != "show run" || c.Section != "interface Gi0/1" || c.New != "shutdown" {
		t.Errorf("change = %+v", c)
	}
}

func TestCompare_ConfigLineChanged(t *testing.T) {
	tests := []struct {
		name string
		prev string
		cur  string
		want []Change
	}{
		{
			name: "same sorted position",
			prev: "interface Gi0/1\n description uplink\n shutdown\n",
			cur:  "interface Gi0/1\n description core\n shutdown\n",
			want: []Change{
				{Kind: Changed, Old: "description uplink", New: "description core"},
			},
		},
		{
			name: "moves in sorted order",
			prev: "interface Gi0/1\n description uplink\n shutdown\n",
			cur:  "interface Gi0/1\n shutdown\n speed 1000\n",
			want: []Change{
				{Kind: Removed, Old: "description uplink"},
				{Kind: Added, New: "speed 1000"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := map[string]any{"show run": RestructureConfig(tt.prev)}
			cur := map[string]any{"show run": RestructureConfig(tt.cur)}

			changes := Compare(prev, cur)
			if len(changes) != len(tt.want) {
				t.Fatalf("changes = %v, want %d", changes, len(tt.want))
			}
			for i, w := range tt.want {
				c := changes[i]
				if c.Kind != w.Kind || c.Old != w.Old || c.New != w.New || c.Section != "interface Gi0/1" {
					t.Errorf("change %d = %+v, want %+v", i, c, w)
				}
			}
		})
	}
}

func TestCompare_NilSides(t *testing.T) {
	if changes := Compare(nil, map[string]any{}); len(changes) != 0 {
		t.Errorf("nil vs empty = %v", changes)
	}
	if changes := Compare(nil, map[string]any{"show clock": "x"}); len(changes) != 1 || changes[0].Kind != Added {
		t.Errorf("nil vs one = %v", changes)
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		path    string
		command string
		section string
	}{
		{`{map[string]interface {}}["show run"].(map[string]interface {})["interface Gi0/1"]`, "show run", "interface Gi0/1"},
		{`{map[string]interface {}}["show version"]`, "show version", "Global"},
		{`root['a']['b']['c']`, "a", "b"},
		{`{map[string]interface {}}`, "Unknown", "Global"},
	}
	for _, tt := range tests {
		cmd, sec := ParsePath(tt.path)
		if cmd != tt.command || sec != tt.section {
			t.Errorf("ParsePath(%q) = %q, %q; want %q, %q", tt.path, cmd, sec, tt.command, tt.section)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{map[string]any{"status": "up", "vlan": "1"}, " { status: up, vlan: 1 }"},
		{"text", "text"},
		{42.0, "42"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
