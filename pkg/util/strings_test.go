package util

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"core-sw1", "core-sw1"},
		{"tokyo/rt1", "tokyo_rt1"},
		{`a\b:c*d?e"f<g>h|i`, "a_b_c_d_e_f_g_h_i"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.input); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSplitCommaSeparated(t *testing.T) {
	got := SplitCommaSeparated(" a, b ,,c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("SplitCommaSeparated() = %v", got)
	}
	if SplitCommaSeparated("") != nil {
		t.Error("empty input should return nil")
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("show version\r\n\r\n  show ip route \r\n")
	if len(got) != 2 || got[0] != "show version" || got[1] != "show ip route" {
		t.Errorf("SplitLines() = %q", got)
	}
}

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0011.2233.4455", "00:11:22:33:44:55"},
		{"00-11-22-33-44-55", "00:11:22:33:44:55"},
		{"00:11:22:AA:BB:CC", "00:11:22:aa:bb:cc"},
		{"0011-2233-4455", "00:11:22:33:44:55"},
		{"Incomplete", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeMAC(tt.input); got != tt.want {
			t.Errorf("NormalizeMAC(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsValidIPv4(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"192.168.1.1", true},
		{"10.0.0.0", true},
		{"256.1.1.1", false},
		{"2001:db8::1", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidIPv4(tt.ip); got != tt.want {
			t.Errorf("IsValidIPv4(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestStripMask(t *testing.T) {
	if got := StripMask("10.0.0.1/24"); got != "10.0.0.1" {
		t.Errorf("StripMask() = %q", got)
	}
	if got := StripMask("10.0.0.1"); got != "10.0.0.1" {
		t.Errorf("StripMask() = %q", got)
	}
}
