package util

import (
	"net"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// SanitizeFilename replaces characters that are not allowed in file names on
// common filesystems with underscores. Device names are operator-assigned and
// are used directly as snapshot file keys.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// SplitCommaSeparated splits a comma-separated string and trims whitespace from each element.
// Empty input returns nil.
func SplitCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// SplitLines splits text into lines, dropping carriage returns and empty
// lines. Commands pasted from spreadsheets often carry CRLF endings.
func SplitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

var macHexOnly = regexp.MustCompile(`[^0-9a-fA-F]`)

// NormalizeMAC converts a hardware address in any common vendor notation
// (aabb.ccdd.eeff, aa-bb-cc-dd-ee-ff, aa:bb:cc:dd:ee:ff, aabb-ccdd-eeff)
// to lowercase colon form. Returns "" if s is not a 48-bit address.
func NormalizeMAC(s string) string {
	hex := strings.ToLower(macHexOnly.ReplaceAllString(s, ""))
	if len(hex) != 12 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(hex[i : i+2])
	}
	return b.String()
}

// IsValidIPv4 checks if a string is a valid IPv4 address
func IsValidIPv4(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	return ip != nil && ip.To4() != nil
}

// StripMask returns the address part of a CIDR string ("10.0.0.1/24" -> "10.0.0.1").
func StripMask(addr string) string {
	if idx := strings.IndexByte(addr, '/'); idx >= 0 {
		return addr[:idx]
	}
	return addr
}
