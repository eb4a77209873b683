package parser

import (
	"regexp"
	"strings"

	"github.com/newtron-network/netverify/pkg/util"
)

// Column heuristics for families without templates. They look for
// address, MAC and interface-shaped tokens anywhere on a line.

var (
	ipv4Re   = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`)
	prefixRe = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2})?\b`)
	macRe    = regexp.MustCompile(`(?i)\b(?:[0-9a-f]{4}\.[0-9a-f]{4}\.[0-9a-f]{4}|[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}|[0-9a-f]{6}-[0-9a-f]{6}|(?:[0-9a-f]{2}:){5}[0-9a-f]{2}|(?:[0-9a-f]{2}-){5}[0-9a-f]{2})\b`)
	ifaceRe  = regexp.MustCompile(`^[A-Za-z][\w\-/.:\[\]]*\d[\w\-/.:\[\]]*$`)
	leadNum  = regexp.MustCompile(`^\d+`)
)

// ParseARP extracts address/mac/interface rows from ARP or neighbor output
// of any supported family.
func ParseARP(text string) ([]Record, error) {
	var out []Record
	for _, line := range util.SplitLines(text) {
		ip := ipv4Re.FindString(line)
		mac := macRe.FindString(line)
		if ip == "" || mac == "" {
			continue
		}
		rec := Record{
			"address": ip,
			"mac":     util.NormalizeMAC(mac),
		}
		if port := portToken(strings.Fields(line), mac); port != "" {
			rec["port"] = port
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, noRecords("ARP")
	}
	return out, nil
}

// ParseMACTable extracts mac/vlan/port rows from a forwarding table.
func ParseMACTable(text string) ([]Record, error) {
	var out []Record
	for _, line := range util.SplitLines(text) {
		mac := macRe.FindString(line)
		if mac == "" {
			continue
		}
		fields := strings.Fields(line)
		port := portToken(fields, mac)
		if port == "" {
			continue
		}
		rec := Record{
			"mac":  util.NormalizeMAC(mac),
			"port": port,
		}
		if vid := vlanToken(fields, mac); vid != "" {
			rec["vid"] = vid
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, noRecords("MAC table")
	}
	return out, nil
}

// ParseRoutes extracts network/next-hop rows from a routing table dump.
func ParseRoutes(text string) ([]Record, error) {
	var out []Record
	for _, line := range util.SplitLines(text) {
		if strings.Contains(line, "subnetted") || strings.HasPrefix(strings.TrimSpace(line), "Gateway of last resort") {
			continue
		}
		prefixes := prefixRe.FindAllString(line, -1)
		if len(prefixes) == 0 || !startsWithRoute(line, prefixes[0]) {
			continue
		}
		rec := Record{"network": prefixes[0]}

		lower := strings.ToLower(line)
		if strings.Contains(lower, "directly connected") || strings.Contains(line, "Direct") {
			rec["direct"] = true
		} else if len(prefixes) > 1 {
			rec["nexthop_ip"] = util.StripMask(prefixes[1])
		}

		fields := strings.Fields(line)
		for i := len(fields) - 1; i > 0; i-- {
			tok := strings.TrimRight(fields[i], ",")
			if ifaceRe.MatchString(tok) && !ipv4Re.MatchString(tok) {
				rec["nexthop_if"] = tok
				break
			}
		}
		if code := fields[0]; code != prefixes[0] && len(code) <= 4 {
			rec["protocol"] = strings.TrimRight(code, "*>")
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, noRecords("route")
	}
	return out, nil
}

// startsWithRoute reports whether prefix is within the first three fields,
// which excludes "via" continuation lines and headers mentioning addresses.
func startsWithRoute(line, prefix string) bool {
	fields := strings.Fields(line)
	for i := 0; i < len(fields) && i < 3; i++ {
		if fields[i] == prefix {
			return true
		}
	}
	return false
}

// ParseTable splits whitespace-aligned output under a header row. Column
// names are lower-cased with spaces and dashes replaced by underscores.
// Rows with a different field count than the header are skipped.
func ParseTable(text string) ([]Record, error) {
	lines := util.SplitLines(text)
	var header []string
	var out []Record
	for _, line := range lines {
		fields := strings.Fields(line)
		if header == nil {
			if len(fields) >= 2 && !ipv4Re.MatchString(line) && !strings.ContainsAny(line, "#>") {
				header = make([]string, len(fields))
				for i, f := range fields {
					header[i] = columnName(f)
				}
			}
			continue
		}
		if len(fields) != len(header) {
			continue
		}
		rec := Record{}
		for i, f := range fields {
			rec[header[i]] = f
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, noRecords("table")
	}
	return out, nil
}

func columnName(s string) string {
	s = strings.ToLower(strings.Trim(s, ":"))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if s == "ip_address" {
		return "address"
	}
	return s
}

// portToken finds the forwarding port of a row: the token after "dev"
// when present, else the last interface-like token that is not the MAC.
func portToken(fields []string, mac string) string {
	for i, f := range fields {
		if f == "dev" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	for i := len(fields) - 1; i >= 0; i-- {
		tok := strings.TrimRight(fields[i], ",")
		if tok == mac || ipv4Re.MatchString(tok) || macRe.MatchString(tok) {
			continue
		}
		if ifaceRe.MatchString(tok) {
			return tok
		}
	}
	return ""
}

func vlanToken(fields []string, mac string) string {
	for i, f := range fields {
		if f == "vlan" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	for _, f := range fields {
		if f == mac {
			continue
		}
		if m := leadNum.FindString(f); m != "" && (m == f || strings.HasPrefix(f[len(m):], "/")) {
			return m
		}
	}
	return ""
}
