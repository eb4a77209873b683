package snapshot

import (
	"fmt"
	"strings"
)

// GlobalSection holds configuration lines that precede the first section.
const GlobalSection = "Global"

var configNoise = []string{
	"Building configuration",
	"Current configuration",
	"Last configuration change",
	"ntp clock-period",
}

// RestructureConfig splits configuration text into sections keyed by their
// first non-indented line. Indented lines belong to the current section and
// are stored trimmed. Blank lines, "!" comments and volatile header lines are
// dropped. A section header seen twice keeps accumulating lines.
func RestructureConfig(text string) map[string][]string {
	sections := map[string][]string{GlobalSection: {}}
	current := GlobalSection
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "!") || isNoise(trimmed) {
			continue
		}
		if line[0] != ' ' && line[0] != '\t' {
			current = trimmed
			if _, ok := sections[current]; !ok {
				sections[current] = []string{}
			}
			continue
		}
		sections[current] = append(sections[current], trimmed)
	}
	return sections
}

func isNoise(line string) bool {
	for _, n := range configNoise {
		if strings.Contains(line, n) {
			return true
		}
	}
	return false
}

// keyFields are tried in order to key a parsed row.
var keyFields = []string{"interface", "intf", "vlan_id", "vlan", "name", "neighbor_id", "pool_name"}

// Restructure re-keys a list of records into a map so that diffs are
// insensitive to row order. Route rows (with a "network" field) are keyed
// "<network>_via_<nexthop_ip|nexthop_if|direct>"; other rows by the first
// present field of keyFields, which is then removed from the row.
//
// The input is returned unchanged when it is not a list of records, when
// any row has no key, or when two rows share a key. Applying Restructure to
// its own output is a no-op.
func Restructure(data any) any {
	rows, ok := asRows(data)
	if !ok || len(rows) == 0 {
		return data
	}

	out := make(map[string]any, len(rows))
	for _, row := range rows {
		key, field := rowKey(row)
		if key == "" {
			return data
		}
		if _, dup := out[key]; dup {
			return data
		}
		value := make(map[string]any, len(row))
		for k, v := range row {
			if k != field {
				value[k] = v
			}
		}
		out[key] = value
	}
	return out
}

func rowKey(row map[string]any) (key, field string) {
	if network, ok := row["network"]; ok {
		hop := "direct"
		for _, f := range []string{"nexthop_ip", "nexthop_if"} {
			if v := fmt.Sprint(row[f]); row[f] != nil && v != "" {
				hop = v
				break
			}
		}
		return fmt.Sprintf("%v_via_%s", network, hop), ""
	}
	for _, f := range keyFields {
		if v, ok := row[f]; ok && v != nil && fmt.Sprint(v) != "" {
			return fmt.Sprint(v), f
		}
	}
	return "", ""
}

func asRows(data any) ([]map[string]any, bool) {
	switch v := data.(type) {
	case []map[string]any:
		return v, true
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			rows = append(rows, m)
		}
		return rows, true
	}
	return nil, false
}
