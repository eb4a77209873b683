// Package parser extracts records from tabular CLI output.
//
// Each supported family has TextFSM templates for its ARP, MAC-table,
// routing-table and interface-summary output (templates.go). Families
// without a template fall back to the column heuristics in fallback.go.
// Records are map[string]any so they can be re-keyed and diffed by the
// snapshot engine alongside JSON-decoded documents.
package parser

import (
	"fmt"
	"regexp"

	"github.com/newtron-network/netverify/pkg/util"
	"github.com/newtron-network/netverify/pkg/vendor"
)

// Record is one parsed row.
type Record = map[string]any

// Func parses the output of one command.
type Func func(text string) ([]Record, error)

// Table is the shape of a command's output.
type Table string

const (
	TableARP        Table = "arp"
	TableMAC        Table = "mac"
	TableRoute      Table = "route"
	TableInterfaces Table = "interfaces"
)

var registry = []struct {
	match    *regexp.Regexp
	table    Table
	fallback Func
}{
	{regexp.MustCompile(`(?i)\b(arp|ip neigh(bor)?)\b`), TableARP, ParseARP},
	{regexp.MustCompile(`(?i)(mac[ -]address|mac address-table|\bfdb\b|ethernet-switching table)`), TableMAC, ParseMACTable},
	{regexp.MustCompile(`(?i)(ip int(erface)? br(ief)?|interfaces? (brief|terse|description))\s*$`), TableInterfaces, ParseTable},
	{regexp.MustCompile(`(?i)(show ip route|routing-table|show route|ip route show)\s*$`), TableRoute, ParseRoutes},
}

// TableFor returns the output shape of command, or "" when the command's
// output has no known tabular shape.
func TableFor(command string) Table {
	for _, r := range registry {
		if r.match.MatchString(command) {
			return r.table
		}
	}
	return ""
}

func fallbackFor(t Table) Func {
	for _, r := range registry {
		if r.table == t {
			return r.fallback
		}
	}
	return nil
}

// Parse parses the output of command as produced by a device of family.
// The family's TextFSM template is used when it has one for the command's
// table; otherwise the generic column parser runs. A command with no known
// table, or output that yields no records, is a parse failure.
func Parse(family vendor.Family, command, text string) ([]Record, error) {
	t := TableFor(command)
	if t == "" {
		return nil, fmt.Errorf("%w: no parser for %q", util.ErrParseFailure, command)
	}
	if tmpl := TemplateFor(family, t); tmpl != "" {
		recs, err := ParseTemplate(tmpl, text)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, noRecords(string(t))
		}
		return recs, nil
	}
	return fallbackFor(t)(text)
}

func noRecords(what string) error {
	return fmt.Errorf("%w: no %s rows recognized", util.ErrParseFailure, what)
}
