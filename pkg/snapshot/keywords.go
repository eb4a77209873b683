package snapshot

import (
	"sort"
	"strings"

	"github.com/newtron-network/netverify/pkg/util"
)

// Hit is one keyword found in captured output.
type Hit struct {
	Keyword string `json:"keyword"`
	Command string `json:"command"`
	Line    string `json:"line"`
}

// ScanKeywords reports every raw output line containing one of keywords,
// case-insensitively, in command order. Snapshots loaded from a store have
// no raw text; their normalized values are scanned instead.
func ScanKeywords(s *Snapshot, keywords []string) []Hit {
	var kws []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		return nil
	}

	var hits []Hit
	for _, cmd := range s.CommandNames() {
		text, ok := s.Raw[cmd]
		if !ok {
			text = flatten(s.Commands[cmd])
		}
		for _, line := range util.SplitLines(text) {
			lower := strings.ToLower(line)
			for _, k := range kws {
				if strings.Contains(lower, strings.ToLower(k)) {
					hits = append(hits, Hit{Keyword: k, Command: cmd, Line: strings.TrimSpace(line)})
				}
			}
		}
	}
	return hits
}

// flatten renders a normalized value back into lines.
func flatten(v any) string {
	var b strings.Builder
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		switch t := v.(type) {
		case string:
			b.WriteString(prefix + t + "\n")
		case []string:
			for _, s := range t {
				walk(prefix, s)
			}
		case []any:
			for _, s := range t {
				walk(prefix, s)
			}
		case map[string][]string:
			for _, k := range sortedKeys(t) {
				b.WriteString(k + "\n")
				walk(" ", t[k])
			}
		case map[string]any:
			for _, k := range sortedKeys(t) {
				if s, ok := t[k].(string); ok {
					b.WriteString(prefix + k + ": " + s + "\n")
					continue
				}
				b.WriteString(prefix + k + "\n")
				walk(prefix+" ", t[k])
			}
		case nil:
		default:
			b.WriteString(prefix + FormatValue(t) + "\n")
		}
	}
	walk("", v)
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
