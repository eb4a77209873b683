package snapshot

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ChangeKind classifies one difference.
type ChangeKind string

const (
	Changed ChangeKind = "Changed"
	Added   ChangeKind = "Added"
	Removed ChangeKind = "Removed"
)

// Change is one difference between two snapshots.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	Command string     `json:"command"`
	Section string     `json:"section"`
	Path    string     `json:"path"`
	Old     any        `json:"old,omitempty"`
	New     any        `json:"new,omitempty"`
}

func (c Change) String() string {
	switch c.Kind {
	case Added:
		return fmt.Sprintf("[%s] %s / %s: + %s", c.Kind, c.Command, c.Section, FormatValue(c.New))
	case Removed:
		return fmt.Sprintf("[%s] %s / %s: - %s", c.Kind, c.Command, c.Section, FormatValue(c.Old))
	default:
		return fmt.Sprintf("[%s] %s / %s: %s -> %s", c.Kind, c.Command, c.Section, FormatValue(c.Old), FormatValue(c.New))
	}
}

// diffCollector is a cmp.Reporter that records every unequal leaf.
type diffCollector struct {
	path    cmp.Path
	changes []Change
}

func (r *diffCollector) PushStep(ps cmp.PathStep) {
	r.path = append(r.path, ps)
}

func (r *diffCollector) Report(rs cmp.Result) {
	if rs.Equal() {
		return
	}
	vx, vy := r.path.Last().Values()
	path := fmt.Sprintf("%#v", r.path)
	cmd, sec := ParsePath(path)
	c := Change{Command: cmd, Section: sec, Path: path, Old: valueOf(vx), New: valueOf(vy)}
	switch {
	case !vx.IsValid():
		c.Kind = Added
	case !vy.IsValid():
		c.Kind = Removed
	default:
		c.Kind = Changed
	}
	r.changes = append(r.changes, c)
}

func (r *diffCollector) PopStep() {
	r.path = r.path[:len(r.path)-1]
}

func valueOf(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// Compare returns the differences between two command maps. Map keys are
// compared by name and lists by content, so reordering is not a change.
func Compare(prev, cur map[string]any) []Change {
	x, y := generic(prev), generic(cur)
	r := &diffCollector{}
	cmp.Equal(x, y,
		cmpopts.EquateEmpty(),
		cmpopts.SortSlices(lessAny),
		cmp.Reporter(r),
	)
	return r.changes
}

// Diff compares the command maps of two snapshots.
func Diff(prev, cur *Snapshot) []Change {
	var x, y map[string]any
	if prev != nil {
		x = prev.Commands
	}
	if cur != nil {
		y = cur.Commands
	}
	return Compare(x, y)
}

// generic converts v to the shape encoding/json produces when decoding
// into any, so that fresh captures compare equal to loaded ones.
func generic(v map[string]any) any {
	if v == nil {
		return map[string]any{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func lessAny(a, b any) bool {
	return fmt.Sprint(a) < fmt.Sprint(b)
}

var quotedToken = regexp.MustCompile(`['"]([^'"]+)['"]`)

// ParsePath returns the first two quoted tokens of a diff path as command and
// section, defaulting to "Unknown" and "Global".
func ParsePath(path string) (command, section string) {
	command, section = "Unknown", GlobalSection
	m := quotedToken.FindAllStringSubmatch(path, 2)
	if len(m) > 0 {
		command = m[0][1]
	}
	if len(m) > 1 {
		section = m[1][1]
	}
	return command, section
}

// FormatValue renders a diff value. Maps render as " { k: v, ... }" with
// sorted keys.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, t[k]))
		}
		return " { " + strings.Join(parts, ", ") + " }"
	default:
		return fmt.Sprint(v)
	}
}

// Summary counts changes by kind.
func Summary(changes []Change) map[ChangeKind]int {
	out := map[ChangeKind]int{Changed: 0, Added: 0, Removed: 0}
	for _, c := range changes {
		out[c.Kind]++
	}
	return out
}
