package cli

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

const columnGap = 2

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// visualLen is the printed width of s: runes, ignoring ANSI escapes.
func visualLen(s string) int {
	return utf8.RuneCountInString(ansiRE.ReplaceAllString(s, ""))
}

// Table buffers rows and prints them column-aligned on Flush. Columns are
// narrowed to the terminal width and over-long cells wrap onto extra lines.
// Empty tables produce no output.
type Table struct {
	out     io.Writer
	headers []string
	rows    [][]string
	prefix  string
	width   int // 0 disables capping
}

// NewTable creates a table on stdout with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{out: os.Stdout, headers: headers, width: TerminalWidth()}
}

// WithWriter redirects output to w and disables terminal-width capping.
func (t *Table) WithWriter(w io.Writer) *Table {
	t.out = w
	t.width = 0
	return t
}

// WithWidth caps the table at width columns.
func (t *Table) WithWidth(width int) *Table {
	t.width = width
	return t
}

// WithPrefix sets a string prepended to each line (headers, divider, rows).
// Useful for indenting sub-tables within larger output.
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// Row adds a row. Missing cells print empty; extra cells are dropped.
func (t *Table) Row(values ...string) {
	row := make([]string, len(t.headers))
	copy(row, values)
	t.rows = append(t.rows, row)
}

// Len returns the number of buffered rows.
func (t *Table) Len() int { return len(t.rows) }

// Flush prints the header, a dash divider and all rows.
func (t *Table) Flush() {
	if len(t.rows) == 0 {
		return
	}
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visualLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if n := visualLen(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}
	if t.width > 0 {
		widths = capWidths(widths, t.headers, t.width, visualLen(t.prefix))
	}

	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", visualLen(h))
	}
	t.line(widths, t.headers)
	t.line(widths, dividers)
	for _, row := range t.rows {
		cells := make([][]string, len(row))
		height := 1
		for i, cell := range row {
			cells[i] = wrapCell(cell, widths[i])
			if len(cells[i]) > height {
				height = len(cells[i])
			}
		}
		for l := 0; l < height; l++ {
			parts := make([]string, len(cells))
			for i := range cells {
				if l < len(cells[i]) {
					parts[i] = cells[i][l]
				}
			}
			t.line(widths, parts)
		}
	}
	t.rows = nil
}

func (t *Table) line(widths []int, cells []string) {
	var b strings.Builder
	b.WriteString(t.prefix)
	for i, c := range cells {
		b.WriteString(c)
		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", widths[i]-visualLen(c)+columnGap))
		}
	}
	fmt.Fprintln(t.out, strings.TrimRight(b.String(), " "))
}

// capWidths shrinks the widest columns until the table fits in termWidth,
// never below a column's header width.
func capWidths(widths []int, headers []string, termWidth, prefix int) []int {
	out := append([]int(nil), widths...)
	total := prefix + columnGap*(len(out)-1)
	for _, w := range out {
		total += w
	}
	for total > termWidth {
		widest := -1
		for i, w := range out {
			if w > visualLen(headers[i]) && (widest < 0 || w > out[widest]) {
				widest = i
			}
		}
		if widest < 0 {
			break
		}
		out[widest]--
		total--
	}
	return out
}

// wrapCell splits s into lines of at most width runes, breaking at spaces
// and hard-breaking words longer than width. Cells that fit are returned
// unchanged, ANSI codes included.
func wrapCell(s string, width int) []string {
	if width <= 0 || visualLen(s) <= width {
		return []string{s}
	}
	var lines []string
	cur := ""
	for _, word := range strings.Fields(ansiRE.ReplaceAllString(s, "")) {
		for utf8.RuneCountInString(word) > width {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			r := []rune(word)
			lines = append(lines, string(r[:width]))
			word = string(r[width:])
		}
		switch {
		case cur == "":
			cur = word
		case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(word) <= width:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
