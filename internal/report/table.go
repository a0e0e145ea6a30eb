package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/AustinArrington87/membrane/internal/model"
)

const (
	headerStartDate = "Start Date"
	headerEndDate   = "End Date"
	dateLayout      = "2006-01-02"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))

// PrintOptions controls console output of a table.
type PrintOptions struct {
	Title string
	// Color forces styled output even when w is not a terminal.
	Color bool
	// Trends appends a sparkline per metric below the table.
	Trends bool
}

// Header returns the column headers written for a table.
func Header(t model.Table) []string {
	return append([]string{headerStartDate, headerEndDate}, t.Columns...)
}

// Cells returns the formatted cells of every row, in row order.
func Cells(t model.Table) [][]string {
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		cells := make([]string, 0, len(row.Values)+2)
		cells = append(cells, row.Period.Start.Format(dateLayout), row.Period.End.Format(dateLayout))
		for _, v := range row.Values {
			cells = append(cells, strconv.Itoa(v))
		}
		rows = append(rows, cells)
	}
	return rows
}

// Print writes the table as aligned columns.
func Print(w io.Writer, t model.Table, opts PrintOptions) error {
	useColor := shouldUseColor(w, opts.Color)
	if opts.Title != "" {
		if _, err := fmt.Fprintln(w, opts.Title); err != nil {
			return err
		}
	}
	if len(t.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No periods.")
		return err
	}

	headers := Header(t)
	rightAlign := map[int]bool{}
	for i := 2; i < len(headers); i++ {
		rightAlign[i] = true
	}
	lines := formatTable(headers, Cells(t), rightAlign)
	for i, line := range lines {
		if i == 0 && useColor {
			line = headerStyle.Render(line)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if opts.Trends {
		if err := printTrends(w, t); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func printTrends(w io.Writer, t model.Table) error {
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	width := 0
	for _, name := range t.Columns {
		if n := displayWidth(name); n > width {
			width = n
		}
	}
	for i, name := range t.Columns {
		values := chronological(t.Column(i))
		line := fmt.Sprintf("%s  %s", padCell(name, width, false), Sparkline(toFloats(values)))
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatTable(headers []string, rows [][]string, rightAlignCols map[int]bool) []string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = displayWidth(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := displayWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, formatRow(headers, widths, rightAlignCols))
	}
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlignCols))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlignCols map[int]bool) string {
	cells := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		cells[i] = padCell(cell, widths[i], rightAlignCols[i])
	}
	return strings.TrimRight(strings.Join(cells, "  "), " ")
}

func padCell(value string, width int, rightAlign bool) string {
	valueWidth := displayWidth(value)
	if valueWidth >= width {
		return value
	}
	padding := strings.Repeat(" ", width-valueWidth)
	if rightAlign {
		return padding + value
	}
	return value + padding
}

// Emoji list names such as "Done 🎉" occupy two cells per glyph.
func displayWidth(value string) int {
	return runewidth.StringWidth(value)
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// chronological returns column values oldest first.
func chronological(values []int) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[len(values)-1-i] = v
	}
	return out
}

func toFloats(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
