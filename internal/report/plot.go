package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"

	"github.com/AustinArrington87/membrane/internal/model"
)

const (
	defaultPlotHeight   = 8
	minPlotWidth        = 10
	axisSeparator       = " │ "
	plotColor           = "\x1b[36m"
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

// PlotMetric renders a braille line plot of one metric. Values and labels are
// ordered oldest first; the first and last labels are printed under the x axis.
// The y axis always starts at zero.
func PlotMetric(w io.Writer, title string, labels []string, values []float64, width, height int, forceColor bool) error {
	if len(values) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	maxVal := axisMax(values)
	axisLabels := makeAxisLabels(height, maxVal)
	axisWidth := labelWidth(axisLabels)
	if width <= 0 {
		width = PlotWidthFor(terminalWidth(), axisWidth)
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	cells := makeCells(height, width)
	points := resampleSeries(values, width)
	prevX, prevY := -1, -1
	for x, v := range points {
		px := x * 2
		py := valueToRow(v, 0, maxVal, height*4)
		if prevX >= 0 {
			drawLine(prevX, prevY, px, py, func(dx, dy int) {
				setBrailleDot(cells, dx, dy)
			})
		} else {
			setBrailleDot(cells, px, py)
		}
		prevX, prevY = px, py
	}

	useColor := shouldUseColor(w, forceColor)
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(fmt.Sprintf("%*s%s", axisWidth, axisLabels[y], axisSeparator))
		if useColor {
			row.WriteString(plotColor)
		}
		for x := 0; x < width; x++ {
			row.WriteRune(brailleFromMask(cells[y][x]))
		}
		if useColor {
			row.WriteString(colorReset)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	if footer := xAxisFooter(labels, axisWidth+utf8.RuneCountInString(axisSeparator), width); footer != "" {
		if _, err := fmt.Fprintln(w, footer); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// PlotTable plots every metric of the table, one plot per column.
func PlotTable(w io.Writer, t model.Table, width int, forceColor bool) error {
	labels := EndLabels(t)
	for i, name := range t.Columns {
		values := toFloats(chronological(t.Column(i)))
		if err := PlotMetric(w, name, labels, values, width, 0, forceColor); err != nil {
			return err
		}
	}
	return nil
}

// EndLabels returns the period end dates of the table, oldest first.
func EndLabels(t model.Table) []string {
	labels := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		labels[len(t.Rows)-1-i] = row.Period.End.Format(dateLayout)
	}
	return labels
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth, axisLabelWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - axisLabelWidth - utf8.RuneCountInString(axisSeparator)
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

// AxisLabelWidth returns how many columns the y-axis labels of a plot of values
// take, not counting the separator.
func AxisLabelWidth(values []float64, height int) int {
	if height <= 0 {
		height = defaultPlotHeight
	}
	return labelWidth(makeAxisLabels(height, axisMax(values)))
}

func axisMax(values []float64) float64 {
	_, maxVal := minMax(values)
	if maxVal <= 0 {
		return 1
	}
	return maxVal
}

func labelWidth(labels []string) int {
	width := 0
	for _, l := range labels {
		if n := utf8.RuneCountInString(l); n > width {
			width = n
		}
	}
	return width
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func makeAxisLabels(height int, maxVal float64) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	labels[0] = strconv.FormatFloat(maxVal, 'f', -1, 64)
	if height > 2 {
		labels[height/2] = strconv.FormatFloat(math.Round(maxVal*10/2)/10, 'f', -1, 64)
	}
	if height > 1 {
		labels[height-1] = "0"
	}
	return labels
}

func xAxisFooter(labels []string, indent, width int) string {
	if len(labels) == 0 {
		return ""
	}
	first := labels[0]
	if len(labels) == 1 {
		return strings.Repeat(" ", indent) + first
	}
	last := labels[len(labels)-1]
	gap := width - utf8.RuneCountInString(first) - utf8.RuneCountInString(last)
	if gap < 1 {
		gap = 1
	}
	return strings.Repeat(" ", indent) + first + strings.Repeat(" ", gap) + last
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := 0; y < height; y++ {
		cells[y] = make([]uint8, width)
	}
	return cells
}

// resampleSeries stretches or averages values to exactly width points.
func resampleSeries(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	out := make([]float64, width)
	if len(values) == width {
		copy(out, values)
		return out
	}
	if len(values) > width {
		for i := 0; i < width; i++ {
			start := i * len(values) / width
			end := (i + 1) * len(values) / width
			if end <= start {
				end = start + 1
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
		return out
	}
	if len(values) == 1 || width == 1 {
		for i := range out {
			out[i] = values[0]
		}
		return out
	}
	for i := 0; i < width; i++ {
		pos := float64(i) * float64(len(values)-1) / float64(width-1)
		idx := int(math.Floor(pos))
		if idx >= len(values)-1 {
			out[i] = values[len(values)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = values[idx]*(1-frac) + values[idx+1]*frac
	}
	return out
}

func valueToRow(v, minVal, maxVal float64, rows int) int {
	if rows <= 1 || maxVal <= minVal {
		return rows - 1
	}
	pos := (v - minVal) / (maxVal - minVal)
	return clamp(int(math.Round((1-pos)*float64(rows-1))), 0, rows-1)
}

// drawLine walks a Bresenham line between two dot coordinates.
func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := absInt(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -absInt(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func setBrailleDot(cells [][]uint8, x, y int) {
	if y < 0 || x < 0 {
		return
	}
	cellY, cellX := y/4, x/2
	if cellY >= len(cells) || cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

// Dot numbering follows the Unicode braille block: columns 1-3,7 and 4-6,8.
var brailleMasks = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

func brailleDotMask(x, y int) uint8 {
	if x < 0 || x > 1 || y < 0 || y > 3 {
		return 0
	}
	return brailleMasks[x][y]
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
