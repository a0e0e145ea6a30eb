// Package chart renders report metrics as line chart images.
package chart

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/AustinArrington87/membrane/internal/model"
)

// DefaultFormat is the image format used when none is configured.
const DefaultFormat = "png"

const (
	chartWidth  = 10 * vg.Inch
	chartHeight = 6 * vg.Inch
	dateLayout  = "2006-01-02"
)

var formats = map[string]struct{}{
	"png": {}, "svg": {}, "pdf": {}, "jpg": {}, "jpeg": {}, "tif": {}, "tiff": {}, "eps": {},
}

// RenderError reports a chart that could not be produced. It only affects
// the metric it names.
type RenderError struct {
	Metric string
	Path   string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render chart %q to %s: %v", e.Metric, e.Path, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Result is the outcome of rendering one metric.
type Result struct {
	Metric string
	Path   string
	Err    error
}

// ValidFormat reports whether format names an image type the renderer can write.
func ValidFormat(format string) bool {
	_, ok := formats[strings.ToLower(format)]
	return ok
}

// Slug turns a metric name into a lowercase, filesystem-safe token.
func Slug(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "metric"
	}
	return b.String()
}

// uniqueSlug returns the slug of name, suffixed with _2, _3 and so on when an
// earlier metric already took it.
func uniqueSlug(name string, used map[string]struct{}) string {
	base := Slug(name)
	slug := base
	for n := 2; ; n++ {
		if _, taken := used[slug]; !taken {
			break
		}
		slug = fmt.Sprintf("%s_%d", base, n)
	}
	used[slug] = struct{}{}
	return slug
}

// RenderAll draws one chart per table column into dir. Every metric is
// attempted; failures are reported per metric in the results.
func RenderAll(dir string, t model.Table, format string) []Result {
	if format == "" {
		format = DefaultFormat
	}
	labels, _ := series(t, -1)
	results := make([]Result, 0, len(t.Columns))
	used := make(map[string]struct{}, len(t.Columns))
	for i, name := range t.Columns {
		path := filepath.Join(dir, uniqueSlug(name, used)+"."+format)
		_, values := series(t, i)
		err := Render(path, name+" Over Time", name, labels, values)
		results = append(results, Result{Metric: name, Path: path, Err: err})
	}
	return results
}

// Render draws a single line chart: x is the period end date, y the metric value.
// Labels and values are ordered oldest first.
func Render(path, title, metric string, labels []string, values []float64) error {
	if err := render(path, title, metric, labels, values); err != nil {
		return &RenderError{Metric: metric, Path: path, Err: err}
	}
	return nil
}

func render(path, title, metric string, labels []string, values []float64) error {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if !ValidFormat(format) {
		return fmt.Errorf("unsupported image format %q", format)
	}
	if len(labels) != len(values) {
		return fmt.Errorf("%d labels for %d values", len(labels), len(values))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "End Date"
	p.Y.Label.Text = metric
	p.Add(plotter.NewGrid())

	if len(values) > 0 {
		pts := make(plotter.XYs, len(values))
		for i, v := range values {
			pts[i].X = float64(i)
			pts[i].Y = v
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return err
		}
		points.Shape = draw.CircleGlyph{}
		points.Radius = vg.Points(3)
		p.Add(line, points)
	}

	ticks := make([]plot.Tick, len(labels))
	for i, label := range labels {
		ticks[i] = plot.Tick{Value: float64(i), Label: label}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Min = -0.5
	p.X.Max = math.Max(float64(len(labels))-0.5, 0.5)
	p.Y.Min = 0
	if p.Y.Max < 1 || math.IsInf(p.Y.Max, 0) {
		p.Y.Max = 1
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	return p.Save(chartWidth, chartHeight, path)
}

// series returns end-date labels and column values, oldest period first.
// A negative column yields labels only.
func series(t model.Table, column int) ([]string, []float64) {
	n := len(t.Rows)
	labels := make([]string, n)
	var values []float64
	if column >= 0 {
		values = make([]float64, n)
	}
	for i, row := range t.Rows {
		j := n - 1 - i
		labels[j] = row.Period.End.Format(dateLayout)
		if column >= 0 && column < len(row.Values) {
			values[j] = float64(row.Values[column])
		}
	}
	return labels, values
}
