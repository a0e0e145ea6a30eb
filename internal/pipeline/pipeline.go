// Package pipeline runs a board report from export file to report, console
// table, charts and optional archive.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/AustinArrington87/membrane/internal/board"
	"github.com/AustinArrington87/membrane/internal/chart"
	"github.com/AustinArrington87/membrane/internal/model"
	"github.com/AustinArrington87/membrane/internal/report"
	"github.com/AustinArrington87/membrane/internal/stats"
	"github.com/AustinArrington87/membrane/internal/trello"
)

// Archive stores finished report tables.
type Archive interface {
	SaveRun(ctx context.Context, board, input string, t model.Table) (string, error)
}

// Options configures a report run. Zero values fall back to the board
// definition and package defaults.
type Options struct {
	Board model.Board

	Input    string
	Output   string
	ChartDir string

	Periods     int
	Window      time.Duration
	Now         time.Time
	Delimiter   rune
	ChartFormat string
	Charts      bool

	// Console receives the printed table; nil skips printing.
	Console io.Writer
	// Plot adds terminal line plots after the table.
	Plot bool
	// History archives the table when set.
	History Archive
}

// Result describes a finished run.
type Result struct {
	Table   model.Table
	Input   string
	Output  string
	Actions int
	Skipped int
	Charts  []chart.Result
	RunID   string
}

// ChartFailures counts charts that could not be rendered.
func (r Result) ChartFailures() int {
	n := 0
	for _, c := range r.Charts {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// Run executes a report. Chart failures are logged and returned in the
// result; every other failure aborts the run.
func Run(ctx context.Context, opts Options, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts = withDefaults(opts)
	if err := board.Validate(opts.Board); err != nil {
		return Result{}, err
	}
	if opts.Charts && !chart.ValidFormat(opts.ChartFormat) {
		return Result{}, fmt.Errorf("unsupported chart format %q", opts.ChartFormat)
	}
	res := Result{Input: opts.Input, Output: opts.Output}

	doc, err := trello.LoadFile(opts.Input)
	if err != nil {
		return res, err
	}
	actions, err := doc.Actions()
	if err != nil {
		return res, fmt.Errorf("%s: %w", opts.Input, err)
	}
	res.Actions = len(actions)
	res.Skipped = doc.Skipped
	if doc.Skipped > 0 {
		logger.Debug("skipped undecodable actions", slog.String("input", opts.Input), slog.Int("count", doc.Skipped))
	}
	if undated := countUndated(actions); undated > 0 {
		logger.Debug("actions without a usable date", slog.Int("count", undated))
	}
	logger.Info("loaded board export",
		slog.String("input", opts.Input),
		slog.String("board", doc.BoardName()),
		slog.Int("actions", len(actions)),
	)

	periods, err := stats.GeneratePeriods(opts.Now, opts.Periods, opts.Window)
	if err != nil {
		return res, err
	}
	table, err := stats.BuildTable(actions, opts.Board, periods)
	if err != nil {
		return res, err
	}
	res.Table = table

	if err := report.WriteDelimited(opts.Output, table, opts.Delimiter); err != nil {
		return res, err
	}
	logger.Info("wrote report", slog.String("path", opts.Output), slog.Int("periods", len(table.Rows)))

	if opts.Console != nil {
		if err := report.Print(opts.Console, table, report.PrintOptions{Title: opts.Board.Title, Trends: !opts.Plot}); err != nil {
			return res, err
		}
		if opts.Plot {
			if err := report.PlotTable(opts.Console, table, 0, false); err != nil {
				return res, err
			}
		}
	}

	if opts.Charts {
		res.Charts = chart.RenderAll(opts.ChartDir, table, opts.ChartFormat)
		for _, c := range res.Charts {
			if c.Err != nil {
				logger.Error("chart failed", slog.String("metric", c.Metric), slog.Any("error", c.Err))
				continue
			}
			logger.Debug("chart written", slog.String("metric", c.Metric), slog.String("path", c.Path))
		}
	}

	if opts.History != nil {
		id, err := opts.History.SaveRun(ctx, opts.Board.Name, opts.Input, table)
		if err != nil {
			return res, fmt.Errorf("failed to archive run: %w", err)
		}
		res.RunID = id
		logger.Info("archived run", slog.String("id", id))
	}
	return res, nil
}

func withDefaults(opts Options) Options {
	if opts.Input == "" {
		opts.Input = opts.Board.Input
	}
	if opts.Output == "" {
		opts.Output = opts.Board.Output
	}
	if opts.ChartDir == "" {
		opts.ChartDir = "."
	}
	if opts.Periods == 0 {
		opts.Periods = stats.DefaultPeriodCount
	}
	if opts.Window == 0 {
		opts.Window = stats.DefaultWindow
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = report.DefaultDelimiter
	}
	if opts.ChartFormat == "" {
		opts.ChartFormat = chart.DefaultFormat
	}
	return opts
}

func countUndated(actions []model.Action) int {
	n := 0
	for _, a := range actions {
		if !a.Dated {
			n++
		}
	}
	return n
}
