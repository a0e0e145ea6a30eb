// Package main provides the CLI entrypoint for trelloreport.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/AustinArrington87/membrane/internal/board"
	"github.com/AustinArrington87/membrane/internal/chart"
	"github.com/AustinArrington87/membrane/internal/config"
	"github.com/AustinArrington87/membrane/internal/model"
	"github.com/AustinArrington87/membrane/internal/pipeline"
	"github.com/AustinArrington87/membrane/internal/report"
	"github.com/AustinArrington87/membrane/internal/reportui"
	"github.com/AustinArrington87/membrane/internal/stats"
	"github.com/AustinArrington87/membrane/internal/store"
	"github.com/AustinArrington87/membrane/internal/trello"
)

const (
	defaultWindowDays   = 30
	defaultHistoryLimit = 20
	// maxWindowDays keeps the window well inside the range of time.Duration.
	maxWindowDays       = 36500
)

var (
	reportBoard       string
	reportInput       string
	reportOutput      string
	reportChartDir    string
	reportChartFormat string
	reportPeriods     int
	reportWindowDays  int
	reportNow         string
	reportDelimiter   string
	reportNoCharts    bool
	reportPlot        bool
	reportHistory     bool
	reportHistoryDSN  string
	reportVerbose     bool

	showDelimiter string
	showPlot      bool

	historyBoard string
	historyLimit int
	historyID    string
	historyDSN   string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "trelloreport",
		Short:         "Rolling 30-day metrics from Trello board exports",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runReportCmd,
	}
	addReportFlags(rootCmd)

	rootCmd.AddCommand(newBoardsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newViewCmd())

	return rootCmd
}

func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&reportBoard, "board", board.DefaultName, "board definition to report on")
	cmd.Flags().StringVar(&reportInput, "input", "", "board export JSON (default: the board's input file)")
	cmd.Flags().StringVar(&reportOutput, "output", "", "report file (default: the board's output file)")
	cmd.Flags().StringVar(&reportChartDir, "chart-dir", ".", "directory for chart images")
	cmd.Flags().StringVar(&reportChartFormat, "chart-format", chart.DefaultFormat, "chart image format (png, svg, pdf)")
	cmd.Flags().IntVar(&reportPeriods, "periods", stats.DefaultPeriodCount, "number of periods")
	cmd.Flags().IntVar(&reportWindowDays, "window-days", defaultWindowDays, "days per period")
	cmd.Flags().StringVar(&reportNow, "now", "", "end of the latest period (RFC 3339 or YYYY-MM-DD, default: current time)")
	cmd.Flags().StringVar(&reportDelimiter, "delimiter", string(report.DefaultDelimiter), "report field delimiter (\\t or tab for tabs)")
	cmd.Flags().BoolVar(&reportNoCharts, "no-charts", false, "skip chart images")
	cmd.Flags().BoolVar(&reportPlot, "plot", false, "print terminal plots after the table")
	cmd.Flags().BoolVar(&reportHistory, "history", false, "archive the run in the history database")
	cmd.Flags().StringVar(&reportHistoryDSN, "history-dsn", "", "history database path or postgres:// URL")
	cmd.Flags().BoolVar(&reportVerbose, "verbose", false, "debug logging")
}

// reportRun is a resolved report invocation.
type reportRun struct {
	opts    pipeline.Options
	logger  *slog.Logger
	history *store.Store
}

func (r *reportRun) Close() {
	if r.history == nil {
		return
	}
	if err := r.history.Close(); err != nil {
		logErrf("failed to close history: %v\n", err)
	}
}

func resolveReportRun(cmd *cobra.Command) (*reportRun, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "board", &reportBoard, fileCfg.Report.Board)
	applyIntConfig(cmd, "periods", &reportPeriods, fileCfg.Report.Periods)
	applyIntConfig(cmd, "window-days", &reportWindowDays, fileCfg.Report.WindowDays)
	applyStringConfig(cmd, "chart-dir", &reportChartDir, fileCfg.Report.ChartDir)
	applyStringConfig(cmd, "chart-format", &reportChartFormat, fileCfg.Report.ChartFormat)
	applyStringConfig(cmd, "delimiter", &reportDelimiter, fileCfg.Report.Delimiter)
	applyBoolConfig(cmd, "verbose", &reportVerbose, fileCfg.Report.Verbose)
	applyBoolConfig(cmd, "history", &reportHistory, fileCfg.History.Enabled)
	applyStringConfig(cmd, "history-dsn", &reportHistoryDSN, fileCfg.History.DSN)
	if fileCfg.Report.Charts != nil && !cmd.Flags().Changed("no-charts") {
		reportNoCharts = !*fileCfg.Report.Charts
	}

	if err := validateReportFlags(); err != nil {
		return nil, err
	}
	b, err := board.Resolve(reportBoard, fileCfg.BoardDefinitions())
	if err != nil {
		return nil, err
	}
	delim, err := parseDelimiter(reportDelimiter)
	if err != nil {
		return nil, err
	}
	now, err := parseNow(reportNow)
	if err != nil {
		return nil, err
	}

	run := &reportRun{
		logger: newLogger(os.Stderr, reportVerbose),
		opts: pipeline.Options{
			Board:       b,
			Input:       reportInput,
			Output:      reportOutput,
			ChartDir:    reportChartDir,
			Periods:     reportPeriods,
			Window:      time.Duration(reportWindowDays) * 24 * time.Hour,
			Now:         now,
			Delimiter:   delim,
			ChartFormat: strings.ToLower(reportChartFormat),
			Charts:      !reportNoCharts,
			Plot:        reportPlot,
		},
	}
	if reportHistory {
		dsn := reportHistoryDSN
		if dsn == "" {
			dsn = config.DefaultHistoryPath()
		}
		st, err := store.Open(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		run.history = st
		run.opts.History = st
	}
	return run, nil
}

func validateReportFlags() error {
	if reportPeriods <= 0 {
		return fmt.Errorf("--periods must be > 0")
	}
	if reportWindowDays <= 0 {
		return fmt.Errorf("--window-days must be > 0")
	}
	if reportWindowDays > maxWindowDays {
		return fmt.Errorf("--window-days must be at most %d", maxWindowDays)
	}
	if !reportNoCharts && !chart.ValidFormat(reportChartFormat) {
		return fmt.Errorf("--chart-format %q is not supported", reportChartFormat)
	}
	return nil
}

func runReportCmd(cmd *cobra.Command, _ []string) error {
	run, err := resolveReportRun(cmd)
	if err != nil {
		return err
	}
	defer run.Close()

	run.opts.Console = cmd.OutOrStdout()
	res, err := pipeline.Run(cmd.Context(), run.opts, run.logger)
	if err != nil {
		return err
	}
	if n := res.ChartFailures(); n > 0 {
		logErrf("%d of %d charts could not be rendered\n", n, len(res.Charts))
	}
	if res.RunID != "" {
		logErrf("Archived run %s\n", res.RunID)
	}
	return nil
}

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Run the report and browse it interactively",
		Args:  cobra.NoArgs,
		RunE:  runViewCmd,
	}
	addReportFlags(cmd)
	return cmd
}

func runViewCmd(cmd *cobra.Command, _ []string) error {
	run, err := resolveReportRun(cmd)
	if err != nil {
		return err
	}
	defer run.Close()

	res, err := pipeline.Run(cmd.Context(), run.opts, run.logger)
	if err != nil {
		return err
	}
	ui := reportui.NewModel(res.Table, run.opts.Board.Title)
	program := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run report TUI: %w", err)
	}
	return nil
}

func newBoardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List board definitions",
		Args:  cobra.NoArgs,
		RunE:  runBoardsCmd,
	}
}

func runBoardsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return writeBoards(cmd.OutOrStdout(), board.Merge(fileCfg.BoardDefinitions()))
}

func writeBoards(w io.Writer, boards []model.Board) error {
	for i, b := range boards {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n  input:  %s\n  output: %s\n", b.Name, b.Title, b.Input, b.Output); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if err := board.Validate(b); err != nil {
			if _, err := fmt.Fprintf(w, "  error:  %v\n", err); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		for _, m := range b.Metrics {
			if _, err := fmt.Fprintf(w, "  - %s: %s\n", m.Name, describeMetric(m)); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
	}
	return nil
}

func describeMetric(m model.Metric) string {
	switch m.Kind {
	case model.MetricBucket:
		return fmt.Sprintf("cards moved to %q", m.List)
	case model.MetricTransition:
		return fmt.Sprintf("cards moved from %q to %q", m.From, m.List)
	case model.MetricKeyword:
		return fmt.Sprintf("cards named like %q", m.Keyword)
	default:
		return fmt.Sprintf("unknown kind %q", m.Kind)
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Print a written report file",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowCmd,
	}
	cmd.Flags().StringVar(&showDelimiter, "delimiter", string(report.DefaultDelimiter), "report field delimiter")
	cmd.Flags().BoolVar(&showPlot, "plot", true, "print terminal plots after the table")
	return cmd
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	delim, err := parseDelimiter(showDelimiter)
	if err != nil {
		return err
	}
	table, err := report.ReadDelimited(args[0], delim)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return printTable(cmd.OutOrStdout(), table, filepath.Base(args[0]), showPlot)
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs or print one",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historyBoard, "board", "", "only runs of this board")
	cmd.Flags().IntVar(&historyLimit, "limit", defaultHistoryLimit, "maximum runs to list (0 for all)")
	cmd.Flags().StringVar(&historyID, "id", "", "print the run with this id")
	cmd.Flags().StringVar(&historyDSN, "dsn", "", "history database path or postgres:// URL")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "dsn", &historyDSN, fileCfg.History.DSN)
	dsn := historyDSN
	if dsn == "" {
		dsn = config.DefaultHistoryPath()
	}
	st, err := store.Open(dsn)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close history: %v\n", cerr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	if historyID != "" {
		table, err := st.LoadRun(ctx, historyID)
		if err != nil {
			return err
		}
		return printTable(out, table, fmt.Sprintf("%s (run %s)", table.Board, historyID), false)
	}

	runs, err := st.ListRuns(ctx, historyBoard, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		logErrln("No archived runs. Record one with: trelloreport --history")
		return nil
	}
	for _, r := range runs {
		if _, err := fmt.Fprintf(out, "%s  %s  %-8s  %d periods  %s\n",
			r.ID, r.GeneratedAt.Local().Format("2006-01-02 15:04"), r.Board, r.Periods, r.Input); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func printTable(w io.Writer, table model.Table, title string, plot bool) error {
	if err := report.Print(w, table, report.PrintOptions{Title: title, Trends: !plot}); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if plot {
		if err := report.PlotTable(w, table, 0, false); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func parseDelimiter(value string) (rune, error) {
	switch value {
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(value) != 1 {
		return 0, fmt.Errorf("--delimiter must be a single character, got %q", value)
	}
	r, _ := utf8.DecodeRuneInString(value)
	return r, nil
}

func parseNow(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	parsed, err := trello.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now value %q (use RFC 3339 or YYYY-MM-DD)", value)
	}
	return parsed, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# trelloreport configuration
# Uncomment a value to enable it. CLI flags override config values.

[report]
# board = %q              # Board definition (see: trelloreport boards)
# periods = %d               # Number of periods
# window-days = %d          # Days per period
# chart-dir = "."            # Directory for chart images
# chart-format = %q       # png, svg or pdf
# delimiter = ","            # Report field delimiter
# charts = true              # Write chart images
# verbose = false            # Debug logging

[history]
# enabled = false            # Archive every run
# dsn = %q
#                            # SQLite path or postgres:// URL

# Extra boards. A board named like a built-in replaces it.
# [[board]]
# name = "ops"
# title = "Ops Trello Report"
# input = "ops_trello.json"
# output = "ops_trello_report.csv"
#
# [[board.metric]]
# name = "Incidents Closed"
# kind = "transition"        # bucket, transition or keyword
# from = "Incidents"
# list = "Done"
`,
		board.DefaultName,
		stats.DefaultPeriodCount,
		defaultWindowDays,
		chart.DefaultFormat,
		config.DefaultHistoryPath(),
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
