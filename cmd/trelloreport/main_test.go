package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AustinArrington87/membrane/internal/board"
	"github.com/AustinArrington87/membrane/internal/config"
)

func TestParseDelimiter(t *testing.T) {
	cases := map[string]rune{",": ',', ";": ';', `\t`: '\t', "tab": '\t', "|": '|'}
	for in, want := range cases {
		got, err := parseDelimiter(in)
		if err != nil {
			t.Fatalf("parseDelimiter(%q) failed: %v", in, err)
		}
		if got != want {
			t.Fatalf("parseDelimiter(%q) = %q, want %q", in, got, want)
		}
	}
	for _, bad := range []string{"", ",,"} {
		if _, err := parseDelimiter(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseNow(t *testing.T) {
	got, err := parseNow("2024-07-01")
	if err != nil {
		t.Fatalf("parseNow failed: %v", err)
	}
	if !got.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
	if _, err := parseNow("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWriteBoardsListsMetrics(t *testing.T) {
	var buf bytes.Buffer
	if err := writeBoards(&buf, board.Builtin()); err != nil {
		t.Fatalf("writeBoards failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"esmc  ESMC Trello Report",
		`- Squashed Bugs: cards moved from "Bugs" to "Done 🎉"`,
		`- Soil Tickets: cards named like "soil"`,
		"star  STAR Trello Report",
		"output: star_trello_report.csv",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("template does not decode: %v", err)
	}
	if cfg.Report.Board != nil || len(cfg.Boards) != 0 {
		t.Fatalf("expected every template value to be commented out")
	}
}

func TestRootCommandRunsReport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	input := filepath.Join(dir, "star.json")
	export := `{"actions": [
		{"type": "updateCard", "date": "2024-06-20T10:00:00Z",
		 "data": {"card": {"id": "c1", "name": "Ship it"}, "listAfter": {"name": "Done 🎉"}}}
	]}`
	if err := os.WriteFile(input, []byte(export), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	output := filepath.Join(dir, "report.tsv")

	cmd := newRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{
		"--board", "star", "--input", input, "--output", output,
		"--now", "2024-07-01", "--periods", "2", "--delimiter", "tab", "--no-charts",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	raw, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", raw)
	}
	if lines[1] != "2024-06-01\t2024-07-01\t1\t0\t0\t0\t0" {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if !strings.Contains(stdout.String(), "STAR Trello Report") {
		t.Fatalf("expected console table, got %q", stdout.String())
	}
}

func TestRootCommandRejectsOversizedWindow(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	output := filepath.Join(dir, "report.csv")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"--board", "star", "--input", filepath.Join(dir, "star.json"), "--output", output,
		"--window-days", "200000", "--no-charts",
	})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--window-days must be at most 36500") {
		t.Fatalf("expected window bound error, got %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatalf("expected no report to be written")
	}
}
