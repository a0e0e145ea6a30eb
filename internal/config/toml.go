// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/AustinArrington87/membrane/internal/model"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Report  ReportConfig  `toml:"report"`
	History HistoryConfig `toml:"history"`
	Boards  []BoardConfig `toml:"board"`
}

// ReportConfig maps report-related settings.
type ReportConfig struct {
	Board       *string `toml:"board"`
	Periods     *int    `toml:"periods"`
	WindowDays  *int    `toml:"window-days"`
	ChartDir    *string `toml:"chart-dir"`
	ChartFormat *string `toml:"chart-format"`
	Delimiter   *string `toml:"delimiter"`
	Charts      *bool   `toml:"charts"`
	Verbose     *bool   `toml:"verbose"`
}

// HistoryConfig maps the run archive settings.
type HistoryConfig struct {
	Enabled *bool   `toml:"enabled"`
	DSN     *string `toml:"dsn"`
}

// BoardConfig is a [[board]] table.
type BoardConfig struct {
	Name    string         `toml:"name"`
	Title   string         `toml:"title"`
	Input   string         `toml:"input"`
	Output  string         `toml:"output"`
	Metrics []MetricConfig `toml:"metric"`
}

// MetricConfig is a [[board.metric]] table.
type MetricConfig struct {
	Name    string `toml:"name"`
	Kind    string `toml:"kind"`
	List    string `toml:"list"`
	From    string `toml:"from"`
	Keyword string `toml:"keyword"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// BoardDefinitions converts [[board]] tables to report definitions. Kinds are
// left unchecked; board.Validate reports them when the board is used.
func (c FileConfig) BoardDefinitions() []model.Board {
	out := make([]model.Board, 0, len(c.Boards))
	for _, bc := range c.Boards {
		b := model.Board{
			Name:   bc.Name,
			Title:  bc.Title,
			Input:  bc.Input,
			Output: bc.Output,
		}
		if b.Title == "" {
			b.Title = bc.Name
		}
		if b.Input == "" {
			b.Input = bc.Name + "_trello.json"
		}
		if b.Output == "" {
			b.Output = bc.Name + "_trello_report.csv"
		}
		for _, mc := range bc.Metrics {
			b.Metrics = append(b.Metrics, model.Metric{
				Name:    mc.Name,
				Kind:    model.MetricKind(mc.Kind),
				List:    mc.List,
				From:    mc.From,
				Keyword: mc.Keyword,
			})
		}
		out = append(out, b)
	}
	return out
}
