// Package board holds report definitions: which lists and keywords become
// report columns for a given Trello export.
package board

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AustinArrington87/membrane/internal/chart"
	"github.com/AustinArrington87/membrane/internal/model"
)

// DoneList is the list cards land in when work is finished.
const DoneList = "Done 🎉"

// DefaultName is the board used when none is selected.
const DefaultName = "esmc"

var builtin = []model.Board{
	{
		Name:   "esmc",
		Title:  "ESMC Trello Report",
		Input:  "esmc_trello.json",
		Output: "trello_done_cards_report.csv",
		Metrics: []model.Metric{
			{Name: "Unique Cards Moved to Done", Kind: model.MetricBucket, List: DoneList},
			{Name: "Bugs", Kind: model.MetricBucket, List: "Bugs"},
			{Name: "Squashed Bugs", Kind: model.MetricTransition, List: DoneList, From: "Bugs"},
			{Name: "Soil Tickets", Kind: model.MetricKeyword, Keyword: "soil"},
			{Name: "API Tickets", Kind: model.MetricKeyword, Keyword: "api"},
			{Name: "PM Tickets", Kind: model.MetricBucket, List: "PM Requests"},
			{Name: "PM Tickets Completed", Kind: model.MetricTransition, List: DoneList, From: "PM Requests"},
		},
	},
	{
		Name:   "star",
		Title:  "STAR Trello Report",
		Input:  "star_trello.json",
		Output: "star_trello_report.csv",
		Metrics: []model.Metric{
			{Name: "Tickets Completed", Kind: model.MetricBucket, List: DoneList},
			{Name: "Hotfixes Requested", Kind: model.MetricBucket, List: "Hotfixes"},
			{Name: "In Progress", Kind: model.MetricBucket, List: "Doing"},
			{Name: "Features Tested", Kind: model.MetricBucket, List: "Testing"},
			{Name: "In Backlog", Kind: model.MetricBucket, List: "Backlog"},
		},
	},
}

// Builtin returns copies of the bundled board definitions.
func Builtin() []model.Board {
	out := make([]model.Board, len(builtin))
	for i, b := range builtin {
		out[i] = clone(b)
	}
	return out
}

// Merge overlays extra boards on the built-ins. A board whose name matches a
// built-in replaces it; the rest are appended. The result is sorted by name.
func Merge(extra []model.Board) []model.Board {
	byName := make(map[string]model.Board)
	for _, b := range Builtin() {
		byName[b.Name] = b
	}
	for _, b := range extra {
		byName[b.Name] = clone(b)
	}
	out := make([]model.Board, 0, len(byName))
	for _, b := range byName {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve finds a board by name among the built-ins and extra definitions.
func Resolve(name string, extra []model.Board) (model.Board, error) {
	if name == "" {
		name = DefaultName
	}
	all := Merge(extra)
	for _, b := range all {
		if b.Name == name {
			if err := Validate(b); err != nil {
				return model.Board{}, err
			}
			return b, nil
		}
	}
	names := make([]string, len(all))
	for i, b := range all {
		names[i] = b.Name
	}
	return model.Board{}, fmt.Errorf("unknown board %q (available: %s)", name, strings.Join(names, ", "))
}

// ValidationError describes an unusable board definition.
type ValidationError struct {
	Board   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Board == "" {
		return "invalid board: " + e.Message
	}
	return fmt.Sprintf("invalid board %q: %s", e.Board, e.Message)
}

// Validate checks that a board can produce a report.
func Validate(b model.Board) error {
	fail := func(format string, args ...any) error {
		return &ValidationError{Board: b.Name, Message: fmt.Sprintf(format, args...)}
	}
	if strings.TrimSpace(b.Name) == "" {
		return fail("name is empty")
	}
	if len(b.Metrics) == 0 {
		return fail("no metrics defined")
	}
	seen := make(map[string]struct{}, len(b.Metrics))
	slugs := make(map[string]string, len(b.Metrics))
	for i, m := range b.Metrics {
		if strings.TrimSpace(m.Name) == "" {
			return fail("metric %d has no name", i+1)
		}
		if _, dup := seen[m.Name]; dup {
			return fail("duplicate metric %q", m.Name)
		}
		seen[m.Name] = struct{}{}
		slug := chart.Slug(m.Name)
		if other, clash := slugs[slug]; clash {
			return fail("metrics %q and %q share the chart name %q", other, m.Name, slug)
		}
		slugs[slug] = m.Name
		switch m.Kind {
		case model.MetricBucket:
			if m.List == "" {
				return fail("metric %q needs a list", m.Name)
			}
		case model.MetricTransition:
			if m.List == "" || m.From == "" {
				return fail("metric %q needs both list and from", m.Name)
			}
		case model.MetricKeyword:
			if m.Keyword == "" {
				return fail("metric %q needs a keyword", m.Name)
			}
		default:
			return fail("metric %q has unknown kind %q", m.Name, m.Kind)
		}
	}
	return nil
}

func clone(b model.Board) model.Board {
	b.Metrics = append([]model.Metric(nil), b.Metrics...)
	return b
}
