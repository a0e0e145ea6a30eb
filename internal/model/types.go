// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"time"
)

// ActionTypeUpdateCard is the Trello action type recorded when a card changes lists.
const ActionTypeUpdateCard = "updateCard"

// Action is a single entry of a Trello board's action log.
type Action struct {
	ID   string     `json:"id"`
	Type string     `json:"type"`
	Date string     `json:"date"`
	Data ActionData `json:"data"`

	// At is the parsed UTC timestamp; it is only meaningful when Dated is true.
	At    time.Time `json:"-"`
	Dated bool      `json:"-"`
}

// ActionData holds the optional payload fields used for reporting.
type ActionData struct {
	Card       *Card    `json:"card,omitempty"`
	ListBefore *ListRef `json:"listBefore,omitempty"`
	ListAfter  *ListRef `json:"listAfter,omitempty"`
}

// UnmarshalJSON decodes each payload field on its own. A field with the wrong
// shape is left nil instead of failing the whole action.
func (d *ActionData) UnmarshalJSON(raw []byte) error {
	var fields struct {
		Card       json.RawMessage `json:"card"`
		ListBefore json.RawMessage `json:"listBefore"`
		ListAfter  json.RawMessage `json:"listAfter"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	*d = ActionData{
		Card:       decodeOptional[Card](fields.Card),
		ListBefore: decodeOptional[ListRef](fields.ListBefore),
		ListAfter:  decodeOptional[ListRef](fields.ListAfter),
	}
	return nil
}

func decodeOptional[T any](raw json.RawMessage) *T {
	if len(raw) == 0 {
		return nil
	}
	var v *T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// Card identifies the card an action touched.
type Card struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListRef names a Trello list.
type ListRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// CardID returns the card id of an action, or "" when the action has none.
func (a Action) CardID() string {
	if a.Data.Card == nil {
		return ""
	}
	return a.Data.Card.ID
}

// CardName returns the card name of an action, or "" when the action has none.
func (a Action) CardName() string {
	if a.Data.Card == nil {
		return ""
	}
	return a.Data.Card.Name
}

// ListAfterName returns the destination list name, or "" when absent.
func (a Action) ListAfterName() string {
	if a.Data.ListAfter == nil {
		return ""
	}
	return a.Data.ListAfter.Name
}

// ListBeforeName returns the source list name, or "" when absent.
func (a Action) ListBeforeName() string {
	if a.Data.ListBefore == nil {
		return ""
	}
	return a.Data.ListBefore.Name
}

// Bucket is the subset of actions that moved cards into one list.
type Bucket struct {
	List    string
	Actions []Action
}

// Period is a reporting window; both ends are inclusive.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// MetricKind selects the counting rule of a metric.
type MetricKind string

const (
	// MetricBucket counts cards moved into List.
	MetricBucket MetricKind = "bucket"
	// MetricTransition counts cards moved from From into List.
	MetricTransition MetricKind = "transition"
	// MetricKeyword counts cards whose name contains Keyword, in any list.
	MetricKeyword MetricKind = "keyword"
)

// Metric is one report column.
type Metric struct {
	Name    string
	Kind    MetricKind
	List    string
	From    string
	Keyword string
}

// Board is a report definition for one Trello board export.
type Board struct {
	Name    string
	Title   string
	Input   string
	Output  string
	Metrics []Metric
}

// MetricNames returns the column names of the board in order.
func (b Board) MetricNames() []string {
	names := make([]string, len(b.Metrics))
	for i, m := range b.Metrics {
		names[i] = m.Name
	}
	return names
}

// Row holds the metric values of one period.
type Row struct {
	Period Period
	Values []int
}

// Table is an assembled report, rows ordered most recent period first.
type Table struct {
	Board   string
	Columns []string
	Rows    []Row
}

// Column returns the values of column i across all rows.
func (t Table) Column(i int) []int {
	out := make([]int, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row.Values) {
			out[r] = row.Values[i]
		}
	}
	return out
}

// RunSummary describes an archived report run.
type RunSummary struct {
	ID          string
	Board       string
	Input       string
	GeneratedAt time.Time
	Periods     int
}
