// Package trello reads Trello board exports and classifies their actions.
package trello

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AustinArrington87/membrane/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Document is the raw top-level object of a board export.
type Document struct {
	Path   string
	fields map[string]json.RawMessage

	// Skipped counts action entries that could not be decoded.
	Skipped int
}

// LoadFile reads and parses a board export. A leading byte-order mark is ignored.
func LoadFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return Parse(path, raw)
}

// Parse decodes an export that has already been read into memory.
func Parse(path string, raw []byte) (*Document, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &SchemaError{Message: "top level is not an object"}
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	if fields == nil {
		return nil, &SchemaError{Message: "top level is not an object"}
	}
	return &Document{Path: path, fields: fields}, nil
}

// BoardName returns the export's top-level board name, if any.
func (d *Document) BoardName() string {
	raw, ok := d.fields["name"]
	if !ok {
		return ""
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return ""
	}
	return name
}

// Actions decodes the "actions" array. Entries that do not decode as an action
// are skipped and counted in Skipped; dates that do not parse leave Dated false.
func (d *Document) Actions() ([]model.Action, error) {
	raw, ok := d.fields["actions"]
	if !ok {
		return nil, &SchemaError{Key: "actions", Message: "is missing"}
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil, &SchemaError{Key: "actions", Message: "is not an array"}
	}

	d.Skipped = 0
	actions := make([]model.Action, 0, len(entries))
	for _, entry := range entries {
		var action model.Action
		if err := json.Unmarshal(entry, &action); err != nil {
			d.Skipped++
			continue
		}
		if at, err := ParseDate(action.Date); err == nil {
			action.At = at
			action.Dated = true
		}
		actions = append(actions, action)
	}
	return actions, nil
}

var dateLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseDate parses an action timestamp and normalizes it to UTC. Values without
// a zone are taken as UTC.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
