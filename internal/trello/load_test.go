package trello

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "board.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	return path
}

func TestLoadFileStripsBOM(t *testing.T) {
	path := writeExport(t, "\xEF\xBB\xBF"+`{"name":"ESMC","actions":[]}`)
	doc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if doc.BoardName() != "ESMC" {
		t.Fatalf("unexpected board name %q", doc.BoardName())
	}
	actions, err := doc.Actions()
	if err != nil {
		t.Fatalf("Actions failed: %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("expected no actions, got %d", len(actions))
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}
}

func TestLoadFileInvalidJSON(t *testing.T) {
	path := writeExport(t, `{"actions": [`)
	_, err := LoadFile(path)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
}

func TestActionsSchemaErrors(t *testing.T) {
	cases := map[string]string{
		"missing":   `{"name":"x"}`,
		"not array": `{"actions":{"a":1}}`,
		"null":      `{"actions":null}`,
	}
	for name, content := range cases {
		doc, err := Parse(name, []byte(content))
		if err != nil {
			t.Fatalf("%s: parse failed: %v", name, err)
		}
		_, err = doc.Actions()
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			t.Fatalf("%s: expected SchemaError, got %v", name, err)
		}
	}
}

func TestParseNonObjectTopLevelIsSchemaError(t *testing.T) {
	for _, raw := range []string{`[1,2]`, `null`, `"board"`, `42`} {
		_, err := Parse("x", []byte(raw))
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			t.Fatalf("%s: expected SchemaError, got %v", raw, err)
		}
	}
	_, err := Parse("x", []byte(`{"actions": [`))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError for truncated JSON, got %v", err)
	}
}

func TestActionsToleratesBadRecords(t *testing.T) {
	content := `{"actions":[
		{"type":"updateCard","date":"2024-06-15T10:00:00.000Z","data":{"card":{"id":"c1","name":"A"},"listAfter":{"name":"Done"}}},
		{"type":"updateCard","date":"not a date","data":{"card":{"id":"c2"}}},
		{"type":"updateCard","date":"2024-06-15T10:00:00Z","data":"broken"},
		{"type":"commentCard","date":"2024-06-15T10:00:00Z"}
	]}`
	doc, err := Parse("x", []byte(content))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	actions, err := doc.Actions()
	if err != nil {
		t.Fatalf("Actions failed: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("expected 3 decoded actions, got %d", len(actions))
	}
	if doc.Skipped != 1 {
		t.Fatalf("expected 1 skipped record, got %d", doc.Skipped)
	}
	want := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	if !actions[0].Dated || !actions[0].At.Equal(want) {
		t.Fatalf("unexpected timestamp: %v (dated=%v)", actions[0].At, actions[0].Dated)
	}
	if actions[1].Dated {
		t.Fatalf("expected unparsable date to leave action undated")
	}
	if actions[2].Data.Card != nil {
		t.Fatalf("expected action without data to have no card")
	}
}

func TestActionsKeepsRecordWithMalformedOptionalField(t *testing.T) {
	content := `{"actions":[
		{"type":"updateCard","date":"2024-06-15T10:00:00Z",
		 "data":{"card":{"id":"c1","name":"Fix login"},"listBefore":"Bugs","listAfter":{"name":"Done 🎉"}}},
		{"type":"updateCard","date":"2024-06-16T10:00:00Z",
		 "data":{"card":["c2"],"listAfter":{"name":"Done 🎉"}}}
	]}`
	doc, err := Parse("x", []byte(content))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	actions, err := doc.Actions()
	if err != nil {
		t.Fatalf("Actions failed: %v", err)
	}
	if len(actions) != 2 || doc.Skipped != 0 {
		t.Fatalf("expected 2 decoded and 0 skipped, got %d and %d", len(actions), doc.Skipped)
	}
	first := actions[0]
	if first.Data.ListBefore != nil {
		t.Fatalf("expected malformed listBefore to be dropped, got %+v", first.Data.ListBefore)
	}
	if first.CardID() != "c1" || first.ListAfterName() != "Done 🎉" {
		t.Fatalf("expected card and listAfter intact, got %q %q", first.CardID(), first.ListAfterName())
	}
	if actions[1].Data.Card != nil || actions[1].ListAfterName() != "Done 🎉" {
		t.Fatalf("expected only the malformed card to be dropped: %+v", actions[1].Data)
	}

	done := Classify(actions, "Done 🎉")
	if len(done.Actions) != 1 || done.Actions[0].CardID() != "c1" {
		t.Fatalf("expected the c1 move in the done bucket, got %+v", done.Actions)
	}
}

func TestParseDateNormalizesToUTC(t *testing.T) {
	cases := map[string]time.Time{
		"2024-06-15T10:00:00.123Z":    time.Date(2024, 6, 15, 10, 0, 0, 123000000, time.UTC),
		"2024-06-15T12:00:00+02:00":   time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
		"2024-06-15T10:00:00":         time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
		"2024-06-15":                  time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		"2024-06-15 10:00:00.5-01:00": time.Date(2024, 6, 15, 11, 0, 0, 500000000, time.UTC),
	}
	for input, want := range cases {
		got, err := ParseDate(input)
		if err != nil {
			t.Fatalf("ParseDate(%q) failed: %v", input, err)
		}
		if !got.Equal(want) || got.Location() != time.UTC {
			t.Fatalf("ParseDate(%q) = %v, want %v", input, got, want)
		}
	}
	for _, bad := range []string{"", "yesterday", "2024-13-01"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
