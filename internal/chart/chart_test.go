package chart

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AustinArrington87/membrane/internal/model"
)

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "PM Tickets Completed", want: "pm_tickets_completed"},
		{in: "Unique Cards Moved to Done", want: "unique_cards_moved_to_done"},
		{in: "Done 🎉", want: "done"},
		{in: "  API / Soil -- Tickets  ", want: "api_soil_tickets"},
		{in: "", want: "metric"},
		{in: "🎉", want: "metric"},
		{in: "Bugs2024", want: "bugs2024"},
	}
	for _, tc := range cases {
		if got := Slug(tc.in); got != tc.want {
			t.Fatalf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat("png"))
	assert.True(t, ValidFormat("SVG"))
	assert.False(t, ValidFormat("gif"))
	assert.False(t, ValidFormat(""))
}

func chartTable() model.Table {
	end := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	mid := end.AddDate(0, 0, -30)
	start := mid.AddDate(0, 0, -30)
	return model.Table{
		Board:   "esmc",
		Columns: []string{"Bugs", "Squashed Bugs"},
		Rows: []model.Row{
			{Period: model.Period{Start: mid, End: end}, Values: []int{4, 0}},
			{Period: model.Period{Start: start, End: mid}, Values: []int{1, 0}},
		},
	}
}

func TestSeriesIsOldestFirst(t *testing.T) {
	labels, values := series(chartTable(), 0)
	assert.Equal(t, []string{"2024-06-01", "2024-07-01"}, labels)
	assert.Equal(t, []float64{1, 4}, values)

	labels, values = series(chartTable(), -1)
	assert.Len(t, labels, 2)
	assert.Nil(t, values)
}

func TestRenderAllWritesOneImagePerMetric(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	results := RenderAll(dir, chartTable(), "png")
	require.Len(t, results, 2)

	for _, res := range results {
		require.NoError(t, res.Err, res.Metric)
		info, err := os.Stat(res.Path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
	assert.Equal(t, filepath.Join(dir, "bugs.png"), results[0].Path)
	assert.Equal(t, filepath.Join(dir, "squashed_bugs.png"), results[1].Path)
}

func TestRenderAllSuffixesCollidingSlugs(t *testing.T) {
	dir := t.TempDir()
	table := chartTable()
	table.Columns = []string{"API Tickets", "api tickets!"}

	results := RenderAll(dir, table, "svg")
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(dir, "api_tickets.svg"), results[0].Path)
	assert.Equal(t, filepath.Join(dir, "api_tickets_2.svg"), results[1].Path)
	for _, res := range results {
		require.NoError(t, res.Err, res.Metric)
		assert.FileExists(t, res.Path)
	}
}

func TestRenderAllKeepsGoingAfterFailure(t *testing.T) {
	dir := t.TempDir()
	// A directory at the target path makes the file create fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "bugs.svg"), 0o755))

	results := RenderAll(dir, chartTable(), "svg")
	require.Len(t, results, 2)

	var renderErr *RenderError
	require.True(t, errors.As(results[0].Err, &renderErr), "expected RenderError, got %v", results[0].Err)
	assert.Equal(t, "Bugs", renderErr.Metric)

	require.NoError(t, results[1].Err)
	_, err := os.Stat(filepath.Join(dir, "squashed_bugs.svg"))
	assert.NoError(t, err)
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bugs.gif")
	err := Render(path, "Bugs Over Time", "Bugs", []string{"2024-07-01"}, []float64{1})
	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, path, renderErr.Path)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRenderEmptySeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.png")
	require.NoError(t, Render(path, "Empty", "Empty", nil, nil))
}
