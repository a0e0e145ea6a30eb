package stats

import (
	"fmt"
	"time"

	"github.com/AustinArrington87/membrane/internal/model"
)

const (
	// DefaultPeriodCount is the number of windows in a report.
	DefaultPeriodCount = 6
	// DefaultWindow is the width of each window.
	DefaultWindow = 30 * 24 * time.Hour
)

// GeneratePeriods returns n contiguous windows of the given width ending at now,
// most recent first: period i covers [now-(i+1)*width, now-i*width].
func GeneratePeriods(now time.Time, n int, width time.Duration) ([]model.Period, error) {
	if n <= 0 {
		return nil, fmt.Errorf("period count must be > 0")
	}
	if width <= 0 {
		return nil, fmt.Errorf("period width must be > 0")
	}
	end := now.UTC()
	periods := make([]model.Period, 0, n)
	for i := 0; i < n; i++ {
		start := end.Add(-width)
		periods = append(periods, model.Period{Start: start, End: end})
		end = start
	}
	return periods, nil
}
