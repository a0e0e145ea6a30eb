// Package stats contains period generation and card counting for reports.
package stats

import (
	"strings"

	"github.com/AustinArrington87/membrane/internal/model"
)

// NameMatcher decides whether a card name belongs to a keyword metric.
type NameMatcher func(name string) bool

// ContainsFold matches card names containing keyword, ignoring case.
func ContainsFold(keyword string) NameMatcher {
	needle := strings.ToLower(keyword)
	return func(name string) bool {
		return strings.Contains(strings.ToLower(name), needle)
	}
}

// BucketCount counts distinct cards moved into the bucket's list during p.
func BucketCount(bucket model.Bucket, p model.Period) int {
	return countDistinct(bucket.Actions, p, nil)
}

// TransitionCount counts distinct cards moved into the bucket's list directly
// from fromList during p. The source list name must match exactly.
func TransitionCount(bucket model.Bucket, fromList string, p model.Period) int {
	return countDistinct(bucket.Actions, p, func(a model.Action) bool {
		return a.Data.ListBefore != nil && a.Data.ListBefore.Name == fromList
	})
}

// KeywordCount counts distinct cards among all actions in p whose name matches.
// Unlike the other counts it is not limited to moves into a single list.
func KeywordCount(actions []model.Action, p model.Period, match NameMatcher) int {
	return countDistinct(actions, p, func(a model.Action) bool {
		return a.Data.Card != nil && match(a.Data.Card.Name)
	})
}

func countDistinct(actions []model.Action, p model.Period, keep func(model.Action) bool) int {
	seen := map[string]struct{}{}
	for _, a := range actions {
		if !a.Dated || !p.Contains(a.At) {
			continue
		}
		id := a.CardID()
		if id == "" {
			continue
		}
		if keep != nil && !keep(a) {
			continue
		}
		seen[id] = struct{}{}
	}
	return len(seen)
}
