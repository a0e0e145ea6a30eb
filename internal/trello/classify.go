package trello

import "github.com/AustinArrington87/membrane/internal/model"

// Classify returns the actions that moved a card into the named list. The match
// on list name is exact. Actions without a parsed date are never included.
func Classify(actions []model.Action, list string) model.Bucket {
	bucket := model.Bucket{List: list}
	for _, a := range actions {
		if a.Type != model.ActionTypeUpdateCard || !a.Dated {
			continue
		}
		if a.Data.ListAfter == nil || a.Data.ListAfter.Name != list {
			continue
		}
		bucket.Actions = append(bucket.Actions, a)
	}
	return bucket
}

// ClassifyAll builds one bucket per distinct list name.
func ClassifyAll(actions []model.Action, lists []string) map[string]model.Bucket {
	buckets := make(map[string]model.Bucket, len(lists))
	for _, list := range lists {
		if _, ok := buckets[list]; ok {
			continue
		}
		buckets[list] = Classify(actions, list)
	}
	return buckets
}
