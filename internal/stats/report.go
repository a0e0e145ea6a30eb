package stats

import (
	"fmt"

	"github.com/AustinArrington87/membrane/internal/model"
	"github.com/AustinArrington87/membrane/internal/trello"
)

// BuildTable evaluates every metric of the board for every period. Rows keep
// the order of periods.
func BuildTable(actions []model.Action, board model.Board, periods []model.Period) (model.Table, error) {
	buckets := trello.ClassifyAll(actions, bucketLists(board.Metrics))
	matchers := make(map[int]NameMatcher)
	for i, m := range board.Metrics {
		switch m.Kind {
		case model.MetricBucket, model.MetricTransition:
		case model.MetricKeyword:
			matchers[i] = ContainsFold(m.Keyword)
		default:
			return model.Table{}, fmt.Errorf("metric %q: unknown kind %q", m.Name, m.Kind)
		}
	}

	table := model.Table{
		Board:   board.Name,
		Columns: board.MetricNames(),
		Rows:    make([]model.Row, 0, len(periods)),
	}
	for _, p := range periods {
		values := make([]int, len(board.Metrics))
		for i, m := range board.Metrics {
			switch m.Kind {
			case model.MetricBucket:
				values[i] = BucketCount(buckets[m.List], p)
			case model.MetricTransition:
				values[i] = TransitionCount(buckets[m.List], m.From, p)
			case model.MetricKeyword:
				values[i] = KeywordCount(actions, p, matchers[i])
			}
		}
		table.Rows = append(table.Rows, model.Row{Period: p, Values: values})
	}
	return table, nil
}

func bucketLists(metrics []model.Metric) []string {
	lists := make([]string, 0, len(metrics))
	for _, m := range metrics {
		if m.Kind == model.MetricBucket || m.Kind == model.MetricTransition {
			lists = append(lists, m.List)
		}
	}
	return lists
}
