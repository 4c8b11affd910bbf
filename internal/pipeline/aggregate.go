package pipeline

import (
	"context"

	"github.com/sells-group/mailsentry/internal/graph"
	"github.com/sells-group/mailsentry/internal/model"
)

// sentryKeys must all be defined before the join fires. Empty lists count.
const sentryKeys = model.KeyEvents | model.KeyPeople | model.KeyClassifications |
	model.KeyTransactions | model.KeyBills

// sentryAggregate is Ready once every sentry has contributed.
func sentryAggregate(joined model.Context) graph.AggregationResult[model.Context] {
	if joined.Has(sentryKeys) {
		return graph.ReadyWith(joined)
	}
	return graph.Pending[model.Context]()
}

// chooseRoute picks the render node: bills first, then transactions, then
// a plain summary.
func chooseRoute(c model.Context) string {
	switch {
	case len(c.Bills) > 0:
		return NodeBill
	case len(c.Transactions) > 0:
		return NodeReceiptRender
	default:
		return NodeSummarize
	}
}

func routeDecision(_ context.Context, _, state model.Context) (graph.Route[model.Context], error) {
	to := chooseRoute(state)
	return graph.Follow(graph.Connect[model.Context]("to_"+to, to)), nil
}
