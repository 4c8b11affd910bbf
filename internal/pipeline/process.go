package pipeline

import (
	"github.com/sells-group/mailsentry/internal/graph"
	"github.com/sells-group/mailsentry/internal/model"
)

// Node names.
const (
	NodeLocate        = "locate"
	NodeFilter        = "filter"
	NodeSimplify      = "simplify"
	NodeClassify      = "classify"
	NodeEvent         = "event"
	NodePerson        = "person"
	NodeReceipt       = "receipt"
	NodeBillSentry    = "bill_sentry"
	NodeAggregate     = "aggregate"
	NodeBill          = "bill"
	NodeReceiptRender = "receipt_render"
	NodeSummarize     = "summarize"
)

// Decision names.
const (
	DecisionCheckExisting = "check_existing"
	DecisionInclude       = "include"
	DecisionFanOut        = "fan_out"
	DecisionRoute         = "route"
)

// Termination names.
const (
	TerminationSkipped  = "skipped"
	TerminationFiltered = "filtered"
	TerminationDryRun   = "dry_run"
)

// ProcessName names the email process.
const ProcessName = "mailsentry"

type ctxNode = graph.Node[model.Context]

// buildProcess wires the stages into the email graph:
//
//	locate -> check_existing -> filter -> include -> simplify -> classify
//	  -> fan_out -> {event, person, receipt, bill_sentry} -> aggregate
//	  -> route -> {bill | receipt_render | summarize}
func buildProcess(s *stages) (*graph.Process[model.Context], error) {
	sentryNames := make([]string, 0, len(sentryTable))
	nodes := []*ctxNode{
		graph.NewPhase[model.Context](NodeLocate, &locatePhase{s}).WithDecision(graph.Decision[model.Context]{
			Name:    DecisionCheckExisting,
			Targets: []string{NodeFilter},
			Decide:  s.checkExisting,
		}),
		graph.NewPhase[model.Context](NodeFilter, &filterPhase{s}).WithDecision(graph.Decision[model.Context]{
			Name:    DecisionInclude,
			Targets: []string{NodeSimplify},
			Decide:  s.includeDecision,
		}),
		graph.NewPhase[model.Context](NodeSimplify, &simplifyPhase{s},
			graph.Connect[model.Context]("to_classify", NodeClassify),
		),
	}

	for _, e := range sentryTable {
		sentryNames = append(sentryNames, e.node)
		nodes = append(nodes, graph.NewPhase(e.node, e.build(s),
			graph.Connect[model.Context]("to_aggregate", NodeAggregate),
		))
	}

	nodes = append(nodes,
		graph.NewPhase[model.Context](NodeClassify, &classifyPhase{s}).WithDecision(graph.Decision[model.Context]{
			Name:    DecisionFanOut,
			Targets: sentryNames,
			Decide:  s.fanOut,
		}),
		graph.NewAggregator[model.Context](NodeAggregate, graph.AggregatorFunc[model.Context](sentryAggregate)).
			WithDecision(graph.Decision[model.Context]{
				Name:    DecisionRoute,
				Targets: []string{NodeBill, NodeReceiptRender, NodeSummarize},
				Decide:  routeDecision,
			}),
	)

	renders := newRenders(s)
	for _, name := range []string{NodeBill, NodeReceiptRender, NodeSummarize} {
		nodes = append(nodes, graph.NewPhase[model.Context](name, renders[name]))
	}

	return graph.NewProcess(ProcessName, NodeLocate, nodes...)
}

// routeOf maps a terminal render node to its route.
func routeOf(node string) (model.Route, bool) {
	switch node {
	case NodeBill:
		return model.RouteBill, true
	case NodeReceiptRender:
		return model.RouteReceipt, true
	case NodeSummarize:
		return model.RouteSummary, true
	}
	return "", false
}
