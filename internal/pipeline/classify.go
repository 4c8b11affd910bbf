package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/mailsentry/internal/graph"
	"github.com/sells-group/mailsentry/internal/llm"
	"github.com/sells-group/mailsentry/internal/model"
	"github.com/sells-group/mailsentry/internal/schema"
)

type classificationsResponse struct {
	Classifications []model.Classification `json:"classifications"`
}

var classificationsSchema = schema.MustFor[classificationsResponse]("classifications",
	schema.Range("classifications.[].strength", 0, 1),
)

type classifyPhase struct{ s *stages }

func (p *classifyPhase) Verify(in model.Context) graph.Verification {
	return requireKeys(in, model.KeyMessage, model.KeyDetailPath, model.KeyFilename)
}

// Execute classifies the message against the taxonomy. Coordinates the
// taxonomy does not know are kept but logged.
func (p *classifyPhase) Execute(ctx context.Context, in model.Context) (model.Context, error) {
	resp, err := completeCached[classificationsResponse](ctx, p.s, responsePath(in, "classify"), llm.Request{
		Name:   "classify",
		Model:  p.s.opts.ClassifyModel,
		Prompt: p.s.Prompts.Classify(in.Message),
		Schema: classificationsSchema,
	})
	if err != nil {
		return model.Context{}, err
	}

	tax := p.s.Prompts.Taxonomy()
	for _, c := range resp.Classifications {
		if !tax.Contains(c.Coordinate) {
			zap.L().Warn("pipeline: classification outside taxonomy",
				zap.String("file", in.File),
				zap.String("coordinate", strings.Join(c.Coordinate, "/")),
			)
		}
	}

	return model.Context{
		Keys:            model.KeyClassifications,
		Classifications: orEmpty(resp.Classifications),
	}, nil
}

// fanOut sends every classified item to all four sentries.
func (s *stages) fanOut(_ context.Context, _, _ model.Context) (graph.Route[model.Context], error) {
	conns := make([]graph.Connection[model.Context], 0, len(sentryTable))
	for _, e := range sentryTable {
		conns = append(conns, graph.Connection[model.Context]{
			Name:      "to_" + e.node,
			To:        e.node,
			Transform: sentryInput,
		})
	}
	return graph.Follow(conns...), nil
}

// sentryInput narrows the state to what a sentry reads. Every sentry gets
// the same view, and the full state is carried forward unchanged.
func sentryInput(_, state model.Context) (model.Context, model.Context) {
	in := model.Context{
		Keys: state.Keys & (model.KeyFile | model.KeyMessage | model.KeyClassifications |
			model.KeyDetailPath | model.KeyFilename),
		Version:         state.Version,
		File:            state.File,
		Message:         state.Message,
		Classifications: state.Classifications,
		DetailPath:      state.DetailPath,
		Filename:        state.Filename,
	}
	return in, state
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
