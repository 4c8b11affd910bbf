package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mailsentry/internal/graph"
	"github.com/sells-group/mailsentry/internal/model"
)

// Ledger records item outcomes.
type Ledger interface {
	RecordItem(ctx context.Context, item *model.ItemResult) error
}

// Processor runs single messages through the email process.
type Processor struct {
	s       *stages
	process *graph.Process[model.Context]
	ledger  Ledger
	now     func() time.Time
}

// NewProcessor validates deps and builds the process. ledger may be nil.
func NewProcessor(deps Deps, opts Options, ledger Ledger) (*Processor, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &stages{Deps: deps, opts: opts}
	p, err := buildProcess(s)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build process")
	}
	return &Processor{s: s, process: p, ledger: ledger, now: time.Now}, nil
}

// Process walks one file through the graph and reports what happened.
// The returned error is non-nil exactly when the item failed or did not
// verify; the result is always populated.
func (p *Processor) Process(ctx context.Context, runID, file string) (*model.ItemResult, error) {
	start := p.now()
	log := zap.L().With(zap.String("file", file))

	item := &model.ItemResult{
		ID:        uuid.NewString(),
		RunID:     runID,
		File:      file,
		CreatedAt: start.UTC(),
	}

	// latest holds the most complete state seen, for reporting on failure.
	var (
		mu     sync.Mutex
		latest model.Context
	)
	track := func(_ context.Context, ev graph.Event[model.Context]) {
		mu.Lock()
		defer mu.Unlock()
		if ev.State.Version >= latest.Version {
			latest = ev.State
		}
	}

	initial := model.Context{Keys: model.KeyFile, File: file}
	res, walkErr := graph.Execute(ctx, p.process, initial,
		graph.WithHandler(track),
		graph.WithLogger[model.Context](log),
	)

	mu.Lock()
	item.Hash, item.Filename = latest.Hash, latest.Filename
	mu.Unlock()

	err := walkErr
	if err == nil {
		err = p.conclude(item, res)
	}
	if err != nil {
		var ve *graph.VerificationError
		if errors.As(err, &ve) {
			item.Status = model.ItemInvalid
			item.Reason = "verification failed at " + ve.Node
			item.Messages = ve.Messages
		} else {
			item.Status = model.ItemFailed
		}
		item.Error = err.Error()
	}
	item.DurationMs = p.now().Sub(start).Milliseconds()

	fields := []zap.Field{
		zap.String("status", string(item.Status)),
		zap.String("hash", item.Hash),
		zap.Int64("duration_ms", item.DurationMs),
	}
	if item.Route != "" {
		fields = append(fields, zap.String("route", string(item.Route)))
	}
	if item.Status == model.ItemFailed || item.Status == model.ItemInvalid {
		log.Error("pipeline: item failed", append(fields, zap.Error(err))...)
	} else {
		log.Info("pipeline: item complete", fields...)
	}

	if p.ledger != nil && runID != "" {
		if lErr := p.ledger.RecordItem(ctx, item); lErr != nil {
			log.Warn("pipeline: record item failed", zap.Error(lErr))
		}
	}
	return item, err
}

// conclude classifies a finished walk and, for rendered items, writes the
// context marker that later runs use to skip the item.
func (p *Processor) conclude(item *model.ItemResult, res *graph.Result[model.Context]) error {
	last, ok := res.Last()
	if !ok {
		return eris.New("pipeline: walk produced no outcome")
	}
	state := last.State
	item.Hash, item.Filename = state.Hash, state.Filename

	switch last.Termination {
	case TerminationSkipped:
		item.Status = model.ItemSkipped
		item.Reason = "context marker exists"
		return nil
	case TerminationFiltered:
		item.Status = model.ItemFiltered
		item.Reason = state.IncludeReason
		return nil
	case TerminationDryRun:
		item.Status = model.ItemDryRun
		item.Reason = state.IncludeReason
		return nil
	case "":
	default:
		return eris.Errorf("pipeline: unknown termination %q", last.Termination)
	}

	route, ok := routeOf(last.Node)
	if !ok {
		return eris.Errorf("pipeline: walk ended at non-terminal node %s", last.Node)
	}
	item.Route = route
	if state.Artifact != nil {
		item.ArtifactPath = state.Artifact.Path
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return eris.Wrap(err, "pipeline: encode context")
	}
	if err := p.s.Storage.WriteFile(markerPath(state), data); err != nil {
		return eris.Wrap(err, "pipeline: write context marker")
	}
	item.Status = model.ItemProcessed
	return nil
}
