package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mailsentry/internal/email"
	"github.com/sells-group/mailsentry/internal/graph"
	"github.com/sells-group/mailsentry/internal/layout"
	"github.com/sells-group/mailsentry/internal/model"
)

// ErrNoDate is returned for messages whose Date header is missing or
// unparseable; without it there is no output directory to place them in.
var ErrNoDate = eris.New("pipeline: message has no date")

const hashLen = 8

type locatePhase struct{ s *stages }

func (p *locatePhase) Verify(in model.Context) graph.Verification {
	return requireKeys(in, model.KeyFile)
}

// Execute fingerprints and parses the file and derives every path the
// later stages write to.
func (p *locatePhase) Execute(_ context.Context, in model.Context) (model.Context, error) {
	hash, err := p.s.Storage.HashFile(in.File, p.s.opts.HashSampleBytes)
	if err != nil {
		return model.Context{}, eris.Wrap(err, "pipeline: locate")
	}
	if len(hash) > hashLen {
		hash = hash[:hashLen]
	}

	msg, err := email.ParseFile(p.s.Parser, p.s.Storage, in.File)
	if err != nil {
		return model.Context{}, eris.Wrap(err, "pipeline: locate")
	}
	if msg.Date.IsZero() {
		return model.Context{}, eris.Wrapf(ErrNoDate, "%s", in.File)
	}

	outputPath := p.s.Layout.OutputDirectory(msg.Date)
	contextPath := filepath.Join(outputPath, ".context")
	detailPath := filepath.Join(outputPath, ".detail")
	for _, dir := range []string{outputPath, contextPath, detailPath} {
		if err := p.s.Storage.CreateDirectory(dir); err != nil {
			return model.Context{}, eris.Wrap(err, "pipeline: locate")
		}
	}

	return model.Context{
		Keys: model.KeyCreationTime | model.KeyOutputPath | model.KeyContextPath |
			model.KeyDetailPath | model.KeyHash | model.KeyFilename | model.KeyMessage,
		CreationTime: msg.Date,
		OutputPath:   outputPath,
		ContextPath:  contextPath,
		DetailPath:   detailPath,
		Hash:         hash,
		Filename:     p.s.Layout.Filename(msg.Date, layout.OutputKind, hash, msg.Subject),
		Message:      msg,
	}, nil
}

// markerPath is the context marker whose presence means the item is done.
func markerPath(c model.Context) string {
	return filepath.Join(c.ContextPath, c.Filename+".json")
}

// checkExisting ends the walk for items that already have a marker.
func (s *stages) checkExisting(_ context.Context, _, state model.Context) (graph.Route[model.Context], error) {
	if !s.opts.Replace {
		ok, err := s.Storage.Exists(markerPath(state))
		if err != nil {
			return graph.Route[model.Context]{}, err
		}
		if ok {
			return graph.Terminate[model.Context](TerminationSkipped), nil
		}
	}
	return graph.Follow(graph.Connect[model.Context]("to_filter", NodeFilter)), nil
}

// requireKeys reports one message per missing key.
func requireKeys(in model.Context, keys ...model.Key) graph.Verification {
	v := graph.Verified()
	for _, k := range keys {
		v.Require(in.Has(k), k.String()+" is required")
	}
	return v
}
