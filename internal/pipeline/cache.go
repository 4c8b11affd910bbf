package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mailsentry/internal/layout"
	"github.com/sells-group/mailsentry/internal/llm"
	"github.com/sells-group/mailsentry/internal/model"
)

// responsePath is where the raw model response for kind is cached.
func responsePath(in model.Context, kind string) string {
	return filepath.Join(in.DetailPath, layout.ResponseName(in.Filename, kind))
}

// completeCached returns the response cached at path when there is one and
// otherwise calls the model and caches what it returns. A cached response
// is validated like a fresh one; one that fails is a CacheCorruptError.
func completeCached[T any](ctx context.Context, s *stages, path string, req llm.Request) (T, error) {
	var out T
	log := zap.L().With(zap.String("stage", req.Name), zap.String("path", path))

	ok, err := s.Storage.Exists(path)
	if err != nil {
		return out, err
	}
	if ok {
		raw, err := s.Storage.ReadFile(path)
		if err != nil {
			return out, err
		}
		if err := req.Schema.Decode(raw, &out); err != nil {
			return out, &CacheCorruptError{Path: path, Err: err}
		}
		log.Debug("pipeline: cached response")
		return out, nil
	}

	out, raw, err := llm.CompleteAs[T](ctx, s.Completer, req)
	if err != nil {
		return out, err
	}
	if err := s.Storage.WriteFile(path, indent(raw)); err != nil {
		return out, eris.Wrapf(err, "pipeline: cache %s response", req.Name)
	}
	return out, nil
}

func indent(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return raw
	}
	return buf.Bytes()
}
