// Package pipeline defines the email stages, wires them into a stage graph
// and runs messages through it one file at a time or in batches.
package pipeline

import (
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mailsentry/internal/config"
	"github.com/sells-group/mailsentry/internal/email"
	"github.com/sells-group/mailsentry/internal/layout"
	"github.com/sells-group/mailsentry/internal/llm"
	"github.com/sells-group/mailsentry/internal/prompt"
	"github.com/sells-group/mailsentry/internal/storage"
)

// Deps are the collaborators every stage draws on.
type Deps struct {
	Storage   storage.Storage
	Parser    email.Parser
	Layout    *layout.Layout
	Prompts   *prompt.Factory
	Completer llm.Completer
}

func (d Deps) validate() error {
	switch {
	case d.Storage == nil:
		return eris.New("pipeline: storage is required")
	case d.Parser == nil:
		return eris.New("pipeline: parser is required")
	case d.Layout == nil:
		return eris.New("pipeline: layout is required")
	case d.Prompts == nil:
		return eris.New("pipeline: prompt factory is required")
	case d.Completer == nil:
		return eris.New("pipeline: completer is required")
	}
	return nil
}

// Options tunes stage behavior.
type Options struct {
	Model           string
	ClassifyModel   string
	HashSampleBytes int
	// Replace reprocesses items that already have a context marker.
	Replace bool
	// DryRun stops every item after filtering, before any model call.
	DryRun   bool
	Filters  Filters
	Simplify SimplifyOptions
}

// SimplifyOptions controls message reduction.
type SimplifyOptions struct {
	Headers         []*regexp.Regexp
	TextOnly        bool
	SkipAttachments bool
}

// OptionsFromConfig compiles the stage options from cfg.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	filters, err := CompileFilters(cfg.Filters)
	if err != nil {
		return Options{}, err
	}
	headers, err := config.CompilePatterns(cfg.Simplify.Headers)
	if err != nil {
		return Options{}, eris.Wrap(err, "pipeline: simplify headers")
	}
	return Options{
		Model:           cfg.Anthropic.Model,
		ClassifyModel:   cfg.Anthropic.ClassifyModel,
		HashSampleBytes: int(cfg.Output.HashSampleBytes),
		Replace:         cfg.Job.Replace,
		DryRun:          cfg.Job.DryRun,
		Filters:         filters,
		Simplify: SimplifyOptions{
			Headers:         headers,
			TextOnly:        cfg.Simplify.TextOnly,
			SkipAttachments: cfg.Simplify.SkipAttachments,
		},
	}, nil
}

// CacheCorruptError is returned when a cached model response exists but
// no longer satisfies its schema.
type CacheCorruptError struct {
	Path string
	Err  error
}

func (e *CacheCorruptError) Error() string {
	return "pipeline: corrupt cache " + e.Path + ": " + e.Err.Error()
}

func (e *CacheCorruptError) Unwrap() error {
	return e.Err
}

// stages holds what the phase implementations share.
type stages struct {
	Deps
	opts Options
}
