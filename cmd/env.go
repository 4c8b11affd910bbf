package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mailsentry/internal/email"
	"github.com/sells-group/mailsentry/internal/layout"
	"github.com/sells-group/mailsentry/internal/llm"
	"github.com/sells-group/mailsentry/internal/pipeline"
	"github.com/sells-group/mailsentry/internal/prompt"
	"github.com/sells-group/mailsentry/internal/resilience"
	"github.com/sells-group/mailsentry/internal/storage"
	"github.com/sells-group/mailsentry/internal/store"
	anthropicpkg "github.com/sells-group/mailsentry/pkg/anthropic"
)

// pipelineEnv holds the initialized store, model client and processor
// needed by the process/file/serve commands.
type pipelineEnv struct {
	Store     store.Store // nil when the ledger is disabled
	Storage   *storage.FS
	LLM       *llm.Client
	Processor *pipeline.Processor
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.LLM != nil {
		for model, u := range pe.LLM.Usage() {
			zap.L().Info("token usage",
				zap.String("model", model),
				zap.Int64("input_tokens", u.InputTokens),
				zap.Int64("output_tokens", u.OutputTokens),
				zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
			)
		}
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens and migrates the configured run ledger. The "none"
// driver returns a nil store.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "mailsentry.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// requireStore is initStore for commands that only make sense with a ledger.
func requireStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("the run ledger is disabled (store.driver: none)")
	}
	return st, nil
}

// outputLayout builds the output layout from cfg.
func outputLayout() (*layout.Layout, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	st, err := layout.ParseStructure(cfg.Output.Structure)
	if err != nil {
		return nil, err
	}
	return &layout.Layout{
		Directory:       cfg.Output.Directory,
		Structure:       st,
		FilenameOptions: cfg.Output.FilenameOptions,
		Location:        loc,
	}, nil
}

// initPipeline validates the config and wires the processor. Callers
// should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Anthropic.Key == "" && !cfg.Job.DryRun {
		return nil, eris.New("anthropic key is required (MAILSENTRY_ANTHROPIC_KEY)")
	}

	fs := storage.NewOS()
	lay, err := outputLayout()
	if err != nil {
		return nil, err
	}

	prompts, err := prompt.NewFactory(fs.Fs(), prompt.Options{
		OverrideDirectory:  cfg.Prompts.OverrideDirectory,
		ContextDirectories: cfg.Prompts.ContextDirectories,
		TaxonomyFile:       cfg.Prompts.TaxonomyFile,
	})
	if err != nil {
		return nil, err
	}

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.Anthropic.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Anthropic.MaxAttempts
	}
	client := llm.New(anthropicpkg.NewClient(cfg.Anthropic.Key), llm.Options{
		MaxTokens:         cfg.Anthropic.MaxTokens,
		RequestsPerSecond: cfg.Anthropic.RequestsPerSecond,
		CacheTTL:          cfg.Anthropic.CacheTTL,
		Retry:             retry,
	})

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	var ledger pipeline.Ledger
	if st != nil {
		ledger = st
	}
	proc, err := pipeline.NewProcessor(pipeline.Deps{
		Storage:   fs,
		Parser:    email.NewParser(),
		Layout:    lay,
		Prompts:   prompts,
		Completer: client,
	}, opts, ledger)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}

	return &pipelineEnv{Store: st, Storage: fs, LLM: client, Processor: proc}, nil
}
