package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mailsentry/internal/model"
)

// BatchOptions controls RunBatch.
type BatchOptions struct {
	RunID       string
	Concurrency int
	// Limit caps the number of files processed; 0 means all.
	Limit int
}

// RunBatch processes files with bounded concurrency. Item failures are
// counted, never returned; the error is non-nil only when ctx ends early.
func RunBatch(ctx context.Context, p *Processor, files []string, opts BatchOptions) (*model.BatchSummary, []*model.ItemResult, error) {
	if opts.Limit > 0 && len(files) > opts.Limit {
		files = files[:opts.Limit]
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	zap.L().Info("pipeline: processing batch",
		zap.String("run_id", opts.RunID),
		zap.Int("files", len(files)),
		zap.Int("concurrency", opts.Concurrency),
	)

	var (
		mu      sync.Mutex
		summary model.BatchSummary
		results = make([]*model.ItemResult, len(files))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, file := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, _ := p.Process(gctx, opts.RunID, file)
			mu.Lock()
			summary.Add(res.Status)
			results[i] = res
			mu.Unlock()
			return nil // don't abort batch on individual failure
		})
	}
	_ = g.Wait()

	zap.L().Info("pipeline: batch complete",
		zap.String("run_id", opts.RunID),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("filtered", summary.Filtered),
		zap.Int("dry_run", summary.DryRun),
		zap.Int("invalid", summary.Invalid),
		zap.Int("failed", summary.Failed),
	)

	done := results[:0]
	for _, r := range results {
		if r != nil {
			done = append(done, r)
		}
	}
	return &summary, done, ctx.Err()
}
