package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mailsentry/internal/layout"
	"github.com/sells-group/mailsentry/internal/model"
	"github.com/sells-group/mailsentry/internal/pipeline"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process every EML file in the configured date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyJobFlags(cmd)

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		files, err := discoverFiles(env)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			zap.L().Info("no input files in range", zap.String("input", cfg.Input.Directory))
			return nil
		}

		var runID string
		if env.Store != nil {
			run, err := env.Store.CreateRun(ctx, cfg.Input.Directory)
			if err != nil {
				return eris.Wrap(err, "create run")
			}
			runID = run.ID
		}

		summary, _, batchErr := pipeline.RunBatch(ctx, env.Processor, files, pipeline.BatchOptions{
			RunID:       runID,
			Concurrency: cfg.Job.Concurrency,
			Limit:       cfg.Job.Limit,
		})

		if env.Store != nil {
			status := model.RunStatusComplete
			if batchErr != nil {
				status = model.RunStatusFailed
			}
			// The batch context may be cancelled; the ledger update should still land.
			if err := env.Store.FinishRun(cmd.Context(), runID, status, summary); err != nil {
				zap.L().Warn("finish run failed", zap.String("run_id", runID), zap.Error(err))
			}
		}

		fmt.Printf("processed=%d skipped=%d filtered=%d dry_run=%d invalid=%d failed=%d total=%d\n",
			summary.Processed, summary.Skipped, summary.Filtered,
			summary.DryRun, summary.Invalid, summary.Failed, summary.Total)

		return batchErr
	},
}

// applyJobFlags copies explicitly set flags over the loaded config.
func applyJobFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("start") {
		cfg.Job.Start, _ = f.GetString("start")
	}
	if f.Changed("end") {
		cfg.Job.End, _ = f.GetString("end")
	}
	if f.Changed("current-month") {
		cfg.Job.CurrentMonth, _ = f.GetBool("current-month")
	}
	if f.Changed("input") {
		cfg.Input.Directory, _ = f.GetString("input")
	}
	if f.Changed("output") {
		cfg.Output.Directory, _ = f.GetString("output")
	}
	if f.Changed("limit") {
		cfg.Job.Limit, _ = f.GetInt("limit")
	}
	if f.Changed("concurrency") {
		cfg.Job.Concurrency, _ = f.GetInt("concurrency")
	}
	if f.Changed("replace") {
		cfg.Job.Replace, _ = f.GetBool("replace")
	}
	if f.Changed("dry-run") {
		cfg.Job.DryRun, _ = f.GetBool("dry-run")
	}
}

// discoverFiles lists the configured inputs inside the job's date range.
func discoverFiles(env *pipelineEnv) ([]string, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	st, err := layout.ParseStructure(cfg.Input.Structure)
	if err != nil {
		return nil, err
	}
	dr, err := cfg.Job.DateRange(loc, time.Now())
	if err != nil {
		return nil, err
	}

	zap.L().Info("discovering input",
		zap.String("directory", cfg.Input.Directory),
		zap.Time("start", dr.Start),
		zap.Time("end", dr.End),
	)
	return layout.Discover(env.Storage.Fs(), layout.InputOptions{
		Directory:  cfg.Input.Directory,
		Extensions: cfg.Input.Extensions,
		Structure:  st,
		Recursive:  cfg.Input.Recursive,
		Location:   loc,
	}, dr)
}

func init() {
	f := processCmd.Flags()
	f.String("start", "", "first day to process (YYYY-MM-DD)")
	f.String("end", "", "last day to process (YYYY-MM-DD, default today)")
	f.Bool("current-month", false, "process the current month to date")
	f.String("input", "", "input directory (default from config)")
	f.String("output", "", "output directory (default from config)")
	f.Int("limit", 0, "max files to process (0 = all)")
	f.Int("concurrency", 0, "files processed in parallel (default from config)")
	f.Bool("replace", false, "reprocess items that already have a context marker")
	f.Bool("dry-run", false, "stop after filtering; make no model calls")
	rootCmd.AddCommand(processCmd)
}
