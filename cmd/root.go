package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mailsentry/internal/config"
)

var (
	cfg *config.Config

	configPath string
	verbose    bool
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "mailsentry",
	Short: "Extract events, people, receipts and bills from email archives",
	Long: "Walks EML files through a stage graph of Claude calls: filter, simplify, classify, " +
		"four concurrent extractors, then a bill, receipt or summary note in markdown.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		applyLogFlags(&cfg.Log)

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// applyLogFlags lets --verbose and --debug override the configured level.
func applyLogFlags(l *config.LogConfig) {
	switch {
	case debug:
		l.Level = "debug"
	case verbose:
		l.Level = "info"
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at info level")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
