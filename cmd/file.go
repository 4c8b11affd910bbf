package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var fileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Process a single EML file and print the outcome",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		applyJobFlags(cmd)

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		item, procErr := env.Processor.Process(ctx, "", args[0])

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(item); err != nil {
			return err
		}
		return procErr
	},
}

func init() {
	f := fileCmd.Flags()
	f.String("output", "", "output directory (default from config)")
	f.Bool("replace", false, "reprocess even if a context marker exists")
	f.Bool("dry-run", false, "stop after filtering; make no model calls")
	rootCmd.AddCommand(fileCmd)
}
