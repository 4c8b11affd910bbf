package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/mailsentry/internal/email"
	"github.com/sells-group/mailsentry/internal/storage"
)

var (
	frequencyHeader string
	frequencyTop    int
)

var frequencyCmd = &cobra.Command{
	Use:   "frequency",
	Short: "Count the addresses seen in a header across the input range",
	Long: "Parses every input file in the job's date range and counts addresses " +
		"in the From, To or Cc header. Useful for building include/exclude filters.",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyJobFlags(cmd)

		env := &pipelineEnv{Storage: storage.NewOS()}
		files, err := discoverFiles(env)
		if err != nil {
			return err
		}

		counts, skipped, err := email.Frequency(email.NewParser(), env.Storage, files, frequencyHeader)
		if err != nil {
			return err
		}
		if frequencyTop > 0 && len(counts) > frequencyTop {
			counts = counts[:frequencyTop]
		}

		formatFrequency(os.Stdout, counts)
		if skipped > 0 {
			fmt.Fprintf(os.Stderr, "%d files could not be parsed\n", skipped)
		}
		return nil
	},
}

// formatFrequency writes address counts as a table.
func formatFrequency(out io.Writer, counts []email.AddressCount) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COUNT\tADDRESS\tNAME")
	for _, c := range counts {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", c.Count, c.Address, c.Name)
	}
	_ = w.Flush()
}

func init() {
	f := frequencyCmd.Flags()
	f.StringVar(&frequencyHeader, "header", "from", "header to count (from, to, cc)")
	f.IntVar(&frequencyTop, "top", 0, "only show the N most frequent addresses")
	f.String("start", "", "first day (YYYY-MM-DD)")
	f.String("end", "", "last day (YYYY-MM-DD, default today)")
	f.Bool("current-month", false, "count the current month to date")
	f.String("input", "", "input directory (default from config)")
	rootCmd.AddCommand(frequencyCmd)
}
