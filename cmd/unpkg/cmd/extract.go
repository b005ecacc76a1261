package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/unpkg"
)

var (
	outputDir string
	overwrite bool
	workers   int
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <binary>",
	Short: "Writes every embedded file beneath an output directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.CopyDir(cmd.Context(), outputDir,
			unpkg.CopyWithOverwrite(overwrite),
			unpkg.CopyWithWorkers(workers),
			unpkg.CopyWithLogger(logger),
		)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, f := range stats.Tally.Failures {
			fmt.Fprintf(out, "[!] %v\n", f)
		}
		fmt.Fprintf(out, "[+] %d written (%s), %d skipped, %d failed -> %s\n",
			stats.Written, humanize.Bytes(stats.TotalBytes), stats.Skipped, stats.Tally.Failed, outputDir)

		if stats.Tally.Failed > 0 {
			return &entriesFailedError{failed: stats.Tally.Failed}
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&outputDir, "output", "o", "unpkg-out", "Output directory")
	extractCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing files")
	extractCmd.Flags().IntVar(&workers, "workers", 0, "Decode workers (0 = GOMAXPROCS, <0 = serial)")
	rootCmd.AddCommand(extractCmd)
}
