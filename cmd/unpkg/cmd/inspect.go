package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <binary>",
	Short: "Prints the payload region, header and index summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		region, h := s.Region(), s.Header()
		var declared, rejected int
		var stored uint64
		for e, err := range s.Declared() {
			declared++
			if err != nil {
				rejected++
				continue
			}
			stored += e.DataLength
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "region:   %s (%s)\n", region, humanize.Bytes(uint64(region.Len()))) //nolint:gosec // region length is positive
		fmt.Fprintf(out, "version:  %d\n", h.Version)
		fmt.Fprintf(out, "index:    offset %d, %s\n", h.IndexOffset, humanize.Bytes(h.IndexLength))
		fmt.Fprintf(out, "entries:  %s declared, %s rejected\n", humanize.Comma(int64(declared)), humanize.Comma(int64(rejected)))
		fmt.Fprintf(out, "stored:   %s\n", humanize.Bytes(stored))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
