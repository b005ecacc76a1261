package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/unpkg"
)

var showDigest bool

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list <binary>",
	Short: "Lists the files declared by the bundle index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		var tally unpkg.Tally
		if showDigest {
			for entry, err := range s.Entries() {
				tally.Record(err)
				if err != nil {
					fmt.Fprintf(tw, "%s\t%s\n", entry.Path, status(err))
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", entry.Path, humanize.Bytes(uint64(len(entry.Content))), entry.Digest())
			}
		} else {
			for e, err := range s.Declared() {
				tally.Record(err)
				if err != nil {
					fmt.Fprintf(tw, "%s\t%s\n", e.Path, status(err))
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Path, humanize.Bytes(e.DataLength), e.Compression)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if tally.Failed > 0 {
			return &entriesFailedError{failed: tally.Failed}
		}
		return nil
	},
}

// status renders an entry error for listings.
func status(err error) string {
	var ee *unpkg.EntryError
	if errors.As(err, &ee) {
		return "error: " + ee.Err.Error()
	}
	return "error: " + err.Error()
}

func init() {
	listCmd.Flags().BoolVar(&showDigest, "digest", false, "Decode every file and print its sha256 digest")
	rootCmd.AddCommand(listCmd)
}
