package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/meigma/unpkg"
)

// Exit codes.
const (
	exitOK          = 0
	exitFatal       = 1
	exitEntryFailed = 2
)

var (
	verbose bool
	noMmap  bool
	logger  = slog.New(slog.DiscardHandler)
)

// entriesFailedError reports that the session completed but some entries
// could not be recovered.
type entriesFailedError struct {
	failed int
}

func (e *entriesFailedError) Error() string {
	return fmt.Sprintf("%d entries failed", e.failed)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "unpkg",
	Short: "Recovers the JavaScript sources embedded in packaged Node.js executables",
	Long: `Locates the payload appended to a self-contained executable built by a
Node.js packager, decodes its bundle index and recovers every embedded file.

Exit status is 1 when the binary cannot be parsed at all and 2 when some
entries were rejected or failed to decompress.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logger = newLogger(cmd.ErrOrStderr(), verbose)
	},
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openSession opens the binary named on the command line.
func openSession(path string) (*unpkg.Session, error) {
	s, err := unpkg.Open(path, unpkg.WithMmap(!noMmap))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	logger.Debug("session opened",
		"path", path,
		"region", s.Region().String(),
		"version", s.Header().Version,
		"entries", s.Len(),
	)
	return s, nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Cobra only fills a nil subcommand context, so clear the one left by a
	// previous run.
	for _, sub := range rootCmd.Commands() {
		sub.SetContext(ctx)
	}
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "unpkg: %v\n", err)

	var failed *entriesFailedError
	if errors.As(err, &failed) {
		return exitEntryFailed
	}
	return exitFatal
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noMmap, "no-mmap", false, "Read the binary into memory instead of mapping it")
}
