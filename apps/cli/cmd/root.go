package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/srt/packages/core/document"
	"github.com/abdul-hamid-achik/srt/packages/core/env"
	"github.com/abdul-hamid-achik/srt/packages/core/runner"
	"github.com/abdul-hamid-achik/srt/packages/http"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "srt",
	Short: "Declarative REST API tests. One JSON file per request.",
	Long: `srt runs REST API tests described as JSON documents, one request per
file. Values captured from one response can be referenced by later
documents as ${testname}.field; srt works out the order from those
references.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		var quiet *exitError
		if !errors.As(err, &quiet) || quiet.err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(ExitUsageError, err)
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(expandCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

// exitError carries the process exit code of a failed command. A nil err
// means the command already reported the problem.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps a command error onto the documented exit codes.
func exitCode(err error) int {
	var ee *exitError
	var cycle *runner.CycleError
	var load *document.LoadError
	var netErr *http.NetworkError

	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &ee):
		return ee.code
	case errors.As(err, &cycle):
		return ExitConfigError
	case errors.As(err, &load), errors.Is(err, document.ErrInvalidDocument):
		return ExitParseError
	case errors.Is(err, env.ErrInvalidDefinition):
		return ExitUsageError
	case errors.As(err, &netErr):
		return ExitNetworkError
	default:
		return ExitTestFailure
	}
}
