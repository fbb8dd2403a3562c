package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/srt/packages/core/runner"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate test documents without sending requests",
	Long: `Load every document, check it against the document schema and plan the
run. Unknown prerequisites, duplicate testnames and circular dependencies
are reported; no request is sent.

Examples:
  srt validate ./tests/
  srt validate login.json create_user.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	log, closer, err := newLogger(cfg, false, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	c, failedLoads, err := loadCollection(args, cfg, log)
	if err != nil {
		return err
	}
	macros, err := loadMacros(cfg, log)
	if err != nil {
		return err
	}
	defined := definedMacros(macros)

	for _, loadErr := range c.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", loadErr.Path, loadErr.Err)
	}

	plan, err := runner.BuildPlan(c, runner.PlanOptions{
		DestructiveMethods: cfg.DestructiveMethods,
		Macros:             defined,
	})
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	blocked := make(map[string]bool)
	for _, b := range plan.Blocked {
		blocked[b.Doc.Path] = true
		fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", b.Doc.Path, b.Err)
	}
	for _, doc := range c.Documents {
		if !blocked[doc.Path] {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%s)\n", doc.Path, doc.Name())
		}
	}

	switch {
	case failedLoads > 0:
		return withExitCode(ExitParseError, fmt.Errorf("validation failed"))
	case len(plan.Blocked) > 0:
		return withExitCode(ExitConfigError, fmt.Errorf("validation failed"))
	}
	return nil
}
