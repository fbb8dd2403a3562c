package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/srt/packages/core/deps"
	"github.com/abdul-hamid-achik/srt/packages/core/runner"
	"github.com/abdul-hamid-achik/srt/packages/output"
)

var listOrderFlag bool

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List test documents and their prerequisites",
	Long: `List the documents found in the given files and directories together
with the prerequisites they refer to. With --order the planned execution
order is printed instead.

Examples:
  srt list ./tests/
  srt list ./tests/ --order`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func init() {
	listCmd.Flags().BoolVar(&listOrderFlag, "order", false, "Print the planned execution order")
}

func listCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	log, closer, err := newLogger(cfg, false, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	c, _, err := loadCollection(args, cfg, log)
	if err != nil {
		return err
	}
	macros, err := loadMacros(cfg, log)
	if err != nil {
		return err
	}
	defined := definedMacros(macros)

	if listOrderFlag {
		plan, err := runner.BuildPlan(c, runner.PlanOptions{
			DestructiveMethods: cfg.DestructiveMethods,
			Macros:             defined,
		})
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		output.NewConsoleFormatter(
			output.WithWriter(cmd.OutOrStdout()),
			output.WithNoColor(cfg.GetNoColor()),
		).FormatPlan(plan)
		return nil
	}

	resolver := deps.NewResolver(c, deps.WithMacros(defined))
	for _, doc := range c.Documents {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s %s\n", doc.Name(), doc.Method(), doc.Path)
		reqs := resolver.Prerequisites(doc)
		if len(reqs) == 0 {
			continue
		}
		names := make([]string, len(reqs))
		for i, name := range reqs {
			names[i] = name
			if _, err := resolver.FileFor(doc.Name(), name); err != nil {
				names[i] += " (missing)"
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "    requires: %s\n", strings.Join(names, ", "))
	}

	return nil
}
