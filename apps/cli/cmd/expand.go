package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/srt/packages/builtin"
	"github.com/abdul-hamid-achik/srt/packages/core/macro"
)

var expandCmd = &cobra.Command{
	Use:   "expand <file|directory>...",
	Short: "Print test documents after macro substitution",
	Long: `Substitute macros in each document and print the result. Macros come
from the config file, SRT_MACRO_* variables and -D definitions; ${timestamp}
is the current time in milliseconds unless defined otherwise. Macros that
refer to other tests stay in place since nothing is run.

Examples:
  srt expand create_user.json -D user=alice
  srt expand ./tests/ --env-file .env`,
	Args: cobra.MinimumNArgs(1),
	RunE: expandCommand,
}

func expandCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	log, closer, err := newLogger(cfg, false, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	macros, err := loadMacros(cfg, log)
	if err != nil {
		return err
	}

	c, failedLoads, err := loadCollection(args, cfg, log)
	if err != nil {
		return err
	}

	store := macro.NewStore()
	if ts, err := builtin.NewRegistry().Eval("timestampMs", gjson.Result{}); err == nil {
		store.Add("timestamp", ts)
	}
	store.Seed(macros)
	engine := macro.NewEngine(store, macro.WithWarnFunc(log.Warnf))

	for i, doc := range c.Documents {
		expanded, err := engine.Document(doc)
		if err != nil {
			log.Err(err, "cannot expand document", "file", doc.Path)
			failedLoads++
			continue
		}

		data, err := expanded.Root.MarshalJSON()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return err
		}

		if c.Len() > 1 {
			if i > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "==> %s <==\n", doc.Path)
		}
		fmt.Fprintln(cmd.OutOrStdout(), buf.String())
	}

	if failedLoads > 0 {
		return withExitCode(ExitParseError, nil)
	}
	return nil
}
