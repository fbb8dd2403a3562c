package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/srt/packages/generate"
)

var (
	generateOverwriteFlag bool
	generateServerFlag    int
	generateQuietFlag     bool
	generateOutDirFlag    string
)

var generateCmd = &cobra.Command{
	Use:   "generate <openapi-file|url>",
	Short: "Generate test documents from an OpenAPI description",
	Long: `Write one test document per operation response that carries an x-srt
extension. Existing files are kept unless --overwrite is given; on a
terminal srt asks what to do with each of them.

Examples:
  srt generate openapi.yaml
  srt generate openapi.yaml --output-dir ./tests --server 1
  srt generate https://api.example.com/openapi.json -O -q`,
	Args: cobra.ExactArgs(1),
	RunE: generateCommand,
}

func init() {
	generateCmd.Flags().BoolVarP(&generateOverwriteFlag, "overwrite", "O", false, "Overwrite existing files without asking")
	generateCmd.Flags().IntVarP(&generateServerFlag, "server", "s", 0, "Index of the servers entry used for scheme, host and port")
	generateCmd.Flags().BoolVarP(&generateQuietFlag, "quiet", "q", false, "Only report errors")
	generateCmd.Flags().StringVarP(&generateOutDirFlag, "output-dir", "d", ".", "Directory the documents are written to")
}

func generateCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	log, closer, err := newLogger(cfg, false, generateQuietFlag)
	if err != nil {
		return err
	}
	defer closer.Close()

	converter := generate.NewConverter(
		generate.WithServer(generateServerFlag),
		generate.WithWarnFunc(log.Warnf),
	)
	tests, err := converter.ConvertFile(args[0])
	if err != nil {
		return withExitCode(ExitParseError, err)
	}
	if len(tests) == 0 {
		log.Warn("no response carries an x-srt extension", "spec", args[0])
		return nil
	}

	writer := generate.NewWriter(generateOutDirFlag,
		generate.WithOverwrite(generateOverwriteFlag),
		generate.WithQuiet(generateQuietFlag),
		generate.WithPrompter(generate.NewPrompter(os.Stdin, cmd.OutOrStdout())),
		generate.WithOutput(cmd.OutOrStdout()),
	)

	written, err := writer.WriteAll(tests)
	if err != nil && !errors.Is(err, generate.ErrQuit) {
		return err
	}

	if !generateQuietFlag {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d test documents written to %s\n", written, len(tests), generateOutDirFlag)
	}
	return nil
}
