package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/abdul-hamid-achik/srt/packages/core/config"
	"github.com/abdul-hamid-achik/srt/packages/core/document"
	"github.com/abdul-hamid-achik/srt/packages/core/env"
	"github.com/abdul-hamid-achik/srt/packages/core/macro"
	"github.com/abdul-hamid-achik/srt/packages/logging"
)

// Flags shared by every command that loads documents.
var (
	configFlag   string
	envFileFlag  string
	defineFlags  []string
	excludeFlags []string
	noColorFlag  bool
	logLevelFlag string
	logFileFlag  string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", getEnvString("SRT_CONFIG", ""), "Path to config file (env: SRT_CONFIG)")
	pf.StringVar(&envFileFlag, "env-file", getEnvString("SRT_ENV_FILE", ""), "Path to .env file exported for ${env} macros (env: SRT_ENV_FILE)")
	pf.StringArrayVarP(&defineFlags, "define", "D", nil, "Define a macro as name=value (repeatable)")
	pf.StringSliceVar(&excludeFlags, "exclude", nil, "Skip documents matching these glob patterns")
	pf.BoolVar(&noColorFlag, "no-color", getEnvBool("SRT_NO_COLOR", false), "Disable colored output (env: SRT_NO_COLOR)")
	pf.StringVar(&logLevelFlag, "log-level", getEnvString("SRT_LOG_LEVEL", ""), "Diagnostics level: debug, info, warn, error (env: SRT_LOG_LEVEL)")
	pf.StringVar(&logFileFlag, "log-file", getEnvString("SRT_LOG_FILE", ""), "Also write diagnostics as JSON to this file (env: SRT_LOG_FILE)")
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// loadConfig reads the config file and lays overrides from the command line
// over it.
func loadConfig(overrides *config.Config) (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}

	flags := &config.Config{
		EnvFile:  envFileFlag,
		Exclude:  excludeFlags,
		LogLevel: logLevelFlag,
		LogFile:  logFileFlag,
	}
	if noColorFlag {
		flags.NoColor = config.BoolPtr(true)
	}

	return fileConfig.Merge(flags).Merge(overrides), nil
}

// newLogger builds the diagnostics logger. SRT_DEBUG and verbose force debug
// level, quiet keeps only errors.
func newLogger(cfg *config.Config, verbose, quiet bool) (logging.Logger, io.Closer, error) {
	level := logging.Level(cfg.LogLevel)
	switch {
	case verbose || getEnvBool("SRT_DEBUG", false):
		level = logging.LevelDebug
	case quiet:
		level = logging.LevelError
	}

	log, closer, err := logging.New(logging.Options{
		Level:   level,
		NoColor: cfg.GetNoColor(),
		File:    cfg.LogFile,
	})
	if err != nil {
		return nil, nil, withExitCode(ExitConfigError, err)
	}
	return log, closer, nil
}

// loadMacros exports the env file and collects the initial macros. Later
// sources win: config file, SRT_MACRO_* variables, then -D definitions.
func loadMacros(cfg *config.Config, log logging.Logger) (map[string]string, error) {
	if cfg.EnvFile != "" {
		vars, err := env.LoadAndExportDotEnv(cfg.EnvFile)
		if err != nil {
			return nil, withExitCode(ExitConfigError, fmt.Errorf("cannot load env file: %w", err))
		}
		log.Debug("env file loaded", "path", cfg.EnvFile, "variables", len(vars))
	}

	defined, err := env.ParseDefinitions(defineFlags)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}

	return env.MergeVariables(cfg.Macros, env.MacrosFromEnv(env.MacroPrefix), defined), nil
}

// definedMacros reports the bare macros of macros, in the form planning
// expects.
func definedMacros(macros map[string]string) func(name string) bool {
	store := macro.NewStore()
	store.Seed(macros)
	return func(name string) bool {
		_, ok := store.Lookup(name)
		return ok
	}
}

// loadCollection discovers and loads the documents named by args. Documents
// that fail to load are reported and left out; the returned count tells the
// caller how many there were.
func loadCollection(args []string, cfg *config.Config, log logging.Logger) (*document.Collection, int, error) {
	files, err := document.Discover(args, cfg.Exclude)
	if err != nil {
		return nil, 0, withExitCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return nil, 0, withExitCode(ExitUsageError, fmt.Errorf("no test documents found"))
	}

	start := time.Now()
	c := document.LoadCollection(files)
	log.Debug("documents loaded", "files", len(files), "documents", c.Len(), "duration", time.Since(start))

	for _, doc := range c.Documents {
		for _, w := range doc.Warnings {
			log.Warn(w, "file", doc.Path)
		}
	}
	for _, loadErr := range c.Errors {
		log.Err(loadErr.Err, "document not loaded", "file", loadErr.Path)
	}

	return c, len(c.Errors), nil
}
