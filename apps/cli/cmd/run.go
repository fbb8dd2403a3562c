package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/srt/packages/core/config"
	"github.com/abdul-hamid-achik/srt/packages/core/document"
	"github.com/abdul-hamid-achik/srt/packages/core/runner"
	"github.com/abdul-hamid-achik/srt/packages/coverage"
	"github.com/abdul-hamid-achik/srt/packages/http"
	"github.com/abdul-hamid-achik/srt/packages/logging"
	"github.com/abdul-hamid-achik/srt/packages/notify"
	"github.com/abdul-hamid-achik/srt/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run test documents",
	Long: `Run the JSON test documents found in the given files and directories.

Documents referring to ${name}.field run after the document named name.
DELETE requests run last unless another document depends on them.

Examples:
  srt run ./tests/
  srt run ./tests/ -D user=alice -D password=secret
  srt run ./tests/ --env-file .env --output junit --output-file report.xml
  srt run ./tests/ --name "create*" --bail
  srt run ./tests/ --dry-run
  srt run ./tests/ --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	nameFlag        string
	verboseFlag     bool
	quietFlag       bool
	bailFlag        bool
	timeoutFlag     string
	dryRunFlag      bool
	outputFlag      string
	outputFileFlag  string
	watchFlag       bool
	proxyFlag       string
	insecureFlag    bool
	maxRedirects    int
	rateFlag        float64
	destructiveFlag []string
	waitForFlag     string
	waitTimeoutFlag time.Duration

	// Coverage flags
	coverageFlag     string
	coverageFileFlag string

	// Notification flags
	notifyFlag       []string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	webhookURLFlag   string
)

func init() {
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only tests matching name pattern, plus their prerequisites")

	// Output flags
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("SRT_VERBOSE", false), "Trace requests and responses (env: SRT_VERBOSE)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("SRT_QUIET", false), "Suppress all output except errors (env: SRT_QUIET)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("SRT_OUTPUT", ""), "Output format: console, json, junit, tap (env: SRT_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("SRT_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: SRT_OUTPUT_FILE)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("SRT_BAIL", false), "Stop on first failure (env: SRT_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("SRT_TIMEOUT", ""), "Client timeout (e.g., 30s, 1m) (env: SRT_TIMEOUT)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Print the execution plan without sending requests")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run tests")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("SRT_RATE", 0), "Maximum requests per second, 0 for no limit (env: SRT_RATE)")
	runCmd.Flags().StringSliceVar(&destructiveFlag, "destructive", nil, "Methods deferred to the end of the run (default DELETE)")
	runCmd.Flags().StringVar(&waitForFlag, "wait-for", getEnvString("SRT_WAIT_FOR", ""), "URL that must answer 200 before the run starts (env: SRT_WAIT_FOR)")
	runCmd.Flags().DurationVar(&waitTimeoutFlag, "wait-timeout", 30*time.Second, "How long to wait for --wait-for")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("SRT_PROXY", ""), "Proxy URL for HTTP requests (env: SRT_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("SRT_INSECURE", false), "Disable SSL certificate validation (env: SRT_INSECURE)")
	runCmd.Flags().IntVar(&maxRedirects, "max-redirects", getEnvInt("SRT_MAX_REDIRECTS", 0), "Maximum redirects to follow (env: SRT_MAX_REDIRECTS)")

	runCmd.Flags().StringVar(&coverageFlag, "coverage", getEnvString("SRT_COVERAGE", ""), "Report which operations of this OpenAPI file or URL were exercised (env: SRT_COVERAGE)")
	runCmd.Flags().StringVar(&coverageFileFlag, "coverage-file", "", "Write the coverage report as JSON to this file")

	runCmd.Flags().StringSliceVar(&notifyFlag, "notify", nil, "Notification services: slack, webhook")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("SRT_NOTIFY_ON", "failure"), "When to notify: always, failure, success, recovery (env: SRT_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&webhookURLFlag, "webhook-url", getEnvString("SRT_WEBHOOK_URL", ""), "URL receiving the run summary as JSON (env: SRT_WEBHOOK_URL)")
}

func newNotifier() (*notify.Manager, error) {
	if len(notifyFlag) == 0 {
		return nil, nil
	}
	on, err := notify.ParseNotifyOn(notifyOnFlag)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}

	var notifiers []notify.Notifier
	for _, service := range notifyFlag {
		switch strings.ToLower(strings.TrimSpace(service)) {
		case "slack":
			if slackWebhookFlag == "" {
				return nil, withExitCode(ExitUsageError, fmt.Errorf("--slack-webhook is required when using --notify slack"))
			}
			var opts []notify.SlackOption
			if slackChannelFlag != "" {
				opts = append(opts, notify.WithSlackChannel(slackChannelFlag))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(slackWebhookFlag, opts...))
		case "webhook":
			if webhookURLFlag == "" {
				return nil, withExitCode(ExitUsageError, fmt.Errorf("--webhook-url is required when using --notify webhook"))
			}
			notifiers = append(notifiers, notify.NewWebhookNotifier(webhookURLFlag))
		default:
			return nil, withExitCode(ExitUsageError, fmt.Errorf("unknown notification service %q", service))
		}
	}
	return notify.NewManager(on, notifiers...), nil
}

// runFlags turns the run flags into a config overlay. Unset flags leave the
// config file value in place.
func runFlags() (*config.Config, error) {
	cfg := &config.Config{
		Proxy:              proxyFlag,
		MaxRedirects:       maxRedirects,
		RateLimit:          rateFlag,
		Output:             outputFlag,
		DestructiveMethods: upper(destructiveFlag),
	}
	if timeoutFlag != "" {
		timeout, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err))
		}
		cfg.Timeout = int(timeout / time.Millisecond)
	}
	if insecureFlag {
		cfg.ValidateSSL = config.BoolPtr(false)
	}
	if bailFlag {
		cfg.Bail = config.BoolPtr(true)
	}
	if verboseFlag {
		cfg.Verbose = config.BoolPtr(true)
	}
	return cfg, nil
}

func upper(methods []string) []string {
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
			out = append(out, m)
		}
	}
	return out
}

func runnerConfig(cfg *config.Config, macros map[string]string) *runner.Config {
	return &runner.Config{
		Verbose:            cfg.GetVerbose(),
		Timeout:            time.Duration(cfg.Timeout) * time.Millisecond,
		FollowRedirect:     cfg.GetFollowRedirects(),
		MaxRedirects:       cfg.MaxRedirects,
		Insecure:           !cfg.GetValidateSSL(),
		Proxy:              cfg.Proxy,
		DefaultHeaders:     cfg.Headers,
		Bail:               cfg.GetBail(),
		NameFilter:         nameFlag,
		DestructiveMethods: cfg.DestructiveMethods,
		RateLimit:          cfg.RateLimit,
		Macros:             macros,
	}
}

// newFormatter returns the reporter for format, writing to w.
func newFormatter(format string, w io.Writer, verbose, noColor bool) (output.Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w)), nil
	case "junit":
		return output.NewJUnitFormatter(output.JUnitWithWriter(w)), nil
	case "tap":
		return output.NewTAPFormatter(output.TAPWithWriter(w)), nil
	case "", "console":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(verbose),
			output.WithNoColor(noColor),
		), nil
	default:
		return nil, withExitCode(ExitUsageError, fmt.Errorf("unknown output format %q (use console, json, junit or tap)", format))
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	overrides, err := runFlags()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(overrides)
	if err != nil {
		return err
	}

	log, closer, err := newLogger(cfg, cfg.GetVerbose(), quietFlag)
	if err != nil {
		return err
	}
	defer closer.Close()

	macros, err := loadMacros(cfg, log)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return withExitCode(ExitConfigError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		out = f
	}

	// Reject a bad --output before anything runs.
	if _, err := newFormatter(cfg.Output, io.Discard, false, true); err != nil {
		return err
	}

	notifier, err := newNotifier()
	if err != nil {
		return err
	}

	var analyzer *coverage.Analyzer
	if coverageFlag != "" {
		analyzer, err = coverage.LoadOpenAPI(coverageFlag)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &session{
		cmd:    cmd,
		args:   args,
		cfg:    cfg,
		macros: macros,
		log:    log,
		out:    out,

		notifier: notifier,
		coverage: analyzer,
	}

	if dryRunFlag {
		return s.dryRun()
	}

	if waitForFlag != "" {
		r := runner.NewRunner(runnerConfig(cfg, nil), runner.WithLogger(log))
		err := r.WaitForService(ctx, runner.WaitFor{URL: waitForFlag, Timeout: waitTimeoutFlag})
		if err != nil {
			return withExitCode(ExitNetworkError, err)
		}
	}

	err = s.run(ctx)
	if !watchFlag {
		return err
	}
	return s.watch(ctx)
}

// session is one invocation of run; watch mode runs it repeatedly.
type session struct {
	cmd    *cobra.Command
	args   []string
	cfg    *config.Config
	macros map[string]string
	log    logging.Logger
	out    io.Writer

	notifier *notify.Manager
	coverage *coverage.Analyzer
}

func (s *session) newRunner() *runner.Runner {
	return runner.NewRunner(runnerConfig(s.cfg, s.macros), runner.WithLogger(s.log))
}

func (s *session) dryRun() error {
	c, failedLoads, err := loadCollection(s.args, s.cfg, s.log)
	if err != nil {
		return err
	}

	plan, err := s.newRunner().Plan(c)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	output.NewConsoleFormatter(
		output.WithWriter(s.out),
		output.WithNoColor(s.cfg.GetNoColor()),
	).FormatPlan(plan)

	if failedLoads > 0 {
		return withExitCode(ExitParseError, nil)
	}
	if len(plan.Blocked) > 0 {
		return withExitCode(ExitConfigError, nil)
	}
	return nil
}

// run loads, plans and executes the collection once and reports it.
func (s *session) run(ctx context.Context) error {
	formatter, err := newFormatter(s.cfg.Output, s.out, s.cfg.GetVerbose(), s.cfg.GetNoColor())
	if err != nil {
		return err
	}
	if !quietFlag {
		formatter.FormatHeader(version)
	}

	c, failedLoads, err := loadCollection(s.args, s.cfg, s.log)
	if err != nil {
		formatter.FormatError(err)
		return err
	}

	result, err := s.newRunner().Run(ctx, c)
	if err != nil {
		formatter.FormatError(err)
		return withExitCode(ExitConfigError, err)
	}

	formatter.FormatResult(result)
	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(result.Duration); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}

	if s.coverage != nil {
		if err := s.reportCoverage(result); err != nil {
			s.log.Err(err, "coverage report not written")
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, notify.Summarize(result)); err != nil {
			s.log.Warn("failed to send notification", "error", err.Error())
		}
	}

	s.log.Info("run finished",
		"passed", result.Passed,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"blocked", result.Blocked,
		"duration", result.Duration,
	)

	return resultError(result, failedLoads)
}

func (s *session) reportCoverage(result *runner.RunResult) error {
	report := s.coverage.Analyze(coverage.RequestsOf(result))

	w := s.cmd.ErrOrStderr()
	if strings.EqualFold(s.cfg.Output, "console") || s.cfg.Output == "" {
		w = s.out
	}
	report.WriteConsole(w, s.cfg.GetNoColor())

	if coverageFileFlag == "" {
		return nil
	}
	f, err := os.Create(coverageFileFlag)
	if err != nil {
		return err
	}
	defer f.Close()
	return report.WriteJSON(f)
}

// resultError picks the exit code of a finished run. The reporter has
// already shown the details.
func resultError(result *runner.RunResult, failedLoads int) error {
	switch {
	case result.OK() && failedLoads == 0:
		return nil
	case result.OK():
		return withExitCode(ExitParseError, nil)
	case unreachable(result):
		return withExitCode(ExitNetworkError, nil)
	default:
		return withExitCode(ExitTestFailure, nil)
	}
}

// unreachable reports whether every failed document failed to get a
// response at all.
func unreachable(result *runner.RunResult) bool {
	if result.Failed == 0 {
		return false
	}
	for _, res := range result.Results {
		if res.Skipped || res.Blocked || res.Passed {
			continue
		}
		var netErr *http.NetworkError
		if !errors.As(res.Error, &netErr) {
			return false
		}
	}
	return true
}

// watch re-runs the session whenever a test document changes, until ctx is
// cancelled.
func (s *session) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range watchDirs(s.args) {
		if err := watcher.Add(dir); err != nil {
			s.log.Err(err, "cannot watch directory", "dir", dir)
		}
	}

	fmt.Fprintf(s.cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var debounce <-chan time.Time
	var changed string

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !document.IsDocumentFile(event.Name) {
				continue
			}
			changed = event.Name
			debounce = time.After(WatchDebounceDelay)

		case <-debounce:
			debounce = nil
			fmt.Fprintf(s.cmd.ErrOrStderr(), "\nFile changed: %s\nRe-running tests...\n\n", changed)
			if err := s.run(ctx); err != nil {
				var ee *exitError
				if !errors.As(err, &ee) || ee.err != nil {
					s.log.Err(err, "run failed")
				}
			}
			fmt.Fprintf(s.cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Err(err, "watcher error")
		}
	}
}

// watchDirs returns every directory holding documents named by args.
// Hidden directories and node_modules are not watched.
func watchDirs(args []string) []string {
	var dirs []string
	seen := make(map[string]bool)
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			add(filepath.Dir(arg))
			continue
		}
		_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			name := d.Name()
			if path != arg && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			add(path)
			return nil
		})
	}
	return dirs
}
