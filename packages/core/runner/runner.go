package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/srt/packages/assertions"
	"github.com/abdul-hamid-achik/srt/packages/builtin"
	"github.com/abdul-hamid-achik/srt/packages/capture"
	"github.com/abdul-hamid-achik/srt/packages/core/document"
	"github.com/abdul-hamid-achik/srt/packages/core/macro"
	"github.com/abdul-hamid-achik/srt/packages/http"
	"github.com/abdul-hamid-achik/srt/packages/logging"
)

// ErrStatusNotNumeric is returned when the expected status is still a macro
// after substitution.
var ErrStatusNotNumeric = errors.New("expected status is not a number after substitution")

// Executor sends one request and returns once the whole response has been
// read.
type Executor interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type Runner struct {
	executor Executor
	store    *macro.Store
	funcs    *builtin.Registry
	engine   *macro.Engine
	capturer *capture.Capturer
	limiter  *rate.Limiter
	log      logging.Logger
	config   *Config
}

type Config struct {
	Verbose        bool
	Timeout        time.Duration
	FollowRedirect bool
	MaxRedirects   int
	Insecure       bool
	Proxy          string
	DefaultHeaders map[string]string
	Bail           bool
	NameFilter     string
	// DestructiveMethods defaults to DefaultDestructiveMethods when nil.
	DestructiveMethods []string
	// RateLimit caps requests per second; zero means unlimited.
	RateLimit float64
	// Macros seed the store before the first document runs.
	Macros map[string]string
}

type Option func(*Runner)

func WithExecutor(e Executor) Option {
	return func(r *Runner) {
		r.executor = e
	}
}

func WithLogger(l logging.Logger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

// WithStore shares an existing macro store, e.g. across watch reruns.
func WithStore(s *macro.Store) Option {
	return func(r *Runner) {
		r.store = s
	}
}

func WithRegistry(funcs *builtin.Registry) Option {
	return func(r *Runner) {
		r.funcs = funcs
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	r := &Runner{config: cfg}
	for _, opt := range opts {
		opt(r)
	}

	if r.log == nil {
		r.log = logging.NewNop()
	}
	if r.store == nil {
		r.store = macro.NewStore()
	}
	if r.funcs == nil {
		r.funcs = builtin.NewRegistry()
	}
	if r.executor == nil {
		r.executor = newClient(cfg)
	}
	if cfg.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	r.store.Seed(cfg.Macros)
	r.engine = macro.NewEngine(r.store, macro.WithWarnFunc(r.log.Warnf))
	r.capturer = capture.New(r.store, r.funcs, capture.WithWarnFunc(r.log.Warnf))

	return r
}

func newClient(cfg *Config) *http.Client {
	opts := []http.ClientOption{
		http.WithFollowRedirects(cfg.FollowRedirect),
		http.WithValidateSSL(!cfg.Insecure),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, http.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(cfg.Proxy))
	}
	if len(cfg.DefaultHeaders) > 0 {
		opts = append(opts, http.WithDefaultHeaders(cfg.DefaultHeaders))
	}
	return http.NewClient(opts...)
}

// Store returns the macro store of the runner.
func (r *Runner) Store() *macro.Store {
	return r.store
}

// Engine returns the substitution engine bound to the runner's store.
func (r *Runner) Engine() *macro.Engine {
	return r.engine
}

type RunResult struct {
	Results  []*RequestResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
	Blocked  int
	Latency  LatencySummary
}

// OK reports whether every planned document ran and passed.
func (r *RunResult) OK() bool {
	return r.Failed == 0 && r.Blocked == 0
}

type RequestResult struct {
	Name       string
	File       string
	Passed     bool
	Skipped    bool
	Blocked    bool
	SkipReason string
	Duration   time.Duration
	Request    *http.Request
	Response   *http.Response
	Assertions []*assertions.Result
	Captures   map[string]any
	Error      error
}

// Plan computes the execution order of c with the runner's settings.
func (r *Runner) Plan(c *document.Collection) (*Plan, error) {
	return BuildPlan(c, PlanOptions{
		DestructiveMethods: r.config.DestructiveMethods,
		NameFilter:         r.config.NameFilter,
		Macros: func(name string) bool {
			_, ok := r.store.Lookup(name)
			return ok
		},
	})
}

// Run plans and executes c. The only error returned is a failure to plan,
// such as a CycleError; in that case nothing has been executed.
func (r *Runner) Run(ctx context.Context, c *document.Collection) (*RunResult, error) {
	plan, err := r.Plan(c)
	if err != nil {
		return nil, err
	}
	return r.RunPlan(ctx, plan), nil
}

// RunPlan executes the steps of plan one at a time. A document whose
// prerequisite failed is skipped; blocked documents are reported without
// being run.
func (r *Runner) RunPlan(ctx context.Context, plan *Plan) *RunResult {
	start := time.Now()
	result := &RunResult{}
	latency := newLatencyRecorder()
	outcomes := make(map[string]*RequestResult)

	for _, b := range plan.Blocked {
		r.log.Err(b.Err, "test blocked", "test", b.Doc.Name(), "file", b.Doc.Path)
	}

	stopReason := ""
	for _, step := range plan.Steps {
		doc := step.Doc

		if stopReason == "" && ctx.Err() != nil {
			stopReason = "run cancelled"
		}
		if stopReason != "" {
			result.Results = append(result.Results, skipped(doc, stopReason))
			result.Skipped++
			continue
		}

		if reason := failedPrerequisite(step, outcomes); reason != "" {
			res := skipped(doc, reason)
			outcomes[doc.Name()] = res
			result.Results = append(result.Results, res)
			result.Skipped++
			continue
		}

		res := r.runDocument(ctx, doc)
		outcomes[doc.Name()] = res
		result.Results = append(result.Results, res)
		if res.Response != nil {
			latency.record(res.Response.Duration)
		}

		if res.Passed {
			result.Passed++
			continue
		}
		result.Failed++
		if r.config.Bail {
			stopReason = fmt.Sprintf("bail after %q failed", doc.Name())
		}
	}

	for _, b := range plan.Blocked {
		result.Results = append(result.Results, &RequestResult{
			Name:       b.Doc.Name(),
			File:       b.Doc.Path,
			Blocked:    true,
			SkipReason: b.Err.Error(),
			Error:      b.Err,
		})
		result.Blocked++
	}

	result.Duration = time.Since(start)
	result.Latency = latency.summary()
	return result
}

func skipped(doc *document.Document, reason string) *RequestResult {
	return &RequestResult{
		Name:       doc.Name(),
		File:       doc.Path,
		Skipped:    true,
		SkipReason: reason,
	}
}

func failedPrerequisite(step *Step, outcomes map[string]*RequestResult) string {
	for _, name := range step.Requires {
		if res, ok := outcomes[name]; ok && !res.Passed {
			return fmt.Sprintf("prerequisite %q failed", name)
		}
	}
	return ""
}

func (r *Runner) runDocument(ctx context.Context, doc *document.Document) *RequestResult {
	name := doc.Name()
	result := &RequestResult{
		Name:     name,
		File:     doc.Path,
		Captures: make(map[string]any),
	}

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
	}()

	// preRequest definitions see the document as far as it resolves now;
	// the full substitution below reports whatever is still missing.
	if pre := doc.Test.MacroDefsFor(document.PhasePreRequest); len(pre) > 0 {
		draft, err := r.engine.Silent().Document(doc)
		if err != nil {
			result.Error = err
			return result
		}
		data, err := draft.Root.MarshalJSON()
		if err != nil {
			result.Error = err
			return result
		}
		for k, v := range r.capturer.Request(name, data, pre) {
			result.Captures[k] = v
		}
	}

	resolved, err := r.engine.Document(doc)
	if err != nil {
		result.Error = err
		return result
	}
	if resolved.Test.Status == 0 {
		result.Error = ErrStatusNotNumeric
		return result
	}

	req, err := http.FromDocument(resolved)
	if err != nil {
		result.Error = err
		return result
	}
	result.Request = req

	r.log.Debug("request",
		"test", name,
		"method", req.Method,
		"path", resolved.Test.Options.Path,
		"url", req.URL,
		"headers", req.Headers,
		"payload", string(req.Body),
	)

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			result.Error = err
			return result
		}
	}

	resp, err := r.executor.Do(ctx, req)
	if err != nil {
		result.Error = err
		return result
	}
	result.Response = resp

	r.log.Debug("response",
		"test", name,
		"status", resp.StatusCode,
		"duration", resp.Duration,
		"body", resp.BodyString(),
	)

	result.Assertions = assertions.NewEvaluator(resp).Evaluate(resolved.Test)
	result.Passed = assertions.AllPassed(result.Assertions)

	if resolved.Test.SaveResponse && resp.IsSuccess() {
		captured, err := r.capturer.Response(name, resp.Body, resolved.Test.MacroDefs)
		if err != nil {
			r.log.Warn("response capture skipped", "test", name, "reason", err.Error())
		}
		for k, v := range captured {
			result.Captures[k] = v
		}
	}

	return result
}
