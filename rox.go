package rox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rollout/rox-go/internal/configuration"
	"github.com/rollout/rox-go/internal/dynamicvalue"
	"github.com/rollout/rox-go/internal/flagsetter"
	"github.com/rollout/rox-go/internal/model"
	"github.com/rollout/rox-go/internal/pushnotify"
	"github.com/rollout/rox-go/internal/repository"
	"github.com/rollout/rox-go/internal/reporting"
	"github.com/rollout/rox-go/internal/roxx"
	"github.com/rollout/rox-go/internal/schedule"
	"github.com/rollout/rox-go/internal/security"
)

// Context is the per-call evaluation input a Flag read, SetContext call,
// or custom-property generator is given (§3).
type Context = model.Context

// NewContext builds a Context from native Go values, wrapping each one in
// the dynamic-value representation the evaluator operates on.
func NewContext(values map[string]interface{}) Context {
	ctx := make(Context, len(values))
	for k, v := range values {
		ctx[k] = toDynamicValue(v)
	}
	return ctx
}

func toDynamicValue(v interface{}) dynamicvalue.Value {
	switch t := v.(type) {
	case nil:
		return dynamicvalue.NewNull()
	case string:
		return dynamicvalue.NewString(t)
	case bool:
		return dynamicvalue.NewBool(t)
	case int:
		return dynamicvalue.NewInt(int64(t))
	case int64:
		return dynamicvalue.NewInt(t)
	case float64:
		return dynamicvalue.NewDouble(t)
	case float32:
		return dynamicvalue.NewDouble(float64(t))
	case time.Time:
		return dynamicvalue.NewDateTime(t)
	default:
		return dynamicvalue.NewString(fmt.Sprintf("%v", t))
	}
}

// ReportingValue is the flag-name + stringified-value pair an impression
// handler receives (GLOSSARY "Reporting value").
type ReportingValue = model.ReportingValue

// Experiment is the public snapshot of a governing experiment an
// impression handler receives (§4.9).
type Experiment = reporting.Experiment

// Handler receives an impression (§4.9 "Handlers receive {reportingValue,
// experimentSnapshot, context}").
type Handler func(reportingValue ReportingValue, experiment *Experiment, ctx Context)

// FetchStatus is the outcome a ConfigurationFetchedHandler is notified of.
type FetchStatus int

const (
	AppliedFromNetwork FetchStatus = iota
	FetchErrorOccurred
)

func (s FetchStatus) String() string {
	if s == AppliedFromNetwork {
		return "AppliedFromNetwork"
	}
	return "ErrorFetchedFromNetwork"
}

// ConfigurationFetchedArgs carries the outcome of one fetch() cycle
// (§4.8, §4.13).
type ConfigurationFetchedArgs struct {
	Status       FetchStatus
	CreationDate string
	HasChanges   bool
	ErrorDetails *Error
}

// ConfigurationFetchedHandler is notified on every fetch outcome, success
// or error.
type ConfigurationFetchedHandler func(args ConfigurationFetchedArgs)

// DynamicPropertiesRule is the fallback the `property` extension operator
// consults when no custom property is registered under the requested
// name (§6 "Callback registration ... dynamic-properties rule").
type DynamicPropertiesRule func(propName string, ctx Context) (string, bool)

// Flag is the public handle returned by AddFlag/AddString/AddInt/
// AddDouble: a typed, context-aware read that dispatches an impression on
// every call (§4.4).
type Flag struct {
	inner *model.Flag
	core  *Core
}

// Name returns the flag's registered name.
func (f *Flag) Name() string { return f.inner.Name }

// IsEnabled evaluates a boolean flag against ctx merged over Core's
// global context (§3 "merged context").
func (f *Flag) IsEnabled(ctx Context) bool {
	return f.inner.GetBool(nil, f.core.mergedContext(ctx))
}

// GetString evaluates a string-kinded flag.
func (f *Flag) GetString(ctx Context) string {
	return f.inner.GetString(nil, f.core.mergedContext(ctx))
}

// GetInt evaluates an int-kinded flag.
func (f *Flag) GetInt(ctx Context) int64 {
	return f.inner.GetInt(nil, f.core.mergedContext(ctx))
}

// GetDouble evaluates a double-kinded flag.
func (f *Flag) GetDouble(ctx Context) float64 {
	return f.inner.GetDouble(nil, f.core.mergedContext(ctx))
}

// Core is the orchestrator of §4.13: it owns every other component,
// wires the extension-operator callbacks, and exposes the public API.
// A *Core is safe for concurrent use.
type Core struct {
	apiKey string
	device security.DeviceProperties
	logger *slog.Logger

	parser          *roxx.Parser
	flagRepo        *repository.FlagRepository
	experimentRepo  *repository.ExperimentRepository
	targetGroupRepo *repository.TargetGroupRepository
	propertyRepo    *repository.CustomPropertyRepository
	flagSetter      *flagsetter.FlagSetter

	impressionInvoker *reporting.Invoker
	confParser        *configuration.Parser
	fetcher           *configuration.Fetcher
	stateSender       *reporting.StateSender
	pushListener      *pushnotify.Listener
	periodicTask      *schedule.Task

	overrides             *model.OverridesStore
	configFetchedHandler  ConfigurationFetchedHandler
	dynamicPropertiesRule DynamicPropertiesRule

	globalCtx atomic.Pointer[Context]

	fetchMu                sync.Mutex
	fetchGroup             singleflight.Group
	lastFetch              time.Time
	throttle               time.Duration
	considerThrottleInPush bool

	stopped atomic.Bool
	state   stateHolder
}

// New validates apiKey, wires every internal component per §4.13, and
// returns a ready Core. In non-Roxy mode apiKey must match
// ^[a-f0-9]{24}$; Roxy mode (WithRoxyURL) skips that format check.
func New(apiKey string, opts ...Option) (*Core, error) {
	cfg := &config{
		mode:          configuration.ModeFromEnv(),
		throttle:      defaultThrottle,
		pushUpdates:   true,
		distinctID:    "",
		fetchInterval: 0,
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	logger := componentLogger(cfg.logger, "rox")

	c := &Core{
		logger:                 logger,
		overrides:              cfg.overrides,
		configFetchedHandler:   cfg.configurationFetchedHandler,
		dynamicPropertiesRule:  cfg.dynamicPropertiesRule,
		throttle:               cfg.throttle,
		considerThrottleInPush: cfg.considerThrottleInPush,
	}
	c.state.set(SettingUp)

	if apiKey == "" {
		c.state.set(ErrorInvalidAPIKey)
		return nil, newError(UnknownError, errors.New("rox: api key must not be empty"))
	}
	if cfg.roxyURL == "" && !security.ValidAPIKeyFormat(apiKey) {
		c.state.set(ErrorInvalidAPIKey)
		return nil, newError(UnknownError, fmt.Errorf("rox: invalid api key format: %q", apiKey))
	}
	c.apiKey = apiKey

	distinctID := cfg.distinctID
	if distinctID == "" {
		distinctID = security.GenerateDistinctID()
	}
	c.device = security.DeviceProperties{
		Platform:      platform,
		AppKey:        apiKey,
		LibVersion:    libVersion,
		APIVersion:    apiVersion,
		DistinctID:    distinctID,
		DevModeSecret: cfg.devModeSecret,
	}
	buid := security.BUID(c.device)

	c.parser = roxx.NewParser()
	c.flagRepo = repository.NewFlagRepository()
	c.experimentRepo = repository.NewExperimentRepository()
	c.targetGroupRepo = repository.NewTargetGroupRepository()
	c.propertyRepo = repository.NewCustomPropertyRepository()

	c.impressionInvoker = reporting.NewInvoker()
	if cfg.impressionHandler != nil {
		handler := cfg.impressionHandler
		c.impressionInvoker.SetDelegate(func(rv model.ReportingValue, exp *reporting.Experiment, ctx model.Context) {
			handler(rv, exp, ctx)
		})
	}

	c.flagSetter = flagsetter.New(c.flagRepo, c.experimentRepo, c.parser, c.impressionInvoker)

	roxx.RegisterExtensionOperators(c.parser, c.propertyResolver, c.flagValueResolver, c.targetGroupResolver, nil)

	// crypto/rsa signature verification needs an embedded public key this
	// SDK was never issued one for (original_source/src/core/security.c
	// stubs its own check to always succeed); AlwaysValidVerifier mirrors
	// that exactly rather than faking a key pair.
	c.confParser = configuration.NewParser(apiKey, security.AlwaysValidVerifier{})

	httpClient := &http.Client{Timeout: defaultFetchTimeout}
	c.fetcher = configuration.NewFetcher(apiKey, buid, distinctID, cfg.mode, cfg.roxyURL, httpClient)

	if cfg.roxyURL == "" {
		c.stateSender = reporting.NewStateSender(apiKey, cfg.mode, httpClient, c.flagRepo, c.propertyRepo, c.device, componentLogger(cfg.logger, "state"))

		if cfg.pushUpdates {
			source := pushnotify.NewHTTPSSESource(cfg.mode.Notifications, httpClient)
			c.pushListener = pushnotify.NewListener(source)
			c.pushListener.On("changed", func(pushnotify.Event) {
				if err := c.fetch(context.Background(), true); err != nil {
					c.logger.Warn("push-triggered fetch failed", "error", err)
				}
			})
			go c.startPushListener()
		}
	}

	if cfg.fetchInterval > 0 {
		c.periodicTask = schedule.New(cfg.fetchInterval, func() {
			if err := c.fetch(context.Background(), false); err != nil {
				c.logger.Warn("periodic fetch failed", "error", err)
			}
		}, componentLogger(cfg.logger, "periodic"))
	}

	c.state.set(Initialized)
	return c, nil
}

func (c *Core) startPushListener() {
	if c.stopped.Load() {
		return
	}
	if err := c.pushListener.Start(context.Background()); err != nil {
		c.logger.Warn("push listener failed to start", "error", err)
	}
}

func (c *Core) mergedContext(local Context) Context {
	return model.Merge(c.globalContext(), local)
}

func (c *Core) globalContext() Context {
	p := c.globalCtx.Load()
	if p == nil {
		return Context{}
	}
	return *p
}

// SetContext installs the global evaluation context every Flag read
// merges local context over (§3 "merged context ... local overrides
// key-by-key").
func (c *Core) SetContext(ctx Context) {
	c.globalCtx.Store(&ctx)
}

func (c *Core) newFlag(name string, kind model.Kind, defaultValue string, options []string) *Flag {
	if c.stopped.Load() {
		c.logger.Warn("addFlag called after shutdown, no-op", "flag", name)
		return &Flag{inner: model.NewFlag(name, kind, defaultValue, options), core: c}
	}

	f := model.NewFlag(name, kind, defaultValue, options)
	if c.overrides != nil {
		f.SetEval(c.overrides.Wrap(name, f.BaseEval()))
	}
	if err := c.flagRepo.AddFlag(f); err != nil {
		c.logger.Error("flag already registered", "flag", name, "error", err)
		if existing, ok := c.flagRepo.GetFlag(name); ok {
			return &Flag{inner: existing, core: c}
		}
	}
	return &Flag{inner: f, core: c}
}

func boolToStringValue(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// AddFlag registers a boolean flag with defaultValue (§3, §4.4).
func (c *Core) AddFlag(name string, defaultValue bool) *Flag {
	return c.newFlag(name, model.BoolKind, boolToStringValue(defaultValue), []string{"true", "false"})
}

// AddString registers a string flag; options, if given, constrain the
// values an experiment condition may resolve to (the default is always
// implicitly included).
func (c *Core) AddString(name, defaultValue string, options ...string) *Flag {
	return c.newFlag(name, model.StringKind, defaultValue, withDefaultOption(options, defaultValue))
}

// AddInt registers an int flag.
func (c *Core) AddInt(name string, defaultValue int64, options ...int64) *Flag {
	opts := make([]string, len(options))
	for i, o := range options {
		opts[i] = strconv.FormatInt(o, 10)
	}
	return c.newFlag(name, model.IntKind, strconv.FormatInt(defaultValue, 10), withDefaultOption(opts, strconv.FormatInt(defaultValue, 10)))
}

// AddDouble registers a double flag.
func (c *Core) AddDouble(name string, defaultValue float64, options ...float64) *Flag {
	opts := make([]string, len(options))
	for i, o := range options {
		opts[i] = strconv.FormatFloat(o, 'f', -1, 64)
	}
	def := strconv.FormatFloat(defaultValue, 'f', -1, 64)
	return c.newFlag(name, model.DoubleKind, def, withDefaultOption(opts, def))
}

func withDefaultOption(options []string, defaultValue string) []string {
	for _, o := range options {
		if o == defaultValue {
			return options
		}
	}
	return append(append([]string(nil), options...), defaultValue)
}

// SetCustomProperty registers a constant-valued custom property (§3,
// §4.5).
func (c *Core) SetCustomProperty(name string, value interface{}) {
	c.propertyRepo.Add(&model.CustomProperty{Name: name, Value: toDynamicValue(value)})
}

// SetCustomPropertyComputed registers a custom property whose value is
// derived from the evaluation context on every read (§3 "PropertyGenerator").
func (c *Core) SetCustomPropertyComputed(name string, generator func(ctx Context) interface{}) {
	c.propertyRepo.Add(&model.CustomProperty{
		Name:      name,
		Generator: func(ctx model.Context) dynamicvalue.Value { return toDynamicValue(generator(ctx)) },
	})
}

// StateCode reports Core's current lifecycle state (§4.13).
func (c *Core) StateCode() StateCode { return c.state.get() }

// Fetch runs one fetch-apply cycle with a default timeout (§4.8).
func (c *Core) Fetch() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultFetchTimeout)
	defer cancel()
	return c.fetch(ctx, false)
}

// FetchWithContext runs one fetch-apply cycle bounded by ctx.
func (c *Core) FetchWithContext(ctx context.Context) error {
	return c.fetch(ctx, false)
}

// fetch collapses concurrent callers via singleflight (exactly as the
// teacher collapses concurrent InitWithContext calls), then serializes
// the actual work under fetchMu (§4.13, §5).
func (c *Core) fetch(ctx context.Context, pushOrigin bool) error {
	if c.stopped.Load() {
		return nil
	}
	_, err, _ := c.fetchGroup.Do("fetch", func() (interface{}, error) {
		return nil, c.doFetch(ctx, pushOrigin)
	})
	return err
}

// doFetch implements the throttle-then-fetch-then-apply flow of §4.8/§4.13.
// The throttle check only runs when the fetch is NOT push-originated, or
// when considerThrottleInPush has been explicitly turned on — preserving
// the source's literal (and non-obvious) semantics (§9 Open Question).
func (c *Core) doFetch(ctx context.Context, pushOrigin bool) error {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if c.stopped.Load() {
		return nil
	}

	if (!pushOrigin || c.considerThrottleInPush) && !c.lastFetch.IsZero() && time.Since(c.lastFetch) < c.throttle {
		return nil
	}

	outcome, fetchErr := c.fetcher.FetchWithContext(ctx)
	if fetchErr != nil {
		code := fetchErrorCode(fetchErr)
		rerr := newError(code, fetchErr)
		c.notifyConfigurationFetched(ConfigurationFetchedArgs{Status: FetchErrorOccurred, ErrorDetails: rerr})
		c.lastFetch = time.Now()
		return rerr
	}

	conf, parseErr := c.confParser.Parse(outcome.Result)
	if parseErr != nil {
		code := fetchErrorCode(parseErr)
		rerr := newError(code, parseErr)
		c.notifyConfigurationFetched(ConfigurationFetchedArgs{Status: FetchErrorOccurred, ErrorDetails: rerr})
		c.lastFetch = time.Now()
		return rerr
	}

	c.experimentRepo.SetExperiments(conf.Experiments)
	c.targetGroupRepo.SetTargetGroups(conf.TargetGroups)
	c.flagSetter.SetExperiments()
	c.lastFetch = time.Now()

	c.notifyConfigurationFetched(ConfigurationFetchedArgs{
		Status:       AppliedFromNetwork,
		CreationDate: conf.SignatureDate,
		HasChanges:   outcome.HasChanges,
	})
	return nil
}

func fetchErrorCode(err error) ErrorCode {
	var fe *configuration.FetchError
	if errors.As(err, &fe) {
		return errorCodeFromFetch(fe.Code)
	}
	return UnknownError
}

func (c *Core) notifyConfigurationFetched(args ConfigurationFetchedArgs) {
	if c.configFetchedHandler != nil {
		c.configFetchedHandler(args)
	}
}

// propertyResolver implements the `property` extension operator's
// fallback chain (original_source/src/roxx/extensions.c
// _parser_operator_property): a registered custom property wins, keeping
// its declared Bool/Int/Double/String type so comparison operators see a
// typed operand rather than a stringified one; else the dynamic-properties
// rule, if any, is consulted (always as a string, its own contract); else
// undefined.
func (c *Core) propertyResolver(name string, ctx *roxx.EvaluationContext) (dynamicvalue.Value, bool) {
	if prop, ok := c.propertyRepo.GetByName(name); ok {
		return prop.Resolve(model.Context(ctx.Context)), true
	}
	if c.dynamicPropertiesRule != nil {
		s, ok := c.dynamicPropertiesRule(name, model.Context(ctx.Context))
		if !ok {
			return dynamicvalue.Value{}, false
		}
		return dynamicvalue.NewString(s), true
	}
	return dynamicvalue.Value{}, false
}

// flagValueResolver implements the `flagValue` extension operator's
// three-step fallback (original_source/src/roxx/extensions.c
// _parser_operator_flag_value): the named flag's own evaluated value if
// it exists, else its governing experiment's condition evaluated
// directly, else "false".
func (c *Core) flagValueResolver(name string) string {
	if flag, ok := c.flagRepo.GetFlag(name); ok {
		return flag.DependencyValue(model.Context{})
	}
	if experiment := c.experimentRepo.GetExperimentByFlag(name); experiment != nil && experiment.Condition != "" {
		result := c.parser.EvaluateExpression(experiment.Condition, &roxx.EvaluationContext{FlagName: name})
		if !result.IsUndefined() {
			if s := result.String(); s != "" {
				return s
			}
		}
	}
	return "false"
}

// targetGroupResolver implements the `isInTargetGroup` extension operator
// (original_source/src/roxx/extensions.c
// _parser_operator_is_in_target_group): evaluate the named target
// group's condition through the same parser/context; undefined group or
// result defaults to false.
func (c *Core) targetGroupResolver(id string, ctx *roxx.EvaluationContext) (bool, bool) {
	group, ok := c.targetGroupRepo.GetTargetGroup(id)
	if !ok {
		return false, false
	}
	result := c.parser.EvaluateExpression(group.Condition, ctx)
	b, _ := result.Bool()
	return b, true
}

// Shutdown tears Core down within a default timeout; see
// ShutdownWithContext for the best-effort semantics.
func (c *Core) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	_ = c.ShutdownWithContext(ctx)
}

// ShutdownWithContext stops every owned worker in the order of §9
// ("orchestrator → periodic task → push listener → state sender →
// impression invoker → fetcher → parser → repositories → options"),
// bounding each join by ctx. Idempotent: a second call is a no-op.
// Returns ctx.Err() if the deadline is hit before every worker joined;
// the provider is logically shut down either way.
func (c *Core) ShutdownWithContext(ctx context.Context) error {
	if !c.stopped.CompareAndSwap(false, true) {
		return nil
	}
	c.state.set(ShuttingDown)

	var shutdownErr error
	record := func(err error) {
		if err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	if c.periodicTask != nil {
		record(joinWithDeadline(ctx, c.periodicTask.Stop))
	}
	if c.pushListener != nil {
		record(joinWithDeadline(ctx, c.pushListener.Stop))
	}
	if c.stateSender != nil {
		record(joinWithDeadline(ctx, c.stateSender.Stop))
	}
	c.parser.Close()

	return shutdownErr
}

// joinWithDeadline runs a blocking stop/join function on its own
// goroutine and races it against ctx, matching the teacher's
// ShutdownWithContext "best effort within timeout" contract.
func joinWithDeadline(ctx context.Context, stop func()) error {
	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
