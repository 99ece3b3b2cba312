package rox

import (
	"log/slog"
	"time"

	"github.com/rollout/rox-go/internal/configuration"
	"github.com/rollout/rox-go/internal/model"
)

// config holds the resolved settings every Option mutates before New
// builds a Core, mirroring the teacher's Config/Option split in
// provider.go.
type config struct {
	logger *slog.Logger
	mode   configuration.Mode

	roxyURL       string
	distinctID    string
	devModeSecret string

	fetchInterval time.Duration

	throttle               time.Duration
	considerThrottleInPush bool
	pushUpdates            bool

	overrides *model.OverridesStore

	impressionHandler           Handler
	configurationFetchedHandler ConfigurationFetchedHandler
	dynamicPropertiesRule       DynamicPropertiesRule
}

// Option configures a Core. Mirrors the teacher's Option interface +
// unexported withX structs exactly.
type Option interface {
	apply(*config)
}

type withLogger struct{ logger *slog.Logger }

func (o withLogger) apply(c *config) { c.logger = o.logger }

// WithLogger sets the logger every owned component logs through, tagged
// per-component via componentLogger.
func WithLogger(logger *slog.Logger) Option { return withLogger{logger} }

type withMode struct{ mode configuration.Mode }

func (o withMode) apply(c *config) { c.mode = o.mode }

// WithMode selects the deployment mode's hostnames (§4.15), overriding
// the ROLLOUT_MODE environment default.
func WithMode(mode configuration.Mode) Option { return withMode{mode} }

type withRoxyURL struct{ url string }

func (o withRoxyURL) apply(c *config) { c.roxyURL = o.url }

// WithRoxyURL switches the fetcher into Roxy side-car mode (§4.8 "Roxy
// mode"). In Roxy mode Core starts neither the state sender nor the push
// listener.
func WithRoxyURL(url string) Option { return withRoxyURL{url} }

type withDistinctID struct{ id string }

func (o withDistinctID) apply(c *config) { c.distinctID = o.id }

// WithDistinctID overrides the generated device distinct_id.
func WithDistinctID(id string) Option { return withDistinctID{id} }

type withDevModeSecret struct{ secret string }

func (o withDevModeSecret) apply(c *config) { c.devModeSecret = o.secret }

// WithDevModeSecret sets the state-sender's devModeSecret field.
func WithDevModeSecret(secret string) Option { return withDevModeSecret{secret} }

type withFetchInterval struct{ interval time.Duration }

func (o withFetchInterval) apply(c *config) { c.fetchInterval = o.interval }

// WithFetchInterval starts a periodic task refetching configuration every
// interval (floored to schedule.MinInterval, §4.12). Zero disables the
// periodic task.
func WithFetchInterval(interval time.Duration) Option { return withFetchInterval{interval} }

type withThrottle struct{ d time.Duration }

func (o withThrottle) apply(c *config) { c.throttle = o.d }

// WithThrottle sets the minimum interval between successive fetches
// (rox.internal.throttleFetchInSeconds, §4.8).
func WithThrottle(d time.Duration) Option { return withThrottle{d} }

type withConsiderThrottleInPush struct{ v bool }

func (o withConsiderThrottleInPush) apply(c *config) { c.considerThrottleInPush = o.v }

// WithConsiderThrottleInPush makes a push-originated fetch subject to the
// same throttle as any other fetch (rox.internal.considerThrottleInPush).
// By default push-origin fetches skip the throttle check entirely — see
// the Open Question preserved in §9.
func WithConsiderThrottleInPush(v bool) Option { return withConsiderThrottleInPush{v} }

type withPushUpdates struct{ v bool }

func (o withPushUpdates) apply(c *config) { c.pushUpdates = o.v }

// WithPushUpdates gates whether Core starts the SSE push listener
// (rox.internal.pushUpdates, §4.13). Defaults to true in non-Roxy mode.
func WithPushUpdates(v bool) Option { return withPushUpdates{v} }

type withOverrides struct{ store *model.OverridesStore }

func (o withOverrides) apply(c *config) { c.overrides = o.store }

// WithOverrides installs a layered-evaluation overrides store (§4.14).
func WithOverrides(store *model.OverridesStore) Option { return withOverrides{store} }

type withImpressionHandler struct{ h Handler }

func (o withImpressionHandler) apply(c *config) { c.impressionHandler = o.h }

// WithImpressionHandler registers the impression invoker's delegate
// (§4.9), invoked on every impression before any other registered handler.
func WithImpressionHandler(h Handler) Option { return withImpressionHandler{h} }

type withConfigurationFetchedHandler struct{ h ConfigurationFetchedHandler }

func (o withConfigurationFetchedHandler) apply(c *config) { c.configurationFetchedHandler = o.h }

// WithConfigurationFetchedHandler registers the handler notified on every
// fetch outcome, success or error (§4.8, §7).
func WithConfigurationFetchedHandler(h ConfigurationFetchedHandler) Option {
	return withConfigurationFetchedHandler{h}
}

type withDynamicPropertiesRule struct{ rule DynamicPropertiesRule }

func (o withDynamicPropertiesRule) apply(c *config) { c.dynamicPropertiesRule = o.rule }

// WithDynamicPropertiesRule installs the fallback resolver the `property`
// extension operator consults when no custom property is registered
// under the requested name (§6 "Callback registration ... dynamic-properties
// rule").
func WithDynamicPropertiesRule(rule DynamicPropertiesRule) Option {
	return withDynamicPropertiesRule{rule}
}
