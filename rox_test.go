package rox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("time.Sleep"),
	)
}

const testAPIKey = "abcdef0123456789abcdef01"

type experimentFixture struct {
	id, name, condition string
	flags               []string
	archived            bool
}

func envelopeJSON(apiKey string, experiments []experimentFixture, targetGroups map[string]string) string {
	type ff struct {
		Name string `json:"name"`
	}
	type dc struct {
		Condition string `json:"condition"`
	}
	type exp struct {
		ID                      string   `json:"_id"`
		Name                    string   `json:"name"`
		DeploymentConfiguration dc       `json:"deploymentConfiguration"`
		Archived                bool     `json:"archived"`
		FeatureFlags            []ff     `json:"featureFlags"`
		Labels                  []string `json:"labels"`
		StickinessProperty      string   `json:"stickinessProperty"`
	}
	type tg struct {
		ID        string `json:"_id"`
		Condition string `json:"condition"`
	}
	type inner struct {
		Application  string `json:"application"`
		Experiments  []exp  `json:"experiments"`
		TargetGroups []tg   `json:"targetGroups"`
	}

	in := inner{Application: apiKey}
	for _, e := range experiments {
		ff2 := make([]ff, len(e.flags))
		for i, name := range e.flags {
			ff2[i] = ff{Name: name}
		}
		in.Experiments = append(in.Experiments, exp{
			ID:                      e.id,
			Name:                    e.name,
			DeploymentConfiguration: dc{Condition: e.condition},
			Archived:                e.archived,
			FeatureFlags:            ff2,
		})
	}
	for id, cond := range targetGroups {
		in.TargetGroups = append(in.TargetGroups, tg{ID: id, Condition: cond})
	}

	data, err := json.Marshal(in)
	require.NoError(nil, err)

	type envelope struct {
		Data        string `json:"data"`
		SignatureV0 string `json:"signature_v0"`
		SignedDate  string `json:"signed_date"`
	}
	out, err := json.Marshal(envelope{Data: string(data), SignatureV0: "unused", SignedDate: "2026-01-01T00:00:00Z"})
	require.NoError(nil, err)
	return string(out)
}

// newTestCore starts an httptest Roxy server serving body and wires a Core
// against it via WithRoxyURL, so fetchRoxy's single-GET path is exercised
// instead of the CDN/API fallback chain.
func newTestCore(t *testing.T, body func() string, opts ...Option) (*Core, *httptest.Server) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		io.Copy(w, bytes.NewBufferString(body()))
	}))
	t.Cleanup(srv.Close)

	allOpts := append([]Option{WithRoxyURL(srv.URL), WithPushUpdates(false)}, opts...)
	core, err := New(testAPIKey, allOpts...)
	require.NoError(t, err)
	t.Cleanup(core.Shutdown)
	return core, srv
}

func TestFlagEvaluationAndImpression(t *testing.T) {
	var mu sync.Mutex
	var impressions []ReportingValue

	core, _ := newTestCore(t, func() string {
		return envelopeJSON(testAPIKey, []experimentFixture{
			{id: "e1", name: "exp1", condition: "and(true, or(true, true))", flags: []string{"myFlag"}},
		}, nil)
	}, WithImpressionHandler(func(rv ReportingValue, exp *Experiment, ctx Context) {
		mu.Lock()
		impressions = append(impressions, rv)
		mu.Unlock()
	}))

	flag := core.AddFlag("myFlag", false)
	require.NoError(t, core.Fetch())

	assert.True(t, flag.IsEnabled(nil))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, impressions, 1)
	assert.Equal(t, "myFlag", impressions[0].Name)
	assert.Equal(t, "true", impressions[0].Value)
}

func TestFlagValueDependency(t *testing.T) {
	core, _ := newTestCore(t, func() string {
		return envelopeJSON(testAPIKey, []experimentFixture{
			{id: "e1", name: "exp1", condition: "true", flags: []string{"base"}},
			{id: "e2", name: "exp2", condition: `ifThen(eq(flagValue("base"), "true"), "derived-on", "derived-off")`, flags: []string{"dependent"}},
		}, nil)
	})

	base := core.AddFlag("base", false)
	dependent := core.AddString("dependent", "derived-off", "derived-on", "derived-off")
	require.NoError(t, core.Fetch())

	assert.True(t, base.IsEnabled(nil))
	assert.Equal(t, "derived-on", dependent.GetString(nil))
}

func TestTargetGroupAndProperty(t *testing.T) {
	core, _ := newTestCore(t, func() string {
		return envelopeJSON(testAPIKey, []experimentFixture{
			{id: "e1", name: "exp1", condition: `isInTargetGroup("tg1")`, flags: []string{"gated"}},
		}, map[string]string{"tg1": `eq(property("plan"), "enterprise")`})
	})

	core.SetCustomProperty("plan", "enterprise")
	gated := core.AddFlag("gated", false)
	require.NoError(t, core.Fetch())

	assert.True(t, gated.IsEnabled(nil))
}

func TestThrottleCollapsesSuccessiveFetches(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		io.Copy(w, bytes.NewBufferString(envelopeJSON(testAPIKey, nil, nil)))
	}))
	t.Cleanup(srv.Close)

	core, err := New(testAPIKey, WithRoxyURL(srv.URL), WithPushUpdates(false), WithThrottle(time.Hour))
	require.NoError(t, err)
	t.Cleanup(core.Shutdown)

	require.NoError(t, core.Fetch())
	require.NoError(t, core.Fetch())

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchErrorNotifiesHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	var gotStatus FetchStatus
	var gotErr *Error
	core, err := New(testAPIKey, WithRoxyURL(srv.URL), WithPushUpdates(false),
		WithConfigurationFetchedHandler(func(args ConfigurationFetchedArgs) {
			gotStatus = args.Status
			gotErr = args.ErrorDetails
		}))
	require.NoError(t, err)
	t.Cleanup(core.Shutdown)

	fetchErr := core.Fetch()
	require.Error(t, fetchErr)
	assert.Equal(t, FetchErrorOccurred, gotStatus)
	require.NotNil(t, gotErr)
	assert.Equal(t, NetworkError, gotErr.Code)
}

func TestNewRejectsInvalidAPIKey(t *testing.T) {
	_, err := New("not-a-valid-key")
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
}

func TestStateCodeTransitions(t *testing.T) {
	core, _ := newTestCore(t, func() string { return envelopeJSON(testAPIKey, nil, nil) })
	assert.Equal(t, Initialized, core.StateCode())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, core.ShutdownWithContext(ctx))
	assert.Equal(t, ShuttingDown, core.StateCode())
}

func TestUnboundFlagStillEmitsImpression(t *testing.T) {
	var mu sync.Mutex
	var impressions []ReportingValue

	core, _ := newTestCore(t, func() string {
		return envelopeJSON(testAPIKey, nil, nil)
	}, WithImpressionHandler(func(rv ReportingValue, exp *Experiment, ctx Context) {
		mu.Lock()
		impressions = append(impressions, rv)
		mu.Unlock()
	}))

	flag := core.AddFlag("untargeted", false)
	require.NoError(t, core.Fetch())

	assert.False(t, flag.IsEnabled(nil))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, impressions, 1, "a flag with no governing experiment must still report an impression on read")
	assert.Equal(t, "untargeted", impressions[0].Name)
}

func TestTypedPropertyComparisons(t *testing.T) {
	core, _ := newTestCore(t, func() string {
		return envelopeJSON(testAPIKey, []experimentFixture{
			{id: "e1", name: "exp1", condition: `eq(property("isBeta"), true)`, flags: []string{"betaFlag"}},
			{id: "e2", name: "exp2", condition: `gt(property("age"), 18)`, flags: []string{"adultFlag"}},
		}, nil)
	})

	core.SetCustomProperty("isBeta", true)
	core.SetCustomProperty("age", int64(25))

	betaFlag := core.AddFlag("betaFlag", false)
	adultFlag := core.AddFlag("adultFlag", false)
	require.NoError(t, core.Fetch())

	assert.True(t, betaFlag.IsEnabled(nil), "a Bool property must compare equal against a literal bool, not its stringified form")
	assert.True(t, adultFlag.IsEnabled(nil), "a numeric property must support numeric comparison operators")
}

func TestLocalContextOverridesSetContext(t *testing.T) {
	core, _ := newTestCore(t, func() string {
		return envelopeJSON(testAPIKey, []experimentFixture{
			{id: "e1", name: "exp1", condition: `eq(property("tier"), "gold")`, flags: []string{"tierFlag"}},
		}, nil)
	})
	core.SetCustomPropertyComputed("tier", func(ctx Context) interface{} {
		if v, ok := ctx["tier"]; ok {
			return v.Str()
		}
		return ""
	})
	core.SetContext(NewContext(map[string]interface{}{"tier": "gold"}))

	flag := core.AddFlag("tierFlag", false)
	require.NoError(t, core.Fetch())

	assert.True(t, flag.IsEnabled(nil), "global context alone should satisfy the condition")
	assert.False(t, flag.IsEnabled(NewContext(map[string]interface{}{"tier": "silver"})),
		"local context must override the global tier key")
}
