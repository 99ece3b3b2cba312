package reporting

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rollout/rox-go/internal/configuration"
	"github.com/rollout/rox-go/internal/model"
	"github.com/rollout/rox-go/internal/repository"
	"github.com/rollout/rox-go/internal/security"
)

// debounceWindow is the fixed 3-second window of §4.10.
const debounceWindow = 3 * time.Second

// StateSender maintains the device state fingerprint and submits it to
// the state CDN/API, debounced on flag/custom-property registration
// (§4.10).
type StateSender struct {
	apiKey     string
	mode       configuration.Mode
	client     configuration.HTTPDoer
	flags      *repository.FlagRepository
	properties *repository.CustomPropertyRepository
	device     security.DeviceProperties
	logger     *slog.Logger

	debouncer *Debouncer
}

func NewStateSender(
	apiKey string,
	mode configuration.Mode,
	client configuration.HTTPDoer,
	flags *repository.FlagRepository,
	properties *repository.CustomPropertyRepository,
	device security.DeviceProperties,
	logger *slog.Logger,
) *StateSender {
	s := &StateSender{
		apiKey:     apiKey,
		mode:       mode,
		client:     client,
		flags:      flags,
		properties: properties,
		device:     device,
		logger:     logger,
	}
	s.debouncer = NewDebouncer(debounceWindow, s.sendBestEffort)
	flags.AddFlagAddedCallback(func(*model.Flag) { s.debouncer.Trigger() })
	properties.AddAddedCallback(func(string) { s.debouncer.Trigger() })
	return s
}

// Stop joins the debouncer's worker; called from the orchestrator's
// teardown path (§9 teardown order: "... state sender ...").
func (s *StateSender) Stop() { s.debouncer.Stop() }

type flagState struct {
	Name string `json:"name"`
}

type propertyState struct {
	Name string `json:"name"`
}

func (s *StateSender) serializedFlags() string {
	flags := s.flags.GetAllFlags()
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = f.Name
	}
	sort.Strings(names)

	payload := make([]flagState, len(names))
	for i, n := range names {
		payload[i] = flagState{Name: n}
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func (s *StateSender) serializedProperties() string {
	names := s.properties.GetAllNames()
	sort.Strings(names)

	payload := make([]propertyState, len(names))
	for i, n := range names {
		payload[i] = propertyState{Name: n}
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// Fingerprint computes the state MD5 described in §4.10 / GLOSSARY "State
// fingerprint", independent of registration order (§8 invariant 8).
func (s *StateSender) Fingerprint() string {
	return security.StateFingerprint(s.device, s.serializedFlags(), s.serializedProperties(), "")
}

func (s *StateSender) sendBestEffort() {
	if err := s.Send(context.Background()); err != nil && s.logger != nil {
		s.logger.Warn("state send failed", "error", err)
	}
}

// Send implements §4.10's GET-then-POST-fallback; it never retries — the
// next debounced trigger covers the next change.
func (s *StateSender) Send(ctx context.Context) error {
	fingerprint := s.Fingerprint()

	getURL := s.mode.StateCDN + "/" + s.apiKey + "/" + fingerprint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err == nil {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr == nil && resp.StatusCode == http.StatusOK && !isStateCacheMiss(body) {
			return nil
		}
	}

	flagsJSON := s.serializedFlags()
	propsJSON := s.serializedProperties()

	form := url.Values{}
	form.Set("platform", s.device.Platform)
	form.Set("feature_flags", flagsJSON)
	form.Set("custom_properties", propsJSON)
	form.Set("remote_variables", "[]")
	form.Set("devModeSecret", s.device.DevModeSecret)

	postURL := s.mode.StateAPI + "/" + s.apiKey + "/" + fingerprint
	postReq, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	postResp, err := s.client.Do(postReq)
	if err != nil {
		return err
	}
	defer postResp.Body.Close()
	if postResp.StatusCode != http.StatusOK {
		return errStateSendFailed
	}
	return nil
}

func isStateCacheMiss(body []byte) bool {
	var probe struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Result == "404"
}

var errStateSendFailed = stateSendError{}

type stateSendError struct{}

func (stateSendError) Error() string { return "state send: non-200 response from state API" }
