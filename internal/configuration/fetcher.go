package configuration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rollout/rox-go/internal/model"
)

// HTTPDoer is the transport seam named as an out-of-scope external
// collaborator in §1/§6 ("the concrete transport layer"); the default
// implementation wraps *http.Client (stdlib — see DESIGN.md).
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher implements the CDN→API→Roxy fallback state machine of §4.8. It
// owns the last successful fetch's canonical JSON so it can compute
// hasChanges on the next fetch (§3 "Ownership / lifecycle").
type Fetcher struct {
	APIKey     string
	BUID       string
	DistinctID string
	Mode       Mode
	RoxyURL    string
	Client     HTTPDoer

	mu             sync.Mutex
	lastCanonical  string
	haveLastResult bool
}

func NewFetcher(apiKey, buid, distinctID string, mode Mode, roxyURL string, client HTTPDoer) *Fetcher {
	return &Fetcher{APIKey: apiKey, BUID: buid, DistinctID: distinctID, Mode: mode, RoxyURL: roxyURL, Client: client}
}

// Outcome is the result of a successful FetchWithContext call.
type Outcome struct {
	Result     *model.FetchResult
	HasChanges bool
}

// FetchWithContext runs the fallback chain of §4.8. A transport error or
// a non-recoverable HTTP status returns a *FetchError and a nil outcome;
// callers are expected to emit it as a configuration-fetched error event.
func (f *Fetcher) FetchWithContext(ctx context.Context) (*Outcome, error) {
	if f.RoxyURL != "" {
		return f.fetchRoxy(ctx)
	}
	return f.fetchNonRoxy(ctx)
}

func (f *Fetcher) fetchRoxy(ctx context.Context) (*Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(f.RoxyURL, "/")+"/device/request_configuration", nil)
	if err != nil {
		return nil, newFetchError(UnknownError, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, newFetchError(NetworkError, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newFetchError(NetworkError, errHTTPStatus(resp.StatusCode))
	}
	return f.finish(resp.Body, model.SourceRoxy)
}

func (f *Fetcher) fetchNonRoxy(ctx context.Context) (*Outcome, error) {
	cdnURL := f.Mode.CDN + "/" + f.APIKey + "/" + f.BUID + "?distinct_id=" + url.QueryEscape(f.DistinctID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cdnURL, nil)
	if err != nil {
		return nil, newFetchError(UnknownError, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, newFetchError(NetworkError, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, newFetchError(NetworkError, readErr)
	}

	if resp.StatusCode == http.StatusOK && !isCacheMiss(body) {
		return f.finishBytes(body, model.SourceCDN)
	}

	if (resp.StatusCode == http.StatusOK && isCacheMiss(body)) ||
		resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound {
		return f.fetchAPI(ctx)
	}

	return nil, newFetchError(NetworkError, errHTTPStatus(resp.StatusCode))
}

func (f *Fetcher) fetchAPI(ctx context.Context) (*Outcome, error) {
	form := url.Values{}
	form.Set("app_key", f.APIKey)
	form.Set("api_version", "1.8.0")
	form.Set("distinct_id", f.DistinctID)
	form.Set("buid", f.BUID)
	form.Set("cache_miss_relative_url", f.APIKey+"/"+f.BUID)

	apiURL := f.Mode.API + "/" + f.APIKey + "/" + f.BUID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, newFetchError(UnknownError, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, newFetchError(NetworkError, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newFetchError(NetworkError, errHTTPStatus(resp.StatusCode))
	}
	return f.finish(resp.Body, model.SourceAPI)
}

func isCacheMiss(body []byte) bool {
	var probe struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Result == "404"
}

func (f *Fetcher) finish(r io.Reader, source model.FetchSource) (*Outcome, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, newFetchError(NetworkError, err)
	}
	return f.finishBytes(body, source)
}

func (f *Fetcher) finishBytes(body []byte, source model.FetchSource) (*Outcome, error) {
	var envelope model.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, newFetchError(CorruptedJSON, err)
	}

	canonical, err := canonicalJSON(envelope.Data)
	if err != nil {
		canonical = envelope.Data
	}

	f.mu.Lock()
	hasChanges := !f.haveLastResult || canonical != f.lastCanonical
	f.lastCanonical = canonical
	f.haveLastResult = true
	f.mu.Unlock()

	return &Outcome{
		Result:     &model.FetchResult{ParsedEnvelope: envelope, Source: source},
		HasChanges: hasChanges,
	}, nil
}

func canonicalJSON(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return "", err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func errHTTPStatus(code int) error {
	return errors.New(http.StatusText(code))
}
