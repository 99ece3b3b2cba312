package configuration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDoer struct {
	responses []fakeResponse
	calls     []string
}

type fakeResponse struct {
	status int
	body   string
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.calls = append(f.calls, req.URL.String())
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		return &http.Response{StatusCode: 500, Body: http.NoBody}, nil
	}
	r := f.responses[idx]
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(strings.NewReader(r.body)),
	}, nil
}

func TestFallbackCDNGood(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{
		{status: 200, body: `{"data":"{\"application\":\"app\"}","signature_v0":"x","signed_date":"now"}`},
	}}
	f := NewFetcher("app", "buid", "dist", prodMode, "", doer)
	outcome, err := f.FetchWithContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, len(doer.calls))
	assert.True(t, strings.Contains(doer.calls[0], "conf.rollout.io"))

	var probe struct {
		Application string `json:"application"`
	}
	require.NoError(t, json.Unmarshal([]byte(outcome.Result.ParsedEnvelope.Data), &probe))
	assert.Equal(t, "app", probe.Application)
}

func TestFallbackCDN404TriggersAPI(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{
		{status: 200, body: `{"result":"404"}`},
		{status: 200, body: `{"data":"{\"application\":\"app\"}","signature_v0":"x","signed_date":"now"}`},
	}}
	f := NewFetcher("app", "buid", "dist", prodMode, "", doer)
	_, err := f.FetchWithContext(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, len(doer.calls))
}

func TestFallbackCDN403TriggersAPI(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{
		{status: 403, body: ``},
		{status: 200, body: `{"data":"{\"application\":\"app\"}","signature_v0":"x","signed_date":"now"}`},
	}}
	f := NewFetcher("app", "buid", "dist", prodMode, "", doer)
	_, err := f.FetchWithContext(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, len(doer.calls))
}

func TestFallbackBothFail(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{
		{status: 403, body: ``},
		{status: 500, body: ``},
	}}
	f := NewFetcher("app", "buid", "dist", prodMode, "", doer)
	outcome, err := f.FetchWithContext(context.Background())
	require.Error(t, err)
	assert.Nil(t, outcome)
}

func TestHasChangesDetection(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{
		{status: 200, body: `{"data":"{\"application\":\"app\",\"experiments\":[]}","signature_v0":"x","signed_date":"now"}`},
		{status: 200, body: `{"data":"{\"experiments\":[],\"application\":\"app\"}","signature_v0":"x","signed_date":"later"}`},
	}}
	f := NewFetcher("app", "buid", "dist", prodMode, "", doer)
	first, err := f.FetchWithContext(context.Background())
	require.NoError(t, err)
	assert.True(t, first.HasChanges)

	second, err := f.FetchWithContext(context.Background())
	require.NoError(t, err)
	assert.False(t, second.HasChanges)
}
