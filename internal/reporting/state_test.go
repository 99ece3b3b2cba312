package reporting

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollout/rox-go/internal/configuration"
	"github.com/rollout/rox-go/internal/dynamicvalue"
	"github.com/rollout/rox-go/internal/model"
	"github.com/rollout/rox-go/internal/repository"
	"github.com/rollout/rox-go/internal/security"
)

type noopHTTPDoer struct{}

func (noopHTTPDoer) Do(*http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
}

type stateFakeResponse struct {
	status int
	body   string
}

type stateFakeDoer struct {
	responses []stateFakeResponse
	calls     []string
}

func (f *stateFakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.calls = append(f.calls, req.URL.String())
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		return &http.Response{StatusCode: 500, Body: http.NoBody}, nil
	}
	r := f.responses[idx]
	return &http.Response{StatusCode: r.status, Body: io.NopCloser(strings.NewReader(r.body))}, nil
}

func newTestStateSender() (*StateSender, *repository.FlagRepository, *repository.CustomPropertyRepository) {
	flags := repository.NewFlagRepository()
	props := repository.NewCustomPropertyRepository()
	device := security.DeviceProperties{Platform: "go", AppKey: "app", DevModeSecret: "secret"}
	s := NewStateSender("app", configuration.Mode{StateCDN: "https://cdn", StateAPI: "https://api"}, noopHTTPDoer{}, flags, props, device, nil)
	return s, flags, props
}

func TestStateFingerprintOrderIndependent(t *testing.T) {
	s1, flags1, props1 := newTestStateSender()
	defer s1.Stop()
	require.NoError(t, flags1.AddFlag(model.NewFlag("a", model.BoolKind, "false", []string{"true", "false"})))
	require.NoError(t, flags1.AddFlag(model.NewFlag("b", model.BoolKind, "false", []string{"true", "false"})))
	props1.Add(&model.CustomProperty{Name: "x", Kind: model.PropertyString, Value: dynamicvalue.NewString("1")})
	props1.Add(&model.CustomProperty{Name: "y", Kind: model.PropertyString, Value: dynamicvalue.NewString("2")})

	s2, flags2, props2 := newTestStateSender()
	defer s2.Stop()
	require.NoError(t, flags2.AddFlag(model.NewFlag("b", model.BoolKind, "false", []string{"true", "false"})))
	require.NoError(t, flags2.AddFlag(model.NewFlag("a", model.BoolKind, "false", []string{"true", "false"})))
	props2.Add(&model.CustomProperty{Name: "y", Kind: model.PropertyString, Value: dynamicvalue.NewString("2")})
	props2.Add(&model.CustomProperty{Name: "x", Kind: model.PropertyString, Value: dynamicvalue.NewString("1")})

	assert.Equal(t, s1.Fingerprint(), s2.Fingerprint())
}

func TestStateSendFallsBackToAPI(t *testing.T) {
	flags := repository.NewFlagRepository()
	props := repository.NewCustomPropertyRepository()
	device := security.DeviceProperties{Platform: "go", AppKey: "app"}

	doer := &stateFakeDoer{responses: []stateFakeResponse{
		{status: 200, body: `{"result":"404"}`},
		{status: 200, body: `{}`},
	}}
	s := NewStateSender("app", configuration.Mode{StateCDN: "https://cdn", StateAPI: "https://api"}, doer, flags, props, device, nil)
	defer s.Stop()

	err := s.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, len(doer.calls))
}
