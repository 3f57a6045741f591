package httpcall

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/domain"
)

func testEndpoint(method string) Endpoint {
	return Endpoint{
		Name:    "test.call",
		Service: "test",
		Method:  method,
		Path:    "/v1/things",
	}
}

func newTestClient(baseURL string) *Client {
	return NewClient(map[string]string{"test": baseURL}, 5*time.Second, zap.NewNop())
}

func TestActionDecodesJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total": 3, "items": ["a", "b", "c"]}`))
	}))
	defer srv.Close()

	fn := newTestClient(srv.URL).Action(testEndpoint(http.MethodGet))
	out, err := fn(context.Background(), nil, nil)
	require.NoError(t, err)

	result := out.(map[string]interface{})
	assert.Equal(t, float64(3), result["total"])
}

func TestActionSendsBearerTokenAndJSONBody(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	fn := newTestClient(srv.URL).Action(testEndpoint(http.MethodPost))
	_, err := fn(context.Background(), domain.Credentials{"token": "secret"}, map[string]interface{}{"name": "x"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"name":"x"}`, string(gotBody))
}

func TestActionGetEncodesQueryParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	fn := newTestClient(srv.URL).Action(testEndpoint(http.MethodGet))
	_, err := fn(context.Background(), nil, map[string]interface{}{"top": 50})
	require.NoError(t, err)

	assert.Equal(t, "top=50", gotQuery)
}

func TestActionStatusClassification(t *testing.T) {
	cases := []struct {
		status    int
		kind      domain.ErrorKind
		retryable bool
	}{
		{http.StatusUnauthorized, domain.ErrKindUnauthorized, true},
		{http.StatusForbidden, domain.ErrKindUnauthorized, true},
		{http.StatusTooManyRequests, domain.ErrKindRateLimited, true},
		{http.StatusGatewayTimeout, domain.ErrKindTimeout, true},
		{http.StatusInternalServerError, domain.ErrKindUpstreamUnavailable, true},
		{http.StatusBadRequest, domain.ErrKindInvalidInput, false},
		{http.StatusNotFound, domain.ErrKindInvalidInput, false},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		fn := newTestClient(srv.URL).Action(testEndpoint(http.MethodGet))
		_, err := fn(context.Background(), nil, nil)
		srv.Close()

		var ae *domain.ActionError
		require.True(t, errors.As(err, &ae), "status %d", tc.status)
		assert.Equal(t, tc.kind, ae.Kind, "status %d", tc.status)
		assert.Equal(t, tc.retryable, ae.Retryable, "status %d", tc.status)
	}
}

func TestActionUnconfiguredService(t *testing.T) {
	client := NewClient(nil, time.Second, zap.NewNop())

	fn := client.Action(testEndpoint(http.MethodGet))
	_, err := fn(context.Background(), nil, nil)

	var ae *domain.ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, domain.ErrKindUpstreamUnavailable, ae.Kind)
}

func TestActionEmptySuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	fn := newTestClient(srv.URL).Action(testEndpoint(http.MethodPost))
	out, err := fn(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"status": http.StatusNoContent}, out)
}

func TestActionNonJSONSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	fn := newTestClient(srv.URL).Action(testEndpoint(http.MethodGet))
	out, err := fn(context.Background(), nil, nil)
	require.NoError(t, err)

	result := out.(map[string]interface{})
	assert.Equal(t, "plain text", result["body"])
}

func TestCatalogSpecsCompileCleanly(t *testing.T) {
	seen := make(map[string]bool)
	for _, e := range Catalog() {
		assert.False(t, seen[e.Name], "duplicate catalog name %s", e.Name)
		seen[e.Name] = true
		assert.NotEmpty(t, e.Service)
		assert.NotEmpty(t, e.Method)
		assert.NotEmpty(t, e.Path)
	}
}
