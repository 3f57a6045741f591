// Package httpcall implements registry actions as plain REST calls against
// configured service endpoints. Each catalog entry declares one action: the
// service it belongs to, the HTTP method and path, and a JSON Schema for
// its parameters. The bearer token comes from the credential provider per
// invocation.
package httpcall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/domain"
)

// Endpoint describes one action backed by a REST call.
type Endpoint struct {
	Name        string
	Service     string
	Method      string
	Path        string
	Description string
	ParamSchema string
}

// Client executes catalog endpoints over HTTP.
type Client struct {
	http      *http.Client
	baseURLs  map[string]string
	logger    *zap.Logger
	userAgent string
}

// NewClient builds an HTTP action client. baseURLs maps a service name to
// its endpoint base URL; an action whose service has no base URL fails as
// upstream unavailable at invocation time.
func NewClient(baseURLs map[string]string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURLs:  baseURLs,
		logger:    logger,
		userAgent: "stepflow/1.0",
	}
}

// Spec returns the registry contract for one endpoint.
func (e Endpoint) Spec() domain.ActionSpec {
	var schema json.RawMessage
	if e.ParamSchema != "" {
		schema = json.RawMessage(e.ParamSchema)
	}
	return domain.ActionSpec{
		Name:        e.Name,
		Service:     e.Service,
		Description: e.Description,
		ParamSchema: schema,
	}
}

// Action returns the executable function for one endpoint. GET requests
// carry scalar parameters in the query string; every other method sends
// the parameter map as a JSON body.
func (c *Client) Action(e Endpoint) domain.ActionFunc {
	return func(ctx context.Context, creds domain.Credentials, params map[string]interface{}) (interface{}, error) {
		base, ok := c.baseURLs[e.Service]
		if !ok || base == "" {
			return nil, domain.NewActionError(domain.ErrKindUpstreamUnavailable,
				fmt.Sprintf("no endpoint configured for service %s", e.Service))
		}

		reqURL := strings.TrimRight(base, "/") + e.Path
		var body io.Reader
		if e.Method == http.MethodGet {
			if len(params) > 0 {
				q := url.Values{}
				for k, v := range params {
					q.Set(k, fmt.Sprintf("%v", v))
				}
				reqURL += "?" + q.Encode()
			}
		} else {
			encoded, err := json.Marshal(params)
			if err != nil {
				return nil, domain.NewActionError(domain.ErrKindInvalidInput,
					fmt.Sprintf("encoding parameters: %v", err))
			}
			body = bytes.NewReader(encoded)
		}

		req, err := http.NewRequestWithContext(ctx, e.Method, reqURL, body)
		if err != nil {
			return nil, domain.NewActionError(domain.ErrKindInvalidInput, err.Error())
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := creds["token"]; token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, domain.NewActionError(domain.ErrKindTimeout, err.Error())
			}
			return nil, domain.NewActionError(domain.ErrKindUpstreamUnavailable, err.Error())
		}
		defer resp.Body.Close()

		c.logger.Debug("action call finished",
			zap.String("action", e.Name),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)))

		payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return nil, domain.NewActionError(domain.ErrKindUpstreamUnavailable, err.Error())
		}
		if resp.StatusCode >= 400 {
			return nil, statusError(resp.StatusCode, payload)
		}

		if len(payload) == 0 {
			return map[string]interface{}{"status": resp.StatusCode}, nil
		}
		var decoded interface{}
		if err := json.Unmarshal(payload, &decoded); err != nil {
			// Non-JSON success bodies are passed through as text.
			return map[string]interface{}{"status": resp.StatusCode, "body": string(payload)}, nil
		}
		return decoded, nil
	}
}

// statusError maps an HTTP failure status onto the action error taxonomy.
func statusError(status int, body []byte) *domain.ActionError {
	msg := fmt.Sprintf("upstream returned %d", status)
	if len(body) > 0 {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		msg = fmt.Sprintf("%s: %s", msg, snippet)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewActionError(domain.ErrKindUnauthorized, msg)
	case status == http.StatusTooManyRequests:
		return domain.NewActionError(domain.ErrKindRateLimited, msg)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return domain.NewActionError(domain.ErrKindTimeout, msg)
	case status >= 500:
		return domain.NewActionError(domain.ErrKindUpstreamUnavailable, msg)
	default:
		return domain.NewActionError(domain.ErrKindInvalidInput, msg)
	}
}
