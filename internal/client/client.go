// Package client implements the consumed backend collaborators: the shipping
// fee pricing service and the two order-creation APIs.
//
// Requests are plain JSON; responses are decoded tolerantly with jx because
// the backends answer in loosely-shaped envelopes. Submission calls carry no
// client-side timeout: a hung call is surfaced only when the transport layer
// itself errors.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options configures a backend client.
type Options struct {
	// BaseURL is the backend root, e.g. https://api.machbazar.example.
	BaseURL string
	// AuthToken, when set, authenticates requests as a logged-in session.
	// When empty, payloads embed the guest identity instead.
	AuthToken string
	// HTTPClient overrides the default instrumented client. Used in tests.
	HTTPClient *http.Client
}

// core is the shared transport for all backend clients.
type core struct {
	baseURL string
	token   string
	http    *http.Client
}

func newCore(opts Options) *core {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &core{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.AuthToken,
		http:    hc,
	}
}

// APIError is a non-2xx backend response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Body)
}

// postJSON sends a JSON POST and returns the raw response body on 2xx.
func (c *core) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "POST %s", path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrapf(err, "read response of %s", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
