// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/opengroup-foundation/sogs/community"
	"github.com/opengroup-foundation/sogs/lib/netutil"
	"github.com/opengroup-foundation/sogs/lib/ref"
)

// errorBodyLimit bounds how much of a non-2xx body is kept in the
// ServerError. Error bodies are short JSON; anything longer is noise.
const errorBodyLimit = 2048

// HTTPConfig holds configuration for creating an HTTPTransport.
type HTTPConfig struct {
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// RequestsPerSecond is the per-server rate limit. Zero disables
	// limiting.
	RequestsPerSecond float64
	// Burst is the per-server limiter burst. Defaults to 4 when a rate
	// is set.
	Burst int
	// Logger is used for structured logging. If nil, slog.Default() is
	// used.
	Logger *slog.Logger
}

// HTTPTransport executes prepared requests over net/http with a
// per-server token-bucket rate limit. Safe for concurrent use.
type HTTPTransport struct {
	httpClient *http.Client
	rps        float64
	burst      int
	logger     *slog.Logger

	mu       sync.Mutex
	limiters map[ref.ServerURL]*rate.Limiter
}

// NewHTTPTransport creates an HTTPTransport.
func NewHTTPTransport(config HTTPConfig) *HTTPTransport {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	burst := config.Burst
	if burst == 0 {
		burst = 4
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPTransport{
		httpClient: httpClient,
		rps:        config.RequestsPerSecond,
		burst:      burst,
		logger:     logger,
		limiters:   make(map[ref.ServerURL]*rate.Limiter),
	}
}

// CloseIdleConnections closes idle pooled connections. Call after a
// network disruption so the next request does not reuse a poisoned
// connection.
func (t *HTTPTransport) CloseIdleConnections() {
	t.httpClient.CloseIdleConnections()
}

func (t *HTTPTransport) limiter(server ref.ServerURL) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	limiter, ok := t.limiters[server]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(t.rps), t.burst)
		t.limiters[server] = limiter
	}
	return limiter
}

// Send executes the request. On 2xx it returns the response info and
// body. 304 with no body is returned without error only for endpoints
// whose response type tolerates an absent body. Every other non-2xx
// status becomes a *ServerError.
func (t *HTTPTransport) Send(ctx context.Context, request *community.PreparedRequest) (*ResponseInfo, []byte, error) {
	if request == nil {
		return nil, nil, fmt.Errorf("transport: nil request")
	}

	if timeout := request.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if t.rps > 0 {
		if err := t.limiter(request.Server()).Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("transport: rate limit wait: %w", err)
		}
	}

	requestURL := request.Server().String() + request.Path()

	var bodyReader *bytes.Reader
	if body := request.Body(); body != nil {
		bodyReader = bytes.NewReader(body.Payload())
	}

	var httpRequest *http.Request
	var err error
	if bodyReader != nil {
		httpRequest, err = http.NewRequestWithContext(ctx, request.Method(), requestURL, bodyReader)
	} else {
		httpRequest, err = http.NewRequestWithContext(ctx, request.Method(), requestURL, nil)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("transport: building request: %w", err)
	}

	for name, value := range request.Headers() {
		httpRequest.Header.Set(name, value)
	}
	if body := request.Body(); body != nil {
		httpRequest.Header.Set("Content-Type", body.ContentType())
	}

	response, err := t.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("%w: %s %s", ErrTimedOut, request.Method(), request.Path())
		}
		return nil, nil, fmt.Errorf("transport: %s %s: %w", request.Method(), request.Path(), err)
	}
	defer response.Body.Close()

	info := &ResponseInfo{
		Code:    response.StatusCode,
		Headers: make(map[string]string, len(response.Header)),
	}
	for name := range response.Header {
		info.Headers[name] = response.Header.Get(name)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		body, err := netutil.ReadResponse(response.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("transport: reading response body: %w", err)
		}
		return info, body, nil
	}

	if response.StatusCode == http.StatusNotModified &&
		request.ResponseType() == community.ResponseOptionalData {
		return info, nil, nil
	}

	errorBody := netutil.ErrorBody(response.Body)
	if len(errorBody) > errorBodyLimit {
		errorBody = errorBody[:errorBodyLimit]
	}
	t.logger.Debug("server error",
		"method", request.Method(),
		"path", request.Path(),
		"status", response.StatusCode)
	return info, nil, &ServerError{
		Code:   response.StatusCode,
		Method: request.Method(),
		Path:   request.Path(),
		Body:   errorBody,
	}
}
