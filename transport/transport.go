// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/opengroup-foundation/sogs/community"
)

// ErrTimedOut is returned when a request's deadline expires before a
// response arrives.
var ErrTimedOut = errors.New("transport: request timed out")

// ResponseInfo carries response metadata alongside the body bytes.
type ResponseInfo struct {
	// Code is the HTTP status code.
	Code int
	// Headers holds the response headers, first value per name.
	Headers map[string]string
}

// NotModified reports whether the response is an HTTP 304. Valid for
// endpoints with optional bodies; the body is empty in that case.
func (r *ResponseInfo) NotModified() bool {
	return r.Code == http.StatusNotModified
}

// Transport executes a prepared request and returns the raw response
// body. Implementations must return a *ServerError for non-2xx
// responses, except 304 on endpoints that tolerate an absent body.
type Transport interface {
	Send(ctx context.Context, request *community.PreparedRequest) (*ResponseInfo, []byte, error)
}

// ServerError represents a non-2xx response from a community server.
// Callers use errors.As to extract the status:
//
//	var serverErr *transport.ServerError
//	if errors.As(err, &serverErr) && serverErr.Code == 404 { ... }
type ServerError struct {
	// Code is the HTTP status code.
	Code int
	// Method and Path identify the failed request.
	Method string
	Path   string
	// Body is the (possibly truncated) error body the server sent.
	Body string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("transport: %s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Permanent reports whether retrying the identical request is
// pointless: a 4xx other than 425 ("too early", clock skew) and 429
// (rate limited) reflects a request the server will always reject.
func (e *ServerError) Permanent() bool {
	if e.Code == http.StatusTooManyRequests || e.Code == http.StatusTooEarly {
		return false
	}
	return e.Code >= 400 && e.Code < 500
}

// IsStatus checks whether err is a *ServerError with the given status.
func IsStatus(err error, code int) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Code == code
	}
	return false
}
