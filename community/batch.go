// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package community

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opengroup-foundation/sogs/lib/ref"
)

// Batch composes prepared requests into one signed /batch call. All
// sub-requests must target the same server. Sub-responses come back
// positionally complete: the server executes every sub-request
// regardless of individual failures.
func (c *Client) Batch(server ref.ServerURL, requests []*PreparedRequest) (*PreparedRequest, error) {
	return c.compose(server, requests, false)
}

// Sequence composes prepared requests into one signed /sequence call.
// The server stops at the first non-2xx sub-response, so the decoded
// response list may be SHORTER than the request list — callers must
// not assume positional completeness, only prefix order.
func (c *Client) Sequence(server ref.ServerURL, requests []*PreparedRequest) (*PreparedRequest, error) {
	return c.compose(server, requests, true)
}

func (c *Client) compose(server ref.ServerURL, requests []*PreparedRequest, sequence bool) (*PreparedRequest, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidPrepared)
	}

	envelopes := make([]*subRequestEnvelope, 0, len(requests))
	for i, request := range requests {
		if request == nil {
			return nil, fmt.Errorf("%w: nil sub-request at index %d", ErrInvalidPrepared, i)
		}
		if request.server != server {
			return nil, fmt.Errorf("%w: sub-request %d targets %s, batch targets %s",
				ErrInvalidPrepared, i, request.server, server)
		}
		envelope, err := request.encodeSubRequest()
		if err != nil {
			return nil, fmt.Errorf("encoding sub-request %d: %w", i, err)
		}
		envelopes = append(envelopes, envelope)
	}

	body, err := jsonBody(envelopes)
	if err != nil {
		return nil, err
	}

	path := "/batch"
	kind := EndpointBatch
	if sequence {
		path = "/sequence"
		kind = EndpointSequence
	}

	prepared, err := c.prepare(server, Endpoint{Kind: kind}, ResponseJSON, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	prepared.subRequests = requests
	prepared.sequence = sequence
	return prepared, nil
}

// SubResponse is one decoded entry of a batch or sequence response,
// re-associated with the endpoint that produced its sub-request.
type SubResponse struct {
	// Index is the position in the original request list.
	Index int
	// Endpoint identifies the originating endpoint constructor.
	Endpoint Endpoint
	// ResponseType is the expected body shape for this entry.
	ResponseType ResponseType
	// Code is the sub-response HTTP status.
	Code int
	// Headers carries any sub-response headers the server included.
	Headers map[string]string
	// Body is the raw sub-response body. For ResponseNone it is
	// ignored; for ResponseOptionalData it may be empty.
	Body json.RawMessage
}

// Successful reports whether the sub-response code is 2xx.
func (r *SubResponse) Successful() bool {
	return r.Code >= 200 && r.Code < 300
}

// NotModified reports whether the sub-response is an HTTP 304. For
// inbox/outbox polling this is a valid "no new items" outcome, not an
// error.
func (r *SubResponse) NotModified() bool {
	return r.Code == http.StatusNotModified
}

// Decode unmarshals the JSON body into v. A JSON null body leaves v
// untouched; an absent body is valid only for optional-data and
// no-body endpoints.
func (r *SubResponse) Decode(v any) error {
	if len(r.Body) == 0 {
		if r.ResponseType == ResponseOptionalData || r.ResponseType == ResponseNone {
			return nil
		}
		return fmt.Errorf("%w: empty body for endpoint %d", ErrParsingFailed, r.Endpoint.Kind)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return nil
}

// Data returns the binary body of a data-shaped sub-response. Inside
// a batch the server transports binary bodies as base64 strings.
func (r *SubResponse) Data() ([]byte, error) {
	if len(r.Body) == 0 || string(r.Body) == "null" {
		if r.ResponseType == ResponseOptionalData {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: empty data body", ErrParsingFailed)
	}
	var encoded string
	if err := json.Unmarshal(r.Body, &encoded); err != nil {
		return nil, fmt.Errorf("%w: data body is not a base64 string: %v", ErrParsingFailed, err)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return data, nil
}

// batchResponseEntry is the wire form of one sub-response.
type batchResponseEntry struct {
	Code    int               `json:"code"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// DecodeBatch splits the raw response of a batch or sequence call
// into typed sub-responses, positionally associated with the original
// sub-requests.
//
// For a batch call the response must be positionally complete. For a
// sequence call a short response is the short-circuit contract at
// work: the last decoded entry is the failure that stopped execution.
func (p *PreparedRequest) DecodeBatch(raw []byte) ([]SubResponse, error) {
	if !p.IsBatch() {
		return nil, fmt.Errorf("%w: not a batch request", ErrInvalidPrepared)
	}

	transformed, err := p.ApplyTransform(raw)
	if err != nil {
		return nil, err
	}

	var entries []batchResponseEntry
	if err := json.Unmarshal(transformed, &entries); err != nil {
		return nil, fmt.Errorf("%w: batch response is not an array: %v", ErrParsingFailed, err)
	}

	if len(entries) > len(p.subRequests) {
		return nil, fmt.Errorf("%w: %d sub-responses for %d sub-requests", ErrParsingFailed, len(entries), len(p.subRequests))
	}
	if !p.sequence && len(entries) != len(p.subRequests) {
		return nil, fmt.Errorf("%w: batch returned %d of %d sub-responses", ErrParsingFailed, len(entries), len(p.subRequests))
	}

	responses := make([]SubResponse, 0, len(entries))
	for i, entry := range entries {
		request := p.subRequests[i]
		responses = append(responses, SubResponse{
			Index:        i,
			Endpoint:     request.endpoint,
			ResponseType: request.responseType,
			Code:         entry.Code,
			Headers:      entry.Headers,
			Body:         entry.Body,
		})
	}
	return responses, nil
}
