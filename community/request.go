// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package community

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/opengroup-foundation/sogs/lib/ref"
)

// EndpointKind identifies which API constructor built a request. The
// batch decoder uses it to re-associate positional sub-responses with
// their originating endpoints.
type EndpointKind int

const (
	EndpointCapabilities EndpointKind = iota
	EndpointRooms
	EndpointRoom
	EndpointRoomPollInfo
	EndpointMessagesRecent
	EndpointMessagesSince
	EndpointSendMessage
	EndpointMessage
	EndpointEditMessage
	EndpointDeleteMessage
	EndpointAddReaction
	EndpointRemoveReaction
	EndpointDeleteAllReactions
	EndpointPinMessage
	EndpointUnpinMessage
	EndpointUnpinAll
	EndpointUploadFile
	EndpointDownloadFile
	EndpointInbox
	EndpointInboxSince
	EndpointOutbox
	EndpointOutboxSince
	EndpointSendDirectMessage
	EndpointBanUser
	EndpointUnbanUser
	EndpointUserModerator
	EndpointDeleteAllUserMessages
	EndpointBatch
	EndpointSequence
)

// Endpoint is the originating endpoint of a prepared request: the
// kind plus the room it targets, when room-scoped.
type Endpoint struct {
	Kind EndpointKind
	Room ref.RoomToken
}

// ResponseType describes the expected shape of a response body, used
// by the batch decoder to validate sub-responses positionally.
type ResponseType int

const (
	// ResponseJSON requires a JSON body.
	ResponseJSON ResponseType = iota
	// ResponseData requires a binary body (base64 inside batches).
	ResponseData
	// ResponseOptionalData tolerates an absent body: HTTP 304 "not
	// modified" semantics, meaning "no new items" rather than an
	// error.
	ResponseOptionalData
	// ResponseNone expects no body and decodes from anything.
	ResponseNone
)

// RequestBody is a request payload. Exactly one field must be set —
// the server's batch format serializes a sub-request body as exactly
// one of a JSON value, a base64 string, or a raw byte array.
type RequestBody struct {
	JSON   json.RawMessage
	Base64 string
	Bytes  []byte
}

// validate enforces the exactly-one constraint.
func (b *RequestBody) validate() error {
	set := 0
	if len(b.JSON) > 0 {
		set++
	}
	if b.Base64 != "" {
		set++
	}
	if len(b.Bytes) > 0 {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: request body must set exactly one of json, b64, bytes (got %d)", ErrInvalidPrepared, set)
	}
	return nil
}

// jsonBody wraps a value as a JSON request body.
func jsonBody(v any) (*RequestBody, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding body: %v", ErrInvalidPrepared, err)
	}
	return &RequestBody{JSON: encoded}, nil
}

// Payload returns the bytes that are signed and sent for the outer
// HTTP call.
func (b *RequestBody) Payload() []byte {
	switch {
	case len(b.JSON) > 0:
		return b.JSON
	case b.Base64 != "":
		return []byte(b.Base64)
	default:
		return b.Bytes
	}
}

// ContentType returns the HTTP content type for the outer call.
func (b *RequestBody) ContentType() string {
	if len(b.JSON) > 0 {
		return "application/json"
	}
	return "application/octet-stream"
}

// PreparedRequest is an immutable, signed, not-yet-sent request.
// Construct via the Client endpoint methods; execute via a transport.
// A PreparedRequest is executed at most logically once and never
// mutated after construction — MapResponse returns a new instance.
type PreparedRequest struct {
	server          ref.ServerURL
	serverPublicKey string
	method          string
	path            string // includes query string
	headers         map[string]string
	body            *RequestBody
	timeout         time.Duration
	endpoint        Endpoint
	responseType    ResponseType

	// Batch composition state: set only when this request IS a batch
	// or sequence call.
	subRequests []*PreparedRequest
	sequence    bool

	// transform post-processes the raw response bytes. Composed by
	// MapResponse; nil means identity.
	transform func([]byte) ([]byte, error)
}

// Server returns the target server.
func (p *PreparedRequest) Server() ref.ServerURL { return p.server }

// ServerPublicKey returns the hex-encoded server key the request was
// signed against.
func (p *PreparedRequest) ServerPublicKey() string { return p.serverPublicKey }

// Method returns the HTTP method.
func (p *PreparedRequest) Method() string { return p.method }

// Path returns the request path including any query string.
func (p *PreparedRequest) Path() string { return p.path }

// Timeout returns the per-request timeout.
func (p *PreparedRequest) Timeout() time.Duration { return p.timeout }

// Endpoint returns the originating endpoint.
func (p *PreparedRequest) Endpoint() Endpoint { return p.endpoint }

// ResponseType returns the expected response shape.
func (p *PreparedRequest) ResponseType() ResponseType { return p.responseType }

// IsBatch reports whether this request is a batch or sequence call.
func (p *PreparedRequest) IsBatch() bool { return len(p.subRequests) > 0 }

// IsSequence reports whether this request is a sequence call.
func (p *PreparedRequest) IsSequence() bool { return p.sequence }

// SubRequests returns the composed sub-requests of a batch call, in
// order. Nil for plain requests.
func (p *PreparedRequest) SubRequests() []*PreparedRequest { return p.subRequests }

// Body returns the request body, or nil.
func (p *PreparedRequest) Body() *RequestBody { return p.body }

// Headers returns a copy of the signed request headers.
func (p *PreparedRequest) Headers() map[string]string {
	headers := make(map[string]string, len(p.headers))
	for name, value := range p.headers {
		headers[name] = value
	}
	return headers
}

// MapResponse returns a new PreparedRequest whose decoded response is
// post-processed by fn. All routing, signing, and batch metadata is
// preserved — this is a pure lift over the eventual response and
// never re-signs or re-fetches.
func (p *PreparedRequest) MapResponse(fn func([]byte) ([]byte, error)) *PreparedRequest {
	mapped := *p
	previous := p.transform
	mapped.transform = func(raw []byte) ([]byte, error) {
		if previous != nil {
			intermediate, err := previous(raw)
			if err != nil {
				return nil, err
			}
			raw = intermediate
		}
		return fn(raw)
	}
	return &mapped
}

// ApplyTransform runs the response transform chain, if any.
func (p *PreparedRequest) ApplyTransform(raw []byte) ([]byte, error) {
	if p.transform == nil {
		return raw, nil
	}
	return p.transform(raw)
}

// DecodeResponse runs the transform chain and unmarshals the JSON
// response body into v. An empty body is valid only for endpoints
// whose response type tolerates one; v is then left untouched.
func (p *PreparedRequest) DecodeResponse(raw []byte, v any) error {
	transformed, err := p.ApplyTransform(raw)
	if err != nil {
		return err
	}
	if len(transformed) == 0 {
		if p.responseType == ResponseOptionalData || p.responseType == ResponseNone {
			return nil
		}
		return fmt.Errorf("%w: empty response body for %s %s", ErrParsingFailed, p.method, p.path)
	}
	if err := json.Unmarshal(transformed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return nil
}

// subRequestEnvelope is the wire form of one sub-request inside a
// batch or sequence body.
type subRequestEnvelope struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
	JSON    json.RawMessage   `json:"json,omitempty"`
	B64     string            `json:"b64,omitempty"`
	Bytes   []int             `json:"bytes,omitempty"`
}

// encodeSubRequest serializes a prepared request for inclusion in a
// batch body. The X-SOGS authentication headers are stripped: they
// authenticate the outer batch call only, and the server rejects
// sub-requests that carry them.
func (p *PreparedRequest) encodeSubRequest() (*subRequestEnvelope, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil sub-request", ErrInvalidPrepared)
	}
	if p.IsBatch() {
		return nil, fmt.Errorf("%w: batch requests cannot nest", ErrInvalidPrepared)
	}

	envelope := &subRequestEnvelope{
		Method: p.method,
		Path:   p.path,
	}

	for name, value := range p.headers {
		if isAuthHeader(name) {
			continue
		}
		if envelope.Headers == nil {
			envelope.Headers = make(map[string]string)
		}
		envelope.Headers[name] = value
	}

	if p.body != nil {
		if err := p.body.validate(); err != nil {
			return nil, err
		}
		switch {
		case len(p.body.JSON) > 0:
			envelope.JSON = p.body.JSON
		case p.body.Base64 != "":
			envelope.B64 = p.body.Base64
		default:
			// The wire format for raw bytes is a JSON integer array,
			// not Go's default base64 encoding of []byte.
			raw := make([]int, len(p.body.Bytes))
			for i, value := range p.body.Bytes {
				raw[i] = int(value)
			}
			envelope.Bytes = raw
		}
	}

	return envelope, nil
}

func isAuthHeader(name string) bool {
	for _, authName := range authHeaderNames {
		if name == authName {
			return true
		}
	}
	return false
}
