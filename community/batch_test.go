// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package community

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/opengroup-foundation/sogs/lib/ref"
)

func testBatchClient(t *testing.T) *Client {
	t.Helper()
	return newTestClient(t, &testDirectory{publicKey: testServerKey}, SignUnblinded)
}

func TestBatchPositionalDecoding(t *testing.T) {
	client := testBatchClient(t)
	server := testServer(t)
	room := mustRoomToken(t, "lobby")

	capabilities, err := client.Capabilities(server)
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	messages, err := client.MessagesSince(server, room, 41)
	if err != nil {
		t.Fatalf("MessagesSince: %v", err)
	}
	inbox, err := client.InboxSince(server, 7)
	if err != nil {
		t.Fatalf("InboxSince: %v", err)
	}

	batch, err := client.Batch(server, []*PreparedRequest{capabilities, messages, inbox})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if batch.Method() != "POST" || batch.Path() != "/batch" {
		t.Fatalf("batch routed to %s %s, want POST /batch", batch.Method(), batch.Path())
	}

	raw := []byte(`[
		{"code": 200, "body": {"capabilities": ["sogs", "blind"]}},
		{"code": 200, "body": [{"id": 10, "posted": 1.0, "seqno": 42, "data": "aGk=", "session_id": "15aa"}]},
		{"code": 304, "body": null}
	]`)
	responses, err := batch.DecodeBatch(raw)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if len(responses) != 3 {
		t.Fatalf("len(responses) = %d, want 3", len(responses))
	}

	if responses[0].Endpoint.Kind != EndpointCapabilities {
		t.Errorf("responses[0].Endpoint.Kind = %v, want EndpointCapabilities", responses[0].Endpoint.Kind)
	}
	var caps Capabilities
	if err := responses[0].Decode(&caps); err != nil {
		t.Fatalf("Decode capabilities: %v", err)
	}
	if !caps.Has(CapabilityBlind) {
		t.Error("decoded capabilities missing blind")
	}

	if responses[1].Endpoint.Kind != EndpointMessagesSince || responses[1].Endpoint.Room != room {
		t.Errorf("responses[1].Endpoint = %+v, want messages-since for %s", responses[1].Endpoint, room)
	}
	var msgs []Message
	if err := responses[1].Decode(&msgs); err != nil {
		t.Fatalf("Decode messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].SeqNo != 42 {
		t.Errorf("decoded messages = %+v, want one entry with seqno 42", msgs)
	}

	if responses[2].Endpoint.Kind != EndpointInboxSince {
		t.Errorf("responses[2].Endpoint.Kind = %v, want EndpointInboxSince", responses[2].Endpoint.Kind)
	}
	if !responses[2].NotModified() {
		t.Error("304 sub-response not reported as NotModified")
	}
	var dms []DirectMessage
	if err := responses[2].Decode(&dms); err != nil {
		t.Errorf("Decode empty optional body: %v, want nil", err)
	}
	if dms != nil {
		t.Errorf("decoded DMs from empty body = %+v, want nil", dms)
	}
}

func TestBatchRequiresPositionalCompleteness(t *testing.T) {
	client := testBatchClient(t)
	server := testServer(t)

	first, _ := client.Capabilities(server)
	second, _ := client.Rooms(server)
	batch, err := client.Batch(server, []*PreparedRequest{first, second})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}

	_, err = batch.DecodeBatch([]byte(`[{"code": 200, "body": {"capabilities": []}}]`))
	if !errors.Is(err, ErrParsingFailed) {
		t.Errorf("short batch response: err = %v, want ErrParsingFailed", err)
	}

	_, err = batch.DecodeBatch([]byte(`[{"code":200},{"code":200},{"code":200}]`))
	if !errors.Is(err, ErrParsingFailed) {
		t.Errorf("overlong batch response: err = %v, want ErrParsingFailed", err)
	}
}

func TestSequenceShortCircuit(t *testing.T) {
	client := testBatchClient(t)
	server := testServer(t)
	room := mustRoomToken(t, "lobby")

	capabilities, _ := client.Capabilities(server)
	send, err := client.SendMessage(server, room, SendMessageRequest{Data: "aGk=", Signature: "c2ln"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	messages, _ := client.RecentMessages(server, room)

	sequence, err := client.Sequence(server, []*PreparedRequest{capabilities, send, messages})
	if err != nil {
		t.Fatalf("Sequence: %v", err)
	}
	if sequence.Path() != "/sequence" {
		t.Fatalf("sequence routed to %s, want /sequence", sequence.Path())
	}
	if !sequence.IsSequence() {
		t.Fatal("IsSequence() = false for a sequence call")
	}

	// The second sub-request failed, so the server stopped before the
	// third. Two entries back is the contract, not an error.
	raw := []byte(`[
		{"code": 200, "body": {"capabilities": ["sogs", "blind"]}},
		{"code": 403, "body": {"error": "read-only room"}}
	]`)
	responses, err := sequence.DecodeBatch(raw)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("len(responses) = %d, want 2", len(responses))
	}
	if !responses[0].Successful() {
		t.Error("responses[0].Successful() = false, want true")
	}
	if responses[1].Successful() {
		t.Error("responses[1].Successful() = true for a 403")
	}
	if responses[1].Endpoint.Kind != EndpointSendMessage {
		t.Errorf("failing entry endpoint = %v, want EndpointSendMessage", responses[1].Endpoint.Kind)
	}
}

func TestBatchStripsAuthHeadersFromSubRequests(t *testing.T) {
	client := testBatchClient(t)
	server := testServer(t)

	capabilities, err := client.Capabilities(server)
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	batch, err := client.Batch(server, []*PreparedRequest{capabilities})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}

	body := batch.Body()
	if body == nil || len(body.JSON) == 0 {
		t.Fatal("batch request has no JSON body")
	}
	var envelopes []map[string]json.RawMessage
	if err := json.Unmarshal(body.JSON, &envelopes); err != nil {
		t.Fatalf("unmarshal batch body: %v", err)
	}
	if len(envelopes) != 1 {
		t.Fatalf("len(envelopes) = %d, want 1", len(envelopes))
	}
	if raw, ok := envelopes[0]["headers"]; ok {
		for _, name := range authHeaderNames {
			if bytes.Contains(raw, []byte(name)) {
				t.Errorf("sub-request carries auth header %s", name)
			}
		}
	}

	// The outer batch call itself must still be signed.
	for _, name := range authHeaderNames {
		if batch.Headers()[name] == "" {
			t.Errorf("outer batch call missing auth header %s", name)
		}
	}
}

func TestBatchEncodesBytesBodyAsIntegerArray(t *testing.T) {
	client := testBatchClient(t)
	server := testServer(t)
	room := mustRoomToken(t, "lobby")

	upload, err := client.UploadFile(server, room, []byte{0x00, 0x7f, 0xff})
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	batch, err := client.Batch(server, []*PreparedRequest{upload})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}

	if !strings.Contains(string(batch.Body().JSON), `"bytes":[0,127,255]`) {
		t.Errorf("batch body = %s, want bytes encoded as [0,127,255]", batch.Body().JSON)
	}
}

func TestBatchRejectsMixedServers(t *testing.T) {
	client := testBatchClient(t)
	server := testServer(t)
	other, err := ref.ParseServerURL("https://other.example.org")
	if err != nil {
		t.Fatalf("ParseServerURL: %v", err)
	}

	capabilities, err := client.Capabilities(server)
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	_, err = client.Batch(other, []*PreparedRequest{capabilities})
	if !errors.Is(err, ErrInvalidPrepared) {
		t.Errorf("cross-server batch: err = %v, want ErrInvalidPrepared", err)
	}
}

func TestBatchRejectsNesting(t *testing.T) {
	client := testBatchClient(t)
	server := testServer(t)

	capabilities, _ := client.Capabilities(server)
	inner, err := client.Batch(server, []*PreparedRequest{capabilities})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	_, err = client.Batch(server, []*PreparedRequest{inner})
	if !errors.Is(err, ErrInvalidPrepared) {
		t.Errorf("nested batch: err = %v, want ErrInvalidPrepared", err)
	}
}

func TestRequestBodyExactlyOne(t *testing.T) {
	tests := []struct {
		name string
		body RequestBody
		ok   bool
	}{
		{"json only", RequestBody{JSON: json.RawMessage(`{}`)}, true},
		{"b64 only", RequestBody{Base64: "aGk="}, true},
		{"bytes only", RequestBody{Bytes: []byte{1}}, true},
		{"none", RequestBody{}, false},
		{"json and bytes", RequestBody{JSON: json.RawMessage(`{}`), Bytes: []byte{1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.body.validate()
			if tt.ok && err != nil {
				t.Errorf("validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidPrepared) {
				t.Errorf("validate() = %v, want ErrInvalidPrepared", err)
			}
		})
	}
}

func TestMapResponseComposesTransforms(t *testing.T) {
	client := testBatchClient(t)
	server := testServer(t)

	capabilities, err := client.Capabilities(server)
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}

	mapped := capabilities.
		MapResponse(func(raw []byte) ([]byte, error) {
			return append(raw, 'b'), nil
		}).
		MapResponse(func(raw []byte) ([]byte, error) {
			return append(raw, 'c'), nil
		})

	got, err := mapped.ApplyTransform([]byte("a"))
	if err != nil {
		t.Fatalf("ApplyTransform: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("ApplyTransform = %q, want %q", got, "abc")
	}

	// The original request is untouched.
	original, err := capabilities.ApplyTransform([]byte("a"))
	if err != nil {
		t.Fatalf("ApplyTransform on original: %v", err)
	}
	if string(original) != "a" {
		t.Errorf("original transform = %q, want %q", original, "a")
	}

	// Routing and signing metadata survive the lift.
	if mapped.Path() != capabilities.Path() || mapped.Headers()[HeaderSignature] != capabilities.Headers()[HeaderSignature] {
		t.Error("MapResponse changed routing or signing metadata")
	}
}

func TestSubResponseDataDecoding(t *testing.T) {
	response := SubResponse{
		ResponseType: ResponseData,
		Code:         200,
		Body:         json.RawMessage(`"aGVsbG8="`),
	}
	data, err := response.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Data = %q, want %q", data, "hello")
	}

	empty := SubResponse{ResponseType: ResponseData, Code: 200}
	if _, err := empty.Data(); !errors.Is(err, ErrParsingFailed) {
		t.Errorf("empty required data body: err = %v, want ErrParsingFailed", err)
	}

	optional := SubResponse{ResponseType: ResponseOptionalData, Code: 304}
	data, err = optional.Data()
	if err != nil || data != nil {
		t.Errorf("optional empty data = (%v, %v), want (nil, nil)", data, err)
	}
}
