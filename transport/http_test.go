// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/ed25519"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opengroup-foundation/sogs/community"
	"github.com/opengroup-foundation/sogs/lib/ref"
)

const testServerKey = "a03c383cf63c3c4efe67acc52112a6dd734b3a946b9545f488aaa93da7991238"

type testIdentity struct{ keyPair *community.KeyPair }

func newTestIdentity(t *testing.T) *testIdentity {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	secret := ed25519.NewKeyFromSeed(seed)
	return &testIdentity{keyPair: &community.KeyPair{
		PublicKey: secret.Public().(ed25519.PublicKey),
		SecretKey: secret,
	}}
}

func (id *testIdentity) Ed25519KeyPair() (*community.KeyPair, error) { return id.keyPair, nil }
func (id *testIdentity) LegacyKeyPair() (*community.KeyPair, error) {
	return nil, errors.New("no legacy keypair")
}

type testDirectory struct{}

func (testDirectory) ServerPublicKey(ref.ServerURL) (string, error)      { return testServerKey, nil }
func (testDirectory) ServerCapabilities(ref.ServerURL) ([]string, error) { return nil, nil }

// newTestRequest builds a signed request pointed at the test server.
func newTestRequest(t *testing.T, serverURL string) *community.PreparedRequest {
	t.Helper()
	client, err := community.NewClient(community.ClientConfig{
		Identity:  newTestIdentity(t),
		Directory: testDirectory{},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	server, err := ref.ParseServerURL(serverURL)
	if err != nil {
		t.Fatalf("ParseServerURL: %v", err)
	}
	request, err := client.Capabilities(server)
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	return request
}

func newOptionalDataRequest(t *testing.T, serverURL string) *community.PreparedRequest {
	t.Helper()
	client, err := community.NewClient(community.ClientConfig{
		Identity:  newTestIdentity(t),
		Directory: testDirectory{},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	server, err := ref.ParseServerURL(serverURL)
	if err != nil {
		t.Fatalf("ParseServerURL: %v", err)
	}
	request, err := client.InboxSince(server, 12)
	if err != nil {
		t.Fatalf("InboxSince: %v", err)
	}
	return request
}

func TestSendSuccess(t *testing.T) {
	var gotPath, gotPubkey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPubkey = r.Header.Get("X-SOGS-Pubkey")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"capabilities":["sogs","blind"]}`))
	}))
	defer server.Close()

	httpTransport := NewHTTPTransport(HTTPConfig{})
	request := newTestRequest(t, server.URL)

	info, body, err := httpTransport.Send(context.Background(), request)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if info.Code != http.StatusOK {
		t.Errorf("info.Code = %d, want 200", info.Code)
	}
	if gotPath != "/capabilities" {
		t.Errorf("request path = %q, want /capabilities", gotPath)
	}
	if gotPubkey == "" {
		t.Error("request missing X-SOGS-Pubkey header")
	}

	var caps community.Capabilities
	if err := request.DecodeResponse(body, &caps); err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if !caps.Has(community.CapabilityBlind) {
		t.Error("decoded capabilities missing blind")
	}
}

func TestSendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"nope"}`, http.StatusForbidden)
	}))
	defer server.Close()

	httpTransport := NewHTTPTransport(HTTPConfig{})
	info, _, err := httpTransport.Send(context.Background(), newTestRequest(t, server.URL))

	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Send: err = %v, want *ServerError", err)
	}
	if serverErr.Code != http.StatusForbidden {
		t.Errorf("serverErr.Code = %d, want 403", serverErr.Code)
	}
	if !serverErr.Permanent() {
		t.Error("403 not reported as permanent")
	}
	if info == nil || info.Code != http.StatusForbidden {
		t.Errorf("info = %+v, want code 403", info)
	}
	if !IsStatus(err, http.StatusForbidden) {
		t.Error("IsStatus(err, 403) = false")
	}
}

func TestSendNotModifiedOptionalData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	httpTransport := NewHTTPTransport(HTTPConfig{})
	info, body, err := httpTransport.Send(context.Background(), newOptionalDataRequest(t, server.URL))
	if err != nil {
		t.Fatalf("Send on 304 optional-data endpoint: %v", err)
	}
	if !info.NotModified() {
		t.Errorf("info.Code = %d, want 304", info.Code)
	}
	if body != nil {
		t.Errorf("body = %q, want nil", body)
	}
}

func TestSendNotModifiedRequiredBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	httpTransport := NewHTTPTransport(HTTPConfig{})
	_, _, err := httpTransport.Send(context.Background(), newTestRequest(t, server.URL))
	if !IsStatus(err, http.StatusNotModified) {
		t.Errorf("304 on required-body endpoint: err = %v, want ServerError 304", err)
	}
}

func TestSendRetryableStatuses(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusTooEarly, http.StatusBadGateway} {
		serverErr := &ServerError{Code: code}
		if serverErr.Permanent() {
			t.Errorf("ServerError{Code: %d}.Permanent() = true, want false", code)
		}
	}
}

func TestSendContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	httpTransport := NewHTTPTransport(HTTPConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := httpTransport.Send(ctx, newTestRequest(t, server.URL))
	if err == nil {
		t.Fatal("Send with cancelled context: err = nil")
	}
}
