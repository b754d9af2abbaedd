// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package community

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/opengroup-foundation/sogs/lib/clock"
	"github.com/opengroup-foundation/sogs/lib/ref"
)

const testServerKey = "a03c383cf63c3c4efe67acc52112a6dd734b3a946b9545f488aaa93da7991238"

// testIdentity is a deterministic in-memory Identity.
type testIdentity struct {
	ed     *KeyPair
	legacy *KeyPair
}

func newTestIdentity(t *testing.T) *testIdentity {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	secret := ed25519.NewKeyFromSeed(seed)
	public := secret.Public().(ed25519.PublicKey)

	legacyPublic := make([]byte, 32)
	for i := range legacyPublic {
		legacyPublic[i] = byte(0xa0 + i)
	}
	return &testIdentity{
		ed:     &KeyPair{PublicKey: public, SecretKey: secret},
		legacy: &KeyPair{PublicKey: legacyPublic},
	}
}

func (id *testIdentity) Ed25519KeyPair() (*KeyPair, error) { return id.ed, nil }

func (id *testIdentity) LegacyKeyPair() (*KeyPair, error) {
	if id.legacy == nil {
		return nil, errors.New("no legacy keypair")
	}
	return id.legacy, nil
}

// testDirectory is a fixed-answer ServerDirectory.
type testDirectory struct {
	publicKey    string
	capabilities []string
}

func (d *testDirectory) ServerPublicKey(ref.ServerURL) (string, error) {
	if d.publicKey == "" {
		return "", errors.New("unknown server")
	}
	return d.publicKey, nil
}

func (d *testDirectory) ServerCapabilities(ref.ServerURL) ([]string, error) {
	return d.capabilities, nil
}

func testServer(t *testing.T) ref.ServerURL {
	t.Helper()
	server, err := ref.ParseServerURL("https://open.example.org")
	if err != nil {
		t.Fatalf("ParseServerURL: %v", err)
	}
	return server
}

func newTestClient(t *testing.T, directory *testDirectory, fallback SigningStrategy) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		Identity:  newTestIdentity(t),
		Directory: directory,
		Fallback:  fallback,
		Clock:     clock.NewFake(time.Unix(1700000000, 0)),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestSelectSigningStrategy(t *testing.T) {
	tests := []struct {
		name         string
		capabilities []string
		fallback     SigningStrategy
		want         SigningStrategy
	}{
		{"unknown assumes blinded", nil, SignUnblinded, SignBlinded},
		{"empty assumes blinded", []string{}, SignLegacy, SignBlinded},
		{"blind capability wins", []string{"sogs", "blind"}, SignUnblinded, SignBlinded},
		{"known without blind falls back", []string{"sogs"}, SignUnblinded, SignUnblinded},
		{"known without blind legacy fallback", []string{"sogs", "reactions"}, SignLegacy, SignLegacy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectSigningStrategy(tt.capabilities, tt.fallback); got != tt.want {
				t.Errorf("SelectSigningStrategy(%v, %v) = %v, want %v", tt.capabilities, tt.fallback, got, tt.want)
			}
		})
	}
}

// reconstructSignedMessage rebuilds the byte string a server would
// verify from the request headers and routing fields.
func reconstructSignedMessage(t *testing.T, serverKey string, headers map[string]string, method, path string, body []byte) []byte {
	t.Helper()
	serverKeyBytes, err := hex.DecodeString(serverKey)
	if err != nil {
		t.Fatalf("decoding server key: %v", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(headers[HeaderNonce])
	if err != nil {
		t.Fatalf("decoding nonce header: %v", err)
	}
	message := append([]byte{}, serverKeyBytes...)
	message = append(message, nonce...)
	message = append(message, headers[HeaderTimestamp]...)
	message = append(message, method...)
	message = append(message, path...)
	if len(body) > 0 {
		bodyHash := blake2b.Sum512(body)
		message = append(message, bodyHash[:]...)
	}
	return message
}

// verifyRequestHeaders checks the signature header against the pubkey
// header the way a server would.
func verifyRequestHeaders(t *testing.T, serverKey string, p *PreparedRequest, signerKey []byte) {
	t.Helper()
	headers := p.Headers()
	for _, name := range authHeaderNames {
		if headers[name] == "" {
			t.Fatalf("missing auth header %s", name)
		}
	}
	var body []byte
	if p.Body() != nil {
		body = p.Body().Payload()
	}
	message := reconstructSignedMessage(t, serverKey, headers, p.Method(), p.Path(), body)
	signature, err := base64.StdEncoding.DecodeString(headers[HeaderSignature])
	if err != nil {
		t.Fatalf("decoding signature header: %v", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(signerKey), message, signature) {
		t.Error("signature does not verify against pubkey header")
	}
}

func TestPrepareBlindedSignatureVerifies(t *testing.T) {
	directory := &testDirectory{publicKey: testServerKey}
	client := newTestClient(t, directory, SignUnblinded)

	prepared, err := client.Capabilities(testServer(t))
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}

	headers := prepared.Headers()
	label := headers[HeaderPubkey]
	if len(label) != 66 || label[:2] != ref.PrefixBlinded15 {
		t.Fatalf("pubkey header = %q, want 15-prefixed 66 hex chars", label)
	}
	blindedKey, err := hex.DecodeString(label[2:])
	if err != nil {
		t.Fatalf("decoding pubkey header: %v", err)
	}
	verifyRequestHeaders(t, testServerKey, prepared, blindedKey)
}

func TestPrepareUnblindedSignatureVerifies(t *testing.T) {
	directory := &testDirectory{publicKey: testServerKey, capabilities: []string{"sogs"}}
	client := newTestClient(t, directory, SignUnblinded)
	identity := newTestIdentity(t)

	prepared, err := client.Rooms(testServer(t))
	if err != nil {
		t.Fatalf("Rooms: %v", err)
	}

	label := prepared.Headers()[HeaderPubkey]
	want := ref.PrefixUnblinded + hex.EncodeToString(identity.ed.PublicKey)
	if label != want {
		t.Fatalf("pubkey header = %q, want %q", label, want)
	}
	verifyRequestHeaders(t, testServerKey, prepared, identity.ed.PublicKey)
}

func TestPrepareLegacySignature(t *testing.T) {
	directory := &testDirectory{publicKey: testServerKey, capabilities: []string{"sogs"}}
	client := newTestClient(t, directory, SignLegacy)
	identity := newTestIdentity(t)

	prepared, err := client.Rooms(testServer(t))
	if err != nil {
		t.Fatalf("Rooms: %v", err)
	}

	label := prepared.Headers()[HeaderPubkey]
	want := ref.PrefixStandard + hex.EncodeToString(identity.legacy.PublicKey)
	if label != want {
		t.Fatalf("pubkey header = %q, want %q", label, want)
	}
	// Legacy requests are labelled with the standard key but signed by
	// the Ed25519 identity.
	verifyRequestHeaders(t, testServerKey, prepared, identity.ed.PublicKey)
}

func TestPrepareSignsBodyHash(t *testing.T) {
	directory := &testDirectory{publicKey: testServerKey, capabilities: []string{"sogs"}}
	client := newTestClient(t, directory, SignUnblinded)
	identity := newTestIdentity(t)

	message := SendMessageRequest{Data: "aGVsbG8=", Signature: "c2ln"}
	prepared, err := client.SendMessage(testServer(t), mustRoomToken(t, "lobby"), message)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	verifyRequestHeaders(t, testServerKey, prepared, identity.ed.PublicKey)

	// Tampering with the body must break verification.
	headers := prepared.Headers()
	tampered := reconstructSignedMessage(t, testServerKey, headers, prepared.Method(), prepared.Path(), []byte(`{"data":"x"}`))
	signature, _ := base64.StdEncoding.DecodeString(headers[HeaderSignature])
	if ed25519.Verify(ed25519.PublicKey(identity.ed.PublicKey), tampered, signature) {
		t.Error("signature verified over a different body")
	}
}

func TestPrepareTimestampFromClock(t *testing.T) {
	directory := &testDirectory{publicKey: testServerKey}
	client := newTestClient(t, directory, SignUnblinded)

	prepared, err := client.Capabilities(testServer(t))
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	if got := prepared.Headers()[HeaderTimestamp]; got != "1700000000" {
		t.Errorf("timestamp header = %q, want %q", got, "1700000000")
	}
}

func TestPrepareUnknownServerKey(t *testing.T) {
	client := newTestClient(t, &testDirectory{}, SignUnblinded)

	_, err := client.Capabilities(testServer(t))
	if !errors.Is(err, ErrNoPublicKey) {
		t.Errorf("Capabilities with unknown server key: err = %v, want ErrNoPublicKey", err)
	}
}

func TestPrepareFreshNoncePerRequest(t *testing.T) {
	directory := &testDirectory{publicKey: testServerKey}
	client := newTestClient(t, directory, SignUnblinded)
	server := testServer(t)

	first, err := client.Capabilities(server)
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	second, err := client.Capabilities(server)
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	if first.Headers()[HeaderNonce] == second.Headers()[HeaderNonce] {
		t.Error("two requests reused the same nonce")
	}
}

func mustRoomToken(t *testing.T, raw string) ref.RoomToken {
	t.Helper()
	token, err := ref.ParseRoomToken(raw)
	if err != nil {
		t.Fatalf("ParseRoomToken(%q): %v", raw, err)
	}
	return token
}
