// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package community

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/opengroup-foundation/sogs/lib/blinding"
	"github.com/opengroup-foundation/sogs/lib/ref"
)

// Request authentication headers. These apply to the outer HTTP call
// only — batch sub-requests never carry them.
const (
	HeaderPubkey    = "X-SOGS-Pubkey"
	HeaderTimestamp = "X-SOGS-Timestamp"
	HeaderNonce     = "X-SOGS-Nonce"
	HeaderSignature = "X-SOGS-Signature"
)

// authHeaderNames lists the headers stripped from batch sub-requests.
var authHeaderNames = []string{HeaderPubkey, HeaderTimestamp, HeaderNonce, HeaderSignature}

// SigningStrategy selects which identity signs a request.
type SigningStrategy int

const (
	// SignBlinded signs with the per-server blinded keypair derived
	// from the Ed25519 identity and the server's public key.
	SignBlinded SigningStrategy = iota
	// SignUnblinded signs with the raw Ed25519 identity key
	// ("00"-prefixed pubkey header).
	SignUnblinded
	// SignLegacy labels the request with the original "05" standard
	// identity for servers that predate the Ed25519 migration.
	SignLegacy
)

// String returns the strategy name for logging.
func (s SigningStrategy) String() string {
	switch s {
	case SignBlinded:
		return "blinded"
	case SignUnblinded:
		return "unblinded"
	case SignLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("SigningStrategy(%d)", int(s))
	}
}

// SelectSigningStrategy is the blinding selection policy: a server
// whose capabilities are UNKNOWN (empty set) is assumed to support
// blinding, and a server that advertises "blind" always gets blinded
// signing. Only a server positively known to lack the capability
// falls back.
//
// The unknown-means-blinded direction is deliberate and easy to
// invert by accident: capabilities are empty before the first
// successful /capabilities fetch, and modern servers reject
// unblinded requests outright.
func SelectSigningStrategy(capabilities []string, fallback SigningStrategy) SigningStrategy {
	if len(capabilities) == 0 {
		return SignBlinded
	}
	for _, capability := range capabilities {
		if capability == CapabilityBlind {
			return SignBlinded
		}
	}
	return fallback
}

// signRequest computes the four X-SOGS authentication headers for one
// request. The signed message is:
//
//	serverPubkey ‖ nonce ‖ timestamp ‖ method ‖ path ‖ BLAKE2b-512(body)?
//
// with the body hash omitted when there is no body. path includes the
// query string.
func signRequest(identity Identity, serverPublicKey string, strategy SigningStrategy, method, path string, body []byte, now time.Time) (map[string]string, error) {
	serverKeyBytes, err := hex.DecodeString(serverPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: bad server public key: %v", ErrSigningFailed, err)
	}

	edKeyPair, err := identity.Ed25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	if edKeyPair == nil || len(edKeyPair.SecretKey) != blinding.SecretKeySize {
		return nil, fmt.Errorf("%w: missing or malformed ed25519 keypair", ErrNoIdentity)
	}

	nonce, err := blinding.GenerateRequestNonce()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	timestamp := strconv.FormatInt(now.Unix(), 10)

	message := make([]byte, 0, len(serverKeyBytes)+len(nonce)+len(timestamp)+len(method)+len(path)+blake2b.Size)
	message = append(message, serverKeyBytes...)
	message = append(message, nonce...)
	message = append(message, timestamp...)
	message = append(message, method...)
	message = append(message, path...)
	if len(body) > 0 {
		bodyHash := blake2b.Sum512(body)
		message = append(message, bodyHash[:]...)
	}

	pubkeyLabel, signature, err := signMessage(identity, edKeyPair, serverPublicKey, strategy, message)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		HeaderPubkey:    pubkeyLabel,
		HeaderTimestamp: timestamp,
		HeaderNonce:     base64.StdEncoding.EncodeToString(nonce),
		HeaderSignature: base64.StdEncoding.EncodeToString(signature),
	}, nil
}

// signMessage produces the pubkey header label and the signature for
// the chosen strategy.
func signMessage(identity Identity, edKeyPair *KeyPair, serverPublicKey string, strategy SigningStrategy, message []byte) (string, []byte, error) {
	switch strategy {
	case SignBlinded:
		// The blinded keypair is derived fresh per signing operation;
		// it is cheap and caching it would couple request signing to
		// capability-change invalidation.
		blindedPair, err := blinding.BlindedKeyPair(serverPublicKey, edKeyPair.SecretKey)
		if err != nil {
			return "", nil, fmt.Errorf("%w: deriving blinded keypair: %v", ErrSigningFailed, err)
		}
		signature, err := blinding.Signature(message, edKeyPair.SecretKey, blindedPair.SecretKey, blindedPair.PublicKey)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
		}
		return ref.PrefixBlinded15 + hex.EncodeToString(blindedPair.PublicKey), signature, nil

	case SignUnblinded:
		signature := ed25519.Sign(ed25519.PrivateKey(edKeyPair.SecretKey), message)
		return ref.PrefixUnblinded + hex.EncodeToString(edKeyPair.PublicKey), signature, nil

	case SignLegacy:
		legacyPair, err := identity.LegacyKeyPair()
		if err != nil {
			return "", nil, fmt.Errorf("%w: no legacy keypair: %v", ErrNoIdentity, err)
		}
		// Legacy servers identify users by the standard "05" key but
		// accept Ed25519 signatures from the identity key.
		signature := ed25519.Sign(ed25519.PrivateKey(edKeyPair.SecretKey), message)
		return ref.PrefixStandard + hex.EncodeToString(legacyPair.PublicKey), signature, nil

	default:
		return "", nil, fmt.Errorf("%w: unknown signing strategy %d", ErrSigningFailed, int(strategy))
	}
}
