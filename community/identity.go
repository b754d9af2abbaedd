// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package community

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

// KeyPair is a public/secret key pair as raw bytes. For Ed25519 the
// secret key is the 64-byte seed-plus-public-key form.
type KeyPair struct {
	PublicKey []byte
	SecretKey []byte
}

// Identity supplies the local user's key material. Implementations
// live in the embedding application; the client never persists key
// bytes itself.
type Identity interface {
	// Ed25519KeyPair returns the user's stable Ed25519 identity
	// keypair. Returns an error when no identity exists yet — request
	// construction then fails with ErrNoIdentity.
	Ed25519KeyPair() (*KeyPair, error)

	// LegacyKeyPair returns the original X25519 "standard" keypair,
	// used only for the legacy signing fallback against servers that
	// predate blinded identities. Implementations without a legacy
	// key return an error.
	LegacyKeyPair() (*KeyPair, error)
}

// SeedIdentity is an Identity backed by a raw Ed25519 seed, for
// tooling and tests. It has no legacy keypair.
type SeedIdentity struct {
	keyPair KeyPair
}

// NewSeedIdentity derives an identity from a 32-byte Ed25519 seed.
func NewSeedIdentity(seed []byte) (*SeedIdentity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("community: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	secret := ed25519.NewKeyFromSeed(seed)
	return &SeedIdentity{keyPair: KeyPair{
		PublicKey: secret.Public().(ed25519.PublicKey),
		SecretKey: secret,
	}}, nil
}

// Ed25519KeyPair implements Identity.
func (s *SeedIdentity) Ed25519KeyPair() (*KeyPair, error) {
	return &KeyPair{PublicKey: s.keyPair.PublicKey, SecretKey: s.keyPair.SecretKey}, nil
}

// LegacyKeyPair implements Identity.
func (s *SeedIdentity) LegacyKeyPair() (*KeyPair, error) {
	return nil, errors.New("community: seed identity has no legacy keypair")
}
