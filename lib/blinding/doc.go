// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

// Package blinding implements the cryptographic primitives of the SOGS
// protocol: per-server key blinding, the blinded Schnorr signature used
// for request authentication, shared-key derivation for blinded direct
// messages, and the XChaCha20-Poly1305 AEAD that protects DM payloads.
//
// Blinding derives a per-server pseudonymous keypair from the user's
// stable Ed25519 identity and the server's public key, so the same user
// appears under a different public key on every server. The blinding
// factor is k = reduce(BLAKE2b-512(serverPublicKey)); the blinded
// secret scalar is ka = k*a and the blinded public key is kA = ka·B,
// where a is the Ed25519 private scalar and B the curve basepoint.
//
// Every function here is pure and deterministic (apart from nonce
// generation), performs no I/O, and operates on plain byte slices.
// Scalar and point arithmetic is delegated to filippo.io/edwards25519;
// failures are possible only on malformed input lengths or encodings,
// never on valid keys.
package blinding
