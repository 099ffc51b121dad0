// Package crypto provides the cryptographic primitives Immunet builds on.
//
// It covers three concerns:
//
//   - Actor identity: Ed25519 keys and signatures. Public keys double as
//     actor addresses throughout the ledger; the hex encoding is used as a
//     map key and wire representation.
//
//   - Additively homomorphic ciphertexts: an opaque Ciphertext type
//     supporting Add with an encrypted-zero identity, plus the keyed
//     PadCipher that the decryption oracle (and tests) use to produce and
//     open them. The construction is pad-based: each encryption draws a
//     fresh nonce and masks the value with a PRF pad, and addition combines
//     payloads and concatenates nonces. The ledger itself never needs the
//     key; it only performs keyless Add / IsInitialized / EncryptedZero.
//
//   - Digests: SHA3-256 fingerprints over canonical ciphertext bytes, used
//     to detect state drift between a decryption request and its callback.
//
// Note: pad math is not constant-time; the payloads it protects are
// telemetry aggregates, not key material.
package crypto
