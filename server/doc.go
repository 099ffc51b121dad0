// Package server exposes the Immunet ledger over HTTP.
//
// Mutating requests arrive as Signed envelopes: the handler recovers the
// signer's public key and passes it to the ledger as the acting identity.
// The transport authenticates; the ledger authorizes. Read queries are
// plain GETs with no side effects.
//
// The oracle callback is the one inbound endpoint not wrapped in a Signed
// envelope: its payload carries the oracle's own authenticity proof, which
// the ledger verifies before accepting the result.
//
// Errors are returned as JSON payloads carrying the ledger's stable
// condition code, so callers can distinguish "already done" from
// "tampered" from "forged" without parsing messages.
package server
