// Package oracle implements the decryption oracle the ledger dispatches to.
//
// The oracle holds the pad key for the ciphertexts in circulation and an
// Ed25519 signing key. A decryption request is a one-way send with a fresh
// correlation id; a worker decrypts the ciphertexts off the dispatch path
// and delivers the cleartexts back to the ledger as an independent inbound
// callback, accompanied by a signature over the request id and cleartexts.
// The ledger verifies that proof through the same oracle's VerifySignatures
// before accepting a result.
//
// Delivery is at-least-once from the oracle's point of view; the ledger's
// replay check makes completion at-most-once.
package oracle
