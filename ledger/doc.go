// Package ledger implements the Immunet aggregation ledger.
//
// The ledger collects encrypted immune-telemetry records from authorized
// providers, groups them into numbered batches, and computes homomorphic
// sums over closed batches. Decrypted aggregates are released only after a
// verified asynchronous round-trip with an external decryption oracle.
//
// # Roles and gating
//
// A single transferable owner administers the service: provider membership,
// the pause gate, batch lifecycle, and analysis requests. Providers submit
// records into the current (highest-numbered, open) batch. Submissions and
// analysis requests are rate limited per actor by a shared cooldown window.
//
// # Analysis round-trip
//
// Requesting analysis of a closed, non-empty batch recomputes the batch
// aggregate, fingerprints it together with the service identity, and
// dispatches a decryption request to the oracle. The returned request id
// keys a pending context. When the oracle's callback arrives, the ledger
// re-derives the aggregate from current state and accepts the result only
// if the request has not already completed, the fingerprint is unchanged,
// and the oracle's proof verifies. A rejected callback leaves the context
// pending and re-attemptable; a stuck request simply never completes and
// may be superseded by a fresh request.
//
// # Concurrency
//
// Every state-changing operation executes atomically under a single
// serialization point owned by Service. Operations validate fully before
// mutating, so a failed call leaves no partial state. The oracle callback
// is the only asynchronous boundary; it enters through the same
// serialization point as everything else.
package ledger
