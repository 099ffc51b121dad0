// Package store persists the ledger's event stream as an append-only audit
// log. Sinks are invoked under the ledger's serialization point, so the
// Postgres store buffers events and writes them from a background worker;
// event order is preserved by the single writer.
package store
