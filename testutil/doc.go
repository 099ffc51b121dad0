// Package testutil provides helpers for exercising the Immunet ledger in
// tests: key generation, encrypted record construction, and a fully wired
// service/oracle fixture with a controllable clock.
package testutil
