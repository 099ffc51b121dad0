// Package cmd provides the Immunet CLI commands.
//
// # Commands
//
// immunetd: Runs the aggregation ledger with its HTTP API, the embedded
// decryption oracle, and optional Postgres audit persistence.
//
//	go run ./cmd/immunetd --config=immunetd.yaml
//	go run ./cmd/immunetd --addr=:8080 --owner=<hex pubkey>
//
// immunet-cli: Operator tooling against a running immunetd: open and close
// batches, submit encrypted records, request analysis, inspect state.
//
//	go run ./cmd/immunet-cli status --server=http://localhost:8080
//	go run ./cmd/immunet-cli open-batch --server=http://localhost:8080 --key=<hex privkey>
//
// # Configuration
//
// immunetd accepts YAML configuration via --config; command-line flags
// override config file values. immunet-cli is configured entirely through
// flags.
//
// Example immunetd config:
//
//	http_addr: ":8080"
//	metrics_addr: ":9090"
//	owner: ""                 # hex public key, generated if empty (dev mode)
//	identity: "immunet-prod"
//	cooldown_seconds: 30
//	providers: []             # hex public keys granted at startup
//	keys:
//	  oracle_signing_key: ""  # hex, generated if empty
//	  pad_key: ""             # hex 32 bytes, generated if empty
//	postgres:
//	  host: ""                # audit log disabled if empty
package cmd
