// Command immunet-cli provides operator tooling against a running immunetd.
//
// # Commands
//
// status: Display owner, pause state, cooldown, and pending analyses.
//
//	immunet-cli status --server=http://localhost:8080
//
// open-batch / close-batch: Batch lifecycle, signed by the owner key.
//
//	immunet-cli open-batch --server=... --key=<hex privkey>
//	immunet-cli close-batch --server=... --key=<hex privkey> --batch=1
//
// submit: Encrypt three measurements under the pad key and submit them,
// signed by a provider key.
//
//	immunet-cli submit --server=... --key=<hex privkey> --pad-key=<hex> \
//	    --affinity=42 --antibodies=17 --effectiveness=9
//
// request-analysis: Dispatch the decryption round-trip for a closed batch.
//
//	immunet-cli request-analysis --server=... --key=<hex privkey> --batch=1
//
// analysis: Inspect a pending or completed analysis context.
//
//	immunet-cli analysis --server=... --request=<request id>
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/serolabs/immunet/client"
	"github.com/serolabs/immunet/crypto"
	"github.com/serolabs/immunet/ledger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = runStatus(args)
	case "open-batch":
		err = runOpenBatch(args)
	case "close-batch":
		err = runCloseBatch(args)
	case "submit":
		err = runSubmit(args)
	case "request-analysis":
		err = runRequestAnalysis(args)
	case "analysis":
		err = runAnalysis(args)
	case "add-provider":
		err = runProvider(args, "add")
	case "remove-provider":
		err = runProvider(args, "remove")
	case "pause":
		err = runPause(args, true)
	case "unpause":
		err = runPause(args, false)
	case "set-cooldown":
		err = runSetCooldown(args)
	case "events":
		err = runEvents(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`immunet-cli - operator tooling for Immunet

Usage:
  immunet-cli <command> [options]

Commands:
  status            Display service state
  open-batch        Open the next batch (owner)
  close-batch       Freeze a batch (owner)
  submit            Submit an encrypted record (provider)
  request-analysis  Request batch decryption (owner)
  analysis          Inspect an analysis context
  add-provider      Grant provider membership (owner)
  remove-provider   Revoke provider membership (owner)
  pause / unpause   Toggle the write gate (owner)
  set-cooldown      Replace the rate-limit window (owner)
  events            Show recent audit events

Run 'immunet-cli <command> --help' for command-specific options.`)
}

func parsePrivateKey(hexKey string) (crypto.PrivateKey, error) {
	keyBytes, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	return crypto.NewPrivateKeyFromBytes(keyBytes), nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "immunetd base URL")
	fs.Parse(args)

	status, err := client.New(*serverURL).Status(context.Background())
	if err != nil {
		return err
	}
	return printJSON(status)
}

func runOpenBatch(args []string) error {
	fs := flag.NewFlagSet("open-batch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "immunetd base URL")
	key := fs.String("key", "", "Owner private key (hex)")
	fs.Parse(args)

	privkey, err := parsePrivateKey(*key)
	if err != nil {
		return err
	}
	id, err := client.New(*serverURL).OpenBatch(context.Background(), privkey)
	if err != nil {
		return err
	}
	fmt.Printf("opened batch %d\n", id)
	return nil
}

func runCloseBatch(args []string) error {
	fs := flag.NewFlagSet("close-batch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "immunetd base URL")
	key := fs.String("key", "", "Owner private key (hex)")
	batch := fs.Uint64("batch", 0, "Batch id to close")
	fs.Parse(args)

	privkey, err := parsePrivateKey(*key)
	if err != nil {
		return err
	}
	if err := client.New(*serverURL).CloseBatch(context.Background(), privkey, *batch); err != nil {
		return err
	}
	fmt.Printf("closed batch %d\n", *batch)
	return nil
}

func runSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "immunetd base URL")
	key := fs.String("key", "", "Provider private key (hex)")
	padKeyHex := fs.String("pad-key", "", "Pad key (hex, 32 bytes)")
	affinity := fs.Uint64("affinity", 0, "Antigen affinity")
	antibodies := fs.Uint64("antibodies", 0, "Antibody count")
	effectiveness := fs.Uint64("effectiveness", 0, "T-cell effectiveness")
	fs.Parse(args)

	privkey, err := parsePrivateKey(*key)
	if err != nil {
		return err
	}
	padKey, err := hex.DecodeString(*padKeyHex)
	if err != nil {
		return fmt.Errorf("invalid pad key hex: %w", err)
	}
	cipher, err := crypto.NewPadCipher(padKey)
	if err != nil {
		return err
	}

	a, err := cipher.Encrypt(*affinity)
	if err != nil {
		return err
	}
	b, err := cipher.Encrypt(*antibodies)
	if err != nil {
		return err
	}
	c, err := cipher.Encrypt(*effectiveness)
	if err != nil {
		return err
	}

	batchID, err := client.New(*serverURL).SubmitRecord(context.Background(), privkey, &ledger.Record{
		AntigenAffinity:    a,
		AntibodyCount:      b,
		TCellEffectiveness: c,
	})
	if err != nil {
		return err
	}
	fmt.Printf("record accepted into batch %d\n", batchID)
	return nil
}

func runRequestAnalysis(args []string) error {
	fs := flag.NewFlagSet("request-analysis", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "immunetd base URL")
	key := fs.String("key", "", "Owner private key (hex)")
	batch := fs.Uint64("batch", 0, "Batch id to analyze")
	fs.Parse(args)

	privkey, err := parsePrivateKey(*key)
	if err != nil {
		return err
	}
	requestID, err := client.New(*serverURL).RequestAnalysis(context.Background(), privkey, *batch)
	if err != nil {
		return err
	}
	fmt.Printf("analysis dispatched, request id %s\n", requestID)
	return nil
}

func runAnalysis(args []string) error {
	fs := flag.NewFlagSet("analysis", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "immunetd base URL")
	request := fs.String("request", "", "Request id")
	fs.Parse(args)

	status, err := client.New(*serverURL).AnalysisStatus(context.Background(), *request)
	if err != nil {
		return err
	}
	return printJSON(status)
}

func runProvider(args []string, action string) error {
	fs := flag.NewFlagSet(action+"-provider", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "immunetd base URL")
	key := fs.String("key", "", "Owner private key (hex)")
	provider := fs.String("provider", "", "Provider public key (hex)")
	fs.Parse(args)

	privkey, err := parsePrivateKey(*key)
	if err != nil {
		return err
	}
	providerKey, err := crypto.NewPublicKeyFromString(*provider)
	if err != nil {
		return fmt.Errorf("invalid provider key: %w", err)
	}

	c := client.New(*serverURL)
	if action == "add" {
		err = c.AddProvider(context.Background(), privkey, providerKey)
	} else {
		err = c.RemoveProvider(context.Background(), privkey, providerKey)
	}
	if err != nil {
		return err
	}
	fmt.Printf("provider %sed: %s\n", action, *provider)
	return nil
}

func runPause(args []string, paused bool) error {
	name := "pause"
	if !paused {
		name = "unpause"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "immunetd base URL")
	key := fs.String("key", "", "Owner private key (hex)")
	fs.Parse(args)

	privkey, err := parsePrivateKey(*key)
	if err != nil {
		return err
	}
	if err := client.New(*serverURL).SetPaused(context.Background(), privkey, paused); err != nil {
		return err
	}
	fmt.Printf("paused=%v\n", paused)
	return nil
}

func runSetCooldown(args []string) error {
	fs := flag.NewFlagSet("set-cooldown", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "immunetd base URL")
	key := fs.String("key", "", "Owner private key (hex)")
	seconds := fs.Uint64("seconds", 30, "Cooldown window in seconds")
	fs.Parse(args)

	privkey, err := parsePrivateKey(*key)
	if err != nil {
		return err
	}
	cooldown := time.Duration(*seconds) * time.Second
	if err := client.New(*serverURL).SetCooldown(context.Background(), privkey, cooldown); err != nil {
		return err
	}
	fmt.Printf("cooldown set to %s\n", cooldown)
	return nil
}

func runEvents(args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "immunetd base URL")
	limit := fs.Int("limit", 20, "Maximum entries to display")
	fs.Parse(args)

	entries, err := client.New(*serverURL).RecentEvents(context.Background(), *limit)
	if err != nil {
		return err
	}
	return printJSON(entries)
}
