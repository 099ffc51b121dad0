// Command immunetd runs the Immunet aggregation ledger.
//
// The daemon hosts the ledger HTTP API, the embedded decryption oracle,
// an optional Prometheus metrics listener, and an optional Postgres audit
// log of every emitted event.
//
// # Usage
//
//	go run ./cmd/immunetd --config=immunetd.yaml
//	go run ./cmd/immunetd --addr=:8080 --owner=<hex pubkey> --cooldown=30
//
// When --owner is empty a development key pair is generated and its
// private key printed, so a local operator can sign admin requests.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/serolabs/immunet/api/httpserver"
	"github.com/serolabs/immunet/cmd/common"
	"github.com/serolabs/immunet/crypto"
	"github.com/serolabs/immunet/ledger"
	"github.com/serolabs/immunet/metrics"
	"github.com/serolabs/immunet/oracle"
	"github.com/serolabs/immunet/server"
	"github.com/serolabs/immunet/store"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		addr        = flag.String("addr", "", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address (disabled if empty)")
		ownerHex    = flag.String("owner", "", "Owner public key (hex, generates a dev key pair if empty)")
		cooldown    = flag.Uint64("cooldown", 0, "Cooldown window in seconds")
		pprof       = flag.Bool("pprof", false, "Enable pprof debugging API")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg := common.DefaultConfig()
	if *configPath != "" {
		loaded, err := common.LoadConfig(*configPath)
		if err != nil {
			log.Error("loading config", "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Command-line flags override config file
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *ownerHex != "" {
		cfg.Owner = *ownerHex
	}
	if *cooldown != 0 {
		cfg.CooldownSeconds = *cooldown
	}
	if *pprof {
		cfg.EnablePprof = true
	}

	if err := run(cfg, log); err != nil {
		log.Error("immunetd failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *common.Config, log *slog.Logger) error {
	owner, err := resolveOwner(cfg.Owner, log)
	if err != nil {
		return err
	}
	providers, err := common.ParsePublicKeys(cfg.Providers)
	if err != nil {
		return err
	}

	oracleKey, err := common.LoadOrGenerateSigningKey(cfg.Keys.OracleSigningKey)
	if err != nil {
		return fmt.Errorf("oracle signing key: %w", err)
	}
	padKey, err := common.LoadOrGeneratePadKey(cfg.Keys.PadKey)
	if err != nil {
		return fmt.Errorf("pad key: %w", err)
	}
	cipher, err := crypto.NewPadCipher(padKey)
	if err != nil {
		return fmt.Errorf("pad cipher: %w", err)
	}
	if cfg.Keys.PadKey == "" {
		log.Info("generated pad key", "pad_key", hex.EncodeToString(padKey))
	}

	orc, err := oracle.NewLocalOracle(cipher, oracleKey, log.With("component", "oracle"))
	if err != nil {
		return fmt.Errorf("oracle: %w", err)
	}

	m := metrics.New("immunet")
	sinks := []ledger.Sink{m.Sink()}

	var events store.EventStore
	if cfg.Postgres != nil && cfg.Postgres.Host != "" {
		pg, err := store.NewPostgresStore(cfg.Postgres, log.With("component", "store"))
		if err != nil {
			return fmt.Errorf("postgres store: %w", err)
		}
		events = pg
	} else {
		events = store.NewMemoryStore()
	}
	defer events.Close()
	sinks = append(sinks, events)

	svc, err := ledger.NewService(ledger.Config{
		Owner:      owner,
		Arithmetic: crypto.PadArithmetic{},
		Oracle:     orc,
		Identity:   []byte(cfg.Identity),
		Providers:  providers,
		Cooldown:   time.Duration(cfg.CooldownSeconds) * time.Second,
		Sinks:      sinks,
		Log:        log.With("component", "ledger"),
	})
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}

	orc.Attach(oracle.TargetFunc(func(requestID string, cleartexts, proof []byte) error {
		_, err := svc.OnDecrypted(requestID, cleartexts, proof)
		if err != nil {
			m.ObserveCallbackFailure(err)
		}
		return err
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go orc.Run(ctx)

	handler := server.NewHandler(svc, events, m, log.With("component", "http"))
	baseServer, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.HTTPAddr,
		MetricsAddr:              cfg.MetricsAddr,
		Metrics:                  m,
		EnablePprof:              cfg.EnablePprof,
		Log:                      log.With("component", "http"),
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              10 * time.Second,
		WriteTimeout:             10 * time.Second,
	}, handler)
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	baseServer.RunInBackground()
	log.Info("immunetd started",
		"addr", cfg.HTTPAddr,
		"owner", owner.String(),
		"oracle", orc.PublicKey().String())

	<-ctx.Done()
	log.Info("shutting down")
	baseServer.Shutdown()
	return nil
}

// resolveOwner parses the configured owner key, or generates a development
// key pair when none is configured.
func resolveOwner(ownerHex string, log *slog.Logger) (crypto.PublicKey, error) {
	if ownerHex != "" {
		return crypto.NewPublicKeyFromString(ownerHex)
	}
	pub, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	log.Warn("no owner configured, generated development key pair",
		"owner", pub.String(),
		"owner_private_key", hex.EncodeToString(priv.Bytes()))
	return pub, nil
}
