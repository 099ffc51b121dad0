package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/serolabs/immunet/ledger"
)

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// PostgresStore implements EventStore with PostgreSQL persistence.
// Publish enqueues; a single background writer inserts in order.
type PostgresStore struct {
	db  *sql.DB
	log *slog.Logger

	queue chan AuditEntry
	done  chan struct{}
}

// NewPostgresStore opens the database, runs migrations, and starts the
// background writer.
func NewPostgresStore(config *PostgresConfig, log *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}

	s := &PostgresStore{
		db:    db,
		log:   log,
		queue: make(chan AuditEntry, 1024),
		done:  make(chan struct{}),
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	go s.writeLoop()
	return s, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger_events (
		id BIGSERIAL PRIMARY KEY,
		kind VARCHAR(64) NOT NULL,
		payload JSONB NOT NULL,
		recorded_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_events_kind ON ledger_events(kind);
	CREATE INDEX IF NOT EXISTS idx_ledger_events_recorded ON ledger_events(recorded_at);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Publish implements ledger.Sink. It never blocks the ledger: if the
// buffer is full the event is dropped from the audit trail and logged.
func (s *PostgresStore) Publish(event ledger.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error("marshaling event for audit", "kind", event.Kind(), "err", err)
		return
	}
	entry := AuditEntry{Kind: event.Kind(), Payload: payload, RecordedAt: time.Now()}

	select {
	case s.queue <- entry:
	default:
		s.log.Error("audit queue full, dropping event", "kind", event.Kind())
	}
}

func (s *PostgresStore) writeLoop() {
	defer close(s.done)
	for entry := range s.queue {
		s.insert(entry)
	}
}

func (s *PostgresStore) insert(entry AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_events (kind, payload, recorded_at) VALUES ($1, $2, $3)`,
		string(entry.Kind), entry.Payload, entry.RecordedAt,
	)
	if err != nil {
		s.log.Error("inserting audit event", "kind", entry.Kind, "err", err)
	}
}

// Recent implements EventStore.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, payload, recorded_at
		FROM ledger_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			kind       string
			payload    []byte
			recordedAt time.Time
		)
		if err := rows.Scan(&kind, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, AuditEntry{
			Kind:       ledger.EventKind(kind),
			Payload:    payload,
			RecordedAt: recordedAt,
		})
	}
	return out, rows.Err()
}

// Close stops the writer after draining buffered events and closes the
// database connection.
func (s *PostgresStore) Close() error {
	close(s.queue)
	<-s.done
	return s.db.Close()
}
