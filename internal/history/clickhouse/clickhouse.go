package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/rdhost/internal/history"
)

// Sink sends audit events to ClickHouse using the official Go client.
type Sink struct {
	conn  driver.Conn
	table string
}

// New connects to ClickHouse at addr ("host:port") and targets the given
// table, which must exist with the session_history column layout.
func New(addr, database, username, password, table string) (*Sink, error) {
	if database == "" {
		database = "default"
	}
	if table == "" {
		table = "session_history"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return &Sink{conn: conn, table: table}, nil
}

// EnsureSchema creates the audit table; callers that manage schema
// externally can skip it.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		timestamp DateTime64(3) DEFAULT now64(3),
		event String,
		remote_addr String,
		username String,
		command String,
		exit_code Int32
	) ENGINE = MergeTree() ORDER BY timestamp`, s.table)
	return s.conn.Exec(ctx, stmt)
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (timestamp, event, remote_addr, username, command, exit_code) VALUES (?, ?, ?, ?, ?, ?)`, s.table)
	err := s.conn.Exec(ctx, query,
		e.OccurredAt.UTC(),
		string(e.Type),
		e.RemoteAddr,
		e.Username,
		e.Command,
		int32(e.ExitCode),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
