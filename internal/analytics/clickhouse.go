package analytics

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog"
)

// ClickHouseConfig configures the optional durable sink, grounded on the
// teacher's internal/agentd ClickHouse wiring: parse a standard DSN, default
// the database, validate any table override before interpolating it into
// DDL/DML.
type ClickHouseConfig struct {
	DSN      string
	Database string
	Table    string // default "vicw_events"
	Timeout  time.Duration
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func sanitizeIdentifier(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", errors.New("identifier is empty")
	}
	if !identPattern.MatchString(s) {
		return "", fmt.Errorf("identifier contains invalid characters: %s", s)
	}
	return s, nil
}

// ClickHouseSink buffers events and flushes them to ClickHouse in batches on
// a timer, so Record never blocks the orchestrator's hot path on a network
// round trip.
type ClickHouseSink struct {
	conn    clickhouse.Conn
	table   string
	timeout time.Duration
	log     zerolog.Logger

	events  chan Event
	done    chan struct{}
	stopped chan struct{}
}

// NewClickHouseSink opens the connection, ensures the events table exists,
// and starts the background flush loop. Returns (nil, nil) when cfg.DSN is
// empty, so callers can unconditionally wire the result as an optional Sink.
func NewClickHouseSink(ctx context.Context, cfg ClickHouseConfig, log zerolog.Logger) (*ClickHouseSink, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, nil
	}
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	if cfg.Database != "" {
		opts.Auth.Database = cfg.Database
	}
	if opts.Auth.Database == "" {
		opts.Auth.Database = "vicw"
	}

	table := cfg.Table
	if table == "" {
		table = "vicw_events"
	}
	table, err = sanitizeIdentifier(table)
	if err != nil {
		return nil, fmt.Errorf("invalid events table: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.Ping(ctxPing); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	dbName := opts.Auth.Database
	ctxDDL, cancelDDL := context.WithTimeout(ctx, timeout)
	defer cancelDDL()
	if err := conn.Exec(ctxDDL, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := createEventsTableIfNotExists(ctxDDL, conn, dbName, table); err != nil {
		return nil, err
	}

	s := &ClickHouseSink{
		conn:    conn,
		table:   fmt.Sprintf("%s.%s", dbName, table),
		timeout: timeout,
		log:     log,
		events:  make(chan Event, 1024),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.flushLoop()
	return s, nil
}

func createEventsTableIfNotExists(ctx context.Context, conn clickhouse.Conn, db, table string) error {
	sql := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.%s (
	Timestamp DateTime64(3),
	SessionID LowCardinality(String),
	PressureRatio Float64,
	TokensInContext UInt32,
	QueueDepth UInt32,
	QueueDropped UInt64,
	EchoRegenerated Bool,
	EchoExhausted Bool,
	RAGItemsInjected UInt16
) ENGINE = MergeTree()
ORDER BY (SessionID, Timestamp)
TTL toDate(Timestamp) + INTERVAL 30 DAY
SETTINGS index_granularity = 8192
`, db, table)
	if err := conn.Exec(ctx, sql); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("create events table: %w", err)
		}
	}
	return nil
}

// Record enqueues e for the next flush. Never blocks the caller past a full
// channel send; a saturated buffer drops the event and logs a warning,
// mirroring the offload queue's drop-rather-than-stall discipline.
func (s *ClickHouseSink) Record(e Event) {
	select {
	case s.events <- e:
	default:
		s.log.Warn().Msg("analytics clickhouse sink buffer full, dropping event")
	}
}

func (s *ClickHouseSink) flushLoop() {
	defer close(s.stopped)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	batch := make([]Event, 0, 256)
	for {
		select {
		case e := <-s.events:
			batch = append(batch, e)
			if len(batch) >= 256 {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-s.done:
			if len(batch) > 0 {
				s.flush(batch)
			}
			return
		}
	}
}

func (s *ClickHouseSink) flush(events []Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", s.table))
	if err != nil {
		s.log.Warn().Err(err).Msg("analytics clickhouse prepare batch failed")
		return
	}
	for _, e := range events {
		if err := batch.Append(
			e.Timestamp, e.SessionID, e.PressureRatio, uint32(e.TokensInContext),
			uint32(e.QueueDepth), e.QueueDropped, e.EchoRegenerated, e.EchoExhausted,
			uint16(e.RAGItemsInjected),
		); err != nil {
			s.log.Warn().Err(err).Msg("analytics clickhouse batch append failed")
			return
		}
	}
	if err := batch.Send(); err != nil {
		s.log.Warn().Err(err).Msg("analytics clickhouse batch send failed")
	}
}

// Close stops the flush loop, flushing any buffered events first, and closes
// the underlying connection.
func (s *ClickHouseSink) Close() error {
	close(s.done)
	<-s.stopped
	return s.conn.Close()
}
