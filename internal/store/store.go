package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"LedgerChat/internal/message"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrDuplicateID = errors.New("duplicate message id")
	ErrUnavailable = errors.New("message store unavailable")
	ErrInvalidType = errors.New("invalid message type")
)

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	type TEXT NOT NULL,
	timestamp DATETIME NOT NULL
);`

const likeEscaper = `\`

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SQLiteStore persists message records in a single SQLite table
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

// Open opens (creating if absent) the database file at path and ensures the
// messages table exists.
func Open(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: SQLite serialises writers anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createMessagesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create messages table: %w", err)
	}

	logger.Info("message store ready", "path", path)
	return &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timestamp returns the insertion time, never earlier than the previous one
func (s *SQLiteStore) timestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC()
	if ts.Before(s.last) {
		ts = s.last
	}
	s.last = ts
	return ts
}

// Append inserts a new record. Records are never updated, so an existing id
// yields ErrDuplicateID.
func (s *SQLiteStore) Append(ctx context.Context, id, content string, typ message.Type) error {
	if !typ.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, content, type, timestamp) VALUES (?, ?, ?, ?)",
		id, content, string(typ), s.timestamp(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		return fmt.Errorf("%w: failed to insert message: %w", ErrUnavailable, err)
	}

	s.logger.Debug("message stored", "id", id, "type", typ)
	return nil
}

// Search returns records whose content contains query, oldest first.
// An empty query returns every record.
func (s *SQLiteStore) Search(ctx context.Context, query string) ([]message.Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if query == "" {
		rows, err = s.db.QueryContext(ctx,
			"SELECT id, content, type, timestamp FROM messages ORDER BY timestamp ASC, rowid ASC")
	} else {
		rows, err = s.db.QueryContext(ctx,
			"SELECT id, content, type, timestamp FROM messages WHERE content LIKE ? ESCAPE ? ORDER BY timestamp ASC, rowid ASC",
			"%"+likeReplacer.Replace(query)+"%", likeEscaper)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query messages: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	records := []message.Record{}
	for rows.Next() {
		var (
			rec message.Record
			typ string
		)
		if err := rows.Scan(&rec.ID, &rec.Content, &typ, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: failed to scan message: %w", ErrUnavailable, err)
		}
		rec.Type = message.Type(typ)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read messages: %w", ErrUnavailable, err)
	}

	return records, nil
}
