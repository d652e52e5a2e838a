package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tanya/internal/models"
)

var _ ConversationStore = (*SQLiteStorage)(nil)

// SQLiteStorage implements ConversationStore using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer, and each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversation_turns (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		namespace TEXT NOT NULL,
		sender TEXT NOT NULL CHECK (sender IN ('user', 'assistant')),
		message TEXT NOT NULL,
		sources TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_turns_namespace_seq ON conversation_turns(namespace, seq);
	`
	_, err := db.Exec(schema)
	return err
}

// Append inserts turn at the end of its namespace's history.
func (s *SQLiteStorage) Append(ctx context.Context, turn *models.ConversationTurn) error {
	if turn.Namespace == "" {
		return fmt.Errorf("%w: turn namespace is required", models.ErrValidation)
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	var sources sql.NullString
	if len(turn.Sources) > 0 {
		data, err := json.Marshal(turn.Sources)
		if err != nil {
			return fmt.Errorf("failed to marshal sources: %w", err)
		}
		sources = sql.NullString{String: string(data), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_turns (id, namespace, sender, message, sources, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.Namespace, string(turn.Sender), turn.Message, sources, turn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// ReadAll returns the namespace's turns oldest first. An unknown namespace has an empty history.
func (s *SQLiteStorage) ReadAll(ctx context.Context, namespace string) ([]models.ConversationTurn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, namespace, sender, message, sources, created_at
		 FROM conversation_turns WHERE namespace = ? ORDER BY seq`, namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := []models.ConversationTurn{}
	for rows.Next() {
		var turn models.ConversationTurn
		var sender string
		var sources sql.NullString
		if err := rows.Scan(&turn.ID, &turn.Namespace, &sender, &turn.Message, &sources, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Sender = models.Sender(sender)
		if sources.Valid && sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &turn.Sources); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
			}
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// CountTurns returns the number of stored turns across all namespaces.
func (s *SQLiteStorage) CountTurns(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversation_turns`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
