package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"warframe_bot/internal/model"
	"warframe_bot/migrations"
)

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

var _ Storage = (*SQLite)(nil)

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string, log *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, log: log}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetSubscriber returns the preferences of one chat.
func (s *SQLite) GetSubscriber(ctx context.Context, chatID int64) (*model.Subscriber, error) {
	r, err := scanRow(s.db.QueryRowContext(ctx,
		`SELECT chat_id, timezone, subscriptions, fissure_filters FROM users WHERE chat_id = ?`, chatID,
	))
	if err != nil {
		return nil, err
	}
	sub := fromRow(r, s.log)
	return &sub, nil
}

// PutSubscriber inserts or fully replaces a record.
func (s *SQLite) PutSubscriber(ctx context.Context, sub *model.Subscriber) error {
	return s.put(ctx, s.db, sub)
}

// UpdateSubscriber runs fn inside a transaction.
func (s *SQLite) UpdateSubscriber(ctx context.Context, chatID int64, fn func(*model.Subscriber) error) (*model.Subscriber, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var sub *model.Subscriber
	r, err := scanRow(tx.QueryRowContext(ctx,
		`SELECT chat_id, timezone, subscriptions, fissure_filters FROM users WHERE chat_id = ?`, chatID,
	))
	switch {
	case errors.Is(err, ErrNotFound):
		sub = model.NewSubscriber(chatID)
	case err != nil:
		return nil, err
	default:
		v := fromRow(r, s.log)
		sub = &v
	}

	if err := fn(sub); err != nil {
		return nil, err
	}
	sub.ChatID = chatID
	if err := s.put(ctx, tx, sub); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sub, nil
}

// ListSubscribers returns every stored record ordered by chat ID.
func (s *SQLite) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, timezone, subscriptions, fissure_filters FROM users ORDER BY chat_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var raw []row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	subs := make([]model.Subscriber, 0, len(raw))
	for _, r := range raw {
		subs = append(subs, fromRow(r, s.log))
	}
	return subs, nil
}

// MarkNotified records that a fissure was delivered to a chat.
func (s *SQLite) MarkNotified(ctx context.Context, chatID int64, key string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notified_fissures (chat_id, fissure_key, expires_at) VALUES (?, ?, ?)`,
		chatID, key, expiresAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// IsNotified checks whether a fissure was already delivered to a chat.
func (s *SQLite) IsNotified(ctx context.Context, chatID int64, key string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notified_fissures WHERE chat_id = ? AND fissure_key = ?`,
		chatID, key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check notified: %w", err)
	}
	return count > 0, nil
}

// PruneNotified removes ledger entries that expired before now.
func (s *SQLite) PruneNotified(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notified_fissures WHERE expires_at < ?`, now.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune notified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLite) put(ctx context.Context, db execer, sub *model.Subscriber) error {
	r, err := toRow(sub)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO users (chat_id, timezone, subscriptions, fissure_filters)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET
		   timezone = excluded.timezone,
		   subscriptions = excluded.subscriptions,
		   fissure_filters = excluded.fissure_filters`,
		r.ChatID, r.Timezone, r.Subscriptions, r.FissureFilters,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRow(sc scannable) (row, error) {
	var r row
	var tz, subs, filters sql.NullString
	if err := sc.Scan(&r.ChatID, &tz, &subs, &filters); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, ErrNotFound
		}
		return r, fmt.Errorf("scan user: %w", err)
	}
	r.Timezone = tz.String
	r.Subscriptions = subs.String
	r.FissureFilters = filters.String
	return r, nil
}
