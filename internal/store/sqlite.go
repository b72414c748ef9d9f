package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ktao87/goofish-agent/internal/domain"
	"github.com/ktao87/goofish-agent/internal/shared"
	_ "modernc.org/sqlite"
)

// DefaultMaxHistory caps stored turns per conversation.
const DefaultMaxHistory = 100

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db         *sql.DB
	maxHistory int
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string, maxHistory int) (Repository, error) {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, maxHistory: maxHistory}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversations (
		chat_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		bargain_count INTEGER NOT NULL DEFAULT 0,
		start_time INTEGER NOT NULL,
		last_update INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_update ON conversations(last_update);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		intent TEXT,
		timestamp INTEGER NOT NULL,
		FOREIGN KEY (chat_id) REFERENCES conversations (chat_id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id);

	CREATE TABLE IF NOT EXISTS items (
		item_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		price REAL,
		description TEXT,
		last_updated INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendMessage records one turn, creating the conversation row on
// first use and trimming messages past the history cap. A write that
// hits SQLite lock contention is retried once after a short pause.
func (s *SQLiteStore) AppendMessage(ctx context.Context, chatID, userID, itemID, role, content, intent string) error {
	err := s.appendMessage(ctx, chatID, userID, itemID, role, content, intent)
	if err != nil && shared.IsSQLiteConflictError(err) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
		return s.appendMessage(ctx, chatID, userID, itemID, role, content, intent)
	}
	return err
}

func (s *SQLiteStore) appendMessage(ctx context.Context, chatID, userID, itemID, role, content, intent string) error {
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (chat_id, user_id, item_id, start_time, last_update)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			last_update = excluded.last_update`,
		chatID, userID, itemID, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	var intentVal interface{}
	if intent != "" {
		intentVal = intent
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (chat_id, role, content, intent, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		chatID, role, content, intentVal, now,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	// Keep only the newest maxHistory turns.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM messages WHERE chat_id = ? AND id NOT IN (
			SELECT id FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?
		)`,
		chatID, chatID, s.maxHistory,
	)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// GetHistory returns a conversation's turns, oldest first.
func (s *SQLiteStore) GetHistory(ctx context.Context, chatID string) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, COALESCE(intent, ''), timestamp
		FROM messages WHERE chat_id = ? ORDER BY id ASC LIMIT ?`,
		chatID, s.maxHistory,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var ts int64
		if err := rows.Scan(&t.Role, &t.Content, &t.Intent, &ts); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		t.Timestamp = time.Unix(ts, 0)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// GetBargainCount returns the stored bargain counter for a conversation.
func (s *SQLiteStore) GetBargainCount(ctx context.Context, chatID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT bargain_count FROM conversations WHERE chat_id = ?`, chatID,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query bargain count: %w", err)
	}
	return count, nil
}

// IncrementBargainCount bumps the stored bargain counter.
func (s *SQLiteStore) IncrementBargainCount(ctx context.Context, chatID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET bargain_count = bargain_count + 1, last_update = ?
		WHERE chat_id = ?`,
		time.Now().Unix(), chatID,
	)
	if err != nil {
		return fmt.Errorf("increment bargain count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("increment bargain count: unknown conversation %s", chatID)
	}
	return nil
}

// GetItem retrieves cached item metadata; nil when not cached.
func (s *SQLiteStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT item_id, data, COALESCE(description, ''), COALESCE(price, 0), last_updated
		FROM items WHERE item_id = ?`, itemID,
	)

	var item domain.Item
	var price float64
	var updated int64
	err := row.Scan(&item.ItemID, &item.Raw, &item.Description, &price, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan item row: %w", err)
	}
	item.SoldPrice = strconv.FormatFloat(price, 'f', -1, 64)
	item.LastUpdated = time.Unix(updated, 0)
	return &item, nil
}

// SaveItem caches item metadata.
func (s *SQLiteStore) SaveItem(ctx context.Context, item *domain.Item) error {
	price, _ := strconv.ParseFloat(item.SoldPrice, 64)
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (item_id, data, price, description, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			data = excluded.data,
			price = excluded.price,
			description = excluded.description,
			last_updated = excluded.last_updated`,
		item.ItemID, item.Raw, price, item.Description, now,
	)
	if err != nil {
		return fmt.Errorf("save item: %w", err)
	}
	return nil
}

// ListItems lists cached items, most recently updated first.
func (s *SQLiteStore) ListItems(ctx context.Context, limit int) ([]*domain.Item, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, data, COALESCE(description, ''), COALESCE(price, 0), last_updated
		FROM items ORDER BY last_updated DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []*domain.Item
	for rows.Next() {
		var item domain.Item
		var price float64
		var updated int64
		if err := rows.Scan(&item.ItemID, &item.Raw, &item.Description, &price, &updated); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		item.SoldPrice = strconv.FormatFloat(price, 'f', -1, 64)
		item.LastUpdated = time.Unix(updated, 0)
		out = append(out, &item)
	}
	return out, rows.Err()
}

// RecentConversations lists conversations by last activity, newest first.
func (s *SQLiteStore) RecentConversations(ctx context.Context, limit int) ([]*domain.ConversationSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, user_id, item_id, bargain_count, start_time, last_update
		FROM conversations ORDER BY last_update DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []*domain.ConversationSummary
	for rows.Next() {
		var c domain.ConversationSummary
		var started, updated int64
		if err := rows.Scan(&c.ChatID, &c.UserID, &c.ItemID, &c.BargainCount, &started, &updated); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		c.StartedAt = time.Unix(started, 0)
		c.LastUpdate = time.Unix(updated, 0)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Stats aggregates store-wide counters.
func (s *SQLiteStore) Stats(ctx context.Context) (*domain.Stats, error) {
	var stats domain.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM conversations),
			(SELECT COUNT(*) FROM messages),
			(SELECT COUNT(*) FROM items),
			(SELECT COALESCE(SUM(bargain_count), 0) FROM conversations)`,
	).Scan(&stats.TotalConversations, &stats.TotalMessages, &stats.TotalItems, &stats.TotalBargains)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &stats, nil
}
