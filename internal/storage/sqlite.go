package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/azure/brand-mentions-bot/internal/models"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore keeps mentions in a single local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements MentionStore
var _ MentionStore = (*SQLiteStore)(nil)

const mentionColumns = `id, brand, source, text, url, timestamp, sentiment, topic, urgency`

// OpenSQLite opens or creates the database file and ensures the schema exists
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	// _txlock=immediate makes every transaction take the write lock up front,
	// so the existence check and the insert in InsertIfAbsent cannot interleave
	dsn := fmt.Sprintf("%s?_txlock=immediate&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.Initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logrus.Debugf("Opened mention store at %s", path)
	return store, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Initialize creates the mentions table and its indexes if they don't exist
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS mentions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		brand TEXT NOT NULL,
		source TEXT NOT NULL,
		text TEXT NOT NULL,
		url TEXT UNIQUE,
		timestamp DATETIME,
		sentiment TEXT,
		topic TEXT,
		urgency TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_mentions_brand ON mentions(brand);
	CREATE INDEX IF NOT EXISTS idx_mentions_timestamp ON mentions(timestamp);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// InsertIfAbsent stores the mention unless a row with the same URL exists.
// On insert the mention's ID is filled in.
func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, mention *models.Mention) (models.InsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Duplicate, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM mentions WHERE url = ?", mention.URL).Scan(&existing)
	if err == nil {
		return models.Duplicate, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Duplicate, fmt.Errorf("check url: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
	INSERT INTO mentions (brand, source, text, url, timestamp)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(url) DO NOTHING
	`, mention.Brand, mention.Source, mention.Text, mention.URL, mention.Timestamp.UTC().Truncate(time.Second))
	if err != nil {
		return models.Duplicate, fmt.Errorf("insert mention: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return models.Duplicate, err
	}
	if affected == 0 {
		return models.Duplicate, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Duplicate, err
	}

	if err := tx.Commit(); err != nil {
		return models.Duplicate, fmt.Errorf("commit insert: %w", err)
	}

	mention.ID = id
	return models.Inserted, nil
}

// ListByBrand returns every mention of the brand, most recent first
func (s *SQLiteStore) ListByBrand(ctx context.Context, brand string) ([]models.Mention, error) {
	query := `SELECT ` + mentionColumns + ` FROM mentions WHERE brand = ? ORDER BY timestamp DESC, id DESC`
	return s.query(ctx, query, brand)
}

// ListPending returns the brand's mentions that have not been analyzed yet, oldest first
func (s *SQLiteStore) ListPending(ctx context.Context, brand string) ([]models.Mention, error) {
	query := `SELECT ` + mentionColumns + ` FROM mentions WHERE brand = ? AND sentiment IS NULL ORDER BY id ASC`
	return s.query(ctx, query, brand)
}

// UpdateAnalysis overwrites the three analysis fields of a mention
func (s *SQLiteStore) UpdateAnalysis(ctx context.Context, id int64, analysis models.Analysis) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE mentions SET sentiment = ?, topic = ?, urgency = ? WHERE id = ?",
		string(analysis.Sentiment), analysis.Topic, string(analysis.Urgency), id,
	)
	if err != nil {
		return fmt.Errorf("update mention %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("update mention %d: %w", id, ErrMentionNotFound)
	}

	return nil
}

// Count returns the number of mentions and pending mentions for a brand
func (s *SQLiteStore) Count(ctx context.Context, brand string) (int, int, error) {
	var total, pending int
	err := s.db.QueryRowContext(ctx, `
	SELECT COUNT(*), COALESCE(SUM(CASE WHEN sentiment IS NULL THEN 1 ELSE 0 END), 0)
	FROM mentions WHERE brand = ?
	`, brand).Scan(&total, &pending)
	return total, pending, err
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]models.Mention, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mentions []models.Mention
	for rows.Next() {
		var (
			m                         models.Mention
			url                       sql.NullString
			timestamp                 sql.NullTime
			sentiment, topic, urgency sql.NullString
		)
		err := rows.Scan(&m.ID, &m.Brand, &m.Source, &m.Text, &url, &timestamp, &sentiment, &topic, &urgency)
		if err != nil {
			return nil, err
		}

		m.URL = url.String
		if timestamp.Valid {
			m.Timestamp = timestamp.Time.UTC()
		}
		m.Sentiment = models.Sentiment(sentiment.String)
		m.Topic = topic.String
		m.Urgency = models.Urgency(urgency.String)

		mentions = append(mentions, m)
	}

	return mentions, rows.Err()
}
