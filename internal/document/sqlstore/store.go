package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	// Драйвер PostgreSQL
	_ "github.com/lib/pq"

	"github.com/SplayLobster/MemoApp2/internal/document"
)

// Schema таблица документов; один ряд на ключ
const Schema = `CREATE TABLE IF NOT EXISTS documents (
	app_code   TEXT NOT NULL,
	data_name  TEXT NOT NULL,
	payload    BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (app_code, data_name)
)`

const (
	selectQuery = `SELECT payload FROM documents WHERE app_code = $1 AND data_name = $2`
	upsertQuery = `INSERT INTO documents (app_code, data_name, payload, updated_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT (app_code, data_name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`
)

var _ document.Client = (*Store)(nil)

// Store хранилище документов в PostgreSQL
type Store struct {
	DB  *sql.DB
	log *zap.SugaredLogger
}

// NewStore создает хранилище поверх открытого соединения
func NewStore(db *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{DB: db, log: log}
}

// Connect открывает соединение и проверяет его с повторами.
// attempts попыток с паузой retryDelay между ними.
func Connect(ctx context.Context, dsn string, attempts int, retryDelay time.Duration, log *zap.SugaredLogger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if attempts <= 0 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			log.Info("Successfully connected to the database")
			return db, nil
		}
		log.Infof("Database connection failed, retrying in %s... (%v)", retryDelay, err)
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	_ = db.Close()
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", attempts, err)
}

// Migrate создает таблицу документов, если ее нет
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, Schema); err != nil {
		s.log.Errorf("Failed to create documents table: %v", err)
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Fetch читает документ
func (s *Store) Fetch(ctx context.Context, key document.Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var payload []byte
	err := s.DB.QueryRowContext(ctx, selectQuery, key.AppCode, key.DataName).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, document.ErrNotFound
	}
	if err != nil {
		s.log.Errorf("Failed to fetch document %s: %v", key, err)
		return nil, document.Wrap("fetch", key, err)
	}
	return payload, nil
}

// Store перезаписывает документ (upsert)
func (s *Store) Store(ctx context.Context, key document.Key, data []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}

	if _, err := s.DB.ExecContext(ctx, upsertQuery, key.AppCode, key.DataName, data); err != nil {
		s.log.Errorf("Failed to store document %s: %v", key, err)
		return document.Wrap("store", key, err)
	}
	return nil
}
