package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/SplayLobster/MemoApp2/internal/document"
)

const keyPrefix = "ono:"

var _ document.Client = (*Store)(nil)

// Store хранилище документов в Redis: одна строка на документ
type Store struct {
	rdb              *redis.Client
	log              *zap.SugaredLogger
	operationTimeout time.Duration
}

// NewStore создает хранилище поверх готового клиента Redis
func NewStore(rdb *redis.Client, log *zap.SugaredLogger, operationTimeout time.Duration) *Store {
	if operationTimeout <= 0 {
		operationTimeout = 5 * time.Second
	}
	return &Store{rdb: rdb, log: log, operationTimeout: operationTimeout}
}

// Connect открывает клиент Redis и проверяет соединение
func Connect(ctx context.Context, opts *redis.Options, pingTimeout time.Duration) (*redis.Client, error) {
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func redisKey(key document.Key) string {
	return keyPrefix + key.AppCode + ":" + key.DataName
}

// Fetch читает документ
func (s *Store) Fetch(ctx context.Context, key document.Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	data, err := s.rdb.Get(opCtx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, document.ErrNotFound
	}
	if err != nil {
		s.log.Errorw("redis get failed", "key", key.String(), "error", err)
		return nil, document.Wrap("fetch", key, err)
	}
	return data, nil
}

// Store перезаписывает документ, без срока жизни
func (s *Store) Store(ctx context.Context, key document.Key, data []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	if err := s.rdb.Set(opCtx, redisKey(key), data, 0).Err(); err != nil {
		s.log.Errorw("redis set failed", "key", key.String(), "error", err)
		return document.Wrap("store", key, err)
	}
	return nil
}
