// Package backend собирает реализацию document.Client по имени бэкенда из конфига
package backend

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/SplayLobster/MemoApp2/internal/config"
	"github.com/SplayLobster/MemoApp2/internal/document"
	"github.com/SplayLobster/MemoApp2/internal/document/blobstore"
	"github.com/SplayLobster/MemoApp2/internal/document/grpcclient"
	"github.com/SplayLobster/MemoApp2/internal/document/httpclient"
	"github.com/SplayLobster/MemoApp2/internal/document/memory"
	"github.com/SplayLobster/MemoApp2/internal/document/redisstore"
	"github.com/SplayLobster/MemoApp2/internal/document/sqlstore"
)

const (
	HTTP   = "http"
	GRPC   = "grpc"
	Memory = "memory"
	Redis  = "redis"
	Blob   = "blob"
	SQL    = "sql"
)

// CloseFunc освобождает ресурсы бэкенда
type CloseFunc func() error

func noClose() error { return nil }

// Open создает клиент хранилища для бэкенда name
func Open(ctx context.Context, name string, cfg *config.ConfigStore, log *zap.SugaredLogger) (document.Client, CloseFunc, error) {
	log = log.With("backend", name)

	switch name {
	case HTTP:
		c, err := httpclient.New(httpclient.Options{
			BaseURL: cfg.BaseURL,
			Token:   cfg.Token,
			Timeout: config.Millis(cfg.TimeoutMS),
			RPS:     cfg.RPS,
			Burst:   cfg.Burst,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		log.Infow("using http document store", "base_url", cfg.BaseURL)
		return c, noClose, nil

	case GRPC:
		c, err := grpcclient.Dial(cfg.GRPCAddr, cfg.Token, config.Millis(cfg.TimeoutMS), log)
		if err != nil {
			return nil, nil, err
		}
		log.Infow("using grpc document store", "addr", cfg.GRPCAddr)
		return c, c.Close, nil

	case Memory:
		log.Infow("using in-memory document store")
		return memory.NewStore(), noClose, nil

	case Redis:
		rc := cfg.Redis
		rdb, err := redisstore.Connect(ctx, &redis.Options{
			Addr:     rc.Addr,
			Username: rc.Username,
			Password: rc.Password,
			DB:       rc.DB,
		}, config.Millis(rc.PingTimeout))
		if err != nil {
			return nil, nil, err
		}
		log.Infow("using redis document store", "addr", rc.Addr, "db", rc.DB)
		return redisstore.NewStore(rdb, log, config.Millis(cfg.OperationMS)), rdb.Close, nil

	case Blob:
		s, err := blobstore.Open(ctx, cfg.Blob.BucketURL, log)
		if err != nil {
			return nil, nil, err
		}
		log.Infow("using blob document store", "bucket", cfg.Blob.BucketURL)
		return s, s.Close, nil

	case SQL:
		sc := cfg.SQL
		db, err := sqlstore.Connect(ctx, sc.DSN, sc.PingAttempts, config.Millis(sc.PingRetryWait), log)
		if err != nil {
			return nil, nil, err
		}
		s := sqlstore.NewStore(db, log)
		if sc.Migrate {
			if err := s.Migrate(ctx); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		log.Infow("using sql document store")
		return s, db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown document store backend %q", name)
	}
}
