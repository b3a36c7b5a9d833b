package blobstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	// Драйверы для URL вида mem:// и file:///path
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/SplayLobster/MemoApp2/internal/document"
)

var _ document.Client = (*Store)(nil)

// Store хранилище документов в blob-бакете: один объект на документ
type Store struct {
	bucket *blob.Bucket
	log    *zap.SugaredLogger
	prefix string
}

// Open открывает бакет по URL (mem://, file:///var/lib/ono, s3://... и т.п.)
func Open(ctx context.Context, bucketURL string, log *zap.SugaredLogger) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("blob.OpenBucket: %w", err)
	}
	return NewStore(bucket, log), nil
}

// NewStore создает хранилище поверх открытого бакета
func NewStore(bucket *blob.Bucket, log *zap.SugaredLogger) *Store {
	return &Store{bucket: bucket, log: log, prefix: "documents/"}
}

func (s *Store) objectKey(key document.Key) string {
	return s.prefix + key.AppCode + "/" + key.DataName + ".json"
}

// Fetch читает объект документа
func (s *Store) Fetch(ctx context.Context, key document.Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	data, err := s.bucket.ReadAll(ctx, s.objectKey(key))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, document.ErrNotFound
		}
		s.log.Errorw("blob read failed", "key", key.String(), "error", err)
		return nil, document.Wrap("fetch", key, err)
	}
	return data, nil
}

// Store перезаписывает объект документа
func (s *Store) Store(ctx context.Context, key document.Key, data []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}

	err := s.bucket.WriteAll(ctx, s.objectKey(key), data, &blob.WriterOptions{
		ContentType: "application/json",
	})
	if err != nil {
		s.log.Errorw("blob write failed", "key", key.String(), "error", err)
		return document.Wrap("store", key, err)
	}
	return nil
}

// Close закрывает бакет
func (s *Store) Close() error {
	return s.bucket.Close()
}
