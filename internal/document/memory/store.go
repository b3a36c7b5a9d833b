package memory

import (
	"context"
	"sync"

	"github.com/SplayLobster/MemoApp2/internal/document"
)

var _ document.Client = (*Store)(nil)

// StoreHook вызывается после каждой успешной записи, под блокировкой хранилища
type StoreHook func(key document.Key, data []byte)

// Store in-memory хранилище документов на основе map
type Store struct {
	mu    sync.RWMutex
	docs  map[document.Key][]byte
	hooks []StoreHook
}

// NewStore создает новый экземпляр in-memory хранилища
func NewStore(hooks ...StoreHook) *Store {
	return &Store{
		docs:  make(map[document.Key][]byte),
		hooks: hooks,
	}
}

// Fetch возвращает копию документа по ключу
func (s *Store) Fetch(ctx context.Context, key document.Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, document.Wrap("fetch", key, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.docs[key]
	if !exists {
		return nil, document.ErrNotFound
	}

	return clone(data), nil
}

// Store перезаписывает документ целиком
func (s *Store) Store(ctx context.Context, key document.Key, data []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return document.Wrap("store", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[key] = clone(data)
	for _, hook := range s.hooks {
		hook(key, clone(data))
	}

	return nil
}

// Delete удаляет документ (используется тестами и админскими сценариями)
func (s *Store) Delete(key document.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, key)
}

// Keys возвращает ключи всех документов
func (s *Store) Keys() []document.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]document.Key, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	return keys
}

func clone(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
