// Package documenttest содержит общий набор проверок для реализаций document.Client
package documenttest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SplayLobster/MemoApp2/internal/document"
)

// RunContract проверяет, что клиент соблюдает контракт Fetch/Store.
// newClient вызывается для каждого подтеста и должен возвращать пустое хранилище.
func RunContract(t *testing.T, newClient func(t *testing.T) document.Client) {
	t.Helper()

	key := document.Key{AppCode: "memo-app", DataName: "notes"}

	t.Run("fetch missing returns ErrNotFound", func(t *testing.T) {
		c := newClient(t)

		_, err := c.Fetch(context.Background(), key)
		require.Error(t, err)
		assert.True(t, errors.Is(err, document.ErrNotFound), "got %v", err)
	})

	t.Run("store then fetch returns same bytes", func(t *testing.T) {
		c := newClient(t)
		payload := []byte(`[[{"id":"1","type":"classic","title":"A","content":"x"}],[{"isOccupied":false}]]`)

		require.NoError(t, c.Store(context.Background(), key, payload))

		got, err := c.Fetch(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("store overwrites whole document", func(t *testing.T) {
		c := newClient(t)

		require.NoError(t, c.Store(context.Background(), key, []byte(`[[],[{"isOccupied":true}]]`)))
		require.NoError(t, c.Store(context.Background(), key, []byte(`[]`)))

		got, err := c.Fetch(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, []byte(`[]`), got)
	})

	t.Run("keys are independent", func(t *testing.T) {
		c := newClient(t)
		other := document.Key{AppCode: "memo-app", DataName: "archive"}

		require.NoError(t, c.Store(context.Background(), key, []byte(`[1]`)))
		require.NoError(t, c.Store(context.Background(), other, []byte(`[2]`)))

		got, err := c.Fetch(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, []byte(`[1]`), got)

		got, err = c.Fetch(context.Background(), other)
		require.NoError(t, err)
		assert.Equal(t, []byte(`[2]`), got)
	})

	t.Run("invalid key is rejected", func(t *testing.T) {
		c := newClient(t)

		err := c.Store(context.Background(), document.Key{AppCode: "memo-app"}, []byte(`[]`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, document.ErrInvalidKey), "got %v", err)
	})
}
