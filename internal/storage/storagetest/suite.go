// Package storagetest holds the behaviour every DocumentStore must share.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingdesk/internal/storage"
)

type record struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	N     int    `json:"n"`
}

// Run exercises store against the DocumentStore contract.
// The store must be initialized and empty.
func Run(t *testing.T, store storage.DocumentStore) {
	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(context.Background(), storage.Books, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, storage.Save(ctx, store, storage.Books, "B1", record{ID: "B1", Title: "X", N: 1}))

		got, err := storage.Load[record](ctx, store, storage.Books, "B1")
		require.NoError(t, err)
		assert.Equal(t, record{ID: "B1", Title: "X", N: 1}, got)
	})

	t.Run("put replaces", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, storage.Save(ctx, store, storage.Books, "B2", record{ID: "B2", Title: "old"}))
		require.NoError(t, storage.Save(ctx, store, storage.Books, "B2", record{ID: "B2", Title: "new"}))

		got, err := storage.Load[record](ctx, store, storage.Books, "B2")
		require.NoError(t, err)
		assert.Equal(t, "new", got.Title)
	})

	t.Run("collections are isolated", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, storage.Save(ctx, store, storage.Students, "B1", record{ID: "B1", Title: "student"}))

		book, err := storage.Load[record](ctx, store, storage.Books, "B1")
		require.NoError(t, err)
		assert.Equal(t, "X", book.Title)
	})

	t.Run("list ordered by id", func(t *testing.T) {
		ctx := context.Background()
		for _, id := range []string{"L3", "L1", "L2"} {
			require.NoError(t, storage.Save(ctx, store, storage.Logs, id, record{ID: id}))
		}

		got, err := storage.LoadAll[record](ctx, store, storage.Logs)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "L1", got[0].ID)
		assert.Equal(t, "L2", got[1].ID)
		assert.Equal(t, "L3", got[2].ID)
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, storage.Save(ctx, store, storage.Issues, "I1", record{ID: "I1"}))
		require.NoError(t, store.Delete(ctx, storage.Issues, "I1"))

		_, err := store.Get(ctx, storage.Issues, "I1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, storage.Issues, "I1"), storage.ErrNotFound)

		docs, err := store.List(ctx, storage.Issues)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("put after delete", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, storage.Save(ctx, store, storage.Issues, "I2", record{ID: "I2", N: 1}))
		require.NoError(t, store.Delete(ctx, storage.Issues, "I2"))
		require.NoError(t, storage.Save(ctx, store, storage.Issues, "I2", record{ID: "I2", N: 2}))

		got, err := storage.Load[record](ctx, store, storage.Issues, "I2")
		require.NoError(t, err)
		assert.Equal(t, 2, got.N)
	})

	t.Run("concurrent puts on distinct ids", func(t *testing.T) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("C%02d", i)
				assert.NoError(t, storage.Save(ctx, store, storage.Students, id, record{ID: id, N: i}))
			}(i)
		}
		wg.Wait()

		got, err := storage.LoadAll[record](ctx, store, storage.Students)
		require.NoError(t, err)
		// 20 concurrent records plus "B1" from the isolation case
		assert.Len(t, got, 21)
	})
}
