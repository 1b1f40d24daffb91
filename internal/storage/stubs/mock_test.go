package stubs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingdesk/internal/storage"
	"lendingdesk/internal/storage/storagetest"
)

func TestMockDB_Contract(t *testing.T) {
	db := NewMockDB()
	require.NoError(t, db.Initialize(context.Background()))

	storagetest.Run(t, db)
}

func TestMockDB_ReturnsCopies(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()
	require.NoError(t, db.Initialize(ctx))

	doc := []byte(`{"id":"B1"}`)
	require.NoError(t, db.Put(ctx, storage.Books, "B1", doc))
	doc[2] = 'X'

	got, err := db.Get(ctx, storage.Books, "B1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"B1"}`, string(got))

	got[2] = 'Y'
	again, err := db.Get(ctx, storage.Books, "B1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"B1"}`, string(again))
}

func TestMockDB_RejectsInvalidJSON(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()
	require.NoError(t, db.Initialize(ctx))

	assert.Error(t, db.Put(ctx, storage.Books, "B1", []byte(`{not json`)))
}

func TestFaultyDB(t *testing.T) {
	ctx := context.Background()
	inner := NewMockDB()
	require.NoError(t, inner.Initialize(ctx))
	db := NewFaultyDB(inner)

	db.FailNext(OpPut, storage.Books, 1)
	assert.ErrorIs(t, db.Put(ctx, storage.Books, "B1", []byte(`{}`)), ErrInjected)
	assert.NoError(t, db.Put(ctx, storage.Books, "B1", []byte(`{}`)))

	// other collections are unaffected
	db.FailNext(OpGet, storage.Logs, -1)
	_, err := db.Get(ctx, storage.Books, "B1")
	assert.NoError(t, err)
	_, err = db.Get(ctx, storage.Logs, "L1")
	assert.ErrorIs(t, err, ErrInjected)
	_, err = db.Get(ctx, storage.Logs, "L1")
	assert.ErrorIs(t, err, ErrInjected)

	db.Heal()
	_, err = db.Get(ctx, storage.Logs, "L1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
