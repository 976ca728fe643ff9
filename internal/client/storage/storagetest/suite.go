// Package storagetest contains the behaviour every storage engine must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/entitysync/internal/client/storage"
)

// Factory creates a fresh, empty engine for a single test.
type Factory func(t *testing.T) storage.Engine

// Run executes the engine conformance tests.
func Run(t *testing.T, newEngine Factory) {
	t.Run("CreateStores", func(t *testing.T) { testCreateStores(t, newEngine(t)) })
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, newEngine(t)) })
	t.Run("AllOrdered", func(t *testing.T) { testAllOrdered(t, newEngine(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newEngine(t)) })
	t.Run("Clear", func(t *testing.T) { testClear(t, newEngine(t)) })
	t.Run("MissingStore", func(t *testing.T) { testMissingStore(t, newEngine(t)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, newEngine(t)) })
	t.Run("DropAll", func(t *testing.T) { testDropAll(t, newEngine(t)) })
}

func testCreateStores(t *testing.T, e storage.Engine) {
	ctx := context.Background()

	has, err := e.HasStores(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	names := storage.StoresFor([]string{"Parent"})
	require.NoError(t, e.CreateStores(ctx, names))
	// Повторный вызов не должен падать
	require.NoError(t, e.CreateStores(ctx, names))

	has, err = e.HasStores(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	got, err := e.StoreNames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, names, got)
	assert.True(t, e.IsSupported())
}

func testPutGet(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	require.NoError(t, e.CreateStores(ctx, []string{"Parent"}))

	require.NoError(t, e.Put(ctx, "Parent", []storage.Record{
		{ID: 1, Data: []byte(`{"ID":1}`)},
		{ID: -5, Data: []byte(`{"ID":-5}`)},
	}))

	data, err := e.Get(ctx, "Parent", -5)
	require.NoError(t, err)
	assert.Equal(t, `{"ID":-5}`, string(data))

	// Upsert: вторая запись с тем же ID перезаписывает первую
	require.NoError(t, e.Put(ctx, "Parent", []storage.Record{{ID: 1, Data: []byte(`{"ID":1,"Name":"x"}`)}}))
	data, err = e.Get(ctx, "Parent", 1)
	require.NoError(t, err)
	assert.Equal(t, `{"ID":1,"Name":"x"}`, string(data))

	_, err = e.Get(ctx, "Parent", 99)
	assert.ErrorIs(t, err, storage.ErrItemNotFound)
}

func testAllOrdered(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	require.NoError(t, e.CreateStores(ctx, []string{"Parent"}))

	require.NoError(t, e.Put(ctx, "Parent", []storage.Record{
		{ID: 10, Data: []byte("10")},
		{ID: -2, Data: []byte("-2")},
		{ID: 3, Data: []byte("3")},
		{ID: -1700000000000, Data: []byte("big")},
	}))

	records, err := e.All(ctx, "Parent")
	require.NoError(t, err)

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{-1700000000000, -2, 3, 10}, ids)
}

func testDelete(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	require.NoError(t, e.CreateStores(ctx, []string{"Parent"}))
	require.NoError(t, e.Put(ctx, "Parent", []storage.Record{
		{ID: 1, Data: []byte("1")},
		{ID: 2, Data: []byte("2")},
		{ID: 3, Data: []byte("3")},
	}))

	require.NoError(t, e.Delete(ctx, "Parent", []int64{1, 3, 404}))

	records, err := e.All(ctx, "Parent")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].ID)
}

func testClear(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	require.NoError(t, e.CreateStores(ctx, []string{"Parent", "Child"}))
	require.NoError(t, e.Put(ctx, "Parent", []storage.Record{{ID: 1, Data: []byte("1")}}))
	require.NoError(t, e.Put(ctx, "Child", []storage.Record{{ID: 1, Data: []byte("1")}}))

	require.NoError(t, e.Clear(ctx, "Parent"))

	records, err := e.All(ctx, "Parent")
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = e.All(ctx, "Child")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func testMissingStore(t *testing.T, e storage.Engine) {
	ctx := context.Background()

	err := e.Put(ctx, "Nope", []storage.Record{{ID: 1, Data: []byte("1")}})
	assert.ErrorIs(t, err, storage.ErrStoreNotFound)

	_, err = e.All(ctx, "Nope")
	assert.ErrorIs(t, err, storage.ErrStoreNotFound)
}

func testSettings(t *testing.T, e storage.Engine) {
	ctx := context.Background()

	value, err := storage.LastSyncTime(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, storage.NeverSynced, value)

	require.NoError(t, e.SaveSetting(ctx, storage.SettingLastSyncTime, "1700000000000"))
	value, err = storage.LastSyncTime(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", value)

	require.NoError(t, e.SaveSetting(ctx, storage.SettingLastSyncTime, "1700000000500"))
	value, ok, err := e.GetSetting(ctx, storage.SettingLastSyncTime)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1700000000500", value)
}

func testDropAll(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	require.NoError(t, e.CreateStores(ctx, storage.StoresFor([]string{"Parent"})))
	require.NoError(t, e.Put(ctx, "Parent", []storage.Record{{ID: 1, Data: []byte("1")}}))
	require.NoError(t, e.SaveSetting(ctx, storage.SettingLastSyncTime, "5"))

	require.NoError(t, e.DropAll(ctx))

	has, err := e.HasStores(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	_, ok, err := e.GetSetting(ctx, storage.SettingLastSyncTime)
	require.NoError(t, err)
	assert.False(t, ok)
}
