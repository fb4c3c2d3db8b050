// Package storetest: общий набор проверок для реализаций document.Store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mc3e/internal/document"
	"mc3e/internal/schema"
)

// Run прогоняет проверки; newStore должен отдавать пустое хранилище
// с kind "item" и "actor".
func Run(t *testing.T, newStore func(t *testing.T) document.Store) {
	t.Run("SaveGetRoundTrip", func(t *testing.T) { saveGetRoundTrip(t, newStore(t)) })
	t.Run("OptimisticVersion", func(t *testing.T) { optimisticVersion(t, newStore(t)) })
	t.Run("ListDeleteCount", func(t *testing.T) { listDeleteCount(t, newStore(t)) })
	t.Run("Settings", func(t *testing.T) { settings(t, newStore(t)) })
}

func record(id, kind, typ string, system map[string]any) *document.Record {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &document.Record{
		ID: id, Kind: kind, Type: typ, Version: 1,
		CreatedAt: now, UpdatedAt: now, System: system,
	}
}

func saveGetRoundTrip(t *testing.T, st document.Store) {
	ctx := context.Background()
	rec := record("01HX0000000000000000000001", "item", "tool", map[string]any{
		"price":      map[string]any{"value": 25.0, "denomination": "gp"},
		"rarity":     "veryRare",
		"components": map[string]any{"vocal": true},
		"tags":       []any{"a", "b"},
		"weight":     nil,
	})
	rec.Invalid = true
	rec.Errors = []schema.FieldError{{Code: schema.ErrMin, Field: "weight", Message: "must be >= 0"}}
	require.NoError(t, st.Save(ctx, rec))

	got, err := st.Get(ctx, "item", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "item", got.Kind)
	assert.Equal(t, "tool", got.Type)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
	assert.Equal(t, rec.System, got.System)
	assert.True(t, got.Invalid)
	assert.Equal(t, rec.Errors, got.Errors)

	_, err = st.Get(ctx, "item", "missing")
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func optimisticVersion(t *testing.T, st document.Store) {
	ctx := context.Background()
	rec := record("01HX0000000000000000000002", "actor", "npc", map[string]any{"hp": 10.0})
	require.NoError(t, st.Save(ctx, rec))
	assert.ErrorIs(t, st.Save(ctx, rec), document.ErrExists)

	rec.Version = 2
	rec.System["hp"] = 7.0
	rec.UpdatedAt = rec.UpdatedAt.Add(time.Minute)
	require.NoError(t, st.Save(ctx, rec))

	// повтор той же версии: конфликт
	assert.ErrorIs(t, st.Save(ctx, rec), document.ErrVersionConflict)

	got, err := st.Get(ctx, "actor", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, 7.0, got.System["hp"])
	assert.True(t, got.UpdatedAt.Equal(rec.UpdatedAt))
	assert.False(t, got.Invalid)
	assert.Empty(t, got.Errors)
}

func listDeleteCount(t *testing.T, st document.Store) {
	ctx := context.Background()
	require.NoError(t, st.Save(ctx, record("01HX0000000000000000000020", "item", "tool", map[string]any{})))
	require.NoError(t, st.Save(ctx, record("01HX0000000000000000000010", "item", "spell", map[string]any{})))
	require.NoError(t, st.Save(ctx, record("01HX0000000000000000000030", "actor", "npc", map[string]any{})))

	items, err := st.List(ctx, "item")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "01HX0000000000000000000010", items[0].ID)
	assert.Equal(t, "spell", items[0].Type)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, st.Delete(ctx, "item", "01HX0000000000000000000010"))
	assert.ErrorIs(t, st.Delete(ctx, "item", "01HX0000000000000000000010"), document.ErrNotFound)

	n, err = st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func settings(t *testing.T, st document.Store) {
	ctx := context.Background()
	_, ok, err := st.Setting(ctx, "systemMigrationVersion")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.SetSetting(ctx, "systemMigrationVersion", "1.6.0"))
	require.NoError(t, st.SetSetting(ctx, "systemMigrationVersion", "2.0.3"))
	v, ok, err := st.Setting(ctx, "systemMigrationVersion")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2.0.3", v)
}
