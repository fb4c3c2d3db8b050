package document

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mc3e/internal/schema"
)

func newRecord(id, kind, typ string, version int64, system map[string]any) *Record {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &Record{ID: id, Kind: kind, Type: typ, Version: version, CreatedAt: now, UpdatedAt: now, System: system}
}

func TestMemoryStoreOptimisticSave(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	rec := newRecord("01A", "item", "tool", 1, map[string]any{"weight": 1.0})
	require.NoError(t, st.Save(ctx, rec))
	assert.ErrorIs(t, st.Save(ctx, rec), ErrExists)

	rec.Version = 3
	assert.ErrorIs(t, st.Save(ctx, rec), ErrVersionConflict)

	rec.Version = 2
	rec.System["weight"] = 2.0
	require.NoError(t, st.Save(ctx, rec))

	got, err := st.Get(ctx, "item", "01A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, 2.0, got.System["weight"])

	// хранилище держит копию
	got.System["weight"] = 99.0
	again, err := st.Get(ctx, "item", "01A")
	require.NoError(t, err)
	assert.Equal(t, 2.0, again.System["weight"])

	ghost := newRecord("01Z", "item", "tool", 2, nil)
	assert.ErrorIs(t, st.Save(ctx, ghost), ErrVersionConflict)
}

func TestMemoryStoreListDeleteCount(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	require.NoError(t, st.Save(ctx, newRecord("02", "item", "tool", 1, nil)))
	require.NoError(t, st.Save(ctx, newRecord("01", "item", "spell", 1, nil)))
	require.NoError(t, st.Save(ctx, newRecord("03", "actor", "npc", 1, nil)))

	items, err := st.List(ctx, "item")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "01", items[0].ID)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, st.Delete(ctx, "item", "01"))
	assert.ErrorIs(t, st.Delete(ctx, "item", "01"), ErrNotFound)
	_, err = st.Get(ctx, "item", "01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSettings(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	_, ok, err := st.Setting(ctx, "strictValidation")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.SetSetting(ctx, "strictValidation", "false"))
	v, ok, err := st.Setting(ctx, "strictValidation")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", v)
}

func TestCollectionAcceptedAndInvalid(t *testing.T) {
	c := NewCollection()

	good := newRecord(c.NewID(), "item", "tool", 1, map[string]any{})
	c.Put(good)

	flawed := newRecord(c.NewID(), "item", "tool", 1, map[string]any{"weight": -1.0})
	flawed.Invalid = true
	flawed.Errors = []schema.FieldError{{Code: schema.ErrMin, Field: "weight", Message: "must be >= 0"}}
	c.Put(flawed)

	rejected := newRecord(c.NewID(), "item", "spell", 1, map[string]any{})
	c.Reject(rejected)

	assert.Len(t, c.List("item", "tool"), 2)
	assert.Len(t, c.List("ITEM", ""), 2)
	assert.Empty(t, c.List("item", "spell"))

	invalid := c.Invalid()
	require.Len(t, invalid, 2)
	assert.Equal(t, flawed.ID, invalid[0].ID)
	assert.True(t, invalid[1].Invalid)

	_, ok := c.Get("item", "spell", rejected.ID)
	assert.False(t, ok)
	_, ok = c.InvalidRecord(rejected.ID)
	assert.True(t, ok)

	// исправленная запись уходит из списка невалидных
	fixed := flawed.Clone()
	fixed.Invalid = false
	fixed.Errors = nil
	c.Put(fixed)
	accepted, inv := c.Counts()
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 1, inv)

	c.Remove(good.ID)
	_, ok = c.Get("item", "tool", good.ID)
	assert.False(t, ok)
}

func TestCollectionIDsAreOrdered(t *testing.T) {
	c := NewCollection()
	prev := ""
	for i := 0; i < 50; i++ {
		id := c.NewID()
		assert.Len(t, id, 26)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestFlatten(t *testing.T) {
	rec := newRecord("01", "item", "tool", 4, map[string]any{"weight": 1.0, "type": "clash"})
	flat := Flatten(rec)
	assert.Equal(t, "01", flat["id"])
	assert.Equal(t, int64(4), flat["version"])
	assert.Equal(t, "tool", flat["type"])
	assert.Equal(t, "clash", flat["system.type"])
	assert.Equal(t, 1.0, flat["weight"])
	assert.NotContains(t, flat, "invalid")
}

func TestReadWriteExports(t *testing.T) {
	docs, many, err := ReadExports(strings.NewReader(`{"name":"Thieves' Tools","kind":"item","type":"tool","system":{"weight":1}}`))
	require.NoError(t, err)
	assert.False(t, many)
	require.Len(t, docs, 1)
	assert.Equal(t, "tool", docs[0].Type)
	assert.Equal(t, 1.0, docs[0].System["weight"])
	assert.Equal(t, "Thieves' Tools", docs[0].Extra["name"])

	var buf bytes.Buffer
	require.NoError(t, WriteExports(&buf, docs, many))
	assert.Contains(t, buf.String(), `"name": "Thieves' Tools"`)
	assert.True(t, strings.HasPrefix(buf.String(), "{"))

	docs, many, err = ReadExports(strings.NewReader(` [{"kind":"actor","type":"npc"}]`))
	require.NoError(t, err)
	assert.True(t, many)
	assert.Equal(t, map[string]any{}, docs[0].System)

	_, _, err = ReadExports(strings.NewReader(`{"kind":"actor"}`))
	assert.Error(t, err)
	_, _, err = ReadExports(strings.NewReader(`{"kind":"actor","type":"npc","system":[]}`))
	assert.Error(t, err)
}
