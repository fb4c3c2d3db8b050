package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mc3e/internal/document"
	"mc3e/internal/document/storetest"
	"mc3e/internal/reference"
	"mc3e/internal/schema"
)

func registry(t *testing.T) *schema.Registry {
	t.Helper()
	ref, err := reference.LoadEmbedded()
	require.NoError(t, err)
	reg, err := schema.Load("", ref)
	require.NoError(t, err)
	return reg
}

func TestStoreConformance(t *testing.T) {
	reg := registry(t)
	storetest.Run(t, func(t *testing.T) document.Store {
		st, err := Open(context.Background(), ":memory:", reg, "mc3e")
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		return st
	})
}

func TestOpenFileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := registry(t)
	path := filepath.Join(t.TempDir(), "world.db")

	st, err := Open(ctx, path, reg, "mc3e")
	require.NoError(t, err)
	require.NoError(t, st.SetSetting(ctx, "strictValidation", "false"))
	require.NoError(t, st.Close())

	st, err = Open(ctx, path, reg, "mc3e")
	require.NoError(t, err)
	defer st.Close()
	v, ok, err := st.Setting(ctx, "strictValidation")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", v)
}

func TestUnknownKind(t *testing.T) {
	st, err := Open(context.Background(), ":memory:", registry(t), "mc3e")
	require.NoError(t, err)
	defer st.Close()
	_, err = st.List(context.Background(), "scene")
	assert.ErrorIs(t, err, schema.ErrUnknownType)
}

func TestDDLCoversKinds(t *testing.T) {
	stmts := DDL(registry(t), "mc3e")
	joined := ""
	for _, s := range stmts {
		joined += s + "\n"
	}
	for _, tbl := range []string{`"mc3e_settings"`, `"mc3e_actors"`, `"mc3e_items"`, `"mc3e_journals"`} {
		assert.Contains(t, joined, tbl)
	}
}
