package world

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mc3e/internal/document"
	"mc3e/internal/i18n"
	"mc3e/internal/migration"
	"mc3e/internal/reference"
	"mc3e/internal/schema"
	"mc3e/internal/settings"
)

var (
	gm     = settings.User{Name: "gm", Role: settings.RoleGamemaster}
	player = settings.User{Name: "player", Role: settings.RolePlayer}
)

func newWorld(t *testing.T, st document.Store, strict bool) *World {
	t.Helper()
	ref, err := reference.LoadEmbedded()
	require.NoError(t, err)
	bundle, err := i18n.LoadEmbedded()
	require.NoError(t, err)
	loc := bundle.Localizer(i18n.BaseLocale)
	reg, err := schema.Load("", ref)
	require.NoError(t, err)
	require.NoError(t, migration.Register(reg, ref, loc))
	reg.Seal()

	w, err := New(context.Background(), Options{Registry: reg, Store: st, Localizer: loc, StrictDefault: strict})
	require.NoError(t, err)
	return w
}

func seed(t *testing.T, st document.Store, id, kind, typ string, system map[string]any) {
	t.Helper()
	now := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.Save(context.Background(), &document.Record{
		ID: id, Kind: kind, Type: typ, Version: 1,
		CreatedAt: now, UpdatedAt: now, System: system,
	}))
}

func legacyTool() map[string]any {
	return map[string]any{"attuned": true, "price": "25", "weight": nil}
}

func legacyNPC() map[string]any {
	return map[string]any{
		"details":    map[string]any{"type": "Swarm of Rats (Giant)"},
		"attributes": map[string]any{"init": map[string]any{"value": 2}},
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	st := document.NewMemoryStore()
	w := newWorld(t, st, true)

	rec, err := w.Create(ctx, "Item", "tool", map[string]any{"weight": 2, "price": "25"})
	require.NoError(t, err)
	assert.Len(t, rec.ID, 26)
	assert.Equal(t, "item", rec.Kind)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, 2.0, rec.System["weight"])
	assert.Equal(t, map[string]any{"value": 25.0, "denomination": "gp"}, rec.System["price"])
	assert.Equal(t, 1.0, rec.System["quantity"])

	stored, err := st.Get(ctx, "item", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.System, stored.System)

	updated, err := w.Update(ctx, "item", "tool", rec.ID, 1, map[string]any{"price": map[string]any{"value": 30}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, map[string]any{"value": 30.0, "denomination": "gp"}, updated.System["price"])

	_, err = w.Update(ctx, "item", "tool", rec.ID, 1, map[string]any{"weight": 3})
	assert.ErrorIs(t, err, document.ErrVersionConflict)

	_, err = w.Update(ctx, "item", "tool", rec.ID, 2, map[string]any{"weight": -1})
	require.ErrorIs(t, err, schema.ErrInvalid)
	assert.Equal(t, "weight", schema.FieldErrors(err)[0].Field)
	got, err := w.Get("item", "tool", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, 2.0, got.System["weight"])

	list, err := w.List("item", "tool")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = w.Get("item", "spell", rec.ID)
	assert.ErrorIs(t, err, document.ErrNotFound)

	require.NoError(t, w.Delete(ctx, "item", "tool", rec.ID))
	_, err = w.Get("item", "tool", rec.ID)
	assert.ErrorIs(t, err, document.ErrNotFound)
	_, err = st.Get(ctx, "item", rec.ID)
	assert.ErrorIs(t, err, document.ErrNotFound)
	assert.ErrorIs(t, w.Delete(ctx, "item", "tool", rec.ID), document.ErrNotFound)
}

func TestCreateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, document.NewMemoryStore(), false)

	_, err := w.Create(ctx, "item", "scroll", nil)
	assert.ErrorIs(t, err, schema.ErrUnknownType)

	// новые данные проверяются строго даже в нестрогом режиме
	_, err = w.Create(ctx, "item", "tool", map[string]any{"weight": -5})
	assert.ErrorIs(t, err, schema.ErrInvalid)
	assert.Empty(t, w.Invalid())
}

func TestLoadStrict(t *testing.T) {
	ctx := context.Background()
	st := document.NewMemoryStore()
	seed(t, st, "01A", "item", "tool", legacyTool())
	seed(t, st, "01B", "item", "tool", map[string]any{"weight": -3.0})
	seed(t, st, "01C", "item", "scroll", map[string]any{})

	w := newWorld(t, st, true)
	rep, err := w.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoadReport{Accepted: 1, Rejected: 2, Strict: true}, rep)

	list, err := w.List("item", "tool")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2.0, list[0].System["attunement"])

	invalid := w.Invalid()
	require.Len(t, invalid, 2)
	assert.Equal(t, schema.ErrMin, invalid[0].Errors[0].Code)
	assert.Equal(t, "type", invalid[1].Errors[0].Field)

	// загрузка не пишет в хранилище
	raw, err := st.Get(ctx, "item", "01A")
	require.NoError(t, err)
	assert.Equal(t, true, raw.System["attuned"])
}

func TestLoadPermissiveAndRepair(t *testing.T) {
	ctx := context.Background()
	st := document.NewMemoryStore()
	seed(t, st, "01A", "item", "tool", legacyTool())
	seed(t, st, "01B", "item", "tool", map[string]any{"weight": -3.0})
	seed(t, st, "01C", "item", "scroll", map[string]any{})

	w := newWorld(t, st, false)
	rep, err := w.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoadReport{Accepted: 1, Invalid: 1, Rejected: 1}, rep)

	list, err := w.List("item", "tool")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	require.Len(t, w.Invalid(), 2)

	fixed, err := w.Update(ctx, "item", "tool", "01B", 1, map[string]any{"weight": 1})
	require.NoError(t, err)
	assert.False(t, fixed.Invalid)
	assert.Equal(t, int64(2), fixed.Version)

	invalid := w.Invalid()
	require.Len(t, invalid, 1)
	assert.Equal(t, "01C", invalid[0].ID)
}

func TestStartupRecordsVersionForEmptyWorld(t *testing.T) {
	ctx := context.Background()
	st := document.NewMemoryStore()
	w := newWorld(t, st, true)

	rep, err := w.Startup(ctx, gm)
	require.NoError(t, err)
	assert.Equal(t, migration.ActionRecord, rep.Plan.Action)
	assert.Nil(t, rep.Migration)

	v, err := settings.MigrationVersion(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "2.0.3", v)
}

func TestStartupMigratesLegacyWorld(t *testing.T) {
	ctx := context.Background()
	st := document.NewMemoryStore()
	require.NoError(t, settings.SetMigrationVersion(ctx, st, "1.6.0"))
	seed(t, st, "01A", "item", "tool", legacyTool())
	seed(t, st, "01B", "actor", "npc", legacyNPC())

	w := newWorld(t, st, true)
	rep, err := w.Startup(ctx, gm)
	require.NoError(t, err)
	assert.Equal(t, migration.ActionMigrate, rep.Plan.Action)
	assert.False(t, rep.Plan.TooOld)
	require.NotNil(t, rep.Migration)
	assert.Equal(t, MigrationReport{From: "1.6.0", To: "2.0.3", Migrated: 2}, *rep.Migration)
	assert.Equal(t, 2, rep.Load.Accepted)

	tool, err := st.Get(ctx, "item", "01A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), tool.Version)
	assert.Equal(t, 2.0, tool.System["attunement"])
	assert.NotContains(t, tool.System, "attuned")

	npc, err := st.Get(ctx, "actor", "01B")
	require.NoError(t, err)
	details := npc.System["details"].(map[string]any)
	assert.Equal(t, "custom", details["type"].(map[string]any)["value"])

	v, err := settings.MigrationVersion(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "2.0.3", v)

	// второй запуск ничего не мигрирует
	rep, err = w.Startup(ctx, gm)
	require.NoError(t, err)
	assert.Equal(t, migration.ActionNone, rep.Plan.Action)

	mr, err := w.MigrateWorld(ctx, gm)
	require.NoError(t, err)
	assert.Equal(t, 2, mr.Unchanged)
	assert.Zero(t, mr.Migrated)
}

func TestStartupTooOldWarns(t *testing.T) {
	ctx := context.Background()
	st := document.NewMemoryStore()
	require.NoError(t, settings.SetMigrationVersion(ctx, st, "0.75.0"))
	seed(t, st, "01A", "item", "tool", legacyTool())

	w := newWorld(t, st, true)
	rep, err := w.Startup(ctx, gm)
	require.NoError(t, err)
	assert.True(t, rep.Plan.TooOld)

	status, err := w.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status.Warnings, 1)
	assert.Equal(t, migration.WarningTooOld, status.Warnings[0].Key)
	assert.Contains(t, status.Warnings[0].Message, "too old")
	assert.Equal(t, "2.0.3", status.MigrationVersion)
	assert.False(t, status.MigrationNeeded)
}

func TestStartupWithoutGamemaster(t *testing.T) {
	ctx := context.Background()
	st := document.NewMemoryStore()
	require.NoError(t, settings.SetMigrationVersion(ctx, st, "1.6.0"))
	seed(t, st, "01A", "item", "tool", legacyTool())
	seed(t, st, "01B", "item", "tool", map[string]any{"weight": -3.0})

	w := newWorld(t, st, true)
	rep, err := w.Startup(ctx, player)
	require.NoError(t, err)
	assert.Equal(t, migration.ActionMigrate, rep.Plan.Action)
	assert.Nil(t, rep.Migration)
	assert.Equal(t, settings.Outcome{Strict: true}, rep.Strictness)
	assert.Equal(t, 1, rep.Load.Rejected)

	v, err := settings.MigrationVersion(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "1.6.0", v)

	status, err := w.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.MigrationNeeded)

	_, err = w.MigrateWorld(ctx, player)
	assert.ErrorIs(t, err, settings.ErrForbidden)
}

func TestStartupTooOldWarnsWithoutGamemaster(t *testing.T) {
	ctx := context.Background()
	st := document.NewMemoryStore()
	require.NoError(t, settings.SetMigrationVersion(ctx, st, "0.75.0"))
	seed(t, st, "01A", "item", "tool", legacyTool())

	w := newWorld(t, st, true)
	rep, err := w.Startup(ctx, player)
	require.NoError(t, err)
	assert.True(t, rep.Plan.TooOld)
	assert.Nil(t, rep.Migration)

	status, err := w.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status.Warnings, 1)
	assert.Equal(t, migration.WarningTooOld, status.Warnings[0].Key)
	assert.Equal(t, "0.75.0", status.MigrationVersion)
	assert.True(t, status.MigrationNeeded)

	// мастер мигрирует позже: предупреждение не дублируется
	_, err = w.MigrateWorld(ctx, gm)
	require.NoError(t, err)
	status, err = w.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, status.Warnings, 1)
}

func TestStartupDisablesStrictWithInvalidDocuments(t *testing.T) {
	ctx := context.Background()
	st := document.NewMemoryStore()
	require.NoError(t, settings.SetMigrationVersion(ctx, st, "2.0.3"))
	seed(t, st, "01A", "item", "tool", map[string]any{})
	seed(t, st, "01B", "item", "tool", map[string]any{"weight": -3.0})

	w := newWorld(t, st, true)
	rep, err := w.Startup(ctx, gm)
	require.NoError(t, err)
	assert.Equal(t, settings.Outcome{Strict: false, ReloadRequired: true}, rep.Strictness)
	assert.Equal(t, LoadReport{Accepted: 1, Invalid: 1}, rep.Load)
	assert.False(t, w.Strict())

	raw, ok, err := st.Setting(ctx, settings.KeyStrictValidation)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "false", raw)

	// мастер может включить строгий режим обратно
	loaded, err := w.SetStrict(ctx, gm, true)
	require.NoError(t, err)
	assert.Equal(t, LoadReport{Accepted: 1, Rejected: 1, Strict: true}, loaded)

	_, err = w.SetStrict(ctx, player, false)
	assert.ErrorIs(t, err, settings.ErrForbidden)
	assert.True(t, w.Strict())
}

func TestStatusCounts(t *testing.T) {
	ctx := context.Background()
	st := document.NewMemoryStore()
	w := newWorld(t, st, true)
	_, err := w.Startup(ctx, gm)
	require.NoError(t, err)

	_, err = w.Create(ctx, "item", "tool", nil)
	require.NoError(t, err)
	_, err = w.Create(ctx, "actor", "npc", nil)
	require.NoError(t, err)

	status, err := w.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.0.3", status.Version)
	assert.Equal(t, 2, status.Documents)
	assert.Equal(t, 1, status.Kinds["item"])
	assert.Equal(t, 1, status.Kinds["actor"])
	assert.Equal(t, "en-US", status.Locale)
	assert.Empty(t, status.Warnings)
}

func TestMergePatch(t *testing.T) {
	dst := map[string]any{
		"price":  map[string]any{"value": 1.0, "denomination": "gp"},
		"weight": 2.0,
		"tags":   []any{"a"},
	}
	got := mergePatch(dst, map[string]any{
		"price":  map[string]any{"value": 5.0},
		"tags":   []any{"b"},
		"weight": nil,
		"new":    map[string]any{"x": 1.0},
	})
	assert.Equal(t, map[string]any{
		"price":  map[string]any{"value": 5.0, "denomination": "gp"},
		"weight": nil,
		"tags":   []any{"b"},
		"new":    map[string]any{"x": 1.0},
	}, got)
	assert.Equal(t, map[string]any{"a": 1.0}, mergePatch(nil, map[string]any{"a": 1.0}))
}
