package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	values map[string]string
	fail   error
}

func newMapStore() *mapStore { return &mapStore{values: map[string]string{}} }

func (m *mapStore) Setting(_ context.Context, key string) (string, bool, error) {
	if m.fail != nil {
		return "", false, m.fail
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapStore) SetSetting(_ context.Context, key, value string) error {
	if m.fail != nil {
		return m.fail
	}
	m.values[key] = value
	return nil
}

var (
	gm     = User{Name: "gm", Role: RoleGamemaster}
	player = User{Name: "p", Role: RolePlayer}
)

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"":           RoleNone,
		"GameMaster": RoleGamemaster,
		" assistant": RoleAssistant,
		"player":     RolePlayer,
		"trusted":    RoleTrusted,
	} {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseRole("admin")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestIsGM(t *testing.T) {
	assert.True(t, User{Role: RoleGamemaster}.IsGM())
	assert.True(t, User{Role: RoleAssistant}.IsGM())
	assert.False(t, User{Role: RoleTrusted}.IsGM())
	assert.False(t, User{Role: RolePlayer}.IsGM())
	assert.False(t, User{}.IsGM())
}

func TestLoadStrictness(t *testing.T) {
	ctx := context.Background()

	s, err := LoadStrictness(ctx, newMapStore(), true)
	require.NoError(t, err)
	assert.True(t, s.Strict())

	st := newMapStore()
	st.values[KeyStrictValidation] = "false"
	s, err = LoadStrictness(ctx, st, true)
	require.NoError(t, err)
	assert.False(t, s.Strict())

	st.values[KeyStrictValidation] = "maybe"
	s, err = LoadStrictness(ctx, st, true)
	require.NoError(t, err)
	assert.True(t, s.Strict())

	boom := errors.New("boom")
	_, err = LoadStrictness(ctx, &mapStore{fail: boom}, true)
	assert.ErrorIs(t, err, boom)
}

func TestSetStrictRequiresGM(t *testing.T) {
	ctx := context.Background()
	st := newMapStore()
	s, err := LoadStrictness(ctx, st, true)
	require.NoError(t, err)

	assert.ErrorIs(t, s.SetStrict(ctx, player, false), ErrForbidden)
	assert.True(t, s.Strict())
	assert.NotContains(t, st.values, KeyStrictValidation)

	require.NoError(t, s.SetStrict(ctx, User{Role: RoleAssistant}, false))
	assert.False(t, s.Strict())
	assert.Equal(t, "false", st.values[KeyStrictValidation])
}

func TestConfigureDowngradesOnce(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		user    User
		strict  bool
		invalid int
		want    Outcome
	}{
		{"gm with invalid documents", gm, true, 3, Outcome{Strict: false, ReloadRequired: true}},
		{"gm without invalid documents", gm, true, 0, Outcome{Strict: true}},
		{"player never downgrades", player, true, 3, Outcome{Strict: true}},
		{"already permissive", gm, false, 3, Outcome{Strict: false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := LoadStrictness(ctx, newMapStore(), tc.strict)
			require.NoError(t, err)
			out, err := s.Configure(ctx, tc.user, tc.invalid)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
			assert.Equal(t, tc.want.Strict, s.Strict())
		})
	}
}

func TestConfigureNeverReenablesStrict(t *testing.T) {
	ctx := context.Background()
	s, err := LoadStrictness(ctx, newMapStore(), true)
	require.NoError(t, err)

	_, err = s.Configure(ctx, gm, 1)
	require.NoError(t, err)
	out, err := s.Configure(ctx, gm, 0)
	require.NoError(t, err)
	assert.False(t, out.Strict)
	assert.False(t, out.ReloadRequired)
}

func TestMigrationVersion(t *testing.T) {
	ctx := context.Background()
	st := newMapStore()

	v, err := MigrationVersion(ctx, st)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, SetMigrationVersion(ctx, st, "2.0.3"))
	v, err = MigrationVersion(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "2.0.3", v)
}
