package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mc3e/internal/i18n"
	"mc3e/internal/reference"
	"mc3e/internal/schema"
)

func fixtures(t *testing.T) (*reference.Config, Localizer) {
	t.Helper()
	ref, err := reference.LoadEmbedded()
	require.NoError(t, err)
	bundle, err := i18n.LoadEmbedded()
	require.NoError(t, err)
	return ref, bundle.Localizer(i18n.BaseLocale)
}

func migratedRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	ref, loc := fixtures(t)
	reg, err := schema.Load("", ref)
	require.NoError(t, err)
	require.NoError(t, Register(reg, ref, loc))
	reg.Seal()
	return reg
}

func TestAttunement(t *testing.T) {
	cases := []struct {
		name   string
		source map[string]any
		want   any
		has    bool
	}{
		{"attuned true", map[string]any{"attuned": true}, 2.0, true},
		{"attuned false", map[string]any{"attuned": false}, 0.0, true},
		{"attuned null", map[string]any{"attuned": nil}, 0.0, true},
		{"attuned number", map[string]any{"attuned": 1}, 2.0, true},
		{"already set", map[string]any{"attuned": true, "attunement": 1.0}, 1.0, true},
		{"nothing to migrate", map[string]any{}, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			Attunement(tc.source)
			v, has := tc.source["attunement"]
			assert.Equal(t, tc.has, has)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestEquippedAndWeight(t *testing.T) {
	src := map[string]any{"equipped": nil}
	Equipped(src)
	Weight(src)
	assert.Equal(t, false, src["equipped"])
	assert.Equal(t, 0.0, src["weight"])

	src = map[string]any{"equipped": true, "weight": 5.0}
	Equipped(src)
	Weight(src)
	assert.Equal(t, true, src["equipped"])
	assert.Equal(t, 5.0, src["weight"])
}

func TestPrice(t *testing.T) {
	structured := map[string]any{"value": 10.0, "denomination": "sp"}
	src := map[string]any{"price": structured}
	Price(src)
	assert.Equal(t, map[string]any{"value": 10.0, "denomination": "sp"}, src["price"])

	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"number", 12.0, 12},
		{"numeric string", "7.5", 7.5},
		{"garbage", "cheap", 0},
		{"null", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := map[string]any{"price": tc.in}
			Price(src)
			assert.Equal(t, map[string]any{"value": tc.want, "denomination": "gp"}, src["price"])

			Price(src)
			assert.Equal(t, map[string]any{"value": tc.want, "denomination": "gp"}, src["price"])
		})
	}

	src = map[string]any{}
	Price(src)
	assert.Equal(t, map[string]any{"value": 0.0, "denomination": "gp"}, src["price"])
}

func TestRarity(t *testing.T) {
	ref, loc := fixtures(t)
	step := Rarity(ref, loc)

	cases := []struct {
		in   any
		want string
	}{
		{"Very Rare", "veryRare"},
		{"VERY RARE", "veryRare"},
		{"veryrare", "veryRare"},
		{"rare", "rare"},
		{" Legendary ", "legendary"},
		{"mythic", ""},
		{nil, ""},
		{3.0, ""},
		{"", ""},
	}
	for _, tc := range cases {
		src := map[string]any{"rarity": tc.in}
		step(src)
		assert.Equal(t, tc.want, src["rarity"], "rarity %v", tc.in)
	}

	src := map[string]any{}
	step(src)
	assert.NotContains(t, src, "rarity")
}

func TestActivatedFields(t *testing.T) {
	src := map[string]any{
		"duration": map[string]any{"value": 10.0, "units": "minute"},
		"uses":     map[string]any{"value": "", "max": 3, "per": ""},
		"range":    map[string]any{"value": "", "long": 60.0, "units": nil},
		"target":   map[string]any{"value": 1.0, "width": "", "units": nil, "type": nil},
		"consume":  map[string]any{"amount": " ", "type": nil},
	}
	FormulaFields(src)
	Ranges(src)

	assert.Equal(t, "10", src["duration"].(map[string]any)["value"])
	uses := src["uses"].(map[string]any)
	assert.Equal(t, "3", uses["max"])
	assert.Nil(t, uses["value"])
	assert.Nil(t, uses["per"])
	rng := src["range"].(map[string]any)
	assert.Nil(t, rng["value"])
	assert.Equal(t, 60.0, rng["long"])
	assert.Equal(t, "", rng["units"])
	target := src["target"].(map[string]any)
	assert.Nil(t, target["width"])
	assert.Equal(t, "", target["units"])
	assert.Equal(t, "", target["type"])
	consume := src["consume"].(map[string]any)
	assert.Nil(t, consume["amount"])
	assert.Equal(t, "", consume["type"])

	// строковые формулы не трогаем
	src = map[string]any{"duration": map[string]any{"value": "@item.level"}}
	FormulaFields(src)
	assert.Equal(t, "@item.level", src["duration"].(map[string]any)["value"])
}

func TestAttackBonusAndSave(t *testing.T) {
	for in, want := range map[any]any{2.0: "2", 0.0: "", "0": "", "@prof": "@prof", -1: "-1"} {
		src := map[string]any{"attackBonus": in}
		AttackBonus(src)
		assert.Equal(t, want, src["attackBonus"], "attackBonus %v", in)
	}

	src := map[string]any{"save": map[string]any{"ability": nil, "dc": "13", "scaling": ""}}
	Save(src)
	assert.Equal(t, map[string]any{"ability": "", "dc": 13.0, "scaling": "spell"}, src["save"])

	src = map[string]any{"save": map[string]any{"dc": "hard", "scaling": "flat"}}
	Save(src)
	assert.Equal(t, map[string]any{"dc": nil, "scaling": "flat"}, src["save"])
}

func TestSpellSteps(t *testing.T) {
	src := map[string]any{
		"components": map[string]any{"vocal": true, "somatic": "yes", "material": false, "ritual": 1},
		"scaling":    map[string]any{"mode": ""},
	}
	SpellComponents(src)
	SpellScaling(src)
	assert.Equal(t, map[string]any{"vocal": true, "material": false}, src["components"])
	assert.Equal(t, "none", src["scaling"].(map[string]any)["mode"])

	src = map[string]any{"scaling": map[string]any{"mode": nil}}
	SpellScaling(src)
	assert.Equal(t, "none", src["scaling"].(map[string]any)["mode"])

	src = map[string]any{"scaling": map[string]any{"mode": "level"}}
	SpellScaling(src)
	assert.Equal(t, "level", src["scaling"].(map[string]any)["mode"])

	src = map[string]any{"scaling": map[string]any{}}
	SpellScaling(src)
	assert.NotContains(t, src["scaling"], "mode")
}

func TestToolAbility(t *testing.T) {
	src := map[string]any{"ability": []any{"int", "wis"}}
	ToolAbility(src)
	assert.Equal(t, "int", src["ability"])

	src = map[string]any{"ability": []any{}}
	ToolAbility(src)
	assert.NotContains(t, src, "ability")

	src = map[string]any{"ability": "dex"}
	ToolAbility(src)
	assert.Equal(t, "dex", src["ability"])
}

func TestParseCreatureType(t *testing.T) {
	ref, loc := fixtures(t)
	cases := []struct {
		in   string
		want CreatureType
	}{
		{"Swarm of Rats (Giant)", CreatureType{Value: "custom", Custom: "Rats", Subtype: "Giant", Swarm: "tiny"}},
		{"swarm of tiny beasts", CreatureType{Value: "beast", Swarm: "tiny"}},
		{"Swarm of Medium Undead", CreatureType{Value: "undead", Swarm: "med"}},
		{"humanoid (elf)", CreatureType{Value: "humanoid", Subtype: "Elf"}},
		{"Dragons", CreatureType{Value: "dragon"}},
		{"fey", CreatureType{Value: "fey"}},
		{"Aberration (shapechanger, goblinoid)", CreatureType{Value: "aberration", Subtype: "Shapechanger, Goblinoid"}},
		{"giant spider", CreatureType{Value: "custom", Custom: "Giant Spider"}},
		{"  garbled (text  ", CreatureType{Value: "custom", Custom: "garbled (text"}},
		{"", CreatureType{Value: "custom"}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseCreatureType(tc.in, ref, loc))
		})
	}
}

func TestNPCType(t *testing.T) {
	ref, loc := fixtures(t)
	step := NPCType(ref, loc)

	src := map[string]any{"details": map[string]any{"type": "beast"}}
	step(src)
	assert.Equal(t, map[string]any{"value": "beast", "subtype": "", "swarm": "", "custom": ""},
		src["details"].(map[string]any)["type"])

	structured := map[string]any{"value": "fey", "subtype": "", "swarm": "", "custom": ""}
	src = map[string]any{"details": map[string]any{"type": structured}}
	step(src)
	assert.Equal(t, structured, src["details"].(map[string]any)["type"])

	src = map[string]any{"type": "humanoid (elf)"}
	step(src)
	assert.NotContains(t, src, "type")
	assert.Equal(t, "humanoid", src["details"].(map[string]any)["type"].(map[string]any)["value"])

	src = map[string]any{"details": map[string]any{}}
	step(src)
	assert.NotContains(t, src["details"], "type")
}

func TestInitiative(t *testing.T) {
	cases := []struct {
		name string
		init map[string]any
		want map[string]any
	}{
		{"value only", map[string]any{"value": 3.0}, map[string]any{"bonus": "3"}},
		{"negative with bonus", map[string]any{"value": -2.0, "bonus": 1.0}, map[string]any{"bonus": "1 - 2"}},
		{"positive with bonus", map[string]any{"value": 2, "bonus": 1}, map[string]any{"bonus": "1 + 2"}},
		{"string bonus wins", map[string]any{"value": 2.0, "bonus": "@prof"}, map[string]any{"value": 2.0, "bonus": "@prof"}},
		{"zero value", map[string]any{"value": 0.0, "bonus": ""}, map[string]any{"value": 0.0, "bonus": ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := map[string]any{"attributes": map[string]any{"init": tc.init}}
			Initiative(src)
			assert.Equal(t, tc.want, src["attributes"].(map[string]any)["init"])
		})
	}
}

func TestRegisterAttachesSteps(t *testing.T) {
	reg := migratedRegistry(t)

	tool, err := reg.Lookup("item", "tool")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"item.physical/price",
		"item.physical/rarity",
		"item.physical/weight",
		"item.equippable/attunement",
		"item.equippable/equipped",
		"item.tool/ability",
	}, filterSteps(tool.Steps(), "item.physical/", "item.equippable/", "item.tool/"))

	npc, err := reg.Lookup("actor", "npc")
	require.NoError(t, err)
	assert.Equal(t, []string{"actor.npc/creatureType", "actor.npc/initiative"}, npc.Steps())

	// реестр запечатан: повторная регистрация невозможна
	ref, loc := fixtures(t)
	assert.ErrorIs(t, Register(reg, ref, loc), schema.ErrSealed)
}

// filterSteps оставляет шаги с указанными префиксами, сохраняя порядок шаблонов сущности.
func filterSteps(steps []string, prefixes ...string) []string {
	var out []string
	for _, s := range steps {
		for _, p := range prefixes {
			if len(s) >= len(p) && s[:len(p)] == p {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func TestPrepareLegacyRecords(t *testing.T) {
	reg := migratedRegistry(t)

	cases := []struct {
		kind, typ string
		source    map[string]any
		check     func(t *testing.T, data map[string]any)
	}{
		{
			"item", "tool",
			map[string]any{
				"attuned":  true,
				"price":    "25",
				"rarity":   "Very Rare",
				"weight":   nil,
				"ability":  []any{"wis", "int"},
				"equipped": nil,
			},
			func(t *testing.T, data map[string]any) {
				assert.NotContains(t, data, "attuned")
				assert.Equal(t, 2.0, data["attunement"])
				assert.Equal(t, map[string]any{"value": 25.0, "denomination": "gp"}, data["price"])
				assert.Equal(t, "veryRare", data["rarity"])
				assert.Equal(t, 0.0, data["weight"])
				assert.Equal(t, "wis", data["ability"])
				assert.Equal(t, false, data["equipped"])
			},
		},
		{
			"item", "spell",
			map[string]any{
				"components":  map[string]any{"vocal": true, "somatic": "x"},
				"scaling":     map[string]any{"mode": ""},
				"duration":    map[string]any{"value": 1, "units": "minute"},
				"uses":        map[string]any{"max": 3, "per": ""},
				"save":        map[string]any{"ability": nil, "dc": "13", "scaling": ""},
				"attackBonus": 0,
			},
			func(t *testing.T, data map[string]any) {
				assert.Equal(t, map[string]any{"vocal": true}, data["components"])
				assert.Equal(t, "none", data["scaling"].(map[string]any)["mode"])
				assert.Equal(t, "1", data["duration"].(map[string]any)["value"])
				assert.Equal(t, "3", data["uses"].(map[string]any)["max"])
				assert.Equal(t, 13.0, data["save"].(map[string]any)["dc"])
				assert.Equal(t, "", data["attackBonus"])
			},
		},
		{
			"actor", "npc",
			map[string]any{
				"details":    map[string]any{"type": "Swarm of Rats (Giant)"},
				"attributes": map[string]any{"init": map[string]any{"value": 2}},
			},
			func(t *testing.T, data map[string]any) {
				details := data["details"].(map[string]any)
				assert.Equal(t, map[string]any{"value": "custom", "subtype": "Giant", "swarm": "tiny", "custom": "Rats"}, details["type"])
				init := data["attributes"].(map[string]any)["init"].(map[string]any)
				assert.Equal(t, "2", init["bonus"])
				assert.NotContains(t, init, "value")
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.kind+"."+tc.typ, func(t *testing.T) {
			e, err := reg.Lookup(tc.kind, tc.typ)
			require.NoError(t, err)

			data, err := e.Prepare(tc.source)
			require.NoError(t, err, "%v", schema.FieldErrors(err))
			tc.check(t, data)

			// повторная миграция ничего не меняет
			before := schema.DeepCopyMap(data)
			e.Migrate(data)
			assert.Equal(t, before, data)
		})
	}
}

func TestCheckVersion(t *testing.T) {
	m := reference.Manifest{Version: "2.0.3", NeedsMigrationVersion: "2.0.0", CompatibleMigrationVersion: "0.80.0"}

	cases := []struct {
		name      string
		stored    string
		documents int
		action    Action
		tooOld    bool
	}{
		{"empty world", "", 0, ActionRecord, false},
		{"unversioned world with documents", "", 5, ActionMigrate, false},
		{"current", "2.0.3", 5, ActionNone, false},
		{"equal to threshold", "2.0.0", 5, ActionNone, false},
		{"needs migration", "1.6.0", 5, ActionMigrate, false},
		{"older than compatible", "0.75.0", 5, ActionMigrate, true},
		{"garbage", "latest", 5, ActionMigrate, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := CheckVersion(tc.stored, tc.documents, m)
			assert.Equal(t, tc.action, p.Action)
			assert.Equal(t, tc.tooOld, p.TooOld)
			assert.Equal(t, "2.0.3", p.Target)
			if tc.tooOld {
				assert.Equal(t, WarningTooOld, p.Warning)
			} else {
				assert.Empty(t, p.Warning)
			}
		})
	}
}

func TestIsNewer(t *testing.T) {
	assert.True(t, IsNewer("2.0.0", "1.9.9"))
	assert.True(t, IsNewer("v2.0.0", "1.10.0"))
	assert.False(t, IsNewer("1.10.0", "1.10.0"))
	assert.False(t, IsNewer("1.2.0", "1.10.0"))
	assert.True(t, IsNewer("0.1.0", "not-a-version"))
}
