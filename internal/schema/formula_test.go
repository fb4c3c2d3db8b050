package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckFormula(t *testing.T) {
	cases := []struct {
		formula       string
		deterministic bool
		wantErr       bool
		nondet        bool
	}{
		{"", true, false, false},
		{"1d20 + @abilities.str.mod", false, false, false},
		{"1d20 + @abilities.str.mod", true, true, true},
		{"d8", true, true, true},
		{"4d6kh3", true, true, true},
		{"1d%", true, true, true},
		{"4dF", true, true, true},
		{"2d(@details.level)", true, true, true},
		{"2d6[fire]", true, true, true},
		{"10 + @abilities.dex.mod", true, false, false},
		{"floor(@details.level / 2)", true, false, false},
		{"round(@attributes.hp.max * 0.5)", true, false, false},
		{"+2", true, false, false},
		{"3 [fire]", true, false, false},
		{"@scale.druid.dice", true, false, false},
		{"(1 + 2", false, true, false},
		{"1 + 2)", false, true, false},
		{"5 +", false, true, false},
		{"* 5", false, true, false},
		{"1; drop", false, true, false},
		{"max()", false, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.formula, func(t *testing.T) {
			err := CheckFormula(tc.formula, tc.deterministic)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tc.nondet, errors.Is(err, ErrNondeterministicFormula))
		})
	}
}

func TestHasDice(t *testing.T) {
	assert.True(t, HasDice("1d6"))
	assert.True(t, HasDice("@mod + d4"))
	assert.False(t, HasDice("@abilities.dex.mod"))
	assert.False(t, HasDice("round(5)"))
	assert.False(t, HasDice("add 5"))
}
