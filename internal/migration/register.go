package migration

import (
	"fmt"

	"mc3e/internal/reference"
	"mc3e/internal/schema"
)

type attachment struct {
	target string
	name   string
	fn     schema.MigrateFunc
}

// Register привязывает все шаги миграции к шаблонам и сущностям реестра.
// Порядок внутри одной цели совпадает с порядком объявления ниже.
func Register(reg *schema.Registry, ref *reference.Config, loc Localizer) error {
	steps := []attachment{
		{"item.equippable", "attunement", Attunement},
		{"item.equippable", "equipped", Equipped},
		{"item.physical", "price", Price},
		{"item.physical", "rarity", Rarity(ref, loc)},
		{"item.physical", "weight", Weight},
		{"item.activated", "formulaFields", FormulaFields},
		{"item.activated", "ranges", Ranges},
		{"item.action", "attackBonus", AttackBonus},
		{"item.action", "save", Save},
		{"item.spell", "components", SpellComponents},
		{"item.spell", "scaling", SpellScaling},
		{"item.tool", "ability", ToolAbility},
		{"actor.npc", "creatureType", NPCType(ref, loc)},
		{"actor.npc", "initiative", Initiative},
		{"actor.character", "initiative", Initiative},
	}
	for _, s := range steps {
		if err := reg.Attach(s.target, s.name, s.fn); err != nil {
			return fmt.Errorf("register migrations: %w", err)
		}
	}
	return nil
}
