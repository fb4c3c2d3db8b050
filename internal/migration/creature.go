package migration

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mc3e/internal/reference"
)

// CreatureType: структурированный тип существа NPC.
type CreatureType struct {
	Value   string
	Subtype string
	Swarm   string
	Custom  string
}

func (c CreatureType) Map() map[string]any {
	return map[string]any{
		"value":   c.Value,
		"subtype": c.Subtype,
		"swarm":   c.Swarm,
		"custom":  c.Custom,
	}
}

var (
	creatureTypeRe = regexp.MustCompile(`(?i)^(?:swarm of (?P<size>[\w-]+) )?(?P<type>[^(]+?)(?:\((?P<subtype>[^)]+)\))?$`)
	swarmMarkerRe  = regexp.MustCompile(`(?i)^swarm of\s+`)
)

const defaultSwarmSize = "tiny"

// ParseCreatureType разбирает свободный текст вида "swarm of tiny beasts (shapechanger)".
// Тип сопоставляется с ключами creatureTypes и их подписями (в т.ч. множественными, "<ключ>Pl");
// неизвестный тип попадает в custom со значением "custom".
func ParseCreatureType(text string, ref *reference.Config, loc Localizer) CreatureType {
	original := strings.TrimSpace(text)
	m := creatureTypeRe.FindStringSubmatch(original)
	if m == nil {
		return CreatureType{Value: "custom", Custom: original}
	}
	size := strings.TrimSpace(m[creatureTypeRe.SubexpIndex("size")])
	typeName := strings.TrimSpace(m[creatureTypeRe.SubexpIndex("type")])
	subtype := strings.TrimSpace(m[creatureTypeRe.SubexpIndex("subtype")])

	var out CreatureType
	swarm := size != ""
	// "Swarm of Rats (Giant)": размер не распознан шаблоном, но маркер роя есть
	if !swarm && swarmMarkerRe.MatchString(typeName) {
		swarm = true
		typeName = strings.TrimSpace(swarmMarkerRe.ReplaceAllString(typeName, ""))
	}

	if code, ok := matchCreatureType(ref, loc, typeName); ok {
		out.Value = code
	} else {
		out.Value = "custom"
		out.Custom = titleCase(typeName)
	}
	if subtype != "" {
		out.Subtype = titleCase(subtype)
	}
	if swarm {
		out.Swarm = defaultSwarmSize
		if code, ok := matchCatalog(ref, loc, "actorSizes", size); ok {
			out.Swarm = code
		}
	}
	return out
}

// titleCase: Caser хранит состояние, поэтому новый на каждый вызов.
func titleCase(s string) string { return cases.Title(language.English).String(s) }

func matchCreatureType(ref *reference.Config, loc Localizer, name string) (string, bool) {
	needle := strings.ToLower(name)
	if needle == "" {
		return "", false
	}
	dir, ok := ref.Catalog("creatureTypes")
	if !ok {
		return "", false
	}
	for _, it := range dir.Items {
		if needle == strings.ToLower(it.Code) ||
			needle == strings.ToLower(loc.Localize(it.Name)) ||
			needle == strings.ToLower(loc.Localize(it.Name+"Pl")) {
			return it.Code, true
		}
	}
	return "", false
}

// MigrateCreatureType заменяет строковое holder[key] структурой CreatureType.
// Уже структурированное значение не трогает.
func MigrateCreatureType(holder map[string]any, key string, ref *reference.Config, loc Localizer) {
	s, ok := holder[key].(string)
	if !ok {
		return
	}
	holder[key] = ParseCreatureType(s, ref, loc).Map()
}

// NPCType: шаг сущности actor.npc: details.type из текста в структуру.
// Старые записи могли хранить текст в корневом type: он переносится в details.
func NPCType(ref *reference.Config, loc Localizer) func(map[string]any) {
	return func(source map[string]any) {
		details, ok := source["details"].(map[string]any)
		if !ok {
			if source["details"] != nil {
				return
			}
			details = map[string]any{}
		}
		if legacy, isStr := source["type"].(string); isStr {
			if _, structured := details["type"].(map[string]any); !structured {
				details["type"] = legacy
			}
			delete(source, "type")
		}
		if _, has := details["type"]; !has {
			return
		}
		MigrateCreatureType(details, "type", ref, loc)
		source["details"] = details
	}
}

// Initiative переносит устаревшее числовое attributes.init.value в формулу bonus.
func Initiative(source map[string]any) {
	attrs, ok := source["attributes"].(map[string]any)
	if !ok {
		return
	}
	ini, ok := attrs["init"].(map[string]any)
	if !ok {
		return
	}
	value, ok := numeric(ini["value"])
	if !ok || value == 0 {
		return
	}
	if _, isStr := ini["bonus"].(string); isStr {
		return
	}
	bonus := ""
	if b, ok := numeric(ini["bonus"]); ok && b != 0 {
		bonus = formatNumber(b)
	}
	switch {
	case bonus == "":
		ini["bonus"] = formatNumber(value)
	case value < 0:
		ini["bonus"] = bonus + " - " + formatNumber(-value)
	default:
		ini["bonus"] = bonus + " + " + formatNumber(value)
	}
	delete(ini, "value")
}
