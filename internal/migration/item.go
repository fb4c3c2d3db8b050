// Package migration: шаги нормализации устаревших форм записей к текущим схемам.
// Каждый шаг меняет запись на месте, идемпотентен и никогда не возвращает ошибку:
// непонятные данные приводятся к безопасному значению по умолчанию.
package migration

import (
	"math"
	"strconv"
	"strings"

	"mc3e/internal/reference"
)

// Localizer: источник локализованных подписей справочников.
type Localizer interface {
	Localize(key string) string
}

// Attunement: булев attuned -> attunement (0 | 2), если attunement ещё не задан.
func Attunement(source map[string]any) {
	attuned, hasAttuned := source["attuned"]
	if _, has := source["attunement"]; !hasAttuned || has {
		return
	}
	if truthy(attuned) {
		source["attunement"] = float64(reference.AttunementAttuned)
	} else {
		source["attunement"] = float64(reference.AttunementNone)
	}
}

// Equipped: null/отсутствие -> false.
func Equipped(source map[string]any) {
	if source["equipped"] == nil {
		source["equipped"] = false
	}
}

// Price: одиночное значение -> {value, denomination: "gp"}.
func Price(source map[string]any) {
	if _, ok := source["price"].(map[string]any); ok {
		return
	}
	value := 0.0
	if n, ok := numeric(source["price"]); ok {
		value = n
	}
	source["price"] = map[string]any{"value": value, "denomination": "gp"}
}

// Rarity возвращает шаг, приводящий свободный текст редкости к ключу itemRarity.
// Сравнение без учёта регистра с ключами и локализованными подписями; иначе "".
func Rarity(ref *reference.Config, loc Localizer) func(map[string]any) {
	return func(source map[string]any) {
		raw, ok := source["rarity"]
		if !ok {
			return
		}
		s, isStr := raw.(string)
		if isStr && ref.Has("itemRarity", s) {
			return
		}
		source["rarity"] = ""
		if !isStr {
			return
		}
		if code, found := matchCatalog(ref, loc, "itemRarity", s); found {
			source["rarity"] = code
		}
	}
}

// Weight: null/отсутствие -> 0.
func Weight(source map[string]any) {
	if source["weight"] == nil {
		source["weight"] = 0.0
	}
}

// FormulaFields: числовые duration.value и uses.max становятся строками формул.
func FormulaFields(source map[string]any) {
	for _, path := range [][2]string{{"duration", "value"}, {"uses", "max"}} {
		obj, ok := source[path[0]].(map[string]any)
		if !ok {
			continue
		}
		if _, isStr := obj[path[1]].(string); isStr {
			continue
		}
		if n, ok := numeric(obj[path[1]]); ok {
			obj[path[1]] = formatNumber(n)
		}
	}
}

// Ranges: пустые строки в числовых полях дальности, цели и зарядов -> null,
// null в строковых единицах -> "".
func Ranges(source map[string]any) {
	if r, ok := source["range"].(map[string]any); ok {
		blankToNil(r, "value", "long")
		nilToBlank(r, "units")
	}
	if t, ok := source["target"].(map[string]any); ok {
		blankToNil(t, "value", "width")
		nilToBlank(t, "units", "type")
	}
	if u, ok := source["uses"].(map[string]any); ok {
		blankToNil(u, "value", "per")
	}
	if c, ok := source["consume"].(map[string]any); ok {
		blankToNil(c, "amount")
		nilToBlank(c, "type")
	}
}

// AttackBonus: числовой бонус атаки -> строка формулы, 0 -> "".
func AttackBonus(source map[string]any) {
	switch v := source["attackBonus"].(type) {
	case string:
		if strings.TrimSpace(v) == "0" {
			source["attackBonus"] = ""
		}
	case nil:
	default:
		if n, ok := numeric(v); ok {
			if n == 0 {
				source["attackBonus"] = ""
			} else {
				source["attackBonus"] = formatNumber(n)
			}
		}
	}
}

// Save: пустой scaling -> "spell", null ability -> "", строковый dc -> число или null.
func Save(source map[string]any) {
	save, ok := source["save"].(map[string]any)
	if !ok {
		return
	}
	if s, ok := save["scaling"].(string); ok && s == "" {
		save["scaling"] = "spell"
	}
	if v, has := save["ability"]; has && v == nil {
		save["ability"] = ""
	}
	if s, ok := save["dc"].(string); ok {
		if n, num := numeric(s); num {
			save["dc"] = n
		} else {
			save["dc"] = nil
		}
	}
}

// SpellComponents: удаляет из components все не булевы значения.
func SpellComponents(source map[string]any) {
	comps, ok := source["components"].(map[string]any)
	if !ok {
		return
	}
	for k, v := range comps {
		if _, isBool := v.(bool); !isBool {
			delete(comps, k)
		}
	}
}

// SpellScaling: пустой или null scaling.mode -> "none".
func SpellScaling(source map[string]any) {
	scaling, ok := source["scaling"].(map[string]any)
	if !ok {
		return
	}
	mode, has := scaling["mode"]
	if !has {
		return
	}
	if s, isStr := mode.(string); mode == nil || (isStr && s == "") {
		scaling["mode"] = "none"
	}
}

// ToolAbility: массив способностей -> первая из них; пустой массив удаляет ключ.
func ToolAbility(source map[string]any) {
	arr, ok := source["ability"].([]any)
	if !ok {
		return
	}
	if len(arr) == 0 {
		delete(source, "ability")
		return
	}
	source["ability"] = arr[0]
}

func blankToNil(m map[string]any, keys ...string) {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) == "" {
			m[k] = nil
		}
	}
}

func nilToBlank(m map[string]any, keys ...string) {
	for _, k := range keys {
		if v, has := m[k]; has && v == nil {
			m[k] = ""
		}
	}
}

// matchCatalog ищет код справочника по ключу или локализованной подписи без учёта регистра.
func matchCatalog(ref *reference.Config, loc Localizer, catalog, text string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return "", false
	}
	dir, ok := ref.Catalog(catalog)
	if !ok {
		return "", false
	}
	for _, it := range dir.Items {
		if strings.ToLower(it.Code) == needle || strings.ToLower(loc.Localize(it.Name)) == needle {
			return it.Code, true
		}
	}
	return "", false
}

// truthy: истинность значения по правилам JSON-данных: 0, "", null и NaN ложны.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		if n, ok := number(v); ok {
			return n != 0 && !math.IsNaN(n)
		}
		return true
	}
}

// numeric: число или строка с числом (как Number.isNumeric).
func numeric(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	}
	n, ok := number(v)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case interface{ Float64() (float64, error) }:
		n, err := t.Float64()
		return n, err == nil
	}
	return 0, false
}

func formatNumber(n float64) string { return strconv.FormatFloat(n, 'f', -1, 64) }
