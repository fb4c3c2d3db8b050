package api

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"mc3e/internal/document"
	"mc3e/internal/schema"
)

// ==== Типы сортировки и параметров листинга ====

type SortKey struct {
	Field string
	Desc  bool
}

type ListParams struct {
	Limit  int
	Offset int
	Sort   []SortKey
	Q      string
	Nulls  string // "last" (default) | "first"
}

// служебные параметры листинга, не фильтры
var reservedParams = map[string]bool{
	"q": true, "offset": true, "limit": true, "sort": true, "order": true,
	"_offset": true, "_limit": true, "_sort": true, "_order": true, "nulls": true,
}

// ==== Парсинг query-параметров ====

func parseListParams(q url.Values) ListParams {
	limit := 50
	lv := q.Get("_limit")
	if lv == "" {
		lv = q.Get("limit")
	}
	if lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n >= 0 && n <= 1000 {
			limit = n
		}
	}

	offset := 0
	ov := q.Get("_offset")
	if ov == "" {
		ov = q.Get("offset")
	}
	if ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			offset = n
		}
	}

	var sortKeys []SortKey
	sv := strings.TrimSpace(q.Get("_sort"))
	if sv == "" {
		sv = strings.TrimSpace(q.Get("sort"))
	}
	for _, p := range strings.Split(sv, ",") {
		p = strings.TrimSpace(p)
		desc := strings.HasPrefix(p, "-")
		p = strings.TrimLeft(p, "+-")
		if p != "" {
			sortKeys = append(sortKeys, SortKey{Field: p, Desc: desc})
		}
	}

	nulls := strings.ToLower(strings.TrimSpace(q.Get("nulls")))
	if nulls != "first" && nulls != "last" {
		nulls = "last"
	}

	return ListParams{
		Limit:  limit,
		Offset: offset,
		Sort:   sortKeys,
		Q:      strings.TrimSpace(q.Get("q")),
		Nulls:  nulls,
	}
}

// page режет срез по offset/limit.
func page(recs []*document.Record, lp ListParams) []*document.Record {
	start := lp.Offset
	if start > len(recs) {
		start = len(recs)
	}
	end := start + lp.Limit
	if end > len(recs) {
		end = len(recs)
	}
	return recs[start:end]
}

// ==== Значения полей ====

// valueAt достаёт значение служебного поля или поля system по пути "price.value".
func valueAt(rec *document.Record, path string) (any, bool) {
	switch path {
	case "id":
		return rec.ID, true
	case "version":
		return float64(rec.Version), true
	case "created_at":
		return rec.CreatedAt.Format(time.RFC3339), true
	case "updated_at":
		return rec.UpdatedAt.Format(time.RFC3339), true
	}
	var cur any = rec.System
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// fieldKind: как сравнивать поле: number, datetime, text, bool; "": поля нет.
func fieldKind(e *schema.Entity, path string) string {
	switch path {
	case "id":
		return "text"
	case "version":
		return "number"
	case "created_at", "updated_at":
		return "datetime"
	}
	f, ok := schema.Lookup(e.Fields, path)
	if !ok {
		return ""
	}
	switch f.Kind {
	case schema.KindNumber, schema.KindInt:
		return "number"
	case schema.KindBool:
		return "bool"
	default:
		return "text"
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ==== Фильтры ====

type filterCond struct {
	field string
	op    string // eq, ne, in, gt, gte, lt, lte
	vals  []string
}

// buildConds разбирает условия вида:
//
//	rarity=rare
//	rarity__in=rare,veryRare
//	price.value__gte=100
func buildConds(q url.Values) []filterCond {
	var out []filterCond
	for key, vals := range q {
		if reservedParams[key] || len(vals) == 0 || strings.TrimSpace(vals[0]) == "" {
			continue
		}
		field, op := key, "eq"
		if i := strings.LastIndex(key, "__"); i > 0 {
			field, op = key[:i], key[i+2:]
		}
		v := vals[0]
		if strings.HasPrefix(v, "in:") {
			op = "in"
			v = strings.TrimPrefix(v, "in:")
		}
		parts := []string{v}
		if op == "in" {
			parts = parts[:0]
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					parts = append(parts, p)
				}
			}
		}
		if field != "" && len(parts) > 0 {
			out = append(out, filterCond{field: field, op: op, vals: parts})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].field < out[j].field })
	return out
}

func compareByKind(kind string, got any, op string, want string) bool {
	switch op {
	case "eq":
		return strings.EqualFold(toString(got), want)
	case "ne":
		return !strings.EqualFold(toString(got), want)
	case "in":
		gs := toString(got)
		for _, w := range strings.Split(want, ",") {
			if strings.EqualFold(gs, strings.TrimSpace(w)) {
				return true
			}
		}
		return false
	}

	// сравнения: только для чисел и дат
	var rel int
	switch kind {
	case "number":
		gv, ok := got.(float64)
		if !ok {
			return false
		}
		wv, err := strconv.ParseFloat(strings.TrimSpace(want), 64)
		if err != nil {
			return false
		}
		rel = compareFloat(gv, wv)
	case "datetime":
		gs, ok := got.(string)
		if !ok {
			return false
		}
		gd, err := time.Parse(time.RFC3339, gs)
		if err != nil {
			return false
		}
		wd, err := time.Parse(time.RFC3339, strings.TrimSpace(want))
		if err != nil {
			return false
		}
		rel = gd.Compare(wd)
	default:
		return false
	}
	switch op {
	case "gt":
		return rel > 0
	case "gte":
		return rel >= 0
	case "lt":
		return rel < 0
	case "lte":
		return rel <= 0
	}
	return false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// filterWithOps применяет условия полей и полнотекстовый q по строковым значениям.
// Условие по неизвестному полю не совпадает ни с чем.
func filterWithOps(all []*document.Record, e *schema.Entity, q url.Values) []*document.Record {
	conds := buildConds(q)
	needle := strings.ToLower(strings.TrimSpace(q.Get("q")))
	if len(conds) == 0 && needle == "" {
		return all
	}
	out := make([]*document.Record, 0, len(all))

loopRecs:
	for _, r := range all {
		for _, cnd := range conds {
			kind := fieldKind(e, cnd.field)
			if kind == "" {
				continue loopRecs
			}
			got, _ := valueAt(r, cnd.field)
			if !compareByKind(kind, got, cnd.op, strings.Join(cnd.vals, ",")) {
				continue loopRecs
			}
		}
		if needle != "" && !containsText(r.System, needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func containsText(v any, needle string) bool {
	switch t := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(t), needle)
	case map[string]any:
		for _, ev := range t {
			if containsText(ev, needle) {
				return true
			}
		}
	case []any:
		for _, ev := range t {
			if containsText(ev, needle) {
				return true
			}
		}
	}
	return false
}

// ==== Сортировка с политикой nulls ====

func cmpByKey(a, b *document.Record, key string, nullsPolicy string, desc bool) int {
	va, oka := valueAt(a, key)
	vb, okb := valueAt(b, key)
	na := !oka || va == nil
	nb := !okb || vb == nil

	if na && nb {
		return 0
	}
	if na != nb {
		if nullsPolicy == "last" {
			if na {
				return +1
			}
			return -1
		}
		if na {
			return -1
		}
		return +1
	}

	var rel int
	fa, aNum := va.(float64)
	fb, bNum := vb.(float64)
	if aNum && bNum {
		rel = compareFloat(fa, fb)
	} else {
		rel = strings.Compare(toString(va), toString(vb))
	}
	if desc {
		rel = -rel
	}
	return rel
}

func sortRecordsMultiNulls(records []*document.Record, keys []SortKey, nullsPolicy string) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, k := range keys {
			if c := cmpByKey(records[i], records[j], k.Field, nullsPolicy, k.Desc); c != 0 {
				return c < 0
			}
		}
		return false
	})
}
