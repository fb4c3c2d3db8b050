package schema

import (
	"sort"
	"strconv"
	"strings"
)

// Initial строит документ из начальных значений полей. Поля-отображения
// получают ключи из initial_keys, каждый со значением элемента по умолчанию.
func Initial(fs *Fields) map[string]any {
	out := map[string]any{}
	for _, f := range fs.List() {
		if v, ok := initialValue(f); ok {
			out[f.Name] = v
		}
	}
	return out
}

func initialValue(f *Field) (any, bool) {
	if f.HasInitial {
		return f.Initial, true
	}
	switch {
	case f.Kind.isText():
		if f.Nullable {
			return nil, true
		}
		return "", true
	case f.Kind.isNumeric():
		if f.Nullable {
			return nil, true
		}
		return 0.0, true
	case f.Kind == KindBool:
		return false, true
	case f.Kind == KindArray || f.Kind == KindSet:
		return []any{}, true
	case f.Kind == KindMap:
		m := map[string]any{}
		for _, k := range f.InitialKeys {
			if v, ok := initialValue(f.Element); ok {
				m[k] = v
			}
		}
		return m, true
	case f.Kind == KindObject:
		return Initial(f.Fields), true
	}
	return nil, false
}

// Clean приводит data к форме схемы: удаляет неизвестные ключи, заполняет
// отсутствующие поля начальными значениями и приводит строковые числа и
// булевы значения к нужным типам. Значения, которые привести нельзя,
// остаются как есть: их отметит Validate.
func Clean(fs *Fields, data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	for k := range data {
		if _, ok := fs.Get(k); !ok {
			delete(data, k)
		}
	}
	for _, f := range fs.List() {
		v, ok := data[f.Name]
		if !ok {
			if iv, has := initialValue(f); has {
				data[f.Name] = iv
			}
			continue
		}
		data[f.Name] = cleanValue(f, v)
	}
	return data
}

func cleanValue(f *Field, v any) any {
	if v == nil {
		return nil
	}
	switch {
	case f.Kind.isText():
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t)
		case bool:
			return strconv.FormatBool(t)
		default:
			if n, err := toFloatStrict(v); err == nil {
				return formatNumber(n)
			}
		}
	case f.Kind.isNumeric():
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			if f.Nullable {
				return nil
			}
			return v
		}
		if n, err := toFloatStrict(v); err == nil {
			return n
		}
	case f.Kind == KindBool:
		if b, err := toBoolStrict(v); err == nil {
			return b
		}
	case f.Kind == KindArray || f.Kind == KindSet:
		if arr, ok := asSlice(v); ok {
			out := make([]any, len(arr))
			for i, ev := range arr {
				out[i] = cleanValue(f.Element, ev)
			}
			return out
		}
	case f.Kind == KindMap:
		if m, ok := asMap(v); ok {
			out := make(map[string]any, len(m))
			for k, ev := range m {
				out[k] = cleanValue(f.Element, ev)
			}
			return out
		}
	case f.Kind == KindObject:
		if m, ok := asMap(v); ok {
			return Clean(f.Fields, m)
		}
	}
	return v
}

func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[string]bool:
		out := make(map[string]any, len(t))
		for k, b := range t {
			out[k] = b
		}
		return out, true
	case map[string]float64:
		out := make(map[string]any, len(t))
		for k, n := range t {
			out[k] = n
		}
		return out, true
	}
	return nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DeepCopy копирует JSON-подобное дерево значений.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, ev := range t {
			out[k] = DeepCopy(ev)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, ev := range t {
			out[i] = DeepCopy(ev)
		}
		return out
	default:
		return v
	}
}

// DeepCopyMap: DeepCopy для корня документа.
func DeepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return DeepCopy(m).(map[string]any)
}
