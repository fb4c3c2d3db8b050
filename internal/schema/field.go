// Package schema: типизированные схемы документов ruleset'а: поля с ограничениями,
// шаблоны, композиция шаблонов в схемы сущностей и реестр (kind, type) -> схема.
package schema

import (
	"encoding/json"
	"strings"
)

// Kind: тип поля.
type Kind string

const (
	KindString     Kind = "string"
	KindHTML       Kind = "html"
	KindIdentifier Kind = "identifier"
	KindFormula    Kind = "formula"
	KindNumber     Kind = "number"
	KindInt        Kind = "int"
	KindBool       Kind = "bool"
	KindSet        Kind = "set"
	KindArray      Kind = "array"
	KindMap        Kind = "map"
	KindObject     Kind = "object"
	KindAny        Kind = "any"
)

func (k Kind) isText() bool {
	return k == KindString || k == KindHTML || k == KindIdentifier || k == KindFormula
}

func (k Kind) isNumeric() bool { return k == KindNumber || k == KindInt }

func (k Kind) isCollection() bool { return k == KindSet || k == KindArray || k == KindMap }

// Field: описание одного поля. После сборки реестра не изменяется.
type Field struct {
	Name          string   `json:"name"`
	Kind          Kind     `json:"type"`
	Required      bool     `json:"required,omitempty"`
	Nullable      bool     `json:"nullable,omitempty"`
	Blank         bool     `json:"blank,omitempty"`
	Integer       bool     `json:"integer,omitempty"`
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	Initial       any      `json:"initial,omitempty"`
	HasInitial    bool     `json:"-"`
	Choices       string   `json:"choices,omitempty"` // имя справочника
	ChoiceKeys    []string `json:"choiceKeys,omitempty"`
	Deterministic bool     `json:"deterministic,omitempty"`
	InitialKeys   []string `json:"initialKeys,omitempty"`
	Label         string   `json:"label,omitempty"`
	Hint          string   `json:"hint,omitempty"`

	Element *Field  `json:"element,omitempty"` // set/array/map
	Fields  *Fields `json:"fields,omitempty"`  // object

	// исходные опции DSL, нужны линтеру
	initialKeysFrom []string
	rawInitial      string
}

func (f *Field) hasChoice(s string) bool {
	for _, k := range f.ChoiceKeys {
		if k == s {
			return true
		}
	}
	return false
}

// Fields: упорядоченный набор полей.
type Fields struct {
	keys   []string
	byName map[string]*Field
}

func NewFields(fields ...*Field) *Fields {
	fs := &Fields{byName: map[string]*Field{}}
	for _, f := range fields {
		fs.Set(f)
	}
	return fs
}

// Set добавляет поле или заменяет одноимённое, сохраняя его позицию.
// Возвращает заменённое поле, если оно было.
func (fs *Fields) Set(f *Field) *Field {
	prev, ok := fs.byName[f.Name]
	if !ok {
		fs.keys = append(fs.keys, f.Name)
	}
	fs.byName[f.Name] = f
	return prev
}

func (fs *Fields) Get(name string) (*Field, bool) {
	if fs == nil {
		return nil, false
	}
	f, ok := fs.byName[name]
	return f, ok
}

func (fs *Fields) Keys() []string {
	if fs == nil {
		return nil
	}
	return append([]string(nil), fs.keys...)
}

func (fs *Fields) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.keys)
}

// List: поля в порядке объявления.
func (fs *Fields) List() []*Field {
	if fs == nil {
		return nil
	}
	out := make([]*Field, 0, len(fs.keys))
	for _, k := range fs.keys {
		out = append(out, fs.byName[k])
	}
	return out
}

func (fs *Fields) Clone() *Fields {
	out := NewFields()
	for _, f := range fs.List() {
		out.Set(f)
	}
	return out
}

// MarshalJSON отдаёт поля массивом, чтобы сохранить порядок.
func (fs *Fields) MarshalJSON() ([]byte, error) {
	return json.Marshal(fs.List())
}

// OverrideFunc вызывается, когда добавляемое поле перекрывает уже существующее.
type OverrideFunc func(name string, previous, next *Field)

// Merge возвращает объединение base и additions. Поля additions перекрывают
// одноимённые поля base целиком (без рекурсивного слияния вложенных объектов).
func Merge(base, additions *Fields, onOverride OverrideFunc) *Fields {
	out := NewFields()
	if base != nil {
		out = base.Clone()
	}
	for _, f := range additions.List() {
		if prev := out.Set(f); prev != nil && onOverride != nil {
			onOverride(f.Name, prev, f)
		}
	}
	return out
}

// Compose сворачивает части слева направо: каждая следующая перекрывает предыдущие.
func Compose(onOverride OverrideFunc, parts ...*Fields) *Fields {
	out := NewFields()
	for _, p := range parts {
		out = Merge(out, p, onOverride)
	}
	return out
}

// Walk обходит дерево полей; элементы коллекций получают сегмент "*".
func Walk(fs *Fields, fn func(path string, f *Field)) {
	walk(fs, "", fn)
}

func walk(fs *Fields, prefix string, fn func(path string, f *Field)) {
	for _, f := range fs.List() {
		p := joinPath(prefix, f.Name)
		fn(p, f)
		walkField(f, p, fn)
	}
}

func walkField(f *Field, p string, fn func(path string, f *Field)) {
	switch {
	case f.Kind == KindObject:
		walk(f.Fields, p, fn)
	case f.Kind.isCollection() && f.Element != nil:
		ep := p + ".*"
		fn(ep, f.Element)
		walkField(f.Element, ep, fn)
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Lookup ищет поле по составному пути (price.value, abilities.*.value).
func Lookup(fs *Fields, path string) (*Field, bool) {
	parts := strings.Split(path, ".")
	var cur *Field
	for i, seg := range parts {
		if i == 0 {
			f, ok := fs.Get(seg)
			if !ok {
				return nil, false
			}
			cur = f
			continue
		}
		switch {
		case cur.Kind == KindObject:
			f, ok := cur.Fields.Get(seg)
			if !ok {
				return nil, false
			}
			cur = f
		case cur.Kind.isCollection() && seg == "*" && cur.Element != nil:
			cur = cur.Element
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}
