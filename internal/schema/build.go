package schema

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"mc3e/internal/dsl"
	"mc3e/internal/reference"
)

// Build собирает реестр из DSL-определений: сначала шаблоны, затем сущности,
// каждая: свёртка своих шаблонов в порядке uses и собственных полей.
func Build(defs map[string]*dsl.Entity, ref *reference.Config) (*Registry, error) {
	reg := newRegistry(ref)

	names := make([]string, 0, len(defs))
	for fqn := range defs {
		names = append(names, fqn)
	}
	sort.Strings(names)

	// шаблоны
	for _, fqn := range names {
		def := defs[fqn]
		if !def.Template {
			continue
		}
		if len(def.Uses) > 0 {
			return nil, fmt.Errorf("%s:%d: template %s cannot use other templates", def.File, def.Line, fqn)
		}
		fields, err := buildFields(def, ref)
		if err != nil {
			return nil, err
		}
		reg.templates[fqn] = &Template{Name: fqn, Fields: fields}
	}

	// сущности
	for _, fqn := range names {
		def := defs[fqn]
		if def.Template {
			continue
		}
		own, err := buildFields(def, ref)
		if err != nil {
			return nil, err
		}
		e := &Entity{Kind: def.Module, Type: def.Name, own: own}

		var parts []*Fields
		var sources []string
		for _, u := range def.Uses {
			name := u
			if !strings.Contains(name, ".") {
				name = def.Module + "." + name
			}
			t, ok := reg.templates[name]
			if !ok {
				return nil, fmt.Errorf("%s:%d: entity %s uses unknown template %q", def.File, def.Line, fqn, u)
			}
			e.Uses = append(e.Uses, t)
			parts = append(parts, t.Fields)
			sources = append(sources, t.Name)
		}
		parts = append(parts, own)
		sources = append(sources, fqn)

		// origin: кто объявил поле, для сообщения о перекрытии
		origin := map[*Field]string{}
		for i, p := range parts {
			for _, f := range p.List() {
				origin[f] = sources[i]
			}
		}
		onOverride := func(name string, prev, next *Field) {
			msg := fmt.Sprintf("field %q from %s overrides the one from %s", name, origin[next], origin[prev])
			log.Printf("schema: %s: %s", fqn, msg)
			reg.issues = append(reg.issues, Issue{Entity: fqn, Field: name, Code: IssueFieldOverridden, Message: msg})
		}
		e.Fields = Compose(onOverride, parts...)

		reg.entities[e.Key()] = e
		reg.order = append(reg.order, e.Key())
	}
	sort.Strings(reg.order)
	reg.issues = append(reg.issues, lintFields(reg)...)
	return reg, nil
}

// buildFields разворачивает плоский список полей DSL с составными путями в дерево.
func buildFields(def *dsl.Entity, ref *reference.Config) (*Fields, error) {
	root := NewFields()
	for _, df := range def.Fields {
		f, err := newField(df, ref)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %s.%s: %w", def.File, df.Line, def.FQN(), df.Path, err)
		}
		segs := strings.Split(df.Path, ".")
		f.Name = segs[len(segs)-1]
		if err := place(root, segs, f); err != nil {
			return nil, fmt.Errorf("%s:%d: %s.%s: %w", def.File, df.Line, def.FQN(), df.Path, err)
		}
	}
	return root, nil
}

func place(root *Fields, segs []string, f *Field) error {
	if len(segs) == 1 {
		if segs[0] == "*" {
			return fmt.Errorf("element marker without a collection")
		}
		if root.Set(f) != nil {
			return fmt.Errorf("duplicate field")
		}
		return nil
	}
	parent, ok := root.Get(segs[0])
	if !ok {
		return fmt.Errorf("parent %q is not declared", segs[0])
	}
	for _, seg := range segs[1 : len(segs)-1] {
		switch {
		case parent.Kind == KindObject:
			next, ok := parent.Fields.Get(seg)
			if !ok {
				return fmt.Errorf("parent %q is not declared", seg)
			}
			parent = next
		case parent.Kind.isCollection() && seg == "*":
			parent = parent.Element
		default:
			return fmt.Errorf("%q is neither an object nor a collection element", seg)
		}
	}
	last := segs[len(segs)-1]
	switch {
	case parent.Kind == KindObject && last != "*":
		if parent.Fields.Set(f) != nil {
			return fmt.Errorf("duplicate field")
		}
	case parent.Kind.isCollection() && last == "*":
		if parent.Element != nil && parent.Element.Kind != f.Kind {
			return fmt.Errorf("element type %s does not match declared %s", f.Kind, parent.Element.Kind)
		}
		f.Name = "*"
		parent.Element = f
	default:
		return fmt.Errorf("cannot attach %q to a %s field", last, parent.Kind)
	}
	return nil
}

// newField переводит опции DSL в ограничения поля.
func newField(df dsl.Field, ref *reference.Config) (*Field, error) {
	f := &Field{Kind: Kind(df.Type)}
	opts := df.Options

	f.Required = isTrue(opts["required"])
	f.Nullable = f.Kind.isNumeric()
	if v, ok := opts["nullable"]; ok {
		f.Nullable = isTrue(v)
	}
	f.Blank = f.Kind.isText()
	if v, ok := opts["blank"]; ok {
		f.Blank = isTrue(v)
	}
	f.Integer = f.Kind == KindInt || isTrue(opts["integer"])
	f.Deterministic = isTrue(opts["deterministic"])
	f.Label = opts["label"]
	f.Hint = opts["hint"]

	for _, k := range []string{"min", "max"} {
		raw, ok := opts[k]
		if !ok {
			continue
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("option %s=%q is not a number", k, raw)
		}
		if k == "min" {
			f.Min = &n
		} else {
			f.Max = &n
		}
	}

	if name := opts["choices"]; name != "" {
		f.Choices = name
		f.ChoiceKeys = ref.Keys(name)
	}
	if raw := opts["initial_keys"]; raw != "" {
		for _, name := range strings.Split(raw, "|") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			f.initialKeysFrom = append(f.initialKeysFrom, name)
			f.InitialKeys = append(f.InitialKeys, ref.Keys(name)...)
		}
	}

	switch f.Kind {
	case KindObject:
		f.Fields = NewFields()
	case KindSet, KindArray, KindMap:
		elem := &Field{Name: "*", Kind: Kind(df.Elem)}
		elem.Nullable = elem.Kind.isNumeric()
		elem.Blank = elem.Kind.isText()
		elem.Integer = elem.Kind == KindInt
		if elem.Kind == KindObject {
			elem.Fields = NewFields()
		}
		f.Element = elem
	}

	if raw, ok := opts["initial"]; ok {
		v, err := parseInitial(f, raw)
		if err != nil {
			return nil, err
		}
		f.Initial, f.HasInitial, f.rawInitial = v, true, raw
	}
	return f, nil
}

func parseInitial(f *Field, raw string) (any, error) {
	if raw == "null" {
		return nil, nil
	}
	switch {
	case f.Kind.isNumeric():
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("initial=%q is not a number", raw)
		}
		return n, nil
	case f.Kind == KindBool:
		b, err := toBoolStrict(raw)
		if err != nil {
			return nil, fmt.Errorf("initial=%q is not a boolean", raw)
		}
		return b, nil
	case f.Kind.isText():
		return raw, nil
	default:
		return nil, fmt.Errorf("initial is not supported for %s fields", f.Kind)
	}
}

func isTrue(s string) bool { return strings.EqualFold(strings.TrimSpace(s), "true") }

// Load читает DSL из dir (пустой: встроенные определения) и собирает реестр.
func Load(dir string, ref *reference.Config) (*Registry, error) {
	defs, err := dsl.LoadAllEntities(dir)
	if err != nil {
		return nil, fmt.Errorf("load schema definitions: %w", err)
	}
	return Build(defs, ref)
}
