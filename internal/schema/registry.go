package schema

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"mc3e/internal/reference"
)

var (
	ErrUnknownType = errors.New("unknown document type")
	ErrSealed      = errors.New("schema registry is sealed")
)

// MigrateFunc переписывает сырую запись на месте. Должна быть идемпотентной и не паниковать.
type MigrateFunc func(source map[string]any)

type step struct {
	name string
	fn   MigrateFunc
}

// Template: переиспользуемая частичная схема со своими шагами миграции.
type Template struct {
	Name   string
	Fields *Fields
	steps  []step
}

// Entity: полная схема одного (kind, type).
type Entity struct {
	Kind   string
	Type   string
	Uses   []*Template
	Fields *Fields
	own    *Fields
	steps  []step
}

func (e *Entity) Key() string { return e.Kind + "." + e.Type }

// Steps: имена шагов миграции в порядке применения: шаблоны, затем сама сущность.
func (e *Entity) Steps() []string {
	var out []string
	for _, t := range e.Uses {
		for _, s := range t.steps {
			out = append(out, t.Name+"/"+s.name)
		}
	}
	for _, s := range e.steps {
		out = append(out, e.Key()+"/"+s.name)
	}
	return out
}

// Migrate применяет все шаги миграции к source.
func (e *Entity) Migrate(source map[string]any) {
	if source == nil {
		return
	}
	for _, t := range e.Uses {
		for _, s := range t.steps {
			runStep(t.Name, s, source)
		}
	}
	for _, s := range e.steps {
		runStep(e.Key(), s, source)
	}
}

func runStep(owner string, s step, source map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("migration: %s/%s panicked: %v", owner, s.name, r)
		}
	}()
	s.fn(source)
}

// Initial: новый документ со всеми начальными значениями.
func (e *Entity) Initial() map[string]any { return Initial(e.Fields) }

// Clean нормализует source под схему (см. Clean).
func (e *Entity) Clean(source map[string]any) map[string]any { return Clean(e.Fields, source) }

// Validate возвращает *ValidationError, если данные нарушают схему.
func (e *Entity) Validate(data map[string]any) error {
	if errs := Validate(e.Fields, data); len(errs) > 0 {
		return &ValidationError{Kind: e.Kind, Type: e.Type, Errors: errs}
	}
	return nil
}

// Prepare: полный путь загрузки записи: миграция, очистка, проверка.
func (e *Entity) Prepare(source map[string]any) (map[string]any, error) {
	e.Migrate(source)
	data := e.Clean(source)
	return data, e.Validate(data)
}

// Registry: реестр (kind, type) -> схема. После Seal не изменяется.
type Registry struct {
	ref       *reference.Config
	templates map[string]*Template
	entities  map[string]*Entity
	order     []string
	issues    []Issue
	sealed    bool
}

func newRegistry(ref *reference.Config) *Registry {
	return &Registry{
		ref:       ref,
		templates: map[string]*Template{},
		entities:  map[string]*Entity{},
	}
}

func (r *Registry) Reference() *reference.Config { return r.ref }

// Lookup находит схему по паре (kind, type) без учёта регистра.
func (r *Registry) Lookup(kind, typ string) (*Entity, error) {
	key := strings.ToLower(strings.TrimSpace(kind)) + "." + strings.TrimSpace(typ)
	if e, ok := r.entities[key]; ok {
		return e, nil
	}
	for k, e := range r.entities {
		if strings.EqualFold(k, key) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrUnknownType, kind, typ)
}

// Entities: все схемы в стабильном порядке.
func (r *Registry) Entities() []*Entity {
	out := make([]*Entity, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.entities[k])
	}
	return out
}

// Kinds: типы документов по видам: actor -> [character npc ...]
func (r *Registry) Kinds() map[string][]string {
	out := map[string][]string{}
	for _, e := range r.Entities() {
		out[e.Kind] = append(out[e.Kind], e.Type)
	}
	return out
}

// Attach привязывает шаг миграции к шаблону ("item.physical") или сущности ("item.tool").
func (r *Registry) Attach(target, name string, fn MigrateFunc) error {
	if r.sealed {
		return ErrSealed
	}
	if t, ok := r.templates[target]; ok {
		t.steps = append(t.steps, step{name: name, fn: fn})
		return nil
	}
	if e, ok := r.entities[target]; ok {
		e.steps = append(e.steps, step{name: name, fn: fn})
		return nil
	}
	return fmt.Errorf("attach %s: %w: %s", name, ErrUnknownType, target)
}

// Seal запрещает дальнейшие изменения реестра.
func (r *Registry) Seal() { r.sealed = true }

// Lint: найденные при сборке проблемы схем.
func (r *Registry) Lint() []Issue { return append([]Issue(nil), r.issues...) }
