package dsl

// Entity описывает шаблон или схему документа из DSL
type Entity struct {
	Module   string   // actor | item | journal
	Name     string   // npc, physical, ...
	Template bool     // template <name>: вместо entity <name>:
	Uses     []string // подключаемые шаблоны, в порядке объявления
	Fields   []Field
	File     string
	Line     int
}

// FQN: "<module>.<name>"
func (e *Entity) FQN() string { return e.Module + "." + e.Name }

// Field описывает поле сущности. Path может быть составным: price.value, abilities.*.value
type Field struct {
	Path    string
	Type    string            // string, html, identifier, formula, number, int, bool, set, array, map, object, any
	Elem    string            // тип элемента для set/array/map
	Options map[string]string // required, nullable, min, initial, choices и прочие опции
	Line    int
}
