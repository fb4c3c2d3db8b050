package reference

import "strings"

// EnumDirectory описывает один справочник ruleset'а (размеры, типы существ, редкость...)
type EnumDirectory struct {
	Name  string     `yaml:"name"`
	Items []EnumItem `yaml:"items"`
}

// EnumItem: одна запись справочника. Name хранит ключ локализации, а не готовый текст.
type EnumItem struct {
	Code  string   `yaml:"code"`
	Name  string   `yaml:"name"`
	Abbr  string   `yaml:"abbr,omitempty"`
	Order int      `yaml:"order,omitempty"`
	Value *float64 `yaml:"value,omitempty"` // множитель/конверсия, если справочник числовой
}

// Manifest: метаданные системы: текущая версия и пороги миграции мира.
type Manifest struct {
	ID                         string `yaml:"id"`
	Title                      string `yaml:"title"`
	Version                    string `yaml:"version"`
	NeedsMigrationVersion      string `yaml:"needsMigrationVersion"`
	CompatibleMigrationVersion string `yaml:"compatibleMigrationVersion"`
}

// Attunement types.
const (
	AttunementNone     = 0
	AttunementRequired = 1
	AttunementAttuned  = 2
)

// Config: неизменяемая конфигурация ruleset'а. Собирается один раз при старте
// и передаётся потребителям по указателю.
type Config struct {
	manifest Manifest
	catalogs map[string]EnumDirectory
	names    []string
}

// NewConfig собирает конфигурацию из манифеста и набора справочников.
func NewConfig(m Manifest, catalogs map[string]EnumDirectory) *Config {
	c := &Config{
		manifest: m,
		catalogs: make(map[string]EnumDirectory, len(catalogs)),
	}
	for name, dir := range catalogs {
		items := make([]EnumItem, len(dir.Items))
		copy(items, dir.Items)
		c.catalogs[name] = EnumDirectory{Name: name, Items: items}
		c.names = append(c.names, name)
	}
	sortStrings(c.names)
	return c
}

func (c *Config) Manifest() Manifest { return c.manifest }

// Names: имена всех справочников в стабильном порядке.
func (c *Config) Names() []string {
	return append([]string(nil), c.names...)
}

// Catalog возвращает копию справочника.
func (c *Config) Catalog(name string) (EnumDirectory, bool) {
	dir, ok := c.catalogs[name]
	if !ok {
		return EnumDirectory{}, false
	}
	items := make([]EnumItem, len(dir.Items))
	copy(items, dir.Items)
	return EnumDirectory{Name: dir.Name, Items: items}, true
}

// Has проверяет, что code: валидный ключ справочника.
func (c *Config) Has(name, code string) bool {
	_, ok := c.Item(name, code)
	return ok
}

func (c *Config) Item(name, code string) (EnumItem, bool) {
	dir, ok := c.catalogs[name]
	if !ok {
		return EnumItem{}, false
	}
	for _, it := range dir.Items {
		if it.Code == code {
			return it, true
		}
	}
	return EnumItem{}, false
}

// Keys: коды справочника в порядке объявления.
func (c *Config) Keys(name string) []string {
	dir, ok := c.catalogs[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(dir.Items))
	for _, it := range dir.Items {
		out = append(out, it.Code)
	}
	return out
}

// FindCode ищет код без учёта регистра.
func (c *Config) FindCode(name, code string) (string, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, k := range c.Keys(name) {
		if strings.ToLower(k) == code {
			return k, true
		}
	}
	return "", false
}
