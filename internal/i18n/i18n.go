// Package i18n загружает каталоги локализации ruleset'а и разрешает ключи вида
// "mc3e.ItemRarityRare" в текст выбранной локали.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// BaseLocale: локаль-источник; всегда обязана присутствовать.
const BaseLocale = "en-US"

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

// Bundle: все локали, загруженные с диска или из бинарника.
type Bundle struct {
	locales map[string]map[string]string
	order   []string
	matcher language.Matcher
}

// LoadEmbedded загружает встроенные каталоги.
func LoadEmbedded() (*Bundle, error) {
	return LoadFS(embeddedFS)
}

// LoadFS загружает каталоги locales/<locale>/<namespace>.yaml.
func LoadFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{locales: map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		locale := strings.TrimSpace(file.Locale)
		if locale != path.Base(path.Dir(p)) {
			return nil, fmt.Errorf("catalog %s: locale %q must match path locale %q", p, locale, path.Base(path.Dir(p)))
		}
		msgs, ok := b.locales[locale]
		if !ok {
			msgs = map[string]string{}
			b.locales[locale] = msgs
		}
		for k, v := range file.Messages {
			if _, dup := msgs[k]; dup {
				return nil, fmt.Errorf("catalog %s: duplicate key %q", p, k)
			}
			msgs[k] = v
		}
	}
	if _, ok := b.locales[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	// базовая локаль первой: matcher отдаёт её при отсутствии совпадений
	b.order = append(b.order, BaseLocale)
	for loc := range b.locales {
		if loc != BaseLocale {
			b.order = append(b.order, loc)
		}
	}
	sort.Strings(b.order[1:])
	tags := make([]language.Tag, 0, len(b.order))
	for _, loc := range b.order {
		tags = append(tags, language.Make(loc))
	}
	b.matcher = language.NewMatcher(tags)
	return b, nil
}

// Locales: список доступных локалей, базовая первой.
func (b *Bundle) Locales() []string { return append([]string(nil), b.order...) }

// Localizer подбирает ближайшую локаль к запрошенной.
func (b *Bundle) Localizer(locale string) *Localizer {
	resolved := BaseLocale
	if strings.TrimSpace(locale) != "" {
		_, idx, conf := b.matcher.Match(language.Make(locale))
		if conf != language.No && idx >= 0 && idx < len(b.order) {
			resolved = b.order[idx]
		}
	}
	return &Localizer{
		locale:   resolved,
		messages: b.locales[resolved],
		fallback: b.locales[BaseLocale],
	}
}

// Localizer разрешает ключи локализации. Отсутствующий ключ возвращается как есть.
type Localizer struct {
	locale   string
	messages map[string]string
	fallback map[string]string
}

func (l *Localizer) Locale() string { return l.locale }

func (l *Localizer) Has(key string) bool {
	if _, ok := l.messages[key]; ok {
		return true
	}
	_, ok := l.fallback[key]
	return ok
}

func (l *Localizer) Localize(key string) string {
	if v, ok := l.messages[key]; ok {
		return v
	}
	if v, ok := l.fallback[key]; ok {
		return v
	}
	return key
}

// Format подставляет {name} плейсхолдеры.
func (l *Localizer) Format(key string, data map[string]string) string {
	s := l.Localize(key)
	for k, v := range data {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}
