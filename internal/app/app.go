// Package app собирает мир из конфига: справочники, локализация, реестр схем,
// хранилище документов.
package app

import (
	"context"
	"fmt"
	"log"

	"mc3e/internal/config"
	"mc3e/internal/document"
	"mc3e/internal/i18n"
	"mc3e/internal/migration"
	"mc3e/internal/pg"
	"mc3e/internal/reference"
	"mc3e/internal/schema"
	"mc3e/internal/sqlite"
	"mc3e/internal/world"
)

// Ruleset: всё, что строится один раз при старте и дальше не меняется.
type Ruleset struct {
	Reference *reference.Config
	Localizer *i18n.Localizer
	Registry  *schema.Registry
}

// LoadRuleset читает справочники и DSL (пустые каталоги: встроенные данные),
// регистрирует миграции и запечатывает реестр.
func LoadRuleset(cfg config.Config) (*Ruleset, error) {
	ref, err := reference.Load(cfg.ReferenceDir)
	if err != nil {
		return nil, fmt.Errorf("load reference: %w", err)
	}
	bundle, err := i18n.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("load locales: %w", err)
	}
	loc := bundle.Localizer(cfg.Locale)
	if loc.Locale() != cfg.Locale && cfg.Locale != "" {
		log.Printf("i18n: locale %s not available, using %s", cfg.Locale, loc.Locale())
	}
	reg, err := schema.Load(cfg.SchemaDir, ref)
	if err != nil {
		return nil, err
	}
	if err := migration.Register(reg, ref, loc); err != nil {
		return nil, fmt.Errorf("register migrations: %w", err)
	}
	reg.Seal()
	return &Ruleset{Reference: ref, Localizer: loc, Registry: reg}, nil
}

// OpenStore открывает хранилище по cfg.DBDriver.
func OpenStore(ctx context.Context, cfg config.Config, rs *Ruleset) (document.Store, error) {
	system := rs.Reference.Manifest().ID
	switch cfg.DBDriver {
	case config.DriverMemory, "":
		return document.NewMemoryStore(), nil
	case config.DriverPostgres:
		return pg.OpenStore(ctx, cfg.DBURL, rs.Registry, system, cfg.AutoMigrate)
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.DBURL, rs.Registry, system)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}

// Open: правила, хранилище и мир поверх них. Мир ещё не загружен:
// вызывающий решает, запускать ли Startup.
func Open(ctx context.Context, cfg config.Config) (*world.World, document.Store, error) {
	rs, err := LoadRuleset(cfg)
	if err != nil {
		return nil, nil, err
	}
	st, err := OpenStore(ctx, cfg, rs)
	if err != nil {
		return nil, nil, err
	}
	w, err := world.New(ctx, world.Options{
		Registry:      rs.Registry,
		Store:         st,
		Localizer:     rs.Localizer,
		StrictDefault: cfg.StrictValidation,
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	log.Printf("app: %s %s, store %s, locale %s",
		rs.Reference.Manifest().ID, rs.Reference.Manifest().Version, cfg.DBDriver, rs.Localizer.Locale())
	return w, st, nil
}
