package world

import (
	"context"
	"fmt"
	"log"
	"reflect"

	"mc3e/internal/document"
	"mc3e/internal/migration"
	"mc3e/internal/settings"
)

// MigrationReport: итог прохода миграции по всем документам мира.
type MigrationReport struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Migrated  int    `json:"migrated"`
	Unchanged int    `json:"unchanged"`
	Invalid   int    `json:"invalid"` // после миграции всё ещё не проходят проверку
	Failed    int    `json:"failed"`  // не удалось сохранить или тип неизвестен
}

// StartupReport: что произошло при подготовке мира.
type StartupReport struct {
	Plan       migration.Plan   `json:"plan"`
	Migration  *MigrationReport `json:"migration,omitempty"`
	Load       LoadReport       `json:"load"`
	Strictness settings.Outcome `json:"strictness"`
}

// Startup готовит мир к работе: сверяет версию миграции, при необходимости
// мигрирует все документы (только мастер), загружает мир и настраивает
// строгость проверки.
func (w *World) Startup(ctx context.Context, user settings.User) (StartupReport, error) {
	var rep StartupReport
	stored, err := settings.MigrationVersion(ctx, w.store)
	if err != nil {
		return rep, err
	}
	count, err := w.store.Count(ctx)
	if err != nil {
		return rep, fmt.Errorf("count documents: %w", err)
	}
	rep.Plan = migration.CheckVersion(stored, count, w.ref.Manifest())
	// предупреждение висит и до прихода мастера
	if rep.Plan.TooOld {
		w.addWarning(rep.Plan.Warning)
	}

	switch rep.Plan.Action {
	case migration.ActionRecord:
		if user.IsGM() {
			if err := settings.SetMigrationVersion(ctx, w.store, rep.Plan.Target); err != nil {
				return rep, err
			}
		}
	case migration.ActionMigrate:
		if user.IsGM() {
			mr, err := w.MigrateWorld(ctx, user)
			if err != nil {
				return rep, err
			}
			rep.Migration = &mr
		} else {
			log.Printf("world: migration to %s pending, waiting for a gamemaster", rep.Plan.Target)
		}
	}

	if rep.Load, err = w.Load(ctx); err != nil {
		return rep, err
	}
	invalid := rep.Load.Invalid + rep.Load.Rejected
	if rep.Strictness, err = w.strict.Configure(ctx, user, invalid); err != nil {
		return rep, err
	}
	if rep.Strictness.ReloadRequired {
		if rep.Load, err = w.Load(ctx); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// MigrateWorld прогоняет все документы хранилища через миграцию и очистку,
// сохраняет изменившиеся и записывает текущую версию системы. Только мастер.
// Ошибка одного документа не останавливает проход.
func (w *World) MigrateWorld(ctx context.Context, user settings.User) (MigrationReport, error) {
	if !user.IsGM() {
		return MigrationReport{}, settings.ErrForbidden
	}
	w.loadMu.Lock()
	defer w.loadMu.Unlock()

	stored, err := settings.MigrationVersion(ctx, w.store)
	if err != nil {
		return MigrationReport{}, err
	}
	m := w.ref.Manifest()
	rep := MigrationReport{From: stored, To: m.Version}
	vars := map[string]string{"version": m.Version}

	if stored != "" && migration.IsNewer(m.CompatibleMigrationVersion, stored) {
		w.addWarning(migration.WarningTooOld)
		log.Printf("world: %s", w.loc.Localize(migration.WarningTooOld))
	}
	log.Printf("world: %s", w.loc.Format("MIGRATION.Begin", vars))

	for _, kind := range w.kinds() {
		recs, err := w.store.List(ctx, kind)
		if err != nil {
			return rep, fmt.Errorf("migrate %s: %w", kind, err)
		}
		for _, rec := range recs {
			w.migrateRecord(ctx, rec, &rep)
		}
	}

	if err := settings.SetMigrationVersion(ctx, w.store, m.Version); err != nil {
		return rep, err
	}
	log.Printf("world: %s", w.loc.Format("MIGRATION.Complete", vars))
	log.Printf("world: migrated %d, unchanged %d, invalid %d, failed %d",
		rep.Migrated, rep.Unchanged, rep.Invalid, rep.Failed)

	if _, err := w.load(ctx); err != nil {
		return rep, err
	}
	return rep, nil
}

func (w *World) migrateRecord(ctx context.Context, rec *document.Record, rep *MigrationReport) {
	before := rec.Clone()
	if !w.prepare(rec) {
		log.Printf("world: skip %s %s: unknown type %q", rec.Kind, rec.ID, rec.Type)
		rep.Failed++
		return
	}
	if rec.Invalid {
		rep.Invalid++
	}
	if reflect.DeepEqual(before.System, rec.System) && before.Invalid == rec.Invalid &&
		reflect.DeepEqual(before.Errors, rec.Errors) {
		rep.Unchanged++
		return
	}
	rec.Version = before.Version + 1
	rec.UpdatedAt = w.now()
	if err := w.store.Save(ctx, rec); err != nil {
		log.Printf("world: failed migration for %s.%s %s: %v", rec.Kind, rec.Type, rec.ID, err)
		rep.Failed++
		return
	}
	rep.Migrated++
}

// Warning: постоянное предупреждение мира.
type Warning struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// Status: сводка состояния мира.
type Status struct {
	System           string         `json:"system"`
	Title            string         `json:"title"`
	Version          string         `json:"version"`
	MigrationVersion string         `json:"migrationVersion"`
	MigrationNeeded  bool           `json:"migrationNeeded"`
	Strict           bool           `json:"strict"`
	Locale           string         `json:"locale"`
	Documents        int            `json:"documents"`
	Invalid          int            `json:"invalid"`
	Kinds            map[string]int `json:"kinds"`
	Warnings         []Warning      `json:"warnings"`
}

func (w *World) Status(ctx context.Context) (Status, error) {
	m := w.ref.Manifest()
	stored, err := settings.MigrationVersion(ctx, w.store)
	if err != nil {
		return Status{}, err
	}
	accepted, invalid := w.docs.Counts()
	st := Status{
		System:           m.ID,
		Title:            m.Title,
		Version:          m.Version,
		MigrationVersion: stored,
		MigrationNeeded:  (stored == "" && accepted > 0) || (stored != "" && migration.IsNewer(m.NeedsMigrationVersion, stored)),
		Strict:           w.strict.Strict(),
		Locale:           w.loc.Locale(),
		Documents:        accepted,
		Invalid:          invalid,
		Kinds:            map[string]int{},
		Warnings:         []Warning{},
	}
	for kind := range w.reg.Kinds() {
		st.Kinds[kind] = len(w.docs.List(kind, ""))
	}
	w.mu.RLock()
	for _, key := range w.warnings {
		st.Warnings = append(st.Warnings, Warning{Key: key, Message: w.loc.Localize(key)})
	}
	w.mu.RUnlock()
	return st, nil
}
