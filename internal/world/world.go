// Package world связывает реестр схем, миграции, настройки и хранилище:
// создание и изменение документов, загрузка мира, миграция мира целиком.
package world

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"mc3e/internal/document"
	"mc3e/internal/i18n"
	"mc3e/internal/reference"
	"mc3e/internal/schema"
	"mc3e/internal/settings"
)

type Options struct {
	Registry  *schema.Registry
	Store     document.Store
	Localizer *i18n.Localizer
	// StrictDefault: значение strictValidation, пока мастер его не менял.
	StrictDefault bool
}

type World struct {
	reg    *schema.Registry
	ref    *reference.Config
	loc    *i18n.Localizer
	store  document.Store
	docs   *document.Collection
	strict *settings.Strictness
	now    func() time.Time

	loadMu sync.Mutex // Load и миграция не пересекаются

	mu       sync.RWMutex
	warnings []string // ключи локализации постоянных предупреждений
}

func New(ctx context.Context, opts Options) (*World, error) {
	if opts.Registry == nil || opts.Store == nil || opts.Localizer == nil {
		return nil, fmt.Errorf("world: registry, store and localizer are required")
	}
	strict, err := settings.LoadStrictness(ctx, opts.Store, opts.StrictDefault)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	return &World{
		reg:    opts.Registry,
		ref:    opts.Registry.Reference(),
		loc:    opts.Localizer,
		store:  opts.Store,
		docs:   document.NewCollection(),
		strict: strict,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (w *World) Registry() *schema.Registry { return w.reg }

func (w *World) Localizer() *i18n.Localizer { return w.loc }

func (w *World) Strict() bool { return w.strict.Strict() }

// Create собирает новый документ: начальные значения, миграция переданных
// данных, очистка и строгая проверка. Новые данные проверяются всегда строго.
func (w *World) Create(ctx context.Context, kind, typ string, system map[string]any) (*document.Record, error) {
	e, err := w.reg.Lookup(kind, typ)
	if err != nil {
		return nil, err
	}
	data, err := e.Prepare(schema.DeepCopyMap(system))
	if err != nil {
		return nil, err
	}
	now := w.now()
	rec := &document.Record{
		ID:        w.docs.NewID(),
		Kind:      e.Kind,
		Type:      e.Type,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		System:    data,
	}
	if err := w.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("create %s: %w", e.Key(), err)
	}
	w.docs.Put(rec)
	return rec.Clone(), nil
}

// Update применяет patch (вложенные объекты сливаются) к документу версии expected.
// Невалидный документ из списка на исправление тоже можно обновить: после
// успешной проверки он становится обычным.
func (w *World) Update(ctx context.Context, kind, typ, id string, expected int64, patch map[string]any) (*document.Record, error) {
	e, err := w.reg.Lookup(kind, typ)
	if err != nil {
		return nil, err
	}
	cur, err := w.find(e, id)
	if err != nil {
		return nil, err
	}
	if expected != cur.Version {
		return nil, fmt.Errorf("%w: expected version %d", document.ErrVersionConflict, cur.Version)
	}
	merged := mergePatch(schema.DeepCopyMap(cur.System), schema.DeepCopyMap(patch))
	data, err := e.Prepare(merged)
	if err != nil {
		return nil, err
	}
	next := cur.Clone()
	next.System = data
	next.Version++
	next.UpdatedAt = w.now()
	next.Invalid = false
	next.Errors = nil
	if err := w.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", e.Key(), id, err)
	}
	w.docs.Put(next)
	return next.Clone(), nil
}

func (w *World) Delete(ctx context.Context, kind, typ, id string) error {
	e, err := w.reg.Lookup(kind, typ)
	if err != nil {
		return err
	}
	if _, err := w.find(e, id); err != nil {
		return err
	}
	if err := w.store.Delete(ctx, e.Kind, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", e.Key(), id, err)
	}
	w.docs.Remove(id)
	return nil
}

func (w *World) Get(kind, typ, id string) (*document.Record, error) {
	e, err := w.reg.Lookup(kind, typ)
	if err != nil {
		return nil, err
	}
	rec, ok := w.docs.Get(e.Kind, e.Type, id)
	if !ok {
		return nil, document.ErrNotFound
	}
	return rec, nil
}

func (w *World) List(kind, typ string) ([]*document.Record, error) {
	e, err := w.reg.Lookup(kind, typ)
	if err != nil {
		return nil, err
	}
	return w.docs.List(e.Kind, e.Type), nil
}

// Invalid: документы, не прошедшие проверку при загрузке.
func (w *World) Invalid() []*document.Record { return w.docs.Invalid() }

func (w *World) find(e *schema.Entity, id string) (*document.Record, error) {
	if rec, ok := w.docs.Get(e.Kind, e.Type, id); ok {
		return rec, nil
	}
	if rec, ok := w.docs.InvalidRecord(id); ok && strings.EqualFold(rec.Kind, e.Kind) && strings.EqualFold(rec.Type, e.Type) {
		return rec, nil
	}
	return nil, document.ErrNotFound
}

// LoadReport: итог загрузки мира.
type LoadReport struct {
	Accepted int  `json:"accepted"`
	Invalid  int  `json:"invalid"`  // приняты, но требуют исправления (нестрогий режим)
	Rejected int  `json:"rejected"` // отклонены (строгий режим или неизвестный тип)
	Strict   bool `json:"strict"`
}

// Load перечитывает все документы из хранилища. Каждый документ проходит
// миграцию и очистку в памяти; запись в хранилище не меняется.
func (w *World) Load(ctx context.Context) (LoadReport, error) {
	w.loadMu.Lock()
	defer w.loadMu.Unlock()
	return w.load(ctx)
}

func (w *World) load(ctx context.Context) (LoadReport, error) {
	rep := LoadReport{Strict: w.strict.Strict()}
	w.docs.Reset()
	for _, kind := range w.kinds() {
		recs, err := w.store.List(ctx, kind)
		if err != nil {
			return rep, fmt.Errorf("load %s: %w", kind, err)
		}
		for _, rec := range recs {
			known := w.prepare(rec)
			switch {
			case !rec.Invalid:
				w.docs.Put(rec)
				rep.Accepted++
			case rep.Strict || !known:
				w.docs.Reject(rec)
				rep.Rejected++
			default:
				w.docs.Put(rec)
				rep.Invalid++
			}
		}
	}
	log.Printf("world: loaded %d documents (%d invalid, %d rejected, strict=%t)",
		rep.Accepted+rep.Invalid, rep.Invalid, rep.Rejected, rep.Strict)
	return rep, nil
}

// prepare прогоняет запись через миграцию, очистку и проверку, отмечая Invalid/Errors.
// false: тип записи не зарегистрирован.
func (w *World) prepare(rec *document.Record) bool {
	e, err := w.reg.Lookup(rec.Kind, rec.Type)
	if err != nil {
		rec.Invalid = true
		rec.Errors = []schema.FieldError{{
			Code:    schema.ErrChoiceInvalid,
			Field:   "type",
			Message: fmt.Sprintf("unknown document type %s.%s", rec.Kind, rec.Type),
		}}
		return false
	}
	data, err := e.Prepare(schema.DeepCopyMap(rec.System))
	rec.System = data
	rec.Invalid = err != nil
	rec.Errors = schema.FieldErrors(err)
	if err != nil && !errors.Is(err, schema.ErrInvalid) {
		log.Printf("world: %s %s: %v", e.Key(), rec.ID, err)
	}
	return true
}

func (w *World) kinds() []string {
	kinds := w.reg.Kinds()
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SetStrict меняет режим (только мастер) и перезагружает мир.
func (w *World) SetStrict(ctx context.Context, user settings.User, v bool) (LoadReport, error) {
	if err := w.strict.SetStrict(ctx, user, v); err != nil {
		return LoadReport{}, err
	}
	return w.Load(ctx)
}

// ConfigureStrictness: проверка после загрузки мира мастером: при наличии
// невалидных документов строгий режим выключается и мир перезагружается.
func (w *World) ConfigureStrictness(ctx context.Context, user settings.User) (settings.Outcome, error) {
	out, err := w.strict.Configure(ctx, user, len(w.docs.Invalid()))
	if err != nil || !out.ReloadRequired {
		return out, err
	}
	if _, err := w.Load(ctx); err != nil {
		return out, err
	}
	return out, nil
}

func (w *World) addWarning(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, k := range w.warnings {
		if k == key {
			return
		}
	}
	w.warnings = append(w.warnings, key)
}

// mergePatch сливает patch в dst: объекты рекурсивно, остальное заменяется.
func mergePatch(dst, patch map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range patch {
		pm, isMap := v.(map[string]any)
		dm, hasMap := dst[k].(map[string]any)
		if isMap && hasMap {
			dst[k] = mergePatch(dm, pm)
			continue
		}
		dst[k] = v
	}
	return dst
}
