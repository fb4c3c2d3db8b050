// Package document: записи мира, их хранилища и in-memory коллекция загруженных документов.
package document

import (
	"errors"
	"time"

	"mc3e/internal/schema"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrVersionConflict = errors.New("document version conflict")
	ErrExists          = errors.New("document already exists")
)

// Record: сохранённый документ: служебные поля плюс system-данные типа.
type Record struct {
	ID        string              `json:"id"`
	Kind      string              `json:"kind"`
	Type      string              `json:"type"`
	Version   int64               `json:"version"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	System    map[string]any      `json:"system"`
	Invalid   bool                `json:"invalid,omitempty"`
	Errors    []schema.FieldError `json:"errors,omitempty"`
}

// Clone: глубокая копия; коллекция никогда не отдаёт наружу свои записи.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.System = schema.DeepCopyMap(r.System)
	out.Errors = append([]schema.FieldError(nil), r.Errors...)
	return &out
}

// Flatten: плоское представление для API: служебные поля и system-данные
// на одном уровне. Совпадающие с служебными ключи уходят под "system.".
func Flatten(rec *Record) map[string]any {
	out := map[string]any{
		"id":         rec.ID,
		"kind":       rec.Kind,
		"type":       rec.Type,
		"version":    rec.Version,
		"created_at": rec.CreatedAt.Format(time.RFC3339),
		"updated_at": rec.UpdatedAt.Format(time.RFC3339),
	}
	for k, v := range rec.System {
		if _, clash := out[k]; clash {
			out["system."+k] = v
			continue
		}
		out[k] = v
	}
	if rec.Invalid {
		out["invalid"] = true
		out["errors"] = rec.Errors
	}
	return out
}
