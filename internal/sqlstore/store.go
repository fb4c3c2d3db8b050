// Package sqlstore: document.Store поверх database/sql. Различия движков
// (имена таблиц, плейсхолдеры, коды ошибок) спрятаны за Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mc3e/internal/document"
	"mc3e/internal/schema"
)

// Dialect описывает особенности конкретной БД.
type Dialect interface {
	// Table: полное имя таблицы документов kind.
	Table(kind string) string
	// SettingsTable: полное имя таблицы настроек мира.
	SettingsTable() string
	// Placeholder: n-й параметр запроса, начиная с 1.
	Placeholder(n int) string
	// IsUniqueViolation: ошибка нарушения первичного ключа/уникальности.
	IsUniqueViolation(err error) bool
}

// Store хранит каждый kind в своей таблице с колонками
// id, type, version, created_at, updated_at (unix ms), system, invalid, errors (JSON).
type Store struct {
	db      *sql.DB
	dialect Dialect
	kinds   map[string]struct{}
}

// New: store для перечисленных kind; таблицы должны уже существовать.
func New(db *sql.DB, dialect Dialect, kinds []string) *Store {
	s := &Store{db: db, dialect: dialect, kinds: map[string]struct{}{}}
	for _, k := range kinds {
		s.kinds[strings.ToLower(k)] = struct{}{}
	}
	return s
}

func (s *Store) table(kind string) (string, error) {
	k := strings.ToLower(kind)
	if _, ok := s.kinds[k]; !ok {
		return "", fmt.Errorf("%w: kind %q", schema.ErrUnknownType, kind)
	}
	return s.dialect.Table(k), nil
}

func (s *Store) ph(n int) string { return s.dialect.Placeholder(n) }

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func (s *Store) Save(ctx context.Context, rec *document.Record) error {
	tbl, err := s.table(rec.Kind)
	if err != nil {
		return err
	}
	system, err := json.Marshal(rec.System)
	if err != nil {
		return fmt.Errorf("encode system %s: %w", rec.ID, err)
	}
	errs, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("encode errors %s: %w", rec.ID, err)
	}

	if rec.Version <= 1 {
		q := fmt.Sprintf(`insert into %s (id, type, version, created_at, updated_at, system, invalid, errors)
values (%s, %s, %s, %s, %s, %s, %s, %s)`, tbl,
			s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8))
		_, err := s.db.ExecContext(ctx, q, rec.ID, rec.Type, int64(1),
			toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt), string(system), rec.Invalid, string(errs))
		if err != nil {
			if s.dialect.IsUniqueViolation(err) {
				return document.ErrExists
			}
			return fmt.Errorf("insert %s %s: %w", rec.Kind, rec.ID, err)
		}
		return nil
	}

	q := fmt.Sprintf(`update %s set type = %s, version = %s, updated_at = %s, system = %s, invalid = %s, errors = %s
where id = %s and version = %s`, tbl,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8))
	res, err := s.db.ExecContext(ctx, q, rec.Type, rec.Version, toMillis(rec.UpdatedAt),
		string(system), rec.Invalid, string(errs), rec.ID, rec.Version-1)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", rec.Kind, rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %s: %w", rec.Kind, rec.ID, err)
	}
	if n == 0 {
		return document.ErrVersionConflict
	}
	return nil
}

const columns = "id, type, version, created_at, updated_at, system, invalid, errors"

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(kind string, row scanner) (*document.Record, error) {
	var (
		rec              document.Record
		created, updated int64
		system, errs     string
	)
	if err := row.Scan(&rec.ID, &rec.Type, &rec.Version, &created, &updated, &system, &rec.Invalid, &errs); err != nil {
		return nil, err
	}
	rec.Kind = kind
	rec.CreatedAt = fromMillis(created)
	rec.UpdatedAt = fromMillis(updated)
	if err := json.Unmarshal([]byte(system), &rec.System); err != nil {
		return nil, fmt.Errorf("decode system %s: %w", rec.ID, err)
	}
	if rec.System == nil {
		rec.System = map[string]any{}
	}
	if errs != "" && errs != "null" {
		if err := json.Unmarshal([]byte(errs), &rec.Errors); err != nil {
			return nil, fmt.Errorf("decode errors %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func (s *Store) Get(ctx context.Context, kind, id string) (*document.Record, error) {
	tbl, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("select %s from %s where id = %s", columns, tbl, s.ph(1))
	rec, err := scanRecord(strings.ToLower(kind), s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, document.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return rec, nil
}

func (s *Store) List(ctx context.Context, kind string) ([]*document.Record, error) {
	tbl, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("select %s from %s order by id", columns, tbl))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []*document.Record
	for rows.Next() {
		rec, err := scanRecord(strings.ToLower(kind), rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, kind, id string) error {
	tbl, err := s.table(kind)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("delete from %s where id = %s", tbl, s.ph(1)), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	total := 0
	for kind := range s.kinds {
		var n int
		q := fmt.Sprintf("select count(*) from %s", s.dialect.Table(kind))
		if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", kind, err)
		}
		total += n
	}
	return total, nil
}

func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var v string
	q := fmt.Sprintf(`select "value" from %s where "key" = %s`, s.dialect.SettingsTable(), s.ph(1))
	err := s.db.QueryRowContext(ctx, q, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("setting %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	q := fmt.Sprintf(`insert into %s ("key", "value") values (%s, %s)
on conflict ("key") do update set "value" = excluded."value"`, s.dialect.SettingsTable(), s.ph(1), s.ph(2))
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ document.Store = (*Store)(nil)
