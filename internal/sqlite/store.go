// Package sqlite: document.Store на modernc.org/sqlite: один файл на мир, без внешней БД.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"mc3e/internal/schema"
	"mc3e/internal/sqlstore"
)

type dialect struct{ prefix string }

func (d dialect) Table(kind string) string { return `"` + d.prefix + "_" + strings.ToLower(kind) + `s"` }

func (d dialect) SettingsTable() string { return `"` + d.prefix + `_settings"` }

func (d dialect) Placeholder(int) string { return "?" }

func (d dialect) IsUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(fmt.Sprint(err)), "unique constraint failed")
}

// DDL: схема для реестра: таблица настроек и по таблице на kind.
func DDL(reg *schema.Registry, system string) []string {
	d := dialect{prefix: strings.ToLower(system)}
	stmts := []string{
		fmt.Sprintf(`create table if not exists %s (key text primary key, value text not null)`, d.SettingsTable()),
	}
	for _, kind := range kinds(reg) {
		tbl := d.Table(kind)
		stmts = append(stmts,
			fmt.Sprintf(`create table if not exists %s (
  id text primary key,
  type text not null,
  version integer not null,
  created_at integer not null,
  updated_at integer not null,
  system text not null,
  invalid integer not null default 0,
  errors text
)`, tbl),
			fmt.Sprintf(`create index if not exists "%s_%ss_type_idx" on %s(type)`, d.prefix, kind, tbl),
		)
	}
	return stmts
}

func kinds(reg *schema.Registry) []string {
	out := make([]string, 0)
	for k := range reg.Kinds() {
		out = append(out, strings.ToLower(k))
	}
	sort.Strings(out)
	return out
}

// Open открывает (или создаёт) файл БД и применяет DDL. path ":memory:": БД в памяти.
func Open(ctx context.Context, path string, reg *schema.Registry, system string) (*sqlstore.Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// один писатель; для :memory: ещё и единственная копия БД
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range DDL(reg, system) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return sqlstore.New(db, dialect{prefix: strings.ToLower(system)}, kinds(reg)), nil
}
