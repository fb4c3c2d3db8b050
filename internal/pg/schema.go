package pg

import (
	"fmt"
	"sort"
	"strings"

	"mc3e/internal/schema"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {}, "settings": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// элементарная плюрализация: actor -> actors, journal -> journals
func plural(s string) string {
	s = strings.ToLower(s)
	if strings.HasSuffix(s, "s") {
		return s
	}
	return s + "s"
}

// schema = id системы (lower), table = plural(kind) с защитой keyword'ов
func safeSchema(system string) string { return strings.ToLower(system) }

// Префикс e_ получают и зарезервированный kind, и его множественное число
// (setting -> e_settings не спорит с таблицей настроек).
func safeTable(kind string) string {
	t := plural(kind)
	if isReserved(kind) || isReserved(t) {
		t = "e_" + t
	}
	return t
}

func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }

func sqlString(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }

// GenerateDDL возвращает карту ключ -> SQL: схема системы, таблица настроек,
// по таблице на kind и check-ограничение на зарегистрированные type.
// Ключи задают порядок выполнения в ApplyDDL.
func GenerateDDL(reg *schema.Registry, system string) (map[string]string, error) {
	if strings.TrimSpace(system) == "" {
		return nil, fmt.Errorf("system id is required")
	}
	mod := safeSchema(system)
	out := map[string]string{}

	var phaseA strings.Builder
	fmt.Fprintf(&phaseA, "create schema if not exists %s;\n", sqlIdent(mod))
	fmt.Fprintf(&phaseA, "create table if not exists %s.%s (\n  \"key\" text primary key,\n  \"value\" text not null\n);\n",
		sqlIdent(mod), sqlIdent("settings"))

	kinds := reg.Kinds()
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)

	var phaseB strings.Builder
	for _, kind := range names {
		tbl := safeTable(kind)
		cols := []string{
			`"id" text primary key`,
			`"type" text not null`,
			`"version" bigint not null`,
			`"created_at" bigint not null`,
			`"updated_at" bigint not null`,
			`"system" jsonb not null`,
			`"invalid" boolean not null default false`,
			`"errors" jsonb`,
		}
		fmt.Fprintf(&phaseA, "create table if not exists %s.%s (\n  %s\n);\n",
			sqlIdent(mod), sqlIdent(tbl), strings.Join(cols, ",\n  "))
		fmt.Fprintf(&phaseA, "create index if not exists %s on %s.%s(%s);\n",
			sqlIdent(tbl+"_type_idx"), sqlIdent(mod), sqlIdent(tbl), sqlIdent("type"))

		types := append([]string(nil), kinds[kind]...)
		sort.Strings(types)
		quoted := make([]string, len(types))
		for i, t := range types {
			quoted[i] = sqlString(t)
		}
		ck := sqlIdent(tbl + "_type_ck")
		fmt.Fprintf(&phaseB, "alter table %s.%s drop constraint if exists %s;\n", sqlIdent(mod), sqlIdent(tbl), ck)
		fmt.Fprintf(&phaseB, "alter table %s.%s add constraint %s check (%s in (%s));\n",
			sqlIdent(mod), sqlIdent(tbl), ck, sqlIdent("type"), strings.Join(quoted, ", "))
	}

	out["000_schema_and_tables"] = phaseA.String()
	if phaseB.Len() > 0 {
		out["100_type_checks"] = phaseB.String()
	}
	return out, nil
}
