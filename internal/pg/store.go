package pg

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"mc3e/internal/schema"
	"mc3e/internal/sqlstore"
)

type dialect struct{ schema string }

func (d dialect) Table(kind string) string {
	return sqlIdent(d.schema) + "." + sqlIdent(safeTable(kind))
}

func (d dialect) SettingsTable() string { return sqlIdent(d.schema) + "." + sqlIdent("settings") }

func (d dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d dialect) IsUniqueViolation(err error) bool { return pgCode(err) == codeUniqueViolation }

// NewStore: document.Store в схеме system поверх открытого соединения.
func NewStore(db *sql.DB, reg *schema.Registry, system string) *sqlstore.Store {
	kinds := make([]string, 0)
	for k := range reg.Kinds() {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return sqlstore.New(db, dialect{schema: safeSchema(system)}, kinds)
}

// OpenStore открывает БД и, если autoMigrate, создаёт недостающие схему и таблицы.
func OpenStore(ctx context.Context, url string, reg *schema.Registry, system string, autoMigrate bool) (*sqlstore.Store, error) {
	db, err := Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if autoMigrate {
		ddl, err := GenerateDDL(reg, system)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := ApplyDDL(ctx, db, ddl); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return NewStore(db, reg, system), nil
}
