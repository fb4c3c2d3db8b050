package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE
const (
	codeUniqueViolation = "23505"
	codeDuplicateObject = "42710" // повторное add constraint
)

// pgCode: SQLSTATE ошибки Postgres, "" для прочих ошибок.
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// ApplyDDL выполняет шаги GenerateDDL по возрастанию ключей. Шаги
// идемпотентны; уже существующие ограничения пропускаются.
func ApplyDDL(ctx context.Context, db *sql.DB, ddl map[string]string) error {
	steps := make([]string, 0, len(ddl))
	for k, stmt := range ddl {
		if strings.TrimSpace(stmt) != "" {
			steps = append(steps, k)
		}
	}
	sort.Strings(steps)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	skipped := 0
	for _, k := range steps {
		_, err := db.ExecContext(ctx, ddl[k])
		switch {
		case err == nil:
		case pgCode(err) == codeDuplicateObject:
			skipped++
			log.Printf("pg: %s: already applied: %v", k, err)
		default:
			return fmt.Errorf("apply DDL step %s: %w", k, err)
		}
	}
	log.Printf("pg: DDL applied, %d step(s), %d skipped", len(steps), skipped)
	return nil
}
