package migration

import (
	"strings"

	"golang.org/x/mod/semver"

	"mc3e/internal/reference"
)

// Action: что делать с миром при старте.
type Action string

const (
	ActionNone    Action = "none"    // версия актуальна
	ActionRecord  Action = "record"  // пустой мир: просто записать текущую версию
	ActionMigrate Action = "migrate" // нужен проход миграции по всем документам
)

// Plan: решение по сохранённой версии миграции мира.
type Plan struct {
	Action  Action `json:"action"`
	Stored  string `json:"stored"`
	Target  string `json:"target"`
	TooOld  bool   `json:"tooOld"` // старше compatibleMigrationVersion: миграция без гарантий
	Warning string `json:"warning,omitempty"`
}

// WarningTooOld: ключ локализации постоянного предупреждения о слишком старом мире.
const WarningTooOld = "MIGRATION.VersionTooOldWarning"

// CheckVersion сравнивает сохранённую версию с порогами манифеста.
// documents: общее число документов мира.
func CheckVersion(stored string, documents int, m reference.Manifest) Plan {
	stored = strings.TrimSpace(stored)
	p := Plan{Action: ActionNone, Stored: stored, Target: m.Version}
	if stored == "" && documents == 0 {
		p.Action = ActionRecord
		return p
	}
	if stored != "" && !IsNewer(m.NeedsMigrationVersion, stored) {
		return p
	}
	p.Action = ActionMigrate
	if stored != "" && IsNewer(m.CompatibleMigrationVersion, stored) {
		p.TooOld = true
		p.Warning = WarningTooOld
	}
	return p
}

// IsNewer: v строго новее base. Невалидная версия считается старше любой валидной.
func IsNewer(v, base string) bool {
	return semver.Compare(canonical(v), canonical(base)) > 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
