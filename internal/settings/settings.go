// Package settings хранит настройки мира, общие для всех документов:
// переключатель строгой валидации и версию последней миграции.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
)

// Ключи настроек в хранилище.
const (
	KeyStrictValidation = "strictValidation"
	KeyMigrationVersion = "systemMigrationVersion"
)

var (
	ErrForbidden   = errors.New("forbidden: game master role required")
	ErrUnknownRole = errors.New("unknown user role")
)

// Store: то, что нужно настройкам от хранилища документов.
type Store interface {
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Role: уровень прав пользователя.
type Role string

const (
	RoleNone       Role = "none"
	RolePlayer     Role = "player"
	RoleTrusted    Role = "trusted"
	RoleAssistant  Role = "assistant"
	RoleGamemaster Role = "gamemaster"
)

// ParseRole разбирает роль без учёта регистра; пустая строка -> none.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case "":
		return RoleNone, nil
	case RoleNone, RolePlayer, RoleTrusted, RoleAssistant, RoleGamemaster:
		return r, nil
	}
	return RoleNone, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

type User struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// IsGM: ассистент или мастер.
func (u User) IsGM() bool { return u.Role == RoleAssistant || u.Role == RoleGamemaster }

// Strictness: общий для процесса флаг строгой валидации.
// Читается при каждой загрузке документа, пишется только мастером.
type Strictness struct {
	flag  atomic.Bool
	store Store
}

// LoadStrictness читает сохранённое значение; если его нет, берётся def.
func LoadStrictness(ctx context.Context, store Store, def bool) (*Strictness, error) {
	s := &Strictness{store: store}
	s.flag.Store(def)
	raw, ok, err := store.Setting(ctx, KeyStrictValidation)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", KeyStrictValidation, err)
	}
	if ok {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			log.Printf("settings: bad %s value %q, using %t", KeyStrictValidation, raw, def)
		} else {
			s.flag.Store(v)
		}
	}
	return s, nil
}

func (s *Strictness) Strict() bool { return s.flag.Load() }

// SetStrict сохраняет новое значение и только потом меняет флаг процесса.
func (s *Strictness) SetStrict(ctx context.Context, user User, v bool) error {
	if !user.IsGM() {
		return ErrForbidden
	}
	if err := s.store.SetSetting(ctx, KeyStrictValidation, strconv.FormatBool(v)); err != nil {
		return fmt.Errorf("write %s: %w", KeyStrictValidation, err)
	}
	s.flag.Store(v)
	return nil
}

// Outcome: результат Configure.
type Outcome struct {
	Strict         bool `json:"strict"`
	ReloadRequired bool `json:"reloadRequired"`
}

// Configure вызывается после загрузки мира. Если у мастера в мире есть
// невалидные документы, строгий режим выключается, чтобы их можно было
// открыть и исправить; вызывающий должен перезагрузить документы.
// Обратно в строгий режим настройка сама не возвращается.
func (s *Strictness) Configure(ctx context.Context, user User, invalid int) (Outcome, error) {
	out := Outcome{Strict: s.Strict()}
	if !user.IsGM() || invalid == 0 || !out.Strict {
		return out, nil
	}
	if err := s.SetStrict(ctx, user, false); err != nil {
		return out, err
	}
	log.Printf("settings: %d invalid documents, strict validation disabled", invalid)
	return Outcome{Strict: false, ReloadRequired: true}, nil
}

// MigrationVersion: версия системы, до которой мир был мигрирован последним ("": ни разу).
func MigrationVersion(ctx context.Context, store Store) (string, error) {
	v, _, err := store.Setting(ctx, KeyMigrationVersion)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", KeyMigrationVersion, err)
	}
	return strings.TrimSpace(v), nil
}

func SetMigrationVersion(ctx context.Context, store Store, v string) error {
	if err := store.SetSetting(ctx, KeyMigrationVersion, v); err != nil {
		return fmt.Errorf("write %s: %w", KeyMigrationVersion, err)
	}
	return nil
}
