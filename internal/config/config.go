package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Драйверы хранилища документов
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port        string `json:"port"        env:"MC3E_PORT"`
	DBDriver    string `json:"dbDriver"    env:"MC3E_DB_DRIVER"`
	DBURL       string `json:"dbUrl"       env:"MC3E_DB_URL"`
	AutoMigrate bool   `json:"autoMigrate" env:"MC3E_AUTO_MIGRATE"` // создать схему и таблицы БД

	Locale           string `json:"locale"           env:"MC3E_LOCALE"`
	StrictValidation bool   `json:"strictValidation" env:"MC3E_STRICT_VALIDATION"` // пока мастер не поменял настройку мира

	// Пусто: встроенные определения
	SchemaDir    string `json:"schemaDir"    env:"MC3E_SCHEMA_DIR"`
	ReferenceDir string `json:"referenceDir" env:"MC3E_REFERENCE_DIR"`
}

func def() Config {
	return Config{
		Port:             "8080",
		DBDriver:         DriverMemory,
		Locale:           "en-US",
		StrictValidation: true,
	}
}

func loadJSON(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// Load собирает конфиг слоями: умолчания, JSON-файл (-config или MC3E_CONFIG,
// если файл существует), переменные окружения MC3E_*, флаги args.
func Load(args []string) (Config, error) {
	return load(args, io.Discard)
}

func load(args []string, usage io.Writer) (Config, error) {
	cfg := def()

	// путь к JSON ищем до разбора остальных флагов
	jsonPath := strings.TrimSpace(os.Getenv("MC3E_CONFIG"))
	if jsonPath == "" {
		jsonPath = "mc3e.json"
	}
	pre := flag.NewFlagSet("mc3e", flag.ContinueOnError)
	pre.SetOutput(io.Discard)
	pre.StringVar(&jsonPath, "config", jsonPath, "")
	_ = pre.Parse(filterConfigFlag(args))

	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if err := loadJSON(jsonPath, &cfg); err != nil {
			return cfg, err
		}
	}

	// ENV overrides
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	// Flags overrides
	fs := flag.NewFlagSet("mc3e", flag.ContinueOnError)
	fs.SetOutput(usage)
	fs.String("config", jsonPath, "Path to config JSON")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	fs.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "Document store: memory, postgres or sqlite")
	fs.StringVar(&cfg.DBURL, "db", cfg.DBURL, "Postgres URL or sqlite file path")
	fs.BoolVar(&cfg.AutoMigrate, "auto-migrate", cfg.AutoMigrate, "Create database schema and tables on start")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Locale for labels and messages")
	fs.BoolVar(&cfg.StrictValidation, "strict", cfg.StrictValidation, "Default strict validation for new worlds")
	fs.StringVar(&cfg.SchemaDir, "schema", cfg.SchemaDir, "Path to DSL directory (empty = embedded)")
	fs.StringVar(&cfg.ReferenceDir, "reference", cfg.ReferenceDir, "Path to reference data (empty = embedded)")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.Port = strings.TrimSpace(cfg.Port)
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.DBURL = strings.TrimSpace(cfg.DBURL)
	return cfg, cfg.Validate()
}

// filterConfigFlag оставляет из args только -config, чтобы предварительный
// разбор не падал на остальных флагах.
func filterConfigFlag(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		name := strings.TrimLeft(a, "-")
		switch {
		case !strings.HasPrefix(a, "-"):
			continue
		case strings.HasPrefix(name, "config="):
			out = append(out, a)
		case name == "config" && i+1 < len(args):
			out = append(out, a, args[i+1])
			i++
		}
	}
	return out
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.DBURL == "" {
			return fmt.Errorf("config: db url is required for driver %q", c.DBDriver)
		}
	default:
		return fmt.Errorf("config: unknown db driver %q", c.DBDriver)
	}
	if c.Port == "" {
		return errors.New("config: port is required")
	}
	return nil
}
