package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mc3e/internal/app"
	"mc3e/internal/config"
	"mc3e/internal/printer"
)

var (
	version string
	commit  string
	date    string
)

var rootCmd = &cobra.Command{
	Use:   "mc3e",
	Short: "mc3e - ruleset data tools",
	Long: `mc3e inspects the ruleset schema and migrates document data.

Document exports are JSON files holding one document or an array of
documents: {"kind":"item","type":"tool","system":{...}}.

Settings come from mc3e.json (or --config), MC3E_* environment variables
and the global flags below, in that order.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		printer.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute запускает корневую команду; ошибки печатает printer, не cobra.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to config JSON (default mc3e.json)")
	pf.String("schema", "", "Path to DSL directory (empty = embedded)")
	pf.String("reference", "", "Path to reference data (empty = embedded)")
	pf.String("locale", "", "Locale for labels and messages")
	pf.String("db-driver", "", "Document store: memory, postgres or sqlite")
	pf.String("db", "", "Postgres URL or sqlite file path")
	pf.Bool("auto-migrate", false, "Create database schema and tables")
}

// loadConfig передаёт в config.Load только явно заданные глобальные флаги,
// чтобы они ложились поверх файла и окружения.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var args []string
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if !f.Changed || cmd.Root().PersistentFlags().Lookup(f.Name) == nil {
			return
		}
		args = append(args, fmt.Sprintf("-%s=%s", f.Name, f.Value.String()))
	})
	cfg, err := config.Load(args)
	if err != nil {
		return cfg, printer.Error("Invalid configuration", err.Error(), []string{
			"Check mc3e.json, MC3E_* variables and the global flags",
		})
	}
	return cfg, nil
}

func loadRuleset(cmd *cobra.Command) (*app.Ruleset, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	rs, err := app.LoadRuleset(cfg)
	if err != nil {
		return nil, printer.ErrorWithContext("Cannot load ruleset", err.Error(), map[string]string{
			"Schema":    orEmbedded(cfg.SchemaDir),
			"Reference": orEmbedded(cfg.ReferenceDir),
		}, nil)
	}
	return rs, nil
}

func orEmbedded(dir string) string {
	if dir == "" {
		return "(embedded)"
	}
	return dir
}
