package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"mc3e/internal/app"
	"mc3e/internal/printer"
	"mc3e/internal/settings"
	"mc3e/internal/world"
)

// CLI работает с миром от имени мастера.
var cliUser = settings.User{Name: "cli", Role: settings.RoleGamemaster}

var worldCmd = &cobra.Command{
	Use:   "world",
	Short: "Operate on the documents of a configured world store",
	Long: `Operate on the world stored in the database selected by --db-driver
and --db (or MC3E_DB_DRIVER and MC3E_DB_URL).`,
}

var worldMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate every stored document and record the system version",
	Args:  cobra.NoArgs,
	RunE:  runWorldMigrate,
}

var worldStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show versions, strictness and document counts",
	Args:  cobra.NoArgs,
	RunE:  runWorldStatus,
}

func init() {
	worldCmd.AddCommand(worldMigrateCmd, worldStatusCmd)
	rootCmd.AddCommand(worldCmd)
}

func openWorld(cmd *cobra.Command) (*world.World, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	w, st, err := app.Open(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, printer.ErrorWithContext("Cannot open world", err.Error(), map[string]string{
			"Driver": cfg.DBDriver,
		}, []string{"Check --db-driver and --db (or MC3E_DB_DRIVER and MC3E_DB_URL)"})
	}
	return w, func() { _ = st.Close() }, nil
}

func runWorldMigrate(cmd *cobra.Command, args []string) error {
	w, closeFn, err := openWorld(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	printer.Step("Migrating world documents\n")
	rep, err := w.MigrateWorld(cmd.Context(), cliUser)
	if err != nil {
		return printer.Error("World migration failed", err.Error(), nil)
	}
	if st, err := w.Status(cmd.Context()); err == nil {
		for _, wr := range st.Warnings {
			printer.Warning("%s\n", wr.Message)
		}
	}
	printer.Success("%s -> %s: %d migrated, %d unchanged\n", orNone(rep.From), rep.To, rep.Migrated, rep.Unchanged)
	if rep.Invalid > 0 {
		printer.Warning("%d document(s) still fail validation\n", rep.Invalid)
	}
	if rep.Failed > 0 {
		return printer.Error("World migration incomplete", "Some documents could not be saved, see the log above.", nil)
	}
	return nil
}

func runWorldStatus(cmd *cobra.Command, args []string) error {
	w, closeFn, err := openWorld(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	if _, err := w.Load(ctx); err != nil {
		return printer.Error("Cannot load world", err.Error(), nil)
	}
	st, err := w.Status(ctx)
	if err != nil {
		return printer.Error("Cannot read world status", err.Error(), nil)
	}

	printer.Info("system:            %s %s\n", st.System, st.Version)
	printer.Info("migration version: %s\n", orNone(st.MigrationVersion))
	printer.Info("strict validation: %t\n", st.Strict)
	printer.Info("documents:         %d (%d invalid)\n", st.Documents, st.Invalid)
	if st.MigrationNeeded {
		printer.Warning("migration needed, run 'mc3e world migrate'\n")
	}
	for _, wr := range st.Warnings {
		printer.Warning("%s\n", wr.Message)
	}
	return nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
