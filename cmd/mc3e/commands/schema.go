package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mc3e/internal/printer"
	"mc3e/internal/schema"
)

var schemaOutputFormat string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect registered document schemas",
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered (kind, type) pairs",
	Args:  cobra.NoArgs,
	RunE:  runSchemaList,
}

var schemaShowCmd = &cobra.Command{
	Use:   "show KIND TYPE",
	Short: "Show the flattened fields of one document type",
	Long: `Show every field of a document type after its templates are composed:
path, field type, constraints and the localized label.

Examples:
  mc3e schema show item spell
  mc3e schema show actor npc --output=json`,
	Args: cobra.ExactArgs(2),
	RunE: runSchemaShow,
}

func init() {
	schemaCmd.PersistentFlags().StringVarP(&schemaOutputFormat, "output", "o", "default", "Output format: default or json")
	schemaCmd.AddCommand(schemaListCmd, schemaShowCmd)
	rootCmd.AddCommand(schemaCmd)
}

type schemaEntry struct {
	Kind       string   `json:"kind"`
	Type       string   `json:"type"`
	Uses       []string `json:"uses,omitempty"`
	Migrations []string `json:"migrations"`
}

func runSchemaList(cmd *cobra.Command, args []string) error {
	rs, err := loadRuleset(cmd)
	if err != nil {
		return err
	}

	entities := rs.Registry.Entities()
	out := make([]schemaEntry, 0, len(entities))
	for _, e := range entities {
		item := schemaEntry{Kind: e.Kind, Type: e.Type, Migrations: e.Steps()}
		for _, t := range e.Uses {
			item.Uses = append(item.Uses, t.Name)
		}
		out = append(out, item)
	}
	if schemaOutputFormat == "json" {
		return writeJSON(cmd, out)
	}

	printer.Info("%-10s %-12s %-48s %s\n", "KIND", "TYPE", "TEMPLATES", "MIGRATIONS")
	for _, item := range out {
		uses := strings.Join(item.Uses, ", ")
		if uses == "" {
			uses = "-"
		}
		printer.Info("%-10s %-12s %-48s %d\n", item.Kind, item.Type, uses, len(item.Migrations))
	}
	return nil
}

type schemaField struct {
	Path        string `json:"path"`
	Type        string `json:"type"`
	Constraints string `json:"constraints,omitempty"`
	Label       string `json:"label,omitempty"`
}

func runSchemaShow(cmd *cobra.Command, args []string) error {
	rs, err := loadRuleset(cmd)
	if err != nil {
		return err
	}
	e, err := rs.Registry.Lookup(args[0], args[1])
	if err != nil {
		return printer.Error("Unknown document type",
			fmt.Sprintf("%s.%s is not registered.", args[0], args[1]),
			[]string{"Run 'mc3e schema list' to see registered types"})
	}

	var fields []schemaField
	schema.Walk(e.Fields, func(path string, f *schema.Field) {
		sf := schemaField{Path: path, Type: string(f.Kind), Constraints: constraints(f)}
		if f.Label != "" {
			sf.Label = rs.Localizer.Localize(f.Label)
		}
		fields = append(fields, sf)
	})
	if schemaOutputFormat == "json" {
		return writeJSON(cmd, map[string]any{"kind": e.Kind, "type": e.Type, "migrations": e.Steps(), "fields": fields})
	}

	printer.Step("%s.%s\n", e.Kind, e.Type)
	if steps := e.Steps(); len(steps) > 0 {
		printer.Info("migrations: %s\n", strings.Join(steps, ", "))
	}
	printer.Info("%-36s %-10s %-40s %s\n", "PATH", "TYPE", "CONSTRAINTS", "LABEL")
	for _, f := range fields {
		printer.Info("%-36s %-10s %-40s %s\n", f.Path, f.Type, f.Constraints, f.Label)
	}
	return nil
}

// constraints: опции поля в записи DSL.
func constraints(f *schema.Field) string {
	var parts []string
	if f.Required {
		parts = append(parts, "required")
	}
	if f.Nullable {
		parts = append(parts, "nullable")
	}
	if f.Blank {
		parts = append(parts, "blank")
	}
	if f.Integer {
		parts = append(parts, "integer")
	}
	if f.Min != nil {
		parts = append(parts, "min="+strconv.FormatFloat(*f.Min, 'f', -1, 64))
	}
	if f.Max != nil {
		parts = append(parts, "max="+strconv.FormatFloat(*f.Max, 'f', -1, 64))
	}
	if f.HasInitial && f.Initial != nil {
		parts = append(parts, fmt.Sprintf("initial=%v", f.Initial))
	}
	if f.Choices != "" {
		parts = append(parts, "choices="+f.Choices)
	}
	if f.Deterministic {
		parts = append(parts, "deterministic")
	}
	if len(f.InitialKeys) > 0 {
		parts = append(parts, fmt.Sprintf("initial_keys=%d", len(f.InitialKeys)))
	}
	return strings.Join(parts, " ")
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
