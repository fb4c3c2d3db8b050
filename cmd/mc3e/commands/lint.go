package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"mc3e/internal/printer"
)

var lintStrict bool

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Report problems in the schema definitions",
	Long: `Report problems found while composing the schema: unknown catalogs,
overridden template fields, bad constraints and invalid initial values.

Issues are warnings unless --strict is set.`,
	Args: cobra.NoArgs,
	RunE: runLint,
}

func init() {
	lintCmd.Flags().BoolVar(&lintStrict, "strict", false, "Exit with an error when any issue is found")
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	rs, err := loadRuleset(cmd)
	if err != nil {
		return err
	}
	issues := rs.Registry.Lint()
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Entity < issues[j].Entity })
	if len(issues) == 0 {
		printer.Success("No schema issues\n")
		return nil
	}
	for _, is := range issues {
		printer.Warning("%s %s [%s] %s\n", is.Entity, is.Field, is.Code, is.Message)
	}
	if lintStrict {
		return printer.Error("Schema lint failed", fmt.Sprintf("%d issue(s) found.", len(issues)), nil)
	}
	return nil
}
