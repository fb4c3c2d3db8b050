package commands

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"mc3e/internal/document"
	"mc3e/internal/printer"
	"mc3e/internal/schema"
)

var (
	migrateOut    string
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate PATH...",
	Short: "Migrate JSON document exports to the current schema",
	Long: `Run every migration step and normalization on the documents in the
given export files. Directories are searched for *.json files.

Files are rewritten in place only when a document changed. With --out
every file is written under the output directory, keeping its relative path.

Examples:
  mc3e migrate packs/items.json
  mc3e migrate packs/ --out migrated/
  mc3e migrate packs/ --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMigrate,
}

var validateCmd = &cobra.Command{
	Use:   "validate PATH...",
	Short: "Validate JSON document exports against the schema",
	Long: `Migrate the documents in memory and report every constraint violation.
Files are never written. Exits with an error when any document is invalid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateOut, "out", "", "Write results under this directory instead of in place")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Report changes without writing files")
	rootCmd.AddCommand(migrateCmd, validateCmd)
}

type exportFile struct {
	Path string
	Rel  string // путь относительно аргумента, для --out
}

// collectFiles раскрывает каталоги в отсортированный список *.json.
func collectFiles(args []string) ([]exportFile, error) {
	var out []exportFile
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			out = append(out, exportFile{Path: arg, Rel: filepath.Base(arg)})
			continue
		}
		var found []exportFile
		err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".json") {
				return nil
			}
			rel, err := filepath.Rel(arg, p)
			if err != nil {
				return err
			}
			found = append(found, exportFile{Path: p, Rel: rel})
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
		out = append(out, found...)
	}
	return out, nil
}

func readExportFile(path string) ([]document.Export, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()
	return document.ReadExports(f)
}

type docResult struct {
	Kind    string
	Type    string
	Unknown bool
	Changed bool
	Errors  []schema.FieldError
}

// prepareDocs мигрирует и нормализует system каждого документа на месте.
// Документы неизвестного типа не трогаются.
func prepareDocs(reg *schema.Registry, docs []document.Export) []docResult {
	out := make([]docResult, len(docs))
	for i := range docs {
		d := &docs[i]
		res := docResult{Kind: d.Kind, Type: d.Type}
		e, err := reg.Lookup(d.Kind, d.Type)
		if err != nil {
			res.Unknown = true
			out[i] = res
			continue
		}
		before := schema.DeepCopyMap(d.System)
		data, err := e.Prepare(schema.DeepCopyMap(d.System))
		res.Errors = schema.FieldErrors(err)
		res.Changed = !reflect.DeepEqual(before, data)
		d.System = data
		out[i] = res
	}
	return out
}

func reportDoc(file string, i int, r docResult) {
	switch {
	case r.Unknown:
		printer.Warning("%s #%d: unknown document type %s.%s, left unchanged\n", file, i, r.Kind, r.Type)
	case len(r.Errors) > 0:
		for _, fe := range r.Errors {
			printer.Warning("%s #%d %s.%s: %s: %s (%s)\n", file, i, r.Kind, r.Type, fe.Field, fe.Message, fe.Code)
		}
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	rs, err := loadRuleset(cmd)
	if err != nil {
		return err
	}
	files, err := collectFiles(args)
	if err != nil {
		return printer.Error("Cannot read input", err.Error(), nil)
	}

	var failed []string
	var total, changed int
	for _, f := range files {
		docs, many, err := readExportFile(f.Path)
		if err != nil {
			printer.Warning("%s: %v\n", f.Path, err)
			failed = append(failed, f.Path)
			continue
		}
		results := prepareDocs(rs.Registry, docs)
		n := 0
		for i, r := range results {
			reportDoc(f.Path, i, r)
			if r.Changed {
				n++
			}
		}
		total += len(docs)
		changed += n

		dst := f.Path
		if migrateOut != "" {
			dst = filepath.Join(migrateOut, f.Rel)
		} else if n == 0 {
			printer.Info("%s: up to date\n", f.Path)
			continue
		}
		if migrateDryRun {
			printer.Step("%s: %d of %d document(s) would change\n", f.Path, n, len(docs))
			continue
		}
		if err := writeExportFile(dst, docs, many); err != nil {
			printer.Warning("%s: %v\n", dst, err)
			failed = append(failed, f.Path)
			continue
		}
		printer.Success("%s: %d of %d document(s) migrated\n", dst, n, len(docs))
	}

	if len(failed) > 0 {
		return printer.Error("Migration incomplete",
			fmt.Sprintf("%d file(s) could not be migrated: %s", len(failed), strings.Join(failed, ", ")), nil)
	}
	printer.Info("%d document(s) in %d file(s), %d changed\n", total, len(files), changed)
	return nil
}

func writeExportFile(path string, docs []document.Export, many bool) error {
	var buf bytes.Buffer
	if err := document.WriteExports(&buf, docs, many); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func runValidate(cmd *cobra.Command, args []string) error {
	rs, err := loadRuleset(cmd)
	if err != nil {
		return err
	}
	files, err := collectFiles(args)
	if err != nil {
		return printer.Error("Cannot read input", err.Error(), nil)
	}

	var total, bad int
	for _, f := range files {
		docs, _, err := readExportFile(f.Path)
		if err != nil {
			printer.Warning("%s: %v\n", f.Path, err)
			bad++
			continue
		}
		for i, r := range prepareDocs(rs.Registry, docs) {
			reportDoc(f.Path, i, r)
			if r.Unknown || len(r.Errors) > 0 {
				bad++
			}
		}
		total += len(docs)
	}

	if bad > 0 {
		return printer.Error("Validation failed",
			fmt.Sprintf("%d problem document(s) or file(s) out of %d document(s).", bad, total), nil)
	}
	printer.Success("%d document(s) valid\n", total)
	return nil
}
