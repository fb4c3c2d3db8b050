package reference

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/system.yaml data/enums/*.yaml
var embeddedFS embed.FS

// LoadEnumCatalog читает все enum-справочники из каталога dir внутри fsys.
func LoadEnumCatalog(fsys fs.FS, dir string) (map[string]EnumDirectory, error) {
	result := make(map[string]EnumDirectory)
	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if file.IsDir() || !(strings.HasSuffix(file.Name(), ".yaml") || strings.HasSuffix(file.Name(), ".yml")) {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, file.Name()))
		if err != nil {
			return nil, err
		}
		var enumDir EnumDirectory
		if err := yaml.Unmarshal(data, &enumDir); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file.Name(), err)
		}
		// имя справочника: из enumDir.Name или из имени файла
		enumName := enumDir.Name
		if enumName == "" {
			enumName = strings.TrimSuffix(file.Name(), path.Ext(file.Name()))
		}
		if _, dup := result[enumName]; dup {
			return nil, fmt.Errorf("duplicate catalog %q (file: %s)", enumName, file.Name())
		}
		seen := make(map[string]struct{}, len(enumDir.Items))
		for _, it := range enumDir.Items {
			if strings.TrimSpace(it.Code) == "" {
				return nil, fmt.Errorf("catalog %q: empty code", enumName)
			}
			if _, dup := seen[it.Code]; dup {
				return nil, fmt.Errorf("catalog %q: duplicate code %q", enumName, it.Code)
			}
			seen[it.Code] = struct{}{}
		}
		sort.SliceStable(enumDir.Items, func(i, j int) bool { return enumDir.Items[i].Order < enumDir.Items[j].Order })
		result[enumName] = enumDir
	}
	return result, nil
}

// LoadManifest читает system.yaml.
func LoadManifest(fsys fs.FS, file string) (Manifest, error) {
	var m Manifest
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse %s: %w", file, err)
	}
	if strings.TrimSpace(m.Version) == "" {
		return m, fmt.Errorf("%s: version is required", file)
	}
	return m, nil
}

// LoadFS собирает Config из файловой системы с раскладкой system.yaml + enums/*.yaml.
func LoadFS(fsys fs.FS, root string) (*Config, error) {
	m, err := LoadManifest(fsys, path.Join(root, "system.yaml"))
	if err != nil {
		return nil, err
	}
	catalogs, err := LoadEnumCatalog(fsys, path.Join(root, "enums"))
	if err != nil {
		return nil, err
	}
	return NewConfig(m, catalogs), nil
}

// LoadEmbedded: справочники, вшитые в бинарник.
func LoadEmbedded() (*Config, error) {
	return LoadFS(embeddedFS, "data")
}

// Load читает справочники с диска; пустой dir: встроенные.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return LoadEmbedded()
	}
	return LoadFS(os.DirFS(dir), ".")
}

func sortStrings(s []string) { sort.Strings(s) }
