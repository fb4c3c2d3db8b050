package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"mc3e/internal/i18n"
	"mc3e/internal/reference"
	"mc3e/internal/schema"
	"mc3e/internal/world"
)

// ===== META HANDLERS =====

type metaEntityListItem struct {
	Kind  string   `json:"kind"`
	Type  string   `json:"type"`
	Uses  []string `json:"uses,omitempty"`
	Steps int      `json:"migrations"`
}

func MetaListHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		entities := w.Registry().Entities()
		out := make([]metaEntityListItem, 0, len(entities))
		for _, e := range entities {
			item := metaEntityListItem{Kind: e.Kind, Type: e.Type, Steps: len(e.Steps())}
			for _, t := range e.Uses {
				item.Uses = append(item.Uses, t.Name)
			}
			out = append(out, item)
		}
		c.JSON(http.StatusOK, out)
	}
}

type metaOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

type metaField struct {
	Path          string       `json:"path"`
	Type          string       `json:"type"`
	Required      bool         `json:"required,omitempty"`
	Nullable      bool         `json:"nullable,omitempty"`
	Blank         bool         `json:"blank,omitempty"`
	Min           *float64     `json:"min,omitempty"`
	Max           *float64     `json:"max,omitempty"`
	Initial       any          `json:"initial,omitempty"`
	Deterministic bool         `json:"deterministic,omitempty"`
	InitialKeys   []string     `json:"initialKeys,omitempty"`
	Choices       string       `json:"choices,omitempty"`
	Options       []metaOption `json:"options,omitempty"`
	Label         string       `json:"label,omitempty"`
	LabelKey      string       `json:"labelKey,omitempty"`
	Hint          string       `json:"hint,omitempty"`
}

type metaEntity struct {
	Kind       string      `json:"kind"`
	Type       string      `json:"type"`
	Uses       []string    `json:"uses,omitempty"`
	Migrations []string    `json:"migrations"`
	Fields     []metaField `json:"fields"`
}

func MetaEntityHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := w.Registry().Lookup(c.Param("kind"), c.Param("type"))
		if err != nil {
			writeError(c, err)
			return
		}
		loc := w.Localizer()
		ref := w.Registry().Reference()

		out := metaEntity{Kind: e.Kind, Type: e.Type, Migrations: e.Steps(), Fields: []metaField{}}
		if out.Migrations == nil {
			out.Migrations = []string{}
		}
		for _, t := range e.Uses {
			out.Uses = append(out.Uses, t.Name)
		}
		schema.Walk(e.Fields, func(path string, f *schema.Field) {
			mf := metaField{
				Path:          path,
				Type:          string(f.Kind),
				Required:      f.Required,
				Nullable:      f.Nullable,
				Blank:         f.Blank,
				Min:           f.Min,
				Max:           f.Max,
				Initial:       f.Initial,
				Deterministic: f.Deterministic,
				InitialKeys:   f.InitialKeys,
				Choices:       f.Choices,
				LabelKey:      f.Label,
				Hint:          f.Hint,
			}
			if f.Label != "" {
				mf.Label = loc.Localize(f.Label)
			}
			if f.Choices != "" {
				mf.Options = catalogOptions(ref, loc, f.Choices)
			}
			out.Fields = append(out.Fields, mf)
		})
		c.JSON(http.StatusOK, out)
	}
}

type metaCatalogItem struct {
	Code  string   `json:"code"`
	Name  string   `json:"name"`
	Label string   `json:"label"`
	Abbr  string   `json:"abbr,omitempty"`
	Order int      `json:"order,omitempty"`
	Value *float64 `json:"value,omitempty"`
}

func MetaCatalogListHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, w.Registry().Reference().Names())
	}
}

func MetaCatalogHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		dir, ok := w.Registry().Reference().Catalog(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Catalog not found"})
			return
		}
		loc := w.Localizer()
		items := make([]metaCatalogItem, 0, len(dir.Items))
		for _, it := range dir.Items {
			item := metaCatalogItem{Code: it.Code, Name: it.Name, Label: loc.Localize(it.Name), Order: it.Order, Value: it.Value}
			if it.Abbr != "" {
				item.Abbr = loc.Localize(it.Abbr)
			}
			items = append(items, item)
		}
		c.JSON(http.StatusOK, gin.H{
			"name":   name,
			"locale": loc.Locale(),
			"items":  items,
		})
	}
}

func MetaLintHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		issues := w.Registry().Lint()
		if issues == nil {
			issues = []schema.Issue{}
		}
		sort.SliceStable(issues, func(i, j int) bool { return issues[i].Entity < issues[j].Entity })
		c.JSON(http.StatusOK, gin.H{"issues": issues})
	}
}

func catalogOptions(ref *reference.Config, loc *i18n.Localizer, name string) []metaOption {
	dir, ok := ref.Catalog(name)
	if !ok {
		return nil
	}
	out := make([]metaOption, 0, len(dir.Items))
	for _, it := range dir.Items {
		out = append(out, metaOption{Code: it.Code, Label: loc.Localize(it.Name)})
	}
	return out
}
