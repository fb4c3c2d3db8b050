package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mc3e/internal/document"
	"mc3e/internal/world"
)

// POST /api/:kind/:type
func CreateHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		var obj map[string]any
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&obj); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
				return
			}
		}
		if obj == nil {
			obj = map[string]any{}
		}
		if ers := checkReadonlyAndSystem(obj); len(ers) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": ers})
			return
		}

		rec, err := w.Create(c.Request.Context(), c.Param("kind"), c.Param("type"), obj)
		if err != nil {
			writeError(c, err)
			return
		}
		setETag(c, rec)
		c.JSON(http.StatusCreated, document.Flatten(rec))
	}
}

// GET /api/:kind/:type
func ListHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := w.Registry().Lookup(c.Param("kind"), c.Param("type"))
		if err != nil {
			writeError(c, err)
			return
		}
		all, err := w.List(e.Kind, e.Type)
		if err != nil {
			writeError(c, err)
			return
		}

		q := c.Request.URL.Query()
		filtered := filterWithOps(all, e, q)
		lp := parseListParams(q)
		sortRecordsMultiNulls(filtered, lp.Sort, lp.Nulls)

		p := page(filtered, lp)
		out := make([]map[string]any, 0, len(p))
		for _, rec := range p {
			out = append(out, document.Flatten(rec))
		}
		c.Header("X-Total-Count", strconv.Itoa(len(filtered)))
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/:kind/:type/_count
func CountHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := w.Registry().Lookup(c.Param("kind"), c.Param("type"))
		if err != nil {
			writeError(c, err)
			return
		}
		all, err := w.List(e.Kind, e.Type)
		if err != nil {
			writeError(c, err)
			return
		}
		filtered := filterWithOps(all, e, c.Request.URL.Query())
		c.JSON(http.StatusOK, gin.H{"total": len(filtered)})
	}
}

// GET /api/:kind/:type/:id
func GetOneHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := w.Get(c.Param("kind"), c.Param("type"), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		setETag(c, rec)
		c.JSON(http.StatusOK, document.Flatten(rec))
	}
}

// PATCH /api/:kind/:type/:id
func UpdatePartialHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		// ожидаемую версию читаем ДО удаления поля version
		expVer, okExp := readExpectedVersion(c, patch)
		if ers := checkReadonlyAndSystem(patch); len(ers) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": ers})
			return
		}
		if !okExp {
			c.JSON(http.StatusConflict, gin.H{
				"errors": []any{ferr(ErrVersionConflict, "version", "If-Match header or version field is required")},
			})
			return
		}

		rec, err := w.Update(c.Request.Context(), c.Param("kind"), c.Param("type"), c.Param("id"), expVer, patch)
		if err != nil {
			writeError(c, err)
			return
		}
		setETag(c, rec)
		c.JSON(http.StatusOK, document.Flatten(rec))
	}
}

// DELETE /api/:kind/:type/:id
func DeleteHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := w.Delete(c.Request.Context(), c.Param("kind"), c.Param("type"), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
