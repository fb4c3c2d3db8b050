package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mc3e/internal/document"
	"mc3e/internal/world"
)

// GET /api/_invalid: документы, не прошедшие проверку при загрузке.
func InvalidListHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs := w.Invalid()
		out := make([]map[string]any, 0, len(recs))
		for _, rec := range recs {
			out = append(out, document.Flatten(rec))
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/_settings
func SettingsHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := w.Status(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		loc := w.Localizer()
		c.JSON(http.StatusOK, gin.H{
			"strictValidation": gin.H{
				"value": st.Strict,
				"name":  loc.Localize("SETTINGS.StrictValidationN"),
				"hint":  loc.Localize("SETTINGS.StrictValidationL"),
			},
			"systemMigrationVersion": st.MigrationVersion,
		})
	}
}

type strictReq struct {
	Value *bool `json:"value"`
}

// PUT /api/_settings/strict-validation: только мастер.
func StrictValidationHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := currentUser(c)
		if err != nil {
			writeError(c, err)
			return
		}
		var req strictReq
		if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": `body must be {"value": true|false}`})
			return
		}
		rep, err := w.SetStrict(c.Request.Context(), user, *req.Value)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"strictValidation": *req.Value, "load": rep})
	}
}

// POST /api/_migrate: проход миграции по всему миру, только мастер.
func MigrateHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := currentUser(c)
		if err != nil {
			writeError(c, err)
			return
		}
		rep, err := w.MigrateWorld(c.Request.Context(), user)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, rep)
	}
}

// GET /api/_status
func StatusHandler(w *world.World) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := w.Status(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}
