package api

import (
	"github.com/gin-gonic/gin"

	"mc3e/internal/world"
)

// NewRouter собирает маршруты API поверх мира.
func NewRouter(w *world.World, middleware ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middleware...)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/meta", MetaListHandler(w))
		apiGroup.GET("/meta/lint", MetaLintHandler(w))
		apiGroup.GET("/meta/catalog", MetaCatalogListHandler(w))
		apiGroup.GET("/meta/catalog/:name", MetaCatalogHandler(w))
		apiGroup.GET("/meta/:kind/:type", MetaEntityHandler(w))

		// служебные маршруты мира
		apiGroup.GET("/_status", StatusHandler(w))
		apiGroup.GET("/_invalid", InvalidListHandler(w))
		apiGroup.GET("/_settings", SettingsHandler(w))
		apiGroup.PUT("/_settings/strict-validation", StrictValidationHandler(w))
		apiGroup.POST("/_migrate", MigrateHandler(w))

		// статические маршруты сущности: СНАЧАЛА
		apiGroup.GET("/:kind/:type/_count", CountHandler(w))

		// обычные CRUD
		apiGroup.POST("/:kind/:type", CreateHandler(w))
		apiGroup.GET("/:kind/:type", ListHandler(w))
		apiGroup.GET("/:kind/:type/:id", GetOneHandler(w))
		apiGroup.PATCH("/:kind/:type/:id", UpdatePartialHandler(w))
		apiGroup.DELETE("/:kind/:type/:id", DeleteHandler(w))
	}
	return r
}

func RunServer(addr string, w *world.World) error {
	r := NewRouter(w, gin.Logger(), gin.Recovery())
	return r.Run(addr)
}
