package controller

import (
	"time"

	"github.com/Scalingo/sclng-language-stats/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter defines all routes of the API
func NewRouter(apiController APIController) *gin.Engine {
	router := gin.New()

	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(),
		cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET"},
			AllowHeaders:  []string{"Content-Type, Content-Length, Accept-Encoding, Host, accept, Origin, Cache-Control, X-Requested-With"},
			ExposeHeaders: []string{middleware.HeaderRequestID, "Retry-After"},
			MaxAge:        12 * time.Hour,
		}),
	)

	api := router.Group("/api")
	{
		api.GET("/stats/:account", apiController.GetLanguageStats)
		api.GET("/stats/:account/chart", apiController.GetLanguageChart)
		api.GET("/stats/:account/primary", apiController.GetPrimaryLanguages)
	}

	return router
}
