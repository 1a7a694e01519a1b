package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	appsvc "neuropathx/internal/app"
	"neuropathx/internal/bootstrap"
	"neuropathx/internal/cache"
	"neuropathx/internal/imaging"
	"neuropathx/internal/platform/rabbitmq"
	"neuropathx/internal/repository"
	"neuropathx/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// The static frontend calls the API cross-origin in dev.
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	router.Use(cors.New(corsCfg))

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	normalizer := imaging.NewNormalizer(app.Config.Model.InputSize, app.Config.Model.Preprocess)
	resultStore := cache.NewResultCache(app.Redis, time.Duration(app.Config.Redis.ResultTTLSeconds)*time.Second)
	publisher := rabbitmq.NewScanPublisher(app.MQConn, app.Config.RabbitMQ.ScanPersistQueue)
	analysisService := appsvc.NewAnalysisService(
		normalizer,
		app.Engine,
		resultStore,
		publisher,
		app.Config.App.DefaultSessionID,
		app.Config.App.InferenceSlots,
	)
	analysisHandler := handler.NewAnalysisHandler(analysisService, app.Config.App.MaxUploadMB)
	reportHandler := handler.NewReportHandler(analysisService)
	scanHandler := handler.NewScanHandler(repository.NewScanRepository(app.MySQL))

	v1 := router.Group("/api/v1")
	v1.POST("/mri_prediction", analysisHandler.Predict)
	v1.GET("/report/preview", reportHandler.Preview)
	v1.GET("/report/download", reportHandler.Download)
	v1.GET("/scans", scanHandler.History)

	return router
}
