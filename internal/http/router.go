package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/manishjain-py/learnlikemagic-sub006/internal/http/handlers"
	httpMW "github.com/manishjain-py/learnlikemagic-sub006/internal/http/middleware"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	CORSOrigins string

	BookHandler      *httpH.BookHandler
	PageHandler      *httpH.PageHandler
	GuidelineHandler *httpH.GuidelineHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.BookHandler != nil {
			api.POST("/books", cfg.BookHandler.CreateBook)
			api.GET("/books", cfg.BookHandler.ListBooks)
			api.GET("/books/:id", cfg.BookHandler.GetBook)
			api.PATCH("/books/:id/status", cfg.BookHandler.SetStatus)
			api.DELETE("/books/:id", cfg.BookHandler.DeleteBook)
		}

		if cfg.PageHandler != nil {
			api.POST("/books/:id/pages", cfg.PageHandler.UploadPage)
			api.POST("/books/:id/pages/complete", cfg.PageHandler.MarkPagesComplete)
			api.GET("/books/:id/pages/:num", cfg.PageHandler.GetPage)
			api.POST("/books/:id/pages/:num/extract", cfg.PageHandler.ReExtractPage)
			api.POST("/books/:id/pages/:num/approve", cfg.PageHandler.ApprovePage)
			api.DELETE("/books/:id/pages/:num", cfg.PageHandler.DeletePage)
		}

		if cfg.GuidelineHandler != nil {
			api.POST("/books/:id/guidelines/generate", cfg.GuidelineHandler.GenerateGuidelines)
			api.GET("/books/:id/guidelines", cfg.GuidelineHandler.ListGuidelines)
			api.GET("/books/:id/guidelines/:topic/:subtopic/history", cfg.GuidelineHandler.SubtopicHistory)
			api.POST("/books/:id/guidelines/:topic/:subtopic/review", cfg.GuidelineHandler.ReviewSubtopic)
		}
	}

	return r
}
