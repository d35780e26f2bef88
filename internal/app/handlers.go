package app

import (
	httpH "github.com/manishjain-py/learnlikemagic-sub006/internal/http/handlers"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

type Handlers struct {
	Book      *httpH.BookHandler
	Page      *httpH.PageHandler
	Guideline *httpH.GuidelineHandler
	Health    *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	return Handlers{
		Book:      httpH.NewBookHandler(log, serviceset.Books),
		Page:      httpH.NewPageHandler(log, serviceset.Pages),
		Guideline: httpH.NewGuidelineHandler(log, serviceset.Synthesis, serviceset.Sync),
		Health:    httpH.NewHealthHandler(),
	}
}
