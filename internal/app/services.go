package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/data/repos"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/services"
)

type Services struct {
	Books     services.BookService
	Pages     services.PageService
	Sync      services.SyncService
	Synthesis services.SynthesisService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet repos.Set, clients Clients) (Services, error) {
	locks := services.NewKeyedLock()
	extractor := services.NewVisionExtractor(log, clients.Vision)

	var analyzer services.ContentAnalyzer
	switch cfg.AnalyzerMode {
	case "openai":
		analyzer = services.NewOpenAIAnalyzer(log, clients.OpenAI)
	case "heuristic":
		var topicMap *services.TopicMap
		if cfg.TopicMapPath != "" {
			tm, err := services.LoadTopicMap(cfg.TopicMapPath)
			if err != nil {
				return Services{}, err
			}
			topicMap = tm
		}
		analyzer = services.NewHeuristicAnalyzer(log, topicMap)
	default:
		return Services{}, fmt.Errorf("unknown ANALYZER_MODE %q", cfg.AnalyzerMode)
	}

	syncSvc := services.NewSyncService(db, log, reposet.Books, reposet.Subtopics, reposet.Revisions)
	return Services{
		Books:     services.NewBookService(db, log, reposet.Books, reposet.Pages, reposet.Subtopics, reposet.Revisions, clients.Bucket),
		Pages:     services.NewPageService(db, log, reposet.Books, reposet.Pages, reposet.Subtopics, clients.Bucket, extractor, locks),
		Sync:      syncSvc,
		Synthesis: services.NewSynthesisService(log, reposet.Books, reposet.Pages, reposet.Subtopics, analyzer, syncSvc, locks),
	}, nil
}
