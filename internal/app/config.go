package app

import (
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/utils"
)

type Config struct {
	ListenAddr  string
	BucketName  string
	CORSOrigins string

	// AnalyzerMode selects how page content is turned into subtopic
	// candidates: "openai" or "heuristic".
	AnalyzerMode string
	TopicMapPath string

	// AutoMigrate is off in deployments where schema changes are applied
	// out of band.
	AutoMigrate bool
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		ListenAddr:   utils.GetEnv("LISTEN_ADDR", ":8080", log),
		BucketName:   utils.GetEnv("GCS_BUCKET_NAME", "", log),
		CORSOrigins:  utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log),
		AnalyzerMode: utils.GetEnv("ANALYZER_MODE", "openai", log),
		TopicMapPath: utils.GetEnv("TOPIC_MAP_PATH", "", log),
		AutoMigrate:  utils.GetEnvAsBool("DB_AUTO_MIGRATE", true, log),
	}
}
