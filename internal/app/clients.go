package app

import (
	"fmt"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/clients/gcp"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/clients/openai"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

type Clients struct {
	Bucket gcp.BucketService
	Vision gcp.Vision
	OpenAI openai.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	if cfg.BucketName == "" {
		return Clients{}, fmt.Errorf("GCS_BUCKET_NAME is required")
	}
	bucket, err := gcp.NewBucketService(log, cfg.BucketName)
	if err != nil {
		return Clients{}, fmt.Errorf("init bucket service: %w", err)
	}
	vision, err := gcp.NewVision(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init vision client: %w", err)
	}

	var oa openai.Client
	if cfg.AnalyzerMode == "openai" {
		oa, err = openai.NewClient(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
	}

	return Clients{Bucket: bucket, Vision: vision, OpenAI: oa}, nil
}
