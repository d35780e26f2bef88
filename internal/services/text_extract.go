package services

import (
	"context"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/clients/gcp"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

// TextExtractor turns a page image into text. The pipeline treats extraction
// as a black box; the production implementation is Cloud Vision OCR.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

type visionExtractor struct {
	log    *logger.Logger
	vision gcp.Vision
}

func NewVisionExtractor(log *logger.Logger, vision gcp.Vision) TextExtractor {
	return &visionExtractor{log: log.With("service", "VisionExtractor"), vision: vision}
}

func (e *visionExtractor) ExtractText(ctx context.Context, image []byte) (string, error) {
	result, err := e.vision.OCRImageBytes(ctx, image)
	if err != nil {
		return "", err
	}
	e.log.Debug("extracted page text", "chars", len(result.Text), "confidence", result.Confidence)
	return result.Text, nil
}
