package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/clients/openai"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

// CandidateSubtopic is one candidate teaching unit derived from a page.
type CandidateSubtopic struct {
	TopicKey      string
	TopicTitle    string
	SubtopicKey   string
	SubtopicTitle string
	Content       domain.SubtopicContent
}

// ContentAnalyzer produces candidate subtopics from a page's extracted text.
// Replaceable: the LLM-backed implementation is the production path, the
// heuristic one serves tests and offline use.
type ContentAnalyzer interface {
	AnalyzePage(ctx context.Context, book *domain.Book, page *domain.Page, mode domain.GenerationMode) ([]CandidateSubtopic, error)
}

type openaiAnalyzer struct {
	log    *logger.Logger
	client openai.Client
}

func NewOpenAIAnalyzer(log *logger.Logger, client openai.Client) ContentAnalyzer {
	return &openaiAnalyzer{log: log.With("service", "OpenAIAnalyzer"), client: client}
}

const analyzerSystemPrompt = `You are an expert curriculum designer. Given the text of one page of a
school textbook, identify the teaching subtopics it covers. For each
subtopic return a stable lowercase kebab-case topic_key and subtopic_key,
human-readable titles, and the requested content payload. Keys must be
derived from the subject matter, not the page number, so the same concept
on different pages maps to the same keys.`

var analyzerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"subtopics": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"topic_key":      map[string]any{"type": "string"},
					"topic_title":    map[string]any{"type": "string"},
					"subtopic_key":   map[string]any{"type": "string"},
					"subtopic_title": map[string]any{"type": "string"},
					"guidance":       map[string]any{"type": "string"},
					"objectives":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"examples":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"misconceptions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"assessments":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required":             []string{"topic_key", "topic_title", "subtopic_key", "subtopic_title"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"subtopics"},
	"additionalProperties": false,
}

type analyzerResult struct {
	Subtopics []struct {
		TopicKey       string   `json:"topic_key"`
		TopicTitle     string   `json:"topic_title"`
		SubtopicKey    string   `json:"subtopic_key"`
		SubtopicTitle  string   `json:"subtopic_title"`
		Guidance       string   `json:"guidance"`
		Objectives     []string `json:"objectives"`
		Examples       []string `json:"examples"`
		Misconceptions []string `json:"misconceptions"`
		Assessments    []string `json:"assessments"`
	} `json:"subtopics"`
}

func (a *openaiAnalyzer) AnalyzePage(ctx context.Context, book *domain.Book, page *domain.Page, mode domain.GenerationMode) ([]CandidateSubtopic, error) {
	if page.OCRText == "" {
		return nil, nil
	}

	user := fmt.Sprintf(
		"Subject: %s\nGrade: %d\nBoard: %s (%s)\nGeneration mode: %s\n\nPage %d text:\n%s",
		book.Subject, book.Grade, book.Board, book.Country, mode, page.PageNum, page.OCRText,
	)

	obj, err := a.client.GenerateJSON(ctx, analyzerSystemPrompt, user, "page_subtopics", analyzerSchema)
	if err != nil {
		return nil, fmt.Errorf("analyze page %d: %w", page.PageNum, err)
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var parsed analyzerResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("analyze page %d: bad model payload: %w", page.PageNum, err)
	}

	out := make([]CandidateSubtopic, 0, len(parsed.Subtopics))
	for _, st := range parsed.Subtopics {
		if st.TopicKey == "" || st.SubtopicKey == "" {
			continue
		}
		cand := CandidateSubtopic{
			TopicKey:      st.TopicKey,
			TopicTitle:    st.TopicTitle,
			SubtopicKey:   st.SubtopicKey,
			SubtopicTitle: st.SubtopicTitle,
		}
		switch mode {
		case domain.GenerationLegacy:
			cand.Content = domain.SubtopicContent{
				Mode: domain.GenerationLegacy,
				Legacy: &domain.LegacyContent{
					Objectives:     st.Objectives,
					Examples:       st.Examples,
					Misconceptions: st.Misconceptions,
					Assessments:    st.Assessments,
				},
			}
		default:
			cand.Content = domain.SubtopicContent{
				Mode:         domain.GenerationConsolidated,
				Consolidated: &domain.ConsolidatedContent{Guidance: st.Guidance},
			}
		}
		out = append(out, cand)
	}
	return out, nil
}
