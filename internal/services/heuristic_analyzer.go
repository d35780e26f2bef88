package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

// TopicMap groups heading keywords under stable topic keys. Loaded from an
// optional YAML file so a subject's grouping can be tuned without a deploy.
type TopicMap struct {
	Topics []TopicMapEntry `yaml:"topics"`
}

type TopicMapEntry struct {
	Key      string   `yaml:"key"`
	Title    string   `yaml:"title"`
	Keywords []string `yaml:"keywords"`
}

func LoadTopicMap(path string) (*TopicMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topic map %q: %w", path, err)
	}
	var tm TopicMap
	if err := yaml.Unmarshal(raw, &tm); err != nil {
		return nil, fmt.Errorf("parse topic map %q: %w", path, err)
	}
	return &tm, nil
}

// heuristicAnalyzer derives candidates from heading-shaped lines without any
// model call. Deterministic, so it also backs the test suite.
type heuristicAnalyzer struct {
	log      *logger.Logger
	topicMap *TopicMap
}

func NewHeuristicAnalyzer(log *logger.Logger, topicMap *TopicMap) ContentAnalyzer {
	return &heuristicAnalyzer{log: log.With("service", "HeuristicAnalyzer"), topicMap: topicMap}
}

func (a *heuristicAnalyzer) AnalyzePage(ctx context.Context, book *domain.Book, page *domain.Page, mode domain.GenerationMode) ([]CandidateSubtopic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sections := splitSections(page.OCRText)
	out := make([]CandidateSubtopic, 0, len(sections))
	for _, sec := range sections {
		topicKey, topicTitle := a.topicFor(sec.heading, book.Subject)
		cand := CandidateSubtopic{
			TopicKey:      topicKey,
			TopicTitle:    topicTitle,
			SubtopicKey:   Slugify(sec.heading),
			SubtopicTitle: sec.heading,
		}
		switch mode {
		case domain.GenerationLegacy:
			cand.Content = domain.SubtopicContent{
				Mode: domain.GenerationLegacy,
				Legacy: &domain.LegacyContent{
					Objectives: []string{"Understand " + strings.ToLower(sec.heading)},
					Examples:   exampleSentences(sec.body),
				},
			}
		default:
			cand.Content = domain.SubtopicContent{
				Mode:         domain.GenerationConsolidated,
				Consolidated: &domain.ConsolidatedContent{Guidance: strings.TrimSpace(sec.heading + "\n\n" + sec.body)},
			}
		}
		out = append(out, cand)
	}
	return out, nil
}

func (a *heuristicAnalyzer) topicFor(heading, subject string) (string, string) {
	if a.topicMap != nil {
		lower := strings.ToLower(heading)
		for _, entry := range a.topicMap.Topics {
			for _, kw := range entry.Keywords {
				if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
					return entry.Key, entry.Title
				}
			}
		}
	}
	return Slugify(subject), subject
}

type section struct {
	heading string
	body    string
}

// splitSections treats short title-like lines as headings and folds the
// following lines into the section body. Text before the first heading is
// dropped: it belongs to a section that started on an earlier page.
func splitSections(text string) []section {
	var sections []section
	var current *section
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isHeading(trimmed) {
			if current != nil {
				current.body = strings.TrimSpace(current.body)
				sections = append(sections, *current)
			}
			current = &section{heading: strings.TrimRight(trimmed, ":")}
			continue
		}
		if current != nil {
			current.body += trimmed + "\n"
		}
	}
	if current != nil {
		current.body = strings.TrimSpace(current.body)
		sections = append(sections, *current)
	}
	return sections
}

func isHeading(line string) bool {
	if len(line) > 80 || strings.HasSuffix(line, ".") {
		return false
	}
	words := strings.Fields(line)
	if len(words) == 0 || len(words) > 8 {
		return false
	}
	// numbered headings like "1.2 Fractions"
	first := words[0]
	if strings.IndexFunc(first, func(r rune) bool { return !unicode.IsDigit(r) && r != '.' }) == -1 && len(words) > 1 {
		return true
	}
	// title-case or all-caps lines
	capitalized := 0
	for _, w := range words {
		r := []rune(w)
		if unicode.IsUpper(r[0]) {
			capitalized++
		}
	}
	return capitalized == len(words)
}

func exampleSentences(body string) []string {
	var out []string
	for _, sentence := range strings.Split(body, ".") {
		s := strings.TrimSpace(sentence)
		lower := strings.ToLower(s)
		if s != "" && (strings.Contains(lower, "example") || strings.Contains(lower, "e.g")) {
			out = append(out, s+".")
		}
	}
	return out
}

// Slugify lowercases and kebab-cases a title into a stable key.
func Slugify(s string) string {
	var b strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteRune('-')
				prevDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
