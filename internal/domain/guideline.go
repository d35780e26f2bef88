package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SubtopicStatus string

const (
	SubtopicStatusOpen        SubtopicStatus = "open"
	SubtopicStatusStable      SubtopicStatus = "stable"
	SubtopicStatusFinal       SubtopicStatus = "final"
	SubtopicStatusNeedsReview SubtopicStatus = "needs_review"
)

// GenerationMode selects which of the two payload shapes a subtopic carries.
type GenerationMode string

const (
	GenerationLegacy       GenerationMode = "legacy"
	GenerationConsolidated GenerationMode = "consolidated"
)

// ConsolidatedContent is the newer single-document payload.
type ConsolidatedContent struct {
	Guidance string `json:"guidance"`
}

// LegacyContent is the older structured payload.
type LegacyContent struct {
	Objectives     []string `json:"objectives,omitempty"`
	Examples       []string `json:"examples,omitempty"`
	Misconceptions []string `json:"misconceptions,omitempty"`
	Assessments    []string `json:"assessments,omitempty"`
}

// SubtopicContent is a tagged variant: exactly one of Consolidated/Legacy is
// set, selected by Mode. The two shapes are never populated together.
type SubtopicContent struct {
	Mode         GenerationMode
	Consolidated *ConsolidatedContent
	Legacy       *LegacyContent
}

func (c SubtopicContent) Validate() error {
	switch c.Mode {
	case GenerationConsolidated:
		if c.Consolidated == nil || c.Legacy != nil {
			return fmt.Errorf("consolidated content: exactly the consolidated payload must be set")
		}
	case GenerationLegacy:
		if c.Legacy == nil || c.Consolidated != nil {
			return fmt.Errorf("legacy content: exactly the legacy payload must be set")
		}
	default:
		return fmt.Errorf("unknown generation mode %q", c.Mode)
	}
	return nil
}

// Hash returns a stable digest of the payload. Byte-identical re-derived
// content hashes equal, which drives idempotence and stability detection.
func (c SubtopicContent) Hash() string {
	var raw []byte
	switch c.Mode {
	case GenerationLegacy:
		raw, _ = json.Marshal(c.Legacy)
	default:
		raw, _ = json.Marshal(c.Consolidated)
	}
	sum := sha256.Sum256(append([]byte(string(c.Mode)+"\x00"), raw...))
	return hex.EncodeToString(sum[:])
}

// GuidelineSubtopic is one synthesized teaching unit keyed by
// (book_id, topic_key, subtopic_key).
type GuidelineSubtopic struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BookID      uuid.UUID `gorm:"type:uuid;not null;index:idx_book_topic_subtopic,unique" json:"book_id"`
	TopicKey    string    `gorm:"column:topic_key;not null;index:idx_book_topic_subtopic,unique" json:"topic_key"`
	SubtopicKey string    `gorm:"column:subtopic_key;not null;index:idx_book_topic_subtopic,unique" json:"subtopic_key"`

	TopicTitle    string `gorm:"column:topic_title;not null" json:"topic_title"`
	SubtopicTitle string `gorm:"column:subtopic_title;not null" json:"subtopic_title"`

	Status          SubtopicStatus `gorm:"column:status;not null;default:'open'" json:"status"`
	SourcePageStart int            `gorm:"column:source_page_start;not null" json:"source_page_start"`
	SourcePageEnd   int            `gorm:"column:source_page_end;not null" json:"source_page_end"`
	Version         int            `gorm:"column:version;not null;default:1" json:"version"`

	Generation          GenerationMode `gorm:"column:generation;not null;default:'consolidated'" json:"generation"`
	ConsolidatedContent datatypes.JSON `gorm:"column:consolidated_content" json:"consolidated_content,omitempty"`
	LegacyContent       datatypes.JSON `gorm:"column:legacy_content" json:"legacy_content,omitempty"`
	ContentHash         string         `gorm:"column:content_hash;not null;index" json:"content_hash"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (GuidelineSubtopic) TableName() string { return "guideline_subtopic" }

// SetContent stores the tagged payload, clearing the other shape.
func (s *GuidelineSubtopic) SetContent(c SubtopicContent) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.Generation = c.Mode
	s.ContentHash = c.Hash()
	switch c.Mode {
	case GenerationLegacy:
		raw, err := json.Marshal(c.Legacy)
		if err != nil {
			return err
		}
		s.LegacyContent = datatypes.JSON(raw)
		s.ConsolidatedContent = nil
	default:
		raw, err := json.Marshal(c.Consolidated)
		if err != nil {
			return err
		}
		s.ConsolidatedContent = datatypes.JSON(raw)
		s.LegacyContent = nil
	}
	return nil
}

// Content reconstructs the tagged payload from the stored row.
func (s *GuidelineSubtopic) Content() (SubtopicContent, error) {
	out := SubtopicContent{Mode: s.Generation}
	switch s.Generation {
	case GenerationLegacy:
		var legacy LegacyContent
		if err := json.Unmarshal(s.LegacyContent, &legacy); err != nil {
			return out, err
		}
		out.Legacy = &legacy
	default:
		var cons ConsolidatedContent
		if err := json.Unmarshal(s.ConsolidatedContent, &cons); err != nil {
			return out, err
		}
		out.Consolidated = &cons
	}
	return out, nil
}

type RevisionKind string

const (
	RevisionCreated   RevisionKind = "created"
	RevisionMerged    RevisionKind = "merged"
	RevisionConflict  RevisionKind = "conflict"
	RevisionFinalized RevisionKind = "finalized"
)

// SubtopicRevision is an append-only history row, one per content-changing
// update. Conflicting evidence stays recoverable from here.
type SubtopicRevision struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubtopicID uuid.UUID `gorm:"type:uuid;not null;index" json:"subtopic_id"`
	BookID     uuid.UUID `gorm:"type:uuid;not null;index" json:"book_id"`

	Version         int            `gorm:"column:version;not null" json:"version"`
	Kind            RevisionKind   `gorm:"column:kind;not null" json:"kind"`
	ContentHash     string         `gorm:"column:content_hash;not null" json:"content_hash"`
	Payload         datatypes.JSON `gorm:"column:payload" json:"payload,omitempty"`
	SourcePageStart int            `gorm:"column:source_page_start;not null" json:"source_page_start"`
	SourcePageEnd   int            `gorm:"column:source_page_end;not null" json:"source_page_end"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (SubtopicRevision) TableName() string { return "guideline_subtopic_revision" }
