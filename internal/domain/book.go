package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookStatus string

const (
	BookStatusDraft                   BookStatus = "draft"
	BookStatusUploadingPages          BookStatus = "uploading_pages"
	BookStatusPagesComplete           BookStatus = "pages_complete"
	BookStatusGeneratingGuidelines    BookStatus = "generating_guidelines"
	BookStatusGuidelinesPendingReview BookStatus = "guidelines_pending_review"
	BookStatusApproved                BookStatus = "approved"
)

// bookTransitions is the full set of allowed status edges. The documented
// flow is forward-only; the single backward edge models a guideline re-run
// after review found problems.
var bookTransitions = map[BookStatus][]BookStatus{
	BookStatusDraft:                   {BookStatusUploadingPages},
	BookStatusUploadingPages:          {BookStatusPagesComplete},
	BookStatusPagesComplete:           {BookStatusGeneratingGuidelines},
	BookStatusGeneratingGuidelines:    {BookStatusGuidelinesPendingReview},
	BookStatusGuidelinesPendingReview: {BookStatusApproved, BookStatusGeneratingGuidelines},
	BookStatusApproved:                {},
}

func (s BookStatus) Valid() bool {
	_, ok := bookTransitions[s]
	return ok
}

// CanTransition reports whether target is directly reachable from s.
func (s BookStatus) CanTransition(target BookStatus) bool {
	for _, next := range bookTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses directly reachable from s.
func (s BookStatus) NextStatuses() []BookStatus {
	next := bookTransitions[s]
	out := make([]BookStatus, len(next))
	copy(out, next)
	return out
}

type Book struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string     `gorm:"column:title;not null" json:"title"`
	Author        string     `gorm:"column:author" json:"author,omitempty"`
	Edition       string     `gorm:"column:edition" json:"edition,omitempty"`
	EditionYear   int        `gorm:"column:edition_year" json:"edition_year,omitempty"`
	Country       string     `gorm:"column:country;not null;index" json:"country"`
	Board         string     `gorm:"column:board;not null;index" json:"board"`
	Grade         int        `gorm:"column:grade;not null;index" json:"grade"`
	Subject       string     `gorm:"column:subject;not null;index" json:"subject"`
	CoverImageKey string     `gorm:"column:cover_image_key" json:"cover_image_key,omitempty"`
	StoragePrefix string     `gorm:"column:storage_prefix;not null;uniqueIndex" json:"storage_prefix"`
	Status        BookStatus `gorm:"column:status;not null;default:'draft'" json:"status"`
	CreatedBy     string     `gorm:"column:created_by;not null" json:"created_by"`

	Pages []Page `gorm:"foreignKey:BookID;references:ID" json:"pages,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Book) TableName() string { return "book" }
