package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PageStatus string

const (
	PageStatusPendingReview PageStatus = "pending_review"
	PageStatusApproved      PageStatus = "approved"
)

// Page is one scanned unit of a Book. page_num is assigned on upload and is
// unique within the book; insertion order is reading order.
type Page struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BookID  uuid.UUID `gorm:"type:uuid;not null;index:idx_book_page,unique" json:"book_id"`
	PageNum int       `gorm:"column:page_num;not null;index:idx_book_page,unique" json:"page_num"`

	ImageKey string `gorm:"column:image_key;not null" json:"image_key"`
	// TextKey is empty until extraction succeeds; approval requires it.
	TextKey string `gorm:"column:text_key" json:"text_key,omitempty"`
	// OCRText caches the extraction output so review does not re-fetch storage.
	OCRText string `gorm:"column:ocr_text;type:text" json:"ocr_text,omitempty"`

	Status     PageStatus `gorm:"column:status;not null;default:'pending_review'" json:"status"`
	ApprovedAt *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Page) TableName() string { return "book_page" }
