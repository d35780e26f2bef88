package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/clients/gcp"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/data/repos"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/apierr"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/dbctx"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

const pageURLTTL = 15 * time.Minute

type UploadPageResult struct {
	PageNum  int               `json:"page_num"`
	ImageURL string            `json:"image_url,omitempty"`
	OCRText  string            `json:"ocr_text"`
	Status   domain.PageStatus `json:"status"`
	Warnings []string          `json:"warnings,omitempty"`
}

type ApprovePageResult struct {
	PageNum         int               `json:"page_num"`
	Status          domain.PageStatus `json:"status"`
	AlreadyApproved bool              `json:"already_approved,omitempty"`
}

type PageDetail struct {
	Page     *domain.Page `json:"page"`
	ImageURL string       `json:"image_url,omitempty"`
	TextURL  string       `json:"text_url,omitempty"`
}

// PageService owns the per-book page ledger: upload, review, deletion, and
// the completion signal. Mutations take the book's lock so they cannot
// interleave with an in-flight synthesis run.
type PageService interface {
	Upload(ctx context.Context, bookID uuid.UUID, image []byte) (*UploadPageResult, error)
	ReExtract(ctx context.Context, bookID uuid.UUID, pageNum int) (*UploadPageResult, error)
	Approve(ctx context.Context, bookID uuid.UUID, pageNum int) (*ApprovePageResult, error)
	Delete(ctx context.Context, bookID uuid.UUID, pageNum int, force bool) error
	Get(ctx context.Context, bookID uuid.UUID, pageNum int) (*PageDetail, error)
	MarkComplete(ctx context.Context, bookID uuid.UUID) (*domain.Book, error)
}

type pageService struct {
	db        *gorm.DB
	log       *logger.Logger
	books     repos.BookRepo
	pages     repos.PageRepo
	subtopics repos.SubtopicRepo
	bucket    gcp.BucketService
	extractor TextExtractor
	locks     *KeyedLock
}

func NewPageService(
	db *gorm.DB,
	log *logger.Logger,
	books repos.BookRepo,
	pages repos.PageRepo,
	subtopics repos.SubtopicRepo,
	bucket gcp.BucketService,
	extractor TextExtractor,
	locks *KeyedLock,
) PageService {
	return &pageService{
		db:        db,
		log:       log.With("service", "PageService"),
		books:     books,
		pages:     pages,
		subtopics: subtopics,
		bucket:    bucket,
		extractor: extractor,
		locks:     locks,
	}
}

func (s *pageService) Upload(ctx context.Context, bookID uuid.UUID, image []byte) (*UploadPageResult, error) {
	if len(image) == 0 {
		return nil, apierr.Validation("image payload is empty")
	}

	release, err := s.locks.Acquire(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer release()

	dbc := dbctx.Context{Ctx: ctx}
	book, err := s.books.GetByID(dbc, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apierr.NotFound("book %s not found", bookID)
	}
	if book.Status != domain.BookStatusDraft && book.Status != domain.BookStatusUploadingPages {
		return nil, apierr.Conflict("cannot upload pages while book is %s", book.Status)
	}

	maxNum, err := s.pages.MaxPageNum(dbc, bookID)
	if err != nil {
		return nil, err
	}
	pageNum := maxNum + 1

	imageKey := fmt.Sprintf("%s/pages/%04d.png", book.StoragePrefix, pageNum)
	if err := s.bucket.UploadObject(ctx, imageKey, "image/png", bytes.NewReader(image)); err != nil {
		return nil, apierr.Storage(fmt.Errorf("store page image: %w", err))
	}

	var warnings []string
	textKey := ""
	ocrText := ""
	text, err := s.extractor.ExtractText(ctx, image)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("text extraction failed for page %d: %v", pageNum, err))
		s.log.Warn("text extraction failed", "book_id", bookID, "page_num", pageNum, "error", err)
	} else {
		ocrText = text
		key := fmt.Sprintf("%s/pages/%04d.txt", book.StoragePrefix, pageNum)
		if err := s.bucket.UploadObject(ctx, key, "text/plain", strings.NewReader(text)); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to store extracted text for page %d: %v", pageNum, err))
			s.log.Warn("failed to store extracted text", "book_id", bookID, "page_num", pageNum, "error", err)
		} else {
			textKey = key
		}
	}

	page := &domain.Page{
		ID:       uuid.New(),
		BookID:   bookID,
		PageNum:  pageNum,
		ImageKey: imageKey,
		TextKey:  textKey,
		OCRText:  ocrText,
		Status:   domain.PageStatusPendingReview,
	}
	if _, err := s.pages.Create(dbc, page); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	// first upload moves the book out of draft
	if book.Status == domain.BookStatusDraft {
		book.Status = domain.BookStatusUploadingPages
		book.UpdatedAt = time.Now().UTC()
		if err := s.books.Save(dbc, book); err != nil {
			return nil, fmt.Errorf("advance book to uploading_pages: %w", err)
		}
	}

	result := &UploadPageResult{
		PageNum:  pageNum,
		OCRText:  ocrText,
		Status:   page.Status,
		Warnings: warnings,
	}
	if url, err := s.bucket.SignedURL(imageKey, pageURLTTL); err == nil {
		result.ImageURL = url
	} else {
		s.log.Warn("failed to sign image url", "book_id", bookID, "page_num", pageNum, "error", err)
	}

	s.log.Info("page uploaded", "book_id", bookID, "page_num", pageNum, "extracted", textKey != "")
	return result, nil
}

// ReExtract re-runs text extraction against the stored page image. Upload
// tolerates extraction failures and leaves the page without text; this is
// the retry path that unblocks approval.
func (s *pageService) ReExtract(ctx context.Context, bookID uuid.UUID, pageNum int) (*UploadPageResult, error) {
	release, err := s.locks.Acquire(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer release()

	dbc := dbctx.Context{Ctx: ctx}
	book, err := s.books.GetByID(dbc, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apierr.NotFound("book %s not found", bookID)
	}
	page, err := s.pages.GetByBookAndNum(dbc, bookID, pageNum)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, apierr.NotFound("page %d of book %s not found", pageNum, bookID)
	}
	if page.Status == domain.PageStatusApproved {
		return nil, apierr.Conflict("page %d is approved; its text is locked", pageNum)
	}

	image, err := s.bucket.DownloadObject(ctx, page.ImageKey)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("fetch page image: %w", err))
	}
	text, err := s.extractor.ExtractText(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("extract text for page %d: %w", pageNum, err)
	}

	textKey := fmt.Sprintf("%s/pages/%04d.txt", book.StoragePrefix, pageNum)
	if err := s.bucket.UploadObject(ctx, textKey, "text/plain", strings.NewReader(text)); err != nil {
		return nil, apierr.Storage(fmt.Errorf("store extracted text: %w", err))
	}

	page.OCRText = text
	page.TextKey = textKey
	if err := s.pages.Save(dbc, page); err != nil {
		return nil, fmt.Errorf("save re-extracted page: %w", err)
	}

	s.log.Info("page text re-extracted", "book_id", bookID, "page_num", pageNum)
	return &UploadPageResult{PageNum: pageNum, OCRText: text, Status: page.Status}, nil
}

func (s *pageService) Approve(ctx context.Context, bookID uuid.UUID, pageNum int) (*ApprovePageResult, error) {
	release, err := s.locks.Acquire(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer release()

	dbc := dbctx.Context{Ctx: ctx}
	page, err := s.pages.GetByBookAndNum(dbc, bookID, pageNum)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, apierr.NotFound("page %d of book %s not found", pageNum, bookID)
	}

	if page.Status == domain.PageStatusApproved {
		// explicit idempotent no-op: same observable state, flagged so the
		// caller knows nothing changed
		return &ApprovePageResult{PageNum: pageNum, Status: page.Status, AlreadyApproved: true}, nil
	}
	if page.TextKey == "" {
		return nil, apierr.Conflict("page %d has no extracted text; re-run extraction before approving", pageNum)
	}

	now := time.Now().UTC()
	page.Status = domain.PageStatusApproved
	page.ApprovedAt = &now
	if err := s.pages.Save(dbc, page); err != nil {
		return nil, fmt.Errorf("approve page: %w", err)
	}

	s.log.Info("page approved", "book_id", bookID, "page_num", pageNum)
	return &ApprovePageResult{PageNum: pageNum, Status: page.Status}, nil
}

func (s *pageService) Delete(ctx context.Context, bookID uuid.UUID, pageNum int, force bool) error {
	release, err := s.locks.Acquire(ctx, bookID)
	if err != nil {
		return err
	}
	defer release()

	dbc := dbctx.Context{Ctx: ctx}
	page, err := s.pages.GetByBookAndNum(dbc, bookID, pageNum)
	if err != nil {
		return err
	}
	if page == nil {
		return apierr.NotFound("page %d of book %s not found", pageNum, bookID)
	}

	finals, err := s.subtopics.FinalCoveringPage(dbc, bookID, pageNum)
	if err != nil {
		return err
	}
	if len(finals) > 0 && !force {
		return apierr.Conflict("page %d is source evidence for %d finalized subtopic(s)", pageNum, len(finals))
	}
	if page.Status == domain.PageStatusApproved && !force {
		return apierr.Conflict("page %d is approved; pass force to delete", pageNum)
	}

	if err := s.pages.SoftDeleteByID(dbc, page.ID); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}

	for _, key := range []string{page.ImageKey, page.TextKey} {
		if key == "" {
			continue
		}
		if err := s.bucket.DeleteObject(ctx, key); err != nil {
			s.log.Warn("failed to delete page object", "book_id", bookID, "page_num", pageNum, "key", key, "error", err)
		}
	}

	s.log.Info("page deleted", "book_id", bookID, "page_num", pageNum, "force", force)
	return nil
}

func (s *pageService) Get(ctx context.Context, bookID uuid.UUID, pageNum int) (*PageDetail, error) {
	page, err := s.pages.GetByBookAndNum(dbctx.Context{Ctx: ctx}, bookID, pageNum)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, apierr.NotFound("page %d of book %s not found", pageNum, bookID)
	}

	detail := &PageDetail{Page: page}
	if url, err := s.bucket.SignedURL(page.ImageKey, pageURLTTL); err == nil {
		detail.ImageURL = url
	}
	if page.TextKey != "" {
		if url, err := s.bucket.SignedURL(page.TextKey, pageURLTTL); err == nil {
			detail.TextURL = url
		}
	}
	return detail, nil
}

func (s *pageService) MarkComplete(ctx context.Context, bookID uuid.UUID) (*domain.Book, error) {
	release, err := s.locks.Acquire(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer release()

	dbc := dbctx.Context{Ctx: ctx}
	book, err := s.books.GetByID(dbc, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apierr.NotFound("book %s not found", bookID)
	}
	if !book.Status.CanTransition(domain.BookStatusPagesComplete) {
		return nil, apierr.Conflict("invalid transition %s -> %s", book.Status, domain.BookStatusPagesComplete)
	}

	pending, err := s.pages.CountByStatus(dbc, bookID, domain.PageStatusPendingReview)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, apierr.Conflict("%d page(s) still pending review", pending)
	}
	approved, err := s.pages.CountByStatus(dbc, bookID, domain.PageStatusApproved)
	if err != nil {
		return nil, err
	}
	if approved == 0 {
		return nil, apierr.Conflict("book %s has no approved pages", bookID)
	}

	book.Status = domain.BookStatusPagesComplete
	book.UpdatedAt = time.Now().UTC()
	if err := s.books.Save(dbc, book); err != nil {
		return nil, fmt.Errorf("mark pages complete: %w", err)
	}

	s.log.Info("pages complete", "book_id", bookID, "approved_pages", approved)
	return book, nil
}
