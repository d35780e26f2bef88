package services

import (
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

type CreateBookInput struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Edition     string `json:"edition"`
	EditionYear int    `json:"edition_year"`
	Country     string `json:"country"`
	Board       string `json:"board"`
	Grade       int    `json:"grade"`
	Subject     string `json:"subject"`
	CreatedBy   string `json:"-"`
}

// BookService is the aggregate root for books: it owns creation, listing,
// the status state machine, and cascading deletion.
type BookService interface {
	Create(ctx context.Context, in CreateBookInput) (*domain.Book, error)
	List(ctx context.Context, filter repos.BookListFilter) ([]*domain.Book, int64, error)
	GetDetail(ctx context.Context, bookID uuid.UUID) (*domain.Book, error)
	SetStatus(ctx context.Context, bookID uuid.UUID, target domain.BookStatus) (*domain.Book, error)
	Delete(ctx context.Context, bookID uuid.UUID, force bool) error
}

type bookService struct {
	db        *gorm.DB
	log       *logger.Logger
	books     repos.BookRepo
	pages     repos.PageRepo
	subtopics repos.SubtopicRepo
	revisions repos.RevisionRepo
	bucket    gcp.BucketService
}

func NewBookService(
	db *gorm.DB,
	log *logger.Logger,
	books repos.BookRepo,
	pages repos.PageRepo,
	subtopics repos.SubtopicRepo,
	revisions repos.RevisionRepo,
	bucket gcp.BucketService,
) BookService {
	return &bookService{
		db:        db,
		log:       log.With("service", "BookService"),
		books:     books,
		pages:     pages,
		subtopics: subtopics,
		revisions: revisions,
		bucket:    bucket,
	}
}

func (s *bookService) Create(ctx context.Context, in CreateBookInput) (*domain.Book, error) {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Country) == "" {
		missing = append(missing, "country")
	}
	if strings.TrimSpace(in.Board) == "" {
		missing = append(missing, "board")
	}
	if strings.TrimSpace(in.Subject) == "" {
		missing = append(missing, "subject")
	}
	if len(missing) > 0 {
		return nil, apierr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}
	if in.Grade <= 0 {
		return nil, apierr.Validation("grade must be a positive integer, got %d", in.Grade)
	}

	createdBy := in.CreatedBy
	if createdBy == "" {
		createdBy = "system"
	}

	id := uuid.New()
	book := &domain.Book{
		ID:            id,
		Title:         strings.TrimSpace(in.Title),
		Author:        strings.TrimSpace(in.Author),
		Edition:       strings.TrimSpace(in.Edition),
		EditionYear:   in.EditionYear,
		Country:       strings.TrimSpace(in.Country),
		Board:         strings.TrimSpace(in.Board),
		Grade:         in.Grade,
		Subject:       strings.TrimSpace(in.Subject),
		StoragePrefix: fmt.Sprintf("books/%s", id),
		Status:        domain.BookStatusDraft,
		CreatedBy:     createdBy,
	}

	created, err := s.books.Create(dbctx.Context{Ctx: ctx}, book)
	if err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	s.log.Info("book registered", "book_id", created.ID, "subject", created.Subject, "grade", created.Grade)
	return created, nil
}

func (s *bookService) List(ctx context.Context, filter repos.BookListFilter) ([]*domain.Book, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apierr.Validation("unknown status filter %q", filter.Status)
	}
	return s.books.List(dbctx.Context{Ctx: ctx}, filter)
}

func (s *bookService) GetDetail(ctx context.Context, bookID uuid.UUID) (*domain.Book, error) {
	book, err := s.books.GetByIDWithPages(dbctx.Context{Ctx: ctx}, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apierr.NotFound("book %s not found", bookID)
	}
	return book, nil
}

func (s *bookService) SetStatus(ctx context.Context, bookID uuid.UUID, target domain.BookStatus) (*domain.Book, error) {
	if !target.Valid() {
		return nil, apierr.Validation("unknown status %q", target)
	}

	dbc := dbctx.Context{Ctx: ctx}
	book, err := s.books.GetByID(dbc, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apierr.NotFound("book %s not found", bookID)
	}
	if !book.Status.CanTransition(target) {
		return nil, apierr.Conflict("invalid transition %s -> %s", book.Status, target)
	}

	book.Status = target
	book.UpdatedAt = time.Now().UTC()
	if err := s.books.Save(dbc, book); err != nil {
		return nil, fmt.Errorf("save book status: %w", err)
	}
	s.log.Info("book status changed", "book_id", book.ID, "status", target)
	return book, nil
}

// Delete cascades to pages, subtopics, and revision history. Past
// pages_complete there is in-progress guideline work, so deletion requires
// the force flag.
func (s *bookService) Delete(ctx context.Context, bookID uuid.UUID, force bool) error {
	dbc := dbctx.Context{Ctx: ctx}
	book, err := s.books.GetByID(dbc, bookID)
	if err != nil {
		return err
	}
	if book == nil {
		return apierr.NotFound("book %s not found", bookID)
	}

	beyondPages := book.Status == domain.BookStatusGeneratingGuidelines ||
		book.Status == domain.BookStatusGuidelinesPendingReview ||
		book.Status == domain.BookStatusApproved
	if beyondPages && !force {
		return apierr.Conflict("book %s has guideline work in progress; pass force to delete", bookID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.revisions.DeleteByBookID(txc, bookID); err != nil {
			return err
		}
		if err := s.subtopics.SoftDeleteByBookID(txc, bookID); err != nil {
			return err
		}
		if err := s.pages.SoftDeleteByBookID(txc, bookID); err != nil {
			return err
		}
		return s.books.SoftDeleteByID(txc, bookID)
	})
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	if s.bucket != nil {
		if err := s.bucket.DeletePrefix(ctx, book.StoragePrefix); err != nil {
			s.log.Warn("failed to clean storage prefix after delete", "book_id", bookID, "prefix", book.StoragePrefix, "error", err)
		}
	}
	s.log.Info("book deleted", "book_id", bookID, "force", force)
	return nil
}
