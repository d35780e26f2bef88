package books

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/dbctx"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

// ListFilter narrows List; zero values mean "no filter".
type ListFilter struct {
	Country string
	Board   string
	Grade   int
	Subject string
	Status  domain.BookStatus
}

type BookRepo interface {
	Create(dbc dbctx.Context, book *domain.Book) (*domain.Book, error)
	GetByID(dbc dbctx.Context, bookID uuid.UUID) (*domain.Book, error)
	GetByIDWithPages(dbc dbctx.Context, bookID uuid.UUID) (*domain.Book, error)
	List(dbc dbctx.Context, filter ListFilter) ([]*domain.Book, int64, error)
	Save(dbc dbctx.Context, book *domain.Book) error
	SoftDeleteByID(dbc dbctx.Context, bookID uuid.UUID) error
}

type bookRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBookRepo(db *gorm.DB, baseLog *logger.Logger) BookRepo {
	repoLog := baseLog.With("repo", "BookRepo")
	return &bookRepo{db: db, log: repoLog}
}

func (r *bookRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *bookRepo) Create(dbc dbctx.Context, book *domain.Book) (*domain.Book, error) {
	if err := r.conn(dbc).Create(book).Error; err != nil {
		return nil, err
	}
	return book, nil
}

func (r *bookRepo) GetByID(dbc dbctx.Context, bookID uuid.UUID) (*domain.Book, error) {
	var book domain.Book
	err := r.conn(dbc).Where("id = ?", bookID).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepo) GetByIDWithPages(dbc dbctx.Context, bookID uuid.UUID) (*domain.Book, error) {
	var book domain.Book
	err := r.conn(dbc).
		Preload("Pages", func(db *gorm.DB) *gorm.DB {
			return db.Order("page_num ASC")
		}).
		Where("id = ?", bookID).
		First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepo) List(dbc dbctx.Context, filter ListFilter) ([]*domain.Book, int64, error) {
	q := r.conn(dbc).Model(&domain.Book{})
	if filter.Country != "" {
		q = q.Where("country = ?", filter.Country)
	}
	if filter.Board != "" {
		q = q.Where("board = ?", filter.Board)
	}
	if filter.Grade > 0 {
		q = q.Where("grade = ?", filter.Grade)
	}
	if filter.Subject != "" {
		q = q.Where("subject = ?", filter.Subject)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*domain.Book
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *bookRepo) Save(dbc dbctx.Context, book *domain.Book) error {
	return r.conn(dbc).Save(book).Error
}

func (r *bookRepo) SoftDeleteByID(dbc dbctx.Context, bookID uuid.UUID) error {
	return r.conn(dbc).Where("id = ?", bookID).Delete(&domain.Book{}).Error
}
