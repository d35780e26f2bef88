package pages

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/dbctx"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

type PageRepo interface {
	Create(dbc dbctx.Context, page *domain.Page) (*domain.Page, error)
	GetByBookAndNum(dbc dbctx.Context, bookID uuid.UUID, pageNum int) (*domain.Page, error)
	GetByBookID(dbc dbctx.Context, bookID uuid.UUID) ([]*domain.Page, error)
	GetApprovedInRange(dbc dbctx.Context, bookID uuid.UUID, startPage, endPage int) ([]*domain.Page, error)
	GetUnapprovedInRange(dbc dbctx.Context, bookID uuid.UUID, startPage, endPage int) ([]*domain.Page, error)
	MaxPageNum(dbc dbctx.Context, bookID uuid.UUID) (int, error)
	CountByStatus(dbc dbctx.Context, bookID uuid.UUID, status domain.PageStatus) (int64, error)
	Save(dbc dbctx.Context, page *domain.Page) error
	SoftDeleteByID(dbc dbctx.Context, pageID uuid.UUID) error
	SoftDeleteByBookID(dbc dbctx.Context, bookID uuid.UUID) error
}

type pageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPageRepo(db *gorm.DB, baseLog *logger.Logger) PageRepo {
	repoLog := baseLog.With("repo", "PageRepo")
	return &pageRepo{db: db, log: repoLog}
}

func (r *pageRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *pageRepo) Create(dbc dbctx.Context, page *domain.Page) (*domain.Page, error) {
	if err := r.conn(dbc).Create(page).Error; err != nil {
		return nil, err
	}
	return page, nil
}

func (r *pageRepo) GetByBookAndNum(dbc dbctx.Context, bookID uuid.UUID, pageNum int) (*domain.Page, error) {
	var page domain.Page
	err := r.conn(dbc).
		Where("book_id = ? AND page_num = ?", bookID, pageNum).
		First(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *pageRepo) GetByBookID(dbc dbctx.Context, bookID uuid.UUID) ([]*domain.Page, error) {
	var results []*domain.Page
	if err := r.conn(dbc).
		Where("book_id = ?", bookID).
		Order("page_num ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *pageRepo) GetApprovedInRange(dbc dbctx.Context, bookID uuid.UUID, startPage, endPage int) ([]*domain.Page, error) {
	var results []*domain.Page
	if err := r.conn(dbc).
		Where("book_id = ? AND page_num >= ? AND page_num <= ? AND status = ?",
			bookID, startPage, endPage, domain.PageStatusApproved).
		Order("page_num ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *pageRepo) GetUnapprovedInRange(dbc dbctx.Context, bookID uuid.UUID, startPage, endPage int) ([]*domain.Page, error) {
	var results []*domain.Page
	if err := r.conn(dbc).
		Where("book_id = ? AND page_num >= ? AND page_num <= ? AND status <> ?",
			bookID, startPage, endPage, domain.PageStatusApproved).
		Order("page_num ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *pageRepo) MaxPageNum(dbc dbctx.Context, bookID uuid.UUID) (int, error) {
	var max int
	err := r.conn(dbc).
		Model(&domain.Page{}).
		Where("book_id = ?", bookID).
		Select("COALESCE(MAX(page_num), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (r *pageRepo) CountByStatus(dbc dbctx.Context, bookID uuid.UUID, status domain.PageStatus) (int64, error) {
	var count int64
	err := r.conn(dbc).
		Model(&domain.Page{}).
		Where("book_id = ? AND status = ?", bookID, status).
		Count(&count).Error
	return count, err
}

func (r *pageRepo) Save(dbc dbctx.Context, page *domain.Page) error {
	return r.conn(dbc).Save(page).Error
}

func (r *pageRepo) SoftDeleteByID(dbc dbctx.Context, pageID uuid.UUID) error {
	return r.conn(dbc).Where("id = ?", pageID).Delete(&domain.Page{}).Error
}

func (r *pageRepo) SoftDeleteByBookID(dbc dbctx.Context, bookID uuid.UUID) error {
	return r.conn(dbc).Where("book_id = ?", bookID).Delete(&domain.Page{}).Error
}
