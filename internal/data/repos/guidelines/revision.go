package guidelines

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/dbctx"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

// RevisionRepo is append-only; revisions are never updated or deleted except
// when the owning book is removed.
type RevisionRepo interface {
	Append(dbc dbctx.Context, rev *domain.SubtopicRevision) (*domain.SubtopicRevision, error)
	GetBySubtopicID(dbc dbctx.Context, subtopicID uuid.UUID) ([]*domain.SubtopicRevision, error)
	DeleteByBookID(dbc dbctx.Context, bookID uuid.UUID) error
}

type revisionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRevisionRepo(db *gorm.DB, baseLog *logger.Logger) RevisionRepo {
	repoLog := baseLog.With("repo", "RevisionRepo")
	return &revisionRepo{db: db, log: repoLog}
}

func (r *revisionRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *revisionRepo) Append(dbc dbctx.Context, rev *domain.SubtopicRevision) (*domain.SubtopicRevision, error) {
	if err := r.conn(dbc).Create(rev).Error; err != nil {
		return nil, err
	}
	return rev, nil
}

func (r *revisionRepo) GetBySubtopicID(dbc dbctx.Context, subtopicID uuid.UUID) ([]*domain.SubtopicRevision, error) {
	var results []*domain.SubtopicRevision
	if err := r.conn(dbc).
		Where("subtopic_id = ?", subtopicID).
		Order("version ASC, created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *revisionRepo) DeleteByBookID(dbc dbctx.Context, bookID uuid.UUID) error {
	return r.conn(dbc).Where("book_id = ?", bookID).Delete(&domain.SubtopicRevision{}).Error
}
