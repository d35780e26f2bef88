package guidelines

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/dbctx"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

type SubtopicRepo interface {
	Create(dbc dbctx.Context, subtopic *domain.GuidelineSubtopic) (*domain.GuidelineSubtopic, error)
	GetByKey(dbc dbctx.Context, bookID uuid.UUID, topicKey, subtopicKey string) (*domain.GuidelineSubtopic, error)
	GetByBookID(dbc dbctx.Context, bookID uuid.UUID) ([]*domain.GuidelineSubtopic, error)
	GetByStatus(dbc dbctx.Context, bookID uuid.UUID, statuses []domain.SubtopicStatus) ([]*domain.GuidelineSubtopic, error)
	// FinalCoveringPage returns final subtopics whose source range includes pageNum.
	FinalCoveringPage(dbc dbctx.Context, bookID uuid.UUID, pageNum int) ([]*domain.GuidelineSubtopic, error)
	Save(dbc dbctx.Context, subtopic *domain.GuidelineSubtopic) error
	SoftDeleteByBookID(dbc dbctx.Context, bookID uuid.UUID) error
}

type subtopicRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubtopicRepo(db *gorm.DB, baseLog *logger.Logger) SubtopicRepo {
	repoLog := baseLog.With("repo", "SubtopicRepo")
	return &subtopicRepo{db: db, log: repoLog}
}

func (r *subtopicRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *subtopicRepo) Create(dbc dbctx.Context, subtopic *domain.GuidelineSubtopic) (*domain.GuidelineSubtopic, error) {
	if err := r.conn(dbc).Create(subtopic).Error; err != nil {
		return nil, err
	}
	return subtopic, nil
}

func (r *subtopicRepo) GetByKey(dbc dbctx.Context, bookID uuid.UUID, topicKey, subtopicKey string) (*domain.GuidelineSubtopic, error) {
	var subtopic domain.GuidelineSubtopic
	err := r.conn(dbc).
		Where("book_id = ? AND topic_key = ? AND subtopic_key = ?", bookID, topicKey, subtopicKey).
		First(&subtopic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subtopic, nil
}

func (r *subtopicRepo) GetByBookID(dbc dbctx.Context, bookID uuid.UUID) ([]*domain.GuidelineSubtopic, error) {
	var results []*domain.GuidelineSubtopic
	if err := r.conn(dbc).
		Where("book_id = ?", bookID).
		Order("topic_key ASC, subtopic_key ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *subtopicRepo) GetByStatus(dbc dbctx.Context, bookID uuid.UUID, statuses []domain.SubtopicStatus) ([]*domain.GuidelineSubtopic, error) {
	var results []*domain.GuidelineSubtopic
	if len(statuses) == 0 {
		return results, nil
	}
	if err := r.conn(dbc).
		Where("book_id = ? AND status IN ?", bookID, statuses).
		Order("topic_key ASC, subtopic_key ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *subtopicRepo) FinalCoveringPage(dbc dbctx.Context, bookID uuid.UUID, pageNum int) ([]*domain.GuidelineSubtopic, error) {
	var results []*domain.GuidelineSubtopic
	if err := r.conn(dbc).
		Where("book_id = ? AND status = ? AND source_page_start <= ? AND source_page_end >= ?",
			bookID, domain.SubtopicStatusFinal, pageNum, pageNum).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *subtopicRepo) Save(dbc dbctx.Context, subtopic *domain.GuidelineSubtopic) error {
	return r.conn(dbc).Save(subtopic).Error
}

func (r *subtopicRepo) SoftDeleteByBookID(dbc dbctx.Context, bookID uuid.UUID) error {
	return r.conn(dbc).Where("book_id = ?", bookID).Delete(&domain.GuidelineSubtopic{}).Error
}
