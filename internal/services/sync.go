package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/data/repos"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/apierr"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/dbctx"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

type CommitOutcome string

const (
	OutcomeCreated   CommitOutcome = "created"
	OutcomeMerged    CommitOutcome = "merged"
	OutcomeConflict  CommitOutcome = "conflict"
	OutcomeUnchanged CommitOutcome = "unchanged"
)

type CommitResult struct {
	Outcome    CommitOutcome
	SubtopicID uuid.UUID
	// Stabilized is true when the re-derived content matched the stored
	// hash, i.e. this run produced no new evidence for the subtopic.
	Stabilized bool
}

// SyncService makes synthesizer output durable. Every subtopic write runs in
// its own transaction: a crash mid-run leaves previously committed subtopics
// intact and uncommitted ones absent.
type SyncService interface {
	CommitCandidate(ctx context.Context, bookID uuid.UUID, cand CandidateSubtopic, pageStart, pageEnd int, touchedThisRun bool) (CommitResult, error)
	MarkStable(ctx context.Context, subtopicID uuid.UUID) (bool, error)
	AdvanceBookIfReady(ctx context.Context, bookID uuid.UUID) (*domain.Book, error)
	Review(ctx context.Context, bookID uuid.UUID, topicKey, subtopicKey string) (*domain.GuidelineSubtopic, error)
	ListGuidelines(ctx context.Context, bookID uuid.UUID) ([]*domain.GuidelineSubtopic, error)
	GetSubtopic(ctx context.Context, bookID uuid.UUID, topicKey, subtopicKey string) (*domain.GuidelineSubtopic, error)
	History(ctx context.Context, subtopicID uuid.UUID) ([]*domain.SubtopicRevision, error)
}

type syncService struct {
	db        *gorm.DB
	log       *logger.Logger
	books     repos.BookRepo
	subtopics repos.SubtopicRepo
	revisions repos.RevisionRepo
}

func NewSyncService(
	db *gorm.DB,
	log *logger.Logger,
	books repos.BookRepo,
	subtopics repos.SubtopicRepo,
	revisions repos.RevisionRepo,
) SyncService {
	return &syncService{
		db:        db,
		log:       log.With("service", "SyncService"),
		books:     books,
		subtopics: subtopics,
		revisions: revisions,
	}
}

func rangeUnion(s1, e1, s2, e2 int) (int, int) {
	start := s1
	if s2 < start {
		start = s2
	}
	end := e1
	if e2 > end {
		end = e2
	}
	return start, end
}

// CommitCandidate reconciles one candidate with the stored subtopic keyed by
// (book_id, topic_key, subtopic_key), atomically.
//
// Re-derived content that is byte-identical to the stored payload over an
// already-covered range is a no-op: no version bump, no count. When two
// candidates in the same run claim the same key with different content the
// later page range wins as current and the earlier evidence stays in the
// range union (touchedThisRun selects that tie-break over the cross-run
// conflict path).
func (s *syncService) CommitCandidate(ctx context.Context, bookID uuid.UUID, cand CandidateSubtopic, pageStart, pageEnd int, touchedThisRun bool) (CommitResult, error) {
	if pageStart > pageEnd {
		return CommitResult{}, apierr.Validation("page range start %d exceeds end %d", pageStart, pageEnd)
	}
	if err := cand.Content.Validate(); err != nil {
		return CommitResult{}, apierr.Validation("candidate %s/%s: %v", cand.TopicKey, cand.SubtopicKey, err)
	}

	var result CommitResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}

		existing, err := s.subtopics.GetByKey(txc, bookID, cand.TopicKey, cand.SubtopicKey)
		if err != nil {
			return err
		}

		if existing == nil {
			subtopic := &domain.GuidelineSubtopic{
				ID:              uuid.New(),
				BookID:          bookID,
				TopicKey:        cand.TopicKey,
				SubtopicKey:     cand.SubtopicKey,
				TopicTitle:      cand.TopicTitle,
				SubtopicTitle:   cand.SubtopicTitle,
				Status:          domain.SubtopicStatusOpen,
				SourcePageStart: pageStart,
				SourcePageEnd:   pageEnd,
				Version:         1,
			}
			if err := subtopic.SetContent(cand.Content); err != nil {
				return err
			}
			if _, err := s.subtopics.Create(txc, subtopic); err != nil {
				return err
			}
			if err := s.appendRevision(txc, subtopic, domain.RevisionCreated); err != nil {
				return err
			}
			result = CommitResult{Outcome: OutcomeCreated, SubtopicID: subtopic.ID}
			return nil
		}

		newHash := cand.Content.Hash()
		if newHash == existing.ContentHash {
			covered := pageStart >= existing.SourcePageStart && pageEnd <= existing.SourcePageEnd
			if covered {
				result = CommitResult{Outcome: OutcomeUnchanged, SubtopicID: existing.ID, Stabilized: true}
				return nil
			}
			// same content, wider evidence: extend the range
			existing.SourcePageStart, existing.SourcePageEnd = rangeUnion(
				existing.SourcePageStart, existing.SourcePageEnd, pageStart, pageEnd)
			existing.Version++
			existing.UpdatedAt = time.Now().UTC()
			if err := s.subtopics.Save(txc, existing); err != nil {
				return err
			}
			if err := s.appendRevision(txc, existing, domain.RevisionMerged); err != nil {
				return err
			}
			result = CommitResult{Outcome: OutcomeMerged, SubtopicID: existing.ID, Stabilized: true}
			return nil
		}

		overlaps := pageStart <= existing.SourcePageEnd && pageEnd >= existing.SourcePageStart
		conflict := overlaps && !touchedThisRun

		existing.SourcePageStart, existing.SourcePageEnd = rangeUnion(
			existing.SourcePageStart, existing.SourcePageEnd, pageStart, pageEnd)
		if err := existing.SetContent(cand.Content); err != nil {
			return err
		}
		existing.TopicTitle = cand.TopicTitle
		existing.SubtopicTitle = cand.SubtopicTitle
		existing.Version++
		existing.UpdatedAt = time.Now().UTC()

		kind := domain.RevisionMerged
		outcome := OutcomeMerged
		if conflict {
			existing.Status = domain.SubtopicStatusNeedsReview
			kind = domain.RevisionConflict
			outcome = OutcomeConflict
		}

		if err := s.subtopics.Save(txc, existing); err != nil {
			return err
		}
		if err := s.appendRevision(txc, existing, kind); err != nil {
			return err
		}
		result = CommitResult{Outcome: outcome, SubtopicID: existing.ID}
		return nil
	})
	if err != nil {
		return CommitResult{}, fmt.Errorf("commit candidate %s/%s: %w", cand.TopicKey, cand.SubtopicKey, err)
	}
	return result, nil
}

func (s *syncService) appendRevision(txc dbctx.Context, subtopic *domain.GuidelineSubtopic, kind domain.RevisionKind) error {
	payload := subtopic.ConsolidatedContent
	if subtopic.Generation == domain.GenerationLegacy {
		payload = subtopic.LegacyContent
	}
	_, err := s.revisions.Append(txc, &domain.SubtopicRevision{
		ID:              uuid.New(),
		SubtopicID:      subtopic.ID,
		BookID:          subtopic.BookID,
		Version:         subtopic.Version,
		Kind:            kind,
		ContentHash:     subtopic.ContentHash,
		Payload:         payload,
		SourcePageStart: subtopic.SourcePageStart,
		SourcePageEnd:   subtopic.SourcePageEnd,
	})
	return err
}

// MarkStable promotes an open subtopic whose content held steady across this
// run and the previous one. Returns false when the subtopic is not open.
func (s *syncService) MarkStable(ctx context.Context, subtopicID uuid.UUID) (bool, error) {
	promoted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		var subtopic domain.GuidelineSubtopic
		if err := tx.WithContext(ctx).Where("id = ?", subtopicID).First(&subtopic).Error; err != nil {
			return err
		}
		if subtopic.Status != domain.SubtopicStatusOpen {
			return nil
		}
		subtopic.Status = domain.SubtopicStatusStable
		subtopic.UpdatedAt = time.Now().UTC()
		if err := s.subtopics.Save(txc, &subtopic); err != nil {
			return err
		}
		promoted = true
		return nil
	})
	return promoted, err
}

// AdvanceBookIfReady moves the book to guidelines_pending_review when at
// least one subtopic has reached stable or final.
func (s *syncService) AdvanceBookIfReady(ctx context.Context, bookID uuid.UUID) (*domain.Book, error) {
	dbc := dbctx.Context{Ctx: ctx}
	book, err := s.books.GetByID(dbc, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apierr.NotFound("book %s not found", bookID)
	}

	ready, err := s.subtopics.GetByStatus(dbc, bookID, []domain.SubtopicStatus{
		domain.SubtopicStatusStable, domain.SubtopicStatusFinal,
	})
	if err != nil {
		return nil, err
	}
	if len(ready) == 0 || !book.Status.CanTransition(domain.BookStatusGuidelinesPendingReview) {
		return book, nil
	}

	book.Status = domain.BookStatusGuidelinesPendingReview
	book.UpdatedAt = time.Now().UTC()
	if err := s.books.Save(dbc, book); err != nil {
		return nil, err
	}
	s.log.Info("book advanced to guidelines_pending_review", "book_id", bookID, "ready_subtopics", len(ready))
	return book, nil
}

// Review locks a stable subtopic as final.
func (s *syncService) Review(ctx context.Context, bookID uuid.UUID, topicKey, subtopicKey string) (*domain.GuidelineSubtopic, error) {
	var out *domain.GuidelineSubtopic
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		subtopic, err := s.subtopics.GetByKey(txc, bookID, topicKey, subtopicKey)
		if err != nil {
			return err
		}
		if subtopic == nil {
			return apierr.NotFound("subtopic %s/%s not found in book %s", topicKey, subtopicKey, bookID)
		}
		if subtopic.Status == domain.SubtopicStatusFinal {
			out = subtopic
			return nil
		}
		if subtopic.Status != domain.SubtopicStatusStable {
			return apierr.Conflict("subtopic %s/%s is %s; only stable subtopics can be finalized", topicKey, subtopicKey, subtopic.Status)
		}
		subtopic.Status = domain.SubtopicStatusFinal
		subtopic.UpdatedAt = time.Now().UTC()
		if err := s.subtopics.Save(txc, subtopic); err != nil {
			return err
		}
		if err := s.appendRevision(txc, subtopic, domain.RevisionFinalized); err != nil {
			return err
		}
		out = subtopic
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *syncService) ListGuidelines(ctx context.Context, bookID uuid.UUID) ([]*domain.GuidelineSubtopic, error) {
	dbc := dbctx.Context{Ctx: ctx}
	book, err := s.books.GetByID(dbc, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apierr.NotFound("book %s not found", bookID)
	}
	return s.subtopics.GetByBookID(dbc, bookID)
}

func (s *syncService) GetSubtopic(ctx context.Context, bookID uuid.UUID, topicKey, subtopicKey string) (*domain.GuidelineSubtopic, error) {
	subtopic, err := s.subtopics.GetByKey(dbctx.Context{Ctx: ctx}, bookID, topicKey, subtopicKey)
	if err != nil {
		return nil, err
	}
	if subtopic == nil {
		return nil, apierr.NotFound("subtopic %s/%s not found in book %s", topicKey, subtopicKey, bookID)
	}
	return subtopic, nil
}

func (s *syncService) History(ctx context.Context, subtopicID uuid.UUID) ([]*domain.SubtopicRevision, error) {
	return s.revisions.GetBySubtopicID(dbctx.Context{Ctx: ctx}, subtopicID)
}
