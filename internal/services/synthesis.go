package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/data/repos"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/apierr"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/dbctx"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

const analysisParallelism = 4

type SynthesisInput struct {
	BookID uuid.UUID
	// StartPage/EndPage bound the run; zero means "all approved pages not
	// yet covered by a final subtopic".
	StartPage int
	EndPage   int
	Mode      domain.GenerationMode
	AutoSync  bool
}

type SynthesisReport struct {
	BookID             uuid.UUID         `json:"book_id"`
	Status             domain.BookStatus `json:"status"`
	PagesProcessed     int               `json:"pages_processed"`
	SubtopicsCreated   int               `json:"subtopics_created"`
	SubtopicsMerged    int               `json:"subtopics_merged"`
	SubtopicsFinalized int               `json:"subtopics_finalized"`
	DuplicatesMerged   int               `json:"duplicates_merged"`
	Cancelled          bool              `json:"cancelled,omitempty"`
	Errors             []string          `json:"errors"`
	Warnings           []string          `json:"warnings"`
}

// SynthesisService runs one guideline synthesis pass over a book's approved
// pages. At most one run per book is in flight at a time; the merge step is
// applied strictly in page order so the tie-break rule stays deterministic.
type SynthesisService interface {
	Run(ctx context.Context, in SynthesisInput) (*SynthesisReport, error)
}

type synthesisService struct {
	log      *logger.Logger
	books    repos.BookRepo
	pages    repos.PageRepo
	subs     repos.SubtopicRepo
	analyzer ContentAnalyzer
	sync     SyncService
	locks    *KeyedLock
}

func NewSynthesisService(
	log *logger.Logger,
	books repos.BookRepo,
	pages repos.PageRepo,
	subs repos.SubtopicRepo,
	analyzer ContentAnalyzer,
	syncSvc SyncService,
	locks *KeyedLock,
) SynthesisService {
	return &synthesisService{
		log:      log.With("service", "SynthesisService"),
		books:    books,
		pages:    pages,
		subs:     subs,
		analyzer: analyzer,
		sync:     syncSvc,
		locks:    locks,
	}
}

func (s *synthesisService) Run(ctx context.Context, in SynthesisInput) (*SynthesisReport, error) {
	release, ok := s.locks.TryAcquire(in.BookID)
	if !ok {
		return nil, apierr.Conflict("a synthesis run is already in flight for book %s", in.BookID)
	}
	defer release()

	dbc := dbctx.Context{Ctx: ctx}
	book, err := s.books.GetByID(dbc, in.BookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apierr.NotFound("book %s not found", in.BookID)
	}

	switch book.Status {
	case domain.BookStatusGeneratingGuidelines,
		domain.BookStatusPagesComplete,
		domain.BookStatusGuidelinesPendingReview:
	default:
		return nil, apierr.Conflict("cannot synthesize guidelines while book is %s", book.Status)
	}

	// resolve and validate the range before touching book state so a bad
	// request leaves the book exactly as it was
	start, end, explicit, err := s.resolveRange(dbc, in)
	if err != nil {
		return nil, err
	}

	if book.Status != domain.BookStatusGeneratingGuidelines {
		book.Status = domain.BookStatusGeneratingGuidelines
		book.UpdatedAt = time.Now().UTC()
		if err := s.books.Save(dbc, book); err != nil {
			return nil, fmt.Errorf("enter generating_guidelines: %w", err)
		}
	}
	// books already in generating_guidelines are leftovers from a run that
	// never advanced; the lock makes resuming them safe

	mode := in.Mode
	if mode == "" {
		mode = domain.GenerationConsolidated
	}

	report := &SynthesisReport{
		BookID:   in.BookID,
		Status:   book.Status,
		Errors:   []string{},
		Warnings: []string{},
	}

	selected, err := s.selectPages(dbc, in.BookID, start, end, explicit, report)
	if err != nil {
		return nil, err
	}
	report.PagesProcessed = len(selected)

	// per-page analysis is read-only and fans out; results keep page order
	candidates := make([][]CandidateSubtopic, len(selected))
	analysisErrs := make([]error, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(analysisParallelism)
	for i, page := range selected {
		g.Go(func() error {
			cands, err := s.analyzer.AnalyzePage(gctx, book, page, mode)
			if err != nil {
				analysisErrs[i] = err
				return nil
			}
			candidates[i] = cands
			return nil
		})
	}
	_ = g.Wait()

	// merge/commit strictly in page order
	touched := make(map[string]uuid.UUID)
	stabilized := make(map[uuid.UUID]bool)
	conflicted := make(map[uuid.UUID]bool)
merge:
	for i, page := range selected {
		if ctx.Err() != nil {
			report.Cancelled = true
			break merge
		}
		if err := analysisErrs[i]; err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("page %d: content analysis failed: %v", page.PageNum, err))
			continue
		}
		for _, cand := range candidates[i] {
			if ctx.Err() != nil {
				report.Cancelled = true
				break merge
			}
			key := cand.TopicKey + "/" + cand.SubtopicKey
			_, sameRun := touched[key]

			result, err := s.sync.CommitCandidate(ctx, in.BookID, cand, page.PageNum, page.PageNum, sameRun)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("page %d: commit %s: %v", page.PageNum, key, err))
				continue
			}
			touched[key] = result.SubtopicID

			switch result.Outcome {
			case OutcomeCreated:
				report.SubtopicsCreated++
			case OutcomeMerged:
				report.SubtopicsMerged++
			case OutcomeConflict:
				report.DuplicatesMerged++
				conflicted[result.SubtopicID] = true
			}
			if result.Stabilized {
				stabilized[result.SubtopicID] = true
			}
		}
	}

	// subtopics untouched by conflict whose content held across runs
	// graduate open -> stable
	if !report.Cancelled {
		for id := range stabilized {
			if conflicted[id] {
				continue
			}
			promoted, err := s.sync.MarkStable(ctx, id)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("stabilize subtopic %s: %v", id, err))
				continue
			}
			if promoted {
				report.SubtopicsFinalized++
			}
		}
	}

	if in.AutoSync && !report.Cancelled {
		advanced, err := s.sync.AdvanceBookIfReady(ctx, in.BookID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("advance book status: %v", err))
		} else {
			report.Status = advanced.Status
		}
	}

	s.log.Info("synthesis run finished",
		"book_id", in.BookID,
		"pages", report.PagesProcessed,
		"created", report.SubtopicsCreated,
		"merged", report.SubtopicsMerged,
		"duplicates", report.DuplicatesMerged,
		"finalized", report.SubtopicsFinalized,
		"cancelled", report.Cancelled,
	)
	return report, nil
}

// resolveRange turns the request's bounds into a concrete page range.
// Explicit ranges are validated; an empty request means the whole book.
func (s *synthesisService) resolveRange(dbc dbctx.Context, in SynthesisInput) (start, end int, explicit bool, err error) {
	start, end = in.StartPage, in.EndPage
	explicit = start > 0 || end > 0

	if explicit {
		if start <= 0 {
			start = 1
		}
		if end <= 0 {
			end, err = s.pages.MaxPageNum(dbc, in.BookID)
			if err != nil {
				return 0, 0, false, err
			}
		}
		if start > end {
			return 0, 0, false, apierr.Validation("start_page %d exceeds end_page %d", start, end)
		}
		return start, end, true, nil
	}

	max, err := s.pages.MaxPageNum(dbc, in.BookID)
	if err != nil {
		return 0, 0, false, err
	}
	return 1, max, false, nil
}

// selectPages loads the approved pages inside the resolved range. For the
// default range, pages already covered by a final subtopic are dropped.
// Unapproved pages inside the range become warnings, not errors.
func (s *synthesisService) selectPages(dbc dbctx.Context, bookID uuid.UUID, start, end int, explicit bool, report *SynthesisReport) ([]*domain.Page, error) {
	if end == 0 {
		return nil, nil
	}

	approved, err := s.pages.GetApprovedInRange(dbc, bookID, start, end)
	if err != nil {
		return nil, err
	}
	unapproved, err := s.pages.GetUnapprovedInRange(dbc, bookID, start, end)
	if err != nil {
		return nil, err
	}
	for _, p := range unapproved {
		report.Warnings = append(report.Warnings, fmt.Sprintf("page %d is not approved; skipped", p.PageNum))
	}

	if explicit {
		return approved, nil
	}

	// default range: drop pages already locked in by a final subtopic
	finals, err := s.subs.GetByStatus(dbc, bookID, []domain.SubtopicStatus{domain.SubtopicStatusFinal})
	if err != nil {
		return nil, err
	}
	if len(finals) == 0 {
		return approved, nil
	}
	out := approved[:0]
	for _, p := range approved {
		covered := false
		for _, f := range finals {
			if p.PageNum >= f.SourcePageStart && p.PageNum <= f.SourcePageEnd {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, p)
		}
	}
	return out, nil
}
