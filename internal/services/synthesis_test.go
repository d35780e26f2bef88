package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/data/repos/testutil"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/apierr"
)

func newSynthesisHarness(t *testing.T, env *testEnv, analyzer ContentAnalyzer) (SynthesisService, SyncService) {
	t.Helper()
	log := testutil.Logger(t)
	syncSvc := NewSyncService(env.db, log, env.repos.Books, env.repos.Subtopics, env.repos.Revisions)
	synth := NewSynthesisService(log, env.repos.Books, env.repos.Pages, env.repos.Subtopics, analyzer, syncSvc, env.locks)
	return synth, syncSvc
}

func TestSynthesisRunCreatesAndAdvances(t *testing.T) {
	env := newTestEnv(t)
	analyzer := &scriptedAnalyzer{byPage: map[int][]CandidateSubtopic{
		1: {candidate("plants", "photosynthesis", "Plants make food from light.")},
		2: {candidate("plants", "respiration", "Plants breathe too.")},
	}}
	synth, _ := newSynthesisHarness(t, env, analyzer)
	book := env.seedBook(t, domain.BookStatusPagesComplete)
	env.seedPage(t, book.ID, 1, "page one", true)
	env.seedPage(t, book.ID, 2, "page two", true)

	report, err := synth.Run(context.Background(), SynthesisInput{BookID: book.ID, AutoSync: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.PagesProcessed != 2 {
		t.Errorf("pages_processed = %d, want 2", report.PagesProcessed)
	}
	if report.SubtopicsCreated != 2 {
		t.Errorf("subtopics_created = %d, want 2", report.SubtopicsCreated)
	}
	if report.SubtopicsMerged != 0 || report.DuplicatesMerged != 0 {
		t.Errorf("merged=%d duplicates=%d, want 0/0 on first run", report.SubtopicsMerged, report.DuplicatesMerged)
	}
	if len(report.Errors) != 0 {
		t.Errorf("unexpected errors: %v", report.Errors)
	}

	// first run produced no stable subtopics yet, so the book stays in
	// generating_guidelines even with auto sync on
	if report.Status != domain.BookStatusGeneratingGuidelines {
		t.Errorf("status = %s, want generating_guidelines", report.Status)
	}
}

func TestSynthesisRerunIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	analyzer := &scriptedAnalyzer{byPage: map[int][]CandidateSubtopic{
		1: {candidate("plants", "photosynthesis", "Plants make food from light.")},
	}}
	synth, _ := newSynthesisHarness(t, env, analyzer)
	book := env.seedBook(t, domain.BookStatusPagesComplete)
	env.seedPage(t, book.ID, 1, "page one", true)

	if _, err := synth.Run(context.Background(), SynthesisInput{BookID: book.ID, AutoSync: true}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// second run re-derives identical content: the subtopic stabilizes and
	// the book advances, but nothing is created or merged
	report, err := synth.Run(context.Background(), SynthesisInput{BookID: book.ID, AutoSync: true})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.SubtopicsCreated != 0 || report.SubtopicsMerged != 0 || report.DuplicatesMerged != 0 {
		t.Fatalf("second run: created=%d merged=%d duplicates=%d, want all zero",
			report.SubtopicsCreated, report.SubtopicsMerged, report.DuplicatesMerged)
	}
	if report.SubtopicsFinalized != 1 {
		t.Fatalf("second run: finalized = %d, want 1", report.SubtopicsFinalized)
	}
	if report.Status != domain.BookStatusGuidelinesPendingReview {
		t.Fatalf("status = %s, want guidelines_pending_review", report.Status)
	}

	// third run: subtopic already stable, still a pure no-op
	report, err = synth.Run(context.Background(), SynthesisInput{BookID: book.ID, AutoSync: true})
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if report.SubtopicsCreated != 0 || report.SubtopicsMerged != 0 || report.SubtopicsFinalized != 0 {
		t.Fatalf("third run: created=%d merged=%d finalized=%d, want all zero",
			report.SubtopicsCreated, report.SubtopicsMerged, report.SubtopicsFinalized)
	}

	stored, _ := env.repos.Subtopics.GetByKey(dbctxBG(), book.ID, "plants", "photosynthesis")
	if stored.Version != 1 {
		t.Errorf("version = %d, want 1 after idempotent reruns", stored.Version)
	}
}

func TestSynthesisCrossRunConflictFlagsReview(t *testing.T) {
	env := newTestEnv(t)
	analyzer := &scriptedAnalyzer{byPage: map[int][]CandidateSubtopic{
		1: {candidate("plants", "photosynthesis", "First derivation.")},
	}}
	synth, _ := newSynthesisHarness(t, env, analyzer)
	book := env.seedBook(t, domain.BookStatusPagesComplete)
	env.seedPage(t, book.ID, 1, "page one", true)

	if _, err := synth.Run(context.Background(), SynthesisInput{BookID: book.ID}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	analyzer.byPage[1] = []CandidateSubtopic{candidate("plants", "photosynthesis", "Reworded derivation.")}
	report, err := synth.Run(context.Background(), SynthesisInput{BookID: book.ID, AutoSync: true})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.DuplicatesMerged != 1 {
		t.Fatalf("duplicates_merged = %d, want 1", report.DuplicatesMerged)
	}
	if report.SubtopicsFinalized != 0 {
		t.Fatalf("conflicted subtopic must not stabilize, finalized = %d", report.SubtopicsFinalized)
	}

	stored, _ := env.repos.Subtopics.GetByKey(dbctxBG(), book.ID, "plants", "photosynthesis")
	if stored.Status != domain.SubtopicStatusNeedsReview {
		t.Errorf("status = %s, want needs_review", stored.Status)
	}
	revs, _ := env.repos.Revisions.GetBySubtopicID(dbctxBG(), stored.ID)
	if len(revs) != 2 {
		t.Errorf("history has %d entries, want 2 (no evidence dropped)", len(revs))
	}
}

func TestSynthesisSkipsUnapprovedPagesWithWarnings(t *testing.T) {
	env := newTestEnv(t)
	analyzer := &scriptedAnalyzer{byPage: map[int][]CandidateSubtopic{
		1: {candidate("plants", "photosynthesis", "Approved page content.")},
		2: {candidate("plants", "respiration", "Should never be analyzed.")},
	}}
	synth, _ := newSynthesisHarness(t, env, analyzer)
	book := env.seedBook(t, domain.BookStatusPagesComplete)
	env.seedPage(t, book.ID, 1, "page one", true)
	env.seedPage(t, book.ID, 2, "page two", false)

	report, err := synth.Run(context.Background(), SynthesisInput{BookID: book.ID})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.PagesProcessed != 1 {
		t.Errorf("pages_processed = %d, want 1", report.PagesProcessed)
	}
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], "page 2") {
		t.Errorf("warnings = %v, want one mentioning page 2", report.Warnings)
	}
	if sub, _ := env.repos.Subtopics.GetByKey(dbctxBG(), book.ID, "plants", "respiration"); sub != nil {
		t.Error("unapproved page must not contribute subtopics")
	}
}

func TestSynthesisRecordsPerPageAnalysisErrors(t *testing.T) {
	env := newTestEnv(t)
	analyzer := &scriptedAnalyzer{
		byPage: map[int][]CandidateSubtopic{2: {candidate("plants", "respiration", "Fine page.")}},
		errs:   map[int]error{1: errors.New("model timeout")},
	}
	synth, _ := newSynthesisHarness(t, env, analyzer)
	book := env.seedBook(t, domain.BookStatusPagesComplete)
	env.seedPage(t, book.ID, 1, "page one", true)
	env.seedPage(t, book.ID, 2, "page two", true)

	report, err := synth.Run(context.Background(), SynthesisInput{BookID: book.ID})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "page 1") {
		t.Fatalf("errors = %v, want one mentioning page 1", report.Errors)
	}
	if report.SubtopicsCreated != 1 {
		t.Errorf("created = %d, want 1 (healthy page still processed)", report.SubtopicsCreated)
	}
}

func TestSynthesisRejectsConcurrentRun(t *testing.T) {
	env := newTestEnv(t)
	synth, _ := newSynthesisHarness(t, env, &scriptedAnalyzer{})
	book := env.seedBook(t, domain.BookStatusPagesComplete)

	release, ok := env.locks.TryAcquire(book.ID)
	if !ok {
		t.Fatal("setup: could not take book lock")
	}
	defer release()

	if _, err := synth.Run(context.Background(), SynthesisInput{BookID: book.ID}); !apierr.IsConflict(err) {
		t.Fatalf("got %v, want conflict while another run holds the lock", err)
	}
}

func TestSynthesisRejectsWrongBookState(t *testing.T) {
	env := newTestEnv(t)
	synth, _ := newSynthesisHarness(t, env, &scriptedAnalyzer{})
	book := env.seedBook(t, domain.BookStatusDraft)

	if _, err := synth.Run(context.Background(), SynthesisInput{BookID: book.ID}); !apierr.IsConflict(err) {
		t.Fatalf("draft book: got %v, want conflict", err)
	}
}

func TestSynthesisValidatesExplicitRange(t *testing.T) {
	env := newTestEnv(t)
	synth, _ := newSynthesisHarness(t, env, &scriptedAnalyzer{})
	book := env.seedBook(t, domain.BookStatusPagesComplete)
	env.seedPage(t, book.ID, 1, "page one", true)

	_, err := synth.Run(context.Background(), SynthesisInput{BookID: book.ID, StartPage: 5, EndPage: 2})
	if !apierr.IsValidation(err) {
		t.Fatalf("inverted range: got %v, want validation error", err)
	}

	// a rejected run must not move the book off pages_complete
	got, err := env.repos.Books.GetByID(dbctxBG(), book.ID)
	if err != nil {
		t.Fatalf("reload book: %v", err)
	}
	if got.Status != domain.BookStatusPagesComplete {
		t.Fatalf("book status after rejected run = %s, want %s", got.Status, domain.BookStatusPagesComplete)
	}
}

// cancellingAnalyzer cancels the run's context while analysis is in flight,
// so the merge loop has to stop early.
type cancellingAnalyzer struct {
	cancel context.CancelFunc
}

func (a *cancellingAnalyzer) AnalyzePage(ctx context.Context, book *domain.Book, page *domain.Page, mode domain.GenerationMode) ([]CandidateSubtopic, error) {
	a.cancel()
	return []CandidateSubtopic{candidate("plants", "photosynthesis", "Doomed run.")}, nil
}

func TestSynthesisReportsCancellation(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	synth, _ := newSynthesisHarness(t, env, &cancellingAnalyzer{cancel: cancel})
	book := env.seedBook(t, domain.BookStatusPagesComplete)
	env.seedPage(t, book.ID, 1, "page one", true)

	report, err := synth.Run(ctx, SynthesisInput{BookID: book.ID, AutoSync: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.Cancelled {
		t.Fatal("report should flag cancellation")
	}
	if report.SubtopicsCreated != 0 {
		t.Errorf("created = %d, want 0 after early cancel", report.SubtopicsCreated)
	}
}

func TestSynthesisDefaultRangeSkipsFinalizedPages(t *testing.T) {
	env := newTestEnv(t)
	analyzer := &scriptedAnalyzer{byPage: map[int][]CandidateSubtopic{
		1: {candidate("plants", "photosynthesis", "Locked in.")},
		2: {candidate("plants", "respiration", "Still open.")},
	}}
	synth, syncSvc := newSynthesisHarness(t, env, analyzer)
	book := env.seedBook(t, domain.BookStatusPagesComplete)
	env.seedPage(t, book.ID, 1, "page one", true)
	env.seedPage(t, book.ID, 2, "page two", true)

	// drive plants/photosynthesis to final over page 1
	for i := 0; i < 2; i++ {
		if _, err := synth.Run(context.Background(), SynthesisInput{BookID: book.ID, AutoSync: true}); err != nil {
			t.Fatalf("warm-up run %d: %v", i, err)
		}
	}
	if _, err := syncSvc.Review(context.Background(), book.ID, "plants", "photosynthesis"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	report, err := synth.Run(context.Background(), SynthesisInput{BookID: book.ID})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.PagesProcessed != 1 {
		t.Fatalf("pages_processed = %d, want 1 (page 1 is covered by a final subtopic)", report.PagesProcessed)
	}
}
