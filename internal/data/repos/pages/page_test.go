package pages

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/data/repos/testutil"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/dbctx"
)

func seedPage(t *testing.T, repo PageRepo, bookID uuid.UUID, num int, approved bool) *domain.Page {
	t.Helper()
	page := &domain.Page{
		ID:       uuid.New(),
		BookID:   bookID,
		PageNum:  num,
		ImageKey: fmt.Sprintf("books/%s/pages/%04d.png", bookID, num),
		OCRText:  fmt.Sprintf("text of page %d", num),
		Status:   domain.PageStatusPendingReview,
	}
	if approved {
		now := time.Now().UTC()
		page.Status = domain.PageStatusApproved
		page.ApprovedAt = &now
	}
	created, err := repo.Create(dbctx.Context{Ctx: context.Background()}, page)
	if err != nil {
		t.Fatalf("create page %d: %v", num, err)
	}
	return created
}

func TestPageRepoMaxPageNum(t *testing.T) {
	repo := NewPageRepo(testutil.DB(t), testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	bookID := uuid.New()

	max, err := repo.MaxPageNum(dbc, bookID)
	if err != nil {
		t.Fatalf("max on empty book: %v", err)
	}
	if max != 0 {
		t.Fatalf("max = %d, want 0 for empty book", max)
	}

	seedPage(t, repo, bookID, 1, false)
	seedPage(t, repo, bookID, 2, false)
	seedPage(t, repo, bookID, 7, false)

	max, err = repo.MaxPageNum(dbc, bookID)
	if err != nil {
		t.Fatalf("max: %v", err)
	}
	if max != 7 {
		t.Fatalf("max = %d, want 7", max)
	}

	// other books don't leak in
	other := uuid.New()
	seedPage(t, repo, other, 99, false)
	if max, _ = repo.MaxPageNum(dbc, bookID); max != 7 {
		t.Fatalf("max = %d after seeding another book, want 7", max)
	}
}

func TestPageRepoRangeQueries(t *testing.T) {
	repo := NewPageRepo(testutil.DB(t), testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	bookID := uuid.New()
	seedPage(t, repo, bookID, 1, true)
	seedPage(t, repo, bookID, 2, false)
	seedPage(t, repo, bookID, 3, true)
	seedPage(t, repo, bookID, 4, true)

	approved, err := repo.GetApprovedInRange(dbc, bookID, 1, 3)
	if err != nil {
		t.Fatalf("approved in range: %v", err)
	}
	if len(approved) != 2 || approved[0].PageNum != 1 || approved[1].PageNum != 3 {
		t.Fatalf("approved = %v", pageNums(approved))
	}

	unapproved, err := repo.GetUnapprovedInRange(dbc, bookID, 1, 4)
	if err != nil {
		t.Fatalf("unapproved in range: %v", err)
	}
	if len(unapproved) != 1 || unapproved[0].PageNum != 2 {
		t.Fatalf("unapproved = %v", pageNums(unapproved))
	}

	pendingCount, err := repo.CountByStatus(dbc, bookID, domain.PageStatusPendingReview)
	if err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if pendingCount != 1 {
		t.Fatalf("pending = %d, want 1", pendingCount)
	}
	approvedCount, _ := repo.CountByStatus(dbc, bookID, domain.PageStatusApproved)
	if approvedCount != 3 {
		t.Fatalf("approved count = %d, want 3", approvedCount)
	}
}

func TestPageRepoSoftDelete(t *testing.T) {
	repo := NewPageRepo(testutil.DB(t), testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	bookID := uuid.New()
	page := seedPage(t, repo, bookID, 1, false)
	seedPage(t, repo, bookID, 2, false)

	if err := repo.SoftDeleteByID(dbc, page.ID); err != nil {
		t.Fatalf("delete by id: %v", err)
	}
	if got, _ := repo.GetByBookAndNum(dbc, bookID, 1); got != nil {
		t.Error("deleted page should not be readable")
	}
	remaining, _ := repo.GetByBookID(dbc, bookID)
	if len(remaining) != 1 {
		t.Fatalf("remaining = %d, want 1", len(remaining))
	}

	if err := repo.SoftDeleteByBookID(dbc, bookID); err != nil {
		t.Fatalf("delete by book: %v", err)
	}
	if remaining, _ = repo.GetByBookID(dbc, bookID); len(remaining) != 0 {
		t.Fatalf("remaining after book delete = %d, want 0", len(remaining))
	}
}

func pageNums(pages []*domain.Page) []int {
	out := make([]int, len(pages))
	for i, p := range pages {
		out[i] = p.PageNum
	}
	return out
}
