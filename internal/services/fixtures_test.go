package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/data/repos"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/data/repos/testutil"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/dbctx"
)

// memBucket is an in-memory stand-in for the GCS bucket service.
type memBucket struct {
	mu          sync.Mutex
	objects     map[string][]byte
	failUploads bool
}

func newMemBucket() *memBucket {
	return &memBucket{objects: map[string][]byte{}}
}

func (b *memBucket) UploadObject(ctx context.Context, key string, contentType string, body io.Reader) error {
	if b.failUploads {
		return errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memBucket) DownloadObject(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return data, nil
}

func (b *memBucket) DeleteObject(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memBucket) DeletePrefix(ctx context.Context, prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			delete(b.objects, key)
		}
	}
	return nil
}

func (b *memBucket) SignedURL(key string, ttl time.Duration) (string, error) {
	return "https://storage.test/" + key, nil
}

func (b *memBucket) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

// echoExtractor returns the image bytes as text, so tests control OCR output
// by choosing the upload payload.
type echoExtractor struct {
	err error
}

func (e *echoExtractor) ExtractText(ctx context.Context, image []byte) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return string(image), nil
}

// scriptedAnalyzer maps page numbers to fixed candidate lists.
type scriptedAnalyzer struct {
	byPage map[int][]CandidateSubtopic
	errs   map[int]error
}

func (a *scriptedAnalyzer) AnalyzePage(ctx context.Context, book *domain.Book, page *domain.Page, mode domain.GenerationMode) ([]CandidateSubtopic, error) {
	if err, ok := a.errs[page.PageNum]; ok {
		return nil, err
	}
	return a.byPage[page.PageNum], nil
}

func dbctxBG() dbctx.Context {
	return dbctx.Context{Ctx: context.Background()}
}

type testEnv struct {
	db    *gorm.DB
	repos repos.Set
	locks *KeyedLock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := testutil.DB(t)
	return &testEnv{
		db:    gdb,
		repos: repos.Wire(gdb, testutil.Logger(t)),
		locks: NewKeyedLock(),
	}
}

func (e *testEnv) seedBook(t *testing.T, status domain.BookStatus) *domain.Book {
	t.Helper()
	id := uuid.New()
	book := &domain.Book{
		ID:            id,
		Title:         "Science Around Us",
		Country:       "IN",
		Board:         "CBSE",
		Grade:         6,
		Subject:       "science",
		StoragePrefix: fmt.Sprintf("books/%s", id),
		Status:        status,
		CreatedBy:     "system",
	}
	if _, err := e.repos.Books.Create(dbctxBG(), book); err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return book
}

func (e *testEnv) seedPage(t *testing.T, bookID uuid.UUID, pageNum int, text string, approved bool) *domain.Page {
	t.Helper()
	page := &domain.Page{
		ID:       uuid.New(),
		BookID:   bookID,
		PageNum:  pageNum,
		ImageKey: fmt.Sprintf("books/%s/pages/%04d.png", bookID, pageNum),
		TextKey:  fmt.Sprintf("books/%s/pages/%04d.txt", bookID, pageNum),
		OCRText:  text,
		Status:   domain.PageStatusPendingReview,
	}
	if approved {
		now := time.Now().UTC()
		page.Status = domain.PageStatusApproved
		page.ApprovedAt = &now
	}
	if _, err := e.repos.Pages.Create(dbctxBG(), page); err != nil {
		t.Fatalf("seed page %d: %v", pageNum, err)
	}
	return page
}

func consolidated(text string) domain.SubtopicContent {
	return domain.SubtopicContent{
		Mode:         domain.GenerationConsolidated,
		Consolidated: &domain.ConsolidatedContent{Guidance: text},
	}
}

func candidate(topic, subtopic, text string) CandidateSubtopic {
	return CandidateSubtopic{
		TopicKey:      topic,
		TopicTitle:    strings.ReplaceAll(topic, "-", " "),
		SubtopicKey:   subtopic,
		SubtopicTitle: strings.ReplaceAll(subtopic, "-", " "),
		Content:       consolidated(text),
	}
}
