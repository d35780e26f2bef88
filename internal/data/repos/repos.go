package repos

import (
	"gorm.io/gorm"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/data/repos/books"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/data/repos/guidelines"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/data/repos/pages"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

type BookRepo = books.BookRepo
type BookListFilter = books.ListFilter
type PageRepo = pages.PageRepo
type SubtopicRepo = guidelines.SubtopicRepo
type RevisionRepo = guidelines.RevisionRepo

type Set struct {
	Books     BookRepo
	Pages     PageRepo
	Subtopics SubtopicRepo
	Revisions RevisionRepo
}

func Wire(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Books:     books.NewBookRepo(db, log),
		Pages:     pages.NewPageRepo(db, log),
		Subtopics: guidelines.NewSubtopicRepo(db, log),
		Revisions: guidelines.NewRevisionRepo(db, log),
	}
}
