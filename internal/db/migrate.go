package db

import (
	"gorm.io/gorm"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Book{},
		&domain.Page{},
		&domain.GuidelineSubtopic{},
		&domain.SubtopicRevision{},
	)
}

func (s *PostgresService) AutoMigrateAll() error {
	return AutoMigrateAll(s.db)
}
