package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/goal-relay/internal/models"
	"github.com/goal-relay/internal/storage"
)

// Repository implements storage.Queue using SQLite
type Repository struct {
	db *gorm.DB

	// serializes ClaimNext across the drain workers; SQLite has a single
	// writer anyway, this keeps the claim transaction retry-free
	claimMu sync.Mutex
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" && !strings.HasPrefix(dsn, ":memory:") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one pooled connection avoids lock
	// contention and keeps in-memory databases on a single handle
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&models.Submission{})
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Enqueue inserts a new submission, optionally already marked processed
func (r *Repository) Enqueue(ctx context.Context, id, url, title string, markProcessed bool) error {
	sub := models.Submission{
		ID:    id,
		URL:   url,
		Title: title,
	}
	if markProcessed {
		now := time.Now().UTC()
		sub.Processed = &now
	}

	if err := r.db.WithContext(ctx).Create(&sub).Error; err != nil {
		if isDuplicateErr(err) {
			return storage.ErrDuplicateSubmission
		}
		return fmt.Errorf("failed to enqueue submission %s: %w", id, err)
	}
	return nil
}

// ClaimNext atomically pops one pending submission. The select and the
// processed-timestamp update run in a single transaction so two concurrent
// workers can never claim the same row.
func (r *Repository) ClaimNext(ctx context.Context) (*models.Submission, error) {
	r.claimMu.Lock()
	defer r.claimMu.Unlock()

	var sub models.Submission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("processed IS NULL").Order("id").First(&sub).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Submission{}).
			Where("id = ? AND processed IS NULL", sub.ID).
			Update("processed", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// claimed out from under us
			return gorm.ErrRecordNotFound
		}
		sub.Processed = &now
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim submission: %w", err)
	}
	return &sub, nil
}

// IsProcessed reports whether the submission exists with a non-null
// processed timestamp
func (r *Repository) IsProcessed(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND processed IS NOT NULL", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check submission %s: %w", id, err)
	}
	return count > 0, nil
}

// PurgeOld deletes processed rows older than the retention window
func (r *Repository) PurgeOld(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res := r.db.WithContext(ctx).
		Where("processed IS NOT NULL AND processed < ?", cutoff).
		Delete(&models.Submission{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge queue: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Stats returns the number of pending and processed rows
func (r *Repository) Stats(ctx context.Context) (pending, processed int64, err error) {
	if err = r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("processed IS NULL").
		Count(&pending).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count pending rows: %w", err)
	}
	if err = r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("processed IS NOT NULL").
		Count(&processed).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count processed rows: %w", err)
	}
	return pending, processed, nil
}

// isDuplicateErr recognizes a primary-key violation from both the gorm
// error translation and the raw sqlite message
func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
