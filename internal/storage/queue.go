package storage

import (
	"context"
	"errors"
	"time"

	"github.com/goal-relay/internal/models"
)

// ErrDuplicateSubmission is returned by Enqueue when the submission id is
// already in the queue. Expected on every re-poll; callers ignore it.
var ErrDuplicateSubmission = errors.New("submission already queued")

// Queue defines the interface for the durable submission queue
type Queue interface {
	// Enqueue inserts a new submission. With markProcessed the row is
	// inserted already completed so it is never handed to a worker.
	Enqueue(ctx context.Context, id, url, title string, markProcessed bool) error

	// ClaimNext atomically selects one pending submission, marks it
	// processed and returns it. Returns (nil, nil) when the queue is empty.
	// A submission is never handed to two concurrent callers.
	ClaimNext(ctx context.Context) (*models.Submission, error)

	// IsProcessed reports whether a submission exists and has been
	// completed. Used for feed-side dedup before classification.
	IsProcessed(ctx context.Context, id string) (bool, error)

	// PurgeOld deletes processed rows older than the retention window and
	// returns the number of rows removed. Pending rows are never touched.
	PurgeOld(ctx context.Context, retention time.Duration) (int64, error)

	// Stats returns the number of pending and processed rows.
	Stats(ctx context.Context) (pending, processed int64, err error)

	// Maintenance
	Migrate() error
	Close() error
}
