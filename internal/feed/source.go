package feed

import (
	"context"

	"github.com/goal-relay/internal/models"
)

// Source defines the interface for subreddit post sources
type Source interface {
	// Name returns the unique name of this source
	Name() string

	// Type returns the source type (reddit, rss)
	Type() string

	// ListNewest retrieves the newest posts from the source
	ListNewest(ctx context.Context, limit int) ([]*models.FeedPost, error)

	// HealthCheck verifies the source is accessible
	HealthCheck(ctx context.Context) error
}
