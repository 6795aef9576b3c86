package rss

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/goal-relay/internal/config"
	"github.com/goal-relay/internal/models"
	"github.com/goal-relay/pkg/logger"
)

// Source implements feed.Source over the subreddit's public RSS feed.
// Needs no API credentials but carries no flair and no native-video
// metadata, so classification falls back to the URL allowlist alone.
type Source struct {
	subreddit string
	url       string
	parser    *gofeed.Parser
	log       *logger.Logger
}

// New creates a new RSS fallback source
func New(cfg config.RedditConfig, log *logger.Logger) *Source {
	return &Source{
		subreddit: cfg.Subreddit,
		url:       fmt.Sprintf("https://www.reddit.com/r/%s/new/.rss", cfg.Subreddit),
		parser:    gofeed.NewParser(),
		log:       log.WithSource("rss", cfg.Subreddit),
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return "r/" + s.subreddit + " (rss)"
}

// Type returns "rss"
func (s *Source) Type() string {
	return "rss"
}

// ListNewest retrieves the newest posts from the RSS feed
func (s *Source) ListNewest(ctx context.Context, limit int) ([]*models.FeedPost, error) {
	s.log.Debug().Str("url", s.url).Msg("Fetching RSS feed")

	parsed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed for r/%s: %w", s.subreddit, err)
	}

	posts := make([]*models.FeedPost, 0, limit)
	for _, item := range parsed.Items {
		if len(posts) >= limit {
			break
		}
		id := item.GUID
		// entry ids come as fullnames like "t3_abc123"
		id = strings.TrimPrefix(id, "t3_")
		if id == "" {
			continue
		}
		posts = append(posts, &models.FeedPost{
			ID:    id,
			URL:   item.Link,
			Title: item.Title,
		})
	}

	s.log.Info().Int("count", len(posts)).Msg("Fetched newest posts")
	return posts, nil
}

// HealthCheck verifies the RSS feed is accessible
func (s *Source) HealthCheck(ctx context.Context) error {
	_, err := s.parser.ParseURLWithContext(s.url, ctx)
	return err
}
