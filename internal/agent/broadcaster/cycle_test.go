package broadcaster

import (
	"context"
	"testing"
	"time"

	"github.com/goal-relay/internal/agent/watcher"
	"github.com/goal-relay/internal/classify"
	"github.com/goal-relay/internal/config"
	"github.com/goal-relay/internal/models"
	"github.com/goal-relay/internal/resolver"
	"github.com/goal-relay/internal/telegram"
	"github.com/goal-relay/pkg/logger"
)

type staticSource struct {
	posts []*models.FeedPost
}

func (s *staticSource) Name() string { return "r/test" }
func (s *staticSource) Type() string { return "reddit" }
func (s *staticSource) ListNewest(ctx context.Context, limit int) ([]*models.FeedPost, error) {
	return s.posts, nil
}
func (s *staticSource) HealthCheck(ctx context.Context) error { return nil }

// One full fetch+drain cycle over a listing of three posts where exactly one
// is a new goal+video post: the queue ends up with one worker-processed row
// and two closed at insert time, and exactly one broadcast goes out.
func TestFetchDrainCycle(t *testing.T) {
	ctx := context.Background()
	queue := newTestQueue(t)

	source := &staticSource{posts: []*models.FeedPost{
		{ID: "match1", URL: "https://streamable.com/abc", Title: "[1]-0 Team A vs Team B"},
		{ID: "news1", URL: "https://example.com/transfer", Title: "Transfer news roundup"},
		{ID: "report1", URL: "https://example.com/report", Title: "[3]-[2] full match report"},
	}}

	classifier, err := classify.New("")
	if err != nil {
		t.Fatalf("classifier failed: %v", err)
	}
	w := watcher.NewAgent(source, classifier, queue, 10, logger.Default())

	res := &mockResolver{video: &resolver.Video{URL: "https://cdn.example.com/goal.mp4"}}
	msg := &mockMessenger{forward: &telegram.Message{MessageID: 77}}
	b := NewAgent(queue, res, msg, config.TelegramConfig{
		ChannelID: "@channel",
		GroupID:   "-100123",
	}, time.Millisecond, logger.Default())

	fetchResult, err := w.Run(ctx)
	if err != nil {
		t.Fatalf("fetch phase failed: %v", err)
	}
	if fetchResult.Enqueued != 1 || fetchResult.Skipped != 2 {
		t.Fatalf("fetch result = %+v, want 1 pending and 2 skipped", fetchResult)
	}

	drainResult := b.Drain(ctx, 2)
	if drainResult.Processed != 1 {
		t.Fatalf("drain result = %+v, want 1 processed", drainResult)
	}

	if len(msg.sentTexts) != 1 {
		t.Errorf("expected exactly one broadcast, got %d", len(msg.sentTexts))
	}

	pending, processed, err := queue.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if pending != 0 || processed != 3 {
		t.Errorf("queue stats = %d pending / %d processed, want 0/3", pending, processed)
	}

	// the matched post is now fully handled; a re-poll skips everything
	secondFetch, err := w.Run(ctx)
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if secondFetch.Known != 3 || secondFetch.Enqueued != 0 {
		t.Errorf("second fetch = %+v, want all 3 known", secondFetch)
	}
	if len(msg.sentTexts) != 1 {
		t.Errorf("re-poll must not broadcast again, got %d messages", len(msg.sentTexts))
	}
}
