package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goal-relay/internal/classify"
	"github.com/goal-relay/internal/feed"
	"github.com/goal-relay/internal/metrics"
	"github.com/goal-relay/internal/storage"
	"github.com/goal-relay/pkg/logger"
)

// Agent runs the fetch phase: pull the newest posts from the feed, classify
// them and enqueue whatever isn't known yet
type Agent struct {
	source     feed.Source
	classifier *classify.Classifier
	queue      storage.Queue
	fetchLimit int
	log        *logger.Logger
}

// NewAgent creates a new watcher agent
func NewAgent(
	source feed.Source,
	classifier *classify.Classifier,
	queue storage.Queue,
	fetchLimit int,
	log *logger.Logger,
) *Agent {
	return &Agent{
		source:     source,
		classifier: classifier,
		queue:      queue,
		fetchLimit: fetchLimit,
		log:        log.WithComponent("watcher"),
	}
}

// Result contains the results of one fetch phase
type Result struct {
	Fetched  int
	Enqueued int // pending, awaiting broadcast
	Skipped  int // enqueued already-processed (failed classification)
	Known    int // already fully handled in a previous cycle
	Duration time.Duration
}

// Run executes one fetch phase. Per-post failures are logged and skipped;
// only a failed feed fetch is returned as an error so the outer loop can
// log it once and carry on to the next cycle.
func (a *Agent) Run(ctx context.Context) (*Result, error) {
	startTime := time.Now()
	result := &Result{}

	posts, err := a.source.ListNewest(ctx, a.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("feed fetch failed: %w", err)
	}
	result.Fetched = len(posts)
	metrics.PostsFetched.WithLabelValues(a.source.Type()).Add(float64(len(posts)))

	for _, post := range posts {
		log := a.log.WithSubmissionID(post.ID)

		done, err := a.queue.IsProcessed(ctx, post.ID)
		if err != nil {
			log.Error().Err(err).Msg("Dedup check failed")
			continue
		}
		if done {
			log.Debug().Msg("Skipping already processed submission")
			result.Known++
			continue
		}

		c := a.classifier.Classify(post)
		markProcessed := !c.Actionable()

		err = a.queue.Enqueue(ctx, post.ID, post.URL, post.Title, markProcessed)
		switch {
		case errors.Is(err, storage.ErrDuplicateSubmission):
			// pending from an earlier cycle, a worker will get to it
			result.Known++
			continue
		case err != nil:
			log.Error().Err(err).Str("url", post.URL).Msg("Failed to enqueue submission")
			continue
		}

		if markProcessed {
			result.Skipped++
			metrics.SubmissionsEnqueued.WithLabelValues("skipped").Inc()
		} else {
			result.Enqueued++
			metrics.SubmissionsEnqueued.WithLabelValues("pending").Inc()
		}

		log.Info().
			Bool("is_goal", c.IsGoal).
			Bool("is_video", c.IsVideo).
			Bool("processed", markProcessed).
			Msg("Submission status")
	}

	result.Duration = time.Since(startTime)

	a.log.Info().
		Int("fetched", result.Fetched).
		Int("enqueued", result.Enqueued).
		Int("skipped", result.Skipped).
		Int("known", result.Known).
		Dur("duration", result.Duration).
		Msg("Fetch phase completed")

	return result, nil
}
