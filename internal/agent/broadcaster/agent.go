package broadcaster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goal-relay/internal/config"
	"github.com/goal-relay/internal/metrics"
	"github.com/goal-relay/internal/models"
	"github.com/goal-relay/internal/resolver"
	"github.com/goal-relay/internal/storage"
	"github.com/goal-relay/internal/telegram"
	"github.com/goal-relay/pkg/logger"
)

const (
	alertBanner = "<b>⚽\U0001f525 New Goal Alert! \U0001f525⚽</b>"
	watchCTA    = "<b>\U0001f3ac Watch the goal in comment!</b> \U0001f447"
)

// VideoResolver resolves a playable video URL for a submission
type VideoResolver interface {
	Resolve(ctx context.Context, pageURL string) (*resolver.Video, error)
	Download(ctx context.Context, videoURL, path string) error
}

// Messenger is the part of the Telegram client the broadcaster uses
type Messenger interface {
	SendMessage(ctx context.Context, chatID, text, parseMode string) (*telegram.Message, error)
	WaitForForward(ctx context.Context, sentMessageID int, grace time.Duration) (*telegram.Message, error)
	SendVideoURL(ctx context.Context, chatID, videoURL string, replyTo int) error
	SendVideoFile(ctx context.Context, chatID, path string, replyTo int) error
}

// Agent drains the queue and broadcasts each claimed submission to the
// channel, attaching resolved videos to the auto-forwarded group copy
type Agent struct {
	queue        storage.Queue
	resolver     VideoResolver
	messenger    Messenger
	channelID    string
	groupID      string
	forwardGrace time.Duration
	tmpDir       string
	log          *logger.Logger
}

// NewAgent creates a new broadcaster agent
func NewAgent(
	queue storage.Queue,
	videoResolver VideoResolver,
	messenger Messenger,
	telegramCfg config.TelegramConfig,
	forwardGrace time.Duration,
	log *logger.Logger,
) *Agent {
	return &Agent{
		queue:        queue,
		resolver:     videoResolver,
		messenger:    messenger,
		channelID:    telegramCfg.ChannelID,
		groupID:      telegramCfg.GroupID,
		forwardGrace: forwardGrace,
		tmpDir:       os.TempDir(),
		log:          log.WithComponent("broadcaster"),
	}
}

// DrainResult contains the results of one drain phase
type DrainResult struct {
	Processed int
	Failed    int
	Duration  time.Duration
}

// Drain runs the given number of concurrent workers, each claiming and
// broadcasting submissions until the queue reports empty. Per-submission
// failures are logged and never abort the other submissions.
func (a *Agent) Drain(ctx context.Context, workers int) *DrainResult {
	startTime := time.Now()
	result := &DrainResult{}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}

				sub, err := a.queue.ClaimNext(ctx)
				if err != nil {
					a.log.Error().Err(err).Int("worker", worker).Msg("Claim failed")
					return
				}
				if sub == nil {
					return
				}

				a.log.WithSubmissionID(sub.ID).Info().Int("worker", worker).Msg("Processing from queue")
				err = a.broadcast(ctx, sub)

				mu.Lock()
				if err != nil {
					result.Failed++
				} else {
					result.Processed++
				}
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	result.Duration = time.Since(startTime)
	if result.Processed > 0 || result.Failed > 0 {
		a.log.Info().
			Int("processed", result.Processed).
			Int("failed", result.Failed).
			Dur("duration", result.Duration).
			Msg("Drain phase completed")
	}
	return result
}

// broadcast posts one alert. Resolution and correlation failures degrade to
// a text-only alert; only the channel send itself can fail the submission.
func (a *Agent) broadcast(ctx context.Context, sub *models.Submission) error {
	log := a.log.WithSubmissionID(sub.ID)

	video, err := a.resolver.Resolve(ctx, sub.URL)
	if err != nil {
		if !errors.Is(err, resolver.ErrNoVideoFound) {
			log.Warn().Err(err).Str("url", sub.URL).Msg("Video resolution errored")
		}
		metrics.ResolutionFailures.Inc()
		video = nil
	}

	text := alertBanner + "\n\n" + sub.Title
	if video != nil {
		text += "\n\n" + watchCTA
	}

	sent, err := a.messenger.SendMessage(ctx, a.channelID, text, "HTML")
	if err != nil {
		metrics.BroadcastFailures.Inc()
		videoURL := ""
		if video != nil {
			videoURL = video.URL
		}
		log.Error().Err(err).Str("video_url", videoURL).Msg("Failed to broadcast in channel")
		return fmt.Errorf("broadcast failed for %s: %w", sub.ID, err)
	}
	metrics.BroadcastsSent.Inc()

	if video == nil {
		return nil
	}

	if err := a.attachVideo(ctx, sub, sent, video); err != nil {
		// alert is already out; losing the clip is not fatal
		log.Warn().Err(err).Str("video_url", video.URL).Msg("Video not attached")
	}
	return nil
}

// attachVideo waits for the platform to auto-forward the alert into the
// discussion group, then replies to the forwarded copy with the video
func (a *Agent) attachVideo(ctx context.Context, sub *models.Submission, sent *telegram.Message, video *resolver.Video) error {
	forwarded, err := a.messenger.WaitForForward(ctx, sent.MessageID, a.forwardGrace)
	if err != nil {
		return fmt.Errorf("forward correlation failed: %w", err)
	}

	if !video.Downloadable {
		if err := a.messenger.SendVideoURL(ctx, a.groupID, video.URL, forwarded.MessageID); err != nil {
			return err
		}
		metrics.VideosAttached.WithLabelValues("reference").Inc()
		return nil
	}

	path := filepath.Join(a.tmpDir, fmt.Sprintf("temp_goal_video_%s.mp4", sub.ID))
	if err := a.resolver.Download(ctx, video.URL, path); err != nil {
		return err
	}
	defer os.Remove(path)

	if err := a.messenger.SendVideoFile(ctx, a.groupID, path, forwarded.MessageID); err != nil {
		return err
	}
	metrics.VideosAttached.WithLabelValues("upload").Inc()
	return nil
}
