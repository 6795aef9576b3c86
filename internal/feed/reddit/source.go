package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/goal-relay/internal/config"
	"github.com/goal-relay/internal/models"
	"github.com/goal-relay/pkg/logger"
	"github.com/goal-relay/pkg/ratelimit"
)

const (
	tokenURL   = "https://www.reddit.com/api/v1/access_token"
	apiBaseURL = "https://oauth.reddit.com"
	redvidHost = "redvid.io"
)

// Source implements feed.Source against the Reddit JSON API using
// application-only (client credentials) authentication
type Source struct {
	subreddit   string
	userAgent   string
	httpClient  *http.Client // oauth2-wrapped
	plainClient *http.Client // for the redvid token endpoint
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// New creates a new Reddit source
func New(cfg config.RedditConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Source {
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}

	// the token endpoint and every API call must carry our User-Agent,
	// Reddit throttles the default Go one aggressively
	base := &http.Client{
		Transport: &userAgentTransport{agent: cfg.UserAgent, base: http.DefaultTransport},
		Timeout:   30 * time.Second,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	return &Source{
		subreddit:   cfg.Subreddit,
		userAgent:   cfg.UserAgent,
		httpClient:  creds.Client(ctx),
		plainClient: base,
		rateLimiter: limiter,
		log:         log.WithSource("reddit", cfg.Subreddit),
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return "r/" + s.subreddit
}

// Type returns "reddit"
func (s *Source) Type() string {
	return "reddit"
}

// listingResponse mirrors the subset of the Reddit listing payload we use
type listingResponse struct {
	Data struct {
		Children []struct {
			Data listingPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type listingPost struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	Title             string `json:"title"`
	LinkFlairCSSClass string `json:"link_flair_css_class"`
	IsVideo           bool   `json:"is_video"`
	Media             *struct {
		RedditVideo *struct {
			FallbackURL string `json:"fallback_url"`
		} `json:"reddit_video"`
	} `json:"media"`
}

// ListNewest retrieves the newest posts from the subreddit. For
// platform-native videos the post URL is replaced with a direct download
// link derived through the redvid token API; derivation failures keep the
// original URL.
func (s *Source) ListNewest(ctx context.Context, limit int) ([]*models.FeedPost, error) {
	if err := s.rateLimiter.Wait(ctx, ratelimit.LimiterReddit); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	endpoint := fmt.Sprintf("%s/r/%s/new.json?limit=%d", apiBaseURL, url.PathEscape(s.subreddit), limit)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.log.Debug().Str("endpoint", endpoint).Msg("Fetching newest posts")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("listing error (status %d): %s", resp.StatusCode, string(body))
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	posts := make([]*models.FeedPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		raw := child.Data
		post := &models.FeedPost{
			ID:      raw.ID,
			URL:     raw.URL,
			Title:   raw.Title,
			Flair:   raw.LinkFlairCSSClass,
			IsVideo: raw.IsVideo,
		}

		if raw.IsVideo && raw.Media != nil && raw.Media.RedditVideo != nil {
			post.FallbackURL = raw.Media.RedditVideo.FallbackURL
			if direct, err := s.directDownloadURL(ctx, raw.ID, post.FallbackURL); err != nil {
				s.log.Warn().Err(err).Str("submission_id", raw.ID).Msg("Direct download URL derivation failed")
			} else if direct != "" {
				post.URL = direct
			}
		}

		posts = append(posts, post)
	}

	s.log.Info().Int("count", len(posts)).Msg("Fetched newest posts")
	return posts, nil
}

// HealthCheck verifies the listing endpoint is reachable
func (s *Source) HealthCheck(ctx context.Context) error {
	_, err := s.ListNewest(ctx, 1)
	return err
}

// redvidToken is the payload the redvid download-link endpoint expects
type redvidToken struct {
	VideoURL string `json:"video_url"`
	AudioURL string `json:"audio_url"`
	ID       string `json:"id"`
}

type redvidResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

// directDownloadURL asks the redvid service for a merged audio+video
// download link for a native Reddit video. The audio track lives next to
// the video one under a fixed DASH name.
func (s *Source) directDownloadURL(ctx context.Context, postID, videoURL string) (string, error) {
	if videoURL == "" {
		return "", nil
	}

	base := videoURL
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[:idx]
	}
	token := redvidToken{
		VideoURL: videoURL,
		AudioURL: base + "/DASH_AUDIO_128.mp4",
		ID:       postID,
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("failed to marshal redvid token: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s/download-link?token=%s", redvidHost, url.QueryEscape(string(payload)))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create redvid request: %w", err)
	}

	resp, err := s.plainClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("redvid request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("redvid error (status %d)", resp.StatusCode)
	}

	var result redvidResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode redvid response: %w", err)
	}
	if !result.Success || result.URL == "" {
		return "", nil
	}

	return fmt.Sprintf("https://%s%s", redvidHost, result.URL), nil
}

// userAgentTransport stamps every request with a fixed User-Agent
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(clone)
}
