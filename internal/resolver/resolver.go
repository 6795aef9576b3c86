package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/goal-relay/internal/config"
	"github.com/goal-relay/pkg/logger"
	"github.com/goal-relay/pkg/ratelimit"
)

// ErrNoVideoFound is returned when every extraction strategy came up empty.
// Non-fatal; the broadcast degrades to text-only.
var ErrNoVideoFound = errors.New("no video found")

// directHost marks URLs that are already direct download links and need no
// further resolution
const directHost = "redvid.io"

// browserUserAgent is sent on page fetches; several clip hosts serve empty
// shells to non-browser agents
const browserUserAgent = "Mozilla/5.0"

// Video is the outcome of a successful resolution
type Video struct {
	URL          string
	Downloadable bool // served with an attachment disposition, fetch-and-reupload
}

// Resolver obtains a playable video URL for a submission through an ordered
// fallback chain of extraction strategies
type Resolver struct {
	cfg         config.ResolverConfig
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// New creates a new resolver
func New(cfg config.ResolverConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Resolver {
	return &Resolver{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: limiter,
		log:         log.WithComponent("resolver"),
	}
}

// Resolve walks the strategy chain until one yields a URL. Strategy failures
// only cause fallthrough; the single error ever returned is ErrNoVideoFound.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) (*Video, error) {
	// already a direct download link, use as-is
	if strings.Contains(pageURL, directHost) {
		return &Video{
			URL:          pageURL,
			Downloadable: r.IsDownloadable(ctx, pageURL),
		}, nil
	}

	if videoURL := r.extractFromPage(ctx, pageURL); videoURL != "" {
		return &Video{
			URL:          videoURL,
			Downloadable: r.IsDownloadable(ctx, videoURL),
		}, nil
	}

	if r.cfg.HeadlessEnabled {
		videoURL, err := r.headlessExtract(ctx, pageURL)
		if err != nil {
			r.log.Warn().Err(err).Str("url", pageURL).Msg("Headless extraction failed")
		} else if videoURL != "" {
			return &Video{
				URL:          videoURL,
				Downloadable: r.IsDownloadable(ctx, videoURL),
			}, nil
		}
	}

	return nil, ErrNoVideoFound
}

// extractFromPage fetches the page once and runs the static strategies over
// it: embedded player metadata first, then raw markup
func (r *Resolver) extractFromPage(ctx context.Context, pageURL string) string {
	doc, err := r.fetchDocument(ctx, pageURL)
	if err != nil {
		r.log.Warn().Err(err).Str("url", pageURL).Msg("Page fetch failed")
		return ""
	}

	if videoURL := extractMetaVideo(doc); videoURL != "" {
		r.log.Debug().Str("url", pageURL).Str("video_url", videoURL).Msg("Resolved via player metadata")
		return videoURL
	}
	if videoURL := extractMarkupVideo(doc); videoURL != "" {
		r.log.Debug().Str("url", pageURL).Str("video_url", videoURL).Msg("Resolved via markup scrape")
		return videoURL
	}
	return ""
}

// fetchDocument GETs the page and parses it
func (r *Resolver) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := r.rateLimiter.Wait(ctx, ratelimit.LimiterScrape); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page fetch failed with status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

// extractMetaVideo looks for the stream URL the streaming sites publish in
// their Open Graph / twitter card metadata
func extractMetaVideo(doc *goquery.Document) string {
	metaProps := []string{"og:video:secure_url", "og:video:url", "og:video"}
	for _, prop := range metaProps {
		if content, ok := doc.Find(fmt.Sprintf(`meta[property=%q]`, prop)).First().Attr("content"); ok && content != "" {
			return content
		}
	}
	if content, ok := doc.Find(`meta[name="twitter:player:stream"]`).First().Attr("content"); ok && content != "" {
		return content
	}
	return ""
}

// extractMarkupVideo inspects the raw markup for playable elements in fixed
// priority order: video, video source, object, embed
func extractMarkupVideo(doc *goquery.Document) string {
	if src, ok := doc.Find("video").First().Attr("src"); ok && src != "" {
		return src
	}
	if src, ok := doc.Find("video source").First().Attr("src"); ok && src != "" {
		return src
	}
	if data, ok := doc.Find("object").First().Attr("data"); ok && data != "" {
		return data
	}
	if src, ok := doc.Find("embed").First().Attr("src"); ok && src != "" {
		return src
	}
	return ""
}

// IsDownloadable issues a header-only request and reports whether the URL
// serves the file as a direct attachment. Attachment URLs are downloaded
// and re-uploaded; the rest are passed to the messaging platform by
// reference.
func (r *Resolver) IsDownloadable(ctx context.Context, videoURL string) bool {
	req, err := http.NewRequestWithContext(ctx, "HEAD", videoURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.log.Warn().Err(err).Str("url", videoURL).Msg("Downloadability check failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Debug().Int("status", resp.StatusCode).Str("url", videoURL).Msg("Downloadability check non-200")
		return false
	}

	disposition := resp.Header.Get("Content-Disposition")
	return strings.Contains(strings.ToLower(disposition), "attachment")
}
