package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goal-relay/pkg/ratelimit"
)

// headlessScript is the extraction program shipped to the remote
// headless-browser execution service for pages that only materialize their
// player via script. Element priority mirrors extractMarkupVideo.
const headlessScript = `from playwright.sync_api import sync_playwright
def extract(url):
  try:
    with sync_playwright() as p:
      browser = p.chromium.launch(headless=True)
      page = browser.new_page()
      page.goto(url, wait_until="load")
      page.wait_for_selector("video")
      for selector, attr in (("video", "src"), ("video source", "src"), ("object", "data"), ("embed", "src")):
        element = page.query_selector(selector)
        if element:
          video_url = element.get_attribute(attr)
          if video_url:
            browser.close()
            return {"video_url": video_url}
      browser.close()
      return {}
  except Exception as e:
    print(f"Extraction failed: {e}")
    return {}

import json
print(json.dumps(extract(%q)))
`

type headlessRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type headlessResponse struct {
	Output string `json:"output"`
}

// headlessExtract retries the markup extraction inside a remote headless
// browser. Used as the last strategy for pages requiring script execution.
func (r *Resolver) headlessExtract(ctx context.Context, pageURL string) (string, error) {
	if err := r.rateLimiter.Wait(ctx, ratelimit.LimiterHeadless); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	payload, err := json.Marshal(headlessRequest{
		Code:     fmt.Sprintf(headlessScript, pageURL),
		Language: "python",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal headless request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.cfg.HeadlessURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create headless request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("headless request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("headless service error (status %d)", resp.StatusCode)
	}

	var result headlessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode headless response: %w", err)
	}

	output := strings.TrimSpace(result.Output)
	if output == "" {
		return "", nil
	}

	var extracted struct {
		VideoURL string `json:"video_url"`
	}
	if err := json.Unmarshal([]byte(output), &extracted); err != nil {
		return "", fmt.Errorf("failed to parse headless output %q: %w", output, err)
	}

	return extracted.VideoURL, nil
}
