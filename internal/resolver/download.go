package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Download fetches a downloadable video to the given local path. The caller
// owns the file and its cleanup.
func (r *Resolver) Download(ctx context.Context, videoURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", videoURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create video file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write video file: %w", err)
	}

	r.log.Debug().Str("url", videoURL).Str("path", path).Int64("size_bytes", written).Msg("Video downloaded")
	return nil
}
