package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goal-relay/pkg/logger"
	"github.com/goal-relay/pkg/ratelimit"
)

const defaultBaseURL = "https://api.telegram.org"

// ErrNoForwardMatch is returned when no recent update references the sent
// message. Non-fatal; the video is dropped and the alert stays text-only.
var ErrNoForwardMatch = errors.New("no matching forwarded message")

// Message is the subset of the Bot API message object the bot uses
type Message struct {
	MessageID            int   `json:"message_id"`
	IsAutomaticForward   bool  `json:"is_automatic_forward"`
	ForwardFromMessageID int   `json:"forward_from_message_id"`
	Date                 int64 `json:"date"`
}

// Update is one entry of a getUpdates response
type Update struct {
	UpdateID int      `json:"update_id"`
	Message  *Message `json:"message"`
}

// apiResponse is the Bot API envelope
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// Client handles Telegram Bot API requests
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewClient creates a new Telegram Bot API client
func NewClient(token string, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			// video uploads can take a while
			Timeout: 2 * time.Minute,
		},
		rateLimiter: limiter,
		log:         log.WithComponent("telegram"),
	}
}

// call performs a Bot API method call with form-encoded parameters
func (c *Client) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterTelegram); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.log.Debug().Str("method", method).Msg("Making Telegram API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, method)
}

// SendMessage sends a text message to a chat and returns the sent message
func (c *Client) SendMessage(ctx context.Context, chatID, text, parseMode string) (*Message, error) {
	params := url.Values{}
	params.Set("chat_id", chatID)
	params.Set("text", text)
	if parseMode != "" {
		params.Set("parse_mode", parseMode)
	}

	raw, err := c.call(ctx, "sendMessage", params)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode sent message: %w", err)
	}

	c.log.Info().Str("chat_id", chatID).Int("message_id", msg.MessageID).Msg("Message sent")
	return &msg, nil
}

// GetRecentUpdates fetches the most recent message updates, newest last
func (c *Client) GetRecentUpdates(ctx context.Context, limit int) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(-limit))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("allowed_updates", `["message"]`)

	raw, err := c.call(ctx, "getUpdates", params)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	return updates, nil
}

// SendVideoURL sends a video by reference URL as a reply
func (c *Client) SendVideoURL(ctx context.Context, chatID, videoURL string, replyTo int) error {
	params := url.Values{}
	params.Set("chat_id", chatID)
	params.Set("video", videoURL)
	if replyTo != 0 {
		params.Set("reply_to_message_id", strconv.Itoa(replyTo))
	}

	if _, err := c.call(ctx, "sendVideo", params); err != nil {
		return err
	}
	c.log.Info().Str("chat_id", chatID).Str("video_url", videoURL).Msg("Video sent by reference")
	return nil
}

// SendVideoFile uploads a local video file as a reply
func (c *Client) SendVideoFile(ctx context.Context, chatID, path string, replyTo int) error {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterTelegram); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open video file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		writer.WriteField("chat_id", chatID)
		if replyTo != 0 {
			writer.WriteField("reply_to_message_id", strconv.Itoa(replyTo))
		}
		part, err := writer.CreateFormFile("video", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	endpoint := fmt.Sprintf("%s/bot%s/sendVideo", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, pr)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if _, err := decodeResponse(resp, "sendVideo"); err != nil {
		return err
	}
	c.log.Info().Str("chat_id", chatID).Str("path", path).Msg("Video uploaded")
	return nil
}

// WaitForForward waits out the grace period the platform needs to
// auto-forward a channel message into the linked group, then scans the most
// recent updates newest-first for the forwarded copy. First exact
// forward-reference match wins.
func (c *Client) WaitForForward(ctx context.Context, sentMessageID int, grace time.Duration) (*Message, error) {
	select {
	case <-time.After(grace):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	updates, err := c.GetRecentUpdates(ctx, 10)
	if err != nil {
		return nil, err
	}

	sort.Slice(updates, func(i, j int) bool {
		return updates[i].UpdateID > updates[j].UpdateID
	})

	for _, update := range updates {
		msg := update.Message
		if msg == nil {
			continue
		}
		if msg.IsAutomaticForward && msg.ForwardFromMessageID == sentMessageID {
			return msg, nil
		}
	}
	return nil, ErrNoForwardMatch
}

// decodeResponse unwraps the Bot API envelope
func decodeResponse(resp *http.Response, method string) (json.RawMessage, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("%s failed: %s", method, envelope.Description)
	}
	return envelope.Result, nil
}
