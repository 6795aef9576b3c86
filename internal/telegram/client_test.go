package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goal-relay/pkg/logger"
	"github.com/goal-relay/pkg/ratelimit"
)

func newTestClient(baseURL string) *Client {
	limiter := ratelimit.NewMultiLimiter()
	limiter.AddLimiter(ratelimit.LimiterTelegram, 1000, 1000)
	c := NewClient("test-token", limiter, logger.Default())
	c.baseURL = baseURL
	return c
}

func TestClient_SendMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bottest-token/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		r.ParseForm()
		if got := r.Form.Get("chat_id"); got != "@channel" {
			t.Errorf("chat_id = %q", got)
		}
		if got := r.Form.Get("parse_mode"); got != "HTML" {
			t.Errorf("parse_mode = %q", got)
		}
		fmt.Fprint(w, `{"ok": true, "result": {"message_id": 42}}`)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	msg, err := c.SendMessage(context.Background(), "@channel", "<b>hello</b>", "HTML")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if msg.MessageID != 42 {
		t.Errorf("message_id = %d, want 42", msg.MessageID)
	}
}

func TestClient_SendMessage_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok": false, "description": "Bad Request: chat not found"}`)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	_, err := c.SendMessage(context.Background(), "@missing", "hello", "")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected API error with description, got %v", err)
	}
}

func TestClient_WaitForForward_FirstMatchNewestFirst(t *testing.T) {
	// 10 updates; two reference message 42, the newer one (update 110)
	// must win over the older one (update 103)
	updates := make([]Update, 0, 10)
	for i := 101; i <= 110; i++ {
		u := Update{UpdateID: i, Message: &Message{MessageID: 1000 + i}}
		if i == 103 || i == 110 {
			u.Message.IsAutomaticForward = true
			u.Message.ForwardFromMessageID = 42
		}
		updates = append(updates, u)
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if got := r.Form.Get("limit"); got != "10" {
			t.Errorf("limit = %q, want 10", got)
		}
		if got := r.Form.Get("offset"); got != "-10" {
			t.Errorf("offset = %q, want -10", got)
		}
		result, _ := json.Marshal(updates)
		fmt.Fprintf(w, `{"ok": true, "result": %s}`, result)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	msg, err := c.WaitForForward(context.Background(), 42, time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForForward failed: %v", err)
	}
	if msg.MessageID != 1110 {
		t.Errorf("matched message %d, want the newest forward 1110", msg.MessageID)
	}
}

func TestClient_WaitForForward_NoMatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok": true, "result": [
			{"update_id": 1, "message": {"message_id": 5, "is_automatic_forward": true, "forward_from_message_id": 99}},
			{"update_id": 2, "message": {"message_id": 6}}
		]}`)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	_, err := c.WaitForForward(context.Background(), 42, time.Millisecond)
	if !errors.Is(err, ErrNoForwardMatch) {
		t.Fatalf("expected ErrNoForwardMatch, got %v", err)
	}
}

func TestClient_WaitForForward_Cancelled(t *testing.T) {
	c := newTestClient("http://unused.invalid")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.WaitForForward(ctx, 42, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClient_SendVideoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goal.mp4")
	if err := os.WriteFile(path, []byte("fake video bytes"), 0644); err != nil {
		t.Fatalf("failed to write temp video: %v", err)
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("expected multipart upload: %v", err)
		}
		if got := r.FormValue("chat_id"); got != "-100123" {
			t.Errorf("chat_id = %q", got)
		}
		if got := r.FormValue("reply_to_message_id"); got != "7" {
			t.Errorf("reply_to_message_id = %q", got)
		}
		file, header, err := r.FormFile("video")
		if err != nil {
			t.Fatalf("missing video part: %v", err)
		}
		defer file.Close()
		if header.Filename != "goal.mp4" {
			t.Errorf("filename = %q", header.Filename)
		}
		fmt.Fprint(w, `{"ok": true, "result": {"message_id": 8}}`)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	if err := c.SendVideoFile(context.Background(), "-100123", path, 7); err != nil {
		t.Fatalf("SendVideoFile failed: %v", err)
	}
}

func TestClient_SendVideoURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if got := r.Form.Get("video"); got != "https://cdn.example.com/goal.mp4" {
			t.Errorf("video = %q", got)
		}
		if got := r.Form.Get("reply_to_message_id"); got != "7" {
			t.Errorf("reply_to_message_id = %q", got)
		}
		fmt.Fprint(w, `{"ok": true, "result": {"message_id": 9}}`)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	if err := c.SendVideoURL(context.Background(), "-100123", "https://cdn.example.com/goal.mp4", 7); err != nil {
		t.Fatalf("SendVideoURL failed: %v", err)
	}
}
