package classify

import (
	"testing"

	"github.com/goal-relay/internal/models"
)

func TestClassifier_IsGoalPost(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cases := []struct {
		title string
		want  bool
	}{
		{"[2]-[1] Team A vs Team B", true},
		{"2-1 Team A vs Team B", true},
		{"Team A [3] - 0 Team B - Smith 45'", true},
		{"Team A vs Team B preview", false},
		{"Match thread: Team A vs Team B", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := c.IsGoalPost(tc.title); got != tc.want {
			t.Errorf("IsGoalPost(%q) = %v, want %v", tc.title, got, tc.want)
		}
	}
}

func TestClassifier_IsGoalPost_CustomPattern(t *testing.T) {
	c, err := New(`\d+:\d+`)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if !c.IsGoalPost("2:1 Team A vs Team B") {
		t.Error("custom pattern should match colon scoreline")
	}
	if c.IsGoalPost("[2]-[1] Team A vs Team B") {
		t.Error("custom pattern should not match dash scoreline")
	}
}

func TestClassifier_New_InvalidPattern(t *testing.T) {
	if _, err := New(`[unclosed`); err == nil {
		t.Error("expected error for invalid regex")
	}
}

func TestClassifier_ContainsVideo(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cases := []struct {
		url   string
		flair string
		want  bool
	}{
		{"https://v.redd.it/abc", "", true},
		{"https://streamable.com/xyz", "", true},
		{"https://dubz.co/v/abc", "", true},
		{"https://example.com/text", "", false},
		{"https://example.com/text", "media", true},
		{"", "media", true},
		{"https://example.com/article", "discussion", false},
	}

	for _, tc := range cases {
		if got := c.ContainsVideo(tc.url, tc.flair); got != tc.want {
			t.Errorf("ContainsVideo(%q, %q) = %v, want %v", tc.url, tc.flair, got, tc.want)
		}
	}
}

func TestClassifier_Classify(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	goal := c.Classify(&models.FeedPost{
		Title: "[1]-0 Team A vs Team B - Smith 12'",
		URL:   "https://streamja.com/abc",
	})
	if !goal.IsGoal || !goal.IsVideo || !goal.Actionable() {
		t.Errorf("expected actionable goal+video classification, got %+v", goal)
	}

	preview := c.Classify(&models.FeedPost{
		Title: "Team A vs Team B preview",
		URL:   "https://example.com/article",
	})
	if preview.Actionable() {
		t.Errorf("preview post should not be actionable, got %+v", preview)
	}
}
