package models

// FeedPost represents a post as discovered from a feed source, before
// classification. Not persisted; the queue only keeps id, url and title.
type FeedPost struct {
	ID          string
	URL         string
	Title       string
	Flair       string // link flair CSS class, "media" marks video posts
	IsVideo     bool   // platform-native video
	FallbackURL string // DASH video URL for native videos, empty otherwise
}

// Classification is the outcome of running a FeedPost through the classifier.
type Classification struct {
	IsGoal  bool
	IsVideo bool
}

// Actionable reports whether the post deserves a broadcast. Anything else is
// enqueued already-processed so the next poll skips it.
func (c Classification) Actionable() bool {
	return c.IsGoal && c.IsVideo
}
