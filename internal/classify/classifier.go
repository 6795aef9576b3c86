package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goal-relay/internal/models"
)

// DefaultScorePattern matches a scoreline in a post title: two integers
// separated by a dash, each optionally bracketed, e.g. "[2]-[1]" or "2 - 1".
const DefaultScorePattern = `\[?\d+\]?\s*-\s*\[?\d+\]?`

// videoFlair is the link flair marking media posts on the subreddit
const videoFlair = "media"

// videoHosts are substrings of URLs pointing at known clip hosting sites
var videoHosts = []string{
	"stream", "clip", "mixtape", "flixtc", "v.redd",
	"a.pomfe.co", "kyouko.se", "twitter", "sporttube", "dubz.co", "redvid.io",
}

// Classifier decides whether a feed post is a goal post with video.
// Purely functional, no side effects.
type Classifier struct {
	scoreRe *regexp.Regexp
}

// New creates a classifier with the given scoreline pattern. An empty
// pattern falls back to DefaultScorePattern.
func New(scorePattern string) (*Classifier, error) {
	if scorePattern == "" {
		scorePattern = DefaultScorePattern
	}
	re, err := regexp.Compile(scorePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid score pattern %q: %w", scorePattern, err)
	}
	return &Classifier{scoreRe: re}, nil
}

// IsGoalPost reports whether the title suggests a scored goal
func (c *Classifier) IsGoalPost(title string) bool {
	return c.scoreRe.MatchString(title)
}

// ContainsVideo reports whether the post links to video content, either via
// its media flair or a known clip hosting URL
func (c *Classifier) ContainsVideo(url, flair string) bool {
	if flair == videoFlair {
		return true
	}
	for _, host := range videoHosts {
		if strings.Contains(url, host) {
			return true
		}
	}
	return false
}

// Classify runs both checks over a feed post
func (c *Classifier) Classify(post *models.FeedPost) models.Classification {
	return models.Classification{
		IsGoal:  c.IsGoalPost(post.Title),
		IsVideo: c.ContainsVideo(post.URL, post.Flair),
	}
}
