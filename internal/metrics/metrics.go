// Package metrics exposes the bot's Prometheus counters. All of them are
// registered on the default registry and served by the health server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsFetched counts posts seen during fetch phases, per source type
	PostsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goalrelay_posts_fetched_total",
		Help: "Posts returned by the feed source.",
	}, []string{"source"})

	// SubmissionsEnqueued counts queue inserts, split by pending/skipped
	SubmissionsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goalrelay_submissions_enqueued_total",
		Help: "Submissions inserted into the queue.",
	}, []string{"state"}) // pending | skipped

	// BroadcastsSent counts alert messages delivered to the channel
	BroadcastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goalrelay_broadcasts_sent_total",
		Help: "Goal alerts posted to the channel.",
	})

	// BroadcastFailures counts submissions whose broadcast errored
	BroadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goalrelay_broadcast_failures_total",
		Help: "Broadcast attempts that failed.",
	})

	// ResolutionFailures counts submissions where no video URL was found
	ResolutionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goalrelay_resolution_failures_total",
		Help: "Submissions broadcast without video because resolution failed.",
	})

	// VideosAttached counts videos successfully attached to forwarded alerts
	VideosAttached = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goalrelay_videos_attached_total",
		Help: "Videos attached to forwarded alerts.",
	}, []string{"mode"}) // upload | reference
)
