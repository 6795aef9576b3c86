// Package schedule decides how often the feed should be polled, following
// the live-match calendar: short intervals around kickoff-heavy hours,
// long ones overnight.
package schedule

import "time"

// Refresh interval tiers
const (
	IntervalBusy    = time.Minute
	IntervalDefault = 2 * time.Minute
	IntervalNight   = 5 * time.Minute
)

// IsSaturday reports whether t falls on a Saturday (UTC)
func IsSaturday(t time.Time) bool {
	return t.UTC().Weekday() == time.Saturday
}

// IsSunday reports whether t falls on a Sunday (UTC)
func IsSunday(t time.Time) bool {
	return t.UTC().Weekday() == time.Sunday
}

// IsAfternoon reports whether t is in the 12-16h UTC band
func IsAfternoon(t time.Time) bool {
	hour := t.UTC().Hour()
	return hour > 11 && hour < 17
}

// IsEvening reports whether t is in the 18-22h UTC band
func IsEvening(t time.Time) bool {
	hour := t.UTC().Hour()
	return hour > 17 && hour < 23
}

// IsNight reports whether t is in the 2-11h UTC band. The band overlaps the
// afternoon start on purpose; it matches the historical behavior and night
// takes precedence in RefreshInterval.
func IsNight(t time.Time) bool {
	hour := t.UTC().Hour()
	return hour > 1 && hour < 12
}

// RefreshInterval returns how long to sleep before the next poll cycle
func RefreshInterval(t time.Time) time.Duration {
	// no live matches overnight
	if IsNight(t) {
		return IntervalNight
	}
	if IsEvening(t) {
		return IntervalBusy
	}
	if (IsSaturday(t) || IsSunday(t)) && (IsAfternoon(t) || IsEvening(t)) {
		return IntervalBusy
	}
	return IntervalDefault
}
