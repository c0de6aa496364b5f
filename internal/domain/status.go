package domain

import (
	"math"
	"time"
)

// ActivityStatus is the closed set of repository status labels.
type ActivityStatus string

const (
	StatusActive   ActivityStatus = "#ACTIVE"
	StatusStale    ActivityStatus = "#STALE"
	StatusArchived ActivityStatus = "#ARCHIVED"
)

// StaleAfterDays is the inactivity window after which a plugin is stale.
const StaleAfterDays = 365

var statusColors = map[ActivityStatus]string{
	StatusActive:   "green",
	StatusStale:    "yellow",
	StatusArchived: "orange",
}

// Color returns the display color of the status tag.
func (s ActivityStatus) Color() string {
	return statusColors[s]
}

// Tag returns the status as a select option.
func (s ActivityStatus) Tag() Tag {
	return Tag{Name: string(s), Color: s.Color()}
}

// Valid reports whether s is one of the known labels.
func (s ActivityStatus) Valid() bool {
	_, ok := statusColors[s]
	return ok
}

// DeriveStatus computes the activity status of p at instant now.
//
// Archived upstream wins. Otherwise a plugin is stale when its last activity
// is more than StaleAfterDays whole days (rounded up) in the past, or unknown.
func DeriveStatus(p *Plugin, now time.Time) ActivityStatus {
	if p.ArchivedUpstream {
		return StatusArchived
	}
	if p.LastActivity.IsZero() {
		return StatusStale
	}
	if DaysSince(p.LastActivity, now) > StaleAfterDays {
		return StatusStale
	}
	return StatusActive
}

// DaysSince returns the elapsed whole days between t and now, rounded up.
func DaysSince(t, now time.Time) int {
	return int(math.Ceil(now.Sub(t).Hours() / 24))
}
