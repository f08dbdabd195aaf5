package model

import "time"

// NotifyPolicy controls how the scheduler treats an event.
type NotifyPolicy string

const (
	// NotifyNormal fires a reminder at every configured lead time until
	// the event expires.
	NotifyNormal NotifyPolicy = "normal"
	// NotifyOnce fires a single reminder inside the once-window and is
	// removed immediately afterwards.
	NotifyOnce NotifyPolicy = "once"
)

// ParseNotifyPolicy maps a stored notify_type column value onto a policy.
// Unknown values degrade to NotifyNormal, matching how older rows without
// the column behaved.
func ParseNotifyPolicy(s string) NotifyPolicy {
	if s == string(NotifyOnce) {
		return NotifyOnce
	}
	return NotifyNormal
}

// Event is a single registered reminder.
type Event struct {
	ID        int64
	Title     string
	Content   string
	Date      time.Time
	Policy    NotifyPolicy
	ChannelID string
}

// Mentions holds the user and role IDs to prefix-mention when notifying
// about one event. Stored as associative rows keyed by event ID.
type Mentions struct {
	UserIDs []string
	RoleIDs []string
}

// Empty reports whether there is nothing to mention.
func (m Mentions) Empty() bool {
	return len(m.UserIDs) == 0 && len(m.RoleIDs) == 0
}

// Contest is one row scraped from the external contest listing page.
type Contest struct {
	ID      string
	Name    string
	URL     string
	StartAt time.Time
}

// User is a guild member snapshot row.
type User struct {
	ID   string
	Name string
}

// Role is a guild role snapshot row.
type Role struct {
	ID   string
	Name string
}

// Channel is a guild channel snapshot row.
type Channel struct {
	ID   string
	Name string
}
