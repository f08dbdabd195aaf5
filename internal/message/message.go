// Package message renders notification and listing text. Everything in
// here is pure; the scheduler decides when to send and with which lead
// time, this package only formats.
package message

import (
	"fmt"
	"sort"
	"strings"

	"remindbot/internal/clock"
	"remindbot/internal/model"
)

// Composer renders Discord-facing message text.
type Composer struct {
	codec *clock.Codec
}

// NewComposer returns a Composer rendering dates with codec.
func NewComposer(codec *clock.Codec) *Composer {
	return &Composer{codec: codec}
}

// MentionHeader renders role mentions followed by user mentions,
// space-separated, with a single trailing newline. Returns "" when there
// is nothing to mention so callers never emit a stray blank line.
func (c *Composer) MentionHeader(roleIDs, userIDs []string) string {
	parts := make([]string, 0, len(roleIDs)+len(userIDs))
	for _, id := range roleIDs {
		parts = append(parts, "<@&"+id+">")
	}
	for _, id := range userIDs {
		parts = append(parts, "<@"+id+">")
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + "\n"
}

// DueNotification renders the reminder text for one due event. minutes
// must be the exact lead time the scheduler used to decide delivery.
func (c *Composer) DueNotification(ev model.Event, m model.Mentions, minutes int) string {
	return c.MentionHeader(m.RoleIDs, m.UserIDs) +
		fmt.Sprintf("%s まであと %d 分です", ev.Title, minutes)
}

// EventListing renders one line per event, ascending by date. mentions
// may be nil or sparse; events without mentions render without a header.
func (c *Composer) EventListing(events []model.Event, mentions map[int64]model.Mentions) string {
	ordered := append([]model.Event(nil), events...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	var b strings.Builder
	for _, ev := range ordered {
		m := mentions[ev.ID]
		b.WriteString(c.MentionHeader(m.RoleIDs, m.UserIDs))
		b.WriteString(c.codec.Format(ev.Date))
		b.WriteString(": ")
		b.WriteString(ev.Title)
		b.WriteString("\n")
	}
	return b.String()
}
