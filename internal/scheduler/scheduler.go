// Package scheduler decides, once per minute, which stored events are
// due for a reminder and which have expired.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"remindbot/internal/clock"
	appLog "remindbot/internal/log"
	"remindbot/internal/message"
	"remindbot/internal/metrics"
	"remindbot/internal/model"
)

// EventStore is the slice of the store the scheduler needs.
type EventStore interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
	MentionsForEvent(ctx context.Context, eventID int64) (model.Mentions, error)
	DeleteEvent(ctx context.Context, id int64) (model.Event, error)
}

// Sink delivers a composed reminder to a channel together with a
// dismissal button. The dismiss custom id maps back to a delete-by-id
// action when a user presses the button.
type Sink interface {
	PostWithDismissButton(channelID, content, customID string) error
}

// Scheduler is the per-minute reminder policy engine.
type Scheduler struct {
	store    EventStore
	sink     Sink
	composer *message.Composer
	codec    *clock.Codec

	// leadTimes are the qualifying minutes-remaining values for the
	// normal policy.
	leadTimes map[int]struct{}
	// onceWindow is the minutes-remaining bound inside which a once
	// event fires.
	onceWindow int
}

// New builds a Scheduler. The lead-time set and once-window are injected
// configuration, not globals.
func New(store EventStore, sink Sink, composer *message.Composer, codec *clock.Codec, leadTimes []int, onceWindow int) *Scheduler {
	set := make(map[int]struct{}, len(leadTimes))
	for _, m := range leadTimes {
		set[m] = struct{}{}
	}
	return &Scheduler{
		store:      store,
		sink:       sink,
		composer:   composer,
		codec:      codec,
		leadTimes:  set,
		onceWindow: onceWindow,
	}
}

// DismissCustomID encodes an event id into the dismiss button custom id.
func DismissCustomID(id int64) string {
	return fmt.Sprintf("delete-%d", id)
}

// Tick runs one reminder scan. now is sampled exactly once per tick by
// the caller; every decision and every rendered lead time in this pass
// derives from it. A failure on one event is logged and does not stop
// the rest of the batch.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	now = now.In(s.codec.Location())

	events, err := s.store.ListEvents(ctx)
	if err != nil {
		appLog.Error("scheduler: listing events failed", err)
		return
	}

	for _, ev := range events {
		s.processEvent(ctx, ev, now)
	}

	metrics.SchedulerTicks.Inc()
	appLog.Debug("scheduler tick completed", "events", len(events))
}

func (s *Scheduler) processEvent(ctx context.Context, ev model.Event, now time.Time) {
	minutesUntil := int(ev.Date.Sub(now) / time.Minute)

	// Already past: remove regardless of policy, no notification.
	if minutesUntil <= 0 {
		if _, err := s.store.DeleteEvent(ctx, ev.ID); err != nil {
			appLog.Error("scheduler: deleting expired event failed", err, "id", ev.ID)
			return
		}
		metrics.EventsExpired.Inc()
		appLog.Info("expired event deleted", "id", ev.ID, "title", ev.Title)
		return
	}

	// The tick runs at whole-minute granularity, so "N minutes
	// remaining" is matched as minutesUntil+1: a slightly forward-biased
	// closed window that a one-minute poll cannot skip over.
	lead := minutesUntil + 1

	switch ev.Policy {
	case model.NotifyOnce:
		if lead > s.onceWindow {
			return
		}
		if !s.notify(ctx, ev, lead) {
			// Delivery failed; keep the event so the next tick inside
			// the window retries.
			return
		}
		if _, err := s.store.DeleteEvent(ctx, ev.ID); err != nil {
			appLog.Error("scheduler: consuming once event failed", err, "id", ev.ID)
			return
		}
		appLog.Info("once event consumed", "id", ev.ID, "title", ev.Title, "lead_minutes", lead)

	case model.NotifyNormal:
		if _, due := s.leadTimes[lead]; !due {
			return
		}
		s.notify(ctx, ev, lead)

	default:
		appLog.Error("scheduler: unknown notify policy", nil, "id", ev.ID, "policy", string(ev.Policy))
	}
}

// notify composes and delivers one reminder. Reports whether delivery
// succeeded.
func (s *Scheduler) notify(ctx context.Context, ev model.Event, lead int) bool {
	mentions, err := s.store.MentionsForEvent(ctx, ev.ID)
	if err != nil {
		// Still deliver, just without the mention header.
		appLog.Error("scheduler: loading mentions failed", err, "id", ev.ID)
		mentions = model.Mentions{}
	}

	content := s.composer.DueNotification(ev, mentions, lead)
	if err := s.sink.PostWithDismissButton(ev.ChannelID, content, DismissCustomID(ev.ID)); err != nil {
		metrics.NotificationErrors.Inc()
		appLog.Error("scheduler: notification delivery failed", err, "id", ev.ID, "channel_id", ev.ChannelID)
		return false
	}

	metrics.NotificationsSent.WithLabelValues(string(ev.Policy)).Inc()
	appLog.Info("reminder sent", "id", ev.ID, "title", ev.Title, "lead_minutes", lead)
	return true
}
