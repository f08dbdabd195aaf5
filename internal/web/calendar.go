package web

import (
	"fmt"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"

	appLog "remindbot/internal/log"
)

// handleCalendar exports all registered events as an iCalendar feed so
// reminders can be subscribed to from a regular calendar client.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	events, err := s.store.ListEvents(r.Context())
	if err != nil {
		appLog.Error("calendar export: listing failed", err)
		http.Error(w, "failed to load events", http.StatusInternalServerError)
		return
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//remindbot//calendar//JA")

	now := time.Now()
	for _, ev := range events {
		e := cal.AddEvent(fmt.Sprintf("event-%d@remindbot", ev.ID))
		e.SetDtStampTime(now)
		e.SetStartAt(ev.Date)
		e.SetEndAt(ev.Date.Add(time.Hour))
		e.SetSummary(ev.Title)
		if ev.Content != "" {
			e.SetDescription(ev.Content)
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(cal.Serialize()))
}
