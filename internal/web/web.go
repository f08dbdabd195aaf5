// Package web serves the admin page: an HTML form for adding and
// deleting events, plus health, metrics, and an iCalendar export.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"remindbot/internal/clock"
	"remindbot/internal/config"
	appLog "remindbot/internal/log"
	"remindbot/internal/model"
	"remindbot/internal/store"
)

//go:embed templates
var embeddedTemplates embed.FS

// EventStore is the slice of the store the admin page needs.
type EventStore interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
	CreateEvent(ctx context.Context, ev model.Event, userIDs, roleIDs []string) (int64, error)
	DeleteEvent(ctx context.Context, id int64) (model.Event, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

// Server provides the admin HTTP endpoints.
type Server struct {
	cfg   *config.Config
	store EventStore
	codec *clock.Codec
	mux   *http.ServeMux
	tmpl  *template.Template
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st EventStore, codec *clock.Codec) *Server {
	s := &Server{
		cfg:   cfg,
		store: st,
		codec: codec,
		mux:   http.NewServeMux(),
		tmpl:  template.Must(template.ParseFS(embeddedTemplates, "templates/index.html")),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Remindbot", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer starts an HTTP server bound to cfg.Listen. Shutdown on
// ctx cancellation is wired by the caller wrapping http.Server.
func StartServer(_ context.Context, cfg *config.Config, st EventStore, codec *clock.Codec) error {
	s := NewServer(cfg, st, codec)
	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	return http.ListenAndServe(cfg.Listen, s.Handler())
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/add_event", s.handleAddEvent)
	s.mux.HandleFunc("/delete_event", s.handleDeleteEvent)
	s.mux.HandleFunc("/calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventView is the template-facing shape of one event row.
type eventView struct {
	ID     int64
	Date   string
	Title  string
	Policy string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	events, err := s.store.ListEvents(r.Context())
	if err != nil {
		appLog.Error("admin index: listing failed", err)
		http.Error(w, "failed to load events", http.StatusInternalServerError)
		return
	}

	views := make([]eventView, 0, len(events))
	for _, ev := range events {
		views = append(views, eventView{
			ID:     ev.ID,
			Date:   s.codec.Format(ev.Date),
			Title:  ev.Title,
			Policy: string(ev.Policy),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, map[string]any{"Events": views}); err != nil {
		appLog.Error("admin index: template failed", err)
	}
}

// handleAddEvent accepts the add form (name + date + time fields) and
// redirects back to the index. Invalid input redirects without a write,
// mirroring the form-driven flow.
func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.PostFormValue("name")
	date := r.PostFormValue("date")
	timeOfDay := r.PostFormValue("time")

	if name != "" && date != "" && timeOfDay != "" {
		parsed, err := s.codec.Parse(date+"T"+timeOfDay, time.Now())
		if err != nil {
			appLog.Info("admin add rejected", "reason", "invalid date", "date", date, "time", timeOfDay)
		} else {
			_, err := s.store.CreateEvent(r.Context(), model.Event{
				Title:     name,
				Date:      parsed,
				Policy:    model.NotifyNormal,
				ChannelID: s.cfg.ChannelID,
			}, nil, nil)
			if err != nil {
				appLog.Error("admin add failed", err)
			}
		}
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// handleDeleteEvent accepts the per-row delete form.
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(r.PostFormValue("id"), 10, 64)
	if err == nil {
		ok, exErr := s.store.ExistsByID(r.Context(), id)
		if exErr != nil {
			appLog.Error("admin delete: existence check failed", exErr, "id", id)
		} else if ok {
			if _, derr := s.store.DeleteEvent(r.Context(), id); derr != nil && !errors.Is(derr, store.ErrNotFound) {
				appLog.Error("admin delete failed", derr, "id", id)
			}
		}
	}

	http.Redirect(w, r, "/", http.StatusFound)
}
