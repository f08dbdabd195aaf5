// Package store persists events and their mention associations in MySQL.
// Dates are stored in the codec's canonical string form, so ordering by
// the date column is chronological.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"remindbot/internal/clock"
	appLog "remindbot/internal/log"
	"remindbot/internal/model"
)

// ErrNotFound is returned when an event id does not exist.
var ErrNotFound = errors.New("event not found")

// upsertChunkSize bounds the number of rows per snapshot upsert statement.
const upsertChunkSize = 20

// Store is the sqlx-backed event store.
type Store struct {
	db    *sqlx.DB
	codec *clock.Codec
}

// New returns a Store using db and rendering dates with codec.
func New(db *sqlx.DB, codec *clock.Codec) *Store {
	return &Store{db: db, codec: codec}
}

type eventRow struct {
	ID         int64  `db:"id"`
	Title      string `db:"title"`
	Content    string `db:"content"`
	Date       string `db:"date"`
	NotifyType string `db:"notify_type"`
	ChannelID  string `db:"channel_id"`
}

func (s *Store) rowToEvent(row eventRow) (model.Event, error) {
	date, err := s.codec.ParseCanonical(row.Date)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %d has malformed date %q: %w", row.ID, row.Date, err)
	}
	return model.Event{
		ID:        row.ID,
		Title:     row.Title,
		Content:   row.Content,
		Date:      date,
		Policy:    model.ParseNotifyPolicy(row.NotifyType),
		ChannelID: row.ChannelID,
	}, nil
}

// ListEvents returns all events ascending by date. Rows whose stored
// date no longer parses are logged and skipped rather than failing the
// whole scan.
func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, title, content, date, notify_type, channel_id FROM events ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]model.Event, 0, len(rows))
	for _, row := range rows {
		ev, convErr := s.rowToEvent(row)
		if convErr != nil {
			appLog.Error("skipping malformed event row", convErr, "id", row.ID)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// MentionsForEvent returns the mention sets associated with an event.
func (s *Store) MentionsForEvent(ctx context.Context, eventID int64) (model.Mentions, error) {
	var m model.Mentions
	err := s.db.SelectContext(ctx, &m.UserIDs,
		`SELECT user_id FROM mention_users WHERE event_id = ? ORDER BY user_id`, eventID)
	if err != nil {
		return model.Mentions{}, fmt.Errorf("mention users for event %d: %w", eventID, err)
	}
	err = s.db.SelectContext(ctx, &m.RoleIDs,
		`SELECT role_id FROM mention_roles WHERE event_id = ? ORDER BY role_id`, eventID)
	if err != nil {
		return model.Mentions{}, fmt.Errorf("mention roles for event %d: %w", eventID, err)
	}
	return m, nil
}

// CreateEvent inserts the event and its mention rows in one transaction
// and returns the assigned id.
func (s *Store) CreateEvent(ctx context.Context, ev model.Event, userIDs, roleIDs []string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (title, content, date, notify_type, channel_id) VALUES (?, ?, ?, ?, ?)`,
		ev.Title, ev.Content, s.codec.Format(ev.Date), string(ev.Policy), ev.ChannelID)
	if err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}

	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mention_users (event_id, user_id) VALUES (?, ?)`, id, userID); err != nil {
			return 0, fmt.Errorf("create event mention user: %w", err)
		}
	}
	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mention_roles (event_id, role_id) VALUES (?, ?)`, id, roleID); err != nil {
			return 0, fmt.Errorf("create event mention role: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	return id, nil
}

// DeleteEvent removes the event and its mention rows in one transaction.
// It returns the deleted event, or ErrNotFound if the id is absent.
func (s *Store) DeleteEvent(ctx context.Context, id int64) (model.Event, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Event{}, fmt.Errorf("delete event: %w", err)
	}
	defer tx.Rollback()

	var row eventRow
	err = tx.GetContext(ctx, &row,
		`SELECT id, title, content, date, notify_type, channel_id FROM events WHERE id = ? FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, ErrNotFound
		}
		return model.Event{}, fmt.Errorf("delete event: %w", err)
	}

	for _, q := range []string{
		`DELETE FROM mention_users WHERE event_id = ?`,
		`DELETE FROM mention_roles WHERE event_id = ?`,
		`DELETE FROM events WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return model.Event{}, fmt.Errorf("delete event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Event{}, fmt.Errorf("delete event: %w", err)
	}

	ev, convErr := s.rowToEvent(row)
	if convErr != nil {
		// The row is gone either way; report the event with a zero date.
		appLog.Error("deleted event had malformed date", convErr, "id", row.ID)
		ev = model.Event{ID: row.ID, Title: row.Title, ChannelID: row.ChannelID}
	}
	return ev, nil
}

// ExistsByID reports whether an event with the given id exists.
func (s *Store) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM events WHERE id = ? LIMIT 1`, id)
}

// ExistsByTitle reports whether an event with the exact title exists.
// Titles are free text, so the ingester relies on this check rather than
// a storage-level uniqueness constraint.
func (s *Store) ExistsByTitle(ctx context.Context, title string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM events WHERE title = ? LIMIT 1`, title)
}

// UserExists reports whether a guild member snapshot row exists.
func (s *Store) UserExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM users WHERE id = ? LIMIT 1`, id)
}

// RoleExists reports whether a guild role snapshot row exists.
func (s *Store) RoleExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM roles WHERE id = ? LIMIT 1`, id)
}

// ChannelExists reports whether a guild channel snapshot row exists.
func (s *Store) ChannelExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM channels WHERE id = ? LIMIT 1`, id)
}

func (s *Store) exists(ctx context.Context, query string, arg any) (bool, error) {
	var one int
	err := s.db.GetContext(ctx, &one, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists query: %w", err)
	}
	return true, nil
}
