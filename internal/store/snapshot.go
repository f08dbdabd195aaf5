package store

import (
	"context"
	"fmt"

	"remindbot/internal/model"
)

// Guild snapshot upserts. The Discord layer refreshes these tables at
// startup so mentionable resolution and the admin page can label IDs
// without extra API calls. Writes go out in bounded chunks and ignore
// rows that did not change.

type namedRow struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

// UpsertUsers writes guild member snapshot rows.
func (s *Store) UpsertUsers(ctx context.Context, users []model.User) error {
	rows := make([]namedRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, namedRow{ID: u.ID, Name: u.Name})
	}
	return s.upsertNamed(ctx, "users", rows)
}

// UpsertRoles writes guild role snapshot rows.
func (s *Store) UpsertRoles(ctx context.Context, roles []model.Role) error {
	rows := make([]namedRow, 0, len(roles))
	for _, r := range roles {
		rows = append(rows, namedRow{ID: r.ID, Name: r.Name})
	}
	return s.upsertNamed(ctx, "roles", rows)
}

// UpsertChannels writes guild channel snapshot rows.
func (s *Store) UpsertChannels(ctx context.Context, channels []model.Channel) error {
	rows := make([]namedRow, 0, len(channels))
	for _, c := range channels {
		rows = append(rows, namedRow{ID: c.ID, Name: c.Name})
	}
	return s.upsertNamed(ctx, "channels", rows)
}

func (s *Store) upsertNamed(ctx context.Context, table string, rows []namedRow) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (id, name) VALUES (:id, :name) ON DUPLICATE KEY UPDATE name = VALUES(name)`,
		table)

	for start := 0; start < len(rows); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if _, err := s.db.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return fmt.Errorf("upsert %s: %w", table, err)
		}
	}
	return nil
}
