package store

import (
	"context"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/clock"
	"remindbot/internal/model"
)

// Integration tests run against a real MySQL with the migrations from
// migrations/ applied. Set REMINDBOT_TEST_DSN to enable, e.g.
//
//	REMINDBOT_TEST_DSN="root:@tcp(127.0.0.1:3306)/remindbot_test?charset=utf8mb4"

func newTestStore(t *testing.T) (*Store, *time.Location) {
	t.Helper()
	dsn := os.Getenv("REMINDBOT_TEST_DSN")
	if dsn == "" {
		t.Skip("REMINDBOT_TEST_DSN not set")
	}

	db, err := sqlx.Connect("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, table := range []string{"mention_users", "mention_roles", "events", "users", "roles", "channels"} {
		_, err := db.Exec("DELETE FROM " + table)
		require.NoError(t, err)
	}

	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return New(db, clock.NewCodec(loc)), loc
}

func TestEventLifecycle(t *testing.T) {
	s, loc := newTestStore(t)
	ctx := context.Background()

	date := time.Date(2030, 6, 15, 10, 0, 0, 0, loc)
	id, err := s.CreateEvent(ctx, model.Event{
		Title:     "打ち合わせ",
		Content:   "resort planning",
		Date:      date,
		Policy:    model.NotifyNormal,
		ChannelID: "chan-1",
	}, []string{"u1"}, []string{"r1", "r2"})
	require.NoError(t, err)
	require.NotZero(t, id)

	ok, err := s.ExistsByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ExistsByTitle(ctx, "打ち合わせ")
	require.NoError(t, err)
	assert.True(t, ok)

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "打ち合わせ", events[0].Title)
	assert.True(t, events[0].Date.Equal(date))
	assert.Equal(t, model.NotifyNormal, events[0].Policy)

	m, err := s.MentionsForEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, m.UserIDs)
	assert.Equal(t, []string{"r1", "r2"}, m.RoleIDs)

	deleted, err := s.DeleteEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "打ち合わせ", deleted.Title)

	// Mention rows must be gone with their event.
	m, err = s.MentionsForEvent(ctx, id)
	require.NoError(t, err)
	assert.True(t, m.Empty())

	_, err = s.DeleteEvent(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListEventsOrder(t *testing.T) {
	s, loc := newTestStore(t)
	ctx := context.Background()

	later := time.Date(2030, 7, 1, 9, 0, 0, 0, loc)
	sooner := time.Date(2030, 6, 1, 9, 0, 0, 0, loc)

	_, err := s.CreateEvent(ctx, model.Event{Title: "later", Date: later, Policy: model.NotifyNormal, ChannelID: "c"}, nil, nil)
	require.NoError(t, err)
	_, err = s.CreateEvent(ctx, model.Event{Title: "sooner", Date: sooner, Policy: model.NotifyOnce, ChannelID: "c"}, nil, nil)
	require.NoError(t, err)

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "sooner", events[0].Title)
	assert.Equal(t, "later", events[1].Title)
}

func TestSnapshotUpserts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUsers(ctx, []model.User{{ID: "u1", Name: "alice"}}))
	require.NoError(t, s.UpsertRoles(ctx, []model.Role{{ID: "r1", Name: "staff"}}))
	require.NoError(t, s.UpsertChannels(ctx, []model.Channel{{ID: "c1", Name: "general"}}))

	// Re-upserting with a new name must not fail and must win.
	require.NoError(t, s.UpsertUsers(ctx, []model.User{{ID: "u1", Name: "alice2"}}))

	ok, err := s.UserExists(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RoleExists(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ChannelExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}
