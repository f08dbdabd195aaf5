package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/clock"
	"remindbot/internal/model"
)

func newComposer(t *testing.T) (*Composer, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return NewComposer(clock.NewCodec(loc)), loc
}

func TestMentionHeader(t *testing.T) {
	c, _ := newComposer(t)

	assert.Equal(t, "", c.MentionHeader(nil, nil))
	assert.Equal(t, "", c.MentionHeader([]string{}, []string{}))
	assert.Equal(t, "<@&r1> <@u1>\n", c.MentionHeader([]string{"r1"}, []string{"u1"}))
	assert.Equal(t, "<@&r1> <@&r2>\n", c.MentionHeader([]string{"r1", "r2"}, nil))
	assert.Equal(t, "<@u1>\n", c.MentionHeader(nil, []string{"u1"}))
}

func TestDueNotification(t *testing.T) {
	c, loc := newComposer(t)
	ev := model.Event{
		ID:    1,
		Title: "結合テスト",
		Date:  time.Date(2024, 6, 15, 10, 0, 0, 0, loc),
	}

	got := c.DueNotification(ev, model.Mentions{}, 10)
	assert.Equal(t, "結合テスト まであと 10 分です", got)

	got = c.DueNotification(ev, model.Mentions{RoleIDs: []string{"r1"}}, 5)
	assert.Equal(t, "<@&r1>\n結合テスト まであと 5 分です", got)
}

func TestEventListingSortsAscending(t *testing.T) {
	c, loc := newComposer(t)

	events := []model.Event{
		{ID: 2, Title: "later", Date: time.Date(2024, 7, 1, 12, 0, 0, 0, loc)},
		{ID: 1, Title: "sooner", Date: time.Date(2024, 6, 15, 10, 0, 0, 0, loc)},
	}
	mentions := map[int64]model.Mentions{
		1: {UserIDs: []string{"u1"}},
	}

	got := c.EventListing(events, mentions)
	assert.Equal(t,
		"<@u1>\n2024-06-15T10:00: sooner\n2024-07-01T12:00: later\n",
		got)
}

func TestEventListingEmpty(t *testing.T) {
	c, _ := newComposer(t)
	assert.Equal(t, "", c.EventListing(nil, nil))
}
