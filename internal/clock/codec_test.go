package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return loc
}

func TestCodecRoundTrip(t *testing.T) {
	loc := tokyo(t)
	codec := NewCodec(loc)

	instants := []time.Time{
		time.Date(2024, 6, 15, 10, 0, 0, 0, loc),
		time.Date(2024, 12, 31, 23, 59, 0, 0, loc),
		time.Date(2025, 1, 1, 0, 0, 0, 0, loc),
	}
	for _, want := range instants {
		got, err := codec.ParseCanonical(codec.Format(want))
		require.NoError(t, err)
		assert.True(t, got.Equal(want), "round trip of %v gave %v", want, got)
	}
}

func TestCodecFormat(t *testing.T) {
	loc := tokyo(t)
	codec := NewCodec(loc)

	// UTC input must render in the reference zone.
	utc := time.Date(2024, 6, 15, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-15T10:00", codec.Format(utc))
}

func TestCodecParseCanonical(t *testing.T) {
	loc := tokyo(t)
	codec := NewCodec(loc)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, loc)

	got, err := codec.Parse("2024-06-15T10:00", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 15, 10, 0, 0, 0, loc), got)
}

func TestCodecParseYearless(t *testing.T) {
	loc := tokyo(t)
	codec := NewCodec(loc)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, loc)

	t.Run("future this year", func(t *testing.T) {
		got, err := codec.Parse("06-15T10:00", now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 6, 15, 10, 0, 0, 0, loc), got)
	})

	t.Run("past this year rolls to next", func(t *testing.T) {
		got, err := codec.Parse("05-01T10:00", now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 5, 1, 10, 0, 0, 0, loc), got)
	})

	t.Run("today earlier rolls to next year", func(t *testing.T) {
		midday := time.Date(2024, 6, 1, 12, 0, 0, 0, loc)
		got, err := codec.Parse("06-01T10:00", midday)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, loc), got)
	})

	t.Run("feb 29 resolves to a leap year", func(t *testing.T) {
		from := time.Date(2023, 6, 1, 0, 0, 0, 0, loc)
		got, err := codec.Parse("02-29T09:00", from)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 2, 29, 9, 0, 0, 0, loc), got)
	})
}

func TestCodecParseInvalid(t *testing.T) {
	loc := tokyo(t)
	codec := NewCodec(loc)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, loc)

	for _, text := range []string{
		"",
		"tomorrow",
		"2024/06/15 10:00",
		"13-01T10:00",
		"06-32T10:00",
	} {
		_, err := codec.Parse(text, now)
		assert.ErrorIs(t, err, ErrInvalidFormat, "input %q", text)
	}
}
