package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseArticleReadMode(t *testing.T) {
	t.Parallel()

	for _, m := range ReadModes() {
		got, err := ParseArticleReadMode(string(m))
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
	for _, bad := range []string{"", "Optimized", "melt", "raw", "original "} {
		_, err := ParseArticleReadMode(bad)
		require.Error(t, err, bad)
		require.True(t, errors.Is(err, ErrInvalidReadMode))
	}
	require.Len(t, ReadModes(), 3)
}

func TestParseFilter(t *testing.T) {
	t.Parallel()

	for _, f := range []Filter{FilterNone, FilterToday, FilterWeekend, FilterFavorite, FilterUnread} {
		got, err := ParseFilter(f.String())
		require.NoError(t, err)
		require.Equal(t, f, got)
	}
	got, err := ParseFilter("")
	require.NoError(t, err)
	require.Equal(t, FilterNone, got)

	_, err = ParseFilter("yesterday")
	require.ErrorIs(t, err, ErrInvalidFilter)
	require.Equal(t, "Filter(42)", Filter(42).String())
}

func TestFilterWindow(t *testing.T) {
	t.Parallel()

	loc := time.UTC
	wed := time.Date(2026, 10, 14, 15, 30, 0, 0, loc)

	start, end, ok := FilterToday.Window(wed)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, loc), start)
	require.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, loc), end)

	start, end, ok = FilterWeekend.Window(wed)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 10, 10, 0, 0, 0, 0, loc), start)
	require.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, loc), end)

	sun := time.Date(2026, 10, 18, 9, 0, 0, 0, loc)
	start, _, ok = FilterWeekend.Window(sun)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, loc), start)

	sat := time.Date(2026, 10, 17, 23, 0, 0, 0, loc)
	start, _, _ = FilterWeekend.Window(sat)
	require.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, loc), start)

	for _, f := range []Filter{FilterNone, FilterFavorite, FilterUnread} {
		_, _, ok := f.Window(wed)
		require.False(t, ok, f.String())
	}
}
