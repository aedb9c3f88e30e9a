package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFilter is returned when a filter name is not recognised.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter is the single active article filter of the feed list.
type Filter int

const (
	FilterNone Filter = iota
	FilterToday
	FilterWeekend
	FilterFavorite
	FilterUnread
)

var filterNames = [...]string{
	FilterNone:     "none",
	FilterToday:    "today",
	FilterWeekend:  "weekend",
	FilterFavorite: "favorite",
	FilterUnread:   "unread",
}

func (f Filter) String() string {
	if f < 0 || int(f) >= len(filterNames) {
		return fmt.Sprintf("Filter(%d)", int(f))
	}
	return filterNames[f]
}

// ParseFilter maps a query value to a Filter. The empty string is FilterNone.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return FilterNone, nil
	}
	for i, name := range filterNames {
		if name == s {
			return Filter(i), nil
		}
	}
	return FilterNone, fmt.Errorf("%w: %q", ErrInvalidFilter, s)
}

// Window returns the publication window for time based filters.
// Today spans local midnight to the next midnight. Weekend spans the most
// recent Saturday 00:00 to the following Monday 00:00.
func (f Filter) Window(now time.Time) (start, end time.Time, ok bool) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch f {
	case FilterToday:
		return midnight, midnight.AddDate(0, 0, 1), true
	case FilterWeekend:
		back := (int(midnight.Weekday()) - int(time.Saturday) + 7) % 7
		sat := midnight.AddDate(0, 0, -back)
		return sat, sat.AddDate(0, 0, 2), true
	}
	return time.Time{}, time.Time{}, false
}
