// Package rate resolves unit seat prices from the rate-rule table. The lookup
// is a pure function over the candidate rows; persistence is behind the
// RuleSource interface.
package rate

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
)

type DayType string

const (
	DayWeekday DayType = "WEEKDAY"
	DayWeekend DayType = "WEEKEND"
)

// Rule is one row of the rate table. TheaterID nil means the rule applies to
// every theater; a theater-specific rule beats a theater-agnostic one.
// The [StartMinute, EndMinute) window is in minutes of day, local to the
// showtime's clock.
type Rule struct {
	ID          uuid.UUID
	SeatType    domain.SeatType
	MovieType   string
	TheaterID   *uuid.UUID
	DayType     DayType
	StartMinute int
	EndMinute   int
	PriceCents  int64
}

// RuleSource returns the candidate rules for a (seat type, movie type, day
// type) triple, restricted to the given theater or theater-agnostic rows,
// theater-specific rows first.
type RuleSource interface {
	RulesFor(ctx context.Context, seatType domain.SeatType, movieType string, theaterID uuid.UUID, dayType DayType) ([]Rule, error)
}

type Table struct {
	source RuleSource
}

func NewTable(source RuleSource) *Table {
	return &Table{source: source}
}

// PriceFor resolves the unit price for a seat of the given type at the given
// showtime instant. It returns domain.ErrRateNotFound when no rule matches;
// callers must treat that as a hard error and never default to zero.
func (t *Table) PriceFor(ctx context.Context, seatType domain.SeatType, movieType string, theaterID uuid.UUID, when time.Time) (int64, error) {
	rules, err := t.source.RulesFor(ctx, seatType, movieType, theaterID, DayTypeOf(when))
	if err != nil {
		return 0, errors.Wrap(err, "load rate rules")
	}
	if rule, ok := Match(rules, when); ok {
		return rule.PriceCents, nil
	}
	return 0, domain.ErrRateNotFound
}

// Match picks the first rule whose time window contains when. The slice is
// expected pre-ordered with theater-specific rules first, which makes the
// first hit the preferred one.
func Match(rules []Rule, when time.Time) (Rule, bool) {
	minute := MinuteOfDay(when)
	for _, r := range rules {
		if windowContains(r.StartMinute, r.EndMinute, minute) {
			return r, true
		}
	}
	return Rule{}, false
}

// DayTypeOf classifies Fri/Sat/Sun as weekend. That grouping is the pricing
// convention of the business, not the ISO calendar.
func DayTypeOf(when time.Time) DayType {
	switch when.Weekday() {
	case time.Friday, time.Saturday, time.Sunday:
		return DayWeekend
	}
	return DayWeekday
}

func MinuteOfDay(when time.Time) int {
	return when.Hour()*60 + when.Minute()
}

// windowContains checks the half-open window [start, end). Windows wrapping
// past midnight (start > end) cover the late-night slot.
func windowContains(start, end, minute int) bool {
	if start <= end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}
