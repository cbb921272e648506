package rate_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
	"github.com/DucAnhIT03/movie-serverside/internal/rate"
)

type staticSource struct {
	rules []rate.Rule
}

func (s staticSource) RulesFor(_ context.Context, seatType domain.SeatType, movieType string, theaterID uuid.UUID, dayType rate.DayType) ([]rate.Rule, error) {
	var out []rate.Rule
	// Theater-specific first, matching the SQL ordering.
	for _, r := range s.rules {
		if r.SeatType == seatType && r.MovieType == movieType && r.DayType == dayType &&
			r.TheaterID != nil && *r.TheaterID == theaterID {
			out = append(out, r)
		}
	}
	for _, r := range s.rules {
		if r.SeatType == seatType && r.MovieType == movieType && r.DayType == dayType && r.TheaterID == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestDayTypeOf(t *testing.T) {
	// 2026-03-02 is a Monday.
	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, rate.DayWeekday, rate.DayTypeOf(monday))
	assert.Equal(t, rate.DayWeekday, rate.DayTypeOf(monday.AddDate(0, 0, 3))) // Thursday
	assert.Equal(t, rate.DayWeekend, rate.DayTypeOf(monday.AddDate(0, 0, 4))) // Friday
	assert.Equal(t, rate.DayWeekend, rate.DayTypeOf(monday.AddDate(0, 0, 5))) // Saturday
	assert.Equal(t, rate.DayWeekend, rate.DayTypeOf(monday.AddDate(0, 0, 6))) // Sunday
}

func TestPriceFor_PrefersTheaterSpecificRule(t *testing.T) {
	theaterID := uuid.New()
	src := staticSource{rules: []rate.Rule{
		{ID: uuid.New(), SeatType: domain.SeatVIP, MovieType: "2D", DayType: rate.DayWeekday,
			StartMinute: 0, EndMinute: 1440, PriceCents: 10000},
		{ID: uuid.New(), SeatType: domain.SeatVIP, MovieType: "2D", TheaterID: &theaterID,
			DayType: rate.DayWeekday, StartMinute: 0, EndMinute: 1440, PriceCents: 15000},
	}}
	table := rate.NewTable(src)

	monday := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	price, err := table.PriceFor(context.Background(), domain.SeatVIP, "2D", theaterID, monday)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), price)

	price, err = table.PriceFor(context.Background(), domain.SeatVIP, "2D", uuid.New(), monday)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), price)
}

func TestPriceFor_TimeWindows(t *testing.T) {
	src := staticSource{rules: []rate.Rule{
		{ID: uuid.New(), SeatType: domain.SeatStandard, MovieType: "2D", DayType: rate.DayWeekday,
			StartMinute: 10 * 60, EndMinute: 17 * 60, PriceCents: 8000},
		{ID: uuid.New(), SeatType: domain.SeatStandard, MovieType: "2D", DayType: rate.DayWeekday,
			StartMinute: 17 * 60, EndMinute: 23 * 60, PriceCents: 12000},
	}}
	table := rate.NewTable(src)
	theaterID := uuid.New()

	afternoon := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	price, err := table.PriceFor(context.Background(), domain.SeatStandard, "2D", theaterID, afternoon)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), price)

	// Window boundary is half-open: 17:00 belongs to the evening rule.
	evening := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	price, err = table.PriceFor(context.Background(), domain.SeatStandard, "2D", theaterID, evening)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), price)

	// No rule covers 23:30.
	lateNight := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	_, err = table.PriceFor(context.Background(), domain.SeatStandard, "2D", theaterID, lateNight)
	assert.ErrorIs(t, err, domain.ErrRateNotFound)
}

func TestPriceFor_MidnightWrapWindow(t *testing.T) {
	src := staticSource{rules: []rate.Rule{
		{ID: uuid.New(), SeatType: domain.SeatStandard, MovieType: "2D", DayType: rate.DayWeekend,
			StartMinute: 22 * 60, EndMinute: 2 * 60, PriceCents: 9000},
	}}
	table := rate.NewTable(src)

	// 2026-03-07 is a Saturday.
	night := time.Date(2026, 3, 7, 23, 0, 0, 0, time.UTC)
	price, err := table.PriceFor(context.Background(), domain.SeatStandard, "2D", uuid.New(), night)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), price)

	// 2026-03-08 01:00 is Sunday, still weekend, inside the wrapped window.
	afterMidnight := time.Date(2026, 3, 8, 1, 0, 0, 0, time.UTC)
	price, err = table.PriceFor(context.Background(), domain.SeatStandard, "2D", uuid.New(), afterMidnight)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), price)
}

func TestPriceFor_NoRulesIsHardError(t *testing.T) {
	table := rate.NewTable(staticSource{})
	_, err := table.PriceFor(context.Background(), domain.SeatSweetbox, "IMAX", uuid.New(),
		time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, domain.ErrRateNotFound)
}
