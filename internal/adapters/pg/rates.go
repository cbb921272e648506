package pg

import (
	"context"

	"github.com/google/uuid"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
	"github.com/DucAnhIT03/movie-serverside/internal/rate"
)

// RulesFor implements rate.RuleSource. Theater-specific rows sort before
// theater-agnostic ones so the table's first window match is the preferred
// rule.
func (r *Repository) RulesFor(ctx context.Context, seatType domain.SeatType, movieType string, theaterID uuid.UUID, dayType rate.DayType) ([]rate.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, seat_type, movie_type, theater_id, day_type, start_minute, end_minute, price_cents
		FROM rate_rules
		WHERE seat_type = $1 AND movie_type = $2 AND day_type = $3
		  AND (theater_id = $4 OR theater_id IS NULL)
		ORDER BY theater_id IS NULL, start_minute
	`, seatType, movieType, dayType, theaterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []rate.Rule
	for rows.Next() {
		var rule rate.Rule
		if err := rows.Scan(&rule.ID, &rule.SeatType, &rule.MovieType, &rule.TheaterID,
			&rule.DayType, &rule.StartMinute, &rule.EndMinute, &rule.PriceCents); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// InsertRateRule seeds a rule; used by admin tooling and tests.
func (r *Repository) InsertRateRule(ctx context.Context, rule rate.Rule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rate_rules (id, seat_type, movie_type, theater_id, day_type, start_minute, end_minute, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rule.ID, rule.SeatType, rule.MovieType, rule.TheaterID, rule.DayType,
		rule.StartMinute, rule.EndMinute, rule.PriceCents)
	return err
}
