package pg

import "context"

// Schema holds the DDL for every table the booking core owns. Applied with
// EnsureSchema on startup and by the test harness.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	role TEXT NOT NULL DEFAULT 'customer',
	blocked BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	showtime_id UUID NOT NULL,
	seat_count INT NOT NULL,
	total_cents BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS bookings_showtime_idx ON bookings (showtime_id);
CREATE INDEX IF NOT EXISTS bookings_user_idx ON bookings (user_id);

CREATE TABLE IF NOT EXISTS seat_assignments (
	booking_id UUID NOT NULL REFERENCES bookings (id) ON DELETE CASCADE,
	showtime_id UUID NOT NULL,
	seat_id UUID NOT NULL,
	status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'RELEASED')),
	PRIMARY KEY (booking_id, seat_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS seat_assignments_active_uniq
	ON seat_assignments (showtime_id, seat_id) WHERE status = 'ACTIVE';

CREATE TABLE IF NOT EXISTS payments (
	id UUID PRIMARY KEY,
	booking_id UUID NOT NULL REFERENCES bookings (id) ON DELETE CASCADE,
	method TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('PENDING', 'COMPLETED', 'FAILED', 'CANCELLED')),
	amount_cents BIGINT NOT NULL,
	transaction_id TEXT NOT NULL DEFAULT '',
	payment_time TIMESTAMPTZ,
	payment_url TEXT NOT NULL DEFAULT '',
	qr_code TEXT NOT NULL DEFAULT '',
	expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS payments_booking_idx ON payments (booking_id);
CREATE INDEX IF NOT EXISTS payments_txn_idx ON payments (transaction_id) WHERE transaction_id <> '';

CREATE TABLE IF NOT EXISTS rate_rules (
	id UUID PRIMARY KEY,
	seat_type TEXT NOT NULL,
	movie_type TEXT NOT NULL,
	theater_id UUID,
	day_type TEXT NOT NULL CHECK (day_type IN ('WEEKDAY', 'WEEKEND')),
	start_minute INT NOT NULL,
	end_minute INT NOT NULL,
	price_cents BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS rate_rules_lookup_idx ON rate_rules (seat_type, movie_type, day_type);

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	event_type TEXT NOT NULL,
	payload_json JSONB NOT NULL,
	status TEXT NOT NULL DEFAULT 'NEW' CHECK (status IN ('NEW', 'PUBLISHED')),
	dedupe_key TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS outbox_new_idx ON outbox (created_at) WHERE status = 'NEW';
`

func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}
