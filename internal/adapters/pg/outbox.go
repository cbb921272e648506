package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OutboxRecord is a notification event written in the same transaction as
// the state change it describes, picked up later by the outbox publisher.
type OutboxRecord struct {
	ID          uuid.UUID
	EventType   string
	Payload     []byte
	Status      string // NEW, PUBLISHED
	DedupeKey   string
	CreatedAt   time.Time
	PublishedAt *time.Time
}

func (r *Repository) InsertOutbox(ctx context.Context, tx pgx.Tx, record OutboxRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (id, event_type, payload_json, status, dedupe_key)
		VALUES ($1, $2, $3, 'NEW', $4)
	`, record.ID, record.EventType, record.Payload, record.DedupeKey)
	return err
}

// GetUnpublishedOutbox locks a batch of NEW records for the caller's
// transaction. SKIP LOCKED keeps concurrent publishers off each other's
// batches.
func (r *Repository) GetUnpublishedOutbox(ctx context.Context, tx pgx.Tx, limit int) ([]OutboxRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_type, payload_json, status, dedupe_key, created_at, published_at
		FROM outbox WHERE status = 'NEW' ORDER BY created_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []OutboxRecord
	for rows.Next() {
		var rec OutboxRecord
		if err := rows.Scan(&rec.ID, &rec.EventType, &rec.Payload, &rec.Status,
			&rec.DedupeKey, &rec.CreatedAt, &rec.PublishedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, publishedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE outbox SET status = 'PUBLISHED', published_at = $2 WHERE id = $1
	`, id, publishedAt)
	return err
}
