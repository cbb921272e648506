// Package mongo backs the read-only catalog (showtimes, seats) and the
// gateway-callback audit trail.
package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
	"github.com/DucAnhIT03/movie-serverside/internal/observability"
)

type CatalogRepository struct {
	showtimes *mongo.Collection
	seats     *mongo.Collection
	logger    observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		showtimes: db.Collection("showtimes"),
		seats:     db.Collection("seats"),
		logger:    logger,
	}
}

type ShowtimeDoc struct {
	ID        string    `bson:"_id"`
	MovieID   string    `bson:"movie_id"`
	MovieType string    `bson:"movie_type"`
	ScreenID  string    `bson:"screen_id"`
	TheaterID string    `bson:"theater_id"`
	StartsAt  time.Time `bson:"starts_at"`
	EndsAt    time.Time `bson:"ends_at"`
}

type SeatDoc struct {
	ID            string `bson:"_id"`
	ScreenID      string `bson:"screen_id"`
	Row           string `bson:"row"`
	Number        int    `bson:"number"`
	SeatType      string `bson:"seat_type"`
	OverrideCents int64  `bson:"override_cents,omitempty"`
}

// GetShowtime implements domain.CatalogProvider.
func (c *CatalogRepository) GetShowtime(ctx context.Context, id uuid.UUID) (*domain.Showtime, error) {
	var doc ShowtimeDoc
	err := c.showtimes.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrShowtimeNotFound
	}
	if err != nil {
		return nil, err
	}
	return docToShowtime(doc)
}

// GetSeats returns the seats it finds; missing IDs are simply absent from the
// result and the caller diffs.
func (c *CatalogRepository) GetSeats(ctx context.Context, ids []uuid.UUID) ([]domain.Seat, error) {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	cur, err := c.seats.Find(ctx, bson.M{"_id": bson.M{"$in": strIDs}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var seats []domain.Seat
	for cur.Next(ctx) {
		var doc SeatDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		seat, err := docToSeat(doc)
		if err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, cur.Err()
}

func (c *CatalogRepository) UpsertShowtime(ctx context.Context, st domain.Showtime) error {
	doc := ShowtimeDoc{
		ID:        st.ID.String(),
		MovieID:   st.MovieID.String(),
		MovieType: st.MovieType,
		ScreenID:  st.ScreenID.String(),
		TheaterID: st.TheaterID.String(),
		StartsAt:  st.StartsAt,
		EndsAt:    st.EndsAt,
	}
	_, err := c.showtimes.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, replaceUpsert())
	return err
}

func replaceUpsert() *options.ReplaceOptions {
	return options.Replace().SetUpsert(true)
}

func (c *CatalogRepository) UpsertSeat(ctx context.Context, s domain.Seat) error {
	doc := SeatDoc{
		ID:            s.ID.String(),
		ScreenID:      s.ScreenID.String(),
		Row:           s.Row,
		Number:        s.Number,
		SeatType:      string(s.Type),
		OverrideCents: s.PriceOverrideCents,
	}
	_, err := c.seats.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, replaceUpsert())
	return err
}

func docToShowtime(doc ShowtimeDoc) (*domain.Showtime, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, errors.Wrap(err, "showtime id")
	}
	movieID, err := uuid.Parse(doc.MovieID)
	if err != nil {
		return nil, errors.Wrap(err, "movie id")
	}
	screenID, err := uuid.Parse(doc.ScreenID)
	if err != nil {
		return nil, errors.Wrap(err, "screen id")
	}
	// A garbled theater id must fail loudly; uuid.Nil here would silently
	// price against theater-agnostic rate rules.
	theaterID, err := uuid.Parse(doc.TheaterID)
	if err != nil {
		return nil, errors.Wrap(err, "theater id")
	}
	return &domain.Showtime{
		ID:        id,
		MovieID:   movieID,
		MovieType: doc.MovieType,
		ScreenID:  screenID,
		TheaterID: theaterID,
		StartsAt:  doc.StartsAt,
		EndsAt:    doc.EndsAt,
	}, nil
}

func docToSeat(doc SeatDoc) (domain.Seat, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return domain.Seat{}, errors.Wrap(err, "seat id")
	}
	screenID, err := uuid.Parse(doc.ScreenID)
	if err != nil {
		return domain.Seat{}, errors.Wrap(err, "seat screen id")
	}
	return domain.Seat{
		ID:                 id,
		ScreenID:           screenID,
		Row:                doc.Row,
		Number:             doc.Number,
		Type:               domain.SeatType(doc.SeatType),
		PriceOverrideCents: doc.OverrideCents,
	}, nil
}
