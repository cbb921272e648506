package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/DucAnhIT03/movie-serverside/internal/adapters/mongo"
	"github.com/DucAnhIT03/movie-serverside/internal/domain"
	"github.com/DucAnhIT03/movie-serverside/internal/observability"
)

func setupCatalog(t *testing.T) (*mongoadapter.CatalogRepository, *mongo.Database) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+host+":"+port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { client.Disconnect(ctx) })

	db := client.Database("ticketing")
	return mongoadapter.NewCatalogRepository(db, observability.NewLogger()), db
}

func TestCatalog_ShowtimeRoundTrip(t *testing.T) {
	catalog, _ := setupCatalog(t)
	ctx := context.Background()

	st := domain.Showtime{
		ID:        uuid.New(),
		MovieID:   uuid.New(),
		MovieType: "IMAX",
		ScreenID:  uuid.New(),
		TheaterID: uuid.New(),
		StartsAt:  time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC),
		EndsAt:    time.Date(2026, 9, 1, 21, 30, 0, 0, time.UTC),
	}
	require.NoError(t, catalog.UpsertShowtime(ctx, st))

	got, err := catalog.GetShowtime(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, st.MovieID, got.MovieID)
	assert.Equal(t, st.TheaterID, got.TheaterID)
	assert.Equal(t, st.ScreenID, got.ScreenID)
	assert.True(t, st.StartsAt.Equal(got.StartsAt))

	_, err = catalog.GetShowtime(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrShowtimeNotFound)
}

func TestCatalog_SeatsRoundTrip(t *testing.T) {
	catalog, _ := setupCatalog(t)
	ctx := context.Background()

	screenID := uuid.New()
	vip := domain.Seat{ID: uuid.New(), ScreenID: screenID, Row: "B", Number: 4,
		Type: domain.SeatVIP, PriceOverrideCents: 25000}
	std := domain.Seat{ID: uuid.New(), ScreenID: screenID, Row: "B", Number: 5,
		Type: domain.SeatStandard}
	require.NoError(t, catalog.UpsertSeat(ctx, vip))
	require.NoError(t, catalog.UpsertSeat(ctx, std))

	// Unknown IDs are absent from the result, not an error.
	seats, err := catalog.GetSeats(ctx, []uuid.UUID{vip.ID, std.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, seats, 2)

	byID := map[uuid.UUID]domain.Seat{seats[0].ID: seats[0], seats[1].ID: seats[1]}
	assert.Equal(t, int64(25000), byID[vip.ID].PriceOverrideCents)
	assert.Equal(t, domain.SeatStandard, byID[std.ID].Type)
}

func TestCatalog_MalformedShowtimeDocIsAnError(t *testing.T) {
	catalog, db := setupCatalog(t)
	ctx := context.Background()

	// A garbled theater_id must surface as an error, not price against
	// theater-agnostic rate rules via uuid.Nil.
	id := uuid.New()
	_, err := db.Collection("showtimes").InsertOne(ctx, bson.M{
		"_id":        id.String(),
		"movie_id":   uuid.New().String(),
		"movie_type": "2D",
		"screen_id":  uuid.New().String(),
		"theater_id": "not-a-uuid",
		"starts_at":  time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC),
		"ends_at":    time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = catalog.GetShowtime(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "theater id")

	badMovie := uuid.New()
	_, err = db.Collection("showtimes").InsertOne(ctx, bson.M{
		"_id":        badMovie.String(),
		"movie_id":   "garbage",
		"movie_type": "2D",
		"screen_id":  uuid.New().String(),
		"theater_id": uuid.New().String(),
		"starts_at":  time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC),
		"ends_at":    time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = catalog.GetShowtime(ctx, badMovie)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "movie id")
}
