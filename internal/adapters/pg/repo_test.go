package pg_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/DucAnhIT03/movie-serverside/internal/adapters/pg"
	"github.com/DucAnhIT03/movie-serverside/internal/domain"
	"github.com/DucAnhIT03/movie-serverside/internal/rate"
)

func setupRepo(t *testing.T) *pg.Repository {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "ticketing",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := "postgresql://test:test@" + host + ":" + port.Port() + "/ticketing?sslmode=disable"

	var pool *pgxpool.Pool
	require.Eventually(t, func() bool {
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			return false
		}
		return pool.Ping(ctx) == nil
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(pool.Close)

	repo := pg.NewRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func insertBooking(t *testing.T, repo *pg.Repository, showtimeID uuid.UUID, seatIDs []uuid.UUID) domain.Booking {
	t.Helper()
	b := domain.NewBooking(uuid.New(), showtimeID, len(seatIDs), int64(len(seatIDs))*10000, time.Now().UTC())
	err := repo.WithTx(context.Background(), func(tx pgx.Tx) error {
		if err := repo.InsertBooking(context.Background(), tx, b); err != nil {
			return err
		}
		return repo.InsertSeatAssignments(context.Background(), tx, b.ID, showtimeID, seatIDs)
	})
	require.NoError(t, err)
	return b
}

func TestSeatAssignments_ActiveConflict(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	showtimeID := uuid.New()
	seatA, seatB, seatC := uuid.New(), uuid.New(), uuid.New()
	insertBooking(t, repo, showtimeID, []uuid.UUID{seatA, seatB})

	// Overlapping claim names exactly the contested seat.
	b2 := domain.NewBooking(uuid.New(), showtimeID, 2, 20000, time.Now().UTC())
	err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := repo.InsertBooking(ctx, tx, b2); err != nil {
			return err
		}
		return repo.InsertSeatAssignments(ctx, tx, b2.ID, showtimeID, []uuid.UUID{seatB, seatC})
	})
	var conflict *domain.SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []uuid.UUID{seatB}, conflict.SeatIDs)

	// The failed transaction rolled back completely.
	_, err = repo.GetBooking(ctx, b2.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSeatAssignments_ReleaseAndReactivate(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	showtimeID := uuid.New()
	seat := uuid.New()
	b1 := insertBooking(t, repo, showtimeID, []uuid.UUID{seat})

	require.NoError(t, repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.ReleaseSeatAssignments(ctx, tx, b1.ID)
	}))

	sas, err := repo.SeatAssignments(ctx, b1.ID)
	require.NoError(t, err)
	require.Len(t, sas, 1)
	assert.Equal(t, domain.AssignmentReleased, sas[0].Status)
	assert.Equal(t, seat, sas[0].SeatID)

	// Released seat is claimable by another booking.
	b2 := insertBooking(t, repo, showtimeID, []uuid.UUID{seat})

	// Re-arming the first booking's hold must now fail, naming the seat.
	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.ReactivateSeatAssignments(ctx, tx, b1.ID)
	})
	var conflict *domain.SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []uuid.UUID{seat}, conflict.SeatIDs)

	// After the second booking releases, re-arming succeeds.
	require.NoError(t, repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.ReleaseSeatAssignments(ctx, tx, b2.ID)
	}))
	require.NoError(t, repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.ReactivateSeatAssignments(ctx, tx, b1.ID)
	}))

	sas, err = repo.SeatAssignments(ctx, b1.ID)
	require.NoError(t, err)
	require.Len(t, sas, 1)
	assert.Equal(t, domain.AssignmentActive, sas[0].Status)
}

func TestSeatAssignments_ConcurrentClaims(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	showtimeID := uuid.New()
	seat := uuid.New()

	claim := func() error {
		b := domain.NewBooking(uuid.New(), showtimeID, 1, 10000, time.Now().UTC())
		return repo.WithTx(ctx, func(tx pgx.Tx) error {
			if err := repo.InsertBooking(ctx, tx, b); err != nil {
				return err
			}
			return repo.InsertSeatAssignments(ctx, tx, b.ID, showtimeID, []uuid.UUID{seat})
		})
	}

	var g errgroup.Group
	results := make([]error, 4)
	for i := range results {
		i := i
		g.Go(func() error {
			results[i] = claim()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var won int
	for _, err := range results {
		if err == nil {
			won++
			continue
		}
		var conflict *domain.SeatConflictError
		ok := errors.As(err, &conflict) || errors.Is(err, domain.ErrSerializationFailure)
		assert.True(t, ok, "unexpected error: %v", err)
	}
	assert.Equal(t, 1, won, "exactly one claim may win the seat")
}

func TestPayments_Lifecycle(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	b := insertBooking(t, repo, uuid.New(), []uuid.UUID{uuid.New()})
	p := domain.NewPayment(b.ID, "VNPAY", 10000, time.Now().UTC())

	require.NoError(t, repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.InsertPayment(ctx, tx, p)
	}))

	when := time.Now().UTC()
	require.NoError(t, repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.UpdatePaymentStatus(ctx, tx, p.ID, domain.PaymentCompleted, "VNP42", &when)
	}))

	got, err := repo.GetPaymentByTransactionID(ctx, "VNP42")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, domain.PaymentCompleted, got.Status)
	require.NotNil(t, got.PaymentTime)

	// Terminal rows are not touched by the blanket cancel.
	require.NoError(t, repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.CancelNonTerminalPayments(ctx, tx, b.ID)
	}))
	got, err = repo.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, got.Status)
}

func TestPayments_ExpiredPending(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	b := insertBooking(t, repo, uuid.New(), []uuid.UUID{uuid.New()})

	expired := domain.NewPayment(b.ID, "VIETQR", 10000, time.Now().UTC().Add(-time.Hour))
	past := time.Now().UTC().Add(-30 * time.Minute)
	expired.ExpiresAt = &past

	fresh := domain.NewPayment(b.ID, "VIETQR", 10000, time.Now().UTC())
	future := time.Now().UTC().Add(30 * time.Minute)
	fresh.ExpiresAt = &future

	require.NoError(t, repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := repo.InsertPayment(ctx, tx, expired); err != nil {
			return err
		}
		return repo.InsertPayment(ctx, tx, fresh)
	}))

	got, err := repo.ExpiredPendingPayments(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, expired.ID, got[0].ID)
}

func TestRateRules_TheaterSpecificFirst(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	theaterID := uuid.New()
	require.NoError(t, repo.InsertRateRule(ctx, rate.Rule{
		SeatType: domain.SeatVIP, MovieType: "2D", DayType: rate.DayWeekday,
		StartMinute: 0, EndMinute: 1440, PriceCents: 10000,
	}))
	require.NoError(t, repo.InsertRateRule(ctx, rate.Rule{
		SeatType: domain.SeatVIP, MovieType: "2D", TheaterID: &theaterID,
		DayType: rate.DayWeekday, StartMinute: 0, EndMinute: 1440, PriceCents: 15000,
	}))

	rules, err := repo.RulesFor(ctx, domain.SeatVIP, "2D", theaterID, rate.DayWeekday)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.NotNil(t, rules[0].TheaterID)
	assert.Equal(t, int64(15000), rules[0].PriceCents)

	rules, err = repo.RulesFor(ctx, domain.SeatVIP, "2D", uuid.New(), rate.DayWeekday)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Nil(t, rules[0].TheaterID)
}

func TestOutbox_DrainCycle(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	rec := pg.OutboxRecord{
		ID:        uuid.New(),
		EventType: "booking.created",
		Payload:   []byte(`{"booking_id":"x"}`),
		DedupeKey: "booking.created:x",
	}
	require.NoError(t, repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.InsertOutbox(ctx, tx, rec)
	}))

	require.NoError(t, repo.WithTx(ctx, func(tx pgx.Tx) error {
		records, err := repo.GetUnpublishedOutbox(ctx, tx, 10)
		if err != nil {
			return err
		}
		require.Len(t, records, 1)
		assert.Equal(t, rec.EventType, records[0].EventType)
		return repo.MarkPublished(ctx, tx, records[0].ID, time.Now().UTC())
	}))

	require.NoError(t, repo.WithTx(ctx, func(tx pgx.Tx) error {
		records, err := repo.GetUnpublishedOutbox(ctx, tx, 10)
		if err != nil {
			return err
		}
		assert.Empty(t, records)
		return nil
	}))
}

func TestUsers_Roles(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	admin := domain.User{ID: uuid.New(), Email: "admin@example.com", Role: domain.RoleAdmin}
	blocked := domain.User{ID: uuid.New(), Email: "blocked@example.com", Role: domain.RoleAdmin, Blocked: true}
	require.NoError(t, repo.UpsertUser(ctx, admin))
	require.NoError(t, repo.UpsertUser(ctx, blocked))

	got, err := repo.GetUser(ctx, blocked.ID)
	require.NoError(t, err)
	assert.True(t, got.Blocked)

	_, err = repo.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ok, err := repo.HasRole(ctx, admin.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasRole(ctx, blocked.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown user is not an error, just no role.
	ok, err = repo.HasRole(ctx, uuid.New(), domain.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)
}
