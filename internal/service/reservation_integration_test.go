package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/clinic-slot-reservation/internal/model"
	"github.com/iliyamo/clinic-slot-reservation/internal/repository"
)

// The tests in this file exercise the reservation engine against a real
// MySQL instance because the guarantees under test (row locking,
// serializable transactions, rollback on conflict) live in the store.
// They are skipped unless RESERVATION_TEST_DSN points at a database
// with schema.sql applied, e.g.:
//
//	RESERVATION_TEST_DSN='root@tcp(localhost:3306)/clinic_test?parseTime=true&loc=UTC'

type testEnv struct {
	db           *sql.DB
	slots        *repository.SlotRepo
	reservations *repository.ReservationRepo
	manager      *ReservationManager
	sweeper      *Sweeper
	providerID   uint64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := os.Getenv("RESERVATION_TEST_DSN")
	if dsn == "" {
		t.Skip("RESERVATION_TEST_DSN not set; skipping integration test")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	t.Cleanup(func() { db.Close() })

	slots := repository.NewSlotRepo(db)
	reservations := repository.NewReservationRepo(db)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	env := &testEnv{
		db:           db,
		slots:        slots,
		reservations: reservations,
		manager:      NewReservationManager(db, slots, reservations, logger),
		sweeper:      NewSweeper(db, slots, reservations, logger),
	}

	// Each test gets its own provider so slot uniqueness never collides
	// across tests or reruns.
	res, err := db.Exec(`INSERT INTO providers (name, specialty) VALUES (?, ?)`,
		fmt.Sprintf("test provider %d", time.Now().UnixNano()), "testing")
	require.NoError(t, err)
	pid, err := res.LastInsertId()
	require.NoError(t, err)
	env.providerID = uint64(pid)

	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE r FROM reservations r JOIN slots s ON s.id = r.slot_id WHERE s.provider_id = ?`, env.providerID)
		_, _ = db.Exec(`DELETE FROM slots WHERE provider_id = ?`, env.providerID)
		_, _ = db.Exec(`DELETE FROM providers WHERE id = ?`, env.providerID)
	})
	return env
}

// makeSlot inserts a slot for the env's provider.  daysAhead may be
// negative to create a slot in the past.
func (e *testEnv) makeSlot(t *testing.T, daysAhead int, at string) *model.Slot {
	t.Helper()
	s := &model.Slot{
		ProviderID:  e.providerID,
		SlotDate:    time.Now().UTC().AddDate(0, 0, daysAhead).Format("2006-01-02"),
		StartTime:   at,
		DurationMin: 30,
	}
	require.NoError(t, e.slots.Create(context.Background(), s))
	return s
}

func (e *testEnv) slotAvailable(t *testing.T, id uint64) bool {
	t.Helper()
	s, err := e.slots.GetByID(context.Background(), id)
	require.NoError(t, err)
	return s.Available
}

func TestCreateConfirmsAndTakesSlot(t *testing.T) {
	env := newTestEnv(t)
	slot := env.makeSlot(t, 1, "09:00:00")

	res, err := env.manager.Create(context.Background(), slot.ID, Requester{Name: "Alice", Contact: "alice@example.com"})
	require.NoError(t, err)
	require.Equal(t, model.StatusConfirmed, res.Status)
	require.NotNil(t, res.ConfirmedAt)
	require.False(t, env.slotAvailable(t, slot.ID))
}

func TestCreateUnknownSlot(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.manager.Create(context.Background(), 1<<62, Requester{Name: "Alice", Contact: "a@example.com"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePastSlot(t *testing.T) {
	env := newTestEnv(t)
	slot := env.makeSlot(t, -1, "09:00:00")

	_, err := env.manager.Create(context.Background(), slot.ID, Requester{Name: "Alice", Contact: "a@example.com"})
	require.ErrorIs(t, err, ErrInvalidState)
	// Atomicity: the failed claim must leave the slot untouched and
	// insert no reservation.
	require.True(t, env.slotAvailable(t, slot.ID))
	var n int
	require.NoError(t, env.db.QueryRow(`SELECT COUNT(*) FROM reservations WHERE slot_id = ?`, slot.ID).Scan(&n))
	require.Zero(t, n)
}

func TestCreateMutualExclusion(t *testing.T) {
	env := newTestEnv(t)
	slot := env.makeSlot(t, 1, "10:00:00")

	const claimants = 8
	errs := make([]error, claimants)
	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.manager.Create(context.Background(), slot.ID, Requester{
				Name:    fmt.Sprintf("claimant %d", i),
				Contact: fmt.Sprintf("c%d@example.com", i),
			})
		}(i)
	}
	wg.Wait()

	confirmed := 0
	for _, err := range errs {
		if err == nil {
			confirmed++
			continue
		}
		require.ErrorIs(t, err, ErrConflict)
	}
	require.Equal(t, 1, confirmed, "exactly one concurrent claimant may win the slot")
	require.False(t, env.slotAvailable(t, slot.ID))

	var active int
	require.NoError(t, env.db.QueryRow(
		`SELECT COUNT(*) FROM reservations WHERE slot_id = ? AND status IN ('PENDING','CONFIRMED')`,
		slot.ID).Scan(&active))
	require.Equal(t, 1, active)
}

func TestCancelRestoresCapacity(t *testing.T) {
	env := newTestEnv(t)
	slot := env.makeSlot(t, 1, "11:00:00")
	ctx := context.Background()

	res, err := env.manager.Create(ctx, slot.ID, Requester{Name: "Alice", Contact: "a@example.com"})
	require.NoError(t, err)

	require.NoError(t, env.manager.Cancel(ctx, res.ID))
	require.True(t, env.slotAvailable(t, slot.ID))

	// The freed slot can be claimed again.
	res2, err := env.manager.Create(ctx, slot.ID, Requester{Name: "Bob", Contact: "b@example.com"})
	require.NoError(t, err)
	require.Equal(t, model.StatusConfirmed, res2.Status)

	// A second cancel of the first reservation is rejected.
	err = env.manager.Cancel(ctx, res.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	// And must not have released the slot Bob now holds.
	require.False(t, env.slotAvailable(t, slot.ID))
}

func TestCancelUnknownReservation(t *testing.T) {
	env := newTestEnv(t)
	err := env.manager.Cancel(context.Background(), 1<<62)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetByIDAndList(t *testing.T) {
	env := newTestEnv(t)
	slot := env.makeSlot(t, 1, "12:00:00")
	ctx := context.Background()

	phone := "+49 30 123456"
	res, err := env.manager.Create(ctx, slot.ID, Requester{Name: "Alice", Contact: "a@example.com", Phone: &phone})
	require.NoError(t, err)

	detail, err := env.manager.GetByID(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, res.ID, detail.ID)
	require.Equal(t, model.StatusConfirmed, detail.Status)
	require.Equal(t, env.providerID, detail.ProviderID)
	require.Equal(t, slot.SlotDate, detail.SlotDate)
	require.NotNil(t, detail.RequesterPhone)
	require.Equal(t, phone, *detail.RequesterPhone)

	st := model.StatusConfirmed
	items, err := env.manager.List(ctx, repository.ListFilter{Status: &st, ProviderID: &env.providerID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, res.ID, items[0].ID)
}

func TestStatsCountsPerStatus(t *testing.T) {
	env := newTestEnv(t)
	slot := env.makeSlot(t, 1, "13:00:00")
	ctx := context.Background()

	res, err := env.manager.Create(ctx, slot.ID, Requester{Name: "Alice", Contact: "a@example.com"})
	require.NoError(t, err)
	require.NoError(t, env.manager.Cancel(ctx, res.ID))

	counts, err := env.manager.Stats(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, counts[model.StatusCancelled], 1)
	// All four statuses are always present in the map.
	for _, st := range []model.Status{model.StatusPending, model.StatusConfirmed, model.StatusFailed, model.StatusCancelled} {
		_, ok := counts[st]
		require.True(t, ok, "missing status %s in stats", st)
	}
}
