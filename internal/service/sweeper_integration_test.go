package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/clinic-slot-reservation/internal/model"
)

// forcePending rewinds a reservation into PENDING with the given age,
// simulating a crash between the PENDING insert and the synchronous
// confirmation.  The slot stays unavailable, exactly as a crashed
// claim would leave it.
func (e *testEnv) forcePending(t *testing.T, reservationID uint64, age time.Duration) {
	t.Helper()
	createdAt := time.Now().UTC().Add(-age)
	_, err := e.db.Exec(
		`UPDATE reservations SET status = 'PENDING', confirmed_at = NULL, created_at = ? WHERE id = ?`,
		createdAt, reservationID)
	require.NoError(t, err)
}

func (e *testEnv) reservationStatus(t *testing.T, id uint64) model.Status {
	t.Helper()
	var st model.Status
	require.NoError(t, e.db.QueryRow(`SELECT status FROM reservations WHERE id = ?`, id).Scan(&st))
	return st
}

func TestSweepReclaimsStalePending(t *testing.T) {
	env := newTestEnv(t)
	slot := env.makeSlot(t, 1, "09:00:00")
	ctx := context.Background()

	res, err := env.manager.Create(ctx, slot.ID, Requester{Name: "Alice", Contact: "a@example.com"})
	require.NoError(t, err)
	env.forcePending(t, res.ID, 3*time.Minute)

	reclaimed, err := env.sweeper.Sweep(ctx, 2*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, reclaimed)

	require.Equal(t, model.StatusFailed, env.reservationStatus(t, res.ID))
	require.True(t, env.slotAvailable(t, slot.ID))

	var reason string
	var failedAt time.Time
	require.NoError(t, env.db.QueryRow(
		`SELECT failure_reason, failed_at FROM reservations WHERE id = ?`, res.ID).Scan(&reason, &failedAt))
	require.Equal(t, "timeout", reason)
	require.WithinDuration(t, time.Now().UTC(), failedAt, time.Minute)

	// Idempotence: a second sweep with no new stale rows is a no-op.
	reclaimed, err = env.sweeper.Sweep(ctx, 2*time.Minute)
	require.NoError(t, err)
	require.Zero(t, reclaimed)
	require.Equal(t, model.StatusFailed, env.reservationStatus(t, res.ID))
}

func TestSweepLeavesYoungPendingAlone(t *testing.T) {
	env := newTestEnv(t)
	slot := env.makeSlot(t, 1, "10:00:00")
	ctx := context.Background()

	res, err := env.manager.Create(ctx, slot.ID, Requester{Name: "Alice", Contact: "a@example.com"})
	require.NoError(t, err)
	env.forcePending(t, res.ID, 30*time.Second)

	reclaimed, err := env.sweeper.Sweep(ctx, 2*time.Minute)
	require.NoError(t, err)
	require.Zero(t, reclaimed)

	require.Equal(t, model.StatusPending, env.reservationStatus(t, res.ID))
	require.False(t, env.slotAvailable(t, slot.ID))
}

func TestSweepBatchesMultipleSlots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	slotA := env.makeSlot(t, 1, "11:00:00")
	slotB := env.makeSlot(t, 1, "12:00:00")

	resA, err := env.manager.Create(ctx, slotA.ID, Requester{Name: "Alice", Contact: "a@example.com"})
	require.NoError(t, err)
	resB, err := env.manager.Create(ctx, slotB.ID, Requester{Name: "Bob", Contact: "b@example.com"})
	require.NoError(t, err)
	env.forcePending(t, resA.ID, 10*time.Minute)
	env.forcePending(t, resB.ID, 10*time.Minute)

	reclaimed, err := env.sweeper.Sweep(ctx, 2*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, reclaimed)
	require.True(t, env.slotAvailable(t, slotA.ID))
	require.True(t, env.slotAvailable(t, slotB.ID))
}

func TestSweepThenCancelIsAcknowledge(t *testing.T) {
	env := newTestEnv(t)
	slot := env.makeSlot(t, 1, "13:00:00")
	ctx := context.Background()

	res, err := env.manager.Create(ctx, slot.ID, Requester{Name: "Alice", Contact: "a@example.com"})
	require.NoError(t, err)
	env.forcePending(t, res.ID, 10*time.Minute)

	_, err = env.sweeper.Sweep(ctx, 2*time.Minute)
	require.NoError(t, err)

	// The slot was reclaimed and immediately re-booked by Bob.
	res2, err := env.manager.Create(ctx, slot.ID, Requester{Name: "Bob", Contact: "b@example.com"})
	require.NoError(t, err)

	// Alice's late cancel of her FAILED reservation succeeds as an
	// acknowledgement but must not free Bob's slot.
	require.NoError(t, env.manager.Cancel(ctx, res.ID))
	require.Equal(t, model.StatusCancelled, env.reservationStatus(t, res.ID))
	require.Equal(t, model.StatusConfirmed, env.reservationStatus(t, res2.ID))
	require.False(t, env.slotAvailable(t, slot.ID))
}
