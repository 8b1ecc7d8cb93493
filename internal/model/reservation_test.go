package model

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusFailed},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusCancelled},
		{StatusFailed, StatusCancelled},
	}
	for _, tr := range allowed {
		if !CanTransition(tr.from, tr.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tr.from, tr.to)
		}
	}

	statuses := []Status{StatusPending, StatusConfirmed, StatusFailed, StatusCancelled}
	// No edge may ever re-enter PENDING, terminal CANCELLED has no
	// outgoing edges, and self-transitions are rejected.
	for _, from := range statuses {
		if CanTransition(from, StatusPending) {
			t.Errorf("CanTransition(%s, PENDING) = true, want false", from)
		}
		if CanTransition(from, from) {
			t.Errorf("CanTransition(%s, %s) = true, want false", from, from)
		}
	}
	if CanTransition(StatusCancelled, StatusConfirmed) {
		t.Error("CanTransition(CANCELLED, CONFIRMED) = true, want false")
	}
	if CanTransition(StatusConfirmed, StatusFailed) {
		t.Error("CanTransition(CONFIRMED, FAILED) = true, want false")
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusFailed, StatusCancelled} {
		if !s.Valid() {
			t.Errorf("Status(%q).Valid() = false, want true", s)
		}
	}
	for _, s := range []Status{"", "pending", "DONE", "EXPIRED"} {
		if s.Valid() {
			t.Errorf("Status(%q).Valid() = true, want false", s)
		}
	}
}

func TestStatusHoldsSlot(t *testing.T) {
	cases := map[Status]bool{
		StatusPending:   true,
		StatusConfirmed: true,
		StatusFailed:    false,
		StatusCancelled: false,
	}
	for st, want := range cases {
		if got := st.HoldsSlot(); got != want {
			t.Errorf("Status(%s).HoldsSlot() = %v, want %v", st, got, want)
		}
	}
}

func TestSlotStartsAt(t *testing.T) {
	s := Slot{SlotDate: "2026-03-15", StartTime: "09:30:00"}
	got, err := s.StartsAt()
	if err != nil {
		t.Fatalf("StartsAt() error: %v", err)
	}
	if got.Year() != 2026 || got.Month() != 3 || got.Day() != 15 || got.Hour() != 9 || got.Minute() != 30 {
		t.Errorf("StartsAt() = %v, want 2026-03-15 09:30:00", got)
	}

	bad := Slot{SlotDate: "2026-03-15", StartTime: "9:30"}
	if _, err := bad.StartsAt(); err == nil {
		t.Error("StartsAt() with malformed time: expected error, got nil")
	}
}
