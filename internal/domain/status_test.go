package domain

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusDraft, StatusPending, true},
		{StatusPending, StatusAccepted, true},
		{StatusAccepted, StatusApproved, true},
		{StatusDraft, StatusDeleted, true},
		{StatusDraft, StatusAccepted, false},
		{StatusDraft, StatusApproved, false},
		{StatusPending, StatusApproved, false},
		{StatusPending, StatusDeleted, false},
		{StatusAccepted, StatusDeleted, false},
		{StatusApproved, StatusPending, false},
		{StatusApproved, StatusDeleted, false},
		{StatusDeleted, StatusPending, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusPending, StatusAccepted} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []Status{StatusApproved, StatusDeleted} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusPending.Valid() {
		t.Fatalf("pending should be a valid status")
	}
	if Status("published").Valid() {
		t.Fatalf("unknown status should be invalid")
	}
}
