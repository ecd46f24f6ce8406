package domain

// Status is the editorial review state of a quiz item.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusApproved Status = "approved"
	StatusDeleted  Status = "deleted"
)

// forward holds the single legal forward transition per state. No transition
// skips a state.
var forward = map[Status]Status{
	StatusDraft:    StatusPending,
	StatusPending:  StatusAccepted,
	StatusAccepted: StatusApproved,
}

// CanTransitionTo reports whether next is a legal transition from s.
// Soft delete is reachable from draft only.
func (s Status) CanTransitionTo(next Status) bool {
	if next == StatusDeleted {
		return s == StatusDraft
	}
	return forward[s] == next
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDeleted
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusAccepted, StatusApproved, StatusDeleted:
		return true
	}
	return false
}
