package model

import "fmt"

// Status is the review state of a ReviewTask.
type Status string

const (
	StatusPending         Status = "pending"
	StatusMentorApproved  Status = "mentor_approved"
	StatusManagerRejected Status = "manager_rejected"
	StatusManagerApproved Status = "manager_approved"
	StatusCompleted       Status = "completed"
	StatusRejected        Status = "rejected"
)

// transitions lists the legal forward moves out of each status. A status
// absent from the map has no outgoing transitions.
var transitions = map[Status][]Status{
	StatusPending: {
		StatusMentorApproved,
		StatusManagerApproved,
		StatusManagerRejected,
		StatusRejected,
		StatusCompleted,
	},
	StatusMentorApproved: {
		StatusManagerApproved,
		StatusManagerRejected,
	},
	StatusManagerApproved: {
		StatusCompleted,
	},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusMentorApproved, StatusManagerRejected,
		StatusManagerApproved, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s accepts no further status changes.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsApproved reports whether s counts as an approval for reuse checks.
func (s Status) IsApproved() bool {
	return s == StatusManagerApproved || s == StatusCompleted
}

// ErrIllegalTransition is returned by ValidateTransition.
type ErrIllegalTransition struct {
	From Status
	To   Status
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

// ValidateTransition returns an *ErrIllegalTransition when from cannot move to to.
func ValidateTransition(from, to Status) error {
	if !from.Valid() || !to.Valid() || !from.CanTransition(to) {
		return &ErrIllegalTransition{From: from, To: to}
	}
	return nil
}

// ApprovedStatuses lists the statuses counted as an approval.
func ApprovedStatuses() []Status {
	return []Status{StatusManagerApproved, StatusCompleted}
}
