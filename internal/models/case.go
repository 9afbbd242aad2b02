package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CaseStatus enumerates the fabrication lifecycle of a case.
type CaseStatus string

const (
	// StatusNew is the only status in which a case can sit in the general
	// pool (lab_id IS NULL) or await a targeted lab's decision.
	StatusNew        CaseStatus = "NEW"
	StatusAccepted   CaseStatus = "ACCEPTED"
	StatusDesigning  CaseStatus = "DESIGNING"
	StatusReady      CaseStatus = "READY"
	StatusDispatched CaseStatus = "DISPATCHED"
	StatusDelivered  CaseStatus = "DELIVERED"
	StatusCancelled  CaseStatus = "CANCELLED"
	StatusRejected   CaseStatus = "REJECTED"

	// StatusInProgress is a legacy alias for the designing stage. It is kept
	// as an accepted wire value so older clients keep working; new cases
	// should use DESIGNING.
	StatusInProgress CaseStatus = "IN_PROGRESS"
)

// caseTransitions is the single source of truth for legal lab-driven status
// progressions. Claim (NEW -> ACCEPTED/REJECTED) and clinic cancellation are
// handled separately because they bind or release a lab, not just move status.
var caseTransitions = map[CaseStatus][]CaseStatus{
	StatusAccepted:   {StatusDesigning, StatusInProgress},
	StatusInProgress: {StatusDesigning, StatusReady},
	StatusDesigning:  {StatusReady},
	StatusReady:      {StatusDispatched},
	StatusDispatched: {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
	StatusRejected:   {},
}

// cancellableStatuses is the window in which the owning clinic may cancel.
var cancellableStatuses = []CaseStatus{StatusNew, StatusAccepted}

// Valid reports whether the status is a known wire value.
func (s CaseStatus) Valid() bool {
	switch s {
	case StatusNew, StatusAccepted, StatusInProgress, StatusDesigning,
		StatusReady, StatusDispatched, StatusDelivered, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions exist from the status.
// NEW is absent from the map because it leaves via a decision, not a
// lab-driven advance, so it never reads as terminal here.
func (s CaseStatus) Terminal() bool {
	next, ok := caseTransitions[s]
	return ok && len(next) == 0
}

// NextStatuses returns the legal lab-driven successors of the status.
func (s CaseStatus) NextStatuses() []CaseStatus {
	next, ok := caseTransitions[s]
	if !ok {
		return nil
	}
	out := make([]CaseStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether a lab may advance the case from s to target.
func (s CaseStatus) CanTransition(target CaseStatus) bool {
	for _, candidate := range caseTransitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// Cancellable reports whether the owning clinic may still cancel.
func (s CaseStatus) Cancellable() bool {
	for _, candidate := range cancellableStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// TransitionError describes an illegal transition for client consumption: the
// message names the current status and the full set of legal next statuses.
func TransitionError(current, requested CaseStatus) string {
	next := current.NextStatuses()
	legal := "None (final status)"
	if len(next) > 0 {
		parts := make([]string, len(next))
		for i, s := range next {
			parts[i] = string(s)
		}
		legal = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("cannot change status from %s to %s; valid next status: %s", current, requested, legal)
}

// CancelWindowError names the allowed source statuses for cancellation.
func CancelWindowError(current CaseStatus) string {
	parts := make([]string, len(cancellableStatuses))
	for i, s := range cancellableStatuses {
		parts[i] = string(s)
	}
	return fmt.Sprintf("can only cancel cases with %s status, current status is %s", strings.Join(parts, " or "), current)
}

// StatusChange is one append-only audit entry in a case's status history.
// JSON field names match the stored history documents.
type StatusChange struct {
	Status    CaseStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	UpdatedBy string     `json:"updatedBy"`
}

// StatusHistory is the ordered, append-only sequence of status changes. It is
// stored as a jsonb array; appends happen inside the same UPDATE that moves
// the status so history can never drift from the row it describes.
type StatusHistory []StatusChange

// Value implements driver.Valuer.
func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner.
func (h *StatusHistory) Scan(src interface{}) error {
	if src == nil {
		*h = StatusHistory{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported status history type %T", src)
	}
	if len(raw) == 0 {
		*h = StatusHistory{}
		return nil
	}
	return json.Unmarshal(raw, h)
}

// Case is the central marketplace entity. LabID is the pool-membership
// signal: nil means the case sits in the general pool and must be NEW.
type Case struct {
	ID            string        `db:"id" json:"id"`
	Title         string        `db:"title" json:"title"`
	CaseNotes     *string       `db:"case_notes" json:"case_notes,omitempty"`
	ToothNumber   string        `db:"tooth_number" json:"tooth_number"`
	Status        CaseStatus    `db:"status" json:"status"`
	StatusHistory StatusHistory `db:"status_history" json:"status_history"`
	ClinicID      string        `db:"clinic_id" json:"clinic_id"`
	LabID         *string       `db:"lab_id" json:"lab_id,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// InPool reports whether the case is claimable by any lab.
func (c *Case) InPool() bool {
	return c.LabID == nil && c.Status == StatusNew
}

// DecisionAction is a lab's verdict on a NEW case.
type DecisionAction string

const (
	DecisionAccept DecisionAction = "accept"
	DecisionReject DecisionAction = "reject"
)

// Status returns the case status produced by the decision. A reject binds
// the deciding lab with status REJECTED; the case does not return to the
// pool for other labs.
func (a DecisionAction) Status() (CaseStatus, bool) {
	switch a {
	case DecisionAccept:
		return StatusAccepted, true
	case DecisionReject:
		return StatusRejected, true
	}
	return "", false
}
