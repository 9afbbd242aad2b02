package models

import "time"

// Review is the clinic's one-off rating of a delivered case. At most one per
// case, enforced by a unique constraint on case_id.
type Review struct {
	ID        string    `db:"id" json:"id"`
	CaseID    string    `db:"case_id" json:"case_id"`
	ClinicID  string    `db:"clinic_id" json:"clinic_id"`
	LabID     string    `db:"lab_id" json:"lab_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   *string   `db:"comment" json:"comment,omitempty"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`

	// Joined display fields.
	ClinicName string `db:"clinic_name" json:"clinic_name,omitempty"`
	CaseTitle  string `db:"case_title" json:"case_title,omitempty"`
}
