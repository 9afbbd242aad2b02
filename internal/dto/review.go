package dto

import "time"

// CreateReviewRequest submits the clinic's rating of a delivered case.
type CreateReviewRequest struct {
	CaseID  string  `json:"caseId" validate:"required"`
	Rating  int     `json:"rating" validate:"required,gte=1,lte=5"`
	Comment *string `json:"comment"`
}

// ReviewItem is one review in lab review listings.
type ReviewItem struct {
	ID         string    `json:"id"`
	Rating     int       `json:"rating"`
	Comment    *string   `json:"comment,omitempty"`
	ClinicName string    `json:"clinicName"`
	CaseTitle  string    `json:"caseTitle"`
	Timestamp  time.Time `json:"timestamp"`
}
