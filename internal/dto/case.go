package dto

import (
	"time"

	"github.com/dentalink/dentalink-api/internal/models"
)

// CreateCaseRequest is the clinic's case submission payload. LabID is
// optional: empty means the case enters the general pool.
type CreateCaseRequest struct {
	Title       string `json:"title" validate:"required"`
	CaseNotes   string `json:"caseNotes"`
	ToothNumber string `json:"toothNumber" validate:"required"`
	LabID       string `json:"labId"`
}

// CaseDecisionRequest carries a lab's accept/reject verdict on a NEW case.
type CaseDecisionRequest struct {
	Action models.DecisionAction `json:"action" validate:"required,oneof=accept reject"`
}

// UpdateCaseStatusRequest advances a bound case through the lifecycle.
type UpdateCaseStatusRequest struct {
	Status models.CaseStatus `json:"status" validate:"required"`
}

// ClinicRef is the case-embedded clinic summary.
type ClinicRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// LabRef is the case-embedded lab summary.
type LabRef struct {
	ID     string   `json:"id,omitempty"`
	Name   string   `json:"name"`
	Rating *float64 `json:"rating,omitempty"`
}

// FileSummary lists attachment metadata without storage details.
type FileSummary struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	FileType     string    `json:"fileType"`
	FileSize     int64     `json:"fileSize"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// CaseSummary is the compact wire shape returned by lifecycle mutations.
type CaseSummary struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Status    models.CaseStatus `json:"status"`
	Clinic    *ClinicRef        `json:"clinic,omitempty"`
	Lab       *LabRef           `json:"lab,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// CaseDetail is the full case payload including history and attachments.
type CaseDetail struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	CaseNotes     *string              `json:"caseNotes,omitempty"`
	ToothNumber   string               `json:"toothNumber"`
	Status        models.CaseStatus    `json:"status"`
	StatusHistory models.StatusHistory `json:"statusHistory"`
	Clinic        *ClinicRef           `json:"clinic,omitempty"`
	Lab           *LabRef              `json:"lab,omitempty"`
	Files         []FileSummary        `json:"files"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// ClinicCaseItem is one row of the clinic's case list.
type ClinicCaseItem struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	CaseNotes    *string           `json:"caseNotes,omitempty"`
	ToothNumber  string            `json:"toothNumber"`
	Status       models.CaseStatus `json:"status"`
	Lab          *LabRef           `json:"lab,omitempty"`
	Files        []FileSummary     `json:"files"`
	MessageCount int               `json:"messageCount"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// IncomingCaseItem is one row of a lab's incoming list: general-pool cases
// plus cases targeted at this lab, targeted first.
type IncomingCaseItem struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	CaseNotes       *string           `json:"caseNotes,omitempty"`
	ToothNumber     string            `json:"toothNumber"`
	Status          models.CaseStatus `json:"status"`
	Clinic          *ClinicRef        `json:"clinic,omitempty"`
	Files           []FileSummary     `json:"files"`
	IsAssignedToLab bool              `json:"isAssignedToLab"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// LabJobItem is one row of a lab's accepted-work list.
type LabJobItem struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	ToothNumber  string            `json:"toothNumber"`
	Status       models.CaseStatus `json:"status"`
	Clinic       *ClinicRef        `json:"clinic,omitempty"`
	Files        []FileSummary     `json:"files"`
	MessageCount int               `json:"messageCount"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}
