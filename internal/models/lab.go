package models

import (
	"time"

	"github.com/lib/pq"
)

// Lab is the fabrication-side profile, one per LAB user.
type Lab struct {
	ID             string         `db:"id" json:"id"`
	UserID         string         `db:"user_id" json:"user_id"`
	Name           string         `db:"name" json:"name"`
	Services       pq.StringArray `db:"services" json:"services"`
	Specialties    pq.StringArray `db:"specialties" json:"specialties"`
	TurnaroundTime int            `db:"turnaround_time" json:"turnaround_time"`
	Location       string         `db:"location" json:"location"`
	Latitude       *float64       `db:"latitude" json:"latitude,omitempty"`
	Longitude      *float64       `db:"longitude" json:"longitude,omitempty"`
	Rating         float64        `db:"rating" json:"rating"`
	Logo           *string        `db:"logo" json:"logo,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// LabFilter captures the directory discovery filters.
type LabFilter struct {
	Specialties       []string
	MaxTurnaroundTime *int
	MinRating         *float64
	Location          string
	Search            string
}
