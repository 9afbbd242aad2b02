package models

import (
	"time"

	"github.com/lib/pq"
)

// Clinic is the ordering-side profile, one per CLINIC user.
type Clinic struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"user_id"`
	Name        string         `db:"name" json:"name"`
	Phone       *string        `db:"phone" json:"phone,omitempty"`
	Address     *string        `db:"address" json:"address,omitempty"`
	Specialties pq.StringArray `db:"specialties" json:"specialties"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// FavoriteLab links a clinic to a lab it has bookmarked.
type FavoriteLab struct {
	ID        string    `db:"id" json:"id"`
	ClinicID  string    `db:"clinic_id" json:"clinic_id"`
	LabID     string    `db:"lab_id" json:"lab_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FavoriteLabEntry is a bookmarked lab joined with the bookmark time.
type FavoriteLabEntry struct {
	Lab
	FavoritedAt time.Time `db:"favorited_at" json:"favorited_at"`
}
