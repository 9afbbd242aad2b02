package dto

import "time"

// LabProfileRequest updates the lab's own profile.
type LabProfileRequest struct {
	Name           string   `json:"name" validate:"required"`
	Services       []string `json:"services"`
	Specialties    []string `json:"specialties"`
	TurnaroundTime int      `json:"turnaroundTime" validate:"gte=0"`
	Location       string   `json:"location"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	Logo           *string  `json:"logo"`
}

// LabDirectoryItem is one entry of the clinic-facing lab directory.
type LabDirectoryItem struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Services       []string `json:"services"`
	Specialties    []string `json:"specialties"`
	TurnaroundTime int      `json:"turnaroundTime"`
	Location       string   `json:"location"`
	Rating         float64  `json:"rating"`
	Logo           *string  `json:"logo,omitempty"`
	ReviewCount    int      `json:"reviewCount"`
	CaseCount      int      `json:"caseCount"`
	IsFavorite     bool     `json:"isFavorite"`
}

// FavoriteLabRequest adds or removes a directory bookmark.
type FavoriteLabRequest struct {
	LabID string `json:"labId" validate:"required"`
}

// FavoriteLabItem is one bookmarked lab with directory attributes.
type FavoriteLabItem struct {
	LabID          string    `json:"labId"`
	Name           string    `json:"name"`
	Specialties    []string  `json:"specialties"`
	Location       string    `json:"location"`
	TurnaroundTime int       `json:"turnaroundTime"`
	Rating         float64   `json:"rating"`
	FavoritedAt    time.Time `json:"favoritedAt"`
}
