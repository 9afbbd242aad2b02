package dto

import "github.com/dentalink/dentalink-api/internal/models"

// StatusBreakdown counts cases per status.
type StatusBreakdown map[models.CaseStatus]int

// ClinicDashboardResponse aggregates the clinic home view.
type ClinicDashboardResponse struct {
	TotalCases      int                `json:"totalCases"`
	ActiveCases     int                `json:"activeCases"`
	CompletedCases  int                `json:"completedCases"`
	StatusBreakdown StatusBreakdown    `json:"statusBreakdown"`
	RecentCases     []ClinicCaseItem   `json:"recentCases"`
	FavoriteLabs    []FavoriteLabItem  `json:"favoriteLabs"`
	RecommendedLabs []LabDirectoryItem `json:"recommendedLabs"`
}

// LabDashboardResponse aggregates the lab home view.
type LabDashboardResponse struct {
	IncomingCount   int             `json:"incomingCount"`
	ActiveJobs      int             `json:"activeJobs"`
	CompletedJobs   int             `json:"completedJobs"`
	AverageRating   float64         `json:"averageRating"`
	ReviewCount     int             `json:"reviewCount"`
	StatusBreakdown StatusBreakdown `json:"statusBreakdown"`
	RecentJobs      []LabJobItem    `json:"recentJobs"`
}
