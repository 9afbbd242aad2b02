package dto

// ClinicProfileRequest updates the clinic's own profile.
type ClinicProfileRequest struct {
	Name        string   `json:"name" validate:"required"`
	Phone       *string  `json:"phone"`
	Address     *string  `json:"address"`
	Specialties []string `json:"specialties"`
}

// UpdateProfileRequest renames the authenticated user.
type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required"`
}
