package models

import "time"

// File is an attachment owned by exactly one case. Immutable once created;
// its lifetime is tied to the parent case.
type File struct {
	ID           string    `db:"id" json:"id"`
	CaseID       string    `db:"case_id" json:"case_id"`
	Filename     string    `db:"filename" json:"filename"`
	OriginalName string    `db:"original_name" json:"original_name"`
	FilePath     string    `db:"file_path" json:"file_path"`
	FileType     string    `db:"file_type" json:"file_type"`
	FileSize     int64     `db:"file_size" json:"file_size"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploaded_at"`
}
