// Package models defines server-side data models persisted in the database
// and the request/response shapes exchanged with clients.
package models

import "time"

// PhotoStatus is the lifecycle state of a Photo.
type PhotoStatus string

const (
	PhotoStatusPending  PhotoStatus = "PENDING"
	PhotoStatusUploaded PhotoStatus = "UPLOADED"
	PhotoStatusFailed   PhotoStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s PhotoStatus) Terminal() bool {
	return s == PhotoStatusUploaded || s == PhotoStatusFailed
}

type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UploadBatch aggregates the outcome of the photos uploaded together.
// Counters only change through atomic increments in the batches repository.
type UploadBatch struct {
	ID             string
	UserID         string
	TotalCount     int
	CompletedCount int
	FailedCount    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Photo is the per-file record. StorageKey is assigned once at creation.
type Photo struct {
	ID               string
	UserID           string
	BatchID          string
	StorageKey       string
	OriginalFilename string
	ContentType      string
	FileSizeBytes    int64
	Status           PhotoStatus
	ErrorMessage     *string
	Tags             []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
