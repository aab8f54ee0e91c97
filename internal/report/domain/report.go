// Package domain defines the crime report entity.
package domain

import (
	"errors"
	"time"
)

// Report is a citizen-submitted crime report with a geographic location.
type Report struct {
	ID          string
	CreatedBy   string
	CrimeType   string
	Description string
	Latitude    float64
	Longitude   float64
	OccurredAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OwnedBy returns the id of the reporting user.
func (r *Report) OwnedBy() string { return r.CreatedBy }

// Validate checks the fields a caller controls.
func (r *Report) Validate() error {
	if r.CreatedBy == "" {
		return errors.New("report: created_by is required")
	}
	if r.CrimeType == "" {
		return errors.New("report: crime_type is required")
	}
	if r.Latitude < -90 || r.Latitude > 90 {
		return errors.New("report: latitude out of range")
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		return errors.New("report: longitude out of range")
	}
	if r.OccurredAt.IsZero() {
		return errors.New("report: occurred_at is required")
	}
	return nil
}
