package models

import (
	"errors"
	"time"
)

// SubmissionStatus is the review status of a submission.
type SubmissionStatus string

const (
	SubmissionReceived SubmissionStatus = "Received"
)

var (
	ErrMissingSubmissionName  = errors.New("name is required")
	ErrMissingSubmissionPhone = errors.New("phone is required")
)

// Submission is one entry of the append-only submission log.
type Submission struct {
	ID             string           `json:"submission_id"`
	Name           string           `json:"name"`
	Phone          string           `json:"phone"`
	SubmissionDate time.Time        `json:"submission_date"`
	Status         SubmissionStatus `json:"status"`
	Details        string           `json:"details,omitempty"`
}

// Validate checks the fields a caller must supply.
func (s *Submission) Validate() error {
	if s.Name == "" {
		return ErrMissingSubmissionName
	}
	if s.Phone == "" {
		return ErrMissingSubmissionPhone
	}
	return nil
}
