package domain

import (
	"errors"
	"time"
)

// Course groups artifacts under a grader. GraderID is empty until an
// administrator assigns one; uploads into the course require a grader
// because the upload is encrypted to the grader's public key.
type Course struct {
	ID        string
	Code      string
	Title     string
	GraderID  string
	CreatedAt time.Time
}

// Validate checks required fields.
func (c *Course) Validate() error {
	if c.ID == "" {
		return errors.New("course id is required")
	}
	if c.Code == "" {
		return errors.New("course code is required")
	}
	if c.Title == "" {
		return errors.New("course title is required")
	}
	return nil
}

// HasGrader reports whether a grader is assigned.
func (c *Course) HasGrader() bool {
	return c.GraderID != ""
}
