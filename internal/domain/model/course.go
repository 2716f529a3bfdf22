package model

import "time"

// Course is the sellable catalog entity. Content modeling lives elsewhere;
// only the fields reconciliation and enrollment need are carried here.
type Course struct {
	ID           string // UUID
	Title        string
	Price        int64  // minor units
	Currency     string // e.g. "usd"
	InstructorID string // UUID
	// EnrolledStudents is a set of user IDs kept in sync with
	// User.EnrolledCourses by the enrollment projector.
	EnrolledStudents []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
