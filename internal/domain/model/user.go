package model

import "time"

type User struct {
	ID    string // UUID
	Email string
	Name  string
	// EnrolledCourses is a set of course IDs; the symmetric counterpart of
	// Course.EnrolledStudents.
	EnrolledCourses []string
	RegisteredAt    time.Time
}
