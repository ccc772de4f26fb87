package models

import "time"

// Enrollment is a confirmed seat: a unique (class, student) pair created by
// an accepted add request and destroyed by an accepted drop request.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RosterEntry is an enrollment joined with student info for exports.
type RosterEntry struct {
	StudentID   string    `db:"student_id" json:"student_id"`
	Username    string    `db:"username" json:"username"`
	StudentName string    `db:"student_name" json:"student_name"`
	EnrolledAt  time.Time `db:"enrolled_at" json:"enrolled_at"`
}
