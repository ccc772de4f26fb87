package models

import "time"

// RequestKind distinguishes add and drop intents.
type RequestKind string

const (
	RequestKindAdd  RequestKind = "ADD"
	RequestKindDrop RequestKind = "DROP"
)

// Valid reports whether the kind is one of the known values.
func (k RequestKind) Valid() bool {
	return k == RequestKindAdd || k == RequestKindDrop
}

// EnrollmentRequest is a pending intent awaiting admin adjudication. A row
// exists only while pending; accept and decline both delete it, so terminal
// states are represented by absence.
type EnrollmentRequest struct {
	ID        string      `db:"id" json:"id"`
	Kind      RequestKind `db:"kind" json:"kind"`
	ClassID   string      `db:"class_id" json:"class_id"`
	StudentID string      `db:"student_id" json:"student_id"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// RequestDetail enriches a request with display info for admin listings.
type RequestDetail struct {
	EnrollmentRequest
	StudentName string `db:"student_name" json:"student_name"`
	ClassName   string `db:"class_name" json:"class_name"`
	Period      int    `db:"period" json:"period"`
}
