package models

import "time"

// ClassOffering represents a class section taught by one teacher in one
// period. seats_available is the authoritative seat count and is mutated
// only inside registrar transactions.
type ClassOffering struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Description    string    `db:"description" json:"description"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id"`
	Period         int       `db:"period" json:"period"`
	TotalCapacity  int       `db:"total_capacity" json:"total_capacity"`
	SeatsAvailable int       `db:"seats_available" json:"seats_available"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends ClassOffering with the teacher display name.
type ClassDetail struct {
	ClassOffering
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// ClassFilter defines filter criteria for listing class offerings.
type ClassFilter struct {
	Period    int
	TeacherID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
