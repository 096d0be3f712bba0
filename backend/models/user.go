package models

import "gorm.io/gorm"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return true
	default:
		return false
	}
}

type User struct {
	gorm.Model
	Name         string `gorm:"not null"`
	Email        string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	Role         Role   `gorm:"type:varchar(50);default:student"`
	Approved     bool   `gorm:"default:false"`
	IsBanned     bool   `gorm:"default:false"`
	ProfilePic   string
	Bio          string
}

type EnrollmentStatus string

const (
	EnrollmentPending  EnrollmentStatus = "pending"
	EnrollmentApproved EnrollmentStatus = "approved"
	EnrollmentRejected EnrollmentStatus = "rejected"
)

type Enrollment struct {
	gorm.Model
	UserID          uint             `gorm:"not null;uniqueIndex:idx_enrollment_user_course"`
	CourseID        uint             `gorm:"not null;uniqueIndex:idx_enrollment_user_course"`
	Status          EnrollmentStatus `gorm:"type:varchar(50);default:pending"`
	RejectionReason string
}
