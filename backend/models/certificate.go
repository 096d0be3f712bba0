package models

import (
	"time"

	"gorm.io/gorm"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

type Certificate struct {
	gorm.Model
	UserID         uint      `gorm:"not null"`
	CourseID       uint      `gorm:"not null"`
	CertificateUID string    `gorm:"unique;not null"`
	IssuedAt       time.Time
	FilePath       string `gorm:"not null"`
}

type CertificateRequest struct {
	gorm.Model
	UserID          uint          `gorm:"not null;uniqueIndex:idx_certreq_user_course"`
	CourseID        uint          `gorm:"not null;uniqueIndex:idx_certreq_user_course"`
	Status          RequestStatus `gorm:"type:varchar(50);default:pending"`
	RequestedAt     time.Time
	ReviewedAt      *time.Time
	RejectionReason string
}
