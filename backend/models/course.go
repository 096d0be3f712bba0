package models

import "gorm.io/gorm"

type Course struct {
	gorm.Model
	InstructorID     uint   `gorm:"not null"`
	Title            string `gorm:"not null"`
	Description      string
	Approved         bool `gorm:"default:false"`
	CoverImage       string
	FinalExamEnabled bool `gorm:"default:true"`

	Modules     []CourseModule `gorm:"constraint:OnDelete:CASCADE"`
	Enrollments []Enrollment   `gorm:"constraint:OnDelete:CASCADE"`
	FinalExam   *FinalExam     `gorm:"constraint:OnDelete:CASCADE"`
	ChatRoom    *ChatRoom      `gorm:"constraint:OnDelete:CASCADE"`
}

// CourseModule is a titled section of a course. It owns at most one quiz
// and one assignment; both feed certificate eligibility.
type CourseModule struct {
	gorm.Model
	CourseID uint   `gorm:"not null"`
	Title    string `gorm:"not null"`
	Order    int    `gorm:"not null"`

	Quiz       *Quiz       `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE"`
	Assignment *Assignment `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE"`
}
