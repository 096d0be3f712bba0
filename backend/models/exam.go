package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type SubmissionStatus string

const (
	SubmissionInProgress    SubmissionStatus = "in_progress"
	SubmissionPendingReview SubmissionStatus = "pending_review"
	SubmissionReleased      SubmissionStatus = "released"
	SubmissionLocked        SubmissionStatus = "locked"
)

type AppealStatus string

const (
	AppealPending  AppealStatus = "pending"
	AppealAccepted AppealStatus = "accepted"
	AppealRejected AppealStatus = "rejected"
)

// FinalExam is the immutable exam template owned by the course instructor.
// Mutations go through the instructor-only authoring endpoints.
type FinalExam struct {
	gorm.Model
	CourseID         uint `gorm:"not null;uniqueIndex"`
	Title            string
	TimeLimitMinutes *int
	PassMark         int `gorm:"default:50"`
	AllowedAttempts  int `gorm:"default:1"`
	StartDate        *time.Time
	EndDate          *time.Time
	Instructions     string
	IsPublished      bool `gorm:"default:false"`

	// Proctoring flags, reported back to the client at exam start.
	ShuffleQuestions         bool `gorm:"default:false"`
	DisableBacktracking      bool `gorm:"default:false"`
	FullScreenEnforced       bool `gorm:"default:false"`
	TabSwitchDetection       bool `gorm:"default:false"`
	DisableCopyPaste         bool `gorm:"default:false"`
	WebcamMonitoring         bool `gorm:"default:false"`
	ReleaseScoresImmediately bool `gorm:"default:false"`
	CalculatorAllowed        bool `gorm:"default:false"`

	Questions   []Question       `gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE"`
	Submissions []ExamSubmission `gorm:"foreignKey:FinalExamID;constraint:OnDelete:CASCADE"`
}

// ExamSubmission is one attempt. attempt_number is 1-based and unique per
// (student, exam); at most one attempt may be in_progress at a time.
type ExamSubmission struct {
	gorm.Model
	FinalExamID   uint             `gorm:"not null;index;uniqueIndex:idx_exam_student_attempt"`
	StudentID     uint             `gorm:"not null;index;uniqueIndex:idx_exam_student_attempt"`
	AttemptNumber int              `gorm:"not null;uniqueIndex:idx_exam_student_attempt"`
	Status        SubmissionStatus `gorm:"type:varchar(50);default:in_progress"`
	Locked        bool             `gorm:"default:false"`
	Score         *float64
	SubmittedAt   *time.Time

	AppealText        string
	AppealStatus      AppealStatus `gorm:"type:varchar(50)"`
	InstructorRemarks string

	Answers    []Answer        `gorm:"foreignKey:ExamSubmissionID;constraint:OnDelete:CASCADE"`
	Violations []ExamViolation `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE"`
}

// Answer holds the student response for one question, typed per question
// type instead of a JSON blob. Exactly one of the response columns is set,
// validated at write time. MarksAwarded/Feedback are instructor-set for the
// manually graded types and frozen once the submission is released.
type Answer struct {
	gorm.Model
	ExamSubmissionID uint `gorm:"not null;index"`
	QuestionID       uint `gorm:"not null"`

	SelectedChoiceID  *uint
	SelectedChoiceIDs pq.Int64Array `gorm:"type:integer[]"`
	TrueFalseAnswer   *bool
	TextAnswer        string
	FilePath          string

	MarksAwarded *float64
	Feedback     string
}

// ExamViolation is an append-only proctoring log entry. Creating the first
// one locks the owning submission.
type ExamViolation struct {
	gorm.Model
	SubmissionID uint   `gorm:"not null;index"`
	Details      string `gorm:"not null"`
}
