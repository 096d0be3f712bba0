package models

import (
	"time"

	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionMultipleChoiceSingle   QuestionType = "multiple_choice_single"
	QuestionMultipleChoiceMultiple QuestionType = "multiple_choice_multiple"
	QuestionTrueFalse              QuestionType = "true_false"
	QuestionShortAnswer            QuestionType = "short_answer"
	QuestionEssay                  QuestionType = "essay"
	QuestionFileUpload             QuestionType = "file_upload"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoiceSingle, QuestionMultipleChoiceMultiple,
		QuestionTrueFalse, QuestionShortAnswer, QuestionEssay, QuestionFileUpload:
		return true
	default:
		return false
	}
}

// AutoGraded reports whether answers of this type are scored at submission
// time. The remaining types wait for instructor marks.
func (t QuestionType) AutoGraded() bool {
	switch t {
	case QuestionMultipleChoiceSingle, QuestionMultipleChoiceMultiple, QuestionTrueFalse:
		return true
	default:
		return false
	}
}

// Question belongs to exactly one final exam or one quiz, never both.
type Question struct {
	gorm.Model
	ExamID          *uint        `gorm:"index"`
	QuizID          *uint        `gorm:"index"`
	QuestionType    QuestionType `gorm:"type:varchar(50);not null"`
	QuestionText    string       `gorm:"not null"`
	Marks           float64      `gorm:"default:1"`
	TrueFalseAnswer *bool
	SequenceOrder   int

	Choices []Choice `gorm:"constraint:OnDelete:CASCADE"`
}

type Choice struct {
	gorm.Model
	QuestionID uint   `gorm:"not null"`
	ChoiceText string `gorm:"not null"`
	IsCorrect  bool   `gorm:"default:false"`
}

type Quiz struct {
	gorm.Model
	ModuleID         uint `gorm:"not null;uniqueIndex"`
	TimeLimitMinutes *int
	AttemptLimit     int `gorm:"default:1"`
	PassMark         int `gorm:"default:70"`

	Questions   []Question       `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE"`
	Submissions []QuizSubmission `gorm:"constraint:OnDelete:CASCADE"`
}

type QuizSubmission struct {
	gorm.Model
	QuizID    uint   `gorm:"not null;index"`
	StudentID uint   `gorm:"not null;index"`
	Answers   string `gorm:"not null"` // JSON map of question id -> selected choice id(s)
	Score     float64
}

type Assignment struct {
	gorm.Model
	ModuleID       uint   `gorm:"not null;uniqueIndex"`
	Title          string `gorm:"not null"`
	Description    string `gorm:"not null"`
	SubmissionType string `gorm:"type:varchar(50);default:file"` // file, text, both
	MaxFileSize    *int   // in KB

	Submissions []AssignmentSubmission `gorm:"constraint:OnDelete:CASCADE"`
}

type AssignmentSubmission struct {
	gorm.Model
	AssignmentID   uint `gorm:"not null;index"`
	StudentID      uint `gorm:"not null;index"`
	FilePath       string
	TextSubmission string
	Grade          *string `gorm:"type:varchar(10)"`
	SubmittedAt    time.Time
}
