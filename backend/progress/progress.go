// Package progress computes certificate eligibility for a (student, course)
// pair. Evaluate is pure over a snapshot; Load assembles the snapshot from
// the database so dashboards can recompute lazily.
package progress

import (
	"fmt"
	"strings"

	"github.com/quantumdemo/sna/backend/models"
	"gorm.io/gorm"
)

var passingGrades = map[string]struct{}{
	"a": {}, "b": {}, "c": {}, "pass": {},
}

type QuizStanding struct {
	QuizID      uint     `json:"quiz_id"`
	ModuleTitle string   `json:"module_title"`
	PassMark    int      `json:"pass_mark"`
	LatestScore *float64 `json:"latest_score"`
	Passed      bool     `json:"passed"`
}

type AssignmentStanding struct {
	AssignmentID uint    `json:"assignment_id"`
	Title        string  `json:"title"`
	Grade        *string `json:"grade"`
	Approved     bool    `json:"approved"`
}

type ExamStanding struct {
	ExamID      uint     `json:"exam_id"`
	PassMark    int      `json:"pass_mark"`
	LatestScore *float64 `json:"latest_score"`
	Passed      bool     `json:"passed"`
}

type CourseProgress struct {
	Quizzes               []QuizStanding       `json:"quizzes"`
	Assignments           []AssignmentStanding `json:"assignments"`
	FinalExam             *ExamStanding        `json:"final_exam"`
	AllPrerequisitesMet   bool                 `json:"all_prerequisites_met"`
	CanRequestCertificate bool                 `json:"can_request_certificate"`
	Reasons               []string             `json:"reasons"`
}

// Snapshot is the evaluator input: quizzes and assignments in course order,
// each with the relevant submission outcome already resolved. Only the
// latest quiz/exam attempt counts, never the best.
type Snapshot struct {
	Quizzes     []QuizStanding
	Assignments []AssignmentStanding
	Exam        *ExamStanding // nil when the course has no final exam
	ExamEnabled bool
}

func Evaluate(s Snapshot) CourseProgress {
	p := CourseProgress{
		Quizzes:             make([]QuizStanding, 0, len(s.Quizzes)),
		Assignments:         make([]AssignmentStanding, 0, len(s.Assignments)),
		AllPrerequisitesMet: true,
		Reasons:             []string{},
	}

	for _, q := range s.Quizzes {
		q.Passed = q.LatestScore != nil && *q.LatestScore >= float64(q.PassMark)
		if !q.Passed {
			p.AllPrerequisitesMet = false
			p.Reasons = append(p.Reasons, fmt.Sprintf("Quiz not passed: %s", q.ModuleTitle))
		}
		p.Quizzes = append(p.Quizzes, q)
	}

	for _, a := range s.Assignments {
		a.Approved = false
		if a.Grade != nil {
			_, a.Approved = passingGrades[strings.ToLower(*a.Grade)]
		}
		if !a.Approved {
			p.AllPrerequisitesMet = false
			p.Reasons = append(p.Reasons, fmt.Sprintf("Assignment not approved: %s", a.Title))
		}
		p.Assignments = append(p.Assignments, a)
	}

	if s.ExamEnabled && s.Exam != nil {
		exam := *s.Exam
		exam.Passed = exam.LatestScore != nil && *exam.LatestScore >= float64(exam.PassMark)
		p.FinalExam = &exam

		if p.AllPrerequisitesMet && exam.Passed {
			p.CanRequestCertificate = true
		} else if !exam.Passed {
			p.Reasons = append(p.Reasons, "Final exam not passed.")
		}
	} else if !s.ExamEnabled {
		p.CanRequestCertificate = p.AllPrerequisitesMet
	}

	return p
}

// Load builds the snapshot for one enrolled student. Quizzes and assignments
// follow module order so the reason list is deterministic.
func Load(db *gorm.DB, user models.User, course models.Course) (Snapshot, error) {
	var snap Snapshot

	var modules []models.CourseModule
	if err := db.Preload("Quiz").Preload("Assignment").
		Where("course_id = ?", course.ID).
		Order("\"order\" asc").
		Find(&modules).Error; err != nil {
		return snap, err
	}

	for _, m := range modules {
		if m.Quiz != nil {
			standing := QuizStanding{
				QuizID:      m.Quiz.ID,
				ModuleTitle: m.Title,
				PassMark:    m.Quiz.PassMark,
			}
			var latest models.QuizSubmission
			err := db.Where("quiz_id = ? AND student_id = ?", m.Quiz.ID, user.ID).
				Order("id desc").First(&latest).Error
			if err == nil {
				score := latest.Score
				standing.LatestScore = &score
			} else if err != gorm.ErrRecordNotFound {
				return snap, err
			}
			snap.Quizzes = append(snap.Quizzes, standing)
		}

		if m.Assignment != nil {
			standing := AssignmentStanding{
				AssignmentID: m.Assignment.ID,
				Title:        m.Assignment.Title,
			}
			var sub models.AssignmentSubmission
			err := db.Where("assignment_id = ? AND student_id = ?", m.Assignment.ID, user.ID).
				First(&sub).Error
			if err == nil {
				standing.Grade = sub.Grade
			} else if err != gorm.ErrRecordNotFound {
				return snap, err
			}
			snap.Assignments = append(snap.Assignments, standing)
		}
	}

	snap.ExamEnabled = course.FinalExamEnabled
	if course.FinalExamEnabled {
		var exam models.FinalExam
		err := db.Where("course_id = ?", course.ID).First(&exam).Error
		if err == nil {
			standing := ExamStanding{ExamID: exam.ID, PassMark: exam.PassMark}
			var latest models.ExamSubmission
			err := db.Where("final_exam_id = ? AND student_id = ?", exam.ID, user.ID).
				Order("id desc").First(&latest).Error
			if err == nil {
				standing.LatestScore = latest.Score
			} else if err != gorm.ErrRecordNotFound {
				return snap, err
			}
			snap.Exam = &standing
		} else if err != gorm.ErrRecordNotFound {
			return snap, err
		}
	}

	return snap, nil
}
