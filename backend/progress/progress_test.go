package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func TestEvaluateNoExamCourseAllPassed(t *testing.T) {
	snap := Snapshot{
		Quizzes: []QuizStanding{
			{QuizID: 1, ModuleTitle: "Foundations", PassMark: 70, LatestScore: floatPtr(80)},
		},
		Assignments: []AssignmentStanding{
			{AssignmentID: 1, Title: "Essay One", Grade: strPtr("Pass")},
		},
		ExamEnabled: false,
	}

	p := Evaluate(snap)
	assert.True(t, p.AllPrerequisitesMet)
	assert.True(t, p.CanRequestCertificate)
	assert.Empty(t, p.Reasons)
	assert.Nil(t, p.FinalExam)
}

func TestEvaluateLatestAttemptOnly(t *testing.T) {
	// The snapshot carries the latest score, not the best; a latest score
	// below the pass mark fails even if an earlier attempt passed.
	snap := Snapshot{
		Quizzes: []QuizStanding{
			{QuizID: 1, ModuleTitle: "Foundations", PassMark: 70, LatestScore: floatPtr(60)},
		},
	}

	p := Evaluate(snap)
	assert.False(t, p.AllPrerequisitesMet)
	assert.False(t, p.CanRequestCertificate)
	assert.Equal(t, []string{"Quiz not passed: Foundations"}, p.Reasons)
}

func TestEvaluateReasonOrderIsDeterministic(t *testing.T) {
	snap := Snapshot{
		Quizzes: []QuizStanding{
			{QuizID: 1, ModuleTitle: "Week 1", PassMark: 70},
			{QuizID: 2, ModuleTitle: "Week 2", PassMark: 70, LatestScore: floatPtr(50)},
		},
		Assignments: []AssignmentStanding{
			{AssignmentID: 1, Title: "Project", Grade: strPtr("F")},
		},
		ExamEnabled: true,
		Exam:        &ExamStanding{ExamID: 1, PassMark: 50},
	}

	p := Evaluate(snap)
	assert.Equal(t, []string{
		"Quiz not passed: Week 1",
		"Quiz not passed: Week 2",
		"Assignment not approved: Project",
		"Final exam not passed.",
	}, p.Reasons)
	assert.False(t, p.CanRequestCertificate)
}

func TestEvaluateAssignmentGrades(t *testing.T) {
	for _, grade := range []string{"a", "B", "c", "Pass", "PASS"} {
		snap := Snapshot{
			Assignments: []AssignmentStanding{{AssignmentID: 1, Title: "X", Grade: strPtr(grade)}},
		}
		p := Evaluate(snap)
		assert.True(t, p.Assignments[0].Approved, grade)
	}

	for _, grade := range []string{"d", "F", "fail", ""} {
		snap := Snapshot{
			Assignments: []AssignmentStanding{{AssignmentID: 1, Title: "X", Grade: strPtr(grade)}},
		}
		p := Evaluate(snap)
		assert.False(t, p.Assignments[0].Approved, grade)
	}

	// No submission at all.
	p := Evaluate(Snapshot{Assignments: []AssignmentStanding{{AssignmentID: 1, Title: "X"}}})
	assert.False(t, p.Assignments[0].Approved)
	assert.Equal(t, []string{"Assignment not approved: X"}, p.Reasons)
}

func TestEvaluateExamGatesCertificate(t *testing.T) {
	base := Snapshot{
		Quizzes: []QuizStanding{
			{QuizID: 1, ModuleTitle: "M", PassMark: 70, LatestScore: floatPtr(90)},
		},
		ExamEnabled: true,
	}

	// Exam enabled, passed.
	passed := base
	passed.Exam = &ExamStanding{ExamID: 1, PassMark: 50, LatestScore: floatPtr(75)}
	p := Evaluate(passed)
	assert.True(t, p.CanRequestCertificate)
	assert.Empty(t, p.Reasons)

	// Exam enabled, ungraded score: not passed yet.
	pending := base
	pending.Exam = &ExamStanding{ExamID: 1, PassMark: 50}
	p = Evaluate(pending)
	assert.False(t, p.CanRequestCertificate)
	assert.Equal(t, []string{"Final exam not passed."}, p.Reasons)

	// Exam enabled, failed.
	failed := base
	failed.Exam = &ExamStanding{ExamID: 1, PassMark: 50, LatestScore: floatPtr(40)}
	p = Evaluate(failed)
	assert.False(t, p.CanRequestCertificate)
	assert.Equal(t, []string{"Final exam not passed."}, p.Reasons)
}
