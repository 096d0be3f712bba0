package tests

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/quantumdemo/sna/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEnrolledCourse creates an approved course with the given student
// enrolled and approved, returning the course id.
func newEnrolledCourse(t *testing.T, title string, studentUser models.User, studentTok string) uint {
	t.Helper()

	status, body := doJSON(t, "POST", "/api/courses/", instructorToken, fiber.Map{
		"title": title,
	})
	mustStatus(t, status, fiber.StatusCreated, body)
	courseID := uint(body["course"].(map[string]interface{})["id"].(float64))

	status, body = doJSON(t, "POST", fmt.Sprintf("/api/admin/courses/%d/approve", courseID), adminToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)

	status, body = doJSON(t, "POST", fmt.Sprintf("/api/courses/%d/enroll", courseID), studentTok, nil)
	mustStatus(t, status, fiber.StatusCreated, body)

	var enrollment models.Enrollment
	require.NoError(t, db.Where("user_id = ? AND course_id = ?", studentUser.ID, courseID).
		First(&enrollment).Error)
	status, body = doJSON(t, "PUT",
		fmt.Sprintf("/api/courses/%d/enrollments/%d", courseID, enrollment.ID),
		instructorToken, fiber.Map{"approve": true})
	mustStatus(t, status, fiber.StatusOK, body)

	return courseID
}

func newPublishedExam(t *testing.T, courseID uint, settings fiber.Map) uint {
	t.Helper()

	status, body := doJSON(t, "POST", fmt.Sprintf("/api/courses/%d/exam", courseID),
		instructorToken, settings)
	mustStatus(t, status, fiber.StatusCreated, body)
	examID := uint(body["exam"].(map[string]interface{})["ID"].(float64))

	status, body = doJSON(t, "POST", fmt.Sprintf("/api/exams/%d/questions", examID),
		instructorToken, fiber.Map{
			"question_type":     "true_false",
			"question_text":     "The sky is blue.",
			"marks":             2,
			"true_false_answer": true,
		})
	mustStatus(t, status, fiber.StatusCreated, body)

	status, body = doJSON(t, "POST", fmt.Sprintf("/api/exams/%d/publish", examID),
		instructorToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)

	return examID
}

func TestExamLifecycle(t *testing.T) {
	courseID := newEnrolledCourse(t, "Marine Biology", student, studentToken)
	examID := newPublishedExam(t, courseID, fiber.Map{"pass_mark": 50})

	// Start an attempt.
	status, body := doJSON(t, "POST", fmt.Sprintf("/api/exams/%d/start", examID), studentToken, nil)
	mustStatus(t, status, fiber.StatusCreated, body)
	submissionID := uint(body["submission_id"].(float64))
	assert.Equal(t, float64(1), body["attempt_number"])
	questions := body["questions"].([]interface{})
	require.Len(t, questions, 1)
	questionID := uint(questions[0].(map[string]interface{})["id"].(float64))

	// Starting again resumes the same attempt.
	status, body = doJSON(t, "POST", fmt.Sprintf("/api/exams/%d/start", examID), studentToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, float64(submissionID), body["submission_id"])

	// Result is hidden before release.
	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/exam-submissions/%d/submit", submissionID), studentToken,
		fiber.Map{"answers": []fiber.Map{
			{"question_id": questionID, "true_false_answer": true},
		}})
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, "pending_review", body["status"])
	assert.Nil(t, body["score"])

	status, body = doJSON(t, "GET", fmt.Sprintf("/api/exams/%d/result", examID), studentToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, "pending_review", body["status"])
	assert.Nil(t, body["score"])

	// Release and check the score: one correct true/false question is 100%.
	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/exam-submissions/%d/release", submissionID), instructorToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)

	status, body = doJSON(t, "GET", fmt.Sprintf("/api/exams/%d/result", examID), studentToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, "released", body["status"])
	assert.Equal(t, 100.0, body["score"])
	assert.Equal(t, true, body["passed"])
}

func TestExamAttemptLimit(t *testing.T) {
	courseID := newEnrolledCourse(t, "Organic Chemistry", student, studentToken)
	examID := newPublishedExam(t, courseID, fiber.Map{"allowed_attempts": 1})

	status, body := doJSON(t, "POST", fmt.Sprintf("/api/exams/%d/start", examID), studentToken, nil)
	mustStatus(t, status, fiber.StatusCreated, body)
	submissionID := uint(body["submission_id"].(float64))

	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/exam-submissions/%d/submit", submissionID), studentToken,
		fiber.Map{"answers": []fiber.Map{}})
	mustStatus(t, status, fiber.StatusOK, body)

	// The single allowed attempt is used up.
	status, body = doJSON(t, "POST", fmt.Sprintf("/api/exams/%d/start", examID), studentToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "You have reached the maximum number of attempts.", body["error"])
}

func TestExamNotEnrolled(t *testing.T) {
	courseID := newEnrolledCourse(t, "Linear Algebra", student, studentToken)
	examID := newPublishedExam(t, courseID, fiber.Map{})

	status, body := doJSON(t, "POST", fmt.Sprintf("/api/exams/%d/start", examID), student2Token, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "You are not enrolled in this course.", body["error"])
}

func TestViolationLocksAttempt(t *testing.T) {
	courseID := newEnrolledCourse(t, "Art History", student, studentToken)
	examID := newPublishedExam(t, courseID, fiber.Map{})

	status, body := doJSON(t, "POST", fmt.Sprintf("/api/exams/%d/start", examID), studentToken, nil)
	mustStatus(t, status, fiber.StatusCreated, body)
	submissionID := uint(body["submission_id"].(float64))

	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/exam-submissions/%d/violations", submissionID), studentToken,
		fiber.Map{"details": "tab switch detected"})
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, true, body["locked"])

	// A second report is acknowledged without another audit row.
	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/exam-submissions/%d/violations", submissionID), studentToken,
		fiber.Map{"details": "tab switch detected"})
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, true, body["locked"])

	var violations int64
	db.Model(&models.ExamViolation{}).Where("submission_id = ?", submissionID).Count(&violations)
	assert.Equal(t, int64(1), violations)

	// The attempt itself moves to the locked status.
	var submission models.ExamSubmission
	require.NoError(t, db.First(&submission, submissionID).Error)
	assert.True(t, submission.Locked)
	assert.Equal(t, models.SubmissionLocked, submission.Status)

	// Locked attempts cannot be submitted.
	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/exam-submissions/%d/submit", submissionID), studentToken,
		fiber.Map{"answers": []fiber.Map{}})
	assert.Equal(t, fiber.StatusForbidden, status)

	// Starting again surfaces the lock instead of opening a fresh attempt.
	status, body = doJSON(t, "POST", fmt.Sprintf("/api/exams/%d/start", examID), studentToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Your exam has been locked due to a proctoring violation.", body["error"])
}

func TestAppealFlow(t *testing.T) {
	courseID := newEnrolledCourse(t, "World Literature", student, studentToken)
	examID := newPublishedExam(t, courseID, fiber.Map{})

	status, body := doJSON(t, "POST", fmt.Sprintf("/api/exams/%d/start", examID), studentToken, nil)
	mustStatus(t, status, fiber.StatusCreated, body)
	submissionID := uint(body["submission_id"].(float64))

	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/exam-submissions/%d/violations", submissionID), studentToken,
		fiber.Map{"details": "left full screen"})
	mustStatus(t, status, fiber.StatusOK, body)

	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/exam-submissions/%d/appeal", submissionID), studentToken,
		fiber.Map{"appeal_text": "My cat jumped on the keyboard"})
	mustStatus(t, status, fiber.StatusOK, body)

	// One appeal per exam.
	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/exam-submissions/%d/appeal", submissionID), studentToken,
		fiber.Map{"appeal_text": "Please reconsider"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "You have already submitted an appeal for this exam.", body["error"])

	// Accepting unlocks the attempt for normal grading.
	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/exam-submissions/%d/appeal/handle", submissionID), instructorToken,
		fiber.Map{"accept": true, "remarks": "Verified, one-off"})
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, "accepted", body["appeal_status"])
	assert.Equal(t, false, body["locked"])

	var submission models.ExamSubmission
	require.NoError(t, db.First(&submission, submissionID).Error)
	assert.Equal(t, models.SubmissionPendingReview, submission.Status)
	assert.False(t, submission.Locked)
}

func TestManualGrading(t *testing.T) {
	courseID := newEnrolledCourse(t, "Philosophy of Mind", student, studentToken)

	status, body := doJSON(t, "POST", fmt.Sprintf("/api/courses/%d/exam", courseID),
		instructorToken, fiber.Map{"pass_mark": 50})
	mustStatus(t, status, fiber.StatusCreated, body)
	examID := uint(body["exam"].(map[string]interface{})["ID"].(float64))

	status, body = doJSON(t, "POST", fmt.Sprintf("/api/exams/%d/questions", examID),
		instructorToken, fiber.Map{
			"question_type": "essay",
			"question_text": "Explain the hard problem of consciousness.",
			"marks":         10,
		})
	mustStatus(t, status, fiber.StatusCreated, body)
	questionID := uint(body["question"].(map[string]interface{})["ID"].(float64))

	status, body = doJSON(t, "POST", fmt.Sprintf("/api/exams/%d/publish", examID),
		instructorToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)

	status, body = doJSON(t, "POST", fmt.Sprintf("/api/exams/%d/start", examID), studentToken, nil)
	mustStatus(t, status, fiber.StatusCreated, body)
	submissionID := uint(body["submission_id"].(float64))

	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/exam-submissions/%d/submit", submissionID), studentToken,
		fiber.Map{"answers": []fiber.Map{
			{"question_id": questionID, "text_answer": "It is hard."},
		}})
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, "pending_review", body["status"])

	var answer models.Answer
	require.NoError(t, db.Where("exam_submission_id = ?", submissionID).First(&answer).Error)

	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/exam-submissions/%d/grade", submissionID), instructorToken,
		fiber.Map{
			"marks": []fiber.Map{
				{"answer_id": answer.ID, "marks_awarded": 7, "feedback": "Decent"},
			},
			"release": true,
		})
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, 70.0, body["score"])
	assert.Equal(t, "released", body["status"])
}
