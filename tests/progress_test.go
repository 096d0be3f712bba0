package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/quantumdemo/sna/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildModuleWithQuiz adds a module holding a single true/false quiz
// question and returns the module and quiz ids.
func buildModuleWithQuiz(t *testing.T, courseID uint, title string) (uint, uint) {
	t.Helper()

	status, body := doJSON(t, "POST", fmt.Sprintf("/api/courses/%d/modules", courseID),
		instructorToken, fiber.Map{"title": title})
	mustStatus(t, status, fiber.StatusCreated, body)
	moduleID := uint(body["module"].(map[string]interface{})["ID"].(float64))

	status, body = doJSON(t, "POST", fmt.Sprintf("/api/modules/%d/quiz", moduleID),
		instructorToken, fiber.Map{"pass_mark": 70})
	mustStatus(t, status, fiber.StatusCreated, body)
	quizID := uint(body["quiz"].(map[string]interface{})["ID"].(float64))

	status, body = doJSON(t, "POST", fmt.Sprintf("/api/quizzes/%d/questions", quizID),
		instructorToken, fiber.Map{
			"question_type":     "true_false",
			"question_text":     "Water boils at 100C at sea level.",
			"true_false_answer": true,
		})
	mustStatus(t, status, fiber.StatusCreated, body)

	return moduleID, quizID
}

func submitQuiz(t *testing.T, quizID uint, token string, answer bool) map[string]interface{} {
	t.Helper()

	var quiz models.Quiz
	require.NoError(t, db.Preload("Questions").First(&quiz, quizID).Error)
	require.Len(t, quiz.Questions, 1)

	answers := fiber.Map{itoa(quiz.Questions[0].ID): answer}
	status, body := doJSON(t, "POST", fmt.Sprintf("/api/quizzes/%d/submit", quizID),
		token, fiber.Map{"answers": answers})
	mustStatus(t, status, fiber.StatusOK, body)
	return body
}

func TestQuizScoring(t *testing.T) {
	courseID := newEnrolledCourse(t, "Thermodynamics", student, studentToken)
	_, quizID := buildModuleWithQuiz(t, courseID, "Heat")

	body := submitQuiz(t, quizID, studentToken, true)
	assert.Equal(t, 100.0, body["score"])
	assert.Equal(t, true, body["passed"])

	// Default attempt limit is one.
	var quiz models.Quiz
	require.NoError(t, db.Preload("Questions").First(&quiz, quizID).Error)
	answers := fiber.Map{itoa(quiz.Questions[0].ID): true}
	status, errBody := doJSON(t, "POST", fmt.Sprintf("/api/quizzes/%d/submit", quizID),
		studentToken, fiber.Map{"answers": answers})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "You have reached the maximum number of attempts.", errBody["error"])
}

func TestCertificateFlow(t *testing.T) {
	// Course without a final exam: quiz and assignment standing alone decide
	// eligibility.
	status, body := doJSON(t, "POST", "/api/courses/", instructorToken, fiber.Map{
		"title":              "Technical Writing",
		"final_exam_enabled": false,
	})
	mustStatus(t, status, fiber.StatusCreated, body)
	courseID := uint(body["course"].(map[string]interface{})["id"].(float64))

	status, body = doJSON(t, "POST", fmt.Sprintf("/api/admin/courses/%d/approve", courseID), adminToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	status, body = doJSON(t, "POST", fmt.Sprintf("/api/courses/%d/enroll", courseID), studentToken, nil)
	mustStatus(t, status, fiber.StatusCreated, body)

	var enrollment models.Enrollment
	require.NoError(t, db.Where("user_id = ? AND course_id = ?", student.ID, courseID).
		First(&enrollment).Error)
	status, body = doJSON(t, "PUT",
		fmt.Sprintf("/api/courses/%d/enrollments/%d", courseID, enrollment.ID),
		instructorToken, fiber.Map{"approve": true})
	mustStatus(t, status, fiber.StatusOK, body)

	moduleID, quizID := buildModuleWithQuiz(t, courseID, "Drafting")

	// Not eligible yet: the quiz is unpassed.
	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/courses/%d/certificate-request", courseID), studentToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	submitQuiz(t, quizID, studentToken, true)

	// Add and grade an assignment in the same module.
	status, body = doJSON(t, "POST", fmt.Sprintf("/api/modules/%d/assignment", moduleID),
		instructorToken, fiber.Map{
			"title":           "Style Guide",
			"description":     "Write a one-page style guide.",
			"submission_type": "text",
		})
	mustStatus(t, status, fiber.StatusCreated, body)
	assignmentID := uint(body["assignment"].(map[string]interface{})["ID"].(float64))

	submitAssignmentText(t, assignmentID, studentToken, "Use the active voice.")

	var submission models.AssignmentSubmission
	require.NoError(t, db.Where("assignment_id = ? AND student_id = ?", assignmentID, student.ID).
		First(&submission).Error)
	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/assignment-submissions/%d/grade", submission.ID),
		instructorToken, fiber.Map{"grade": "A"})
	mustStatus(t, status, fiber.StatusOK, body)

	// Progress now reports eligibility.
	status, body = doJSON(t, "GET",
		fmt.Sprintf("/api/courses/%d/progress", courseID), studentToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, true, body["all_prerequisites_met"])
	assert.Equal(t, true, body["can_request_certificate"])

	// Request, approve, verify.
	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/courses/%d/certificate-request", courseID), studentToken, nil)
	mustStatus(t, status, fiber.StatusCreated, body)

	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/courses/%d/certificate-request", courseID), studentToken, nil)
	assert.Equal(t, fiber.StatusConflict, status)

	var request models.CertificateRequest
	require.NoError(t, db.Where("user_id = ? AND course_id = ?", student.ID, courseID).
		First(&request).Error)
	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/admin/certificate-requests/%d/approve", request.ID), adminToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	uid := body["certificate_uid"].(string)
	assert.NotEmpty(t, uid)

	status, body = doJSON(t, "GET", "/api/certificates/verify/"+uid, "", nil)
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "Student", body["student_name"])
	assert.Equal(t, "Technical Writing", body["course_title"])
}

func TestFailedQuizBlocksCertificate(t *testing.T) {
	status, body := doJSON(t, "POST", "/api/courses/", instructorToken, fiber.Map{
		"title":              "Microbiology",
		"final_exam_enabled": false,
	})
	mustStatus(t, status, fiber.StatusCreated, body)
	courseID := uint(body["course"].(map[string]interface{})["id"].(float64))

	status, body = doJSON(t, "POST", fmt.Sprintf("/api/admin/courses/%d/approve", courseID), adminToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	status, body = doJSON(t, "POST", fmt.Sprintf("/api/courses/%d/enroll", courseID), student2Token, nil)
	mustStatus(t, status, fiber.StatusCreated, body)

	var enrollment models.Enrollment
	require.NoError(t, db.Where("user_id = ? AND course_id = ?", student2.ID, courseID).
		First(&enrollment).Error)
	status, body = doJSON(t, "PUT",
		fmt.Sprintf("/api/courses/%d/enrollments/%d", courseID, enrollment.ID),
		instructorToken, fiber.Map{"approve": true})
	mustStatus(t, status, fiber.StatusOK, body)

	_, quizID := buildModuleWithQuiz(t, courseID, "Bacteria")
	result := submitQuiz(t, quizID, student2Token, false)
	assert.Equal(t, 0.0, result["score"])
	assert.Equal(t, false, result["passed"])

	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/courses/%d/certificate-request", courseID), student2Token, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	reasons, ok := body["reasons"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, reasons, "Quiz not passed: Bacteria")
}

func submitAssignmentText(t *testing.T, assignmentID uint, token, text string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("text", text))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST",
		fmt.Sprintf("/api/assignments/%d/submit", assignmentID), &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", token)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
}
