package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/quantumdemo/sna/backend/config"
	"github.com/quantumdemo/sna/backend/models"
	"github.com/quantumdemo/sna/backend/scoring"
	"github.com/quantumdemo/sna/backend/utils"
	"gorm.io/gorm"
)

// GradingController is the instructor side of exam attempts: reviewing
// answers, awarding marks for the manually graded types, releasing results
// and ruling on violation appeals.
type GradingController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewGradingController(db *gorm.DB, cfg *config.Config) *GradingController {
	return &GradingController{DB: db, Cfg: cfg}
}

func (gc *GradingController) ListSubmissions(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, gc.DB, gc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	examID, err := strconv.Atoi(c.Params("examId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid exam ID",
		})
	}

	if _, ok := gc.ownedExamByID(c, user, uint(examID)); !ok {
		return nil
	}

	var submissions []models.ExamSubmission
	gc.DB.Where("final_exam_id = ?", examID).Order("id asc").Find(&submissions)

	var result []fiber.Map
	for _, s := range submissions {
		var student models.User
		if err := gc.DB.First(&student, s.StudentID).Error; err != nil {
			continue
		}
		entry := fiber.Map{
			"submission_id":  s.ID,
			"student_id":     student.ID,
			"student_name":   student.Name,
			"attempt_number": s.AttemptNumber,
			"status":         s.Status,
			"locked":         s.Locked,
			"appeal_status":  s.AppealStatus,
			"submitted_at":   s.SubmittedAt,
		}
		if s.Score != nil {
			entry["score"] = *s.Score
		}
		result = append(result, entry)
	}
	return c.JSON(result)
}

// GetSubmission returns the full attempt for review, including the correct
// answers and any violation log.
func (gc *GradingController) GetSubmission(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, gc.DB, gc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	submission, exam, ok := gc.ownedSubmission(c, user)
	if !ok {
		return nil
	}

	var answers []models.Answer
	gc.DB.Where("exam_submission_id = ?", submission.ID).Find(&answers)

	var violations []models.ExamViolation
	gc.DB.Where("submission_id = ?", submission.ID).Order("id asc").Find(&violations)

	return c.JSON(fiber.Map{
		"submission_id":  submission.ID,
		"student_id":     submission.StudentID,
		"attempt_number": submission.AttemptNumber,
		"status":         submission.Status,
		"locked":         submission.Locked,
		"score":          submission.Score,
		"appeal_text":    submission.AppealText,
		"appeal_status":  submission.AppealStatus,
		"questions":      exam.Questions,
		"answers":        answers,
		"violations":     violations,
	})
}

// Grade records instructor marks for the manually graded answers, rescores
// the attempt and optionally releases it in the same call.
func (gc *GradingController) Grade(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, gc.DB, gc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	submission, exam, ok := gc.ownedSubmission(c, user)
	if !ok {
		return nil
	}
	if submission.Status != models.SubmissionPendingReview {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Only submissions pending review can be graded",
		})
	}

	var input struct {
		Marks []struct {
			AnswerID     uint    `json:"answer_id"`
			MarksAwarded float64 `json:"marks_awarded"`
			Feedback     string  `json:"feedback"`
		} `json:"marks"`
		Release bool   `json:"release"`
		Remarks string `json:"remarks"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	byID := make(map[uint]models.Question, len(exam.Questions))
	for _, q := range exam.Questions {
		byID[q.ID] = q
	}

	var answers []models.Answer
	gc.DB.Where("exam_submission_id = ?", submission.ID).Find(&answers)
	answerByID := make(map[uint]*models.Answer, len(answers))
	for i := range answers {
		answerByID[answers[i].ID] = &answers[i]
	}

	for _, m := range input.Marks {
		answer, ok := answerByID[m.AnswerID]
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Mark references an answer outside this submission",
			})
		}
		q, ok := byID[answer.QuestionID]
		if !ok {
			continue
		}
		if q.QuestionType.AutoGraded() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Auto-graded answers cannot be overridden",
			})
		}
		if m.MarksAwarded < 0 || m.MarksAwarded > q.Marks {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Marks awarded must be between 0 and the question's marks",
			})
		}
		marks := m.MarksAwarded
		answer.MarksAwarded = &marks
		answer.Feedback = m.Feedback
	}

	var awarded float64
	for i := range answers {
		if answers[i].MarksAwarded != nil {
			awarded += *answers[i].MarksAwarded
		}
	}
	score := scoring.Percentage(awarded, scoring.TotalMarks(exam.Questions))
	submission.Score = &score
	submission.InstructorRemarks = input.Remarks
	if input.Release {
		submission.Status = models.SubmissionReleased
	}

	err = gc.DB.Transaction(func(tx *gorm.DB) error {
		for i := range answers {
			if err := tx.Save(&answers[i]).Error; err != nil {
				return err
			}
		}
		return tx.Save(&submission).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save grades",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Submission graded",
		"score":   score,
		"status":  submission.Status,
	})
}

// Release publishes a reviewed result to the student.
func (gc *GradingController) Release(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, gc.DB, gc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	submission, _, ok := gc.ownedSubmission(c, user)
	if !ok {
		return nil
	}
	if submission.Status != models.SubmissionPendingReview {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Only submissions pending review can be released",
		})
	}

	submission.Status = models.SubmissionReleased
	if err := gc.DB.Save(&submission).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not release result",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Result released",
	})
}

// HandleAppeal rules on a pending violation appeal. Accepting unlocks the
// attempt and moves it to pending_review for normal grading; rejecting
// leaves it locked either way.
func (gc *GradingController) HandleAppeal(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, gc.DB, gc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	submission, _, ok := gc.ownedSubmission(c, user)
	if !ok {
		return nil
	}
	if submission.AppealStatus != models.AppealPending {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "No pending appeal on this submission",
		})
	}

	var input struct {
		Accept  bool   `json:"accept"`
		Remarks string `json:"remarks"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	if input.Accept {
		submission.AppealStatus = models.AppealAccepted
		submission.Locked = false
		submission.Status = models.SubmissionPendingReview
	} else {
		submission.AppealStatus = models.AppealRejected
	}
	submission.InstructorRemarks = input.Remarks

	if err := gc.DB.Save(&submission).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update appeal",
		})
	}

	return c.JSON(fiber.Map{
		"message":       "Appeal handled",
		"appeal_status": submission.AppealStatus,
		"locked":        submission.Locked,
	})
}

func (gc *GradingController) ownedSubmission(c *fiber.Ctx, user models.User) (models.ExamSubmission, models.FinalExam, bool) {
	var submission models.ExamSubmission
	var exam models.FinalExam

	submissionID, err := strconv.Atoi(c.Params("submissionId"))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid submission ID",
		})
		return submission, exam, false
	}

	if err := gc.DB.First(&submission, submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Submission not found",
			})
		} else {
			_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not query database",
			})
		}
		return submission, exam, false
	}

	exam, ok := gc.ownedExamByID(c, user, submission.FinalExamID)
	return submission, exam, ok
}

func (gc *GradingController) ownedExamByID(c *fiber.Ctx, user models.User, examID uint) (models.FinalExam, bool) {
	var exam models.FinalExam
	if err := gc.DB.Preload("Questions.Choices").First(&exam, examID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Exam not found",
			})
		} else {
			_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not query database",
			})
		}
		return exam, false
	}

	var course models.Course
	if err := gc.DB.First(&course, exam.CourseID).Error; err != nil {
		_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
		return exam, false
	}
	if user.Role != models.RoleAdmin && course.InstructorID != user.ID {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You do not own this course",
		})
		return exam, false
	}
	return exam, true
}
