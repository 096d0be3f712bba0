package controllers

import (
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"github.com/quantumdemo/sna/backend/config"
	"github.com/quantumdemo/sna/backend/models"
	"github.com/quantumdemo/sna/backend/policy"
	"github.com/quantumdemo/sna/backend/scoring"
	"github.com/quantumdemo/sna/backend/utils"
	"gorm.io/gorm"
)

type ExamsController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewExamsController(db *gorm.DB, cfg *config.Config) *ExamsController {
	return &ExamsController{DB: db, Cfg: cfg}
}

type examSettingsInput struct {
	Title            *string `json:"title"`
	TimeLimitMinutes *int    `json:"time_limit_minutes"`
	PassMark         *int    `json:"pass_mark"`
	AllowedAttempts  *int    `json:"allowed_attempts"`
	StartDate        *string `json:"start_date"`
	EndDate          *string `json:"end_date"`
	Instructions     *string `json:"instructions"`

	ShuffleQuestions         *bool `json:"shuffle_questions"`
	DisableBacktracking      *bool `json:"disable_backtracking"`
	FullScreenEnforced       *bool `json:"full_screen_enforced"`
	TabSwitchDetection       *bool `json:"tab_switch_detection"`
	DisableCopyPaste         *bool `json:"disable_copy_paste"`
	WebcamMonitoring         *bool `json:"webcam_monitoring"`
	ReleaseScoresImmediately *bool `json:"release_scores_immediately"`
	CalculatorAllowed        *bool `json:"calculator_allowed"`
}

// CreateExam attaches the final exam to a course. One exam per course,
// enforced by the unique index; courses with the final exam disabled
// cannot get one.
func (ec *ExamsController) CreateExam(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, ec.DB, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid course ID",
		})
	}

	var course models.Course
	if err := ec.DB.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Course not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if user.Role != models.RoleAdmin && course.InstructorID != user.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You do not own this course",
		})
	}
	if !course.FinalExamEnabled {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Final exam is disabled for this course",
		})
	}

	var input examSettingsInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	exam := models.FinalExam{CourseID: course.ID, PassMark: 50, AllowedAttempts: 1}
	if err := applyExamSettings(&exam, input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := ec.DB.Create(&exam).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Course already has a final exam",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Exam created",
		"exam":    exam,
	})
}

// UpdateSettings edits exam configuration. Settings stay editable after
// publication; only the question set freezes once attempts exist.
func (ec *ExamsController) UpdateSettings(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, ec.DB, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	exam, ok := ec.ownedExam(c, user)
	if !ok {
		return nil
	}

	var input examSettingsInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	if err := applyExamSettings(&exam, input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := ec.DB.Save(&exam).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update exam",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Exam updated",
		"exam":    exam,
	})
}

// Publish opens the exam to eligible students. An exam without questions
// cannot be published.
func (ec *ExamsController) Publish(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, ec.DB, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	exam, ok := ec.ownedExam(c, user)
	if !ok {
		return nil
	}

	var questions int64
	ec.DB.Model(&models.Question{}).Where("exam_id = ?", exam.ID).Count(&questions)
	if questions == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot publish an exam without questions",
		})
	}

	exam.IsPublished = true
	if err := ec.DB.Save(&exam).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not publish exam",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Exam published",
	})
}

// AddQuestion appends a question of any supported type. The question set
// freezes once any student has an attempt on record.
func (ec *ExamsController) AddQuestion(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, ec.DB, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	exam, ok := ec.ownedExam(c, user)
	if !ok {
		return nil
	}

	var attempts int64
	ec.DB.Model(&models.ExamSubmission{}).Where("final_exam_id = ?", exam.ID).Count(&attempts)
	if attempts > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Cannot modify questions after students have attempted the exam",
		})
	}

	var input struct {
		QuestionType    string  `json:"question_type"`
		QuestionText    string  `json:"question_text"`
		Marks           float64 `json:"marks"`
		TrueFalseAnswer *bool   `json:"true_false_answer"`
		Choices         []struct {
			Text      string `json:"text"`
			IsCorrect bool   `json:"is_correct"`
		} `json:"choices"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	qt := models.QuestionType(input.QuestionType)
	if !qt.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid question type",
		})
	}
	if input.QuestionText == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question text is required",
		})
	}
	correct := 0
	for _, ch := range input.Choices {
		if ch.IsCorrect {
			correct++
		}
	}
	if err := validateQuestionShape(qt, len(input.Choices), correct, input.TrueFalseAnswer); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var seq int64
	ec.DB.Model(&models.Question{}).Where("exam_id = ?", exam.ID).Count(&seq)

	question := models.Question{
		ExamID:          &exam.ID,
		QuestionType:    qt,
		QuestionText:    input.QuestionText,
		Marks:           input.Marks,
		TrueFalseAnswer: input.TrueFalseAnswer,
		SequenceOrder:   int(seq) + 1,
	}
	if question.Marks <= 0 {
		question.Marks = 1
	}
	for _, ch := range input.Choices {
		question.Choices = append(question.Choices, models.Choice{
			ChoiceText: ch.Text,
			IsCorrect:  ch.IsCorrect,
		})
	}

	if err := ec.DB.Create(&question).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create question",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Question added",
		"question": question,
	})
}

// Start opens an attempt. An in_progress attempt is resumed, not
// duplicated; otherwise the attempt-gating policy decides.
func (ec *ExamsController) Start(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, ec.DB, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if user.Role != models.RoleStudent {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only students can take exams",
		})
	}

	examID, err := strconv.Atoi(c.Params("examId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid exam ID",
		})
	}

	var exam models.FinalExam
	if err := ec.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence_order asc")
	}).Preload("Questions.Choices").First(&exam, examID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Exam not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var existing models.ExamSubmission
	err = ec.DB.Where("final_exam_id = ? AND student_id = ? AND status IN ?",
		exam.ID, user.ID,
		[]models.SubmissionStatus{models.SubmissionInProgress, models.SubmissionLocked}).
		First(&existing).Error
	if err == nil {
		if existing.Locked {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Your exam has been locked due to a proctoring violation.",
			})
		}
		return c.JSON(ec.startPayload(exam, existing))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var enrolled int64
	ec.DB.Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND status = ?",
			user.ID, exam.CourseID, models.EnrollmentApproved).
		Count(&enrolled)

	var prior int64
	ec.DB.Model(&models.ExamSubmission{}).
		Where("final_exam_id = ? AND student_id = ?", exam.ID, user.ID).
		Count(&prior)

	if err := policy.CanStartExam(exam, enrolled > 0, int(prior), time.Now().UTC()); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	submission := models.ExamSubmission{
		FinalExamID:   exam.ID,
		StudentID:     user.ID,
		AttemptNumber: int(prior) + 1,
		Status:        models.SubmissionInProgress,
	}
	if err := ec.DB.Create(&submission).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not start exam",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(ec.startPayload(exam, submission))
}

func (ec *ExamsController) startPayload(exam models.FinalExam, sub models.ExamSubmission) fiber.Map {
	questions := exam.Questions
	if exam.ShuffleQuestions {
		// Seeded by the attempt so a resumed session sees the same order.
		r := rand.New(rand.NewSource(int64(sub.ID)))
		questions = append([]models.Question(nil), exam.Questions...)
		r.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	payload := make([]fiber.Map, 0, len(questions))
	for _, q := range questions {
		choices := make([]fiber.Map, 0, len(q.Choices))
		for _, ch := range q.Choices {
			choices = append(choices, fiber.Map{
				"id":   ch.ID,
				"text": ch.ChoiceText,
			})
		}
		payload = append(payload, fiber.Map{
			"id":            q.ID,
			"question_type": q.QuestionType,
			"question_text": q.QuestionText,
			"marks":         q.Marks,
			"choices":       choices,
		})
	}

	return fiber.Map{
		"submission_id":      sub.ID,
		"attempt_number":     sub.AttemptNumber,
		"time_limit_minutes": exam.TimeLimitMinutes,
		"instructions":       exam.Instructions,
		"proctoring": fiber.Map{
			"shuffle_questions":    exam.ShuffleQuestions,
			"disable_backtracking": exam.DisableBacktracking,
			"full_screen_enforced": exam.FullScreenEnforced,
			"tab_switch_detection": exam.TabSwitchDetection,
			"disable_copy_paste":   exam.DisableCopyPaste,
			"webcam_monitoring":    exam.WebcamMonitoring,
			"calculator_allowed":   exam.CalculatorAllowed,
		},
		"questions": payload,
	}
}

// LogViolation records a proctoring event against the caller's in-progress
// attempt and locks it. The first violation locks and logs; later reports
// against an already locked attempt return the same response without
// another audit row.
func (ec *ExamsController) LogViolation(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, ec.DB, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	submissionID, err := strconv.Atoi(c.Params("submissionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid submission ID",
		})
	}

	var input struct {
		Details string `json:"details"`
	}
	if err := c.BodyParser(&input); err != nil || input.Details == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Violation details are required",
		})
	}

	var submission models.ExamSubmission
	if err := ec.DB.First(&submission, submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Submission not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if submission.StudentID != user.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "This is not your submission",
		})
	}
	if submission.Status != models.SubmissionInProgress && submission.Status != models.SubmissionLocked {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Submission is not in progress",
		})
	}

	if !submission.Locked {
		err = ec.DB.Transaction(func(tx *gorm.DB) error {
			violation := models.ExamViolation{
				SubmissionID: submission.ID,
				Details:      input.Details,
			}
			if err := tx.Create(&violation).Error; err != nil {
				return err
			}
			submission.Locked = true
			submission.Status = models.SubmissionLocked
			return tx.Save(&submission).Error
		})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not log violation",
			})
		}
	}

	return c.JSON(fiber.Map{
		"status": "violation logged",
		"locked": true,
	})
}

// Submit finalizes the attempt: typed answers are validated against their
// questions, auto-graded types are scored, and the attempt moves to
// pending_review (or straight to released when the exam is fully
// auto-graded and configured to release immediately).
func (ec *ExamsController) Submit(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, ec.DB, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	submissionID, err := strconv.Atoi(c.Params("submissionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid submission ID",
		})
	}

	var submission models.ExamSubmission
	if err := ec.DB.First(&submission, submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Submission not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if submission.StudentID != user.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "This is not your submission",
		})
	}
	if submission.Locked {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Your exam has been locked due to a proctoring violation.",
		})
	}
	if submission.Status != models.SubmissionInProgress {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Submission has already been finalized",
		})
	}

	var exam models.FinalExam
	if err := ec.DB.Preload("Questions.Choices").First(&exam, submission.FinalExamID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var input struct {
		Answers []struct {
			QuestionID        uint    `json:"question_id"`
			SelectedChoiceID  *uint   `json:"selected_choice_id"`
			SelectedChoiceIDs []uint  `json:"selected_choice_ids"`
			TrueFalseAnswer   *bool   `json:"true_false_answer"`
			TextAnswer        string  `json:"text_answer"`
			FilePath          string  `json:"file_path"`
		} `json:"answers"`
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
	var awarded float64
	seen := make(map[uint]bool)
	for _, a := range input.Answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Answer references a question outside this exam",
			})
		}
		if seen[a.QuestionID] {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Duplicate answer for a question",
			})
		}
		seen[a.QuestionID] = true

		resp := scoring.Response{
			SelectedChoiceID:  a.SelectedChoiceID,
			SelectedChoiceIDs: a.SelectedChoiceIDs,
			TrueFalse:         a.TrueFalseAnswer,
			Text:              a.TextAnswer,
			FilePath:          a.FilePath,
		}
		if err := scoring.Validate(q, resp); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		answer := models.Answer{
			ExamSubmissionID: submission.ID,
			QuestionID:       q.ID,
			SelectedChoiceID: a.SelectedChoiceID,
			TrueFalseAnswer:  a.TrueFalseAnswer,
			TextAnswer:       a.TextAnswer,
			FilePath:         a.FilePath,
		}
		if len(a.SelectedChoiceIDs) > 0 {
			ids := make(pq.Int64Array, 0, len(a.SelectedChoiceIDs))
			for _, id := range a.SelectedChoiceIDs {
				ids = append(ids, int64(id))
			}
			answer.SelectedChoiceIDs = ids
		}
		if q.QuestionType.AutoGraded() {
			marks := scoring.AutoScore(q, resp)
			answer.MarksAwarded = &marks
			awarded += marks
		}
		answers = append(answers, answer)
	}

	score := scoring.Percentage(awarded, scoring.TotalMarks(exam.Questions))

	allAuto := true
	for _, q := range exam.Questions {
		if !q.QuestionType.AutoGraded() {
			allAuto = false
			break
		}
	}

	now := time.Now().UTC()
	submission.SubmittedAt = &now
	submission.Score = &score
	if allAuto && exam.ReleaseScoresImmediately {
		submission.Status = models.SubmissionReleased
	} else {
		submission.Status = models.SubmissionPendingReview
	}

	err = ec.DB.Transaction(func(tx *gorm.DB) error {
		if len(answers) > 0 {
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}
		return tx.Save(&submission).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save submission",
		})
	}

	result := fiber.Map{
		"message": "Exam submitted",
		"status":  submission.Status,
	}
	if submission.Status == models.SubmissionReleased {
		result["score"] = score
		result["passed"] = score >= float64(exam.PassMark)
	}
	return c.JSON(result)
}

// Appeal files a request to unlock a violation-locked attempt. One appeal
// per exam, across all of the student's attempts.
func (ec *ExamsController) Appeal(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, ec.DB, ec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	submissionID, err := strconv.Atoi(c.Params("submissionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid submission ID",
		})
	}

	var input struct {
		AppealText string `json:"appeal_text"`
	}
	if err := c.BodyParser(&input); err != nil || input.AppealText == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Appeal text is required",
		})
	}

	var submission models.ExamSubmission
	if err := ec.DB.First(&submission, submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Submission not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if submission.StudentID != user.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "This is not your submission",
		})
	}
	if !submission.Locked {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Only locked submissions can be appealed",
		})
	}

	var appealed int64
	ec.DB.Model(&models.ExamSubmission{}).
		Where("final_exam_id = ? AND student_id = ? AND appeal_status <> ''",
			submission.FinalExamID, user.ID).
		Count(&appealed)
	if appealed > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "You have already submitted an appeal for this exam.",
		})
	}

	submission.AppealText = input.AppealText
	submission.AppealStatus = models.AppealPending
	if err := ec.DB.Save(&submission).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save appeal",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Appeal submitted",
	})
}

// MyResult returns the student's latest attempt. Scores and feedback stay
// hidden until the attempt is released.
func (ec *ExamsController) MyResult(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, ec.DB, ec.Cfg)
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

	var submission models.ExamSubmission
	if err := ec.DB.Where("final_exam_id = ? AND student_id = ?", examID, user.ID).
		Order("id desc").First(&submission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No attempts found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	result := fiber.Map{
		"submission_id":  submission.ID,
		"attempt_number": submission.AttemptNumber,
		"status":         submission.Status,
		"locked":         submission.Locked,
		"appeal_status":  submission.AppealStatus,
	}
	if submission.Status == models.SubmissionReleased {
		var exam models.FinalExam
		if err := ec.DB.First(&exam, submission.FinalExamID).Error; err == nil && submission.Score != nil {
			result["score"] = *submission.Score
			result["passed"] = *submission.Score >= float64(exam.PassMark)
			result["instructor_remarks"] = submission.InstructorRemarks
		}
	}
	return c.JSON(result)
}

func (ec *ExamsController) ownedExam(c *fiber.Ctx, user models.User) (models.FinalExam, bool) {
	var exam models.FinalExam
	examID, err := strconv.Atoi(c.Params("examId"))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid exam ID",
		})
		return exam, false
	}

	if err := ec.DB.First(&exam, examID).Error; err != nil {
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
	if err := ec.DB.First(&course, exam.CourseID).Error; err != nil {
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

func applyExamSettings(exam *models.FinalExam, input examSettingsInput) error {
	if input.Title != nil {
		exam.Title = *input.Title
	}
	if input.TimeLimitMinutes != nil {
		exam.TimeLimitMinutes = input.TimeLimitMinutes
	}
	if input.PassMark != nil {
		if *input.PassMark < 0 || *input.PassMark > 100 {
			return errors.New("Pass mark must be between 0 and 100")
		}
		exam.PassMark = *input.PassMark
	}
	if input.AllowedAttempts != nil {
		if *input.AllowedAttempts < 1 {
			return errors.New("Allowed attempts must be at least 1")
		}
		exam.AllowedAttempts = *input.AllowedAttempts
	}
	if input.Instructions != nil {
		exam.Instructions = *input.Instructions
	}
	if input.StartDate != nil {
		t, err := time.Parse(time.RFC3339, *input.StartDate)
		if err != nil {
			return errors.New("Invalid start date")
		}
		exam.StartDate = &t
	}
	if input.EndDate != nil {
		t, err := time.Parse(time.RFC3339, *input.EndDate)
		if err != nil {
			return errors.New("Invalid end date")
		}
		exam.EndDate = &t
	}
	if exam.StartDate != nil && exam.EndDate != nil && exam.EndDate.Before(*exam.StartDate) {
		return errors.New("End date must be after start date")
	}

	if input.ShuffleQuestions != nil {
		exam.ShuffleQuestions = *input.ShuffleQuestions
	}
	if input.DisableBacktracking != nil {
		exam.DisableBacktracking = *input.DisableBacktracking
	}
	if input.FullScreenEnforced != nil {
		exam.FullScreenEnforced = *input.FullScreenEnforced
	}
	if input.TabSwitchDetection != nil {
		exam.TabSwitchDetection = *input.TabSwitchDetection
	}
	if input.DisableCopyPaste != nil {
		exam.DisableCopyPaste = *input.DisableCopyPaste
	}
	if input.WebcamMonitoring != nil {
		exam.WebcamMonitoring = *input.WebcamMonitoring
	}
	if input.ReleaseScoresImmediately != nil {
		exam.ReleaseScoresImmediately = *input.ReleaseScoresImmediately
	}
	if input.CalculatorAllowed != nil {
		exam.CalculatorAllowed = *input.CalculatorAllowed
	}
	return nil
}
