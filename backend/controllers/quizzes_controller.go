package controllers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/quantumdemo/sna/backend/config"
	"github.com/quantumdemo/sna/backend/models"
	"github.com/quantumdemo/sna/backend/scoring"
	"github.com/quantumdemo/sna/backend/utils"
	"gorm.io/gorm"
)

type QuizzesController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewQuizzesController(db *gorm.DB, cfg *config.Config) *QuizzesController {
	return &QuizzesController{DB: db, Cfg: cfg}
}

// CreateQuiz attaches a quiz to a module. One quiz per module; a second
// create is rejected by the unique index.
func (qc *QuizzesController) CreateQuiz(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, qc.DB, qc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	moduleID, err := strconv.Atoi(c.Params("moduleId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid module ID",
		})
	}

	module, ok := qc.ownedModule(c, user, uint(moduleID))
	if !ok {
		return nil
	}

	var input struct {
		TimeLimitMinutes *int `json:"time_limit_minutes"`
		AttemptLimit     int  `json:"attempt_limit"`
		PassMark         int  `json:"pass_mark"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	quiz := models.Quiz{
		ModuleID:         module.ID,
		TimeLimitMinutes: input.TimeLimitMinutes,
		AttemptLimit:     input.AttemptLimit,
		PassMark:         input.PassMark,
	}
	if quiz.AttemptLimit <= 0 {
		quiz.AttemptLimit = 1
	}
	if quiz.PassMark <= 0 {
		quiz.PassMark = 70
	}

	if err := qc.DB.Create(&quiz).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Module already has a quiz",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Quiz created",
		"quiz":    quiz,
	})
}

// AddQuestion appends an auto-graded question with its choices. Quizzes
// accept only the auto-graded types; free-form work belongs to assignments.
func (qc *QuizzesController) AddQuestion(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, qc.DB, qc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	quizID, err := strconv.Atoi(c.Params("quizId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid quiz ID",
		})
	}

	var quiz models.Quiz
	if err := qc.DB.First(&quiz, quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Quiz not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	if _, ok := qc.ownedModule(c, user, quiz.ModuleID); !ok {
		return nil
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
	if !qt.Valid() || !qt.AutoGraded() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid question type for a quiz",
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
	qc.DB.Model(&models.Question{}).Where("quiz_id = ?", quiz.ID).Count(&seq)

	question := models.Question{
		QuizID:          &quiz.ID,
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

	if err := qc.DB.Create(&question).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create question",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Question added",
		"question": question,
	})
}

// GetQuiz returns the quiz for taking; correct answers are stripped.
func (qc *QuizzesController) GetQuiz(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, qc.DB, qc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	quizID, err := strconv.Atoi(c.Params("quizId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid quiz ID",
		})
	}

	var quiz models.Quiz
	if err := qc.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence_order asc")
	}).Preload("Questions.Choices").First(&quiz, quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Quiz not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var attempts int64
	qc.DB.Model(&models.QuizSubmission{}).
		Where("quiz_id = ? AND student_id = ?", quiz.ID, user.ID).Count(&attempts)

	questions := make([]fiber.Map, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		choices := make([]fiber.Map, 0, len(q.Choices))
		for _, ch := range q.Choices {
			choices = append(choices, fiber.Map{
				"id":   ch.ID,
				"text": ch.ChoiceText,
			})
		}
		questions = append(questions, fiber.Map{
			"id":            q.ID,
			"question_type": q.QuestionType,
			"question_text": q.QuestionText,
			"marks":         q.Marks,
			"choices":       choices,
		})
	}

	return c.JSON(fiber.Map{
		"id":                 quiz.ID,
		"time_limit_minutes": quiz.TimeLimitMinutes,
		"attempt_limit":      quiz.AttemptLimit,
		"pass_mark":          quiz.PassMark,
		"attempts_used":      attempts,
		"questions":          questions,
	})
}

// Submit grades a quiz attempt immediately. Answers come keyed by question
// id; shape depends on the question type.
func (qc *QuizzesController) Submit(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, qc.DB, qc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if user.Role != models.RoleStudent {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only students can submit quizzes",
		})
	}

	quizID, err := strconv.Atoi(c.Params("quizId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid quiz ID",
		})
	}

	var quiz models.Quiz
	if err := qc.DB.Preload("Questions.Choices").First(&quiz, quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Quiz not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var module models.CourseModule
	if err := qc.DB.First(&module, quiz.ModuleID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	var enrolled int64
	qc.DB.Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND status = ?",
			user.ID, module.CourseID, models.EnrollmentApproved).
		Count(&enrolled)
	if enrolled == 0 {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not enrolled in this course.",
		})
	}

	var attempts int64
	qc.DB.Model(&models.QuizSubmission{}).
		Where("quiz_id = ? AND student_id = ?", quiz.ID, user.ID).Count(&attempts)
	if int(attempts) >= quiz.AttemptLimit {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You have reached the maximum number of attempts.",
		})
	}

	var input struct {
		Answers map[string]json.RawMessage `json:"answers"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	var awarded float64
	for _, q := range quiz.Questions {
		raw, ok := input.Answers[strconv.Itoa(int(q.ID))]
		if !ok {
			continue
		}
		resp, err := decodeQuizResponse(q, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		if err := scoring.Validate(q, resp); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		awarded += scoring.AutoScore(q, resp)
	}
	score := scoring.Percentage(awarded, scoring.TotalMarks(quiz.Questions))

	rawAnswers, err := json.Marshal(input.Answers)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	submission := models.QuizSubmission{
		QuizID:    quiz.ID,
		StudentID: user.ID,
		Answers:   string(rawAnswers),
		Score:     score,
	}
	if err := qc.DB.Create(&submission).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save submission",
		})
	}

	return c.JSON(fiber.Map{
		"message":   "Quiz submitted",
		"score":     score,
		"pass_mark": quiz.PassMark,
		"passed":    score >= float64(quiz.PassMark),
	})
}

func (qc *QuizzesController) ownedModule(c *fiber.Ctx, user models.User, moduleID uint) (models.CourseModule, bool) {
	var module models.CourseModule
	if err := qc.DB.First(&module, moduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Module not found",
			})
		} else {
			_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not query database",
			})
		}
		return module, false
	}

	var course models.Course
	if err := qc.DB.First(&course, module.CourseID).Error; err != nil {
		_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
		return module, false
	}

	if user.Role != models.RoleAdmin && course.InstructorID != user.ID {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You do not own this course",
		})
		return module, false
	}
	return module, true
}

func decodeQuizResponse(q models.Question, raw json.RawMessage) (scoring.Response, error) {
	var resp scoring.Response
	switch q.QuestionType {
	case models.QuestionMultipleChoiceSingle:
		var id uint
		if err := json.Unmarshal(raw, &id); err != nil {
			return resp, errors.New("Invalid answer format")
		}
		resp.SelectedChoiceID = &id
	case models.QuestionMultipleChoiceMultiple:
		var ids []uint
		if err := json.Unmarshal(raw, &ids); err != nil {
			return resp, errors.New("Invalid answer format")
		}
		resp.SelectedChoiceIDs = ids
	case models.QuestionTrueFalse:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return resp, errors.New("Invalid answer format")
		}
		resp.TrueFalse = &b
	default:
		return resp, errors.New("Invalid answer format")
	}
	return resp, nil
}
