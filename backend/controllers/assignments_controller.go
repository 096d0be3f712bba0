package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/quantumdemo/sna/backend/config"
	"github.com/quantumdemo/sna/backend/models"
	"github.com/quantumdemo/sna/backend/services"
	"github.com/quantumdemo/sna/backend/utils"
	"gorm.io/gorm"
)

type AssignmentsController struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Files services.FileStore
}

func NewAssignmentsController(db *gorm.DB, cfg *config.Config, files services.FileStore) *AssignmentsController {
	return &AssignmentsController{DB: db, Cfg: cfg, Files: files}
}

func (asc *AssignmentsController) CreateAssignment(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, asc.DB, asc.Cfg)
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

	module, ok := asc.ownedModule(c, user, uint(moduleID))
	if !ok {
		return nil
	}

	var input struct {
		Title          string `json:"title"`
		Description    string `json:"description"`
		SubmissionType string `json:"submission_type"`
		MaxFileSize    *int   `json:"max_file_size"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}
	if input.Title == "" || input.Description == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Title and description are required",
		})
	}
	switch input.SubmissionType {
	case "", "file", "text", "both":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid submission type",
		})
	}

	assignment := models.Assignment{
		ModuleID:       module.ID,
		Title:          input.Title,
		Description:    input.Description,
		SubmissionType: input.SubmissionType,
		MaxFileSize:    input.MaxFileSize,
	}
	if assignment.SubmissionType == "" {
		assignment.SubmissionType = "file"
	}

	if err := asc.DB.Create(&assignment).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Module already has an assignment",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Assignment created",
		"assignment": assignment,
	})
}

// Submit accepts multipart form data: an optional "file" part and an
// optional "text" field, constrained by the assignment's submission type.
// Resubmitting replaces the student's previous work until it is graded.
func (asc *AssignmentsController) Submit(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, asc.DB, asc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if user.Role != models.RoleStudent {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only students can submit assignments",
		})
	}

	assignmentID, err := strconv.Atoi(c.Params("assignmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid assignment ID",
		})
	}

	var assignment models.Assignment
	if err := asc.DB.First(&assignment, assignmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Assignment not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var module models.CourseModule
	if err := asc.DB.First(&module, assignment.ModuleID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	var enrolled int64
	asc.DB.Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND status = ?",
			user.ID, module.CourseID, models.EnrollmentApproved).
		Count(&enrolled)
	if enrolled == 0 {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not enrolled in this course.",
		})
	}

	text := c.FormValue("text")
	var filePath string
	if file, err := c.FormFile("file"); err == nil {
		if assignment.SubmissionType == "text" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "This assignment does not accept file submissions",
			})
		}
		var maxBytes int64
		if assignment.MaxFileSize != nil {
			maxBytes = int64(*assignment.MaxFileSize) * 1024
		}
		filePath, err = asc.Files.Save(file, "assignments", services.ChatFileExtensions, maxBytes)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}
	if text != "" && assignment.SubmissionType == "file" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "This assignment does not accept text submissions",
		})
	}
	if text == "" && filePath == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Submission is empty",
		})
	}

	var submission models.AssignmentSubmission
	err = asc.DB.Where("assignment_id = ? AND student_id = ?", assignment.ID, user.ID).
		First(&submission).Error
	switch {
	case err == nil:
		if submission.Grade != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "This assignment has already been graded",
			})
		}
		if filePath != "" {
			submission.FilePath = filePath
		}
		if text != "" {
			submission.TextSubmission = text
		}
		submission.SubmittedAt = time.Now().UTC()
		if err := asc.DB.Save(&submission).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not save submission",
			})
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		submission = models.AssignmentSubmission{
			AssignmentID:   assignment.ID,
			StudentID:      user.ID,
			FilePath:       filePath,
			TextSubmission: text,
			SubmittedAt:    time.Now().UTC(),
		}
		if err := asc.DB.Create(&submission).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not save submission",
			})
		}
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Assignment submitted",
	})
}

func (asc *AssignmentsController) ListSubmissions(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, asc.DB, asc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	assignmentID, err := strconv.Atoi(c.Params("assignmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid assignment ID",
		})
	}

	var assignment models.Assignment
	if err := asc.DB.First(&assignment, assignmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Assignment not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if _, ok := asc.ownedModule(c, user, assignment.ModuleID); !ok {
		return nil
	}

	var submissions []models.AssignmentSubmission
	asc.DB.Where("assignment_id = ?", assignment.ID).Find(&submissions)

	var result []fiber.Map
	for _, s := range submissions {
		var student models.User
		if err := asc.DB.First(&student, s.StudentID).Error; err != nil {
			continue
		}
		result = append(result, fiber.Map{
			"submission_id": s.ID,
			"student_id":    student.ID,
			"student_name":  student.Name,
			"file_path":     s.FilePath,
			"text":          s.TextSubmission,
			"grade":         s.Grade,
			"submitted_at":  s.SubmittedAt,
		})
	}
	return c.JSON(result)
}

// GradeSubmission records a letter grade. The passing set is a/b/c/pass,
// case-insensitive; anything else counts as not approved for certificate
// eligibility.
func (asc *AssignmentsController) GradeSubmission(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, asc.DB, asc.Cfg)
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

	var submission models.AssignmentSubmission
	if err := asc.DB.First(&submission, submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Submission not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var assignment models.Assignment
	if err := asc.DB.First(&assignment, submission.AssignmentID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if _, ok := asc.ownedModule(c, user, assignment.ModuleID); !ok {
		return nil
	}

	var input struct {
		Grade string `json:"grade"`
	}
	if err := c.BodyParser(&input); err != nil || input.Grade == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Grade is required",
		})
	}

	submission.Grade = &input.Grade
	if err := asc.DB.Save(&submission).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save grade",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Submission graded",
		"grade":   input.Grade,
	})
}

func (asc *AssignmentsController) ownedModule(c *fiber.Ctx, user models.User, moduleID uint) (models.CourseModule, bool) {
	var module models.CourseModule
	if err := asc.DB.First(&module, moduleID).Error; err != nil {
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
	if err := asc.DB.First(&course, module.CourseID).Error; err != nil {
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
