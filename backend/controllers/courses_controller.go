package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/quantumdemo/sna/backend/config"
	"github.com/quantumdemo/sna/backend/models"
	"github.com/quantumdemo/sna/backend/utils"
	"gorm.io/gorm"
)

type CoursesController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewCoursesController(db *gorm.DB, cfg *config.Config) *CoursesController {
	return &CoursesController{DB: db, Cfg: cfg}
}

// CreateCourse registers an unapproved course and its chat room in one
// transaction. The room is created locked-open with speech enabled; it only
// becomes reachable to students once enrollments are approved.
func (cc *CoursesController) CreateCourse(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, cc.DB, cc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if user.Role != models.RoleInstructor {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only instructors can create courses",
		})
	}

	var input struct {
		Title            string `json:"title"`
		Description      string `json:"description"`
		FinalExamEnabled *bool  `json:"final_exam_enabled"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}
	if input.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Title is required",
		})
	}

	course := models.Course{
		InstructorID: user.ID,
		Title:        input.Title,
		Description:  input.Description,
	}
	if input.FinalExamEnabled != nil {
		course.FinalExamEnabled = *input.FinalExamEnabled
	} else {
		course.FinalExamEnabled = true
	}

	err = cc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&course).Error; err != nil {
			return err
		}
		room := models.ChatRoom{
			Name:          course.Title,
			RoomType:      models.RoomCourse,
			CourseID:      &course.ID,
			SpeechEnabled: true,
		}
		return tx.Create(&room).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create course",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Course created",
		"course": fiber.Map{
			"id":                 course.ID,
			"title":              course.Title,
			"approved":           course.Approved,
			"final_exam_enabled": course.FinalExamEnabled,
		},
	})
}

func (cc *CoursesController) ListCourses(c *fiber.Ctx) error {
	var courses []models.Course
	cc.DB.Where("approved = ?", true).Find(&courses)

	var result []fiber.Map
	for _, course := range courses {
		result = append(result, fiber.Map{
			"id":          course.ID,
			"title":       course.Title,
			"description": course.Description,
			"instructor":  course.InstructorID,
			"cover_image": course.CoverImage,
		})
	}
	return c.JSON(result)
}

func (cc *CoursesController) GetCourse(c *fiber.Ctx) error {
	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid course ID",
		})
	}

	var course models.Course
	if err := cc.DB.Preload("Modules", func(db *gorm.DB) *gorm.DB {
		return db.Order("\"order\" asc")
	}).Preload("Modules.Quiz").Preload("Modules.Assignment").First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Course not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	return c.JSON(fiber.Map{
		"id":                 course.ID,
		"title":              course.Title,
		"description":        course.Description,
		"instructor":         course.InstructorID,
		"approved":           course.Approved,
		"final_exam_enabled": course.FinalExamEnabled,
		"modules":            course.Modules,
	})
}

func (cc *CoursesController) AddModule(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, cc.DB, cc.Cfg)
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

	course, ok := cc.ownedCourse(c, user, uint(courseID))
	if !ok {
		return nil
	}

	var input struct {
		Title string `json:"title"`
	}
	if err := c.BodyParser(&input); err != nil || input.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Title is required",
		})
	}

	var count int64
	cc.DB.Model(&models.CourseModule{}).Where("course_id = ?", course.ID).Count(&count)

	module := models.CourseModule{
		CourseID: course.ID,
		Title:    input.Title,
		Order:    int(count) + 1,
	}
	if err := cc.DB.Create(&module).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create module",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Module added",
		"module":  module,
	})
}

// Enroll files a pending enrollment. Re-enrolling while pending or approved
// is rejected; a rejected student may apply again.
func (cc *CoursesController) Enroll(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, cc.DB, cc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if user.Role != models.RoleStudent {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only students can enroll",
		})
	}

	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid course ID",
		})
	}

	var course models.Course
	if err := cc.DB.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Course not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if !course.Approved {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Course is not open for enrollment",
		})
	}

	var existing models.Enrollment
	err = cc.DB.Where("user_id = ? AND course_id = ?", user.ID, course.ID).First(&existing).Error
	if err == nil {
		if existing.Status == models.EnrollmentRejected {
			existing.Status = models.EnrollmentPending
			existing.RejectionReason = ""
			if err := cc.DB.Save(&existing).Error; err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Could not enroll",
				})
			}
			return c.JSON(fiber.Map{"message": "Enrollment requested"})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "You are already enrolled in this course",
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	enrollment := models.Enrollment{UserID: user.ID, CourseID: course.ID}
	if err := cc.DB.Create(&enrollment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not enroll",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Enrollment requested",
	})
}

func (cc *CoursesController) ListEnrollments(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, cc.DB, cc.Cfg)
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

	if _, ok := cc.ownedCourse(c, user, uint(courseID)); !ok {
		return nil
	}

	var enrollments []models.Enrollment
	cc.DB.Where("course_id = ?", courseID).Find(&enrollments)

	var result []fiber.Map
	for _, e := range enrollments {
		var student models.User
		if err := cc.DB.First(&student, e.UserID).Error; err != nil {
			continue
		}
		result = append(result, fiber.Map{
			"enrollment_id": e.ID,
			"user_id":       student.ID,
			"name":          student.Name,
			"email":         student.Email,
			"status":        e.Status,
		})
	}
	return c.JSON(result)
}

// ReviewEnrollment approves or rejects a pending enrollment.
func (cc *CoursesController) ReviewEnrollment(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, cc.DB, cc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	enrollmentID, err := strconv.Atoi(c.Params("enrollmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid enrollment ID",
		})
	}

	var enrollment models.Enrollment
	if err := cc.DB.First(&enrollment, enrollmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Enrollment not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	if _, ok := cc.ownedCourse(c, user, enrollment.CourseID); !ok {
		return nil
	}

	var input struct {
		Approve bool   `json:"approve"`
		Reason  string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	if input.Approve {
		enrollment.Status = models.EnrollmentApproved
		enrollment.RejectionReason = ""
	} else {
		enrollment.Status = models.EnrollmentRejected
		enrollment.RejectionReason = input.Reason
	}

	if err := cc.DB.Save(&enrollment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update enrollment",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Enrollment updated",
		"status":  enrollment.Status,
	})
}

// ownedCourse loads the course and enforces instructor ownership; admins
// pass. On failure it writes the error response and returns false.
func (cc *CoursesController) ownedCourse(c *fiber.Ctx, user models.User, courseID uint) (models.Course, bool) {
	var course models.Course
	if err := cc.DB.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Course not found",
			})
		} else {
			_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not query database",
			})
		}
		return course, false
	}

	if user.Role != models.RoleAdmin && course.InstructorID != user.ID {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You do not own this course",
		})
		return course, false
	}
	return course, true
}
