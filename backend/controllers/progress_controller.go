package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/quantumdemo/sna/backend/config"
	"github.com/quantumdemo/sna/backend/models"
	"github.com/quantumdemo/sna/backend/progress"
	"github.com/quantumdemo/sna/backend/utils"
	"gorm.io/gorm"
)

type ProgressController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewProgressController(db *gorm.DB, cfg *config.Config) *ProgressController {
	return &ProgressController{DB: db, Cfg: cfg}
}

// GetCourseProgress reports per-module standing and certificate
// eligibility for the calling student.
func (pc *ProgressController) GetCourseProgress(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, pc.DB, pc.Cfg)
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

	course, ok := pc.enrolledCourse(c, user, uint(courseID))
	if !ok {
		return nil
	}

	snapshot, err := progress.Load(pc.DB, user, course)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	return c.JSON(progress.Evaluate(snapshot))
}

// Dashboard lists the student's enrolled courses with progress summaries
// and unread chat counts.
func (pc *ProgressController) Dashboard(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, pc.DB, pc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var enrollments []models.Enrollment
	pc.DB.Where("user_id = ? AND status = ?", user.ID, models.EnrollmentApproved).
		Find(&enrollments)

	var courses []fiber.Map
	for _, e := range enrollments {
		var course models.Course
		if err := pc.DB.First(&course, e.CourseID).Error; err != nil {
			continue
		}

		snapshot, err := progress.Load(pc.DB, user, course)
		if err != nil {
			continue
		}
		evaluated := progress.Evaluate(snapshot)

		entry := fiber.Map{
			"course_id":               course.ID,
			"title":                   course.Title,
			"all_prerequisites_met":   evaluated.AllPrerequisitesMet,
			"can_request_certificate": evaluated.CanRequestCertificate,
		}

		var room models.ChatRoom
		if err := pc.DB.Where("course_id = ?", course.ID).First(&room).Error; err == nil {
			entry["unread_messages"] = pc.unreadCount(user.ID, room.ID)
		}

		courses = append(courses, entry)
	}

	return c.JSON(fiber.Map{
		"courses": courses,
	})
}

// RequestCertificate files a certificate request once eligibility holds.
// Eligibility is recomputed here; the client's view is advisory only.
func (pc *ProgressController) RequestCertificate(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, pc.DB, pc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if user.Role != models.RoleStudent {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only students can request certificates",
		})
	}

	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid course ID",
		})
	}

	course, ok := pc.enrolledCourse(c, user, uint(courseID))
	if !ok {
		return nil
	}

	snapshot, err := progress.Load(pc.DB, user, course)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	evaluated := progress.Evaluate(snapshot)
	if !evaluated.CanRequestCertificate {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "You are not yet eligible for a certificate",
			"reasons": evaluated.Reasons,
		})
	}

	var existing models.CertificateRequest
	err = pc.DB.Where("user_id = ? AND course_id = ?", user.ID, course.ID).
		First(&existing).Error
	if err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "You have already requested a certificate for this course",
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	request := models.CertificateRequest{
		UserID:      user.ID,
		CourseID:    course.ID,
		RequestedAt: time.Now().UTC(),
	}
	if err := pc.DB.Create(&request).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create request",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Certificate requested",
	})
}

func (pc *ProgressController) unreadCount(userID, roomID uint) int64 {
	var lastRead models.UserLastRead
	err := pc.DB.Where("user_id = ? AND room_id = ?", userID, roomID).First(&lastRead).Error

	query := pc.DB.Model(&models.ChatMessage{}).Where("room_id = ?", roomID)
	if err == nil {
		query = query.Where("created_at > ?", lastRead.LastReadTimestamp)
	}

	var count int64
	query.Count(&count)
	return count
}

func (pc *ProgressController) enrolledCourse(c *fiber.Ctx, user models.User, courseID uint) (models.Course, bool) {
	var course models.Course
	if err := pc.DB.First(&course, courseID).Error; err != nil {
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

	if user.Role == models.RoleAdmin || course.InstructorID == user.ID {
		return course, true
	}

	var enrolled int64
	pc.DB.Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND status = ?",
			user.ID, course.ID, models.EnrollmentApproved).
		Count(&enrolled)
	if enrolled == 0 {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not enrolled in this course.",
		})
		return course, false
	}
	return course, true
}
