package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/quantumdemo/sna/backend/config"
	"github.com/quantumdemo/sna/backend/models"
	"gorm.io/gorm"
)

// AdminController covers platform administration: instructor approval,
// course approval and user bans.
type AdminController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewAdminController(db *gorm.DB, cfg *config.Config) *AdminController {
	return &AdminController{DB: db, Cfg: cfg}
}

func (ad *AdminController) ListPendingInstructors(c *fiber.Ctx) error {
	var instructors []models.User
	ad.DB.Where("role = ? AND approved = ?", models.RoleInstructor, false).Find(&instructors)

	var result []fiber.Map
	for _, u := range instructors {
		result = append(result, fiber.Map{
			"id":    u.ID,
			"name":  u.Name,
			"email": u.Email,
		})
	}
	return c.JSON(result)
}

func (ad *AdminController) ApproveInstructor(c *fiber.Ctx) error {
	userID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID",
		})
	}

	var user models.User
	if err := ad.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	if user.Role != models.RoleInstructor {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "User is not an instructor",
		})
	}

	user.Approved = true
	if err := ad.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not approve instructor",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Instructor approved",
	})
}

func (ad *AdminController) ApproveCourse(c *fiber.Ctx) error {
	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid course ID",
		})
	}

	var course models.Course
	if err := ad.DB.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Course not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	course.Approved = true
	if err := ad.DB.Save(&course).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not approve course",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Course approved",
	})
}

// BanUser flips the ban flag. Banned users fail every authenticated request
// and their in-flight chat frames start dropping on the next event.
func (ad *AdminController) BanUser(c *fiber.Ctx) error {
	userID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID",
		})
	}

	var input struct {
		Banned bool `json:"banned"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	var user models.User
	if err := ad.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	if user.Role == models.RoleAdmin {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot ban an administrator",
		})
	}

	user.IsBanned = input.Banned
	if err := ad.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update user",
		})
	}

	return c.JSON(fiber.Map{
		"message": "User updated",
		"banned":  user.IsBanned,
	})
}
