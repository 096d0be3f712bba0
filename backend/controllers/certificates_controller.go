package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/quantumdemo/sna/backend/config"
	"github.com/quantumdemo/sna/backend/models"
	"github.com/quantumdemo/sna/backend/services"
	"github.com/quantumdemo/sna/backend/utils"
	"gorm.io/gorm"
)

type CertificatesController struct {
	DB        *gorm.DB
	Cfg       *config.Config
	Generator services.CertificateGenerator
}

func NewCertificatesController(db *gorm.DB, cfg *config.Config, gen services.CertificateGenerator) *CertificatesController {
	return &CertificatesController{DB: db, Cfg: cfg, Generator: gen}
}

func (cec *CertificatesController) ListRequests(c *fiber.Ctx) error {
	var requests []models.CertificateRequest
	cec.DB.Where("status = ?", models.RequestPending).Order("id asc").Find(&requests)

	var result []fiber.Map
	for _, r := range requests {
		var student models.User
		var course models.Course
		if err := cec.DB.First(&student, r.UserID).Error; err != nil {
			continue
		}
		if err := cec.DB.First(&course, r.CourseID).Error; err != nil {
			continue
		}
		result = append(result, fiber.Map{
			"request_id":   r.ID,
			"user_id":      student.ID,
			"student_name": student.Name,
			"course_id":    course.ID,
			"course_title": course.Title,
			"requested_at": r.RequestedAt,
		})
	}
	return c.JSON(result)
}

// ApproveRequest issues the certificate: a unique UID, a generated
// artifact, and the request closed in one transaction.
func (cec *CertificatesController) ApproveRequest(c *fiber.Ctx) error {
	requestID, err := strconv.Atoi(c.Params("requestId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request ID",
		})
	}

	var request models.CertificateRequest
	if err := cec.DB.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Request not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if request.Status != models.RequestPending {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Request has already been reviewed",
		})
	}

	var student models.User
	var course models.Course
	if err := cec.DB.First(&student, request.UserID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if err := cec.DB.First(&course, request.CourseID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	now := time.Now().UTC()
	certificate := models.Certificate{
		UserID:         request.UserID,
		CourseID:       request.CourseID,
		CertificateUID: uuid.NewString(),
		IssuedAt:       now,
	}

	path, err := cec.Generator.Generate(certificate, student, course)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not generate certificate",
		})
	}
	certificate.FilePath = path

	err = cec.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&certificate).Error; err != nil {
			return err
		}
		request.Status = models.RequestApproved
		request.ReviewedAt = &now
		return tx.Save(&request).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not approve request",
		})
	}

	return c.JSON(fiber.Map{
		"message":         "Certificate issued",
		"certificate_uid": certificate.CertificateUID,
		"file_path":       certificate.FilePath,
	})
}

// RejectRequest closes the request with a mandatory reason; the student may
// not re-request afterwards.
func (cec *CertificatesController) RejectRequest(c *fiber.Ctx) error {
	requestID, err := strconv.Atoi(c.Params("requestId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request ID",
		})
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil || input.Reason == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Rejection reason is required",
		})
	}

	var request models.CertificateRequest
	if err := cec.DB.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Request not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if request.Status != models.RequestPending {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Request has already been reviewed",
		})
	}

	now := time.Now().UTC()
	request.Status = models.RequestRejected
	request.RejectionReason = input.Reason
	request.ReviewedAt = &now
	if err := cec.DB.Save(&request).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not reject request",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Request rejected",
	})
}

func (cec *CertificatesController) MyCertificates(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, cec.DB, cec.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var certificates []models.Certificate
	cec.DB.Where("user_id = ?", user.ID).Find(&certificates)

	var result []fiber.Map
	for _, cert := range certificates {
		var course models.Course
		if err := cec.DB.First(&course, cert.CourseID).Error; err != nil {
			continue
		}
		result = append(result, fiber.Map{
			"certificate_uid": cert.CertificateUID,
			"course_title":    course.Title,
			"issued_at":       cert.IssuedAt,
			"file_path":       cert.FilePath,
		})
	}
	return c.JSON(result)
}

// Verify is public: anyone holding a certificate UID can confirm it.
func (cec *CertificatesController) Verify(c *fiber.Ctx) error {
	uid := c.Params("uid")

	var certificate models.Certificate
	if err := cec.DB.Where("certificate_uid = ?", uid).First(&certificate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Certificate not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var student models.User
	var course models.Course
	if err := cec.DB.First(&student, certificate.UserID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if err := cec.DB.First(&course, certificate.CourseID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	return c.JSON(fiber.Map{
		"valid":           true,
		"certificate_uid": certificate.CertificateUID,
		"student_name":    student.Name,
		"course_title":    course.Title,
		"issued_at":       certificate.IssuedAt,
	})
}
