package tests

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestRegister(t *testing.T) {
	status, body := doJSON(t, "POST", "/api/auth/register", "", fiber.Map{
		"name":     "New Student",
		"email":    "new.student@example.com",
		"password": "password123",
	})
	mustStatus(t, status, fiber.StatusCreated, body)
	assert.Equal(t, "Registration successful", body["message"])

	user := body["user"].(map[string]interface{})
	assert.Equal(t, "student", user["role"])
	assert.Equal(t, true, user["approved"])
}

func TestRegisterInstructorNeedsApproval(t *testing.T) {
	status, body := doJSON(t, "POST", "/api/auth/register", "", fiber.Map{
		"name":     "New Instructor",
		"email":    "new.instructor@example.com",
		"password": "password123",
		"role":     "instructor",
	})
	mustStatus(t, status, fiber.StatusCreated, body)
	assert.Equal(t, false, body["user"].(map[string]interface{})["approved"])

	// Login is refused until an admin approves the account.
	status, body = doJSON(t, "POST", "/api/auth/login", "", fiber.Map{
		"email":    "new.instructor@example.com",
		"password": "password123",
	})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Your instructor account is pending approval", body["error"])
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	status, body := doJSON(t, "POST", "/api/auth/register", "", fiber.Map{
		"name":     "Sneaky",
		"email":    "sneaky@example.com",
		"password": "password123",
		"role":     "admin",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid role", body["error"])
}

func TestLogin(t *testing.T) {
	status, body := doJSON(t, "POST", "/api/auth/login", "", fiber.Map{
		"email":    "student@example.com",
		"password": "password",
	})
	mustStatus(t, status, fiber.StatusOK, body)
	assert.NotEmpty(t, body["token"])

	status, body = doJSON(t, "POST", "/api/auth/login", "", fiber.Map{
		"email":    "student@example.com",
		"password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Invalid email or password", body["error"])
}

func TestGetProfile(t *testing.T) {
	status, body := doJSON(t, "GET", "/api/user/profile", studentToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, "Student", body["name"])
	assert.Equal(t, "student@example.com", body["email"])
}

func TestBannedUserRejected(t *testing.T) {
	status, body := doJSON(t, "POST", "/api/auth/register", "", fiber.Map{
		"name":     "Banned Soon",
		"email":    "banned@example.com",
		"password": "password123",
	})
	mustStatus(t, status, fiber.StatusCreated, body)
	userID := body["user"].(map[string]interface{})["id"].(float64)

	status, body = doJSON(t, "POST",
		"/api/admin/users/"+itoa(uint(userID))+"/ban", adminToken,
		fiber.Map{"banned": true})
	mustStatus(t, status, fiber.StatusOK, body)

	status, body = doJSON(t, "POST", "/api/auth/login", "", fiber.Map{
		"email":    "banned@example.com",
		"password": "password123",
	})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Your account has been banned.", body["error"])
}
