package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/quantumdemo/sna/backend/chat"
	"github.com/quantumdemo/sna/backend/config"
	"github.com/quantumdemo/sna/backend/models"
	"github.com/quantumdemo/sna/backend/policy"
	"github.com/quantumdemo/sna/backend/services"
	"github.com/quantumdemo/sna/backend/utils"
	"gorm.io/gorm"
)

// ChatController is the HTTP side of chat: room management, history,
// moderation. Real-time traffic runs over the websocket handler; the two
// share the hub so moderation actions reach connected clients.
type ChatController struct {
	DB     *gorm.DB
	Cfg    *config.Config
	Events *chat.Handler
	Files  services.FileStore
}

func NewChatController(db *gorm.DB, cfg *config.Config, events *chat.Handler, files services.FileStore) *ChatController {
	return &ChatController{DB: db, Cfg: cfg, Events: events, Files: files}
}

// ListRooms returns every room the caller can access, with unread counts,
// most recently active first.
func (chc *ChatController) ListRooms(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, chc.DB, chc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var rooms []models.ChatRoom
	chc.DB.Order("last_message_timestamp desc nulls last").Find(&rooms)

	var result []fiber.Map
	for _, room := range rooms {
		rc, err := chc.roomContext(user, room)
		if err != nil {
			continue
		}
		if !policy.CanAccessRoom(user, rc) {
			continue
		}

		result = append(result, fiber.Map{
			"id":           room.ID,
			"name":         room.Name,
			"room_type":    room.RoomType,
			"course_id":    room.CourseID,
			"is_locked":    room.IsLocked,
			"cover_image":  room.CoverImage,
			"unread_count": chc.unreadCount(user.ID, room.ID),
			"last_message": room.LastMessageTimestamp,
		})
	}
	return c.JSON(result)
}

// CreateRoom makes a general, public or private room. Course rooms are
// created with their course, never here. Public rooms get a join token.
func (chc *ChatController) CreateRoom(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, chc.DB, chc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if user.Role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only administrators can create rooms",
		})
	}

	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		RoomType    string `json:"room_type"`
	}
	if err := c.BodyParser(&input); err != nil || input.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Room name is required",
		})
	}

	roomType := models.RoomType(input.RoomType)
	switch roomType {
	case models.RoomGeneral, models.RoomPublic, models.RoomPrivate:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid room type",
		})
	}

	room := models.ChatRoom{
		Name:          input.Name,
		Description:   input.Description,
		RoomType:      roomType,
		CreatedByID:   &user.ID,
		SpeechEnabled: true,
	}
	if roomType == models.RoomPublic {
		token := uuid.NewString()
		room.JoinToken = &token
	}

	if err := chc.DB.Create(&room).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create room",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Room created",
		"room_id":    room.ID,
		"join_token": room.JoinToken,
	})
}

// JoinByToken enrolls the caller as a member of a public room.
func (chc *ChatController) JoinByToken(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, chc.DB, chc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	token := c.Params("token")
	var room models.ChatRoom
	if err := chc.DB.Where("join_token = ?", token).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Room not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	member := models.ChatRoomMember{ChatRoomID: room.ID, UserID: user.ID}
	if err := chc.DB.Create(&member).Error; err != nil {
		// Already a member; the unique index makes this idempotent.
		return c.JSON(fiber.Map{
			"message": "Already a member",
			"room_id": room.ID,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Joined room",
		"room_id": room.ID,
	})
}

// History returns the room's 50 most recent messages in chronological
// order, with sender details and reactions attached.
func (chc *ChatController) History(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, chc.DB, chc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	room, ok := chc.accessibleRoom(c, user)
	if !ok {
		return nil
	}

	var messages []models.ChatMessage
	chc.DB.Where("room_id = ?", room.ID).Order("id desc").Limit(50).
		Preload("Reactions").Find(&messages)

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	result := make([]fiber.Map, 0, len(messages))
	for _, m := range messages {
		var sender models.User
		if err := chc.DB.First(&sender, m.UserID).Error; err != nil {
			continue
		}

		reactions := make([]fiber.Map, 0, len(m.Reactions))
		for _, r := range m.Reactions {
			var reactor models.User
			if err := chc.DB.First(&reactor, r.UserID).Error; err != nil {
				continue
			}
			reactions = append(reactions, fiber.Map{
				"user_name": reactor.Name,
				"reaction":  r.Reaction,
			})
		}

		pic := sender.ProfilePic
		if pic == "" {
			pic = "default.jpg"
		}
		result = append(result, fiber.Map{
			"message_id":       m.ID,
			"room_id":          m.RoomID,
			"user_id":          sender.ID,
			"user_name":        sender.Name,
			"user_profile_pic": pic,
			"content":          m.Content,
			"file_path":        m.FilePath,
			"file_name":        m.FileName,
			"is_pinned":        m.IsPinned,
			"replied_to_id":    m.RepliedToID,
			"timestamp":        m.CreatedAt.UTC().Format(time.RFC3339),
			"reactions":        reactions,
		})
	}
	return c.JSON(result)
}

func (chc *ChatController) Members(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, chc.DB, chc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	room, ok := chc.accessibleRoom(c, user)
	if !ok {
		return nil
	}

	var result []fiber.Map
	if room.RoomType == models.RoomCourse && room.CourseID != nil {
		// Course rooms are membered by approved enrollment, plus the
		// instructor.
		var course models.Course
		if err := chc.DB.First(&course, *room.CourseID).Error; err == nil {
			var instructor models.User
			if err := chc.DB.First(&instructor, course.InstructorID).Error; err == nil {
				result = append(result, fiber.Map{
					"user_id": instructor.ID,
					"name":    instructor.Name,
					"role":    models.RoomRoleInstructor,
					"muted":   false,
				})
			}
		}

		var enrollments []models.Enrollment
		chc.DB.Where("course_id = ? AND status = ?", *room.CourseID, models.EnrollmentApproved).
			Find(&enrollments)
		for _, e := range enrollments {
			var student models.User
			if err := chc.DB.First(&student, e.UserID).Error; err != nil {
				continue
			}
			result = append(result, fiber.Map{
				"user_id": student.ID,
				"name":    student.Name,
				"role":    models.RoomRoleMember,
				"muted":   chc.isMuted(student.ID, room.ID),
			})
		}
	} else {
		var members []models.ChatRoomMember
		chc.DB.Where("chat_room_id = ?", room.ID).Find(&members)
		for _, m := range members {
			var member models.User
			if err := chc.DB.First(&member, m.UserID).Error; err != nil {
				continue
			}
			result = append(result, fiber.Map{
				"user_id": member.ID,
				"name":    member.Name,
				"role":    m.RoleInRoom,
				"muted":   chc.isMuted(member.ID, room.ID),
			})
		}
	}
	return c.JSON(result)
}

// Mute silences a user in one room. Muting an already muted user reports
// the existing state rather than erroring.
func (chc *ChatController) Mute(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, chc.DB, chc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	room, ok := chc.moderatedRoom(c, user)
	if !ok {
		return nil
	}

	targetID, err := strconv.Atoi(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID",
		})
	}

	if chc.isMuted(uint(targetID), room.ID) {
		return c.JSON(fiber.Map{
			"message": "User already muted",
		})
	}

	mute := models.MutedUser{
		UserID:    uint(targetID),
		RoomID:    room.ID,
		MutedByID: user.ID,
	}
	if err := chc.DB.Create(&mute).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not mute user",
		})
	}

	return c.JSON(fiber.Map{
		"message": "User muted",
	})
}

func (chc *ChatController) Unmute(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, chc.DB, chc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	room, ok := chc.moderatedRoom(c, user)
	if !ok {
		return nil
	}

	targetID, err := strconv.Atoi(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID",
		})
	}

	chc.DB.Where("user_id = ? AND room_id = ?", targetID, room.ID).
		Delete(&models.MutedUser{})

	return c.JSON(fiber.Map{
		"message": "User unmuted",
	})
}

// ToggleLock flips the room lock. Locked rooms reject student messages;
// admins and the owning instructor still speak.
func (chc *ChatController) ToggleLock(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, chc.DB, chc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	room, ok := chc.moderatedRoom(c, user)
	if !ok {
		return nil
	}

	room.IsLocked = !room.IsLocked
	if err := chc.DB.Save(&room).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update room",
		})
	}

	return c.JSON(fiber.Map{
		"message":   "Room updated",
		"is_locked": room.IsLocked,
	})
}

// RemoveMember drops a user from a room and tells connected clients.
func (chc *ChatController) RemoveMember(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, chc.DB, chc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	room, ok := chc.moderatedRoom(c, user)
	if !ok {
		return nil
	}

	targetID, err := strconv.Atoi(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID",
		})
	}

	chc.DB.Where("chat_room_id = ? AND user_id = ?", room.ID, targetID).
		Delete(&models.ChatRoomMember{})

	chc.Events.BroadcastMemberRemoved(room.ID, uint(targetID))

	return c.JSON(fiber.Map{
		"message": "Member removed",
	})
}

// ReportedMessages lists open reports for administrators.
func (chc *ChatController) ReportedMessages(c *fiber.Ctx) error {
	var reports []models.ReportedMessage
	chc.DB.Order("id desc").Find(&reports)

	var result []fiber.Map
	for _, r := range reports {
		var message models.ChatMessage
		if err := chc.DB.First(&message, r.MessageID).Error; err != nil {
			continue
		}
		var sender models.User
		var reporter models.User
		if err := chc.DB.First(&sender, message.UserID).Error; err != nil {
			continue
		}
		if err := chc.DB.First(&reporter, r.ReportedByID).Error; err != nil {
			continue
		}
		result = append(result, fiber.Map{
			"report_id":   r.ID,
			"message_id":  message.ID,
			"room_id":     message.RoomID,
			"content":     message.Content,
			"sender":      sender.Name,
			"reported_by": reporter.Name,
			"reported_at": r.CreatedAt,
		})
	}
	return c.JSON(result)
}

// UploadFile stores a chat attachment and returns its path for the
// subsequent websocket message event.
func (chc *ChatController) UploadFile(c *fiber.Ctx) error {
	user, err := utils.CurrentUser(c, chc.DB, chc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if _, ok := chc.accessibleRoom(c, user); !ok {
		return nil
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File is required",
		})
	}

	// 10 MB cap on chat attachments.
	path, err := chc.Files.Save(file, "chat", services.ChatFileExtensions, 10<<20)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"file_path": path,
		"file_name": file.Filename,
	})
}

func (chc *ChatController) accessibleRoom(c *fiber.Ctx, user models.User) (models.ChatRoom, bool) {
	room, ok := chc.loadRoom(c)
	if !ok {
		return room, false
	}

	rc, err := chc.roomContext(user, room)
	if err != nil || !policy.CanAccessRoom(user, rc) {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You do not have access to this room.",
		})
		return room, false
	}
	return room, true
}

func (chc *ChatController) moderatedRoom(c *fiber.Ctx, user models.User) (models.ChatRoom, bool) {
	room, ok := chc.loadRoom(c)
	if !ok {
		return room, false
	}

	rc, err := chc.roomContext(user, room)
	if err != nil || !policy.CanModerate(user, rc) {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You cannot moderate this room",
		})
		return room, false
	}
	return room, true
}

func (chc *ChatController) loadRoom(c *fiber.Ctx) (models.ChatRoom, bool) {
	var room models.ChatRoom
	roomID, err := strconv.Atoi(c.Params("roomId"))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid room ID",
		})
		return room, false
	}

	if err := chc.DB.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Room not found",
			})
		} else {
			_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not query database",
			})
		}
		return room, false
	}
	return room, true
}

func (chc *ChatController) roomContext(user models.User, room models.ChatRoom) (policy.RoomContext, error) {
	rc := policy.RoomContext{Room: room}

	if room.CourseID != nil {
		var course models.Course
		if err := chc.DB.First(&course, *room.CourseID).Error; err == nil {
			rc.Course = &course

			var enrolled int64
			chc.DB.Model(&models.Enrollment{}).
				Where("user_id = ? AND course_id = ? AND status = ?",
					user.ID, course.ID, models.EnrollmentApproved).
				Count(&enrolled)
			rc.IsEnrolled = enrolled > 0
		}
	}

	var members int64
	chc.DB.Model(&models.ChatRoomMember{}).
		Where("chat_room_id = ? AND user_id = ?", room.ID, user.ID).
		Count(&members)
	rc.IsMember = members > 0

	rc.IsMuted = chc.isMuted(user.ID, room.ID)
	return rc, nil
}

func (chc *ChatController) isMuted(userID, roomID uint) bool {
	var count int64
	chc.DB.Model(&models.MutedUser{}).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Count(&count)
	return count > 0
}

func (chc *ChatController) unreadCount(userID, roomID uint) int64 {
	var lastRead models.UserLastRead
	err := chc.DB.Where("user_id = ? AND room_id = ?", userID, roomID).First(&lastRead).Error

	query := chc.DB.Model(&models.ChatMessage{}).Where("room_id = ?", roomID)
	if err == nil {
		query = query.Where("created_at > ?", lastRead.LastReadTimestamp)
	}

	var count int64
	query.Count(&count)
	return count
}
