package chat

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/quantumdemo/sna/backend/config"
	"github.com/quantumdemo/sna/backend/models"
	"github.com/quantumdemo/sna/backend/policy"
	"github.com/quantumdemo/sna/backend/utils"
	"gorm.io/gorm"
)

// Handler owns one websocket endpoint: it reads client events, applies the
// authorization policy and persists before fanning out.
type Handler struct {
	DB     *gorm.DB
	Cfg    *config.Config
	Hub    *Hub
	Logger *log.Logger
}

func NewHandler(db *gorm.DB, cfg *config.Config, hub *Hub, logger *log.Logger) *Handler {
	return &Handler{DB: db, Cfg: cfg, Hub: hub, Logger: logger}
}

// Session wraps a connection with a write lock; the hub broadcasts from
// other goroutines and websocket writes are not concurrency-safe.
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *Session) WriteFrame(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(f)
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type roomRef struct {
	RoomID uint `json:"room_id"`
}

type messageData struct {
	RoomID      uint   `json:"room_id"`
	Content     string `json:"content"`
	FilePath    string `json:"file_path"`
	FileName    string `json:"file_name"`
	RepliedToID *uint  `json:"replied_to_id"`
}

type messageRef struct {
	MessageID uint `json:"message_id"`
}

type reactionData struct {
	MessageID uint   `json:"message_id"`
	Reaction  string `json:"reaction"`
}

type ReactionPayload struct {
	UserName string `json:"user_name"`
	Reaction string `json:"reaction"`
}

// MessagePayload is the enriched broadcast form of one chat message.
type MessagePayload struct {
	MessageID      uint              `json:"message_id"`
	RoomID         uint              `json:"room_id"`
	UserID         uint              `json:"user_id"`
	UserName       string            `json:"user_name"`
	UserProfilePic string            `json:"user_profile_pic"`
	Content        string            `json:"content"`
	FilePath       string            `json:"file_path,omitempty"`
	FileName       string            `json:"file_name,omitempty"`
	Timestamp      string            `json:"timestamp"`
	IsPinned       bool              `json:"is_pinned"`
	RepliedToID    *uint             `json:"replied_to_id,omitempty"`
	Reactions      []ReactionPayload `json:"reactions"`
}

// ServeConn runs the read loop for one connection until it closes.
// Unauthenticated sessions stay connected but every event is dropped
// without a reply, so room existence never leaks.
func (h *Handler) ServeConn(conn *websocket.Conn) {
	session := &Session{conn: conn}
	defer func() {
		h.Hub.Drop(session)
		_ = conn.Close()
	}()

	user, authenticated := conn.Locals("chat_user").(models.User)

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		if !authenticated {
			continue
		}

		h.HandleEvent(session, user, frame.Event, frame.Data)
	}
}

// HandleEvent dispatches one decoded client event on behalf of user.
// Unknown events and unauthorized ones are dropped without a reply.
func (h *Handler) HandleEvent(client Client, user models.User, event string, data json.RawMessage) {
	switch event {
	case "join":
		h.onJoin(client, user, data)
	case "leave":
		h.onLeave(client, data)
	case "message":
		h.onMessage(client, user, data)
	case "delete_message":
		h.onDeleteMessage(user, data)
	case "pin_message":
		h.onPinMessage(user, data)
	case "report_message":
		h.onReportMessage(client, user, data)
	case "react_to_message":
		h.onReactToMessage(user, data)
	}
}

func (h *Handler) onJoin(client Client, user models.User, data json.RawMessage) {
	var ref roomRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.RoomID == 0 {
		return
	}

	rc, err := h.roomContext(user, ref.RoomID)
	if err != nil {
		return
	}
	if !policy.CanAccessRoom(user, rc) {
		return
	}

	h.Hub.Subscribe(ref.RoomID, client)
	h.touchLastRead(user.ID, ref.RoomID)
}

func (h *Handler) onLeave(client Client, data json.RawMessage) {
	var ref roomRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.RoomID == 0 {
		return
	}
	h.Hub.Unsubscribe(ref.RoomID, client)
}

func (h *Handler) onMessage(client Client, user models.User, data json.RawMessage) {
	var msg messageData
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.RoomID == 0 || (msg.Content == "" && msg.FilePath == "") {
		return
	}

	rc, err := h.roomContext(user, msg.RoomID)
	if err != nil {
		return
	}

	if err := policy.CanSendMessage(user, rc); err != nil {
		// Mute and lock denials are user-visible; access denials stay silent.
		if errors.Is(err, policy.ErrMuted) || errors.Is(err, policy.ErrRoomLocked) {
			h.emitError(client, err.Error())
		}
		return
	}

	if msg.RepliedToID != nil {
		var parent models.ChatMessage
		if err := h.DB.First(&parent, *msg.RepliedToID).Error; err != nil || parent.RoomID != msg.RoomID {
			return
		}
	}

	record := models.ChatMessage{
		RoomID:      msg.RoomID,
		UserID:      user.ID,
		Content:     utils.FilterProfanity(msg.Content, h.Cfg.BannedWords),
		FilePath:    msg.FilePath,
		FileName:    msg.FileName,
		RepliedToID: msg.RepliedToID,
	}
	if err := h.DB.Create(&record).Error; err != nil {
		h.logf("chat: persist message: %v", err)
		return
	}

	now := time.Now().UTC()
	h.DB.Model(&models.ChatRoom{}).Where("id = ?", msg.RoomID).
		Update("last_message_timestamp", now)

	h.Hub.Broadcast(msg.RoomID, Frame{Event: "message", Data: MessagePayload{
		MessageID:      record.ID,
		RoomID:         record.RoomID,
		UserID:         user.ID,
		UserName:       user.Name,
		UserProfilePic: profilePicOrDefault(user),
		Content:        record.Content,
		FilePath:       record.FilePath,
		FileName:       record.FileName,
		Timestamp:      record.CreatedAt.UTC().Format(time.RFC3339),
		IsPinned:       record.IsPinned,
		RepliedToID:    record.RepliedToID,
		Reactions:      []ReactionPayload{},
	}})
}

func (h *Handler) onDeleteMessage(user models.User, data json.RawMessage) {
	var ref messageRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.MessageID == 0 {
		return
	}

	var message models.ChatMessage
	if err := h.DB.First(&message, ref.MessageID).Error; err != nil {
		return
	}

	rc, err := h.roomContext(user, message.RoomID)
	if err != nil {
		return
	}
	if !policy.CanModerate(user, rc) {
		return
	}

	if err := h.DB.Delete(&message).Error; err != nil {
		h.logf("chat: delete message %d: %v", ref.MessageID, err)
		return
	}

	h.Hub.Broadcast(message.RoomID, Frame{Event: "message_deleted", Data: map[string]interface{}{
		"message_id": message.ID,
		"room_id":    message.RoomID,
	}})
}

func (h *Handler) onPinMessage(user models.User, data json.RawMessage) {
	var ref messageRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.MessageID == 0 {
		return
	}

	var message models.ChatMessage
	if err := h.DB.First(&message, ref.MessageID).Error; err != nil {
		return
	}

	rc, err := h.roomContext(user, message.RoomID)
	if err != nil {
		return
	}
	if !policy.CanModerate(user, rc) {
		return
	}

	message.IsPinned = !message.IsPinned
	if err := h.DB.Save(&message).Error; err != nil {
		h.logf("chat: pin message %d: %v", ref.MessageID, err)
		return
	}

	h.Hub.Broadcast(message.RoomID, Frame{Event: "message_pinned", Data: map[string]interface{}{
		"message_id": message.ID,
		"is_pinned":  message.IsPinned,
		"room_id":    message.RoomID,
	}})
}

func (h *Handler) onReportMessage(client Client, user models.User, data json.RawMessage) {
	var ref messageRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.MessageID == 0 {
		return
	}

	var message models.ChatMessage
	if err := h.DB.First(&message, ref.MessageID).Error; err != nil {
		return
	}

	var existing models.ReportedMessage
	err := h.DB.Where("message_id = ? AND reported_by_id = ?", ref.MessageID, user.ID).
		First(&existing).Error
	if err == nil {
		h.emitError(client, "You have already reported this message.")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}

	report := models.ReportedMessage{MessageID: ref.MessageID, ReportedByID: user.ID}
	if err := h.DB.Create(&report).Error; err != nil {
		h.logf("chat: report message %d: %v", ref.MessageID, err)
		return
	}

	h.emitStatus(client, "Message has been reported to administrators.")
}

func (h *Handler) onReactToMessage(user models.User, data json.RawMessage) {
	var react reactionData
	if err := json.Unmarshal(data, &react); err != nil {
		return
	}
	if react.MessageID == 0 || react.Reaction == "" {
		return
	}
	h.ToggleReaction(user, react.MessageID, react.Reaction)
}

// ToggleReaction adds the (message, user, emoji) reaction, or removes it when
// it already exists, then broadcasts the message's full reaction list.
func (h *Handler) ToggleReaction(user models.User, messageID uint, emoji string) {
	var message models.ChatMessage
	if err := h.DB.First(&message, messageID).Error; err != nil {
		return
	}

	var existing models.MessageReaction
	err := h.DB.Where("message_id = ? AND user_id = ? AND reaction = ?",
		messageID, user.ID, emoji).First(&existing).Error
	switch {
	case err == nil:
		if err := h.DB.Delete(&existing).Error; err != nil {
			h.logf("chat: remove reaction: %v", err)
			return
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		reaction := models.MessageReaction{
			MessageID: messageID,
			UserID:    user.ID,
			Reaction:  emoji,
		}
		if err := h.DB.Create(&reaction).Error; err != nil {
			h.logf("chat: add reaction: %v", err)
			return
		}
	default:
		return
	}

	// Broadcast the full reaction list, not a delta; clients stay trivially
	// consistent at the cost of payload size.
	h.Hub.Broadcast(message.RoomID, Frame{Event: "message_reacted", Data: map[string]interface{}{
		"message_id": message.ID,
		"room_id":    message.RoomID,
		"reactions":  h.reactionList(message.ID),
	}})
}

// BroadcastMemberRemoved lets the HTTP moderation endpoints notify a room.
func (h *Handler) BroadcastMemberRemoved(roomID, userID uint) {
	h.Hub.Broadcast(roomID, Frame{Event: "member_removed", Data: map[string]interface{}{
		"room_id": roomID,
		"user_id": userID,
	}})
}

func (h *Handler) roomContext(user models.User, roomID uint) (policy.RoomContext, error) {
	var rc policy.RoomContext

	var room models.ChatRoom
	if err := h.DB.First(&room, roomID).Error; err != nil {
		return rc, err
	}
	rc.Room = room

	if room.CourseID != nil {
		var course models.Course
		if err := h.DB.First(&course, *room.CourseID).Error; err == nil {
			rc.Course = &course

			var enrollments int64
			h.DB.Model(&models.Enrollment{}).
				Where("user_id = ? AND course_id = ? AND status = ?",
					user.ID, course.ID, models.EnrollmentApproved).
				Count(&enrollments)
			rc.IsEnrolled = enrollments > 0
		}
	}

	var members int64
	h.DB.Model(&models.ChatRoomMember{}).
		Where("chat_room_id = ? AND user_id = ?", roomID, user.ID).
		Count(&members)
	rc.IsMember = members > 0

	var mutes int64
	h.DB.Model(&models.MutedUser{}).
		Where("room_id = ? AND user_id = ?", roomID, user.ID).
		Count(&mutes)
	rc.IsMuted = mutes > 0

	return rc, nil
}

func (h *Handler) touchLastRead(userID, roomID uint) {
	now := time.Now().UTC()
	var lastRead models.UserLastRead
	err := h.DB.Where("user_id = ? AND room_id = ?", userID, roomID).First(&lastRead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.DB.Create(&models.UserLastRead{UserID: userID, RoomID: roomID, LastReadTimestamp: now})
		return
	}
	if err == nil {
		lastRead.LastReadTimestamp = now
		h.DB.Save(&lastRead)
	}
}

func (h *Handler) reactionList(messageID uint) []ReactionPayload {
	var reactions []models.MessageReaction
	h.DB.Where("message_id = ?", messageID).Order("id asc").Find(&reactions)

	list := make([]ReactionPayload, 0, len(reactions))
	for _, r := range reactions {
		var reactor models.User
		if err := h.DB.First(&reactor, r.UserID).Error; err != nil {
			continue
		}
		list = append(list, ReactionPayload{UserName: reactor.Name, Reaction: r.Reaction})
	}
	return list
}

func (h *Handler) emitError(client Client, msg string) {
	_ = client.WriteFrame(Frame{Event: "error", Data: map[string]string{"msg": msg}})
}

func (h *Handler) emitStatus(client Client, msg string) {
	_ = client.WriteFrame(Frame{Event: "status", Data: map[string]string{"msg": msg}})
}

func (h *Handler) logf(format string, args ...interface{}) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
	}
}

func profilePicOrDefault(user models.User) string {
	if user.ProfilePic == "" {
		return "default.jpg"
	}
	return user.ProfilePic
}
