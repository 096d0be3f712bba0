package tests

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/quantumdemo/sna/backend/chat"
	"github.com/quantumdemo/sna/backend/models"
	"github.com/quantumdemo/sna/backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func courseRoom(t *testing.T, courseID uint) models.ChatRoom {
	t.Helper()
	var room models.ChatRoom
	require.NoError(t, db.Where("course_id = ?", courseID).First(&room).Error)
	return room
}

func TestCourseRoomCreatedWithCourse(t *testing.T) {
	courseID := newEnrolledCourse(t, "Ancient History", student, studentToken)
	room := courseRoom(t, courseID)
	assert.Equal(t, models.RoomCourse, room.RoomType)
	assert.Equal(t, "Ancient History", room.Name)
}

func TestRoomAccess(t *testing.T) {
	courseID := newEnrolledCourse(t, "Microeconomics", student, studentToken)
	room := courseRoom(t, courseID)

	// Enrolled student sees history; an outsider does not.
	status, _ := doJSONList(t, "GET",
		fmt.Sprintf("/api/chat/rooms/%d/messages", room.ID), studentToken)
	assert.Equal(t, fiber.StatusOK, status)

	status, body := doJSON(t, "GET",
		fmt.Sprintf("/api/chat/rooms/%d/messages", room.ID), student2Token, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "You do not have access to this room.", body["error"])
}

func TestHistoryChronological(t *testing.T) {
	courseID := newEnrolledCourse(t, "Astronomy", student, studentToken)
	room := courseRoom(t, courseID)

	for i := 1; i <= 3; i++ {
		db.Create(&models.ChatMessage{
			RoomID:  room.ID,
			UserID:  student.ID,
			Content: fmt.Sprintf("message %d", i),
		})
	}

	status, messages := doJSONList(t, "GET",
		fmt.Sprintf("/api/chat/rooms/%d/messages", room.ID), studentToken)
	assert.Equal(t, fiber.StatusOK, status)
	require.Len(t, messages, 3)
	assert.Equal(t, "message 1", messages[0]["content"])
	assert.Equal(t, "message 3", messages[2]["content"])
}

func TestMuteIdempotent(t *testing.T) {
	courseID := newEnrolledCourse(t, "Geology", student, studentToken)
	room := courseRoom(t, courseID)

	path := fmt.Sprintf("/api/chat/rooms/%d/mute/%d", room.ID, student.ID)
	status, body := doJSON(t, "POST", path, instructorToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, "User muted", body["message"])

	status, body = doJSON(t, "POST", path, instructorToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, "User already muted", body["message"])

	var mutes int64
	db.Model(&models.MutedUser{}).
		Where("user_id = ? AND room_id = ?", student.ID, room.ID).Count(&mutes)
	assert.Equal(t, int64(1), mutes)

	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/chat/rooms/%d/unmute/%d", room.ID, student.ID), instructorToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)

	db.Model(&models.MutedUser{}).
		Where("user_id = ? AND room_id = ?", student.ID, room.ID).Count(&mutes)
	assert.Equal(t, int64(0), mutes)
}

func TestStudentCannotModerate(t *testing.T) {
	courseID := newEnrolledCourse(t, "Statistics", student, studentToken)
	room := courseRoom(t, courseID)

	status, body := doJSON(t, "POST",
		fmt.Sprintf("/api/chat/rooms/%d/lock", room.ID), studentToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "You cannot moderate this room", body["error"])
}

func TestLockToggle(t *testing.T) {
	courseID := newEnrolledCourse(t, "Botany", student, studentToken)
	room := courseRoom(t, courseID)

	status, body := doJSON(t, "POST",
		fmt.Sprintf("/api/chat/rooms/%d/lock", room.ID), instructorToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, true, body["is_locked"])

	status, body = doJSON(t, "POST",
		fmt.Sprintf("/api/chat/rooms/%d/lock", room.ID), instructorToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, false, body["is_locked"])
}

func TestPublicRoomJoinByToken(t *testing.T) {
	status, body := doJSON(t, "POST", "/api/chat/rooms", adminToken, fiber.Map{
		"name":      "Campus Lounge",
		"room_type": "public",
	})
	mustStatus(t, status, fiber.StatusCreated, body)
	token := body["join_token"].(string)
	roomID := uint(body["room_id"].(float64))

	status, body = doJSON(t, "POST", "/api/chat/rooms/join/"+token, studentToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, "Joined room", body["message"])

	// Joining twice is harmless.
	status, body = doJSON(t, "POST", "/api/chat/rooms/join/"+token, studentToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)
	assert.Equal(t, "Already a member", body["message"])

	var members int64
	db.Model(&models.ChatRoomMember{}).
		Where("chat_room_id = ? AND user_id = ?", roomID, student.ID).Count(&members)
	assert.Equal(t, int64(1), members)
}

// frameRecorder captures frames the event loop writes to one client.
type frameRecorder struct {
	mu     sync.Mutex
	frames []chat.Frame
}

func (r *frameRecorder) WriteFrame(f chat.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

func (r *frameRecorder) recorded() []chat.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Frame(nil), r.frames...)
}

func rawEvent(t *testing.T, v fiber.Map) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestMutedSendRejectedWithoutPersisting(t *testing.T) {
	courseID := newEnrolledCourse(t, "Oceanography", student, studentToken)
	room := courseRoom(t, courseID)

	status, body := doJSON(t, "POST",
		fmt.Sprintf("/api/chat/rooms/%d/mute/%d", room.ID, student.ID), instructorToken, nil)
	mustStatus(t, status, fiber.StatusOK, body)

	events := chat.NewHandler(db, cfg, chat.NewHub(), utils.InitLogger())
	rec := &frameRecorder{}
	events.HandleEvent(rec, student, "message",
		rawEvent(t, fiber.Map{"room_id": room.ID, "content": "hello?"}))

	frames := rec.recorded()
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0].Event)
	assert.Equal(t, map[string]string{"msg": "You are muted in this room."}, frames[0].Data)

	var messages int64
	db.Model(&models.ChatMessage{}).Where("room_id = ?", room.ID).Count(&messages)
	assert.Equal(t, int64(0), messages)
}

func TestOutsiderSendDroppedSilently(t *testing.T) {
	courseID := newEnrolledCourse(t, "Archaeology", student, studentToken)
	room := courseRoom(t, courseID)

	events := chat.NewHandler(db, cfg, chat.NewHub(), utils.InitLogger())
	rec := &frameRecorder{}
	events.HandleEvent(rec, student2, "message",
		rawEvent(t, fiber.Map{"room_id": room.ID, "content": "let me in"}))

	assert.Empty(t, rec.recorded())
	var messages int64
	db.Model(&models.ChatMessage{}).Where("room_id = ?", room.ID).Count(&messages)
	assert.Equal(t, int64(0), messages)
}

func TestMessagePersistedFilteredAndBroadcast(t *testing.T) {
	courseID := newEnrolledCourse(t, "Meteorology", student, studentToken)
	room := courseRoom(t, courseID)

	events := chat.NewHandler(db, cfg, chat.NewHub(), utils.InitLogger())
	rec := &frameRecorder{}
	events.HandleEvent(rec, student, "join", rawEvent(t, fiber.Map{"room_id": room.ID}))
	events.HandleEvent(rec, student, "message",
		rawEvent(t, fiber.Map{"room_id": room.ID, "content": "this badword stays polite"}))

	var message models.ChatMessage
	require.NoError(t, db.Where("room_id = ?", room.ID).First(&message).Error)
	assert.Equal(t, "this *** stays polite", message.Content)

	frames := rec.recorded()
	require.Len(t, frames, 1)
	assert.Equal(t, "message", frames[0].Event)
	payload, ok := frames[0].Data.(chat.MessagePayload)
	require.True(t, ok)
	assert.Equal(t, "this *** stays polite", payload.Content)
	assert.Equal(t, student.ID, payload.UserID)

	var updated models.ChatRoom
	require.NoError(t, db.First(&updated, room.ID).Error)
	assert.NotNil(t, updated.LastMessageTimestamp)
}

func TestReactionToggle(t *testing.T) {
	courseID := newEnrolledCourse(t, "Linguistics", student, studentToken)
	room := courseRoom(t, courseID)
	message := models.ChatMessage{RoomID: room.ID, UserID: student.ID, Content: "hello"}
	require.NoError(t, db.Create(&message).Error)

	events := chat.NewHandler(db, cfg, chat.NewHub(), utils.InitLogger())

	count := func() int64 {
		var n int64
		db.Model(&models.MessageReaction{}).
			Where("message_id = ? AND user_id = ? AND reaction = ?", message.ID, student.ID, "👍").
			Count(&n)
		return n
	}

	events.ToggleReaction(student, message.ID, "👍")
	assert.Equal(t, int64(1), count())

	// Same (message, user, emoji) again removes it.
	events.ToggleReaction(student, message.ID, "👍")
	assert.Equal(t, int64(0), count())

	// A different emoji from the same user coexists.
	events.ToggleReaction(student, message.ID, "👍")
	events.ToggleReaction(student, message.ID, "🎉")
	assert.Equal(t, int64(1), count())
}

func TestRoomCreationAdminOnly(t *testing.T) {
	status, body := doJSON(t, "POST", "/api/chat/rooms", instructorToken, fiber.Map{
		"name":      "Instructor Hangout",
		"room_type": "private",
	})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Only administrators can create rooms", body["error"])
}
