package policy

import (
	"testing"
	"time"

	"github.com/quantumdemo/sna/backend/models"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func user(id uint, role models.Role) models.User {
	return models.User{Model: gorm.Model{ID: id}, Role: role}
}

func TestCanAccessRoom(t *testing.T) {
	course := models.Course{Model: gorm.Model{ID: 5}, InstructorID: 2}
	courseRoom := RoomContext{
		Room:   models.ChatRoom{RoomType: models.RoomCourse},
		Course: &course,
	}

	// Admins access everything.
	assert.True(t, CanAccessRoom(user(9, models.RoleAdmin), courseRoom))

	// Instructor owning the course.
	assert.True(t, CanAccessRoom(user(2, models.RoleInstructor), courseRoom))

	// Enrolled student.
	enrolled := courseRoom
	enrolled.IsEnrolled = true
	assert.True(t, CanAccessRoom(user(3, models.RoleStudent), enrolled))

	// Unenrolled student.
	assert.False(t, CanAccessRoom(user(3, models.RoleStudent), courseRoom))

	// General room is open to any authenticated user.
	general := RoomContext{Room: models.ChatRoom{RoomType: models.RoomGeneral}}
	assert.True(t, CanAccessRoom(user(3, models.RoleStudent), general))

	// Private room requires explicit membership.
	private := RoomContext{Room: models.ChatRoom{RoomType: models.RoomPrivate}}
	assert.False(t, CanAccessRoom(user(3, models.RoleStudent), private))
	private.IsMember = true
	assert.True(t, CanAccessRoom(user(3, models.RoleStudent), private))
}

func TestCanSendMessageMuted(t *testing.T) {
	rc := RoomContext{
		Room:    models.ChatRoom{RoomType: models.RoomGeneral},
		IsMuted: true,
	}

	err := CanSendMessage(user(3, models.RoleStudent), rc)
	assert.ErrorIs(t, err, ErrMuted)
	assert.Equal(t, "You are muted in this room.", err.Error())
}

func TestCanSendMessageLockedRoom(t *testing.T) {
	course := models.Course{Model: gorm.Model{ID: 5}, InstructorID: 2}
	locked := RoomContext{
		Room:       models.ChatRoom{RoomType: models.RoomCourse, IsLocked: true},
		Course:     &course,
		IsEnrolled: true,
	}

	// Students are silenced by the lock.
	assert.ErrorIs(t, CanSendMessage(user(3, models.RoleStudent), locked), ErrRoomLocked)

	// The owning instructor and admins are not.
	assert.NoError(t, CanSendMessage(user(2, models.RoleInstructor), locked))
	assert.NoError(t, CanSendMessage(user(9, models.RoleAdmin), locked))

	// A locked general room only admits admins.
	lockedGeneral := RoomContext{Room: models.ChatRoom{RoomType: models.RoomGeneral, IsLocked: true}}
	assert.ErrorIs(t, CanSendMessage(user(2, models.RoleInstructor), lockedGeneral), ErrRoomLocked)
	assert.NoError(t, CanSendMessage(user(9, models.RoleAdmin), lockedGeneral))
}

func TestCanModerate(t *testing.T) {
	course := models.Course{Model: gorm.Model{ID: 5}, InstructorID: 2}
	rc := RoomContext{
		Room:   models.ChatRoom{RoomType: models.RoomCourse},
		Course: &course,
	}

	assert.True(t, CanModerate(user(9, models.RoleAdmin), rc))
	assert.True(t, CanModerate(user(2, models.RoleInstructor), rc))
	assert.False(t, CanModerate(user(7, models.RoleInstructor), rc))
	assert.False(t, CanModerate(user(3, models.RoleStudent), rc))
}

func TestCanStartExam(t *testing.T) {
	now := time.Now()
	exam := models.FinalExam{IsPublished: true, AllowedAttempts: 2}

	assert.NoError(t, CanStartExam(exam, true, 0, now))
	assert.NoError(t, CanStartExam(exam, true, 1, now))
	assert.ErrorIs(t, CanStartExam(exam, true, 2, now), ErrAttemptLimitExceeded)
	assert.ErrorIs(t, CanStartExam(exam, true, 3, now), ErrAttemptLimitExceeded)
	assert.ErrorIs(t, CanStartExam(exam, false, 0, now), ErrNotEnrolled)

	unpublished := exam
	unpublished.IsPublished = false
	assert.ErrorIs(t, CanStartExam(unpublished, true, 0, now), ErrNotPublished)

	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	notYetOpen := exam
	notYetOpen.StartDate = &future
	assert.ErrorIs(t, CanStartExam(notYetOpen, true, 0, now), ErrOutsideWindow)

	ended := exam
	ended.EndDate = &past
	assert.ErrorIs(t, CanStartExam(ended, true, 0, now), ErrOutsideWindow)

	// Open bounds are optional.
	open := exam
	open.StartDate = &past
	assert.NoError(t, CanStartExam(open, true, 0, now))
}
