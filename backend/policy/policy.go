// Package policy holds the pure authorization decisions for chat rooms and
// exam attempts. Callers load the relevant rows and pass them in explicitly;
// nothing here touches the database or caches across requests, since
// membership, mute and lock state change asynchronously.
package policy

import (
	"errors"
	"time"

	"github.com/quantumdemo/sna/backend/models"
)

var (
	ErrMuted      = errors.New("You are muted in this room.")
	ErrRoomLocked = errors.New("This chat room is currently locked.")

	ErrNotEnrolled          = errors.New("You are not enrolled in this course.")
	ErrNotPublished         = errors.New("This exam is not yet published.")
	ErrOutsideWindow        = errors.New("This exam is not currently available.")
	ErrAttemptLimitExceeded = errors.New("You have reached the maximum number of attempts.")
)

// RoomContext carries the per-(user, room) state a decision needs.
type RoomContext struct {
	Room       models.ChatRoom
	Course     *models.Course // set for course rooms
	IsMember   bool
	IsEnrolled bool
	IsMuted    bool
}

func CanAccessRoom(user models.User, rc RoomContext) bool {
	if user.Role == models.RoleAdmin {
		return true
	}

	switch rc.Room.RoomType {
	case models.RoomGeneral, models.RoomPublic:
		return true
	case models.RoomCourse:
		if rc.Course == nil {
			return false
		}
		return rc.IsEnrolled || user.ID == rc.Course.InstructorID
	case models.RoomPrivate:
		return rc.IsMember
	}
	return false
}

// CanSendMessage layers mute and lock checks on top of room access. A nil
// return means the send is allowed.
func CanSendMessage(user models.User, rc RoomContext) error {
	if !CanAccessRoom(user, rc) {
		return errors.New("You do not have access to this room.")
	}

	if rc.IsMuted {
		return ErrMuted
	}

	if rc.Room.IsLocked {
		switch {
		case user.Role == models.RoleAdmin:
			// Admins speak through any lock.
		case rc.Room.RoomType == models.RoomCourse && rc.Course != nil && user.ID == rc.Course.InstructorID:
			// So does the owning instructor in their course room.
		default:
			return ErrRoomLocked
		}
	}

	return nil
}

// CanModerate allows delete, pin, mute and member removal.
func CanModerate(user models.User, rc RoomContext) bool {
	if user.Role == models.RoleAdmin {
		return true
	}
	if user.Role == models.RoleInstructor && rc.Room.RoomType == models.RoomCourse &&
		rc.Course != nil && user.ID == rc.Course.InstructorID {
		return true
	}
	return false
}

// CanStartExam gates new attempts. priorAttempts counts every existing
// submission for the (student, exam) pair regardless of status.
func CanStartExam(exam models.FinalExam, enrolled bool, priorAttempts int, now time.Time) error {
	if !enrolled {
		return ErrNotEnrolled
	}
	if !exam.IsPublished {
		return ErrNotPublished
	}
	if exam.StartDate != nil && now.Before(*exam.StartDate) {
		return ErrOutsideWindow
	}
	if exam.EndDate != nil && now.After(*exam.EndDate) {
		return ErrOutsideWindow
	}
	if priorAttempts >= exam.AllowedAttempts {
		return ErrAttemptLimitExceeded
	}
	return nil
}
