package models

import (
	"time"

	"gorm.io/gorm"
)

type RoomType string

const (
	RoomGeneral RoomType = "general"
	RoomPublic  RoomType = "public"
	RoomCourse  RoomType = "course"
	RoomPrivate RoomType = "private"
)

type RoomRole string

const (
	RoomRoleMember     RoomRole = "member"
	RoomRoleAdmin      RoomRole = "admin"
	RoomRoleInstructor RoomRole = "instructor"
)

type ChatRoom struct {
	gorm.Model
	Name        string   `gorm:"not null"`
	Description string
	RoomType    RoomType `gorm:"type:varchar(50);default:public"`
	CourseID    *uint    `gorm:"uniqueIndex"`
	CreatedByID *uint    // nil for auto-created course rooms
	IsLocked    bool     `gorm:"not null;default:false"`
	SpeechEnabled bool   `gorm:"not null;default:true"`
	CoverImage  string
	JoinToken   *string `gorm:"uniqueIndex"` // public rooms only
	LastMessageTimestamp *time.Time `gorm:"index"`

	Messages []ChatMessage    `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	Members  []ChatRoomMember `gorm:"foreignKey:ChatRoomID;constraint:OnDelete:CASCADE"`
}

type ChatRoomMember struct {
	gorm.Model
	ChatRoomID uint     `gorm:"not null;uniqueIndex:idx_room_user"`
	UserID     uint     `gorm:"not null;uniqueIndex:idx_room_user"`
	RoleInRoom RoomRole `gorm:"type:varchar(50);default:member"`
}

// ChatMessage carries content and/or a file attachment; at least one is
// required. RepliedToID points at an earlier message in the same room,
// forming a tree. A message never replies to itself.
type ChatMessage struct {
	gorm.Model
	RoomID      uint `gorm:"not null;index"`
	UserID      uint `gorm:"not null"`
	Content     string
	FilePath    string
	FileName    string
	IsPinned    bool  `gorm:"default:false"`
	RepliedToID *uint

	Reactions []MessageReaction `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

// MutedUser blocks message sends without removing room membership.
type MutedUser struct {
	gorm.Model
	UserID    uint `gorm:"not null;uniqueIndex:idx_mute_user_room"`
	RoomID    uint `gorm:"not null;uniqueIndex:idx_mute_user_room"`
	MutedByID uint `gorm:"not null"`
}

type ReportedMessage struct {
	gorm.Model
	MessageID    uint `gorm:"not null;index"`
	ReportedByID uint `gorm:"not null"`
}

type MessageReaction struct {
	gorm.Model
	MessageID uint   `gorm:"not null;uniqueIndex:idx_message_user_reaction"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_message_user_reaction"`
	Reaction  string `gorm:"type:varchar(50);not null;uniqueIndex:idx_message_user_reaction"`
}

// UserLastRead backs the unread-count computation; stamped to "now" on
// every room join.
type UserLastRead struct {
	gorm.Model
	UserID            uint      `gorm:"not null;uniqueIndex:idx_lastread_user_room"`
	RoomID            uint      `gorm:"not null;uniqueIndex:idx_lastread_user_room"`
	LastReadTimestamp time.Time `gorm:"not null"`
}
