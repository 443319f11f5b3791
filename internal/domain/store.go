package domain

import (
	"context"
	"time"
)

// MessageRecord is the persistence-shaped snapshot of one message.
type MessageRecord struct {
	ID         int
	SenderID   int
	Content    string
	Attachment string
	ReplyTo    *int
	CreatedAt  time.Time
	ReadBy     []int
}

// RoomRecord is the persistence-shaped snapshot of one room, including its
// full message log. Used for load-at-startup and room-level saves.
type RoomRecord struct {
	ID                   int
	Name                 string
	Bio                  string
	Avatar               string
	Private              bool
	InviteLink           string
	CreatorID            int
	OnlyAdminsCanMessage bool
	Members              []int
	Admins               []int
	Pinned               []int
	NextMessageID        int
	Messages             []MessageRecord
}

// Store is the persistence port the engine calls into. Implementations must
// treat each call as a single commit: if a call returns an error the engine
// rolls back the corresponding in-memory mutation before returning to the
// caller. A nil Store is valid and leaves the engine purely in-memory.
type Store interface {
	// LoadRooms returns every persisted room with memberships and messages.
	LoadRooms(ctx context.Context) ([]RoomRecord, error)

	// SaveRoom records a room's identity and settings (create or update).
	SaveRoom(ctx context.Context, rec RoomRecord) error

	// DeleteRoom removes a room and everything it owns.
	DeleteRoom(ctx context.Context, roomID int) error

	// AppendMessage durably appends one message to a room's log.
	AppendMessage(ctx context.Context, roomID int, msg MessageRecord) error

	// UpdateMessage records a content or read-state change.
	UpdateMessage(ctx context.Context, roomID int, msg MessageRecord) error

	// DeleteMessage removes one message from a room's log.
	DeleteMessage(ctx context.Context, roomID, messageID int) error

	// RecordMembership replaces a room's member and admin sets.
	RecordMembership(ctx context.Context, roomID int, members, admins []int) error
}
