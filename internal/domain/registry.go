package domain

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// RoomRegistry owns the collection of rooms, allocates room ids, resolves
// invite links, and fans membership operations out to the right Room.
//
// The registry lock guards only the room map and the id counter; it is never
// held while a per-room lock is awaited.
type RoomRegistry struct {
	mu         sync.RWMutex
	rooms      map[int]*Room
	nextRoomID int

	store Store
}

// NewRoomRegistry creates an empty registry. A nil store keeps the engine
// purely in-memory.
func NewRoomRegistry(store Store) *RoomRegistry {
	return &RoomRegistry{
		rooms:      make(map[int]*Room),
		nextRoomID: 1,
		store:      store,
	}
}

// Load populates the registry from the persistence port. Intended for
// startup, before the registry is shared.
func (g *RoomRegistry) Load(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	records, err := g.store.LoadRooms(ctx)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, rec := range records {
		g.rooms[rec.ID] = roomFromRecord(rec, g.store)
		if rec.ID >= g.nextRoomID {
			g.nextRoomID = rec.ID + 1
		}
	}
	return nil
}

// CreateRoom allocates the next room id and constructs a room with the
// creator auto-joined as member, admin, and owner.
func (g *RoomRegistry) CreateRoom(ctx context.Context, name, bio, avatar string, private bool, creatorID int) (*Room, error) {
	if name == "" || len(name) > MaxRoomNameLength {
		return nil, newError(KindInvalidRequest, "invalid room name")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextRoomID
	room := newRoom(id, name, bio, avatar, private, creatorID, g.store)
	if g.store != nil {
		if err := g.store.SaveRoom(ctx, room.Record()); err != nil {
			return nil, fmt.Errorf("save room: %w", err)
		}
	}
	g.rooms[id] = room
	g.nextRoomID++
	return room, nil
}

// DeleteRoom removes a room entirely. Owner only.
func (g *RoomRegistry) DeleteRoom(ctx context.Context, roomID, requesterID int) error {
	room, ok := g.GetRoomByID(roomID)
	if !ok {
		return newError(KindRoomNotFound, "room not found")
	}
	if !room.IsOwner(requesterID) {
		return newError(KindPermissionDenied, "only the owner can delete the room")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[roomID]; !ok {
		// Lost a race with a concurrent delete.
		return newError(KindRoomNotFound, "room not found")
	}
	delete(g.rooms, roomID)
	if g.store != nil {
		if err := g.store.DeleteRoom(ctx, roomID); err != nil {
			g.rooms[roomID] = room
			return fmt.Errorf("delete room: %w", err)
		}
	}
	return nil
}

// GetRoomByID looks a room up by id.
func (g *RoomRegistry) GetRoomByID(roomID int) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[roomID]
	return room, ok
}

// GetRoomByLink resolves an invite link. Private rooms carry no link, so
// only public rooms are ever reachable this way.
func (g *RoomRegistry) GetRoomByLink(link string) (*Room, bool) {
	if link == "" {
		return nil, false
	}
	for _, room := range g.snapshot() {
		if room.InviteLink() == link {
			return room, true
		}
	}
	return nil, false
}

// AddMemberToRoom adds a user to a room. For private rooms a human requester
// must already hold admin privilege there.
func (g *RoomRegistry) AddMemberToRoom(ctx context.Context, roomID, userID int, req Requester) error {
	room, ok := g.GetRoomByID(roomID)
	if !ok {
		return newError(KindRoomNotFound, "room not found")
	}
	if room.IsPrivate() && req.set && !room.HasAdminPrivilege(req.id) {
		return newError(KindPermissionDenied, "only admins can add members to a private room")
	}
	return room.AddMember(ctx, userID, System)
}

// AddMemberByLink joins a user via invite link. The private check is
// defensive: a private room should never resolve from a link.
func (g *RoomRegistry) AddMemberByLink(ctx context.Context, link string, userID int) error {
	room, ok := g.GetRoomByLink(link)
	if !ok {
		return newError(KindInvalidInviteLink, "invalid invite link")
	}
	if room.IsPrivate() {
		return newError(KindPermissionDenied, "cannot join a private room by link")
	}
	return room.AddMember(ctx, userID, System)
}

// RemoveMemberFromRoom removes a user from a room. Self-removal is always
// permitted subject to the room's owner protection; removing someone else
// requires admin privilege.
func (g *RoomRegistry) RemoveMemberFromRoom(ctx context.Context, roomID, userID int, req Requester) error {
	room, ok := g.GetRoomByID(roomID)
	if !ok {
		return newError(KindRoomNotFound, "room not found")
	}
	if req.set && req.id != userID && !room.HasAdminPrivilege(req.id) {
		return newError(KindPermissionDenied, "only admins can remove other members")
	}
	return room.RemoveMember(ctx, userID, System)
}

// UserRooms returns the ids of rooms the user belongs to, sorted.
func (g *RoomRegistry) UserRooms(userID int) []int {
	ids := []int{}
	for _, room := range g.snapshot() {
		if room.IsMember(userID) {
			ids = append(ids, room.ID())
		}
	}
	sort.Ints(ids)
	return ids
}

// AllRoomIDs returns every room id, sorted.
func (g *RoomRegistry) AllRoomIDs() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]int, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// TotalRooms returns the number of rooms.
func (g *RoomRegistry) TotalRooms() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// UserRoomCount returns how many rooms the user belongs to.
func (g *RoomRegistry) UserRoomCount(userID int) int {
	return len(g.UserRooms(userID))
}

// snapshot copies the room list so callers can take per-room locks without
// the registry lock held.
func (g *RoomRegistry) snapshot() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
