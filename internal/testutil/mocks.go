// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the messenger-chat engine.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"messenger-chat/internal/domain"
)

// ErrMockFailure is the error injected by failing mocks.
var ErrMockFailure = errors.New("mock: injected failure")

// MockStore implements domain.Store in memory. Set the *Func overrides to
// customize behavior (e.g. inject failures for rollback tests); otherwise
// every call records into the in-memory maps and succeeds.
type MockStore struct {
	mu sync.Mutex

	// Function overrides - set these to customize behavior
	LoadRoomsFunc        func(ctx context.Context) ([]domain.RoomRecord, error)
	SaveRoomFunc         func(ctx context.Context, rec domain.RoomRecord) error
	DeleteRoomFunc       func(ctx context.Context, roomID int) error
	AppendMessageFunc    func(ctx context.Context, roomID int, msg domain.MessageRecord) error
	UpdateMessageFunc    func(ctx context.Context, roomID int, msg domain.MessageRecord) error
	DeleteMessageFunc    func(ctx context.Context, roomID, messageID int) error
	RecordMembershipFunc func(ctx context.Context, roomID int, members, admins []int) error

	// In-memory state for simple tests
	Rooms    map[int]domain.RoomRecord
	Messages map[int][]domain.MessageRecord

	// Calls records every call in order, by method name.
	Calls []string
}

// NewMockStore creates a MockStore with initialized maps.
func NewMockStore() *MockStore {
	return &MockStore{
		Rooms:    make(map[int]domain.RoomRecord),
		Messages: make(map[int][]domain.MessageRecord),
	}
}

func (m *MockStore) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// CallCount returns how many times a method was called.
func (m *MockStore) CallCount(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (m *MockStore) LoadRooms(ctx context.Context) ([]domain.RoomRecord, error) {
	m.record("LoadRooms")
	if m.LoadRoomsFunc != nil {
		return m.LoadRoomsFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]domain.RoomRecord, 0, len(m.Rooms))
	for id, rec := range m.Rooms {
		rec.Messages = append([]domain.MessageRecord{}, m.Messages[id]...)
		records = append(records, rec)
	}
	return records, nil
}

func (m *MockStore) SaveRoom(ctx context.Context, rec domain.RoomRecord) error {
	m.record("SaveRoom")
	if m.SaveRoomFunc != nil {
		return m.SaveRoomFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Messages = nil
	m.Rooms[rec.ID] = rec
	return nil
}

func (m *MockStore) DeleteRoom(ctx context.Context, roomID int) error {
	m.record("DeleteRoom")
	if m.DeleteRoomFunc != nil {
		return m.DeleteRoomFunc(ctx, roomID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Rooms, roomID)
	delete(m.Messages, roomID)
	return nil
}

func (m *MockStore) AppendMessage(ctx context.Context, roomID int, msg domain.MessageRecord) error {
	m.record("AppendMessage")
	if m.AppendMessageFunc != nil {
		return m.AppendMessageFunc(ctx, roomID, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages[roomID] = append(m.Messages[roomID], msg)
	return nil
}

func (m *MockStore) UpdateMessage(ctx context.Context, roomID int, msg domain.MessageRecord) error {
	m.record("UpdateMessage")
	if m.UpdateMessageFunc != nil {
		return m.UpdateMessageFunc(ctx, roomID, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.Messages[roomID] {
		if existing.ID == msg.ID {
			m.Messages[roomID][i] = msg
			return nil
		}
	}
	return errors.New("mock: message not found")
}

func (m *MockStore) DeleteMessage(ctx context.Context, roomID, messageID int) error {
	m.record("DeleteMessage")
	if m.DeleteMessageFunc != nil {
		return m.DeleteMessageFunc(ctx, roomID, messageID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.Messages[roomID]
	for i, existing := range msgs {
		if existing.ID == messageID {
			m.Messages[roomID] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MockStore) RecordMembership(ctx context.Context, roomID int, members, admins []int) error {
	m.record("RecordMembership")
	if m.RecordMembershipFunc != nil {
		return m.RecordMembershipFunc(ctx, roomID, members, admins)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Rooms[roomID]
	if ok {
		rec.Members = append([]int{}, members...)
		rec.Admins = append([]int{}, admins...)
		m.Rooms[roomID] = rec
	}
	return nil
}

// MockUserRepository implements domain.UserRepository for testing
type MockUserRepository struct {
	mu     sync.Mutex
	nextID int

	CreateFunc        func(ctx context.Context, user *domain.User) error
	GetByIDFunc       func(ctx context.Context, id int) (*domain.User, error)
	GetByUsernameFunc func(ctx context.Context, username string) (*domain.User, error)

	Users map[int]*domain.User
}

// NewMockUserRepository creates a MockUserRepository with initialized maps.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{Users: make(map[int]*domain.User), nextID: 1}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Username == user.Username {
			return domain.ErrUsernameExists
		}
	}
	user.ID = m.nextID
	m.nextID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.Users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.Users[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.Users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// MockSessionRepository implements domain.SessionRepository for testing
type MockSessionRepository struct {
	mu     sync.Mutex
	nextID int

	CreateFunc     func(ctx context.Context, session *domain.Session) error
	GetByTokenFunc func(ctx context.Context, token string) (*domain.Session, error)

	Sessions map[string]*domain.Session
}

// NewMockSessionRepository creates a MockSessionRepository with initialized maps.
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{Sessions: make(map[string]*domain.Session), nextID: 1}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session.ID = m.nextID
	m.nextID++
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	m.Sessions[session.Token] = session
	return nil
}

func (m *MockSessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.Sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Sessions, token)
	return nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for token, session := range m.Sessions {
		if now.After(session.ExpiresAt) {
			delete(m.Sessions, token)
			n++
		}
	}
	return n, nil
}
