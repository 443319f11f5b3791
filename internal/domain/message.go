package domain

import (
	"sort"
	"time"
)

// Message is one entry in a room's log. The id is unique within the owning
// room and never reused, even after the message is deleted.
type Message struct {
	ID         int       `json:"id"`
	SenderID   int       `json:"sender_id"`
	Content    string    `json:"content"`
	Attachment string    `json:"attachment,omitempty"`
	ReplyTo    *int      `json:"reply_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	readBy map[int]struct{}
}

func newMessage(id, senderID int, content, attachment string, replyTo *int, at time.Time) *Message {
	m := &Message{
		ID:         id,
		SenderID:   senderID,
		Content:    content,
		Attachment: attachment,
		ReplyTo:    replyTo,
		CreatedAt:  at,
		readBy:     make(map[int]struct{}),
	}
	// The sender has implicitly read their own message.
	m.readBy[senderID] = struct{}{}
	return m
}

// HasAttachment reports whether the message carries an attachment reference.
func (m *Message) HasAttachment() bool {
	return m.Attachment != ""
}

// IsReply reports whether the message targets another message in its room.
func (m *Message) IsReply() bool {
	return m.ReplyTo != nil
}

// IsReadBy reports whether userID has read the message.
func (m *Message) IsReadBy(userID int) bool {
	_, ok := m.readBy[userID]
	return ok
}

// ReadCount returns the number of users who have read the message.
func (m *Message) ReadCount() int {
	return len(m.readBy)
}

// ReadBy returns the ids of users who have read the message, sorted.
func (m *Message) ReadBy() []int {
	ids := make([]int, 0, len(m.readBy))
	for id := range m.readBy {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// markRead records that userID has read the message and reports whether the
// read set actually grew. The set is monotonic and never shrinks.
func (m *Message) markRead(userID int) bool {
	if _, ok := m.readBy[userID]; ok {
		return false
	}
	m.readBy[userID] = struct{}{}
	return true
}

func (m *Message) unmarkRead(userID int) {
	delete(m.readBy, userID)
}

// clone returns an independent copy safe to hand to callers.
func (m *Message) clone() *Message {
	c := *m
	if m.ReplyTo != nil {
		id := *m.ReplyTo
		c.ReplyTo = &id
	}
	c.readBy = make(map[int]struct{}, len(m.readBy))
	for id := range m.readBy {
		c.readBy[id] = struct{}{}
	}
	return &c
}

func (m *Message) record() MessageRecord {
	return MessageRecord{
		ID:         m.ID,
		SenderID:   m.SenderID,
		Content:    m.Content,
		Attachment: m.Attachment,
		ReplyTo:    m.ReplyTo,
		CreatedAt:  m.CreatedAt,
		ReadBy:     m.ReadBy(),
	}
}

func messageFromRecord(rec MessageRecord) *Message {
	m := &Message{
		ID:         rec.ID,
		SenderID:   rec.SenderID,
		Content:    rec.Content,
		Attachment: rec.Attachment,
		CreatedAt:  rec.CreatedAt,
		readBy:     make(map[int]struct{}, len(rec.ReadBy)),
	}
	if rec.ReplyTo != nil {
		id := *rec.ReplyTo
		m.ReplyTo = &id
	}
	for _, id := range rec.ReadBy {
		m.readBy[id] = struct{}{}
	}
	m.readBy[rec.SenderID] = struct{}{}
	return m
}
