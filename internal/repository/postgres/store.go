package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"messenger-chat/internal/domain"

	"github.com/lib/pq"
)

// Schema creates the tables the store needs. Applied idempotently at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id INTEGER PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	bio TEXT NOT NULL DEFAULT '',
	avatar TEXT NOT NULL DEFAULT '',
	private BOOLEAN NOT NULL DEFAULT FALSE,
	invite_link TEXT NOT NULL DEFAULT '',
	creator_id INTEGER NOT NULL,
	only_admins_can_message BOOLEAN NOT NULL DEFAULT FALSE,
	pinned INTEGER[] NOT NULL DEFAULT '{}',
	next_message_id INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS room_members (
	room_id INTEGER NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	user_id INTEGER NOT NULL,
	is_admin BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	room_id INTEGER NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	id INTEGER NOT NULL,
	sender_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	attachment TEXT NOT NULL DEFAULT '',
	reply_to INTEGER,
	created_at TIMESTAMPTZ NOT NULL,
	read_by INTEGER[] NOT NULL DEFAULT '{}',
	PRIMARY KEY (room_id, id)
);
`

// Store implements domain.Store for PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a new PostgreSQL store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema applies the schema. Safe to call on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// LoadRooms loads every room with its membership and message log.
func (s *Store) LoadRooms(ctx context.Context) ([]domain.RoomRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, bio, avatar, private, invite_link, creator_id,
		       only_admins_can_message, pinned, next_message_id
		FROM rooms
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.RoomRecord, 0)
	index := make(map[int]int)
	for rows.Next() {
		var rec domain.RoomRecord
		var pinned []int64
		err := rows.Scan(
			&rec.ID,
			&rec.Name,
			&rec.Bio,
			&rec.Avatar,
			&rec.Private,
			&rec.InviteLink,
			&rec.CreatorID,
			&rec.OnlyAdminsCanMessage,
			pq.Array(&pinned),
			&rec.NextMessageID,
		)
		if err != nil {
			return nil, err
		}
		rec.Pinned = toInts(pinned)
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadMembers(ctx, records, index); err != nil {
		return nil, err
	}
	if err := s.loadMessages(ctx, records, index); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) loadMembers(ctx context.Context, records []domain.RoomRecord, index map[int]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, user_id, is_admin
		FROM room_members
		ORDER BY room_id, user_id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var roomID, userID int
		var isAdmin bool
		if err := rows.Scan(&roomID, &userID, &isAdmin); err != nil {
			return err
		}
		i, ok := index[roomID]
		if !ok {
			continue
		}
		records[i].Members = append(records[i].Members, userID)
		if isAdmin {
			records[i].Admins = append(records[i].Admins, userID)
		}
	}
	return rows.Err()
}

func (s *Store) loadMessages(ctx context.Context, records []domain.RoomRecord, index map[int]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, id, sender_id, content, attachment, reply_to, created_at, read_by
		FROM messages
		ORDER BY room_id, id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var roomID int
		var msg domain.MessageRecord
		var replyTo sql.NullInt64
		var readBy []int64
		err := rows.Scan(
			&roomID,
			&msg.ID,
			&msg.SenderID,
			&msg.Content,
			&msg.Attachment,
			&replyTo,
			&msg.CreatedAt,
			pq.Array(&readBy),
		)
		if err != nil {
			return err
		}
		if replyTo.Valid {
			id := int(replyTo.Int64)
			msg.ReplyTo = &id
		}
		msg.ReadBy = toInts(readBy)
		i, ok := index[roomID]
		if !ok {
			continue
		}
		records[i].Messages = append(records[i].Messages, msg)
	}
	return rows.Err()
}

// SaveRoom upserts the room row and replaces its membership in one
// transaction. The message log is maintained by the message calls.
func (s *Store) SaveRoom(ctx context.Context, rec domain.RoomRecord) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rooms (id, name, bio, avatar, private, invite_link, creator_id,
			                   only_admins_can_message, pinned, next_message_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				bio = EXCLUDED.bio,
				avatar = EXCLUDED.avatar,
				private = EXCLUDED.private,
				invite_link = EXCLUDED.invite_link,
				only_admins_can_message = EXCLUDED.only_admins_can_message,
				pinned = EXCLUDED.pinned,
				next_message_id = EXCLUDED.next_message_id
		`,
			rec.ID, rec.Name, rec.Bio, rec.Avatar, rec.Private, rec.InviteLink,
			rec.CreatorID, rec.OnlyAdminsCanMessage, pq.Array(toInt64s(rec.Pinned)),
			rec.NextMessageID,
		)
		if err != nil {
			return err
		}
		return replaceMembership(ctx, tx, rec.ID, rec.Members, rec.Admins)
	})
}

// DeleteRoom removes the room; members and messages cascade.
func (s *Store) DeleteRoom(ctx context.Context, roomID int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	return err
}

// AppendMessage inserts one message into a room's log.
func (s *Store) AppendMessage(ctx context.Context, roomID int, msg domain.MessageRecord) error {
	var replyTo sql.NullInt64
	if msg.ReplyTo != nil {
		replyTo = sql.NullInt64{Int64: int64(*msg.ReplyTo), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (room_id, id, sender_id, content, attachment, reply_to, created_at, read_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		roomID, msg.ID, msg.SenderID, msg.Content, msg.Attachment, replyTo,
		msg.CreatedAt, pq.Array(toInt64s(msg.ReadBy)),
	)
	return err
}

// UpdateMessage records a content or read-state change.
func (s *Store) UpdateMessage(ctx context.Context, roomID int, msg domain.MessageRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET content = $3, read_by = $4
		WHERE room_id = $1 AND id = $2
	`,
		roomID, msg.ID, msg.Content, pq.Array(toInt64s(msg.ReadBy)),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteMessage removes one message row.
func (s *Store) DeleteMessage(ctx context.Context, roomID, messageID int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE room_id = $1 AND id = $2
	`, roomID, messageID)
	return err
}

// RecordMembership replaces the room's member and admin sets.
func (s *Store) RecordMembership(ctx context.Context, roomID int, members, admins []int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return replaceMembership(ctx, tx, roomID, members, admins)
	})
}

func replaceMembership(ctx context.Context, tx *sql.Tx, roomID int, members, admins []int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = $1`, roomID); err != nil {
		return err
	}
	adminSet := make(map[int]struct{}, len(admins))
	for _, id := range admins {
		adminSet[id] = struct{}{}
	}
	for _, userID := range members {
		_, isAdmin := adminSet[userID]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO room_members (room_id, user_id, is_admin)
			VALUES ($1, $2, $3)
		`, roomID, userID, isAdmin)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func toInts(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

func toInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}
