package domain

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// MaxMessageLength is the upper bound on message content.
	MaxMessageLength = 1000
	// MaxRoomNameLength is the upper bound on a room's display name.
	MaxRoomNameLength = 100
	// EditWindow is how long after creation a message stays editable.
	EditWindow = 7 * 24 * time.Hour

	maxAttachmentRefLength = 255
	inviteTokenLength      = 12
	inviteAlphabet         = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var allowedAttachmentExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {},
	".pdf": {}, ".txt": {}, ".zip": {}, ".mp3": {}, ".mp4": {},
}

// Requester identifies who asked for an operation. System (the zero value)
// stands for the process itself and bypasses permission checks; it replaces
// the unchecked operation variants of earlier designs.
type Requester struct {
	id  int
	set bool
}

// System is the sentinel requester for bootstrap and trusted internal calls.
var System Requester

// By returns a Requester for a human user id.
func By(id int) Requester {
	return Requester{id: id, set: true}
}

// MessageOptions carries the optional parts of a send: an attachment
// reference and a reply target.
type MessageOptions struct {
	Attachment string
	ReplyTo    *int
}

// Room owns one room's membership and admin sets, settings, and its ordered
// message log, and enforces every per-room invariant. All mutating methods
// take the room's lock; a Room is safe for concurrent use.
type Room struct {
	mu sync.RWMutex

	id                   int
	name                 string
	bio                  string
	avatar               string
	private              bool
	inviteLink           string
	creatorID            int
	onlyAdminsCanMessage bool

	members map[int]struct{}
	admins  map[int]struct{}

	messages      []*Message
	pinned        []int
	nextMessageID int

	store Store
	now   func() time.Time
}

func newRoom(id int, name, bio, avatar string, private bool, creatorID int, store Store) *Room {
	r := &Room{
		id:            id,
		name:          name,
		bio:           bio,
		avatar:        avatar,
		private:       private,
		creatorID:     creatorID,
		members:       map[int]struct{}{creatorID: {}},
		admins:        map[int]struct{}{creatorID: {}},
		nextMessageID: 1,
		store:         store,
		now:           time.Now,
	}
	if !private {
		r.generateInviteLink()
	}
	return r
}

func roomFromRecord(rec RoomRecord, store Store) *Room {
	r := &Room{
		id:                   rec.ID,
		name:                 rec.Name,
		bio:                  rec.Bio,
		avatar:               rec.Avatar,
		private:              rec.Private,
		inviteLink:           rec.InviteLink,
		creatorID:            rec.CreatorID,
		onlyAdminsCanMessage: rec.OnlyAdminsCanMessage,
		members:              make(map[int]struct{}, len(rec.Members)),
		admins:               make(map[int]struct{}, len(rec.Admins)),
		nextMessageID:        rec.NextMessageID,
		store:                store,
		now:                  time.Now,
	}
	for _, id := range rec.Members {
		r.members[id] = struct{}{}
	}
	for _, id := range rec.Admins {
		r.admins[id] = struct{}{}
	}
	// The owner is permanently member and admin, whatever was stored.
	r.members[rec.CreatorID] = struct{}{}
	r.admins[rec.CreatorID] = struct{}{}

	maxID := 0
	for _, mr := range rec.Messages {
		r.messages = append(r.messages, messageFromRecord(mr))
		if mr.ID > maxID {
			maxID = mr.ID
		}
	}
	if r.nextMessageID <= maxID {
		r.nextMessageID = maxID + 1
	}
	if r.nextMessageID < 1 {
		r.nextMessageID = 1
	}
	for _, id := range rec.Pinned {
		if r.findMessage(id) != nil {
			r.pinned = append(r.pinned, id)
		}
	}
	if r.private {
		r.inviteLink = ""
	} else if r.inviteLink == "" {
		r.generateInviteLink()
	}
	return r
}

// ================= Accessors =================

func (r *Room) ID() int {
	return r.id
}

func (r *Room) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

func (r *Room) Bio() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bio
}

func (r *Room) Avatar() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.avatar
}

func (r *Room) IsPrivate() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.private
}

// InviteLink returns the room's invite link, or "" while the room is private.
func (r *Room) InviteLink() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inviteLink
}

func (r *Room) CreatorID() int {
	return r.creatorID
}

func (r *Room) OnlyAdminsCanMessage() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlyAdminsCanMessage
}

func (r *Room) IsMember(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isMember(userID)
}

func (r *Room) IsAdmin(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isAdmin(userID)
}

func (r *Room) IsOwner(userID int) bool {
	return userID == r.creatorID
}

// HasAdminPrivilege reports whether userID is an admin or the owner.
func (r *Room) HasAdminPrivilege(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasAdminPrivilege(userID)
}

// Members returns the member ids, sorted.
func (r *Room) Members() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.members)
}

// Admins returns the admin ids, sorted.
func (r *Room) Admins() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.admins)
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// ================= Room info management =================

// SetName changes the display name. Admin privilege required.
func (r *Room) SetName(ctx context.Context, name string, req Requester) error {
	if name == "" || len(name) > MaxRoomNameLength {
		return newError(KindInvalidRequest, "invalid room name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(req, "only admins can change the room name"); err != nil {
		return err
	}
	old := r.name
	r.name = name
	if err := r.saveRoomLocked(ctx); err != nil {
		r.name = old
		return err
	}
	return nil
}

// SetBio changes the room description. Admin privilege required.
func (r *Room) SetBio(ctx context.Context, bio string, req Requester) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(req, "only admins can change the room bio"); err != nil {
		return err
	}
	old := r.bio
	r.bio = bio
	if err := r.saveRoomLocked(ctx); err != nil {
		r.bio = old
		return err
	}
	return nil
}

// SetAvatar changes the room avatar reference. Admin privilege required.
func (r *Room) SetAvatar(ctx context.Context, avatar string, req Requester) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(req, "only admins can change the room avatar"); err != nil {
		return err
	}
	old := r.avatar
	r.avatar = avatar
	if err := r.saveRoomLocked(ctx); err != nil {
		r.avatar = old
		return err
	}
	return nil
}

// EditInfo changes name and bio in one operation. Admin privilege required.
func (r *Room) EditInfo(ctx context.Context, name, bio string, req Requester) error {
	if name == "" || len(name) > MaxRoomNameLength {
		return newError(KindInvalidRequest, "invalid room name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(req, "only admins can edit room info"); err != nil {
		return err
	}
	oldName, oldBio := r.name, r.bio
	r.name, r.bio = name, bio
	if err := r.saveRoomLocked(ctx); err != nil {
		r.name, r.bio = oldName, oldBio
		return err
	}
	return nil
}

// SetPrivacy flips the privacy flag. Going public generates an invite link if
// none exists; going private clears it. Unchanged values are a no-op and do
// not regenerate the link.
func (r *Room) SetPrivacy(ctx context.Context, private bool, req Requester) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(req, "only admins can change room privacy"); err != nil {
		return err
	}
	if r.private == private {
		return nil
	}
	oldLink := r.inviteLink
	r.private = private
	if private {
		r.inviteLink = ""
	} else if r.inviteLink == "" {
		r.generateInviteLink()
	}
	if err := r.saveRoomLocked(ctx); err != nil {
		r.private = !private
		r.inviteLink = oldLink
		return err
	}
	return nil
}

// SetOnlyAdminsCanMessage toggles the admin-only messaging restriction.
func (r *Room) SetOnlyAdminsCanMessage(ctx context.Context, value bool, req Requester) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(req, "only admins can change this setting"); err != nil {
		return err
	}
	old := r.onlyAdminsCanMessage
	r.onlyAdminsCanMessage = value
	if err := r.saveRoomLocked(ctx); err != nil {
		r.onlyAdminsCanMessage = old
		return err
	}
	return nil
}

// ================= Membership =================

// AddMember adds userID to the member set. A human requester needs admin
// privilege; System skips the check.
func (r *Room) AddMember(ctx context.Context, userID int, req Requester) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(req, "only admins can add members"); err != nil {
		return err
	}
	if r.isMember(userID) {
		return newError(KindUserAlreadyMember, "user is already a member")
	}
	r.members[userID] = struct{}{}
	if err := r.recordMembershipLocked(ctx); err != nil {
		delete(r.members, userID)
		return err
	}
	return nil
}

// RemoveMember removes userID from the member set. Admin status does not
// survive membership loss. The owner can never be removed, by anyone.
func (r *Room) RemoveMember(ctx context.Context, userID int, req Requester) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(req, "only admins can remove members"); err != nil {
		return err
	}
	if !r.isMember(userID) {
		return newError(KindUserNotMember, "user is not a member")
	}
	if r.IsOwner(userID) {
		return newError(KindCannotRemoveOwner, "cannot remove the room owner")
	}
	_, wasAdmin := r.admins[userID]
	delete(r.members, userID)
	delete(r.admins, userID)
	if err := r.recordMembershipLocked(ctx); err != nil {
		r.members[userID] = struct{}{}
		if wasAdmin {
			r.admins[userID] = struct{}{}
		}
		return err
	}
	return nil
}

// AddAdmin grants admin to a member. Idempotent: promoting an existing admin
// succeeds without change.
func (r *Room) AddAdmin(ctx context.Context, userID int, req Requester) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(req, "only admins can add admins"); err != nil {
		return err
	}
	if !r.isMember(userID) {
		return newError(KindUserNotMember, "user is not a member")
	}
	if r.isAdmin(userID) {
		return nil
	}
	r.admins[userID] = struct{}{}
	if err := r.recordMembershipLocked(ctx); err != nil {
		delete(r.admins, userID)
		return err
	}
	return nil
}

// RemoveAdmin revokes admin from a member. The owner's admin status is
// permanent.
func (r *Room) RemoveAdmin(ctx context.Context, userID int, req Requester) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(req, "only admins can remove admins"); err != nil {
		return err
	}
	if r.IsOwner(userID) {
		return newError(KindCannotRemoveOwner, "cannot remove the owner's admin status")
	}
	if !r.isAdmin(userID) {
		return newError(KindNotAdmin, "user is not an admin")
	}
	delete(r.admins, userID)
	if err := r.recordMembershipLocked(ctx); err != nil {
		r.admins[userID] = struct{}{}
		return err
	}
	return nil
}

// ================= Message lifecycle =================

// SendMessage validates and appends a new message, assigning the next
// sequential id and marking the sender as having read it.
func (r *Room) SendMessage(ctx context.Context, senderID int, content string, opts MessageOptions) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isMember(senderID) {
		return nil, newError(KindNotMember, "user is not a member")
	}
	if r.onlyAdminsCanMessage && !r.hasAdminPrivilege(senderID) {
		return nil, newError(KindNotAdmin, "only admins can send messages")
	}
	if content == "" && opts.Attachment == "" {
		return nil, newError(KindMessageEmpty, "message cannot be empty")
	}
	if len(content) > MaxMessageLength {
		return nil, newError(KindMessageTooLong, fmt.Sprintf("message too long (max %d characters)", MaxMessageLength))
	}
	if opts.Attachment != "" {
		if len(opts.Attachment) > maxAttachmentRefLength {
			return nil, newError(KindAttachmentTooLarge, "attachment reference too large")
		}
		if !attachmentTypeAllowed(opts.Attachment) {
			return nil, newError(KindInvalidAttachmentType, "attachment type not allowed")
		}
	}
	if opts.ReplyTo != nil && r.findMessage(*opts.ReplyTo) == nil {
		return nil, newError(KindReplyMessageNotFound, "reply target message not found")
	}

	var replyTo *int
	if opts.ReplyTo != nil {
		id := *opts.ReplyTo
		replyTo = &id
	}
	msg := newMessage(r.nextMessageID, senderID, content, opts.Attachment, replyTo, r.now())
	r.nextMessageID++
	r.messages = append(r.messages, msg)

	if r.store != nil {
		if err := r.store.AppendMessage(ctx, r.id, msg.record()); err != nil {
			r.messages = r.messages[:len(r.messages)-1]
			r.nextMessageID--
			return nil, fmt.Errorf("append message: %w", err)
		}
	}
	return msg.clone(), nil
}

// EditMessage replaces a message's content. Only the original sender may
// edit, and only within the edit window. Timestamp, id, and read state are
// untouched.
func (r *Room) EditMessage(ctx context.Context, messageID, editorID int, newContent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := r.findMessage(messageID)
	if msg == nil {
		return newError(KindMessageNotFound, "message not found")
	}
	if msg.SenderID != editorID {
		return newError(KindPermissionDenied, "only the sender can edit a message")
	}
	if r.now().Sub(msg.CreatedAt) > EditWindow {
		return newError(KindEditTimeout, "edit window expired")
	}
	if newContent == "" {
		return newError(KindMessageEmpty, "message cannot be empty")
	}
	if len(newContent) > MaxMessageLength {
		return newError(KindMessageTooLong, fmt.Sprintf("message too long (max %d characters)", MaxMessageLength))
	}

	old := msg.Content
	msg.Content = newContent
	if r.store != nil {
		if err := r.store.UpdateMessage(ctx, r.id, msg.record()); err != nil {
			msg.Content = old
			return fmt.Errorf("update message: %w", err)
		}
	}
	return nil
}

// DeleteMessage hard-deletes a message from the log. Permitted for the
// original sender or anyone with admin privilege. The id is never reused.
func (r *Room) DeleteMessage(ctx context.Context, messageID, requesterID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, msg := range r.messages {
		if msg.ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return newError(KindMessageNotFound, "message not found")
	}
	msg := r.messages[idx]
	if msg.SenderID != requesterID && !r.hasAdminPrivilege(requesterID) {
		return newError(KindPermissionDenied, "only the sender or an admin can delete a message")
	}

	r.messages = append(r.messages[:idx], r.messages[idx+1:]...)
	if r.store != nil {
		if err := r.store.DeleteMessage(ctx, r.id, messageID); err != nil {
			r.messages = append(r.messages, nil)
			copy(r.messages[idx+1:], r.messages[idx:])
			r.messages[idx] = msg
			return fmt.Errorf("delete message: %w", err)
		}
	}
	return nil
}

// MarkMessageAsRead idempotently adds userID to a message's read set.
func (r *Room) MarkMessageAsRead(ctx context.Context, messageID, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isMember(userID) {
		return newError(KindNotMember, "user is not a member")
	}
	msg := r.findMessage(messageID)
	if msg == nil {
		return newError(KindMessageNotFound, "message not found")
	}
	if !msg.markRead(userID) {
		return nil
	}
	if r.store != nil {
		if err := r.store.UpdateMessage(ctx, r.id, msg.record()); err != nil {
			msg.unmarkRead(userID)
			return fmt.Errorf("update message read state: %w", err)
		}
	}
	return nil
}

// ForwardMessage copies a message into target via its own send path, so the
// target room's permission rules still apply to the forwarder. The original
// message is not mutated.
func (r *Room) ForwardMessage(ctx context.Context, messageID, forwarderID int, target *Room) (*Message, error) {
	r.mu.RLock()
	if !r.isMember(forwarderID) {
		r.mu.RUnlock()
		return nil, newError(KindNotMember, "user is not a member of the source room")
	}
	sourceName := r.name
	var content string
	found := false
	if msg := r.findMessage(messageID); msg != nil {
		content = msg.Content
		found = true
	}
	// Released before touching the target room so that two concurrent
	// forwards in opposite directions can never hold both locks.
	r.mu.RUnlock()

	if !target.IsMember(forwarderID) {
		return nil, newError(KindForwardNotMember, "user is not a member of the target room")
	}
	if !found {
		return nil, newError(KindForwardMessageNotFound, "message to forward not found")
	}

	return target.SendMessage(ctx, forwarderID, "[Forwarded from "+sourceName+"] "+content, MessageOptions{})
}

// PinMessage appends a message id to the pinned list. There is no unpin.
func (r *Room) PinMessage(ctx context.Context, userID, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isMember(userID) {
		return newError(KindNotMember, "only members can pin messages")
	}
	for _, id := range r.pinned {
		if id == messageID {
			return newError(KindMessageAlreadyPinned, "message already pinned")
		}
	}
	if r.findMessage(messageID) == nil {
		return newError(KindMessageNotFound, "message not found")
	}
	r.pinned = append(r.pinned, messageID)
	if err := r.saveRoomLocked(ctx); err != nil {
		r.pinned = r.pinned[:len(r.pinned)-1]
		return err
	}
	return nil
}

// SearchMessages returns every message whose content contains keyword, in
// log order. The scan is case-sensitive; no matches is not an error.
func (r *Room) SearchMessages(keyword string) []*Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := []*Message{}
	for _, msg := range r.messages {
		if strings.Contains(msg.Content, keyword) {
			results = append(results, msg.clone())
		}
	}
	return results
}

// ================= Queries and stats =================

// GetMessageByID returns a copy of the message, if present.
func (r *Room) GetMessageByID(messageID int) (*Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if msg := r.findMessage(messageID); msg != nil {
		return msg.clone(), true
	}
	return nil, false
}

// Messages returns a copy of the full log in order.
func (r *Room) Messages() []*Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Message, len(r.messages))
	for i, msg := range r.messages {
		out[i] = msg.clone()
	}
	return out
}

// PinnedMessages returns pinned ids that still resolve in the log. Dangling
// ids left behind by hard deletes are filtered out.
func (r *Room) PinnedMessages() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []int{}
	for _, id := range r.pinned {
		if r.findMessage(id) != nil {
			out = append(out, id)
		}
	}
	return out
}

// UnreadCount returns how many messages userID has not read. Non-members
// have no unread messages.
func (r *Room) UnreadCount(userID int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.isMember(userID) {
		return 0
	}
	count := 0
	for _, msg := range r.messages {
		if !msg.IsReadBy(userID) {
			count++
		}
	}
	return count
}

// UnreadMessages returns copies of the messages userID has not read.
func (r *Room) UnreadMessages(userID int) []*Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Message{}
	if !r.isMember(userID) {
		return out
	}
	for _, msg := range r.messages {
		if !msg.IsReadBy(userID) {
			out = append(out, msg.clone())
		}
	}
	return out
}

// MessagesWithReplies returns copies of the messages that are replies.
func (r *Room) MessagesWithReplies() []*Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Message{}
	for _, msg := range r.messages {
		if msg.IsReply() {
			out = append(out, msg.clone())
		}
	}
	return out
}

func (r *Room) TotalMessages() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

// Record snapshots the room for persistence.
func (r *Room) Record() RoomRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recordLocked()
}

// ================= Internals =================

func (r *Room) isMember(userID int) bool {
	_, ok := r.members[userID]
	return ok
}

func (r *Room) isAdmin(userID int) bool {
	_, ok := r.admins[userID]
	return ok
}

func (r *Room) hasAdminPrivilege(userID int) bool {
	return r.isAdmin(userID) || r.IsOwner(userID)
}

func (r *Room) requireAdmin(req Requester, denied string) error {
	if req.set && !r.hasAdminPrivilege(req.id) {
		return newError(KindPermissionDenied, denied)
	}
	return nil
}

func (r *Room) findMessage(messageID int) *Message {
	for _, msg := range r.messages {
		if msg.ID == messageID {
			return msg
		}
	}
	return nil
}

func (r *Room) generateInviteLink() {
	var b strings.Builder
	fmt.Fprintf(&b, "chatapp://join/%d/", r.id)
	for i := 0; i < inviteTokenLength; i++ {
		b.WriteByte(inviteAlphabet[rand.Intn(len(inviteAlphabet))])
	}
	r.inviteLink = b.String()
}

func (r *Room) recordLocked() RoomRecord {
	rec := RoomRecord{
		ID:                   r.id,
		Name:                 r.name,
		Bio:                  r.bio,
		Avatar:               r.avatar,
		Private:              r.private,
		InviteLink:           r.inviteLink,
		CreatorID:            r.creatorID,
		OnlyAdminsCanMessage: r.onlyAdminsCanMessage,
		Members:              sortedIDs(r.members),
		Admins:               sortedIDs(r.admins),
		Pinned:               append([]int{}, r.pinned...),
		NextMessageID:        r.nextMessageID,
	}
	for _, msg := range r.messages {
		rec.Messages = append(rec.Messages, msg.record())
	}
	return rec
}

func (r *Room) saveRoomLocked(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.SaveRoom(ctx, r.recordLocked()); err != nil {
		return fmt.Errorf("save room: %w", err)
	}
	return nil
}

func (r *Room) recordMembershipLocked(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.RecordMembership(ctx, r.id, sortedIDs(r.members), sortedIDs(r.admins)); err != nil {
		return fmt.Errorf("record membership: %w", err)
	}
	return nil
}

func attachmentTypeAllowed(ref string) bool {
	ext := strings.ToLower(filepath.Ext(ref))
	if ext == "" {
		return false
	}
	_, ok := allowedAttachmentExts[ext]
	return ok
}

func sortedIDs(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
