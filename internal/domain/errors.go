package domain

import "errors"

// Kind identifies one failure class in the engine's closed error taxonomy.
// Every failed room or registry operation reports exactly one Kind; all of
// them are recoverable by the caller.
type Kind string

const (
	KindPermissionDenied        Kind = "permission_denied"
	KindNotMember               Kind = "not_member"
	KindNotAdmin                Kind = "not_admin"
	KindNotOwner                Kind = "not_owner"
	KindUserAlreadyMember       Kind = "user_already_member"
	KindUserNotMember           Kind = "user_not_member"
	KindCannotRemoveOwner       Kind = "cannot_remove_owner"
	KindInvalidInviteLink       Kind = "invalid_invite_link"
	KindRoomNotFound            Kind = "room_not_found"
	KindMessageNotFound         Kind = "message_not_found"
	KindMessageEmpty            Kind = "message_empty"
	KindMessageTooLong          Kind = "message_too_long"
	KindMessageAlreadyPinned    Kind = "message_already_pinned"
	KindEditTimeout             Kind = "edit_timeout"
	KindInvalidRequest          Kind = "invalid_request"
	KindForwardNotMember        Kind = "forward_not_member"
	KindForwardMessageNotFound  Kind = "forward_message_not_found"
	KindForwardPermissionDenied Kind = "forward_permission_denied"
	KindReplyMessageNotFound    Kind = "reply_message_not_found"
	KindAttachmentTooLarge      Kind = "attachment_too_large"
	KindInvalidAttachmentType   Kind = "invalid_attachment_type"
)

// Error is the uniform failure value returned by engine operations.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same Kind, so callers can test outcomes with
// errors.Is against the exported sentinels below regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Sentinels for errors.Is matching, one per Kind.
var (
	ErrPermissionDenied        = &Error{Kind: KindPermissionDenied, Message: "permission denied"}
	ErrNotMember               = &Error{Kind: KindNotMember, Message: "user is not a member"}
	ErrNotAdmin                = &Error{Kind: KindNotAdmin, Message: "user is not an admin"}
	ErrNotOwner                = &Error{Kind: KindNotOwner, Message: "user is not the owner"}
	ErrUserAlreadyMember       = &Error{Kind: KindUserAlreadyMember, Message: "user is already a member"}
	ErrUserNotMember           = &Error{Kind: KindUserNotMember, Message: "user is not a member"}
	ErrCannotRemoveOwner       = &Error{Kind: KindCannotRemoveOwner, Message: "cannot remove room owner"}
	ErrInvalidInviteLink       = &Error{Kind: KindInvalidInviteLink, Message: "invalid invite link"}
	ErrRoomNotFound            = &Error{Kind: KindRoomNotFound, Message: "room not found"}
	ErrMessageNotFound         = &Error{Kind: KindMessageNotFound, Message: "message not found"}
	ErrMessageEmpty            = &Error{Kind: KindMessageEmpty, Message: "message is empty"}
	ErrMessageTooLong          = &Error{Kind: KindMessageTooLong, Message: "message too long"}
	ErrMessageAlreadyPinned    = &Error{Kind: KindMessageAlreadyPinned, Message: "message already pinned"}
	ErrEditTimeout             = &Error{Kind: KindEditTimeout, Message: "edit window expired"}
	ErrInvalidRequest          = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
	ErrForwardNotMember        = &Error{Kind: KindForwardNotMember, Message: "user is not a member of the target room"}
	ErrForwardMessageNotFound  = &Error{Kind: KindForwardMessageNotFound, Message: "message to forward not found"}
	ErrForwardPermissionDenied = &Error{Kind: KindForwardPermissionDenied, Message: "permission denied for forwarding"}
	ErrReplyMessageNotFound    = &Error{Kind: KindReplyMessageNotFound, Message: "reply target message not found"}
	ErrAttachmentTooLarge      = &Error{Kind: KindAttachmentTooLarge, Message: "attachment reference too large"}
	ErrInvalidAttachmentType   = &Error{Kind: KindInvalidAttachmentType, Message: "attachment type not allowed"}
)

// KindOf extracts the taxonomy Kind from err. The second return is false for
// nil and for infrastructure errors that are not part of the taxonomy.
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return "", false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
