package chatsync

import "errors"

var (
	ErrNoSession          = errors.New("chatsync: no signed-in user")
	ErrNotOpen            = errors.New("chatsync: no conversation open")
	ErrLoadInFlight       = errors.New("chatsync: a load is already in flight")
	ErrSendInFlight       = errors.New("chatsync: a send is already in flight")
	ErrEmptyDraft         = errors.New("chatsync: nothing to send")
	ErrAlreadyRecording   = errors.New("chatsync: already recording")
	ErrNotRecording       = errors.New("chatsync: not recording")
	ErrNoCapture          = errors.New("chatsync: no audio capture device")
	ErrAttachmentTooLarge = errors.New("chatsync: attachment too large")
	ErrSubscriptionClosed = errors.New("chatsync: subscription closed")
)
