package errors

import "errors"

// Validation errors. Surfaced before any network call is attempted.
var (
	ErrEmptyCallsign      = errors.New("callsign is empty")
	ErrEmptyMessage       = errors.New("message content is empty")
	ErrAttachmentTooLarge = errors.New("attachment exceeds maximum size")
	ErrNotMessageAuthor   = errors.New("only the message author may delete it")
)

// Sync/transport errors.
var (
	ErrUnreachable    = errors.New("station is not reachable")
	ErrRoomNotFound   = errors.New("room not found")
	ErrSendRejected   = errors.New("station rejected the message")
	ErrUploadFailed   = errors.New("file upload failed")
	ErrDownloadDenied = errors.New("download requires explicit user action")
)
