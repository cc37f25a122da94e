package errors

var (
	// Domain errors used by the chat store and its callers
	ErrEmptyName       = Validation("chat name cannot be empty")
	ErrChatNotFound    = NotFound("chat not found")
	ErrMessageNotFound = NotFound("message not found")
	ErrEmptyMessage    = Validation("message text cannot be empty")
	ErrNoAttachment    = NotFound("attachment not found")

	// Media capture errors reported by the browser collaborator
	ErrMediaPermission = MediaAccess("camera or microphone permission denied")
	ErrMediaNoDevice   = MediaAccess("no capture device found")
	ErrMediaOther      = MediaAccess("media capture failed")
	ErrMediaTooLarge   = Validation("media payload exceeds the size limit")
	ErrMediaBadType    = Validation("unsupported media content type")
)

func ErrSnapshotSaveFailed(cause error) error {
	return Storage("failed to persist snapshot", cause)
}

func ErrFeedSaveFailed(cause error) error {
	return Storage("failed to persist notification feed", cause)
}

func ErrGenerationFailed(cause error) error {
	return External("text generation request failed", cause)
}
