package meeting

import "errors"

var (
	// ErrNotFound means no meeting has the requested ID.
	ErrNotFound = errors.New("meeting not found")

	// ErrInvalidRange means the meeting would end at or before it starts.
	ErrInvalidRange = errors.New("meeting must end after it starts")

	// ErrUnknownParticipant means a participant ID matches no user.
	ErrUnknownParticipant = errors.New("unknown participant")

	// ErrMissingTitle means the meeting has no title.
	ErrMissingTitle = errors.New("meeting title is required")
)
