package websocket

import (
	"encoding/json"
	"time"

	"github.com/kaiboard/backend/internal/tz"
)

// MessageType identifies the type of websocket message.
type MessageType string

const (
	// Server -> Client events
	TypeMeetingCreated      MessageType = "meeting.created"
	TypeMeetingUpdated      MessageType = "meeting.updated"
	TypeMeetingDeleted      MessageType = "meeting.deleted"
	TypeMeetingStartingSoon MessageType = "meeting.starting_soon"
	TypeMeetingCompleted    MessageType = "meeting.completed"
	TypeTimezoneChanged     MessageType = "user.timezone_changed"
	TypeNotification        MessageType = "notification"

	// Client -> Server commands
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"

	// Server -> Client responses
	TypeSubscribeAck MessageType = "subscribe.ack"
	TypePong         MessageType = "pong"
	TypeError        MessageType = "error"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a message stamped with the current UTC time.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// MeetingPayload is the payload for meeting.created and meeting.updated.
// Previews are computed at send time from the participants' current zones.
type MeetingPayload struct {
	MeetingID     string        `json:"meeting_id"`
	TeamID        string        `json:"team_id,omitempty"`
	Title         string        `json:"title"`
	StartsAt      tz.Instant    `json:"starts_at"`
	EndsAt        tz.Instant    `json:"ends_at"`
	OrganizerZone tz.Identifier `json:"organizer_zone"`
	Previews      []tz.Preview  `json:"previews"`
}

// MeetingDeletedPayload is the payload for meeting.deleted.
type MeetingDeletedPayload struct {
	MeetingID string `json:"meeting_id"`
	TeamID    string `json:"team_id,omitempty"`
}

// StartingSoonPayload is the payload for meeting.starting_soon.
type StartingSoonPayload struct {
	MeetingID    string       `json:"meeting_id"`
	TeamID       string       `json:"team_id,omitempty"`
	Title        string       `json:"title"`
	StartsAt     tz.Instant   `json:"starts_at"`
	MinutesUntil int          `json:"minutes_until"`
	Previews     []tz.Preview `json:"previews"`
}

// MeetingCompletedPayload is the payload for meeting.completed.
type MeetingCompletedPayload struct {
	MeetingIDs []string `json:"meeting_ids"`
}

// TimezoneChangedPayload is the payload for user.timezone_changed.
type TimezoneChangedPayload struct {
	UserID   string        `json:"user_id"`
	Previous tz.Identifier `json:"previous"`
	Current  tz.Identifier `json:"current"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// SubscribePayload is sent by clients with subscribe and unsubscribe.
type SubscribePayload struct {
	TeamIDs []string `json:"team_ids"`
}

// SubscribeAckPayload echoes the client's current subscriptions.
type SubscribeAckPayload struct {
	TeamIDs []string `json:"team_ids"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}

// inbound is a client frame with the payload left raw for later decoding.
type inbound struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
