package websocket

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kaiboard/backend/internal/storage/models"
	"github.com/kaiboard/backend/internal/tz"
)

// EventBroadcaster turns domain changes into websocket messages.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// MeetingCreated announces a new meeting.
func (b *EventBroadcaster) MeetingCreated(m *models.Meeting, previews []tz.Preview) {
	b.sendMeeting(m, NewMessage(TypeMeetingCreated, meetingPayload(m, previews)))
}

// MeetingUpdated announces a rescheduled or edited meeting.
func (b *EventBroadcaster) MeetingUpdated(m *models.Meeting, previews []tz.Preview) {
	b.sendMeeting(m, NewMessage(TypeMeetingUpdated, meetingPayload(m, previews)))
}

// MeetingDeleted announces a removed meeting.
func (b *EventBroadcaster) MeetingDeleted(m *models.Meeting) {
	b.sendMeeting(m, NewMessage(TypeMeetingDeleted, MeetingDeletedPayload{
		MeetingID: m.ID,
		TeamID:    m.TeamID,
	}))
}

// MeetingStartingSoon reminds clients that a meeting is about to begin.
func (b *EventBroadcaster) MeetingStartingSoon(m *models.Meeting, previews []tz.Preview, now time.Time) {
	minutes := int(m.StartsAt.UTC().Sub(now.UTC()).Round(time.Minute) / time.Minute)
	b.sendMeeting(m, NewMessage(TypeMeetingStartingSoon, StartingSoonPayload{
		MeetingID:    m.ID,
		TeamID:       m.TeamID,
		Title:        m.Title,
		StartsAt:     m.StartsAt,
		MinutesUntil: minutes,
		Previews:     previews,
	}))
}

// MeetingsCompleted announces meetings the scheduler closed.
func (b *EventBroadcaster) MeetingsCompleted(ids []string) {
	if len(ids) == 0 {
		return
	}
	b.send("", NewMessage(TypeMeetingCompleted, MeetingCompletedPayload{MeetingIDs: ids}))
}

// TimezoneChanged announces a user's new zone so open previews refresh.
func (b *EventBroadcaster) TimezoneChanged(userID string, previous, current tz.Identifier) {
	b.send("", NewMessage(TypeTimezoneChanged, TimezoneChangedPayload{
		UserID:   userID,
		Previous: previous,
		Current:  current,
	}))
}

// Notification sends a toast to every client.
func (b *EventBroadcaster) Notification(level, title, message string) {
	b.send("", NewMessage(TypeNotification, NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}))
}

func (b *EventBroadcaster) send(teamID string, msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Error().Err(err).Str("type", string(msg.Type)).Msg("encoding websocket message")
		return
	}
	b.hub.BroadcastTeam(teamID, data)
}

// sendMeeting scopes msg to the meeting's team. Meetings without a team
// are private to their organizer and participants.
func (b *EventBroadcaster) sendMeeting(m *models.Meeting, msg Message) {
	if m.TeamID != "" {
		b.send(m.TeamID, msg)
		return
	}
	data, err := msg.JSON()
	if err != nil {
		log.Error().Err(err).Str("type", string(msg.Type)).Msg("encoding websocket message")
		return
	}
	b.hub.BroadcastUsers(meetingAudience(m), data)
}

func meetingAudience(m *models.Meeting) []string {
	audience := make([]string, 0, len(m.Participants)+1)
	if m.OrganizerID != "" {
		audience = append(audience, m.OrganizerID)
	}
	return append(audience, m.ParticipantIDs()...)
}

func meetingPayload(m *models.Meeting, previews []tz.Preview) MeetingPayload {
	if previews == nil {
		previews = []tz.Preview{}
	}
	return MeetingPayload{
		MeetingID:     m.ID,
		TeamID:        m.TeamID,
		Title:         m.Title,
		StartsAt:      m.StartsAt,
		EndsAt:        m.EndsAt,
		OrganizerZone: m.OrganizerZone,
		Previews:      previews,
	}
}

// HandleClientMessage applies a client command and returns the reply to
// send back to that client only.
func HandleClientMessage(client *Client, raw []byte) Message {
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return NewMessage(TypeError, ErrorPayload{Code: "bad_message", Message: "message is not valid JSON"})
	}

	switch in.Type {
	case TypePing:
		return NewMessage(TypePong, nil)

	case TypeSubscribe, TypeUnsubscribe:
		var p SubscribePayload
		if len(in.Payload) > 0 {
			if err := json.Unmarshal(in.Payload, &p); err != nil {
				return NewMessage(TypeError, ErrorPayload{
					Code:         "bad_payload",
					Message:      "payload must be {\"team_ids\": [...]}",
					OriginalType: string(in.Type),
				})
			}
		}
		if in.Type == TypeSubscribe {
			client.Subscribe(p.TeamIDs...)
		} else {
			client.Unsubscribe(p.TeamIDs...)
		}
		return NewMessage(TypeSubscribeAck, SubscribeAckPayload{TeamIDs: client.Teams()})

	default:
		return NewMessage(TypeError, ErrorPayload{
			Code:         "unknown_type",
			Message:      "unsupported message type",
			OriginalType: string(in.Type),
		})
	}
}
