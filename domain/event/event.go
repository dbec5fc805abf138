// Package event defines the closed set of broadcast events the coordinator
// can deliver to connected clients, and the topics they are published on.
package event

import (
	"time"

	"chat-hub/domain"

	"github.com/google/uuid"
)

// Global topics.
const (
	StatusTopic   = "status"
	AnnounceTopic = "announce"
)

func RoomTopic(id domain.RoomID) string { return "room/" + string(id) }

func ParticipantsTopic(id domain.RoomID) string { return "room/" + string(id) + "/participants" }

func TypingTopic(id domain.RoomID) string { return "room/" + string(id) + "/typing" }

func HistoryTopic(id domain.RoomID) string { return "room/" + string(id) + "/history" }

func IdentityTopic(id domain.IdentityID) string { return "identity/" + string(id) }

// BroadcastEvent is the tagged union of everything the dispatcher can fan out.
// Topic tells the transport which logical channel the event belongs to.
type BroadcastEvent interface {
	Topic() string
}

// ChatMessage is a user-authored message, persisted before broadcast.
type ChatMessage struct {
	ID         uuid.UUID         `json:"id"`
	Room       domain.RoomID     `json:"room"`
	Author     domain.IdentityID `json:"author"`
	AuthorName string            `json:"author_name"`
	Content    string            `json:"content"`
	At         time.Time         `json:"at"`
}

func (e ChatMessage) Topic() string { return RoomTopic(e.Room) }

// SystemNotice is a synthetic chat-visible event (join/leave/eviction),
// distinct from user-authored messages and never persisted.
type SystemNotice struct {
	Room domain.RoomID `json:"room"`
	Text string        `json:"text"`
	At   time.Time     `json:"at"`
}

func (e SystemNotice) Topic() string { return RoomTopic(e.Room) }

type TypingState struct {
	Room        domain.RoomID     `json:"room"`
	Identity    domain.IdentityID `json:"identity"`
	DisplayName string            `json:"display_name"`
	IsTyping    bool              `json:"is_typing"`
}

func (e TypingState) Topic() string { return TypingTopic(e.Room) }

// ParticipantListUpdate carries the full current membership of a room.
type ParticipantListUpdate struct {
	Room         domain.RoomID       `json:"room"`
	Participants []domain.IdentityID `json:"participants"`
}

func (e ParticipantListUpdate) Topic() string { return ParticipantsTopic(e.Room) }

// MessageHistory answers one history request with a page of stored messages,
// newest first. It is delivered to the requesting connection only, never to
// the room.
type MessageHistory struct {
	Room       domain.RoomID `json:"room"`
	Messages   []ChatMessage `json:"messages"`
	NextCursor *string       `json:"next_cursor,omitempty"`
}

func (e MessageHistory) Topic() string { return HistoryTopic(e.Room) }

// OnlineStatusChange is emitted only on the zero-to-one and one-to-zero
// connection transitions of an identity.
type OnlineStatusChange struct {
	Identity    domain.IdentityID `json:"identity"`
	DisplayName string            `json:"display_name"`
	Online      bool              `json:"online"`
	At          time.Time         `json:"at"`
}

func (e OnlineStatusChange) Topic() string { return StatusTopic }

// PersonalNotification targets a single identity across all of its live
// connections. Best-effort, at-most-once: never queued for offline delivery.
type PersonalNotification struct {
	Identity domain.IdentityID `json:"identity"`
	Kind     string            `json:"kind"`
	Text     string            `json:"text"`
	Room     domain.RoomID     `json:"room,omitempty"`
}

func (e PersonalNotification) Topic() string { return IdentityTopic(e.Identity) }
