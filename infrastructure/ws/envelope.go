// Package ws adapts the coordinator to a websocket transport: one Client
// per connection, JSON envelopes out, tagged frames in.
package ws

import (
	"encoding/json"
	"fmt"

	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/runtime"
)

// envelope is the outbound wire format. Topic carries the pub/sub channel
// the event was published on; Kind discriminates the payload.
type envelope struct {
	Topic   string          `json:"topic,omitempty"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func encode(e event.BroadcastEvent) (envelope, error) {
	var kind string
	switch e.(type) {
	case event.ChatMessage:
		kind = "message"
	case event.SystemNotice:
		kind = "system_notice"
	case event.TypingState:
		kind = "typing"
	case event.ParticipantListUpdate:
		kind = "participants"
	case event.MessageHistory:
		kind = "history"
	case event.OnlineStatusChange:
		kind = "status"
	case event.PersonalNotification:
		kind = "notification"
	default:
		return envelope{}, fmt.Errorf("unhandled event %T", e)
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Topic: e.Topic(), Kind: kind, Payload: payload}, nil
}

func errorEnvelope(code, detail string) envelope {
	payload, _ := json.Marshal(map[string]string{"code": code, "detail": detail})
	return envelope{Kind: "error", Payload: payload}
}

// inboundFrame is the inbound wire format, decoded into the coordinator's
// closed frame union.
type inboundFrame struct {
	Type     string  `json:"type"`
	Room     string  `json:"room"`
	Content  string  `json:"content,omitempty"`
	IsTyping bool    `json:"is_typing,omitempty"`
	Cursor   *string `json:"cursor,omitempty"`
}

func decodeFrame(data []byte) (runtime.Frame, error) {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	room := domain.RoomID(in.Room)
	switch in.Type {
	case "send":
		return runtime.SendMessage{Room: room, Content: in.Content}, nil
	case "join":
		return runtime.Join{Room: room}, nil
	case "leave":
		return runtime.Leave{Room: room}, nil
	case "typing":
		return runtime.Typing{Room: room, IsTyping: in.IsTyping}, nil
	case "history":
		return runtime.History{Room: room, Cursor: in.Cursor}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", in.Type)
	}
}
