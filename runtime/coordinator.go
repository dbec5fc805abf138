package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	apperrors "chat-hub/errors"
)

// Coordinator composes the registry, the membership tracker and the
// dispatcher behind the connection lifecycle. The transport adapter calls
// Connect/Disconnect/Handle; everything else is internal.
type Coordinator struct {
	log        *slog.Logger
	directory  contract.IdentityDirectory
	storage    contract.RoomStorage
	messenger  contract.Messenger
	registry   *Registry
	membership *Membership
	dispatcher *Dispatcher
}

func NewCoordinator(log *slog.Logger, directory contract.IdentityDirectory,
	storage contract.RoomStorage, messenger contract.Messenger,
	registry *Registry, membership *Membership, dispatcher *Dispatcher) *Coordinator {
	return &Coordinator{
		log:        log,
		directory:  directory,
		storage:    storage,
		messenger:  messenger,
		registry:   registry,
		membership: membership,
		dispatcher: dispatcher,
	}
}

// Connect authenticates a new transport session and registers it. The online
// broadcast fires only on the identity's zero-to-one connection transition.
// An authentication failure rejects the connection and mutates nothing.
func (c *Coordinator) Connect(ctx context.Context, connID domain.ConnectionID, credential string, sink contract.EventSink) (domain.Identity, error) {
	identity, err := c.directory.Authenticate(ctx, credential)
	if err != nil {
		return domain.Identity{}, err
	}

	first := c.registry.Register(connID, identity, sink)
	if first {
		c.dispatcher.ToAll(ctx, event.OnlineStatusChange{
			Identity:    identity.ID,
			DisplayName: identity.DisplayName,
			Online:      true,
			At:          time.Now(),
		})
	}
	c.log.Info("connection registered",
		"connection_id", connID,
		"identity_id", identity.ID,
		"sessions", c.registry.SessionCount(identity.ID))
	return identity, nil
}

// Disconnect removes a connection. Unknown connections are a silent no-op
// since disconnects race with cleanup. On the identity's last connection it
// emits the offline broadcast and clears the identity from every room it
// was in, one independent room at a time.
func (c *Coordinator) Disconnect(ctx context.Context, connID domain.ConnectionID) {
	identity, last, found := c.registry.Deregister(connID)
	if !found {
		return
	}
	c.log.Info("connection removed", "connection_id", connID, "identity_id", identity.ID)
	if !last {
		return
	}

	c.dispatcher.ToAll(ctx, event.OnlineStatusChange{
		Identity:    identity.ID,
		DisplayName: identity.DisplayName,
		Online:      false,
		At:          time.Now(),
	})

	for _, roomID := range c.membership.RemoveEverywhere(identity.ID) {
		c.dispatcher.ToRoom(ctx, roomID, event.SystemNotice{
			Room: roomID,
			Text: identity.DisplayName + " left",
			At:   time.Now(),
		})
		c.dispatcher.ToRoom(ctx, roomID, event.ParticipantListUpdate{
			Room:         roomID,
			Participants: c.membership.Participants(roomID),
		})
	}
}

// Handle processes one inbound frame from an authenticated connection.
// Errors are returned to the transport for per-request reporting to the
// originating connection; they are never broadcast.
func (c *Coordinator) Handle(ctx context.Context, connID domain.ConnectionID, frame Frame) error {
	identity, ok := c.registry.IdentityOf(connID)
	if !ok {
		return fmt.Errorf("%w: unknown connection %s", apperrors.ErrAuth, connID)
	}

	switch f := frame.(type) {
	case SendMessage:
		_, err := c.messenger.Send(ctx, identity, f.Room, f.Content)
		return err
	case Join:
		return c.join(ctx, identity, f.Room)
	case Leave:
		c.leave(ctx, identity, f.Room)
		return nil
	case Typing:
		c.typing(ctx, identity, f.Room, f.IsTyping)
		return nil
	case History:
		return c.history(ctx, connID, f.Room, f.Cursor)
	default:
		return fmt.Errorf("unhandled frame %T", frame)
	}
}

// history answers a request for a room's stored messages. The page goes back
// on the requesting connection only; the identity's other devices did not
// ask and hear nothing. Author display names are resolved against the
// registry; offline authors keep their raw identity id.
func (c *Coordinator) history(ctx context.Context, connID domain.ConnectionID, roomID domain.RoomID, cursor *string) error {
	messages, next, err := c.messenger.History(ctx, roomID, cursor)
	if err != nil {
		return err
	}
	sink, ok := c.registry.Sink(connID)
	if !ok {
		// The connection dropped while the page was being read.
		return nil
	}

	items := make([]event.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		name := string(msg.Sender)
		if author, online := c.registry.Identity(msg.Sender); online {
			name = author.DisplayName
		}
		items = append(items, event.ChatMessage{
			ID:         msg.ID,
			Room:       msg.Room,
			Author:     msg.Sender,
			AuthorName: name,
			Content:    msg.Content,
			At:         msg.CreatedAt,
		})
	}
	return sink.Consume(ctx, event.MessageHistory{Room: roomID, Messages: items, NextCursor: next})
}

// join checks room existence against storage before touching the tracker.
// Re-joining is a no-op that still refreshes the participant list for the
// caller's UI, but does not repeat the join notice.
func (c *Coordinator) join(ctx context.Context, identity domain.Identity, roomID domain.RoomID) error {
	accepts, err := c.storage.RoomAccepts(ctx, roomID)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStorage, err)
	}
	if !accepts {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownRoom, roomID)
	}

	if c.membership.Join(roomID, identity.ID) {
		c.dispatcher.ToRoom(ctx, roomID, event.SystemNotice{
			Room: roomID,
			Text: identity.DisplayName + " joined",
			At:   time.Now(),
		})
	}
	c.dispatcher.ToRoom(ctx, roomID, event.ParticipantListUpdate{
		Room:         roomID,
		Participants: c.membership.Participants(roomID),
	})
	return nil
}

func (c *Coordinator) leave(ctx context.Context, identity domain.Identity, roomID domain.RoomID) {
	if !c.membership.Leave(roomID, identity.ID) {
		return
	}
	c.dispatcher.ToRoom(ctx, roomID, event.SystemNotice{
		Room: roomID,
		Text: identity.DisplayName + " left",
		At:   time.Now(),
	})
	c.dispatcher.ToRoom(ctx, roomID, event.ParticipantListUpdate{
		Room:         roomID,
		Participants: c.membership.Participants(roomID),
	})
}

// typing relays a typing indicator to the room's typing topic. Indicators
// from non-members are dropped; they carry no state and warrant no error.
func (c *Coordinator) typing(ctx context.Context, identity domain.Identity, roomID domain.RoomID, isTyping bool) {
	if !c.membership.IsMember(roomID, identity.ID) {
		return
	}
	c.dispatcher.ToRoom(ctx, roomID, event.TypingState{
		Room:        roomID,
		Identity:    identity.ID,
		DisplayName: identity.DisplayName,
		IsTyping:    isTyping,
	})
}

// OnlineCount reports how many identities currently have at least one
// live connection.
func (c *Coordinator) OnlineCount() int { return c.registry.OnlineCount() }

func (c *Coordinator) SessionCount(id domain.IdentityID) int { return c.registry.SessionCount(id) }

func (c *Coordinator) RoomParticipantCount(roomID domain.RoomID) int {
	return c.membership.Count(roomID)
}

// ForceLeave evicts an identity from a room on behalf of operational
// tooling. The room learns about it through the usual notice and
// participant-list events; the evicted identity additionally receives a
// personal eviction signal on every live device.
func (c *Coordinator) ForceLeave(ctx context.Context, id domain.IdentityID, roomID domain.RoomID, reason string) {
	identity, online := c.registry.Identity(id)
	if !online {
		identity = domain.Identity{ID: id, DisplayName: string(id)}
	}

	if c.membership.Leave(roomID, id) {
		c.dispatcher.ToRoom(ctx, roomID, event.SystemNotice{
			Room: roomID,
			Text: identity.DisplayName + " was removed: " + reason,
			At:   time.Now(),
		})
		c.dispatcher.ToRoom(ctx, roomID, event.ParticipantListUpdate{
			Room:         roomID,
			Participants: c.membership.Participants(roomID),
		})
	}

	c.dispatcher.ToIdentity(ctx, id, event.PersonalNotification{
		Identity: id,
		Kind:     "eviction",
		Text:     reason,
		Room:     roomID,
	})
}
