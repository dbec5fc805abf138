// Package services holds the chat send pipeline: the only path by which
// user content reaches a broadcast.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	apperrors "chat-hub/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type sendRequest struct {
	Room    string `validate:"required,min=1,max=128"`
	Content string `validate:"required,min=1,max=4096"`
}

var _ contract.Messenger = (*ChatService)(nil)

type ChatService struct {
	log        *slog.Logger
	storage    contract.RoomStorage
	dispatcher contract.Dispatcher
}

func NewChatService(log *slog.Logger, storage contract.RoomStorage, dispatcher contract.Dispatcher) *ChatService {
	return &ChatService{log: log, storage: storage, dispatcher: dispatcher}
}

// Send verifies the room accepts messages, persists the content, then hands
// the stored message to the dispatcher. Persistence failure aborts before
// any broadcast: an unpersisted message must never fan out. A send that
// lands on a room whose participant set just emptied still persists and
// simply broadcasts to nobody.
func (s *ChatService) Send(ctx context.Context, sender domain.Identity, roomID domain.RoomID, content string) (domain.Message, error) {
	req := sendRequest{Room: string(roomID), Content: content}
	if err := validate.Struct(req); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrInvalid, err)
	}

	accepts, err := s.storage.RoomAccepts(ctx, roomID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrStorage, err)
	}
	if !accepts {
		return domain.Message{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownRoom, roomID)
	}

	msg, err := s.storage.Persist(ctx, roomID, sender.ID, content)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrStorage, err)
	}

	s.dispatcher.ToRoom(ctx, roomID, event.ChatMessage{
		ID:         msg.ID,
		Room:       msg.Room,
		Author:     msg.Sender,
		AuthorName: sender.DisplayName,
		Content:    msg.Content,
		At:         msg.CreatedAt,
	})
	s.log.Debug("message broadcast", "room_id", roomID, "message_id", msg.ID)
	return msg, nil
}

// History reads one page of a room's stored messages, newest first. The room
// must be known to storage; an empty room is a valid empty page. History is
// a read and never broadcasts.
func (s *ChatService) History(ctx context.Context, roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	accepts, err := s.storage.RoomAccepts(ctx, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrStorage, err)
	}
	if !accepts {
		return nil, nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownRoom, roomID)
	}

	messages, next, err := s.storage.Recent(ctx, roomID, cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrStorage, err)
	}
	return messages, next, nil
}
