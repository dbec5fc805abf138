package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chat-hub/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// diskMessage is the stored form of a message.
type diskMessage struct {
	ID      uuid.UUID         `json:"id"`
	Room    domain.RoomID     `json:"room"`
	Sender  domain.IdentityID `json:"sender"`
	Content string            `json:"content"`
	At      time.Time         `json:"at"`
}

// Persist stores a message in BadgerDB.
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
func (s Storage) Persist(_ context.Context, roomID domain.RoomID, sender domain.IdentityID, content string) (domain.Message, error) {
	msg := domain.Message{
		ID:        uuid.New(),
		Room:      roomID,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	key := fmt.Sprintf("msg:%s:%019d:%s", msg.Room, msg.CreatedAt.UnixNano(), msg.ID)
	bytes, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	}); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// Recent retrieves messages for a room, newest first, using a reverse prefix
// scan. Thanks to the padded timestamp in the key the scan order is the
// chronological order. The returned cursor resumes the scan past the last
// message seen; collection stops at the configured limit.
func (s Storage) Recent(_ context.Context, roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	var diskMessages []diskMessage
	var lastKey string
	err := s.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", roomID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if s.limitMessages != nil && len(diskMessages) == *s.limitMessages {
				s.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *s.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			var dm diskMessage
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &dm)
			}); err != nil {
				return err
			}
			diskMessages = append(diskMessages, dm)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := lo.Map(diskMessages, func(dm diskMessage, _ int) domain.Message {
		return toMessage(dm)
	})
	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, lo.ToPtr(lastKey), nil
}

func fromMessage(m domain.Message) diskMessage {
	return diskMessage{ID: m.ID, Room: m.Room, Sender: m.Sender, Content: m.Content, At: m.CreatedAt}
}

func toMessage(dm diskMessage) domain.Message {
	return domain.Message{ID: dm.ID, Room: dm.Room, Sender: dm.Sender, Content: dm.Content, CreatedAt: dm.At}
}
