// Package repositories persists rooms and messages in BadgerDB. It backs the
// coordinator's RoomStorage collaborator; the coordinator itself never sees
// these types.
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"chat-hub/contract"
	"chat-hub/domain"

	"github.com/dgraph-io/badger/v4"
)

type Storage struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

var _ contract.RoomStorage = Storage{}

func NewStorage(db *badger.DB, log *slog.Logger, limitMessages *int) Storage {
	return Storage{db: db, log: log, limitMessages: limitMessages}
}

// RoomRecord is the on-disk representation of a chat room. Open is the
// "accepts messages" bit checked by the send pipeline.
type RoomRecord struct {
	ID        domain.RoomID `json:"id"`
	Name      string        `json:"name"`
	Open      bool          `json:"open"`
	CreatedAt time.Time     `json:"created_at"`
}

func roomKey(id domain.RoomID) []byte {
	return []byte("room:" + string(id))
}

// CreateRoom stores a room record, open by default. Existing rooms are left
// untouched so a restart can seed defaults idempotently.
func (s Storage) CreateRoom(roomID domain.RoomID, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(roomKey(roomID))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		record := RoomRecord{ID: roomID, Name: name, Open: true, CreatedAt: time.Now().UTC()}
		bytes, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return txn.Set(roomKey(roomID), bytes)
	})
}

// SetRoomOpen flips the accepts-messages bit of an existing room.
func (s Storage) SetRoomOpen(roomID domain.RoomID, open bool) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(roomID))
		if err != nil {
			return err
		}
		var record RoomRecord
		if err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &record)
		}); err != nil {
			return err
		}
		record.Open = open
		bytes, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return txn.Set(roomKey(roomID), bytes)
	})
}

// RoomAccepts reports whether a room exists and currently accepts messages.
// A missing room is false, not an error; the caller owns the error taxonomy.
func (s Storage) RoomAccepts(_ context.Context, roomID domain.RoomID) (bool, error) {
	var open bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(roomID))
		if err != nil {
			return err
		}
		var record RoomRecord
		if err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &record)
		}); err != nil {
			return err
		}
		open = record.Open
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return open, nil
}
