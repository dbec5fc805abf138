package repositories

import (
	"context"
	"log/slog"
	"testing"

	"chat-hub/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStorage_RoomAccepts(t *testing.T) {
	req := require.New(t)
	storage := NewStorage(openDB(t), slog.Default(), nil)
	ctx := context.Background()

	// Given no room exists yet
	accepts, err := storage.RoomAccepts(ctx, "general")
	req.NoError(err)
	req.False(accepts)

	// When the room is created it accepts messages
	req.NoError(storage.CreateRoom("general", "General"))
	accepts, err = storage.RoomAccepts(ctx, "general")
	req.NoError(err)
	req.True(accepts)

	// When the room is closed it stops accepting
	req.NoError(storage.SetRoomOpen("general", false))
	accepts, err = storage.RoomAccepts(ctx, "general")
	req.NoError(err)
	req.False(accepts)
}

func TestStorage_CreateRoom_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	storage := NewStorage(openDB(t), slog.Default(), nil)
	ctx := context.Background()

	req.NoError(storage.CreateRoom("general", "General"))
	req.NoError(storage.SetRoomOpen("general", false))

	// When the seed runs again on restart
	req.NoError(storage.CreateRoom("general", "General"))

	// Then the existing record, closed bit included, is untouched
	accepts, err := storage.RoomAccepts(ctx, "general")
	req.NoError(err)
	req.False(accepts)
}

func TestStorage_Persist_And_Recent(t *testing.T) {
	req := require.New(t)
	storage := NewStorage(openDB(t), slog.Default(), nil)
	ctx := context.Background()
	req.NoError(storage.CreateRoom("general", "General"))

	// Given three messages stored in order
	contents := []string{"first", "second", "third"}
	for _, content := range contents {
		_, err := storage.Persist(ctx, "general", "alice", content)
		req.NoError(err)
	}
	// And one in another room
	_, err := storage.Persist(ctx, "lounge", "bob", "elsewhere")
	req.NoError(err)

	// When the room's recent messages are fetched
	messages, _, err := storage.Recent(ctx, "general", nil)
	req.NoError(err)

	// Then only that room's messages come back, newest first
	req.Equal([]string{"third", "second", "first"},
		lo.Map(messages, func(m domain.Message, _ int) string { return m.Content }))
}

func TestStorage_Recent_Cursor_Pagination(t *testing.T) {
	req := require.New(t)
	limit := 2
	storage := NewStorage(openDB(t), slog.Default(), &limit)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three", "four", "five"} {
		_, err := storage.Persist(ctx, "general", "alice", content)
		req.NoError(err)
	}

	// When pages are walked with the returned cursor
	page1, cursor, err := storage.Recent(ctx, "general", nil)
	req.NoError(err)
	req.Len(page1, 2)
	req.NotNil(cursor)

	page2, cursor, err := storage.Recent(ctx, "general", cursor)
	req.NoError(err)
	req.Len(page2, 2)
	req.NotNil(cursor)

	page3, _, err := storage.Recent(ctx, "general", cursor)
	req.NoError(err)
	req.Len(page3, 1)

	// Then the pages cover all five messages newest to oldest
	var all []string
	for _, page := range [][]domain.Message{page1, page2, page3} {
		for _, m := range page {
			all = append(all, m.Content)
		}
	}
	req.Equal([]string{"five", "four", "three", "two", "one"}, all)
}

func TestStorage_Recent_Empty_Room(t *testing.T) {
	req := require.New(t)
	storage := NewStorage(openDB(t), slog.Default(), nil)

	messages, cursor, err := storage.Recent(context.Background(), "ghost-room", nil)

	req.NoError(err)
	req.Empty(messages)
	req.Nil(cursor)
}
