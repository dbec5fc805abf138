package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"chat-hub/domain"
	"chat-hub/domain/event"
	apperrors "chat-hub/errors"
	"chat-hub/services"

	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	identities map[string]domain.Identity
}

func (d *fakeDirectory) Authenticate(_ context.Context, credential string) (domain.Identity, error) {
	identity, ok := d.identities[credential]
	if !ok {
		return domain.Identity{}, fmt.Errorf("%w: bad credential", apperrors.ErrAuth)
	}
	return identity, nil
}

type fakeStorage struct {
	mu         sync.Mutex
	open       map[domain.RoomID]bool
	persistErr error
	persisted  []domain.Message
	recent     []domain.Message
}

func (s *fakeStorage) RoomAccepts(_ context.Context, roomID domain.RoomID) (bool, error) {
	return s.open[roomID], nil
}

func (s *fakeStorage) Persist(_ context.Context, roomID domain.RoomID, sender domain.IdentityID, content string) (domain.Message, error) {
	if s.persistErr != nil {
		return domain.Message{}, s.persistErr
	}
	msg := domain.Message{Room: roomID, Sender: sender, Content: content}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persisted = append(s.persisted, msg)
	return msg, nil
}

func (s *fakeStorage) Recent(_ context.Context, roomID domain.RoomID, _ *string) ([]domain.Message, *string, error) {
	var page []domain.Message
	for _, msg := range s.recent {
		if msg.Room == roomID {
			page = append(page, msg)
		}
	}
	return page, nil, nil
}

func (s *fakeStorage) persistedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.persisted)
}

type fixture struct {
	coordinator *Coordinator
	storage     *fakeStorage
}

func newFixture() fixture {
	log := slog.Default()
	registry := NewRegistry()
	membership := NewMembership()
	dispatcher := NewDispatcher(log, registry, membership)
	storage := &fakeStorage{open: map[domain.RoomID]bool{"general": true}}
	directory := &fakeDirectory{identities: map[string]domain.Identity{
		"token-a": {ID: "alice", DisplayName: "Alice"},
		"token-b": {ID: "bob", DisplayName: "Bob"},
	}}
	messenger := services.NewChatService(log, storage, dispatcher)
	coordinator := NewCoordinator(log, directory, storage, messenger, registry, membership, dispatcher)
	return fixture{coordinator: coordinator, storage: storage}
}

func ofType[T event.BroadcastEvent](events []event.BroadcastEvent) []T {
	var out []T
	for _, e := range events {
		if typed, ok := e.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func TestCoordinator_Connect_Bad_Credential_Mutates_Nothing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()

	// When a connection presents an invalid credential
	_, err := f.coordinator.Connect(ctx, conn(), "forged", &recorderSink{})

	// Then the typed error comes back and nothing was registered
	req.ErrorIs(err, apperrors.ErrAuth)
	req.Zero(f.coordinator.OnlineCount())
}

func TestCoordinator_Online_Transitions_Broadcast_Once(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()

	phone := &recorderSink{}
	laptop := &recorderSink{}
	phoneConn := conn()
	laptopConn := conn()

	// When Alice connects on two devices
	_, err := f.coordinator.Connect(ctx, phoneConn, "token-a", phone)
	req.NoError(err)
	_, err = f.coordinator.Connect(ctx, laptopConn, "token-a", laptop)
	req.NoError(err)

	// Then only the first connect produced an online status change
	req.Len(ofType[event.OnlineStatusChange](phone.Events()), 1)
	req.Empty(ofType[event.OnlineStatusChange](laptop.Events()))

	// When the first device disconnects, Alice stays online silently
	f.coordinator.Disconnect(ctx, phoneConn)
	req.Empty(ofType[event.OnlineStatusChange](laptop.Events()))
	req.Equal(1, f.coordinator.OnlineCount())

	// When the last device disconnects the offline transition fires; the
	// departed connection itself is already out of the global topic.
	f.coordinator.Disconnect(ctx, laptopConn)
	req.Zero(f.coordinator.OnlineCount())
}

func TestCoordinator_Scenario_Two_Identities_In_General(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()

	alicePhone := &recorderSink{}
	aliceLaptop := &recorderSink{}
	bobSink := &recorderSink{}
	bobConn := conn()

	// Given identity A connected on 2 devices, joined to "general"
	phoneConn := conn()
	_, err := f.coordinator.Connect(ctx, phoneConn, "token-a", alicePhone)
	req.NoError(err)
	_, err = f.coordinator.Connect(ctx, conn(), "token-a", aliceLaptop)
	req.NoError(err)
	req.NoError(f.coordinator.Handle(ctx, phoneConn, Join{Room: "general"}))

	req.Equal(1, f.coordinator.OnlineCount())
	req.Equal(2, f.coordinator.SessionCount("alice"))
	req.Equal(1, f.coordinator.RoomParticipantCount("general"))

	// When identity B connects and joins "general"
	_, err = f.coordinator.Connect(ctx, bobConn, "token-b", bobSink)
	req.NoError(err)
	req.NoError(f.coordinator.Handle(ctx, bobConn, Join{Room: "general"}))

	// Then both of A's devices saw the participant list update
	req.Equal(2, f.coordinator.RoomParticipantCount("general"))
	phoneUpdates := ofType[event.ParticipantListUpdate](alicePhone.Events())
	laptopUpdates := ofType[event.ParticipantListUpdate](aliceLaptop.Events())
	req.NotEmpty(phoneUpdates)
	req.NotEmpty(laptopUpdates)
	req.Equal([]domain.IdentityID{"alice", "bob"}, phoneUpdates[len(phoneUpdates)-1].Participants)

	// When B disconnects entirely
	f.coordinator.Disconnect(ctx, bobConn)

	// Then A remains, saw the leave notice and the shrunken list
	req.Equal(1, f.coordinator.OnlineCount())
	req.Equal(1, f.coordinator.RoomParticipantCount("general"))
	notices := ofType[event.SystemNotice](alicePhone.Events())
	req.NotEmpty(notices)
	req.Equal("Bob left", notices[len(notices)-1].Text)
	phoneUpdates = ofType[event.ParticipantListUpdate](alicePhone.Events())
	req.Equal([]domain.IdentityID{"alice"}, phoneUpdates[len(phoneUpdates)-1].Participants)
}

func TestCoordinator_Join_Is_Idempotent_But_Refreshes_List(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()

	sink := &recorderSink{}
	aliceConn := conn()
	_, err := f.coordinator.Connect(ctx, aliceConn, "token-a", sink)
	req.NoError(err)

	// When Alice joins the same room twice
	req.NoError(f.coordinator.Handle(ctx, aliceConn, Join{Room: "general"}))
	req.NoError(f.coordinator.Handle(ctx, aliceConn, Join{Room: "general"}))

	// Then membership is unchanged, the join notice fired once, and each
	// call still refreshed the participant list
	req.Equal(1, f.coordinator.RoomParticipantCount("general"))
	req.Len(ofType[event.SystemNotice](sink.Events()), 1)
	req.Len(ofType[event.ParticipantListUpdate](sink.Events()), 2)
}

func TestCoordinator_Join_Unknown_Room_Rejected(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()

	sink := &recorderSink{}
	aliceConn := conn()
	_, err := f.coordinator.Connect(ctx, aliceConn, "token-a", sink)
	req.NoError(err)

	// When Alice joins a room storage does not know
	err = f.coordinator.Handle(ctx, aliceConn, Join{Room: "nowhere"})

	// Then the request is rejected before the tracker is touched
	req.ErrorIs(err, apperrors.ErrUnknownRoom)
	req.Zero(f.coordinator.RoomParticipantCount("nowhere"))
}

func TestCoordinator_Full_Disconnect_Clears_All_Rooms(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()
	f.storage.open["lounge"] = true

	bobSink := &recorderSink{}
	aliceConn := conn()
	bobConn := conn()
	_, err := f.coordinator.Connect(ctx, aliceConn, "token-a", &recorderSink{})
	req.NoError(err)
	_, err = f.coordinator.Connect(ctx, bobConn, "token-b", bobSink)
	req.NoError(err)
	req.NoError(f.coordinator.Handle(ctx, aliceConn, Join{Room: "general"}))
	req.NoError(f.coordinator.Handle(ctx, aliceConn, Join{Room: "lounge"}))
	req.NoError(f.coordinator.Handle(ctx, bobConn, Join{Room: "general"}))

	// When Alice's only connection drops
	f.coordinator.Disconnect(ctx, aliceConn)

	// Then she is in no room anymore and Bob saw her go
	req.Zero(f.coordinator.RoomParticipantCount("lounge"))
	req.Equal(1, f.coordinator.RoomParticipantCount("general"))
	notices := ofType[event.SystemNotice](bobSink.Events())
	req.NotEmpty(notices)
	req.Equal("Alice left", notices[len(notices)-1].Text)
}

func TestCoordinator_Typing_Relayed_To_Members_Only(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()

	bobSink := &recorderSink{}
	aliceConn := conn()
	bobConn := conn()
	_, err := f.coordinator.Connect(ctx, aliceConn, "token-a", &recorderSink{})
	req.NoError(err)
	_, err = f.coordinator.Connect(ctx, bobConn, "token-b", bobSink)
	req.NoError(err)
	req.NoError(f.coordinator.Handle(ctx, bobConn, Join{Room: "general"}))

	// When a non-member sends a typing indicator it is dropped
	req.NoError(f.coordinator.Handle(ctx, aliceConn, Typing{Room: "general", IsTyping: true}))
	req.Empty(ofType[event.TypingState](bobSink.Events()))

	// When a member types, the room sees it
	req.NoError(f.coordinator.Handle(ctx, aliceConn, Join{Room: "general"}))
	req.NoError(f.coordinator.Handle(ctx, aliceConn, Typing{Room: "general", IsTyping: true}))
	states := ofType[event.TypingState](bobSink.Events())
	req.Len(states, 1)
	req.True(states[0].IsTyping)
	req.Equal(domain.IdentityID("alice"), states[0].Identity)
}

func TestCoordinator_Handle_Unknown_Connection(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	// When a frame arrives for a connection that was never authenticated
	err := f.coordinator.Handle(context.Background(), conn(), Join{Room: "general"})

	req.ErrorIs(err, apperrors.ErrAuth)
}

func TestCoordinator_ForceLeave_Evicts_And_Notifies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()

	alicePhone := &recorderSink{}
	aliceLaptop := &recorderSink{}
	bobSink := &recorderSink{}
	aliceConn := conn()
	bobConn := conn()
	_, err := f.coordinator.Connect(ctx, aliceConn, "token-a", alicePhone)
	req.NoError(err)
	_, err = f.coordinator.Connect(ctx, conn(), "token-a", aliceLaptop)
	req.NoError(err)
	_, err = f.coordinator.Connect(ctx, bobConn, "token-b", bobSink)
	req.NoError(err)
	req.NoError(f.coordinator.Handle(ctx, aliceConn, Join{Room: "general"}))
	req.NoError(f.coordinator.Handle(ctx, bobConn, Join{Room: "general"}))

	// When an operator evicts Alice from the room
	f.coordinator.ForceLeave(ctx, "alice", "general", "spamming")

	// Then she is out, the room heard about it, and every one of her
	// devices received the personal eviction signal
	req.Equal(1, f.coordinator.RoomParticipantCount("general"))
	notices := ofType[event.SystemNotice](bobSink.Events())
	req.NotEmpty(notices)
	req.Equal("Alice was removed: spamming", notices[len(notices)-1].Text)
	req.Len(ofType[event.PersonalNotification](alicePhone.Events()), 1)
	req.Len(ofType[event.PersonalNotification](aliceLaptop.Events()), 1)
	req.Empty(ofType[event.PersonalNotification](bobSink.Events()))
}

func TestCoordinator_Send_Reaches_Current_Participants(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()

	bobSink := &recorderSink{}
	aliceConn := conn()
	bobConn := conn()
	_, err := f.coordinator.Connect(ctx, aliceConn, "token-a", &recorderSink{})
	req.NoError(err)
	_, err = f.coordinator.Connect(ctx, bobConn, "token-b", bobSink)
	req.NoError(err)
	req.NoError(f.coordinator.Handle(ctx, aliceConn, Join{Room: "general"}))
	req.NoError(f.coordinator.Handle(ctx, bobConn, Join{Room: "general"}))

	// Given Bob left immediately before Alice's send
	req.NoError(f.coordinator.Handle(ctx, bobConn, Leave{Room: "general"}))

	// When Alice sends a message
	req.NoError(f.coordinator.Handle(ctx, aliceConn, SendMessage{Room: "general", Content: "hi"}))

	// Then it persisted but Bob received no chat message for it
	req.Len(f.storage.persisted, 1)
	req.Empty(ofType[event.ChatMessage](bobSink.Events()))
}

func TestCoordinator_History_Replies_To_Requesting_Connection_Only(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()
	f.storage.recent = []domain.Message{
		{Room: "general", Sender: "bob", Content: "newest"},
		{Room: "general", Sender: "ghost", Content: "oldest"},
	}

	alicePhone := &recorderSink{}
	aliceLaptop := &recorderSink{}
	bobSink := &recorderSink{}
	phoneConn := conn()
	_, err := f.coordinator.Connect(ctx, phoneConn, "token-a", alicePhone)
	req.NoError(err)
	_, err = f.coordinator.Connect(ctx, conn(), "token-a", aliceLaptop)
	req.NoError(err)
	_, err = f.coordinator.Connect(ctx, conn(), "token-b", bobSink)
	req.NoError(err)

	// When Alice's phone asks for the room's history
	req.NoError(f.coordinator.Handle(ctx, phoneConn, History{Room: "general"}))

	// Then the page lands on that connection alone
	pages := ofType[event.MessageHistory](alicePhone.Events())
	req.Len(pages, 1)
	req.Empty(ofType[event.MessageHistory](aliceLaptop.Events()))
	req.Empty(ofType[event.MessageHistory](bobSink.Events()))

	// And author names resolve through presence: online authors by display
	// name, offline authors by their raw id
	req.Len(pages[0].Messages, 2)
	req.Equal("Bob", pages[0].Messages[0].AuthorName)
	req.Equal("ghost", pages[0].Messages[1].AuthorName)
}

func TestCoordinator_History_Unknown_Room_Rejected(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()

	aliceConn := conn()
	_, err := f.coordinator.Connect(ctx, aliceConn, "token-a", &recorderSink{})
	req.NoError(err)

	err = f.coordinator.Handle(ctx, aliceConn, History{Room: "nowhere"})

	req.ErrorIs(err, apperrors.ErrUnknownRoom)
}

func TestCoordinator_Concurrent_Lifecycles_Drain_To_Zero(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()

	// Given many goroutines churning full lifecycles against the same two
	// identities: connect, join, send, type, leave, disconnect
	const goroutines = 16
	const cycles = 50
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		credential := "token-a"
		if g%2 == 1 {
			credential = "token-b"
		}
		wg.Add(1)
		go func(credential string) {
			defer wg.Done()
			for i := 0; i < cycles; i++ {
				device := conn()
				if _, err := f.coordinator.Connect(ctx, device, credential, &recorderSink{}); err != nil {
					t.Error(err)
					return
				}
				if err := f.coordinator.Handle(ctx, device, Join{Room: "general"}); err != nil {
					t.Error(err)
					return
				}
				if err := f.coordinator.Handle(ctx, device, SendMessage{Room: "general", Content: "ping"}); err != nil {
					t.Error(err)
					return
				}
				_ = f.coordinator.Handle(ctx, device, Typing{Room: "general", IsTyping: true})
				_ = f.coordinator.Handle(ctx, device, Leave{Room: "general"})
				f.coordinator.Disconnect(ctx, device)
			}
		}(credential)
	}
	wg.Wait()

	// Then whatever the interleaving, every map drained: nobody online, no
	// sessions, no room membership left behind
	req.Zero(f.coordinator.OnlineCount())
	req.Zero(f.coordinator.SessionCount("alice"))
	req.Zero(f.coordinator.SessionCount("bob"))
	req.Zero(f.coordinator.RoomParticipantCount("general"))
	req.Equal(goroutines*cycles, f.storage.persistedCount())
}
