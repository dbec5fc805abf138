//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-hub/domain"
	"chat-hub/domain/event"
)

// EventSink is one connection's outbound channel to the transport.
// Consume must not block on network I/O; a slow consumer drops its own
// events rather than stalling the caller.
type EventSink interface {
	Consume(ctx context.Context, e event.BroadcastEvent) error
}

// IdentityDirectory resolves an opaque connection credential to a stable
// identity. Supplied by the external auth collaborator.
type IdentityDirectory interface {
	Authenticate(ctx context.Context, credential string) (domain.Identity, error)
}

// RoomStorage is the durable room/message collaborator. Room existence and
// the "accepts messages" bit live there, not in the coordinator.
type RoomStorage interface {
	RoomAccepts(ctx context.Context, roomID domain.RoomID) (bool, error)
	Persist(ctx context.Context, roomID domain.RoomID, sender domain.IdentityID, content string) (domain.Message, error)
	Recent(ctx context.Context, roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
}

// Messenger is the chat message pipeline: Send validates against room state,
// persists, then broadcasts; History reads a room's stored messages back,
// newest first, one cursor page at a time.
type Messenger interface {
	Send(ctx context.Context, sender domain.Identity, roomID domain.RoomID, content string) (domain.Message, error)
	History(ctx context.Context, roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
}

type Dispatcher interface {
	ToRoom(ctx context.Context, roomID domain.RoomID, e event.BroadcastEvent)
	ToAll(ctx context.Context, e event.BroadcastEvent)
	ToIdentity(ctx context.Context, id domain.IdentityID, e event.BroadcastEvent)
}

// Presence read queries exposed to operational tooling.
type Presence interface {
	IsOnline(id domain.IdentityID) bool
	OnlineCount() int
	SessionCount(id domain.IdentityID) int
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
