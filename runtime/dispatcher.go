package runtime

import (
	"context"
	"log/slog"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
)

// Dispatcher fans broadcast events out to sinks. Subscribers are resolved
// through the registry at delivery time, never from a cached list, so a
// participant who disconnected before dispatch receives nothing.
//
// Delivery happens after the resolving read lock is released; a slow sink
// cannot stall presence bookkeeping. Events dispatched by a single caller
// reach the sinks in dispatch order. No ordering is guaranteed across
// concurrent producers.
type Dispatcher struct {
	log        *slog.Logger
	registry   *Registry
	membership *Membership
}

func NewDispatcher(log *slog.Logger, registry *Registry, membership *Membership) *Dispatcher {
	return &Dispatcher{log: log, registry: registry, membership: membership}
}

// ToRoom delivers to every connection of every identity currently in the
// room. Broadcasting to an empty room is not an error.
func (d *Dispatcher) ToRoom(ctx context.Context, roomID domain.RoomID, e event.BroadcastEvent) {
	ids := d.membership.Participants(roomID)
	d.deliver(ctx, d.registry.SinksForIdentities(ids), e)
}

// ToAll delivers to every live connection regardless of room membership,
// used for online-status changes and announcements.
func (d *Dispatcher) ToAll(ctx context.Context, e event.BroadcastEvent) {
	d.deliver(ctx, d.registry.AllSinks(), e)
}

// ToIdentity delivers to every live connection of one identity. A no-op when
// the identity is offline: personal events are at-most-once, never queued.
func (d *Dispatcher) ToIdentity(ctx context.Context, id domain.IdentityID, e event.BroadcastEvent) {
	d.deliver(ctx, d.registry.SinksForIdentity(id), e)
}

func (d *Dispatcher) deliver(ctx context.Context, sinks []contract.EventSink, e event.BroadcastEvent) {
	for _, sink := range sinks {
		if err := sink.Consume(ctx, e); err != nil {
			d.log.Warn("sink rejected event", "topic", e.Topic(), "error", err)
		}
	}
}
