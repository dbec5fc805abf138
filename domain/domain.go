// Package domain contains core concepts of the presence coordinator.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

type IdentityID string

type RoomID string

// ConnectionID identifies one live transport session. An identity may own
// several connections at once (multi-device).
type ConnectionID string

// Identity is the authenticated user a connection belongs to.
// The directory owns the full record; we only carry id and display name.
type Identity struct {
	ID          IdentityID
	DisplayName string
}

// Connection is one live transport session bound to an identity.
// Created on successful authentication, destroyed on disconnect.
type Connection struct {
	ID        ConnectionID
	Identity  Identity
	CreatedAt time.Time
}
