package types

import (
	"context"
	"encoding/json"
)

// --- Core Domain Types ---

// ProfileIdType is the stable identity issued by the profile store. All
// authority checks compare profile ids, never connection ids.
type ProfileIdType string

// ConnectionIdType identifies a single WebSocket connection. It is reassigned
// on every reconnect, even for the same profile.
type ConnectionIdType string

// RoomIdType is a six-digit numeric room code, e.g. "483920".
type RoomIdType string

// DisplayNameType represents the human-readable name for a player.
type DisplayNameType string

// GameType identifies one of the supported arcade games.
type GameType string

// RoomStatusType is the lifecycle state of a room.
type RoomStatusType string

// Supported games.
const (
	GamePong      GameType = "pong"
	GameSnake     GameType = "snake"
	GameMemory    GameType = "memory"
	GameMagnet    GameType = "magnet"
	GameWarioWare GameType = "warioware"
)

// Room lifecycle states. Transitions are monotonic toward RoomStatusEnded.
const (
	RoomStatusWaiting RoomStatusType = "waiting"
	RoomStatusPlaying RoomStatusType = "playing"
	RoomStatusEnded   RoomStatusType = "ended"
)

// Reasons attached to a player removal.
const (
	LeaveReasonLeft         = "left"
	LeaveReasonDisconnected = "disconnected"
	LeaveReasonGrace        = "disconnect-with-grace"
	LeaveReasonKicked       = "kicked"
	LeaveReasonStale        = "stale"
	LeaveReasonAdmin        = "admin"
)

// Reasons attached to a room close.
const (
	CloseReasonHostTimeout    = "host_timeout"
	CloseReasonHostLeft       = "host_left"
	CloseReasonAdminClosed    = "admin_closed"
	CloseReasonServerShutdown = "server_shutdown"
	CloseReasonEmpty          = "empty"
)

// Default display attributes used when the profile store has no value for a
// member. The store stays authoritative: client-supplied values are never
// substituted.
const (
	DefaultColor = "#FFFFFF"
	DefaultEmoji = "⚪"
)

// IsValidGame reports whether g names a supported game.
func IsValidGame(g GameType) bool {
	switch g {
	case GamePong, GameSnake, GameMemory, GameMagnet, GameWarioWare:
		return true
	}
	return false
}

// --- Wire Envelope ---

// Message is the wire envelope: one named event with a JSON payload.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarshalEvent serializes an envelope once so a broadcast can reuse the bytes
// for every recipient.
func MarshalEvent(event string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Message{Event: event, Payload: raw})
}

// --- Shared Interfaces ---

// AppearanceProvider supplies store-authoritative display attributes. It is
// consulted for every member on every snapshot build and must degrade to the
// defaults rather than fail.
type AppearanceProvider interface {
	Appearance(ctx context.Context, id ProfileIdType) (color string, emoji string)
}

// ClientInterface defines the behavior the room and lobby packages need from a
// WebSocket client without depending on the transport package.
type ClientInterface interface {
	GetID() ConnectionIdType
	GetProfileID() ProfileIdType
	SetProfileID(ProfileIdType)
	GetDisplayName() DisplayNameType
	SetDisplayName(DisplayNameType)
	// SendEvent marshals and queues a single event for this connection.
	SendEvent(event string, payload any)
	// SendRaw queues pre-serialized envelope bytes. Sends never block; a
	// receiver that cannot keep up is treated as lost by its write pump.
	SendRaw(data []byte)
	Disconnect() // Forcefully close the connection (e.g., when kicked)
}

// ConnectionRouter receives inbound messages and lifecycle signals from
// transport clients. The lobby Hub implements it.
type ConnectionRouter interface {
	Route(ctx context.Context, client ClientInterface, msg *Message)
	HandleClientConnect(client ClientInterface)
	HandleClientDisconnect(client ClientInterface)
}
