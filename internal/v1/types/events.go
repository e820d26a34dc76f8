package types

import "k8s.io/utils/set"

// Client-to-server events.
const (
	EventCreateRoom          = "create-room"
	EventJoinRoom            = "join-room"
	EventLeaveRoom           = "leave-room"
	EventKickPlayer          = "kick-player"
	EventUpdatePlayerName    = "update-player-name"
	EventPlayerReady         = "player-ready"
	EventGameSelected        = "game-selected" // request and broadcast share this name
	EventStartGame           = "start-game"
	EventRotatePlayers       = "rotate-players"
	EventRequestRoomSnapshot = "request-room-snapshot"
	EventRequestUserCount    = "request-user-count"
	EventTestMessage         = "test-message"
)

// Server-to-client events.
const (
	EventRoomCreated         = "room-created"
	EventRoomSnapshot        = "room-snapshot"
	EventPlayerJoined        = "player-joined"
	EventPlayerLeft          = "player-left"
	EventPlayersReadyUpdated = "players-ready-updated"
	EventGameStart           = "game-start"
	EventPlayersRotated      = "players-rotated"
	EventPlayerKicked        = "player-kicked"
	EventRoomClosed          = "room-closed"
	EventRoomClosedBroadcast = "room-closed-broadcast"
	EventHostDisconnected    = "host-disconnected"
	EventHostReconnected     = "host-reconnected"
	EventRoomList            = "room-list"
	EventRoomListUpdated     = "room-list-updated"
	EventRoomError           = "room-error"
	EventUserCountUpdate     = "user-count-update"
	EventTestResponse        = "test-response"
)

// Per-game events relayed verbatim to the room channel. Participant events may
// be sent by any member; authoritative events only by the host.
const (
	EventPaddleMove      = "paddle-move"
	EventDirectionChange = "direction-change"
	EventCardFlip        = "card-flip"
	EventPoleFlip        = "pole-flip"
	EventPlayerMove      = "player-move"

	EventGameStateUpdate  = "game-state-update"
	EventPongGameState    = "pong-game-state"
	EventSnakeGameState   = "snake-game-state"
	EventMemoryGameState  = "memory-game-state"
	EventMagnetGameState  = "magnet-game-state"
	EventMicrogameStart   = "microgame-start"
	EventMicrogamePlaying = "microgame-playing"
	EventMicrogameEnd     = "microgame-end"
)

// Actions carried by room-list-updated.
const (
	RoomListActionCreated = "created"
	RoomListActionUpdated = "updated"
	RoomListActionDeleted = "deleted"
)

var participantGameEvents = set.New(
	EventPaddleMove,
	EventDirectionChange,
	EventCardFlip,
	EventPoleFlip,
	EventPlayerMove,
)

var authoritativeGameEvents = set.New(
	EventGameStart,
	EventGameStateUpdate,
	EventPongGameState,
	EventSnakeGameState,
	EventMemoryGameState,
	EventMagnetGameState,
	EventMicrogameStart,
	EventMicrogamePlaying,
	EventMicrogameEnd,
)

// IsParticipantGameEvent reports whether any member may relay this event.
func IsParticipantGameEvent(event string) bool {
	return participantGameEvents.Has(event)
}

// IsAuthoritativeGameEvent reports whether only the host may relay this event.
func IsAuthoritativeGameEvent(event string) bool {
	return authoritativeGameEvents.Has(event)
}

// IsGameEvent reports whether the event belongs to either relay class.
func IsGameEvent(event string) bool {
	return participantGameEvents.Has(event) || authoritativeGameEvents.Has(event)
}
