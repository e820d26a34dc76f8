package types

import "time"

// Wire payload shapes. Field names follow the client protocol (camelCase).
// Unknown fields in inbound payloads are ignored by encoding/json, which is
// how client-supplied display attributes on create/join get dropped: the
// profile store wins.

// --- Client -> Server ---

// CreateRoomRequest asks the server to create a room with the sender as host.
type CreateRoomRequest struct {
	ProfileId  ProfileIdType   `json:"profileId"`
	PlayerName DisplayNameType `json:"playerName,omitempty"`
}

// JoinRoomRequest asks to join (or reconnect to) an existing room.
type JoinRoomRequest struct {
	RoomId     RoomIdType      `json:"roomId"`
	ProfileId  ProfileIdType   `json:"profileId"`
	PlayerName DisplayNameType `json:"playerName,omitempty"`
}

type LeaveRoomRequest struct {
	RoomId    RoomIdType    `json:"roomId"`
	ProfileId ProfileIdType `json:"profileId,omitempty"`
}

type KickPlayerRequest struct {
	RoomId    RoomIdType    `json:"roomId"`
	ProfileId ProfileIdType `json:"profileId"`
}

type UpdatePlayerNameRequest struct {
	RoomId     RoomIdType      `json:"roomId"`
	PlayerName DisplayNameType `json:"playerName"`
}

type PlayerReadyRequest struct {
	RoomId RoomIdType `json:"roomId"`
	Ready  bool       `json:"ready"`
}

type GameSelectedRequest struct {
	RoomId RoomIdType `json:"roomId"`
	Game   GameType   `json:"game"`
}

type StartGameRequest struct {
	RoomId RoomIdType `json:"roomId"`
}

type RotatePlayersRequest struct {
	RoomId          RoomIdType    `json:"roomId"`
	WinnerProfileId ProfileIdType `json:"winnerProfileId"`
	LoserProfileId  ProfileIdType `json:"loserProfileId"`
}

type RequestRoomSnapshotRequest struct {
	RoomId RoomIdType `json:"roomId"`
}

// --- Server -> Client ---

// PlayerSnapshot is one member's entry inside the canonical room snapshot.
type PlayerSnapshot struct {
	ProfileId    ProfileIdType    `json:"profileId"`
	ConnectionId ConnectionIdType `json:"connectionId,omitempty"`
	DisplayName  DisplayNameType  `json:"displayName"`
	Score        int              `json:"score"`
	Ready        bool             `json:"ready"`
	Color        string           `json:"color"`
	Emoji        string           `json:"emoji"`
}

// RoomSnapshot is the canonical state event every client reconciles against.
type RoomSnapshot struct {
	RoomId        RoomIdType       `json:"roomId"`
	HostProfileId ProfileIdType    `json:"hostProfileId"`
	Status        RoomStatusType   `json:"status"`
	SelectedGame  GameType         `json:"selectedGame,omitempty"`
	Players       []PlayerSnapshot `json:"players"`
}

// RoomSummary is one row of the lobby listing.
type RoomSummary struct {
	Id              RoomIdType      `json:"id"`
	HostDisplayName DisplayNameType `json:"hostDisplayName"`
	HostEmoji       string          `json:"hostEmoji"`
	PlayerCount     int             `json:"playerCount"`
	MaxPlayers      int             `json:"maxPlayers"`
	Status          RoomStatusType  `json:"status"`
}

// RoomDetails is the admin view of one room.
type RoomDetails struct {
	Id             RoomIdType     `json:"id"`
	HostProfileId  ProfileIdType  `json:"hostProfileId"`
	Status         RoomStatusType `json:"status"`
	SelectedGame   GameType       `json:"selectedGame,omitempty"`
	PlayerCount    int            `json:"playerCount"`
	MaxPlayers     int            `json:"maxPlayers"`
	GraceArmed     bool           `json:"graceArmed"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastActivityAt time.Time      `json:"lastActivityAt"`
}

// RoomCreatedEvent is sent to the creator only.
type RoomCreatedEvent struct {
	RoomId        RoomIdType       `json:"roomId"`
	Players       []PlayerSnapshot `json:"players"`
	HostProfileId ProfileIdType    `json:"hostProfileId"`
}

// PlayerJoinedEvent is broadcast to the room channel. IsHost refers to the
// player who just joined (true when the host reclaims their seat).
type PlayerJoinedEvent struct {
	Players       []PlayerSnapshot `json:"players"`
	GameState     RoomStatusType   `json:"gameState"`
	IsHost        bool             `json:"isHost"`
	HostProfileId ProfileIdType    `json:"hostProfileId"`
	SelectedGame  GameType         `json:"selectedGame,omitempty"`
	RoomId        RoomIdType       `json:"roomId"`
}

type PlayerLeftEvent struct {
	ProfileId ProfileIdType    `json:"profileId"`
	Players   []PlayerSnapshot `json:"players"`
	RoomId    RoomIdType       `json:"roomId"`
	Reason    string           `json:"reason,omitempty"`
}

type PlayersReadyUpdatedEvent struct {
	Players       []PlayerSnapshot `json:"players"`
	AllReady      bool             `json:"allReady"`
	HostProfileId ProfileIdType    `json:"hostProfileId"`
}

type GameSelectedEvent struct {
	Game          GameType         `json:"game"`
	Players       []PlayerSnapshot `json:"players"`
	HostProfileId ProfileIdType    `json:"hostProfileId"`
}

type GameStartEvent struct {
	Game GameType `json:"game"`
}

type PlayersRotatedEvent struct {
	WinnerProfileId ProfileIdType    `json:"winnerProfileId"`
	LoserProfileId  ProfileIdType    `json:"loserProfileId"`
	Players         []PlayerSnapshot `json:"players"`
}

// PlayerKickedEvent is sent to the kicked connection only.
type PlayerKickedEvent struct {
	RoomId  RoomIdType `json:"roomId"`
	Message string     `json:"message"`
}

// RoomClosedEvent is sent to the room channel when a room ends.
type RoomClosedEvent struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// RoomClosedBroadcastEvent is fanned out to every connection so lobby
// browsers drop the room immediately.
type RoomClosedBroadcastEvent struct {
	RoomId RoomIdType `json:"roomId"`
	Reason string     `json:"reason,omitempty"`
}

// HostDisconnectedEvent advises remaining members that the host dropped.
// ReconnectTimeout is in seconds.
type HostDisconnectedEvent struct {
	Message          string `json:"message"`
	ReconnectTimeout int    `json:"reconnectTimeout"`
}

type HostReconnectedEvent struct {
	Message string `json:"message"`
}

type RoomListEvent struct {
	Rooms []RoomSummary `json:"rooms"`
}

type RoomListUpdatedEvent struct {
	RoomId RoomIdType   `json:"roomId"`
	Action string       `json:"action"`
	Room   *RoomSummary `json:"room,omitempty"`
}

// RoomErrorEvent is targeted at the connection whose request failed. It is
// never broadcast.
type RoomErrorEvent struct {
	Message string `json:"message"`
}

type UserCountUpdateEvent struct {
	Count int `json:"count"`
}
