// Package types is the client wire protocol. Every frame in either direction
// is an Envelope: {"event": <name>, "data": <payload>}.
package types

import "encoding/json"

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client -> Server
const (
	EvNewGame     = "new-game"
	EvLeaveGame   = "leave-game"
	EvPvE         = "pve"
	EvMatchmaking = "matchmaking"
	EvJoinGame    = "join-game"
	EvStartGame   = "start-game"
	EvSelectPiece = "select-piece"
	EvPlacePiece  = "place-piece"
)

// Server -> Client
const (
	EvConnected        = "connected"
	EvGameJoined       = "game-joined"
	EvGameLeft         = "game-left"
	EvPlayerJoined     = "player-joined"
	EvPlayerLeft       = "player-left"
	EvGameStarted      = "game-started"
	EvGameStateUpdated = "game-state-updated"
	EvGameAborted      = "game-aborted"
	EvError            = "error"
)

type GameRequest struct {
	GameID string `json:"gameId"`
}

// Piece and Cell are pointers so a missing field is distinguishable from 0.
type SelectPieceRequest struct {
	GameID string `json:"gameId"`
	Piece  *int   `json:"piece"`
}

type PlacePieceRequest struct {
	GameID string `json:"gameId"`
	Cell   *int   `json:"cell"`
}

type ConnectedResponse struct {
	PlayerID string `json:"playerId"`
}

// Players has one entry per seat; vacant seats are null.
type GameJoinedResponse struct {
	GameID  string    `json:"gameId"`
	Players []*string `json:"players"`
}

type GameLeftResponse struct {
	GameID string `json:"gameId"`
}

type PlayerJoinedResponse struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

type PlayerLeftResponse struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

type GameStartedResponse struct {
	GameID string `json:"gameId"`
}

type GameAbortedResponse struct {
	GameID string `json:"gameId"`
}

type ErrorResponse struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// Outbound is a server frame before encoding.
type Outbound struct {
	Event string
	Data  any
}

func (o Outbound) Marshal() ([]byte, error) {
	data, err := json.Marshal(o.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: o.Event, Data: data})
}

// Seats renders a seat pair for the wire.
func Seats(seats [2]string) []*string {
	out := make([]*string, len(seats))
	for i, s := range seats {
		if s != "" {
			id := s
			out[i] = &id
		}
	}
	return out
}
