package types

// GameStateUpdated is the room-wide snapshot sent after every accepted
// mutation. CurrentTurn is 0 while choosing a piece and 1 while placing it.
type GameStateUpdated struct {
	GameID          string   `json:"gameId"`
	CurrentTurn     int      `json:"currentTurn"`
	CurrentPlayerID *string  `json:"currentPlayerId"`
	CurrentPiece    *int     `json:"currentPiece"`
	Board           [][]*int `json:"board"`
	AvailablePieces []int    `json:"availablePieces"`
	GameOver        bool     `json:"gameOver"`
	WinnerID        *string  `json:"winnerId"`
	IsDraw          bool     `json:"isDraw"`
	Abandoned       bool     `json:"abandoned"`
	WinningLines    [][]int  `json:"winningLines"`
}

// GameSummary is the read-only listing served by GET /games.
type GameSummary struct {
	GameID    string    `json:"gameId"`
	Lifecycle string    `json:"lifecycle"`
	Players   []*string `json:"players"`
	PvE       bool      `json:"pve"`
}
