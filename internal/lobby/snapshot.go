package lobby

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/quarto-backend/internal/engine"
	"github.com/DoyleJ11/quarto-backend/pkg/types"
)

const recordTimeout = 5 * time.Second

// View is a copy of a session taken inside its goroutine.
type View struct {
	Code      string
	Version   int
	Seats     [2]string
	Order     [2]string
	Lifecycle Lifecycle
	AgentID   string
	State     engine.State
	Snapshot  types.GameStateUpdated
}

func (v View) Has(clientID string) bool {
	return clientID != "" && (v.Seats[0] == clientID || v.Seats[1] == clientID)
}

func (v View) PvE() bool { return v.AgentID != "" }

// Joinable reports whether a new client could take a seat.
func (v View) Joinable() bool {
	return v.Lifecycle == Forming && (v.Seats[0] == "" || v.Seats[1] == "")
}

func (v View) Summary() types.GameSummary {
	return types.GameSummary{
		GameID:    v.Code,
		Lifecycle: v.Lifecycle.String(),
		Players:   types.Seats(v.Seats),
		PvE:       v.PvE(),
	}
}

// Result is a finished game as handed to the Recorder.
type Result struct {
	GameID     string
	Players    [2]string
	WinnerID   string
	Draw       bool
	Abandoned  bool
	Moves      int
	PvE        bool
	AgentID    string
	StartedAt  time.Time
	FinishedAt time.Time
	// Log is the engine event log of the game, in order.
	Log []engine.Event
}

func (l *Lobby) view() View {
	return View{
		Code:      l.code,
		Version:   l.version,
		Seats:     l.seats,
		Order:     l.order,
		Lifecycle: l.lifecycle(),
		AgentID:   l.agentID,
		State:     l.state,
		Snapshot:  l.snapshot(),
	}
}

func (l *Lobby) stateUpdate() types.Outbound {
	return types.Outbound{Event: types.EvGameStateUpdated, Data: l.snapshot()}
}

// snapshot projects the session for clients. It only reads.
func (l *Lobby) snapshot() types.GameStateUpdated {
	s := l.state
	snap := types.GameStateUpdated{
		GameID:          l.code,
		CurrentTurn:     int(s.Phase),
		Board:           s.Board.Rows(),
		AvailablePieces: make([]int, 0, engine.NumPieces),
		GameOver:        s.Done || l.abandoned,
		Abandoned:       l.abandoned,
		IsDraw:          s.Done && s.Winner == engine.NoWinner,
		WinningLines:    [][]int{},
	}
	if actor := l.currentActor(); actor != "" {
		snap.CurrentPlayerID = &actor
	}
	if s.CurrentPiece != engine.NoPiece {
		p := int(s.CurrentPiece)
		snap.CurrentPiece = &p
	}
	for _, p := range engine.AvailablePieces(s) {
		snap.AvailablePieces = append(snap.AvailablePieces, int(p))
	}
	if s.Winner != engine.NoWinner {
		w := l.order[s.Winner]
		snap.WinnerID = &w
	}
	if s.Done {
		for _, line := range engine.WinningLines(s.Board) {
			cells := make([]int, 0, len(line))
			for _, c := range line {
				cells = append(cells, int(c))
			}
			snap.WinningLines = append(snap.WinningLines, cells)
		}
	}
	return snap
}

// finish archives the game. It runs once, on the transition to FINISHED.
func (l *Lobby) finish() {
	if !l.finishedAt.IsZero() {
		return
	}
	l.finishedAt = l.now()

	if replayed := engine.Reduce(l.events); replayed != l.state {
		l.logger.Error("event log does not replay to the final board",
			zap.Int("events", len(l.events)),
			zap.Int("moves", l.state.Moves),
		)
	}

	res := Result{
		GameID:     l.code,
		Players:    l.order,
		Draw:       l.state.Done && l.state.Winner == engine.NoWinner,
		Abandoned:  l.abandoned,
		Moves:      l.state.Moves,
		PvE:        l.agent != nil,
		AgentID:    l.agentID,
		StartedAt:  l.startedAt,
		FinishedAt: l.finishedAt,
		Log:        slices.Clone(l.events),
	}
	if l.state.Winner != engine.NoWinner {
		res.WinnerID = l.order[l.state.Winner]
	}
	l.logger.Info("game finished",
		zap.String("winner_id", res.WinnerID),
		zap.Bool("draw", res.Draw),
		zap.Bool("abandoned", res.Abandoned),
		zap.Int("moves", res.Moves),
	)

	if l.recorder == nil {
		return
	}
	rec, logger := l.recorder, l.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := rec.Record(ctx, res); err != nil {
			logger.Warn("failed to record game", zap.Error(err))
		}
	}()
}
