package lobby

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/quarto-backend/internal/engine"
	"github.com/DoyleJ11/quarto-backend/internal/gameerr"
	"github.com/DoyleJ11/quarto-backend/internal/rng"
	"github.com/DoyleJ11/quarto-backend/pkg/types"
)

// errFault marks an engine error that legal input cannot produce. The
// session is aborted when one surfaces.
var errFault = errors.New("engine fault")

type Lifecycle int

const (
	Forming Lifecycle = iota
	Ready
	Active
	Finished
)

func (lc Lifecycle) String() string {
	switch lc {
	case Forming:
		return "FORMING"
	case Ready:
		return "READY"
	case Active:
		return "ACTIVE"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

func (l *Lobby) lifecycle() Lifecycle {
	switch {
	case l.abandoned || (l.started && l.state.Done):
		return Finished
	case l.started:
		return Active
	case l.seats[0] != "" && l.seats[1] != "":
		return Ready
	default:
		return Forming
	}
}

func (l *Lobby) seatOf(clientID string) int {
	for i, id := range l.seats {
		if id != "" && id == clientID {
			return i
		}
	}
	return -1
}

func (l *Lobby) freeSeat() int {
	for i, id := range l.seats {
		if id == "" {
			return i
		}
	}
	return -1
}

func (l *Lobby) humans() int {
	n := 0
	for _, id := range l.seats {
		if id != "" && id != l.agentID {
			n++
		}
	}
	return n
}

// engineSeat maps an identity to its engine seat. Only valid once started.
func (l *Lobby) engineSeat(clientID string) int {
	for i, id := range l.order {
		if id == clientID {
			return i
		}
	}
	return -1
}

// currentActor is empty unless the game is running.
func (l *Lobby) currentActor() string {
	if l.lifecycle() != Active {
		return ""
	}
	return l.order[l.state.Current]
}

func (l *Lobby) handleJoin(clientID string) ([2]string, error) {
	if l.seatOf(clientID) >= 0 {
		return l.seats, nil
	}
	if l.started || l.abandoned {
		return l.seats, gameerr.ErrGameFull
	}
	seat := l.freeSeat()
	if seat < 0 {
		return l.seats, gameerr.ErrGameFull
	}

	l.seats[seat] = clientID
	l.logger.Info("player joined", zap.String("player_id", clientID), zap.Int("seat", seat))
	l.broadcastExcept(clientID, types.Outbound{
		Event: types.EvPlayerJoined,
		Data:  types.PlayerJoinedResponse{GameID: l.code, PlayerID: clientID},
	})
	return l.seats, nil
}

func (l *Lobby) handleBindAgent(a Agent) error {
	if l.started || l.abandoned {
		return gameerr.ErrGameAlreadyStarted
	}
	if l.agent != nil {
		return gameerr.ErrGameFull
	}
	seat := l.freeSeat()
	if seat < 0 {
		return gameerr.ErrGameFull
	}

	l.agent = a
	l.agentID = a.Identifier()
	l.seats[seat] = l.agentID
	l.logger.Info("agent seated", zap.String("agent_id", l.agentID), zap.Int("seat", seat))
	l.broadcast(types.Outbound{
		Event: types.EvPlayerJoined,
		Data:  types.PlayerJoinedResponse{GameID: l.code, PlayerID: l.agentID},
	})
	return nil
}

func (l *Lobby) handleLeave(clientID string) LeaveResult {
	seat := l.seatOf(clientID)
	if seat < 0 || clientID == l.agentID {
		return LeaveResult{}
	}

	l.seats[seat] = ""
	// Anything the agent is computing now answers a game that moved on.
	l.turnGen++
	l.logger.Info("player left", zap.String("player_id", clientID))

	if l.humans() == 0 {
		l.teardown()
		return LeaveResult{Left: true, Closed: true}
	}

	wasActive := l.lifecycle() == Active
	if wasActive {
		l.abandoned = true
		l.finish()
	}

	l.broadcast(types.Outbound{
		Event: types.EvPlayerLeft,
		Data:  types.PlayerLeftResponse{GameID: l.code, PlayerID: clientID},
	})
	if wasActive {
		l.version++
		l.broadcast(l.stateUpdate())
	}
	return LeaveResult{Left: true}
}

func (l *Lobby) handleStart(clientID string) error {
	if l.seatOf(clientID) < 0 {
		return gameerr.ErrNotInGame
	}
	switch l.lifecycle() {
	case Active:
		// Duplicate start: only the caller is resynced.
		l.send(clientID, l.stateUpdate())
		return nil
	case Finished:
		return gameerr.ErrInvalidState
	case Forming:
		return gameerr.ErrNoOpponent
	case Ready:
	}

	order := l.seats
	rng.Shuffle(l.rand, order[:])
	l.order = order
	l.started = true
	l.state = engine.NewEmptyState()
	l.events = nil
	l.startedAt = l.now()
	l.version++

	l.logger.Info("game started",
		zap.String("first_player", l.order[0]),
		zap.String("second_player", l.order[1]),
	)
	l.broadcast(types.Outbound{Event: types.EvGameStarted, Data: types.GameStartedResponse{GameID: l.code}})
	l.broadcast(l.stateUpdate())
	l.driveAgent()
	return nil
}

// handleCommand authorizes a human select or place, in this order:
// membership, lifecycle, turn, phase, then engine legality.
func (l *Lobby) handleCommand(clientID string, cmd engine.Command) error {
	if l.seatOf(clientID) < 0 || clientID == l.agentID {
		return gameerr.ErrGameNotFound
	}
	switch l.lifecycle() {
	case Forming, Ready:
		return gameerr.ErrGameNotStarted
	case Finished:
		return gameerr.ErrInvalidState
	case Active:
	}
	if l.currentActor() != clientID {
		return gameerr.ErrNotYourTurn
	}
	if want := phaseFor(cmd.Type); want != l.state.Phase {
		return gameerr.ErrInvalidState.Wrap(fmt.Errorf("%s during %s phase", cmd.Type, l.state.Phase))
	}

	cmd.Seat = l.engineSeat(clientID)
	if err := l.apply(cmd); err != nil {
		return err
	}

	l.version++
	l.broadcast(l.stateUpdate())
	if l.state.Done {
		l.finish()
	}
	l.driveAgent()
	return nil
}

func phaseFor(t engine.CommandType) engine.Phase {
	if t == engine.CmdPlacePiece {
		return engine.PhasePlacement
	}
	return engine.PhaseChoice
}

// apply runs cmd through the engine and records its events. Errors are
// mapped to client keys; anything unexpected wraps errFault.
func (l *Lobby) apply(cmd engine.Command) error {
	events, next, err := engine.Apply(l.state, cmd)
	if err != nil {
		return mapEngineErr(err)
	}
	l.state = next
	l.events = append(l.events, events...)
	return nil
}

func mapEngineErr(err error) error {
	switch {
	case errors.Is(err, engine.ErrIllegalPiece), errors.Is(err, engine.ErrIllegalCell):
		return gameerr.ErrInvalidMove.Wrap(err)
	case errors.Is(err, engine.ErrWrongPhase), errors.Is(err, engine.ErrGameAlreadyCompleted):
		return gameerr.ErrInvalidState.Wrap(err)
	case errors.Is(err, engine.ErrWrongTurn):
		return gameerr.ErrNotYourTurn.Wrap(err)
	default:
		return fmt.Errorf("%w: %v", errFault, err)
	}
}
