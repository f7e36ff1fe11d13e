package lobby

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/quarto-backend/internal/agent"
	"github.com/DoyleJ11/quarto-backend/internal/engine"
	"github.com/DoyleJ11/quarto-backend/internal/rng"
)

// agentDecision is what the agent answered. err is set when the call failed
// in any way; the fields are then ignored.
type agentDecision struct {
	piece *int
	cell  int
	err   error
}

// driveAgent starts the agent's turn if it is the current actor. The call
// runs off the session goroutine and posts its answer back tagged with the
// turn generation it was started for.
func (l *Lobby) driveAgent() {
	if l.agent == nil || l.closed || l.currentActor() != l.agentID {
		return
	}

	l.turnGen++
	gen := l.turnGen
	a := l.agent
	initial := l.state.Phase == engine.PhaseChoice
	req := agent.TurnRequest{Board: l.state.Board.Rows()}
	if !initial {
		req.CurrentPiece = int(l.state.CurrentPiece)
	}

	go func() {
		d := decide(l.ctx, a, initial, req)
		select {
		case l.inbox <- agentMove{gen: gen, decision: d}:
		case <-l.ctx.Done():
		}
	}()
}

func decide(ctx context.Context, a Agent, initial bool, req agent.TurnRequest) (d agentDecision) {
	defer func() {
		if r := recover(); r != nil {
			d = agentDecision{err: fmt.Errorf("agent panicked: %v", r)}
		}
	}()
	if initial {
		p, err := a.ChooseInitialPiece(ctx)
		return agentDecision{piece: &p, err: err}
	}
	resp, err := a.CompleteTurn(ctx, req)
	return agentDecision{cell: resp.Cell, piece: resp.Piece, err: err}
}

// handleAgentMove applies an agent answer, falling back to uniformly random
// legal moves for whatever part of it is missing or illegal. The room gets
// a single state update for the whole turn. A stale answer is dropped.
func (l *Lobby) handleAgentMove(msg agentMove) error {
	if msg.gen != l.turnGen || l.closed || l.agent == nil || l.currentActor() != l.agentID {
		l.logger.Debug("discarding stale agent move", zap.Int("gen", msg.gen), zap.Int("current_gen", l.turnGen))
		return nil
	}

	d := msg.decision
	if d.err != nil {
		l.logger.Warn("agent call failed, playing random move", zap.Error(d.err))
	}

	seat := l.state.Current
	switch l.state.Phase {
	case engine.PhaseChoice:
		if err := l.agentSelect(seat, d.err, d.piece); err != nil {
			return err
		}

	case engine.PhasePlacement:
		placed := false
		if d.err == nil {
			err := l.apply(engine.Command{Type: engine.CmdPlacePiece, Seat: seat, Cell: engine.Cell(d.cell)})
			if err == nil {
				placed = true
			} else {
				l.logger.Warn("agent placed illegally, playing random move", zap.Int("cell", d.cell), zap.Error(err))
			}
		}
		pieceErr := d.err
		if !placed {
			cell := rng.Pick(l.rand, engine.AvailableCells(l.state))
			if err := l.apply(engine.Command{Type: engine.CmdPlacePiece, Seat: seat, Cell: cell}); err != nil {
				return fmt.Errorf("fallback place %d: %w", cell, err)
			}
			// The agent's piece belonged to the move it did not get to make.
			if pieceErr == nil {
				pieceErr = errIgnoredPiece
			}
		}
		if !l.state.Done {
			if err := l.agentSelect(seat, pieceErr, d.piece); err != nil {
				return err
			}
		}
	}

	l.version++
	l.broadcast(l.stateUpdate())
	if l.state.Done {
		l.finish()
	}
	return nil
}

var errIgnoredPiece = errors.New("agent move replaced by fallback")

// agentSelect selects the agent's piece when it named a legal one, a random
// available piece otherwise.
func (l *Lobby) agentSelect(seat int, callErr error, piece *int) error {
	if callErr == nil && piece != nil {
		err := l.apply(engine.Command{Type: engine.CmdSelectPiece, Seat: seat, Piece: engine.Piece(*piece)})
		if err == nil {
			return nil
		}
		l.logger.Warn("agent chose illegal piece, playing random piece", zap.Int("piece", *piece), zap.Error(err))
	} else if callErr == nil {
		l.logger.Debug("agent named no piece, playing random piece")
	}

	p := rng.Pick(l.rand, engine.AvailablePieces(l.state))
	if err := l.apply(engine.Command{Type: engine.CmdSelectPiece, Seat: seat, Piece: p}); err != nil {
		return fmt.Errorf("fallback select %d: %w", p, err)
	}
	return nil
}
