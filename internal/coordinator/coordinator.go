// Package coordinator matches clients into lobbies and routes their game
// actions. It owns every client-scoped emission that is not a room broadcast.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/quarto-backend/internal/engine"
	"github.com/DoyleJ11/quarto-backend/internal/gameerr"
	"github.com/DoyleJ11/quarto-backend/internal/hub"
	"github.com/DoyleJ11/quarto-backend/internal/lobby"
	"github.com/DoyleJ11/quarto-backend/internal/rng"
	"github.com/DoyleJ11/quarto-backend/pkg/types"
)

const (
	maxAllocAttempts = 8
	releaseTimeout   = 2 * time.Second
)

// Registry is the subset of the hub the coordinator needs.
type Registry interface {
	Create(ctx context.Context, code string, lb *lobby.Lobby) error
	Get(ctx context.Context, code string) (*lobby.Lobby, error)
	Release(ctx context.Context, lb *lobby.Lobby) error
	List(ctx context.Context) ([]*lobby.Lobby, error)
	AllocateCode(ctx context.Context) (string, error)
}

// AgentBinder produces a freshly probed agent for one session.
type AgentBinder interface {
	Bind(ctx context.Context) (lobby.Agent, error)
}

type BinderFunc func(ctx context.Context) (lobby.Agent, error)

func (f BinderFunc) Bind(ctx context.Context) (lobby.Agent, error) { return f(ctx) }

type Options struct {
	Registry Registry
	Notifier lobby.Notifier
	// Binder is nil when no agent endpoint is configured.
	Binder   AgentBinder
	Rand     rng.Source
	Recorder lobby.Recorder
	Logger   *zap.Logger
}

type Coordinator struct {
	// ctx bounds the lifetime of every lobby this coordinator creates.
	ctx      context.Context
	reg      Registry
	notifier lobby.Notifier
	binder   AgentBinder
	rand     rng.Source
	recorder lobby.Recorder
	logger   *zap.Logger
}

func New(ctx context.Context, opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Rand == nil {
		opts.Rand = rng.NewCryptoSource()
	}
	return &Coordinator{
		ctx:      ctx,
		reg:      opts.Registry,
		notifier: opts.Notifier,
		binder:   opts.Binder,
		rand:     opts.Rand,
		recorder: opts.Recorder,
		logger:   opts.Logger.Named("coordinator"),
	}
}

func (c *Coordinator) PvEEnabled() bool { return c.binder != nil }

func (c *Coordinator) emit(clientID, event string, data any) {
	c.notifier.Send(clientID, types.Outbound{Event: event, Data: data})
}

func (c *Coordinator) emitJoined(clientID, code string, seats [2]string) {
	c.emit(clientID, types.EvGameJoined, types.GameJoinedResponse{GameID: code, Players: types.Seats(seats)})
}

func (c *Coordinator) lobbyOptions() lobby.Options {
	return lobby.Options{
		Notifier: c.notifier,
		Rand:     c.rand,
		Recorder: c.recorder,
		Logger:   c.logger,
		OnClose:  c.release,
	}
}

// release drops a closing lobby from the registry. It runs on the lobby's
// own goroutine.
func (c *Coordinator) release(lb *lobby.Lobby) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	err := c.reg.Release(ctx, lb)
	switch {
	case err == nil:
		c.logger.Info("game deleted", zap.String("game_id", lb.Code()))
	case errors.Is(err, hub.ErrNotFound), errors.Is(err, hub.ErrClosed):
	default:
		c.logger.Warn("failed to release game", zap.String("game_id", lb.Code()), zap.Error(err))
	}
}

// mapErr turns lookups that raced a teardown into a missing game.
func mapErr(err error) error {
	if errors.Is(err, lobby.ErrClosed) {
		return gameerr.ErrGameNotFound.Wrap(err)
	}
	return err
}

func (c *Coordinator) lookup(ctx context.Context, code string) (*lobby.Lobby, error) {
	lb, err := c.reg.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, gameerr.ErrGameNotFound
	}
	return lb, nil
}

// views snapshots every live lobby in creation order. Lobbies that close
// mid-scan are skipped.
func (c *Coordinator) views(ctx context.Context) ([]*lobby.Lobby, []lobby.View, error) {
	list, err := c.reg.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	lbs := make([]*lobby.Lobby, 0, len(list))
	views := make([]lobby.View, 0, len(list))
	for _, lb := range list {
		v, err := lb.View(ctx)
		if errors.Is(err, lobby.ErrClosed) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		lbs = append(lbs, lb)
		views = append(views, v)
	}
	return lbs, views, nil
}

// sessionOf returns the lobby clientID is playing in, if any. A FINISHED
// lobby does not count: its seats are vacated before the next game.
func (c *Coordinator) sessionOf(ctx context.Context, clientID string) (*lobby.Lobby, lobby.View, error) {
	lbs, views, err := c.views(ctx)
	if err != nil {
		return nil, lobby.View{}, err
	}
	for i, v := range views {
		if v.Has(clientID) && v.Lifecycle != lobby.Finished {
			return lbs[i], v, nil
		}
	}
	return nil, lobby.View{}, nil
}

// CreateSession seats clientID in a new lobby, or re-announces the lobby it
// already sits in.
func (c *Coordinator) CreateSession(ctx context.Context, clientID string) (string, error) {
	if lb, v, err := c.sessionOf(ctx, clientID); err != nil {
		return "", err
	} else if lb != nil {
		c.emitJoined(clientID, v.Code, v.Seats)
		return v.Code, nil
	}

	if _, err := c.LeaveAll(ctx, clientID); err != nil {
		return "", err
	}
	lb, seats, err := c.create(ctx, clientID)
	if err != nil {
		return "", err
	}
	c.emitJoined(clientID, lb.Code(), seats)
	return lb.Code(), nil
}

func (c *Coordinator) create(ctx context.Context, clientID string) (*lobby.Lobby, [2]string, error) {
	for attempt := 0; attempt < maxAllocAttempts; attempt++ {
		code, err := c.reg.AllocateCode(ctx)
		if err != nil {
			return nil, [2]string{}, err
		}

		lb := lobby.New(c.ctx, code, c.lobbyOptions())
		seats, err := lb.Join(ctx, clientID)
		if err != nil {
			lb.Close()
			return nil, [2]string{}, mapErr(err)
		}

		err = c.reg.Create(ctx, code, lb)
		if errors.Is(err, hub.ErrAlreadyExists) {
			lb.Close()
			c.logger.Debug("code taken between allocate and create, retrying", zap.String("code", code))
			continue
		}
		if err != nil {
			lb.Close()
			return nil, [2]string{}, err
		}

		c.logger.Info("game created", zap.String("game_id", code), zap.String("player_id", clientID))
		return lb, seats, nil
	}
	return nil, [2]string{}, fmt.Errorf("allocate game code: %d attempts collided", maxAllocAttempts)
}

// JoinSession moves clientID into the lobby with the given code. Joining the
// lobby it already sits in only re-announces it. The old seats are vacated
// only once the new one is held, so a failed join leaves the caller where it
// was.
func (c *Coordinator) JoinSession(ctx context.Context, clientID, code string) error {
	lb, err := c.lookup(ctx, code)
	if err != nil {
		return err
	}
	v, err := lb.View(ctx)
	if err != nil {
		return mapErr(err)
	}
	if v.Has(clientID) {
		c.emitJoined(clientID, code, v.Seats)
		return nil
	}
	if !v.Joinable() {
		return gameerr.ErrGameFull
	}

	seats, err := lb.Join(ctx, clientID)
	if err != nil {
		return mapErr(err)
	}
	if _, err := c.leaveAllExcept(ctx, clientID, code); err != nil {
		return err
	}
	c.emitJoined(clientID, code, seats)
	return nil
}

// Matchmake joins the first open lobby in creation order, or creates one.
func (c *Coordinator) Matchmake(ctx context.Context, clientID string) (string, error) {
	_, views, err := c.views(ctx)
	if err != nil {
		return "", err
	}
	for _, v := range views {
		if !v.Joinable() || v.Has(clientID) {
			continue
		}
		err := c.JoinSession(ctx, clientID, v.Code)
		if errors.Is(err, gameerr.ErrGameFull) || errors.Is(err, gameerr.ErrGameNotFound) {
			// Filled or closed since the scan.
			continue
		}
		if err != nil {
			return "", err
		}
		return v.Code, nil
	}
	return c.CreateSession(ctx, clientID)
}

// LeaveAll vacates every seat clientID holds and returns the affected codes.
func (c *Coordinator) LeaveAll(ctx context.Context, clientID string) ([]string, error) {
	return c.leaveAllExcept(ctx, clientID, "")
}

func (c *Coordinator) leaveAllExcept(ctx context.Context, clientID, keep string) ([]string, error) {
	lbs, views, err := c.views(ctx)
	if err != nil {
		return nil, err
	}
	var left []string
	for i, v := range views {
		if !v.Has(clientID) || v.Code == keep {
			continue
		}
		res, err := lbs[i].Leave(ctx, clientID)
		if errors.Is(err, lobby.ErrClosed) {
			continue
		}
		if err != nil {
			return left, err
		}
		if res.Left {
			left = append(left, v.Code)
		}
	}
	return left, nil
}

// LeaveGame is the explicit leave: the caller is told which games it left.
func (c *Coordinator) LeaveGame(ctx context.Context, clientID string) error {
	left, err := c.LeaveAll(ctx, clientID)
	for _, code := range left {
		c.emit(clientID, types.EvGameLeft, types.GameLeftResponse{GameID: code})
	}
	return err
}

// Disconnect is a permanent leave; there is nobody left to tell.
func (c *Coordinator) Disconnect(ctx context.Context, clientID string) {
	left, err := c.LeaveAll(ctx, clientID)
	if err != nil {
		c.logger.Warn("leave on disconnect failed", zap.String("player_id", clientID), zap.Error(err))
		return
	}
	if len(left) > 0 {
		c.logger.Info("disconnected player left games", zap.String("player_id", clientID), zap.Strings("game_ids", left))
	}
}

func (c *Coordinator) StartGame(ctx context.Context, clientID, code string) error {
	lb, err := c.lookup(ctx, code)
	if err != nil {
		return err
	}
	return mapErr(lb.Start(ctx, clientID))
}

func (c *Coordinator) SelectPiece(ctx context.Context, clientID, code string, piece int) error {
	lb, err := c.lookup(ctx, code)
	if err != nil {
		return err
	}
	return mapErr(lb.SelectPiece(ctx, clientID, engine.Piece(piece)))
}

func (c *Coordinator) PlacePiece(ctx context.Context, clientID, code string, cell int) error {
	lb, err := c.lookup(ctx, code)
	if err != nil {
		return err
	}
	return mapErr(lb.PlacePiece(ctx, clientID, engine.Cell(cell)))
}

// StartPvE seats a freshly bound agent opposite clientID and starts the game.
// The agent is probed before anything changes, so a failed bind leaves the
// client where it was.
func (c *Coordinator) StartPvE(ctx context.Context, clientID string) error {
	if c.binder == nil {
		return gameerr.ErrAgentNotConfigured
	}

	lb, v, err := c.sessionOf(ctx, clientID)
	if err != nil {
		return err
	}
	if lb != nil {
		switch v.Lifecycle {
		case lobby.Active:
			return gameerr.ErrGameAlreadyStarted
		case lobby.Ready:
			return gameerr.ErrGameFull
		case lobby.Forming, lobby.Finished:
		}
	}

	a, err := c.binder.Bind(ctx)
	if err != nil {
		c.logger.Warn("agent bind failed", zap.String("player_id", clientID), zap.Error(err))
		return gameerr.ErrAgentUnavailable.Wrap(err)
	}

	if lb == nil {
		// Vacates a FINISHED game the caller still sits in.
		if _, err := c.LeaveAll(ctx, clientID); err != nil {
			return err
		}
		var seats [2]string
		lb, seats, err = c.create(ctx, clientID)
		if err != nil {
			return err
		}
		c.emitJoined(clientID, lb.Code(), seats)
	}

	if err := lb.BindAgent(ctx, a); err != nil {
		return mapErr(err)
	}
	c.logger.Info("pve game", zap.String("game_id", lb.Code()), zap.String("agent_id", a.Identifier()))
	return mapErr(lb.Start(ctx, clientID))
}

// Games lists live sessions for the read-only HTTP surface.
func (c *Coordinator) Games(ctx context.Context) ([]types.GameSummary, error) {
	_, views, err := c.views(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.GameSummary, 0, len(views))
	for _, v := range views {
		out = append(out, v.Summary())
	}
	return out, nil
}
