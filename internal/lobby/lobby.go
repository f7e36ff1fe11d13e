package lobby

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/quarto-backend/internal/agent"
	"github.com/DoyleJ11/quarto-backend/internal/engine"
	"github.com/DoyleJ11/quarto-backend/internal/rng"
	"github.com/DoyleJ11/quarto-backend/pkg/types"
)

// ErrClosed is returned by every request made after the session shut down.
var ErrClosed = errors.New("lobby closed")

// Notifier delivers a frame to one connected client. Send must not block.
type Notifier interface {
	Send(clientID string, out types.Outbound)
}

// Agent is a bound remote player.
type Agent interface {
	Identifier() string
	ChooseInitialPiece(ctx context.Context) (int, error)
	CompleteTurn(ctx context.Context, req agent.TurnRequest) (agent.TurnResponse, error)
}

// Recorder archives finished games.
type Recorder interface {
	Record(ctx context.Context, res Result) error
}

type Options struct {
	Notifier Notifier
	// Rand picks seat order and agent fallback moves. Shared sources must be
	// safe for concurrent use.
	Rand     rng.Source
	Recorder Recorder
	Logger   *zap.Logger
	// OnClose runs inside the session goroutine during teardown, before any
	// pending request is answered.
	OnClose func(*Lobby)
	Now     func() time.Time
}

type Msg interface{ isLobbyMsg() }

type Join struct {
	ClientID string
	Reply    chan JoinResult
}

type JoinResult struct {
	Seats [2]string
	Err   error
}

type Leave struct {
	ClientID string
	Reply    chan LeaveResult
}

type LeaveResult struct {
	Left   bool
	Closed bool
}

type BindAgent struct {
	Agent Agent
	Reply chan error
}

type Start struct {
	ClientID string
	Reply    chan error
}

// FromClient carries a select or place command. Cmd.Seat is filled in by
// the session from the caller's seat.
type FromClient struct {
	ClientID string
	Cmd      engine.Command
	Reply    chan error
}

type GetState struct {
	Reply chan View
}

type agentMove struct {
	gen      int
	decision agentDecision
}

func (Join) isLobbyMsg()       {}
func (Leave) isLobbyMsg()      {}
func (BindAgent) isLobbyMsg()  {}
func (Start) isLobbyMsg()      {}
func (FromClient) isLobbyMsg() {}
func (GetState) isLobbyMsg()   {}
func (agentMove) isLobbyMsg()  {}

type Lobby struct {
	code   string
	inbox  chan Msg
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	notifier Notifier
	rand     rng.Source
	recorder Recorder
	logger   *zap.Logger
	onClose  func(*Lobby)
	now      func() time.Time

	// Everything below is owned by the loop goroutine.
	state      engine.State
	version    int
	seats      [2]string
	order      [2]string
	started    bool
	abandoned  bool
	closed     bool
	agent      Agent
	agentID    string
	turnGen    int
	events     []engine.Event
	startedAt  time.Time
	finishedAt time.Time
}

func New(parent context.Context, code string, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Rand == nil {
		opts.Rand = rng.NewCryptoSource()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l := &Lobby{
		code:     code,
		inbox:    make(chan Msg, 64), // Small buffer
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		notifier: opts.Notifier,
		rand:     opts.Rand,
		recorder: opts.Recorder,
		logger:   opts.Logger.Named("lobby").With(zap.String("game_id", code)),
		onClose:  opts.OnClose,
		now:      opts.Now,
		state:    engine.NewEmptyState(),
	}

	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.code }

// Done is closed once the session goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Close asks the session to tear down. It does not wait.
func (l *Lobby) Close() { l.cancel() }

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.teardown()
			return

		case m := <-l.inbox:
			if stop := l.dispatch(m); stop {
				return
			}
		}
	}
}

// dispatch handles one message. A panic aborts this session only.
func (l *Lobby) dispatch(m Msg) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("session panicked, aborting", zap.Any("panic", r), zap.Stack("stack"))
			l.abort()
			stop = true
		}
	}()

	switch msg := m.(type) {
	case Join:
		seats, err := l.handleJoin(msg.ClientID)
		msg.Reply <- JoinResult{Seats: seats, Err: err}

	case Leave:
		res := l.handleLeave(msg.ClientID)
		msg.Reply <- res
		return res.Closed

	case BindAgent:
		msg.Reply <- l.handleBindAgent(msg.Agent)

	case Start:
		msg.Reply <- l.handleStart(msg.ClientID)

	case FromClient:
		err := l.handleCommand(msg.ClientID, msg.Cmd)
		msg.Reply <- err
		if errors.Is(err, errFault) {
			l.abort()
			return true
		}

	case agentMove:
		if err := l.handleAgentMove(msg); err != nil {
			l.logger.Error("agent move fault, aborting", zap.Error(err))
			l.abort()
			return true
		}

	case GetState:
		msg.Reply <- l.view()
	}
	return false
}

// abort tells every seated human the game is gone and tears down.
func (l *Lobby) abort() {
	defer l.teardown()
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("abort notice failed", zap.Any("panic", r))
		}
	}()
	l.broadcast(types.Outbound{Event: types.EvGameAborted, Data: types.GameAbortedResponse{GameID: l.code}})
}

func (l *Lobby) teardown() {
	if l.closed {
		return
	}
	l.closed = true
	l.turnGen++
	if l.onClose != nil {
		l.onClose(l)
	}
	l.cancel()
	l.logger.Debug("session closed")
}

func (l *Lobby) broadcast(out types.Outbound) {
	for _, id := range l.seats {
		if id == "" || id == l.agentID {
			continue
		}
		l.send(id, out)
	}
}

func (l *Lobby) broadcastExcept(skip string, out types.Outbound) {
	for _, id := range l.seats {
		if id == "" || id == l.agentID || id == skip {
			continue
		}
		l.send(id, out)
	}
}

func (l *Lobby) send(clientID string, out types.Outbound) {
	if l.notifier == nil {
		return
	}
	l.notifier.Send(clientID, out)
}

// request posts msg and waits for its reply. A reply written just before the
// session exited is still delivered.
func request[T any](ctx context.Context, l *Lobby, msg Msg, reply chan T) (T, error) {
	var zero T
	select {
	case l.inbox <- msg:
	case <-l.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-reply:
		return r, nil
	case <-l.done:
		select {
		case r := <-reply:
			return r, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Join seats clientID in the first free seat and returns the seats after.
func (l *Lobby) Join(ctx context.Context, clientID string) ([2]string, error) {
	reply := make(chan JoinResult, 1)
	res, err := request(ctx, l, Join{ClientID: clientID, Reply: reply}, reply)
	if err != nil {
		return [2]string{}, err
	}
	return res.Seats, res.Err
}

func (l *Lobby) Leave(ctx context.Context, clientID string) (LeaveResult, error) {
	reply := make(chan LeaveResult, 1)
	return request(ctx, l, Leave{ClientID: clientID, Reply: reply}, reply)
}

func (l *Lobby) BindAgent(ctx context.Context, a Agent) error {
	reply := make(chan error, 1)
	err, reqErr := request(ctx, l, BindAgent{Agent: a, Reply: reply}, reply)
	if reqErr != nil {
		return reqErr
	}
	return err
}

func (l *Lobby) Start(ctx context.Context, clientID string) error {
	reply := make(chan error, 1)
	err, reqErr := request(ctx, l, Start{ClientID: clientID, Reply: reply}, reply)
	if reqErr != nil {
		return reqErr
	}
	return err
}

func (l *Lobby) SelectPiece(ctx context.Context, clientID string, piece engine.Piece) error {
	return l.command(ctx, clientID, engine.Command{Type: engine.CmdSelectPiece, Piece: piece})
}

func (l *Lobby) PlacePiece(ctx context.Context, clientID string, cell engine.Cell) error {
	return l.command(ctx, clientID, engine.Command{Type: engine.CmdPlacePiece, Cell: cell})
}

func (l *Lobby) command(ctx context.Context, clientID string, cmd engine.Command) error {
	reply := make(chan error, 1)
	err, reqErr := request(ctx, l, FromClient{ClientID: clientID, Cmd: cmd, Reply: reply}, reply)
	if reqErr != nil {
		return reqErr
	}
	return err
}

// View returns a point-in-time copy of the session.
func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	return request(ctx, l, GetState{Reply: reply}, reply)
}
