package hub

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/quarto-backend/internal/lobby"
	"github.com/DoyleJ11/quarto-backend/internal/rng"
)

var ErrAlreadyExists = errors.New("lobby already exists")
var ErrNotFound = errors.New("lobby not found")
var ErrClosed = errors.New("hub closed")

const (
	CodeLength  = 6
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Code  string
	Lobby *lobby.Lobby
	Reply chan error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveLobby deletes Code. With Expect set it only deletes if Code still
// maps to that lobby.
type RemoveLobby struct {
	Code   string
	Expect *lobby.Lobby
	Reply  chan error
}

type ListLobbies struct {
	Reply chan []*lobby.Lobby
}

type AllocateCode struct {
	Reply chan string
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg()  {}
func (GetLobby) isHubMsg()     {}
func (RemoveLobby) isHubMsg()  {}
func (ListLobbies) isHubMsg()  {}
func (AllocateCode) isHubMsg() {}
func (ShutdownHub) isHubMsg()  {}

type entry struct {
	lb  *lobby.Lobby
	seq uint64
}

// Hub is the registry of live lobbies, keyed by join code.
type Hub struct {
	inbox   chan HubMsg
	done    chan struct{}
	lobbies map[string]entry
	seq     uint64
	rand    rng.Source
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, src rng.Source, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if src == nil {
		src = rng.NewCryptoSource()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		done:    make(chan struct{}),
		lobbies: make(map[string]entry),
		rand:    src,
		logger:  logger.Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

// Done is closed once the hub goroutine has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				if _, ok := h.lobbies[msg.Code]; ok {
					msg.Reply <- ErrAlreadyExists
					break
				}
				h.seq++
				h.lobbies[msg.Code] = entry{lb: msg.Lobby, seq: h.seq}
				h.logger.Debug("lobby registered", zap.String("game_id", msg.Code))
				msg.Reply <- nil

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code].lb // May be nil

			case RemoveLobby:
				e, ok := h.lobbies[msg.Code]
				if !ok || (msg.Expect != nil && e.lb != msg.Expect) {
					msg.Reply <- ErrNotFound
					break
				}
				delete(h.lobbies, msg.Code)
				h.logger.Debug("lobby removed", zap.String("game_id", msg.Code))
				msg.Reply <- nil

			case ListLobbies:
				msg.Reply <- h.ordered()

			case AllocateCode:
				msg.Reply <- h.freeCode()

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, e := range h.lobbies {
		e.lb.Close()
	}
	clear(h.lobbies)
	h.cancel()
}

// ordered lists lobbies by registration order.
func (h *Hub) ordered() []*lobby.Lobby {
	entries := make([]entry, 0, len(h.lobbies))
	for _, e := range h.lobbies {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]*lobby.Lobby, len(entries))
	for i, e := range entries {
		out[i] = e.lb
	}
	return out
}

func (h *Hub) freeCode() string {
	for {
		c := GenerateCode(h.rand)
		if _, taken := h.lobbies[c]; !taken {
			return c
		}
		h.logger.Debug("collision on code, regenerating", zap.String("code", c))
	}
}

// GenerateCode returns a random CodeLength-character uppercase alphanumeric code.
func GenerateCode(src rng.Source) string {
	code := make([]byte, CodeLength)
	for i := range code {
		code[i] = codeCharset[src.Intn(len(codeCharset))]
	}
	return string(code)
}

func request[T any](ctx context.Context, h *Hub, msg HubMsg, reply chan T) (T, error) {
	var zero T
	select {
	case h.inbox <- msg:
	case <-h.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-reply:
		return r, nil
	case <-h.done:
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

// Create registers lb under code, failing with ErrAlreadyExists if taken.
func (h *Hub) Create(ctx context.Context, code string, lb *lobby.Lobby) error {
	reply := make(chan error, 1)
	err, reqErr := request(ctx, h, CreateLobby{Code: code, Lobby: lb, Reply: reply}, reply)
	if reqErr != nil {
		return reqErr
	}
	return err
}

// Get returns the lobby for code, or nil.
func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	return request(ctx, h, GetLobby{Code: code, Reply: reply}, reply)
}

func (h *Hub) Delete(ctx context.Context, code string) error {
	return h.remove(ctx, RemoveLobby{Code: code})
}

// Release deletes lb's code only if it still belongs to lb.
func (h *Hub) Release(ctx context.Context, lb *lobby.Lobby) error {
	return h.remove(ctx, RemoveLobby{Code: lb.Code(), Expect: lb})
}

func (h *Hub) remove(ctx context.Context, msg RemoveLobby) error {
	msg.Reply = make(chan error, 1)
	err, reqErr := request(ctx, h, msg, msg.Reply)
	if reqErr != nil {
		return reqErr
	}
	return err
}

// List returns a point-in-time copy of the live lobbies in creation order.
func (h *Hub) List(ctx context.Context) ([]*lobby.Lobby, error) {
	reply := make(chan []*lobby.Lobby, 1)
	return request(ctx, h, ListLobbies{Reply: reply}, reply)
}

// AllocateCode samples codes until one is unused right now. Create is still
// the point of truth: two callers can be handed the same code.
func (h *Hub) AllocateCode(ctx context.Context) (string, error) {
	reply := make(chan string, 1)
	return request(ctx, h, AllocateCode{Reply: reply}, reply)
}

// Shutdown closes every lobby and stops the hub. It does not wait.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
}
