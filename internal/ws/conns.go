package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/quarto-backend/pkg/types"
)

const DefaultOutboxSize = 32

type client struct {
	id  string
	out chan []byte
	// kick disconnects the client; safe to call more than once.
	kick func()
}

// Conns maps client ids to live connections. It is the lobby Notifier: a
// client whose outbox is full is disconnected rather than waited on.
type Conns struct {
	mu         sync.RWMutex
	byID       map[string]*client
	outboxSize int
	logger     *zap.Logger
}

func NewConns(outboxSize int, logger *zap.Logger) *Conns {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conns{
		byID:       make(map[string]*client),
		outboxSize: outboxSize,
		logger:     logger.Named("conns"),
	}
}

// Add registers id and returns the channel its writer drains.
func (c *Conns) Add(id string, kick func()) <-chan []byte {
	cl := &client{id: id, out: make(chan []byte, c.outboxSize), kick: kick}
	c.mu.Lock()
	c.byID[id] = cl
	c.mu.Unlock()
	return cl.out
}

func (c *Conns) Remove(id string) {
	c.mu.Lock()
	delete(c.byID, id)
	c.mu.Unlock()
}

func (c *Conns) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Send queues a frame for id. Unknown ids are ignored.
func (c *Conns) Send(id string, out types.Outbound) {
	c.mu.RLock()
	cl := c.byID[id]
	c.mu.RUnlock()
	if cl == nil {
		return
	}

	payload, err := out.Marshal()
	if err != nil {
		c.logger.Error("failed to encode frame", zap.String("event", out.Event), zap.Error(err))
		return
	}

	select {
	case cl.out <- payload:
	default:
		// Client is slow/full - drop them.
		c.logger.Warn("outbox full, disconnecting client", zap.String("player_id", id), zap.String("event", out.Event))
		c.Remove(id)
		cl.kick()
	}
}
