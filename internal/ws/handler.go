package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quarto-backend/internal/gameerr"
	"github.com/DoyleJ11/quarto-backend/pkg/types"
)

const (
	writeTimeout      = 3 * time.Second
	pingInterval      = 30 * time.Second
	disconnectTimeout = 5 * time.Second
	readLimit         = 4096
)

// Service is what the socket dispatches client events to.
type Service interface {
	CreateSession(ctx context.Context, clientID string) (string, error)
	JoinSession(ctx context.Context, clientID, code string) error
	Matchmake(ctx context.Context, clientID string) (string, error)
	LeaveGame(ctx context.Context, clientID string) error
	Disconnect(ctx context.Context, clientID string)
	StartGame(ctx context.Context, clientID, code string) error
	StartPvE(ctx context.Context, clientID string) error
	SelectPiece(ctx context.Context, clientID, code string, piece int) error
	PlacePiece(ctx context.Context, clientID, code string, cell int) error
}

type Handler struct {
	svc            Service
	conns          *Conns
	originPatterns []string
	logger         *zap.Logger
}

// NewHandler serves the event socket. originPatterns are host patterns as
// understood by websocket.AcceptOptions.
func NewHandler(svc Service, conns *Conns, originPatterns []string, logger *zap.Logger) *Handler {
	return &Handler{
		svc:            svc,
		conns:          conns,
		originPatterns: originPatterns,
		logger:         logger.Named("ws"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	clientID := uuid.NewString()
	logger := h.logger.With(zap.String("player_id", clientID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := h.conns.Add(clientID, cancel)
	defer func() {
		h.conns.Remove(clientID)
		// The request context is gone by now.
		dctx, dcancel := context.WithTimeout(context.Background(), disconnectTimeout)
		h.svc.Disconnect(dctx, clientID)
		dcancel()
	}()
	logger.Info("client connected")

	h.conns.Send(clientID, types.Outbound{Event: types.EvConnected, Data: types.ConnectedResponse{PlayerID: clientID}})

	// Writer goroutine
	go func() {
		for {
			select {
			case payload := <-out:
				wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
				err := conn.Write(wctx, websocket.MessageText, payload)
				wcancel()
				if err != nil {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Keepalive
	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
				err := conn.Ping(pctx)
				pcancel()
				if err != nil {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Reader loop
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil && r.Context().Err() == nil:
				// Kicked: slow writer or failed ping.
				_ = conn.Close(websocket.StatusPolicyViolation, "connection too slow")
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
				websocket.CloseStatus(err) == websocket.StatusGoingAway:
			default:
				_ = conn.Close(websocket.StatusInternalError, "read failed")
			}
			logger.Info("client disconnected", zap.Error(err))
			return
		}

		if err := h.dispatch(ctx, clientID, data); err != nil {
			e := gameerr.From(err)
			if e.Kind == gameerr.KindBadRequest || e.Kind == gameerr.KindInternal {
				logger.Warn("request failed", zap.String("key", e.Key), zap.Error(err))
			} else {
				logger.Debug("request rejected", zap.String("key", e.Key), zap.Error(err))
			}
			h.conns.Send(clientID, types.Outbound{
				Event: types.EvError,
				Data:  types.ErrorResponse{Key: e.Key, Message: e.Message},
			})
		}
	}
}

// dispatch decodes one client frame and runs it.
func (h *Handler) dispatch(ctx context.Context, clientID string, data []byte) error {
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return gameerr.ErrBadRequest.Wrap(err)
	}

	switch env.Event {
	case types.EvNewGame:
		_, err := h.svc.CreateSession(ctx, clientID)
		return err

	case types.EvLeaveGame:
		return h.svc.LeaveGame(ctx, clientID)

	case types.EvPvE:
		return h.svc.StartPvE(ctx, clientID)

	case types.EvMatchmaking:
		_, err := h.svc.Matchmake(ctx, clientID)
		return err

	case types.EvJoinGame, types.EvStartGame:
		var req types.GameRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		if req.GameID == "" {
			return gameerr.ErrBadRequest.Wrap(errors.New("missing gameId"))
		}
		if env.Event == types.EvJoinGame {
			return h.svc.JoinSession(ctx, clientID, req.GameID)
		}
		return h.svc.StartGame(ctx, clientID, req.GameID)

	case types.EvSelectPiece:
		var req types.SelectPieceRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		if req.GameID == "" || req.Piece == nil {
			return gameerr.ErrBadRequest.Wrap(errors.New("select-piece needs gameId and piece"))
		}
		return h.svc.SelectPiece(ctx, clientID, req.GameID, *req.Piece)

	case types.EvPlacePiece:
		var req types.PlacePieceRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		if req.GameID == "" || req.Cell == nil {
			return gameerr.ErrBadRequest.Wrap(errors.New("place-piece needs gameId and cell"))
		}
		return h.svc.PlacePiece(ctx, clientID, req.GameID, *req.Cell)

	default:
		return gameerr.ErrBadRequest.Wrap(errors.New("unknown event " + env.Event))
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return gameerr.ErrBadRequest.Wrap(errors.New("missing data"))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return gameerr.ErrBadRequest.Wrap(err)
	}
	return nil
}
