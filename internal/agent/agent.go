// Package agent talks to a remote Quarto decision service over HTTP.
//
//	GET  /                     -> {"identifier": string}
//	POST /choose-initial-piece -> {"piece": int}
//	POST /complete-turn        {"currentPiece": int, "board": [[int|null]]}
//	                           -> {"cell": int, "piece": int|null}
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrAgentUnreachable = errors.New("agent unreachable")
	ErrAgentProtocol    = errors.New("agent protocol error")
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultHealthTimeout = 5 * time.Second

	maxBody = 1 << 16
	// Piece and cell values on the wire are both 0..15.
	maxValue = 15
)

type Config struct {
	Endpoint      string
	Timeout       time.Duration
	HealthTimeout time.Duration
}

type TurnRequest struct {
	CurrentPiece int      `json:"currentPiece"`
	Board        [][]*int `json:"board"`
}

// TurnResponse.Piece is nil when the agent did not name a next piece.
type TurnResponse struct {
	Cell  int
	Piece *int
}

type healthResponse struct {
	Identifier *string `json:"identifier"`
}

type pieceResponse struct {
	Piece *int `json:"piece"`
}

type turnResponse struct {
	Cell  *int `json:"cell"`
	Piece *int `json:"piece"`
}

// Client is a bound agent. It is safe for concurrent use.
type Client struct {
	endpoint   string
	identifier string
	timeout    time.Duration
	http       *http.Client
	logger     *zap.Logger
}

// Binder probes the configured endpoint and hands out bound clients.
type Binder struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func NewBinder(cfg Config, hc *http.Client, logger *zap.Logger) *Binder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if hc == nil {
		hc = &http.Client{}
	}
	return &Binder{cfg: cfg, http: hc, logger: logger.Named("agent")}
}

// Bind runs the health probe and returns a client carrying the identity the
// agent reported.
func (b *Binder) Bind(ctx context.Context) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.HealthTimeout)
	defer cancel()

	c := &Client{
		endpoint: b.cfg.Endpoint,
		timeout:  b.cfg.Timeout,
		http:     b.http,
		logger:   b.logger,
	}

	var health healthResponse
	if err := c.do(ctx, http.MethodGet, "/", nil, &health); err != nil {
		return nil, err
	}
	if health.Identifier == nil || *health.Identifier == "" {
		return nil, fmt.Errorf("%w: health response missing identifier", ErrAgentProtocol)
	}
	c.identifier = *health.Identifier
	b.logger.Info("agent bound",
		zap.String("endpoint", c.endpoint),
		zap.String("identifier", c.identifier),
	)
	return c, nil
}

func (c *Client) Identifier() string { return c.identifier }

func (c *Client) ChooseInitialPiece(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp pieceResponse
	if err := c.do(ctx, http.MethodPost, "/choose-initial-piece", nil, &resp); err != nil {
		return 0, err
	}
	if resp.Piece == nil {
		return 0, fmt.Errorf("%w: missing piece", ErrAgentProtocol)
	}
	if !inRange(*resp.Piece) {
		return 0, fmt.Errorf("%w: piece %d out of range", ErrAgentProtocol, *resp.Piece)
	}
	return *resp.Piece, nil
}

func (c *Client) CompleteTurn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp turnResponse
	if err := c.do(ctx, http.MethodPost, "/complete-turn", req, &resp); err != nil {
		return TurnResponse{}, err
	}
	if resp.Cell == nil {
		return TurnResponse{}, fmt.Errorf("%w: missing cell", ErrAgentProtocol)
	}
	if !inRange(*resp.Cell) {
		return TurnResponse{}, fmt.Errorf("%w: cell %d out of range", ErrAgentProtocol, *resp.Cell)
	}
	if resp.Piece != nil && !inRange(*resp.Piece) {
		return TurnResponse{}, fmt.Errorf("%w: piece %d out of range", ErrAgentProtocol, *resp.Piece)
	}
	return TurnResponse{Cell: *resp.Cell, Piece: resp.Piece}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, rdr)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrAgentUnreachable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrAgentUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: status %d", ErrAgentProtocol, method, path, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		// A deadline hit while reading the body is still a timeout.
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s %s: %v", ErrAgentUnreachable, method, path, ctx.Err())
		}
		return fmt.Errorf("%w: %s %s: decode: %v", ErrAgentProtocol, method, path, err)
	}
	return nil
}

func inRange(v int) bool { return v >= 0 && v <= maxValue }
