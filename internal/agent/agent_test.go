package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fakeAgent(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func healthy(id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"identifier": id})
	}
}

func bind(t *testing.T, srv *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	b := NewBinder(Config{Endpoint: srv.URL + "/", Timeout: timeout}, srv.Client(), zaptest.NewLogger(t))
	c, err := b.Bind(context.Background())
	require.NoError(t, err)
	return c
}

func TestBindRecordsIdentifier(t *testing.T) {
	srv := fakeAgent(t, map[string]http.HandlerFunc{"GET /{$}": healthy("minimax-v2")})
	c := bind(t, srv, time.Second)
	assert.Equal(t, "minimax-v2", c.Identifier())
}

func TestBindFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantErr: ErrAgentProtocol,
		},
		{
			name:    "missing identifier",
			handler: func(w http.ResponseWriter, r *http.Request) { writeJSON(w, map[string]string{}) },
			wantErr: ErrAgentProtocol,
		},
		{
			name:    "not json",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("hello")) },
			wantErr: ErrAgentProtocol,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := fakeAgent(t, map[string]http.HandlerFunc{"GET /{$}": tc.handler})
			_, err := NewBinder(Config{Endpoint: srv.URL}, srv.Client(), zaptest.NewLogger(t)).Bind(context.Background())
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestBindUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewBinder(Config{Endpoint: url}, nil, zaptest.NewLogger(t)).Bind(context.Background())
	require.ErrorIs(t, err, ErrAgentUnreachable)
}

func TestChooseInitialPiece(t *testing.T) {
	srv := fakeAgent(t, map[string]http.HandlerFunc{
		"GET /{$}": healthy("a"),
		"POST /choose-initial-piece": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]int{"piece": 11})
		},
	})
	piece, err := bind(t, srv, time.Second).ChooseInitialPiece(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11, piece)
}

func TestChooseInitialPieceOutOfRange(t *testing.T) {
	srv := fakeAgent(t, map[string]http.HandlerFunc{
		"GET /{$}": healthy("a"),
		"POST /choose-initial-piece": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]int{"piece": 16})
		},
	})
	_, err := bind(t, srv, time.Second).ChooseInitialPiece(context.Background())
	require.ErrorIs(t, err, ErrAgentProtocol)
}

func TestCompleteTurnSendsStateAndParsesMove(t *testing.T) {
	var got TurnRequest
	srv := fakeAgent(t, map[string]http.HandlerFunc{
		"GET /{$}": healthy("a"),
		"POST /complete-turn": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			writeJSON(w, map[string]any{"cell": 5, "piece": nil})
		},
	})

	p := 3
	board := [][]*int{{&p, nil, nil, nil}, {nil, nil, nil, nil}, {nil, nil, nil, nil}, {nil, nil, nil, nil}}
	resp, err := bind(t, srv, time.Second).CompleteTurn(context.Background(), TurnRequest{CurrentPiece: 7, Board: board})
	require.NoError(t, err)

	assert.Equal(t, 7, got.CurrentPiece)
	require.NotNil(t, got.Board[0][0])
	assert.Equal(t, 3, *got.Board[0][0])
	assert.Equal(t, 5, resp.Cell)
	assert.Nil(t, resp.Piece)
}

func TestCompleteTurnTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	srv := fakeAgent(t, map[string]http.HandlerFunc{
		"GET /{$}": healthy("a"),
		"POST /complete-turn": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		},
	})

	start := time.Now()
	_, err := bind(t, srv, 50*time.Millisecond).CompleteTurn(context.Background(), TurnRequest{})
	require.ErrorIs(t, err, ErrAgentUnreachable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCompleteTurnMissingCell(t *testing.T) {
	srv := fakeAgent(t, map[string]http.HandlerFunc{
		"GET /{$}": healthy("a"),
		"POST /complete-turn": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]int{"piece": 2})
		},
	})
	_, err := bind(t, srv, time.Second).CompleteTurn(context.Background(), TurnRequest{})
	require.ErrorIs(t, err, ErrAgentProtocol)
}
