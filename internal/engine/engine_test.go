package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func mustApply(t *testing.T, s State, cmd Command) ([]Event, State) {
	t.Helper()
	events, next, err := Apply(s, cmd)
	require.NoError(t, err)
	return events, next
}

func TestSelectPieceRules(t *testing.T) {
	used := NewEmptyState()
	used.Used[3] = true

	placing := NewEmptyState()
	placing.Phase = PhasePlacement
	placing.Current = 1
	placing.CurrentPiece = 5

	done := NewEmptyState()
	done.Done = true

	cases := []struct {
		name    string
		setup   State
		cmd     Command
		wantErr error
	}{
		{
			name:  "legal selection",
			setup: NewEmptyState(),
			cmd:   Command{Type: CmdSelectPiece, Seat: 0, Piece: 7},
		},
		{
			name:    "wrong seat",
			setup:   NewEmptyState(),
			cmd:     Command{Type: CmdSelectPiece, Seat: 1, Piece: 7},
			wantErr: ErrWrongTurn,
		},
		{
			name:    "piece already used",
			setup:   used,
			cmd:     Command{Type: CmdSelectPiece, Seat: 0, Piece: 3},
			wantErr: ErrIllegalPiece,
		},
		{
			name:    "piece out of range",
			setup:   NewEmptyState(),
			cmd:     Command{Type: CmdSelectPiece, Seat: 0, Piece: 16},
			wantErr: ErrIllegalPiece,
		},
		{
			name:    "select during placement",
			setup:   placing,
			cmd:     Command{Type: CmdSelectPiece, Seat: 1, Piece: 2},
			wantErr: ErrWrongPhase,
		},
		{
			name:    "game over",
			setup:   done,
			cmd:     Command{Type: CmdSelectPiece, Seat: 0, Piece: 2},
			wantErr: ErrGameAlreadyCompleted,
		},
		{
			name:    "unknown command",
			setup:   NewEmptyState(),
			cmd:     Command{Type: "Resign", Seat: 0},
			wantErr: ErrUnsupportedCommand,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, next, err := Apply(tc.setup, tc.cmd)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, tc.setup, next, "rejected command must not change state")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSelectHandsTurnToOpponent(t *testing.T) {
	events, s := mustApply(t, NewEmptyState(), Command{Type: CmdSelectPiece, Seat: 0, Piece: 9})

	assert.True(t, ContainsEvent(events, EvtPieceSelected))
	assert.True(t, ContainsEvent(events, EvtTurnAdvanced))
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, PhasePlacement, s.Phase)
	assert.Equal(t, Piece(9), s.CurrentPiece)
	assert.True(t, s.Used[9])
}

func TestPlaceKeepsActorForNextChoice(t *testing.T) {
	_, s := mustApply(t, NewEmptyState(), Command{Type: CmdSelectPiece, Seat: 0, Piece: 9})

	_, _, err := Apply(s, Command{Type: CmdPlacePiece, Seat: 1, Cell: 16})
	require.ErrorIs(t, err, ErrIllegalCell)

	events, s := mustApply(t, s, Command{Type: CmdPlacePiece, Seat: 1, Cell: 5})
	assert.True(t, ContainsEvent(events, EvtPiecePlaced))
	assert.False(t, ContainsEvent(events, EvtGameCompleted))
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, PhaseChoice, s.Phase)
	assert.Equal(t, NoPiece, s.CurrentPiece)
	assert.Equal(t, Piece(9), s.Board[5])
	assert.Equal(t, 1, s.Moves)

	_, s = mustApply(t, s, Command{Type: CmdSelectPiece, Seat: 1, Piece: 1})
	_, _, err = Apply(s, Command{Type: CmdPlacePiece, Seat: 0, Cell: 5})
	require.ErrorIs(t, err, ErrIllegalCell, "occupied cell")
}

func TestWinningPlacement(t *testing.T) {
	// Pieces 1, 3, 5, 7 are all tall.
	s := NewEmptyState()
	s.Board[0], s.Board[1], s.Board[2] = 1, 3, 5
	s.Used[1], s.Used[3], s.Used[5] = true, true, true
	s.Moves = 3

	_, s = mustApply(t, s, Command{Type: CmdSelectPiece, Seat: 0, Piece: 7})
	events, s := mustApply(t, s, Command{Type: CmdPlacePiece, Seat: 1, Cell: 3})

	require.True(t, ContainsEvent(events, EvtGameCompleted))
	assert.True(t, s.Done)
	assert.Equal(t, 1, s.Winner)
	assert.Len(t, WinningLines(s.Board), 1)

	_, _, err := Apply(s, Command{Type: CmdSelectPiece, Seat: 1, Piece: 0})
	require.ErrorIs(t, err, ErrGameAlreadyCompleted)
}

func TestSharedAbsentAttributeWins(t *testing.T) {
	// 0, 2, 4, 6 are all short.
	var b Board
	for i := range b {
		b[i] = NoPiece
	}
	b[CellAt(0, 0)], b[CellAt(1, 1)], b[CellAt(2, 2)], b[CellAt(3, 3)] = 0, 2, 4, 6
	assert.True(t, HasWinningLine(b))

	// 0, 7, 11, 12 share nothing (0000, 0111, 1011, 1100).
	b[CellAt(1, 1)], b[CellAt(2, 2)], b[CellAt(3, 3)] = 7, 11, 12
	assert.False(t, HasWinningLine(b))
}

func TestEveryAttributeCanDecideALine(t *testing.T) {
	line := Lines[4]
	for _, a := range Attributes {
		for _, set := range []bool{true, false} {
			var b Board
			for i := range b {
				b[i] = NoPiece
			}
			i := 0
			for p := Piece(0); p < NumPieces && i < BoardSize; p++ {
				if p.Has(a) == set {
					b[line[i]] = p
					i++
				}
			}
			assert.True(t, HasWinningLine(b), "attribute %d set=%v", a, set)
			assert.Equal(t, [][BoardSize]Cell{line}, WinningLines(b))
		}
	}
}

func TestBoardRowsRoundTrip(t *testing.T) {
	s := NewEmptyState()
	s.Board[CellAt(2, 1)] = 14

	rows := s.Board.Rows()
	require.NotNil(t, rows[2][1])
	assert.Equal(t, 14, *rows[2][1])
	assert.Nil(t, rows[0][0])

	b, err := ParseBoard(rows)
	require.NoError(t, err)
	assert.Equal(t, s.Board, b)

	bad := 20
	rows[0][0] = &bad
	_, err = ParseBoard(rows)
	require.ErrorIs(t, err, ErrIllegalPiece)

	_, err = ParseBoard(rows[:3])
	require.Error(t, err)
}

// Random legal play always terminates within 16 placements, never reuses a
// piece or cell, and replaying the emitted events reproduces the state.
func TestRandomPlayProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewEmptyState()
		var log []Event

		for !s.Done {
			var cmd Command
			if s.Phase == PhaseChoice {
				pieces := AvailablePieces(s)
				if len(pieces) == 0 {
					t.Fatalf("choice phase with no pieces left at move %d", s.Moves)
				}
				p := rapid.SampledFrom(pieces).Draw(t, "piece")
				cmd = Command{Type: CmdSelectPiece, Seat: s.Current, Piece: p}
			} else {
				cells := AvailableCells(s)
				c := rapid.SampledFrom(cells).Draw(t, "cell")
				cmd = Command{Type: CmdPlacePiece, Seat: s.Current, Cell: c}
			}

			events, next, err := Apply(s, cmd)
			if err != nil {
				t.Fatalf("legal command rejected: %v", err)
			}
			log = append(log, events...)
			s = next

			if s.Moves > NumCells {
				t.Fatalf("more placements than cells")
			}
		}

		if s.Winner == NoWinner && s.Moves != NumCells {
			t.Fatalf("draw before board full")
		}
		if got := Reduce(log); got != s {
			t.Fatalf("replay mismatch:\n got %+v\nwant %+v", got, s)
		}
	})
}
