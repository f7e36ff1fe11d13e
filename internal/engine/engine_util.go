package engine

import (
	"fmt"
)

func NewEmptyState() State {
	s := State{
		Phase:        PhaseChoice,
		Current:      0,
		CurrentPiece: NoPiece,
		Winner:       NoWinner,
	}
	for i := range s.Board {
		s.Board[i] = NoPiece
	}
	return s
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// Other returns the opposing engine seat.
func Other(seat int) int { return 1 - seat }

func AvailablePieces(s State) []Piece {
	out := make([]Piece, 0, NumPieces)
	for p := Piece(0); p < NumPieces; p++ {
		if !s.Used[p] {
			out = append(out, p)
		}
	}
	return out
}

func AvailableCells(s State) []Cell {
	out := make([]Cell, 0, NumCells)
	for c := Cell(0); c < NumCells; c++ {
		if s.Board[c] == NoPiece {
			out = append(out, c)
		}
	}
	return out
}

// Rows renders the board as BoardSize rows of piece values, nil for empty.
func (b Board) Rows() [][]*int {
	rows := make([][]*int, BoardSize)
	for r := 0; r < BoardSize; r++ {
		rows[r] = make([]*int, BoardSize)
		for c := 0; c < BoardSize; c++ {
			if p := b[CellAt(r, c)]; p != NoPiece {
				v := int(p)
				rows[r][c] = &v
			}
		}
	}
	return rows
}

// ParseBoard is the inverse of Board.Rows.
func ParseBoard(rows [][]*int) (Board, error) {
	var b Board
	if len(rows) != BoardSize {
		return b, fmt.Errorf("board has %d rows, want %d", len(rows), BoardSize)
	}
	seen := map[Piece]bool{}
	for r, row := range rows {
		if len(row) != BoardSize {
			return b, fmt.Errorf("board row %d has %d cells, want %d", r, len(row), BoardSize)
		}
		for c, v := range row {
			if v == nil {
				b[CellAt(r, c)] = NoPiece
				continue
			}
			p := Piece(*v)
			if !p.Valid() {
				return b, fmt.Errorf("board cell %d,%d: %w", r, c, ErrIllegalPiece)
			}
			if seen[p] {
				return b, fmt.Errorf("board cell %d,%d: piece %d appears twice: %w", r, c, p, ErrIllegalPiece)
			}
			seen[p] = true
			b[CellAt(r, c)] = p
		}
	}
	return b, nil
}
