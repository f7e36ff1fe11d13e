package engine

import (
	"errors"
)

var ErrWrongTurn = errors.New("invalid turn")
var ErrWrongPhase = errors.New("wrong phase")
var ErrIllegalPiece = errors.New("illegal piece")
var ErrIllegalCell = errors.New("illegal cell")
var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrGameAlreadyCompleted = errors.New("game already completed")

// Piece is one of the 16 Quarto pieces. Its value encodes the four binary
// attributes as bits, so pieces 0..15 are all distinct combinations.
type Piece int

// NoPiece marks an empty board cell or "no piece designated yet".
const NoPiece Piece = -1

const NumPieces = 16

type Attribute uint8

const (
	AttrTall   Attribute = 1 << iota // short when unset
	AttrDark                         // light when unset
	AttrSquare                       // round when unset
	AttrHollow                       // solid when unset
)

var Attributes = []Attribute{AttrTall, AttrDark, AttrSquare, AttrHollow}

func (p Piece) Valid() bool { return p >= 0 && p < NumPieces }

func (p Piece) Has(a Attribute) bool { return Attribute(p)&a != 0 }

// Cell is a board position, row-major: cell = row*BoardSize + col.
type Cell int

const (
	BoardSize = 4
	NumCells  = BoardSize * BoardSize
)

func (c Cell) Valid() bool { return c >= 0 && c < NumCells }
func (c Cell) Row() int    { return int(c) / BoardSize }
func (c Cell) Col() int    { return int(c) % BoardSize }

func CellAt(row, col int) Cell { return Cell(row*BoardSize + col) }

type Board [NumCells]Piece

// Phase is the half of a turn the current seat is in.
type Phase int

const (
	PhaseChoice    Phase = iota // pick the piece the opponent must place
	PhasePlacement              // place the piece chosen by the opponent
)

func (p Phase) String() string {
	switch p {
	case PhaseChoice:
		return "choice"
	case PhasePlacement:
		return "placement"
	default:
		return "unknown"
	}
}

// NoWinner is the Winner value while the game runs or after a draw.
const NoWinner = -1

// State is a value type: copying it yields an independent game.
// Seats are engine-relative (0 or 1), not participant identities.
type State struct {
	Phase        Phase
	Current      int
	CurrentPiece Piece
	Board        Board
	Used         [NumPieces]bool
	Moves        int
	Winner       int
	Done         bool
}

type CommandType string

const (
	CmdSelectPiece CommandType = "SelectPiece"
	CmdPlacePiece  CommandType = "PlacePiece"
)

/*
	CmdSelectPiece -> EvtPieceSelected -> EvtTurnAdvanced
	CmdPlacePiece  -> EvtPiecePlaced -> EvtGameCompleted (win or full board)
	The seat that places a piece is also the seat that selects the next one,
	so the actor only changes on selection.
*/

type Command struct {
	Type  CommandType
	Seat  int
	Piece Piece
	Cell  Cell
}

type EventType string

const (
	EvtPieceSelected EventType = "PieceSelected"
	EvtPiecePlaced   EventType = "PiecePlaced"
	EvtTurnAdvanced  EventType = "TurnAdvanced"
	EvtGameCompleted EventType = "GameCompleted"
)

type Event struct {
	Type   EventType
	Seat   int
	Piece  Piece
	Cell   Cell
	Winner int
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	if s.Done {
		return nil, s, ErrGameAlreadyCompleted
	}
	if cmd.Seat != s.Current {
		return nil, s, ErrWrongTurn
	}

	newState := s

	switch cmd.Type {
	case CmdSelectPiece:
		if s.Phase != PhaseChoice {
			return nil, s, ErrWrongPhase
		}
		if !canSelect(s, cmd.Piece) {
			return nil, s, ErrIllegalPiece
		}

		events := []Event{
			{Type: EvtPieceSelected, Seat: cmd.Seat, Piece: cmd.Piece},
			{Type: EvtTurnAdvanced},
		}

		newState.CurrentPiece = cmd.Piece
		newState.Used[cmd.Piece] = true
		newState.Phase = PhasePlacement
		newState.Current = Other(s.Current)
		return events, newState, nil

	case CmdPlacePiece:
		if s.Phase != PhasePlacement {
			return nil, s, ErrWrongPhase
		}
		if !canPlace(s, cmd.Cell) {
			return nil, s, ErrIllegalCell
		}

		events := []Event{
			{Type: EvtPiecePlaced, Seat: cmd.Seat, Piece: s.CurrentPiece, Cell: cmd.Cell},
		}

		newState.Board[cmd.Cell] = s.CurrentPiece
		newState.CurrentPiece = NoPiece
		newState.Moves++
		newState.Phase = PhaseChoice

		// Completion
		if HasWinningLine(newState.Board) {
			newState.Winner = cmd.Seat
			newState.Done = true
			events = append(events, Event{Type: EvtGameCompleted, Winner: cmd.Seat})
		} else if newState.Moves == NumCells {
			newState.Done = true
			events = append(events, Event{Type: EvtGameCompleted, Winner: NoWinner})
		}
		return events, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// Reduce replays an event log onto a fresh game.
func Reduce(events []Event) State {
	s := NewEmptyState()
	for _, event := range events {
		switch event.Type {
		case EvtPieceSelected:
			s.CurrentPiece = event.Piece
			s.Used[event.Piece] = true
			s.Phase = PhasePlacement
		case EvtTurnAdvanced:
			s.Current = Other(s.Current)
		case EvtPiecePlaced:
			s.Board[event.Cell] = event.Piece
			s.CurrentPiece = NoPiece
			s.Moves++
			s.Phase = PhaseChoice
		case EvtGameCompleted:
			s.Done = true
			s.Winner = event.Winner
		}
	}
	return s
}

func canSelect(s State, p Piece) bool {
	return p.Valid() && !s.Used[p]
}

func canPlace(s State, c Cell) bool {
	return c.Valid() && s.Board[c] == NoPiece
}
