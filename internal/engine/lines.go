package engine

// Lines lists every row, column and diagonal of the board.
var Lines = [][BoardSize]Cell{
	// Rows
	{0, 1, 2, 3},
	{4, 5, 6, 7},
	{8, 9, 10, 11},
	{12, 13, 14, 15},
	// Columns
	{0, 4, 8, 12},
	{1, 5, 9, 13},
	{2, 6, 10, 14},
	{3, 7, 11, 15},
	// Diagonals
	{0, 5, 10, 15},
	{3, 6, 9, 12},
}

// isWinningLine reports whether the line is full and all four pieces agree
// on at least one attribute (all set or all unset).
func isWinningLine(b Board, line [BoardSize]Cell) bool {
	for _, c := range line {
		if b[c] == NoPiece {
			return false
		}
	}
	for _, a := range Attributes {
		if sharesAttribute(b, line, a) {
			return true
		}
	}
	return false
}

func sharesAttribute(b Board, line [BoardSize]Cell, a Attribute) bool {
	first := b[line[0]].Has(a)
	for _, c := range line[1:] {
		if b[c].Has(a) != first {
			return false
		}
	}
	return true
}

func HasWinningLine(b Board) bool {
	for _, line := range Lines {
		if isWinningLine(b, line) {
			return true
		}
	}
	return false
}

// WinningLines returns every completed line that shares an attribute.
// The last placement can close more than one line at once.
func WinningLines(b Board) [][BoardSize]Cell {
	var out [][BoardSize]Cell
	for _, line := range Lines {
		if isWinningLine(b, line) {
			out = append(out, line)
		}
	}
	return out
}
