package tetris

import "fmt"

// Cell is a position on the board. Rows grow downwards from 0 at the top,
// columns grow to the right from 0.
type Cell struct {
	Row int
	Col int
}

func (c Cell) String() string { return fmt.Sprintf("(%d,%d)", c.Row, c.Col) }

type Direction int

const (
	Left  Direction = -1
	Right Direction = 1
)

// Kind is one of the five tetromino shapes.
type Kind int

const (
	Square Kind = iota
	Line
	LShape
	TShape
	ZShape
)

// Kinds lists every shape in the order the randomizer draws them.
var Kinds = []Kind{Square, Line, LShape, TShape, ZShape}

func (k Kind) String() string {
	switch k {
	case Square:
		return "square"
	case Line:
		return "line"
	case LShape:
		return "l"
	case TShape:
		return "t"
	case ZShape:
		return "z"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type offset struct{ row, col int }

// layouts holds, per kind and rotation state, the offsets of the four cells
// relative to the first one. The first offset is always the pivot (0,0).
// Layout 0 is also the spawn layout.
//
// Spawn layouts, P being the pivot:
//
//	Line    L      T        Z      Square
//	O       O      O P O    O P    P O
//	P       P        O        O O  O O
//	O       O O
//	O
var layouts = map[Kind][][4]offset{
	Square: {
		{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
	},
	Line: {
		{{0, 0}, {-1, 0}, {1, 0}, {2, 0}},
		{{0, 0}, {0, -1}, {0, 1}, {0, 2}},
	},
	LShape: {
		{{0, 0}, {-1, 0}, {1, 0}, {1, 1}},
		{{0, 0}, {0, -1}, {0, 1}, {1, -1}},
		{{0, 0}, {-1, -1}, {-1, 0}, {1, 0}},
		{{0, 0}, {0, -1}, {0, 1}, {-1, 1}},
	},
	TShape: {
		{{0, 0}, {0, -1}, {1, 0}, {0, 1}},
		{{0, 0}, {-1, 0}, {0, -1}, {1, 0}},
		{{0, 0}, {0, -1}, {-1, 0}, {0, 1}},
		{{0, 0}, {-1, 0}, {0, 1}, {1, 0}},
	},
	ZShape: {
		{{0, 0}, {0, -1}, {1, 0}, {1, 1}},
		{{0, 0}, {-1, 0}, {0, -1}, {1, -1}},
	},
}

// States returns the number of rotation states of the kind.
func (k Kind) States() int { return len(layouts[k]) }

// Piece is the active tetromino. Candidate methods (CellsAfter*) never
// mutate the piece; only the Apply* methods do.
type Piece struct {
	Kind  Kind
	Cells [4]Cell
	State int
}

func newPiece(k Kind, origin Cell) *Piece {
	return &Piece{Kind: k, Cells: place(origin, layouts[k][0])}
}

func place(pivot Cell, l [4]offset) [4]Cell {
	var cells [4]Cell
	for i, o := range l {
		cells[i] = Cell{Row: pivot.Row + o.row, Col: pivot.Col + o.col}
	}
	return cells
}

func (p *Piece) CurrentCells() [4]Cell { return p.Cells }

func (p *Piece) CellsAfterFall() [4]Cell {
	return p.shift(1, 0)
}

func (p *Piece) CellsAfterMove(d Direction) [4]Cell {
	return p.shift(0, int(d))
}

// CellsAfterRotate returns the cells of the next rotation state pivoting on
// the first cell. Square has a single state, so its cells come back unchanged.
func (p *Piece) CellsAfterRotate() [4]Cell {
	return place(p.Cells[0], layouts[p.Kind][p.nextState()])
}

func (p *Piece) ApplyFall()            { p.Cells = p.CellsAfterFall() }
func (p *Piece) ApplyMove(d Direction) { p.Cells = p.CellsAfterMove(d) }

func (p *Piece) ApplyRotate() {
	p.Cells = p.CellsAfterRotate()
	p.State = p.nextState()
}

func (p *Piece) nextState() int {
	return (p.State + 1) % p.Kind.States()
}

func (p *Piece) shift(rows, cols int) [4]Cell {
	var cells [4]Cell
	for i, c := range p.Cells {
		cells[i] = Cell{Row: c.Row + rows, Col: c.Col + cols}
	}
	return cells
}

func (p *Piece) copy() *Piece {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
