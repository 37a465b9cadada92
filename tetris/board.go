// Package tetris contains the simulation of a falling-block puzzle on a
// fixed 16x10 grid: pieces, the board of settled cells and the timed game loop.
package tetris

import (
	"errors"
	"fmt"

	"github.com/kamstrup/intmap"
)

const (
	Height = 16
	Width  = 10

	// RowReward is the score for every cleared row.
	RowReward = 10
)

// SpawnOrigin is where every new piece places its pivot. A settled cell on
// it ends the game.
var SpawnOrigin = Cell{Row: 0, Col: 4}

// Randomizer picks a number in [0, n). *rand.Rand from math/rand/v2 satisfies it.
type Randomizer interface {
	IntN(n int) int
}

// ClearedRow is a complete row waiting to be removed.
type ClearedRow struct {
	Row   int
	Cells []Cell
}

// ClearHandle is returned by BeginClear and consumed by CommitClear. Rows are
// sorted top to bottom.
type ClearHandle struct {
	Rows []ClearedRow
}

// Board owns the settled cells, the active piece and the score.
type Board struct {
	settled *intmap.Map[int, struct{}]
	active  *Piece
	score   int
	pending *ClearHandle
	rand    Randomizer
}

func NewBoard(r Randomizer) *Board {
	return &Board{
		settled: intmap.New[int, struct{}](Height * Width),
		rand:    r,
	}
}

// Reset empties the board and the score, dropping any pending clear.
func (b *Board) Reset() {
	b.settled = intmap.New[int, struct{}](Height * Width)
	b.active = nil
	b.score = 0
	b.pending = nil
}

func key(c Cell) int { return c.Row*Width + c.Col }

func (b *Board) Score() int { return b.score }

// Active returns a copy of the active piece, or nil.
func (b *Board) Active() *Piece { return b.active.copy() }

func (b *Board) IsSettled(c Cell) bool {
	if !inBounds(c) {
		return false
	}
	_, ok := b.settled.Get(key(c))
	return ok
}

// Settled returns the settled cells top to bottom, left to right.
func (b *Board) Settled() []Cell {
	var cells []Cell
	for r := range Height {
		for c := range Width {
			if b.IsSettled(Cell{Row: r, Col: c}) {
				cells = append(cells, Cell{Row: r, Col: c})
			}
		}
	}
	return cells
}

// Place settles cells directly. Cells out of the grid are ignored.
func (b *Board) Place(cells ...Cell) {
	for _, c := range cells {
		if inBounds(c) {
			b.settled.Put(key(c), struct{}{})
		}
	}
}

func inBounds(c Cell) bool {
	return c.Row >= 0 && c.Row < Height && c.Col >= 0 && c.Col < Width
}

func (b *Board) withinBounds(cells [4]Cell) bool {
	for _, c := range cells {
		if !inBounds(c) {
			return false
		}
	}
	return true
}

// unoccupied doesn't look at the active piece: its cells are never settled.
func (b *Board) unoccupied(cells [4]Cell) bool {
	for _, c := range cells {
		if b.IsSettled(c) {
			return false
		}
	}
	return true
}

func (b *Board) canPlace(cells [4]Cell) bool {
	return b.withinBounds(cells) && b.unoccupied(cells)
}

// Fall moves the active piece one row down. When it can't, the piece is
// locked and Fall reports true.
func (b *Board) Fall() (locked bool) {
	if b.active == nil {
		return false
	}
	if b.canPlace(b.active.CellsAfterFall()) {
		b.active.ApplyFall()
		return false
	}
	b.lock()
	return true
}

// Move shifts the active piece one column. It reports whether it moved.
func (b *Board) Move(d Direction) bool {
	if b.active == nil || !b.canPlace(b.active.CellsAfterMove(d)) {
		return false
	}
	b.active.ApplyMove(d)
	return true
}

// Rotate advances the active piece to its next rotation state. It reports
// whether the piece rotated.
func (b *Board) Rotate() bool {
	if b.active == nil || !b.canPlace(b.active.CellsAfterRotate()) {
		return false
	}
	b.active.ApplyRotate()
	return true
}

// lock moves the active piece cells into the settled set. Cells above the
// ceiling are dropped; they only exist when a piece locks at spawn.
func (b *Board) lock() {
	b.Place(b.active.Cells[:]...)
	b.active = nil
}

// CompleteRows returns the indexes of the full rows, top to bottom.
func (b *Board) CompleteRows() []int {
	var rows []int
	for r := range Height {
		full := true
		for c := range Width {
			if !b.IsSettled(Cell{Row: r, Col: c}) {
				full = false
				break
			}
		}
		if full {
			rows = append(rows, r)
		}
	}
	return rows
}

// ClearPending reports whether a clear was begun and not committed yet.
func (b *Board) ClearPending() bool { return b.pending != nil }

// BeginClear records the rows to clear. Nothing is removed until CommitClear.
func (b *Board) BeginClear(rows []int) *ClearHandle {
	h := &ClearHandle{}
	for _, r := range rows {
		row := ClearedRow{Row: r, Cells: make([]Cell, 0, Width)}
		for c := range Width {
			row.Cells = append(row.Cells, Cell{Row: r, Col: c})
		}
		h.Rows = append(h.Rows, row)
	}
	b.pending = h
	return h
}

// CommitClear removes the rows of h, collapses every row above each of them
// by one and scores them. It reports false for a handle that isn't pending.
func (b *Board) CommitClear(h *ClearHandle) bool {
	if h == nil || h != b.pending {
		return false
	}
	// top to bottom: collapsing above row r never touches a lower row.
	for _, row := range h.Rows {
		for _, c := range row.Cells {
			b.settled.Del(key(c))
		}
		b.collapse(row.Row)
		b.score += RowReward
	}
	b.pending = nil
	return true
}

func (b *Board) collapse(cleared int) {
	for r := cleared - 1; r >= 0; r-- {
		for c := range Width {
			from := Cell{Row: r, Col: c}
			if b.IsSettled(from) {
				b.settled.Del(key(from))
				b.settled.Put(key(Cell{Row: r + 1, Col: c}), struct{}{})
			}
		}
	}
}

// Spawn draws a random kind and places it at the spawn origin.
func (b *Board) Spawn() (*Piece, bool) {
	return b.SpawnKind(Kinds[b.rand.IntN(len(Kinds))])
}

// SpawnKind places a piece of kind k at the spawn origin when there is no
// active piece. It returns false without placing it when the piece would
// overlap settled cells.
func (b *Board) SpawnKind(k Kind) (*Piece, bool) {
	if b.active != nil {
		return b.active.copy(), true
	}
	p := newPiece(k, SpawnOrigin)
	if !b.unoccupied(p.Cells) {
		return nil, false
	}
	b.active = p
	return p.copy(), true
}

// IsGameOver reports whether the spawn origin is settled.
func (b *Board) IsGameOver() bool {
	return b.IsSettled(SpawnOrigin)
}

// Validate checks the board invariants. A non-nil error means a bug.
func (b *Board) Validate() error {
	var errs []error
	count := 0
	for r := range Height {
		for c := range Width {
			if b.IsSettled(Cell{Row: r, Col: c}) {
				count++
			}
		}
	}
	if count != b.settled.Len() {
		errs = append(errs, fmt.Errorf("%d settled cells outside of the grid", b.settled.Len()-count))
	}
	if b.active != nil {
		for _, c := range b.active.Cells {
			// only a freshly spawned piece reaches above the ceiling.
			if c.Row >= Height || c.Col < 0 || c.Col >= Width {
				errs = append(errs, fmt.Errorf("active cell %v out of bounds", c))
			}
			if b.IsSettled(c) {
				errs = append(errs, fmt.Errorf("active cell %v overlaps a settled cell", c))
			}
		}
	}
	if b.score < 0 || b.score%RowReward != 0 {
		errs = append(errs, fmt.Errorf("invalid score %d", b.score))
	}
	return errors.Join(errs...)
}
