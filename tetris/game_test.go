package tetris

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	updates int
	scores  []int
	clears  []*ClearHandle
	over    int
	newGame int
	pauses  []bool
}

func (r *recorder) OnUpdate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
}

func (r *recorder) OnScoreChanged(s int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = append(r.scores, s)
}

func (r *recorder) OnRowsCleared(h *ClearHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears = append(r.clears, h)
}

func (r *recorder) OnGameOver() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.over++
}

func (r *recorder) OnNewGame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newGame++
}

func (r *recorder) OnPauseToggled(p bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauses = append(r.pauses, p)
}

func (r *recorder) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

func (r *recorder) overCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.over
}

func newRecordedGame(o Options, kinds ...Kind) (*Game, *MockTicker, *recorder) {
	r := &recorder{}
	o.Listener = r
	g, ticker := NewTestGame(o, kinds...)
	return g, ticker, r
}

// testTick runs one loop step the way the ticker goroutine does.
func (g *Game) testTick() { g.exec(g.tick) }

func TestNewGame(t *testing.T) {
	g, ticker, r := newRecordedGame(Options{})
	assert.Equal(t, Stopped, g.State())
	assert.True(t, ticker.IsStopped())

	g.NewGame()
	s := g.Read()
	assert.Equal(t, Running, s.State)
	assert.NotEmpty(t, s.ID)
	assert.Zero(t, s.Score)
	assert.Empty(t, s.Active, "the first tick spawns")
	assert.False(t, ticker.IsStopped())
	assert.Equal(t, []time.Duration{DefaultInterval}, ticker.Resets())
	assert.Equal(t, 1, r.newGame)
	assert.Equal(t, []int{0}, r.scores)

	g.testTick()
	s = g.Read()
	assert.Equal(t, []Cell{{0, 4}, {-1, 4}, {1, 4}, {2, 4}}, s.Active)
	assert.Equal(t, Line, s.Kind)
}

func TestNewGameRestarts(t *testing.T) {
	g, _, _ := newRecordedGame(Options{})
	g.NewGame()
	first := g.Read().ID
	g.testTick()
	g.exec(func() { fillRow(g.board, 15) })

	g.NewGame()
	s := g.Read()
	assert.NotEqual(t, first, s.ID)
	assert.Empty(t, s.Settled)
	assert.Empty(t, s.Active)
}

func TestTickOrder(t *testing.T) {
	g, ticker, r := newRecordedGame(Options{}, Line, Square)
	g.NewGame()
	g.testTick() // spawn
	for range 13 {
		g.testTick()
	}
	require.Equal(t, []Cell{{13, 4}, {12, 4}, {14, 4}, {15, 4}}, g.Read().Active)

	// the blocked fall locks and the same tick spawns the next piece.
	g.testTick()
	s := g.Read()
	assert.Equal(t, []Cell{{12, 4}, {13, 4}, {14, 4}, {15, 4}}, s.Settled)
	assert.Equal(t, Square, s.Kind)
	assert.Equal(t, []Cell{{0, 4}, {0, 5}, {1, 4}, {1, 5}}, s.Active)
	assert.Equal(t, Running, s.State)
	assert.Equal(t, 0, r.overCount())
	assert.Len(t, ticker.Resets(), 1)
}

func TestTickClearsRows(t *testing.T) {
	g, _, r := newRecordedGame(Options{}, Square)
	g.NewGame()
	g.exec(func() {
		for c := range Width {
			if c != 4 && c != 5 {
				g.board.Place(Cell{Row: 15, Col: c})
			}
		}
		g.board.Place(Cell{Row: 14, Col: 0})
	})
	g.testTick() // spawn
	for range 14 {
		g.testTick()
	}
	require.Equal(t, []Cell{{14, 4}, {14, 5}, {15, 4}, {15, 5}}, g.Read().Active)
	// the square filled the gap in row 15 and locks on the floor.
	g.testTick()

	s := g.Read()
	assert.Equal(t, RowReward, s.Score)
	assert.Equal(t, []Cell{{15, 0}, {15, 4}, {15, 5}}, s.Settled)
	require.Len(t, r.clears, 1)
	assert.Equal(t, 15, r.clears[0].Rows[0].Row)
	assert.Equal(t, []int{0, RowReward}, r.scores)
	assert.Len(t, s.Active, 4, "a new piece spawned after the clear")
}

func TestAnimatedClear(t *testing.T) {
	g, _, r := newRecordedGame(Options{AnimateClears: true}, Square)
	g.NewGame()
	g.exec(func() {
		fillRow(g.board, 15)
		g.board.Place(Cell{Row: 14, Col: 2})
	})
	g.testTick()

	s := g.Read()
	require.Len(t, r.clears, 1)
	assert.Equal(t, []int{15}, s.Clearing)
	assert.Empty(t, s.Active, "spawn waits for the commit")
	assert.Len(t, s.Settled, Width+1)

	// ticks are suspended while the clear is pending.
	g.testTick()
	assert.Equal(t, s.Settled, g.Read().Settled)

	g.CommitClear(r.clears[0])
	s = g.Read()
	assert.Empty(t, s.Clearing)
	assert.Equal(t, []Cell{{15, 2}}, s.Settled)
	assert.Equal(t, RowReward, s.Score)
	assert.Len(t, s.Active, 4)

	// committing twice does nothing.
	g.CommitClear(r.clears[0])
	assert.Equal(t, RowReward, g.Read().Score)
}

func TestListenerMayCommitFromCallback(t *testing.T) {
	var g *Game
	l := &committer{commit: func(h *ClearHandle) { g.CommitClear(h) }}
	g, _ = NewTestGame(Options{Listener: l, AnimateClears: true}, TShape)
	g.NewGame()
	g.exec(func() { fillRow(g.board, 15) })
	g.testTick()

	s := g.Read()
	assert.Equal(t, RowReward, s.Score)
	assert.Empty(t, s.Settled)
	assert.Equal(t, TShape, s.Kind)
}

type committer struct {
	NopListener
	commit func(*ClearHandle)
}

func (c *committer) OnRowsCleared(h *ClearHandle) { c.commit(h) }

func TestGameOver(t *testing.T) {
	g, ticker, r := newRecordedGame(Options{}, Square)
	g.NewGame()
	g.exec(func() { g.board.Place(SpawnOrigin) })
	g.testTick()

	assert.Equal(t, GameOver, g.State())
	assert.True(t, ticker.IsStopped())
	assert.Equal(t, 1, r.overCount())

	// state is frozen until the next new game.
	before := g.Read()
	g.testTick()
	g.MoveLeft()
	g.Rotate()
	g.SoftDrop()
	g.TogglePause()
	assert.Equal(t, before, g.Read())
	assert.Equal(t, 1, r.overCount())
	assert.Empty(t, r.pauses)

	g.NewGame()
	assert.Equal(t, Running, g.State())
	assert.Empty(t, g.Read().Settled)
}

func TestGameOverWhenTheStackReachesTheTop(t *testing.T) {
	g, ticker, r := newRecordedGame(Options{}, Line)
	g.NewGame()
	for range 200 {
		if g.State() == GameOver {
			break
		}
		g.testTick()
	}
	require.Equal(t, GameOver, g.State())
	assert.True(t, ticker.IsStopped())
	assert.Equal(t, 1, r.overCount())

	s := g.Read()
	for _, c := range s.Settled {
		assert.Equal(t, 4, c.Col)
	}
	assert.Contains(t, s.Settled, SpawnOrigin)
}

func TestTogglePause(t *testing.T) {
	g, ticker, r := newRecordedGame(Options{}, TShape)

	g.TogglePause()
	assert.Equal(t, Stopped, g.State(), "no-op before the first game")

	g.NewGame()
	g.testTick()
	g.testTick()
	g.TogglePause()
	assert.Equal(t, Paused, g.State())
	assert.True(t, ticker.IsStopped())

	before := g.Read()
	g.testTick()
	g.MoveLeft()
	g.MoveRight()
	g.Rotate()
	g.SoftDrop()
	assert.Equal(t, before, g.Read())

	g.TogglePause()
	assert.Equal(t, Running, g.State())
	assert.False(t, ticker.IsStopped())
	assert.Equal(t, []bool{true, false}, r.pauses)
	assert.Equal(t, []time.Duration{DefaultInterval, DefaultInterval}, ticker.Resets())

	g.MoveLeft()
	assert.Equal(t, before.Active[0].Col-1, g.Read().Active[0].Col)
}

func TestSoftDrop(t *testing.T) {
	g, ticker, _ := newRecordedGame(Options{Interval: time.Second}, Square)
	g.SoftDrop()
	assert.Empty(t, ticker.Resets(), "no-op before the first game")

	g.NewGame()
	g.testTick()
	g.SoftDrop()
	g.SoftDrop()
	fast := 37 * time.Millisecond
	assert.Equal(t, []time.Duration{time.Second, fast}, ticker.Resets())
	assert.Equal(t, fast, g.Read().Interval)

	t.Run("pause keeps the fast interval", func(t *testing.T) {
		g.TogglePause()
		g.TogglePause()
		assert.Equal(t, fast, g.Read().Interval)
	})

	for g.Read().Active != nil && g.Read().Active[0].Row < 14 {
		g.testTick()
	}
	// lock resets the interval.
	g.testTick()
	assert.Equal(t, time.Second, g.Read().Interval)
	resets := ticker.Resets()
	assert.Equal(t, time.Second, resets[len(resets)-1])
}

func TestMoveCommands(t *testing.T) {
	g, _, r := newRecordedGame(Options{}, TShape)
	g.NewGame()
	g.testTick()
	g.testTick()
	// .	3 4 5
	// 1	O P O
	// 2	. O .
	require.Equal(t, []Cell{{1, 4}, {1, 3}, {2, 4}, {1, 5}}, g.Read().Active)

	updates := r.updateCount()
	g.MoveLeft()
	assert.Equal(t, []Cell{{1, 3}, {1, 2}, {2, 3}, {1, 4}}, g.Read().Active)
	g.MoveRight()
	g.MoveRight()
	assert.Equal(t, []Cell{{1, 5}, {1, 4}, {2, 5}, {1, 6}}, g.Read().Active)
	g.Rotate()
	assert.Equal(t, []Cell{{1, 5}, {0, 5}, {1, 4}, {2, 5}}, g.Read().Active)
	assert.Equal(t, updates+4, r.updateCount())

	for range 10 {
		g.MoveRight()
	}
	assert.Equal(t, 9, g.Read().Active[3].Col)
}

func TestFastInterval(t *testing.T) {
	tests := []struct {
		normal  time.Duration
		divisor int
		want    time.Duration
	}{
		{time.Second, 27, 37 * time.Millisecond},
		{500 * time.Millisecond, 27, 18 * time.Millisecond},
		{10 * time.Millisecond, 27, time.Millisecond},
		{time.Second, 1, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fastInterval(tt.normal, tt.divisor))
	}
}

func TestLoop(t *testing.T) {
	g, ticker, r := newRecordedGame(Options{}, Line)
	g.Start()
	defer g.Stop()
	g.NewGame()

	ticker.Tick()
	assert.Eventually(t, func() bool { return len(g.Read().Active) == 4 }, time.Second, 5*time.Millisecond)
	ticker.Tick()
	assert.Eventually(t, func() bool {
		a := g.Read().Active
		return len(a) == 4 && a[0].Row == 1
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, r.updateCount(), 3)

	g.Stop()
	assert.True(t, ticker.IsStopped())
}

func TestDebugPanicsOnBrokenInvariant(t *testing.T) {
	g, _ := NewTestGame(Options{}, Square)
	g.NewGame()
	assert.Panics(t, func() {
		g.exec(func() { g.board.active = newPiece(Square, Cell{Row: 15, Col: 9}) })
	})
}
