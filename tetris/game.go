package tetris

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

type State int

const (
	Stopped State = iota // no game started yet
	Running
	Paused
	GameOver
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case GameOver:
		return "game over"
	default:
		return "unknown"
	}
}

const (
	DefaultInterval    = 1 * time.Second
	DefaultFastDivisor = 27
)

type Ticker interface {
	C() <-chan time.Time
	Reset(time.Duration)
	Stop()
}

type wrappedTicker struct {
	ticker *time.Ticker
}

// newWrappedTicker returns a stopped ticker; it starts ticking on Reset.
func newWrappedTicker() *wrappedTicker {
	t := time.NewTicker(time.Hour)
	t.Stop()
	return &wrappedTicker{ticker: t}
}

func (t *wrappedTicker) C() <-chan time.Time   { return t.ticker.C }
func (t *wrappedTicker) Stop()                 { t.ticker.Stop() }
func (t *wrappedTicker) Reset(d time.Duration) { t.ticker.Reset(d) }

// Listener is implemented by the presentation layer. Callbacks run after the
// game lock is released, so they may call back into the Game.
type Listener interface {
	OnUpdate()
	OnScoreChanged(score int)
	// OnRowsCleared is followed by Game.CommitClear once the clear effect is
	// over, unless the game commits clears by itself.
	OnRowsCleared(h *ClearHandle)
	OnGameOver()
	OnNewGame()
	OnPauseToggled(paused bool)
}

// NopListener ignores every event. Embed it to implement only some callbacks.
type NopListener struct{}

func (NopListener) OnUpdate()                  {}
func (NopListener) OnScoreChanged(int)         {}
func (NopListener) OnRowsCleared(*ClearHandle) {}
func (NopListener) OnGameOver()                {}
func (NopListener) OnNewGame()                 {}
func (NopListener) OnPauseToggled(bool)        {}

type Options struct {
	Listener   Listener
	Logger     *slog.Logger
	Ticker     Ticker
	Randomizer Randomizer

	Interval    time.Duration
	FastDivisor int

	// AnimateClears leaves CommitClear to the listener.
	AnimateClears bool
	// Debug panics when a board invariant is broken.
	Debug bool
}

// Snapshot is a copy of the game state that's safe to read concurrently.
type Snapshot struct {
	ID       string
	State    State
	Score    int
	Settled  []Cell
	Active   []Cell
	Kind     Kind
	Clearing []int
	Interval time.Duration
}

// Game is the loop controller. It ticks the board at a fixed interval and
// serializes every command and tick behind one lock.
type Game struct {
	id       string
	board    *Board
	ticker   Ticker
	listener Listener
	logger   *slog.Logger

	state    State
	normal   time.Duration
	fast     time.Duration
	interval time.Duration
	fastDrop bool
	animate  bool
	debug    bool

	mu      sync.Mutex
	events  []func(Listener)
	doneCh  chan struct{}
	started bool
	stopped bool
}

func NewGame(o Options) *Game {
	if o.Listener == nil {
		o.Listener = NopListener{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Ticker == nil {
		o.Ticker = newWrappedTicker()
	}
	if o.Randomizer == nil {
		o.Randomizer = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)) //nolint:gosec
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.FastDivisor <= 0 {
		o.FastDivisor = DefaultFastDivisor
	}
	return &Game{
		board:    NewBoard(o.Randomizer),
		ticker:   o.Ticker,
		listener: o.Listener,
		logger:   o.Logger,
		normal:   o.Interval,
		fast:     fastInterval(o.Interval, o.FastDivisor),
		interval: o.Interval,
		animate:  o.AnimateClears,
		debug:    o.Debug,
		doneCh:   make(chan struct{}),
	}
}

func fastInterval(normal time.Duration, divisor int) time.Duration {
	d := (normal / time.Duration(divisor)).Truncate(time.Millisecond)
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}

// Start runs the tick loop in its own goroutine until Stop.
func (g *Game) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started || g.stopped {
		return
	}
	g.started = true
	go g.listen()
}

func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	g.stopped = true
	g.ticker.Stop()
	close(g.doneCh)
}

func (g *Game) listen() {
	for {
		select {
		case <-g.ticker.C():
			g.exec(g.tick)
		case <-g.doneCh:
			return
		}
	}
}

// exec runs fn under the game lock and then dispatches the events it queued.
func (g *Game) exec(fn func()) {
	g.mu.Lock()
	fn()
	if g.debug {
		if err := g.board.Validate(); err != nil {
			g.mu.Unlock()
			panic(err)
		}
	}
	events := g.events
	g.events = nil
	g.mu.Unlock()

	for _, e := range events {
		e(g.listener)
	}
}

func (g *Game) emit(e func(Listener)) { g.events = append(g.events, e) }

func (g *Game) update() { g.emit(func(l Listener) { l.OnUpdate() }) }

func (g *Game) log() *slog.Logger {
	return g.logger.With(slog.String("session", g.id))
}

// arm replaces the pending schedule, if any, with one ticking every d.
func (g *Game) arm(d time.Duration) {
	g.interval = d
	g.ticker.Reset(d)
}

// tick runs one step of the loop: fall or lock, line clear scan, spawn and
// the game over check, in that order.
func (g *Game) tick() {
	if g.state != Running || g.board.ClearPending() {
		return
	}
	if g.board.Fall() {
		g.log().Debug("piece locked", slog.Int("settled", len(g.board.Settled())))
		if g.fastDrop {
			g.fastDrop = false
			g.arm(g.normal)
		}
	}
	g.update()

	if rows := g.board.CompleteRows(); len(rows) > 0 {
		h := g.board.BeginClear(rows)
		g.log().Debug("clearing rows", slog.Any("rows", rows))
		g.emit(func(l Listener) { l.OnRowsCleared(h) })
		if g.animate {
			return
		}
		g.commit(h)
		return
	}
	g.settle()
}

// settle finishes a tick once no clear is pending.
func (g *Game) settle() {
	if g.board.active == nil {
		p, ok := g.board.Spawn()
		if !ok {
			g.over("spawn blocked")
			return
		}
		g.log().Debug("piece spawned", slog.String("kind", p.Kind.String()))
		g.update()
	}
	if g.board.IsGameOver() {
		g.over("spawn cell settled")
	}
}

func (g *Game) over(reason string) {
	g.ticker.Stop()
	g.state = GameOver
	g.fastDrop = false
	g.log().Info("game over", slog.String("reason", reason), slog.Int("score", g.board.Score()))
	g.update()
	g.emit(func(l Listener) { l.OnGameOver() })
}

func (g *Game) commit(h *ClearHandle) {
	if !g.board.CommitClear(h) {
		return
	}
	score := g.board.Score()
	g.log().Debug("rows cleared", slog.Int("rows", len(h.Rows)), slog.Int("score", score))
	g.emit(func(l Listener) { l.OnScoreChanged(score) })
	g.update()
	g.settle()
}

// CommitClear removes the rows of a handle received through OnRowsCleared
// and resumes the tick it interrupted. Stale handles are ignored.
func (g *Game) CommitClear(h *ClearHandle) {
	g.exec(func() { g.commit(h) })
}

// NewGame empties the board, resets the score and starts ticking at the
// normal interval. It restarts a game in progress.
func (g *Game) NewGame() {
	g.exec(func() {
		g.board.Reset()
		g.id = uuid.New().String()
		g.state = Running
		g.fastDrop = false
		g.arm(g.normal)
		g.log().Info("new game", slog.Duration("interval", g.normal))
		g.emit(func(l Listener) { l.OnNewGame() })
		g.emit(func(l Listener) { l.OnScoreChanged(0) })
		g.update()
	})
}

// TogglePause switches between Running and Paused. No ticks fire while
// paused; resuming rearms the interval in effect before the pause.
func (g *Game) TogglePause() {
	g.exec(func() {
		switch g.state {
		case Running:
			g.ticker.Stop()
			g.state = Paused
		case Paused:
			g.arm(g.interval)
			g.state = Running
		default:
			return
		}
		paused := g.state == Paused
		g.log().Debug("pause toggled", slog.Bool("paused", paused))
		g.emit(func(l Listener) { l.OnPauseToggled(paused) })
		g.update()
	})
}

// SoftDrop speeds up the ticks until the active piece locks.
func (g *Game) SoftDrop() {
	g.exec(func() {
		if g.state != Running || g.fastDrop {
			return
		}
		g.fastDrop = true
		g.arm(g.fast)
	})
}

func (g *Game) MoveLeft()  { g.command(func() bool { return g.board.Move(Left) }) }
func (g *Game) MoveRight() { g.command(func() bool { return g.board.Move(Right) }) }
func (g *Game) Rotate()    { g.command(g.board.Rotate) }

// command runs a piece command while Running, signalling an update when
// the piece changed.
func (g *Game) command(fn func() bool) {
	g.exec(func() {
		if g.state != Running {
			return
		}
		if fn() {
			g.update()
		}
	})
}

func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Read returns a copy of the current game status.
func (g *Game) Read() *Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := &Snapshot{
		ID:       g.id,
		State:    g.state,
		Score:    g.board.Score(),
		Settled:  g.board.Settled(),
		Interval: g.interval,
	}
	if p := g.board.active; p != nil {
		s.Active = append([]Cell(nil), p.Cells[:]...)
		s.Kind = p.Kind
	}
	if h := g.board.pending; h != nil {
		for _, r := range h.Rows {
			s.Clearing = append(s.Clearing, r.Row)
		}
	}
	return s
}
