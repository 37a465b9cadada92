// Package terminal draws the board on an ANSI terminal and forwards key
// presses to the game.
package terminal

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"sync"
	"text/template"
	"time"

	"blockfall/tetris"

	"github.com/eiannone/keyboard"
)

const (
	flashFrames       = 6
	defaultFlashDelay = 40 * time.Millisecond
)

type game interface {
	Start()
	Stop()
	NewGame()
	MoveLeft()
	MoveRight()
	Rotate()
	SoftDrop()
	TogglePause()
	CommitClear(*tetris.ClearHandle)
	Read() *tetris.Snapshot
}

type Terminal struct {
	writer       io.Writer
	game         game
	template     *template.Template
	logger       *slog.Logger
	keysEventsCh <-chan keyboard.KeyEvent
	closeKeys    func() error
	flashDelay   time.Duration

	mu     sync.Mutex
	hidden map[int]bool
}

type Options struct {
	Writer     io.Writer
	Logger     *slog.Logger
	FlashDelay time.Duration
	// Keys replaces the keyboard, mostly for tests.
	Keys <-chan keyboard.KeyEvent
	// Game configures the game; listener and logger are set by the terminal.
	Game tetris.Options
}

func New(o *Options) (*Terminal, error) {
	tp, err := loadTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	t := &Terminal{
		writer:       o.Writer,
		template:     tp,
		logger:       o.Logger,
		keysEventsCh: o.Keys,
		flashDelay:   o.FlashDelay,
	}
	if t.writer == nil {
		t.writer = os.Stdout
	}
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}
	if t.flashDelay <= 0 {
		t.flashDelay = defaultFlashDelay
	}
	if t.keysEventsCh == nil {
		kc, err := keyboard.GetKeys(20)
		if err != nil {
			return nil, fmt.Errorf("failed to open keyboard: %w", err)
		}
		t.keysEventsCh = kc
		t.closeKeys = keyboard.Close
	}

	o.Game.Listener = t
	o.Game.Logger = t.logger
	o.Game.AnimateClears = true
	t.game = tetris.NewGame(o.Game)
	return t, nil
}

// Start draws the lobby and blocks until the player quits.
func (t *Terminal) Start() {
	fmt.Fprint(t.writer, clearScreen)
	t.render()
	t.game.Start()
	t.listenKB()
	t.game.Stop()
	if t.closeKeys != nil {
		if err := t.closeKeys(); err != nil {
			t.logger.Error("unable to close keyboard", slog.String("error", err.Error()))
		}
	}
}

func (t *Terminal) listenKB() {
	for {
		event, ok := <-t.keysEventsCh
		if !ok {
			t.logger.Error("Keyboard events channel closed unexpectedly")
			return
		}
		if event.Err != nil {
			t.logger.Error("keysEvents error", slog.String("error", event.Err.Error()))
			return
		}
		switch {
		case event.Key == keyboard.KeyCtrlC || event.Rune == 'q':
			return
		case event.Key == keyboard.KeyArrowLeft || event.Rune == 'a':
			t.game.MoveLeft()
		case event.Key == keyboard.KeyArrowRight || event.Rune == 'd':
			t.game.MoveRight()
		case event.Key == keyboard.KeyArrowUp || event.Rune == 'w':
			t.game.Rotate()
		case event.Key == keyboard.KeyArrowDown || event.Rune == 's':
			t.game.SoftDrop()
		case event.Key == keyboard.KeySpace || event.Rune == 'p':
			t.game.TogglePause()
		case event.Rune == 'n' || event.Rune == 'N':
			t.game.NewGame()
		}
	}
}

func (t *Terminal) render() {
	s := t.game.Read()

	t.mu.Lock()
	defer t.mu.Unlock()
	td := &templateData{
		Grid:    grid(s, t.hidden),
		Score:   s.Score,
		Message: message(s),
	}
	fmt.Fprint(t.writer, resetPos)
	if err := t.template.Execute(t.writer, td); err != nil {
		t.logger.Error("Unable to execute template", slog.String("error", err.Error()))
	}
}

// flash blinks the cleared rows and then lets the game remove them.
func (t *Terminal) flash(h *tetris.ClearHandle) {
	rows := make(map[int]bool, len(h.Rows))
	for _, r := range h.Rows {
		rows[r.Row] = true
	}
	for i := range flashFrames {
		t.mu.Lock()
		if i%2 == 0 {
			t.hidden = maps.Clone(rows)
		} else {
			t.hidden = nil
		}
		t.mu.Unlock()
		t.render()
		time.Sleep(t.flashDelay)
	}
	t.mu.Lock()
	t.hidden = nil
	t.mu.Unlock()
	t.game.CommitClear(h)
}

func (t *Terminal) OnUpdate() { t.render() }

func (t *Terminal) OnScoreChanged(score int) {
	t.logger.Debug("score changed", slog.Int("score", score))
}

func (t *Terminal) OnRowsCleared(h *tetris.ClearHandle) { go t.flash(h) }

func (t *Terminal) OnGameOver() {
	t.logger.Info("game over", slog.Int("score", t.game.Read().Score))
}

func (t *Terminal) OnNewGame() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hidden = nil
	fmt.Fprint(t.writer, clearScreen)
}

func (t *Terminal) OnPauseToggled(paused bool) {
	t.logger.Debug("pause toggled", slog.Bool("paused", paused))
}
