package tetris

import (
	"sync"
	"time"
)

// MockTicker is a mock implementation of the ticker interface.
type MockTicker struct {
	ch      chan time.Time
	stopped bool
	resets  []time.Duration
	mu      sync.Mutex
}

func NewMockTicker() *MockTicker          { return &MockTicker{ch: make(chan time.Time), stopped: true} }
func (m *MockTicker) C() <-chan time.Time { return m.ch }
func (m *MockTicker) Tick()               { m.ch <- time.Now() }

func (m *MockTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *MockTicker) Reset(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = false
	m.resets = append(m.resets, d)
}

func (m *MockTicker) IsStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Resets returns every duration the ticker was armed with, oldest first.
func (m *MockTicker) Resets() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.resets...)
}

// sequence draws the given kinds in order, over and over.
type sequence struct {
	kinds []Kind
	next  int
}

func (s *sequence) IntN(n int) int {
	k := s.kinds[s.next%len(s.kinds)]
	s.next++
	return int(k) % n
}

// NewTestBoard returns an empty board spawning kinds in the given order.
func NewTestBoard(kinds ...Kind) *Board {
	if len(kinds) == 0 {
		kinds = []Kind{Line}
	}
	return NewBoard(&sequence{kinds: kinds})
}

// NewTestGame creates a debug game spawning kinds in the given order and
// returns it with its manual ticker. Options other than the ticker and the
// randomizer are taken from o.
func NewTestGame(o Options, kinds ...Kind) (*Game, *MockTicker) {
	ticker := NewMockTicker()
	if len(kinds) == 0 {
		kinds = []Kind{Line}
	}
	o.Ticker = ticker
	o.Randomizer = &sequence{kinds: kinds}
	o.Debug = true
	return NewGame(o), ticker
}
