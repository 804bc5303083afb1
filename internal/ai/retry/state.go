package retry

import (
	"sync"

	"smartnotes/internal/ai/aierr"
)

// State tracks retry progress of one logical AI operation for observers.
// It makes no decisions. The worker running the operation writes it while
// the HTTP status endpoint reads it, hence the mutex.
type State struct {
	mu        sync.Mutex
	attempts  int
	retrying  bool
	lastError *aierr.Error
}

// Snapshot is a point-in-time copy of a State.
type Snapshot struct {
	Attempts   int          `json:"attempts"`
	IsRetrying bool         `json:"isRetrying"`
	LastError  *aierr.Error `json:"lastError"`
	Progress   float64      `json:"progress"`
}

// NewState returns a fresh state.
func NewState() *State { return &State{} }

// StartRetry records that a retry has begun.
func (s *State) StartRetry() {
	s.mu.Lock()
	s.attempts++
	s.retrying = true
	s.mu.Unlock()
}

// StopRetry clears the in-progress flag.
func (s *State) StopRetry() {
	s.mu.Lock()
	s.retrying = false
	s.mu.Unlock()
}

// SetError stores the most recent classified failure.
func (s *State) SetError(err *aierr.Error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}

// Reset returns the state to zero attempts, not retrying, no error.
func (s *State) Reset() {
	s.mu.Lock()
	s.attempts = 0
	s.retrying = false
	s.lastError = nil
	s.mu.Unlock()
}

// Progress returns min(attempts/DefaultMaxAttempts*100, 100).
func (s *State) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return progress(s.attempts)
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Attempts:   s.attempts,
		IsRetrying: s.retrying,
		LastError:  s.lastError,
		Progress:   progress(s.attempts),
	}
}

// OnRetry adapts the state to Execute's retry hook.
func (s *State) OnRetry(_ int, err *aierr.Error) {
	s.StartRetry()
	s.SetError(err)
}

func progress(attempts int) float64 {
	return min(float64(attempts)/float64(DefaultMaxAttempts)*100, 100)
}

// Board holds the State of the latest AI operation per key.
type Board struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{states: make(map[string]*State)}
}

// Begin installs and returns a fresh State for key, replacing any previous one.
func (b *Board) Begin(key string) *State {
	st := NewState()
	b.mu.Lock()
	b.states[key] = st
	b.mu.Unlock()
	return st
}

// Get returns the State for key.
func (b *Board) Get(key string) (*State, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.states[key]
	return st, ok
}

// Forget drops the State for key.
func (b *Board) Forget(key string) {
	b.mu.Lock()
	delete(b.states, key)
	b.mu.Unlock()
}
