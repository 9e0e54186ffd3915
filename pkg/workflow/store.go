package workflow

import (
	"errors"
	"sync"
)

// ErrRunActive is returned when a run is requested for a ticket that
// already has a run in flight. Concurrent runs for the same identifier
// would race on the ticket's state, so the second caller is rejected
// rather than interleaved.
var ErrRunActive = errors.New("a run is already active for this ticket")

// Store holds run state across and after runs. It is injected by the
// orchestrator's caller; the orchestrator keeps no module-level state.
//
// Begin registers a new run and takes a lease on the ticket identifier,
// returning ErrRunActive while a prior lease is held. Save persists a
// snapshot of the state mid-run. Finish releases the lease, leaving the
// final state readable. Get returns the latest saved state.
type Store interface {
	Begin(state *State) error
	Save(state *State)
	Finish(ticketID string)
	Get(ticketID string) (*State, bool)
}

// MemoryStore is the in-memory Store. Completed runs are retained for
// status queries until the process exits.
type MemoryStore struct {
	mu     sync.Mutex
	runs   map[string]*State
	active map[string]bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:   make(map[string]*State),
		active: make(map[string]bool),
	}
}

func (s *MemoryStore) Begin(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := state.Ticket.ID
	if s.active[id] {
		return ErrRunActive
	}
	s.active[id] = true
	s.runs[id] = snapshotState(state)
	return nil
}

func (s *MemoryStore) Save(state *State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[state.Ticket.ID] = snapshotState(state)
}

func (s *MemoryStore) Finish(ticketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, ticketID)
}

func (s *MemoryStore) Get(ticketID string) (*State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.runs[ticketID]
	if !ok {
		return nil, false
	}
	return snapshotState(state), true
}

// snapshotState deep-copies the mutable parts of a state so stored
// snapshots cannot be mutated by the running orchestrator, or vice
// versa.
func snapshotState(state *State) *State {
	copied := *state
	copied.Transitions = append([]Transition(nil), state.Transitions...)
	copied.ActionsTaken = append([]string(nil), state.ActionsTaken...)
	return &copied
}
