package application

import (
	"sync"

	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

// GameStore holds the node's copy of the replicated state. Only the MASTER
// writes through Update and Replace; followers use Apply.
type GameStore struct {
	mu     sync.RWMutex
	state  *pb.GameState
	config pb.GameConfig
}

func NewGameStore(cfg pb.GameConfig) *GameStore {
	return &GameStore{config: cfg}
}

// Snapshot returns a deep copy of the state together with the config.
// The state is nil until one is known.
func (s *GameStore) Snapshot() (*pb.GameState, pb.GameConfig) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone(), s.config
}

func (s *GameStore) State() *pb.GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *GameStore) Config() pb.GameConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *GameStore) SetConfig(cfg pb.GameConfig) {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
}

// StateOrder is the order of the held state, -1 when none is held.
func (s *GameStore) StateOrder() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return -1
	}
	return s.state.StateOrder
}

// Apply stores state if it is newer than the held one and reports whether
// it did.
func (s *GameStore) Apply(state *pb.GameState) bool {
	if state == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != nil && state.StateOrder <= s.state.StateOrder {
		return false
	}
	s.state = state.Clone()
	return true
}

func (s *GameStore) Replace(state *pb.GameState) {
	s.mu.Lock()
	s.state = state.Clone()
	s.mu.Unlock()
}

// Update runs one read-modify-write. fn gets a copy of the held state and
// returns the state to keep; on error nothing changes.
func (s *GameStore) Update(fn func(cur *pb.GameState) (*pb.GameState, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.state.Clone()
	if cur == nil {
		cur = &pb.GameState{}
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

type steer struct {
	dir pb.Direction
	seq int64
}

// SteerBuffer collects the steers received during one turn. For each
// player only the one with the highest sequence number is kept.
type SteerBuffer struct {
	mu     sync.Mutex
	steers map[int32]steer
}

func NewSteerBuffer() *SteerBuffer {
	return &SteerBuffer{steers: make(map[int32]steer)}
}

func (b *SteerBuffer) Record(playerID int32, dir pb.Direction, seq int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.steers[playerID]; ok && cur.seq >= seq {
		return
	}
	b.steers[playerID] = steer{dir: dir, seq: seq}
}

// Take returns the collected directions and starts a new turn.
func (b *SteerBuffer) Take() map[int32]pb.Direction {
	b.mu.Lock()
	defer b.mu.Unlock()
	dirs := make(map[int32]pb.Direction, len(b.steers))
	for id, s := range b.steers {
		dirs[id] = s.dir
	}
	b.steers = make(map[int32]steer)
	return dirs
}
