package players

import (
	"sort"
	"sync"
)

// Store is a room's roster keyed by player name.
type Store struct {
	mu      sync.Mutex
	players map[string]*Player
	nextSeq int
}

func NewStore() *Store {
	return &Store{
		players: make(map[string]*Player),
	}
}

// Add registers name with a zero score. An existing entry is returned
// unchanged.
func (s *Store) Add(name string, typ Type) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[name]; ok {
		return p
	}
	s.nextSeq++
	player := &Player{Name: name, Type: typ, seq: s.nextSeq}
	s.players[name] = player
	return player
}

func (s *Store) Get(name string) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[name]
}

func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[name]; !ok {
		return false
	}
	delete(s.players, name)
	return true
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// GetList returns copies of every player in join order.
func (s *Store) GetList() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	playerList := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		playerList = append(playerList, *p)
	}
	sort.Slice(playerList, func(i, j int) bool { return playerList[i].seq < playerList[j].seq })
	return playerList
}

// Names returns player names in join order.
func (s *Store) Names() []string {
	list := s.GetList()
	names := make([]string, len(list))
	for i, p := range list {
		names[i] = p.Name
	}
	return names
}

func (s *Store) UpdateScore(name string, points int) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, e := s.players[name]; e {
		p.Score += points
		return p
	}
	return nil
}

func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		p.Score = 0
	}
}
