package rooms

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mathbattle/internal/battle"
	"mathbattle/internal/broadcast"
	"mathbattle/internal/gamedata"
	"mathbattle/internal/players"
)

// Conn is one registered stream. Exactly one of PlayerName and DeviceName is
// set.
type Conn struct {
	ID         uuid.UUID
	RoomCode   string
	PlayerName string
	DeviceName string
	PlayerType players.Type
	// Mode is applied only when this connection creates the room.
	Mode battle.Mode
	Send chan []byte
}

func NewPlayerConn(code, name string, typ players.Type, mode battle.Mode, buffer int) *Conn {
	return &Conn{
		ID:         uuid.New(),
		RoomCode:   code,
		PlayerName: name,
		PlayerType: typ,
		Mode:       mode,
		Send:       make(chan []byte, buffer),
	}
}

func NewDeviceConn(code, device string, buffer int) *Conn {
	return &Conn{
		ID:         uuid.New(),
		RoomCode:   code,
		DeviceName: device,
		Send:       make(chan []byte, buffer),
	}
}

func (c *Conn) Name() string {
	if c.PlayerName != "" {
		return c.PlayerName
	}
	return c.DeviceName
}

func (c *Conn) IsPlayer() bool {
	return c.PlayerName != ""
}

// Kind is "player" or "device".
func (c *Conn) Kind() string {
	if c.IsPlayer() {
		return "player"
	}
	return "device"
}

// Room is guarded by mu. Only the Registry touches it.
type Room struct {
	mu sync.Mutex

	Code       string
	mode       battle.Mode
	conns      map[string]*Conn
	players    *players.Store
	battle     *battle.Battle
	history    []*battle.Battle
	phase      gamedata.Phase
	clock      gamedata.Clock
	viewers    *broadcast.Broadcaster
	createdAt  time.Time
	lastActive time.Time
	evicted    bool
}

func newRoom(code string, mode battle.Mode, now time.Time) *Room {
	return &Room{
		Code:       code,
		mode:       mode,
		conns:      make(map[string]*Conn),
		players:    players.NewStore(),
		phase:      gamedata.PhasePlaying,
		viewers:    broadcast.NewBroadcaster(),
		createdAt:  now,
		lastActive: now,
	}
}

func (r *Room) devices() []string {
	var names []string
	for name, c := range r.conns {
		if !c.IsPlayer() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (r *Room) pushHistory(b *battle.Battle, size int) {
	if size <= 0 {
		return
	}
	r.history = append(r.history, b)
	if len(r.history) > size {
		r.history = r.history[len(r.history)-size:]
	}
}

// idle reports whether the room has no connections and has seen no activity
// for ttl.
func (r *Room) idle(now time.Time, ttl time.Duration) bool {
	return len(r.conns) == 0 && now.Sub(r.lastActive) > ttl
}
