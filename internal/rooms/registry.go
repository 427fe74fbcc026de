package rooms

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mathbattle/internal/battle"
	"mathbattle/internal/broadcast"
	"mathbattle/internal/events"
	"mathbattle/internal/gamedata"
	"mathbattle/internal/metrics"
	"mathbattle/internal/players"
)

const (
	codeAttempts  = 10
	sweepInterval = time.Minute
)

var ErrCodeSpaceExhausted = errors.New("no free room code")

// Registry owns every Room. Each operation holds the room's lock while it
// mutates state and queues the resulting broadcasts, so members of a room
// see one order of events. The registry lock is always taken before a room
// lock.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	cfg     gamedata.Config
	log     zerolog.Logger
	bus     *events.Bus
	metrics *metrics.Collectors
	now     func() time.Time
}

// NewRegistry builds an empty registry. bus and m may be nil.
func NewRegistry(cfg gamedata.Config, log zerolog.Logger, bus *events.Bus, m *metrics.Collectors) *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		cfg:     cfg,
		log:     log.With().Str("component", "registry").Logger(),
		bus:     bus,
		metrics: m,
		now:     time.Now,
	}
}

// lockRoom returns the room for code with its lock held, or nil. When create
// is set a missing room is created in the given mode.
func (r *Registry) lockRoom(code string, create bool, mode battle.Mode) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	if !ok {
		if !create {
			return nil
		}
		if _, valid := battle.ParseMode(string(mode)); !valid {
			mode = r.cfg.DefaultMode
		}
		room = newRoom(code, mode, r.now())
		r.rooms[code] = room
		r.metrics.RoomOpened()
		r.log.Info().Str("room", code).Str("mode", string(mode)).Msg("room created")
	}
	room.mu.Lock()
	return room
}

// AddConnection registers c in its room. It reports false, changing nothing,
// when the name is already connected there.
func (r *Registry) AddConnection(c *Conn) bool {
	room := r.lockRoom(c.RoomCode, true, c.Mode)
	defer room.mu.Unlock()

	name := c.Name()
	if _, taken := room.conns[name]; taken {
		r.metrics.Rejected()
		r.log.Info().Str("room", room.Code).Str("name", name).Str("conn_id", c.ID.String()).Msg("name already connected")
		return false
	}

	now := r.now()
	room.conns[name] = c
	room.lastActive = now
	if c.IsPlayer() {
		room.players.Add(name, c.PlayerType)
		r.ensureBattle(room, now)
	}
	r.metrics.Connected(c.Kind())
	r.log.Info().Str("room", room.Code).Str("name", name).Str("conn_id", c.ID.String()).Str("kind", c.Kind()).Msg("connection added")

	r.broadcast(room, events.NewJoin(name, room.players.GetList(), room.battle))
	return true
}

// SendBattle rebroadcasts the current Battle, creating one if the room has
// players but no Battle yet.
func (r *Registry) SendBattle(code, from string) {
	room := r.lockRoom(code, false, "")
	if room == nil {
		return
	}
	defer room.mu.Unlock()

	if room.players.Count() > 0 {
		r.ensureBattle(room, r.now())
	}
	r.broadcast(room, events.NewBattle(from, room.players.GetList(), room.battle))
}

// RemoveConnection drops name from the room. A leave event is broadcast even
// when name was not connected.
func (r *Registry) RemoveConnection(code, name string) {
	room := r.lockRoom(code, false, "")
	if room == nil {
		return
	}
	defer room.mu.Unlock()

	if c, ok := room.conns[name]; ok {
		delete(room.conns, name)
		r.metrics.Disconnected(c.Kind())
		if c.IsPlayer() {
			room.players.Remove(name)
			if room.battle != nil {
				room.battle = room.battle.Prune(room.players.Names())
			}
		}
		r.log.Info().Str("room", code).Str("name", name).Str("conn_id", c.ID.String()).Msg("connection removed")
	}
	room.lastActive = r.now()

	r.broadcast(room, events.NewLeave(name, room.players.GetList(), room.battle))
}

// ProcessAnswer checks value against from's Question. Unparseable values are
// dropped. Every parsed answer is broadcast; a scoring answer then replaces
// the Battle.
func (r *Registry) ProcessAnswer(code, from, value string) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		r.log.Debug().Str("room", code).Str("name", from).Str("data", value).Msg("dropping non-numeric answer")
		return
	}

	room := r.lockRoom(code, false, "")
	if room == nil {
		return
	}
	defer room.mu.Unlock()

	c, ok := room.conns[from]
	if !ok || !c.IsPlayer() || room.phase == gamedata.PhaseFinished {
		return
	}

	now := r.now()
	room.lastActive = now
	correct := room.battle.QuestionFor(from).Check(n)

	r.broadcast(room, events.NewAnswer(from, n, room.players.GetList(), room.battle))
	if !correct {
		r.metrics.Answer(false)
		return
	}
	if r.cfg.TimerEnabled && !room.clock.Accepts(c.PlayerType, now) {
		r.metrics.AnswerLate()
		r.log.Debug().Str("room", code).Str("name", from).Str("conn_id", c.ID.String()).Msg("answer outside window")
		return
	}
	r.metrics.Answer(true)

	player := room.players.UpdateScore(from, 1)
	r.replaceBattle(room, now, events.OutcomeSolved, from)
	r.broadcast(room, events.NewBattle(from, room.players.GetList(), room.battle))

	if r.cfg.MaxScore > 0 && player != nil && player.Score >= r.cfg.MaxScore {
		room.phase = gamedata.PhaseFinished
		r.log.Info().Str("room", code).Str("name", from).Int("score", player.Score).Msg("game over")
		r.broadcast(room, events.NewGameEnd(from, room.players.GetList(), room.battle))
	}
}

// ResetRoom zeroes scores and starts a fresh Battle. A data value naming a
// mode switches the room to it first.
func (r *Registry) ResetRoom(code, from, data string) {
	room := r.lockRoom(code, false, "")
	if room == nil {
		return
	}
	defer room.mu.Unlock()

	if m, ok := battle.ParseMode(strings.TrimSpace(data)); ok {
		room.mode = m
	}
	now := r.now()
	room.lastActive = now
	room.players.ResetAll()
	room.phase = gamedata.PhasePlaying
	r.replaceBattle(room, now, events.OutcomeReset, "")
	r.log.Info().Str("room", code).Str("name", from).Str("mode", string(room.mode)).Msg("room reset")

	r.broadcast(room, events.NewBattle(from, room.players.GetList(), room.battle))
}

func (r *Registry) Heartbeat(code, from string) {
	room := r.lockRoom(code, false, "")
	if room == nil {
		return
	}
	defer room.mu.Unlock()

	room.lastActive = r.now()
	r.broadcast(room, events.NewHeartbeat(from, room.players.GetList(), room.battle))
}

// Snapshot is a copy of a room's state.
type Snapshot struct {
	Code                string             `json:"code"`
	Mode                battle.Mode        `json:"mode"`
	Phase               gamedata.Phase     `json:"phase"`
	Players             []players.Player   `json:"players"`
	Devices             []string           `json:"devices"`
	ActiveBattle        *events.BattleView `json:"activeBattle"`
	AnswerTimeRemaining *int               `json:"answerTimeRemaining,omitempty"`
	CreatedAt           time.Time          `json:"createdAt"`
}

func (r *Registry) Snapshot(code string) (Snapshot, bool) {
	room := r.lockRoom(code, false, "")
	if room == nil {
		return Snapshot{}, false
	}
	defer room.mu.Unlock()
	return r.snapshot(room), true
}

// Watch subscribes to a room's broadcasts. The snapshot and subscription are
// taken together so no event is missed between them.
func (r *Registry) Watch(code string) (Snapshot, chan broadcast.Event, func(), bool) {
	room := r.lockRoom(code, false, "")
	if room == nil {
		return Snapshot{}, nil, nil, false
	}
	defer room.mu.Unlock()

	ch := room.viewers.Subscribe()
	viewers := room.viewers
	return r.snapshot(room), ch, func() { viewers.Unsubscribe(ch) }, true
}

func (r *Registry) snapshot(room *Room) Snapshot {
	s := Snapshot{
		Code:         room.Code,
		Mode:         room.mode,
		Phase:        room.phase,
		Players:      room.players.GetList(),
		Devices:      room.devices(),
		ActiveBattle: events.ViewOf(room.battle),
		CreatedAt:    room.createdAt,
	}
	if r.cfg.TimerEnabled && room.battle != nil && room.phase == gamedata.PhasePlaying {
		remaining := room.clock.Remaining(r.now())
		s.AnswerTimeRemaining = &remaining
	}
	return s
}

// NewRoomCode returns a code not used by any live room.
func (r *Registry) NewRoomCode() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < codeAttempts; i++ {
		code, err := GenerateCode(DefaultCodeLength)
		if err != nil {
			return "", err
		}
		if _, exists := r.rooms[code]; !exists {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Tick advances every running round clock, broadcasting the time left or
// rotating the Battle when it has run out.
func (r *Registry) Tick(now time.Time) {
	if !r.cfg.TimerEnabled {
		return
	}
	for _, room := range r.list() {
		room.mu.Lock()
		if room.evicted || room.phase != gamedata.PhasePlaying || room.battle == nil || room.players.Count() == 0 {
			room.mu.Unlock()
			continue
		}
		if room.clock.Expired(now) {
			r.broadcast(room, events.NewTimeExpired(room.players.GetList(), room.battle))
			r.replaceBattle(room, now, events.OutcomeExpired, "")
			r.broadcast(room, events.NewBattle("", room.players.GetList(), room.battle))
		} else {
			r.broadcast(room, events.NewTimerTick(room.clock.Remaining(now), room.players.GetList(), room.battle))
		}
		room.mu.Unlock()
	}
}

// Sweep evicts rooms that have been empty for longer than the idle TTL and
// returns how many it removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for code, room := range r.rooms {
		room.mu.Lock()
		if room.idle(now, r.cfg.RoomIdleTTL) {
			room.evicted = true
			room.viewers.CloseAll()
			delete(r.rooms, code)
			r.metrics.RoomClosed()
			evicted++
			r.log.Info().Str("room", code).Msg("room evicted")
		}
		room.mu.Unlock()
	}
	return evicted
}

// Run drives the round timer and the idle sweeper until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	var tick <-chan time.Time
	if r.cfg.TimerEnabled && r.cfg.TickInterval > 0 {
		t := time.NewTicker(r.cfg.TickInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			r.Tick(r.now())
		case <-sweep.C:
			r.Sweep(r.now())
		}
	}
}

func (r *Registry) list() []*Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		list = append(list, room)
	}
	return list
}

// ensureBattle gives every player in room a Question. Called with room.mu
// held.
func (r *Registry) ensureBattle(room *Room, now time.Time) {
	names := room.players.Names()
	if room.battle == nil || len(room.battle.Questions) == 0 {
		room.battle = battle.New(names, room.mode)
		room.clock = r.cfg.NewClock(now)
		return
	}
	room.battle = battle.Extend(room.battle, names)
}

// replaceBattle records the finished round and starts a new one. Called with
// room.mu held.
func (r *Registry) replaceBattle(room *Room, now time.Time, outcome events.Outcome, winner string) {
	if old := room.battle; old != nil && len(old.Questions) > 0 {
		q := old.QuestionFor(winner)
		if q == nil {
			q = old.QuestionFor(old.Names()[0])
		}
		result := events.RoundResult{
			ID:            uuid.NewString(),
			RoomCode:      room.Code,
			Mode:          old.Mode,
			Outcome:       outcome,
			Winner:        winner,
			LHS:           q.LHS,
			RHS:           q.RHS,
			CorrectAnswer: q.CorrectAnswer,
			StartedAt:     room.clock.StartedAt,
			EndedAt:       now,
		}
		if r.bus != nil && !r.bus.Publish(result) {
			r.log.Warn().Str("room", room.Code).Msg("round bus full, result dropped")
		}
		r.metrics.Round(string(outcome))
		room.pushHistory(old, r.cfg.HistorySize)
	}
	room.battle = battle.New(room.players.Names(), room.mode)
	room.clock = r.cfg.NewClock(now)
}

// broadcast queues msg on every connection without blocking and mirrors it to
// viewers. Called with room.mu held.
func (r *Registry) broadcast(room *Room, msg events.Message) {
	data, err := msg.Encode()
	if err != nil {
		r.log.Error().Err(err).Str("room", room.Code).Msg("broadcast")
		return
	}
	for name, c := range room.conns {
		select {
		case c.Send <- data:
		default:
			r.metrics.Dropped()
			r.log.Warn().Str("room", room.Code).Str("name", name).Str("type", string(msg.Type)).Msg("send buffer full, dropping")
		}
	}
	room.viewers.Publish(string(msg.Type), string(data))
}
