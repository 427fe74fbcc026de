package gamedata

import (
	"time"

	"mathbattle/internal/battle"
	"mathbattle/internal/players"
)

type Phase string

const (
	PhasePlaying  = Phase("playing")
	PhaseFinished = Phase("finished")
)

type Config struct {
	AnswerTime     time.Duration
	ParentPenalty  time.Duration
	TickInterval   time.Duration
	TimerEnabled   bool
	MaxScore       int // 0 disables game end
	DefaultMode    battle.Mode
	RoomIdleTTL    time.Duration
	OutboundBuffer int
	HistorySize    int
}

func DefaultConfig() Config {
	return Config{
		AnswerTime:     20 * time.Second,
		ParentPenalty:  10 * time.Second,
		TickInterval:   1 * time.Second,
		TimerEnabled:   true,
		MaxScore:       30,
		DefaultMode:    battle.Shared,
		RoomIdleTTL:    10 * time.Minute,
		OutboundBuffer: 64,
		HistorySize:    10,
	}
}

// Clock measures one round. Parents get ParentPenalty less time to score.
type Clock struct {
	StartedAt     time.Time
	AnswerTime    time.Duration
	ParentPenalty time.Duration
}

func (c Config) NewClock(now time.Time) Clock {
	return Clock{
		StartedAt:     now,
		AnswerTime:    c.AnswerTime,
		ParentPenalty: c.ParentPenalty,
	}
}

// Remaining returns whole seconds left in the round, rounded up.
func (c Clock) Remaining(now time.Time) int {
	return ceilSeconds(c.AnswerTime - now.Sub(c.StartedAt))
}

func (c Clock) Expired(now time.Time) bool {
	return c.Remaining(now) == 0
}

// Accepts reports whether an answer from a player of typ may still score.
func (c Clock) Accepts(typ players.Type, now time.Time) bool {
	window := c.AnswerTime
	if typ == players.Parent {
		window -= c.ParentPenalty
	}
	return now.Sub(c.StartedAt) < window
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
