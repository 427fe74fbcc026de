package events

import (
	"time"

	"mathbattle/internal/battle"
)

type Outcome string

const (
	OutcomeSolved  Outcome = "solved"
	OutcomeExpired Outcome = "expired"
	OutcomeReset   Outcome = "reset"
)

// RoundResult describes a finished Battle.
type RoundResult struct {
	ID            string
	RoomCode      string
	Mode          battle.Mode
	Outcome       Outcome
	Winner        string
	LHS           int
	RHS           int
	CorrectAnswer int
	StartedAt     time.Time
	EndedAt       time.Time
}

type Bus struct {
	Rounds chan RoundResult
}

func NewBus(size int) *Bus {
	return &Bus{
		Rounds: make(chan RoundResult, size),
	}
}

// Publish queues r without blocking. It reports false when the bus is nil or
// full.
func (b *Bus) Publish(r RoundResult) bool {
	if b == nil {
		return false
	}
	select {
	case b.Rounds <- r:
		return true
	default:
		return false
	}
}
