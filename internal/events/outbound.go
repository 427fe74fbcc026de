package events

import (
	"strconv"

	"mathbattle/internal/battle"
	"mathbattle/internal/players"
)

func message(t Type, data string, name *string, roster []players.Player, b *battle.Battle) Message {
	return Message{
		Type:         t,
		Data:         data,
		PlayerName:   name,
		Players:      roster,
		ActiveBattle: ViewOf(b),
	}
}

func NewJoin(name string, roster []players.Player, b *battle.Battle) Message {
	return message(TypeJoin, name, &name, roster, b)
}

func NewLeave(name string, roster []players.Player, b *battle.Battle) Message {
	return message(TypeLeave, name, &name, roster, b)
}

func NewAnswer(from string, value int, roster []players.Player, b *battle.Battle) Message {
	return message(TypeAnswer, strconv.Itoa(value), &from, roster, b)
}

// NewBattle announces b. from names whoever caused the new Battle and may be
// empty.
func NewBattle(from string, roster []players.Player, b *battle.Battle) Message {
	var name *string
	if from != "" {
		name = &from
	}
	return message(TypeBattle, "", name, roster, b)
}

func NewHeartbeat(from string, roster []players.Player, b *battle.Battle) Message {
	return message(TypeHeartbeat, "pong!", &from, roster, b)
}

func NewTimerTick(remaining int, roster []players.Player, b *battle.Battle) Message {
	m := message(TypeTimerTick, strconv.Itoa(remaining), nil, roster, b)
	m.AnswerTimeRemaining = &remaining
	return m
}

func NewTimeExpired(roster []players.Player, b *battle.Battle) Message {
	zero := 0
	m := message(TypeTimeExpired, "", nil, roster, b)
	m.AnswerTimeRemaining = &zero
	return m
}

func NewGameEnd(winner string, roster []players.Player, b *battle.Battle) Message {
	return message(TypeGameEnd, winner, &winner, roster, b)
}
