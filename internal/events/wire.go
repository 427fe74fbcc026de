package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"mathbattle/internal/battle"
	"mathbattle/internal/players"
	"mathbattle/internal/questions"
)

type Type string

const (
	TypeJoin        Type = "join"
	TypeLeave       Type = "leave"
	TypeBattle      Type = "battle"
	TypeAnswer      Type = "answer"
	TypeHeartbeat   Type = "heartbeat"
	TypeReset       Type = "reset"
	TypeTimerTick   Type = "timerTick"
	TypeTimeExpired Type = "timeExpired"
	TypeGameEnd     Type = "gameEnd"
)

// Names used by older clients.
var aliases = map[string]Type{
	"tick":     TypeTimerTick,
	"time_up":  TypeTimeExpired,
	"game_end": TypeGameEnd,
}

var ErrUnknownType = errors.New("unknown event type")

func ParseType(s string) (Type, bool) {
	switch t := Type(s); t {
	case TypeJoin, TypeLeave, TypeBattle, TypeAnswer, TypeHeartbeat,
		TypeReset, TypeTimerTick, TypeTimeExpired, TypeGameEnd:
		return t, true
	}
	t, ok := aliases[s]
	return t, ok
}

// BattleView is the wire form of a Battle.
type BattleView struct {
	Mode      battle.Mode                   `json:"mode"`
	Questions map[string]questions.Question `json:"questions"`
}

func ViewOf(b *battle.Battle) *BattleView {
	if b == nil {
		return nil
	}
	v := &BattleView{Mode: b.Mode, Questions: make(map[string]questions.Question, len(b.Questions))}
	for name, q := range b.Questions {
		v.Questions[name] = *q
	}
	return v
}

// Message is the JSON object exchanged in both directions.
type Message struct {
	Type                Type             `json:"type"`
	Data                string           `json:"data"`
	PlayerName          *string          `json:"playerName"`
	Players             []players.Player `json:"players"`
	ActiveBattle        *BattleView      `json:"activeBattle"`
	AnswerTimeRemaining *int             `json:"answerTimeRemaining,omitempty"`
}

func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", m.Type, err)
	}
	return data, nil
}

// Inbound is a decoded client message. The concrete type is one of
// Answer, Reset, Heartbeat or Ignored.
type Inbound interface {
	Type() Type
}

type Answer struct {
	Value string
}

type Reset struct {
	Data string
}

type Heartbeat struct {
	Data string
}

// Ignored is a well-formed message of a type the server does not act on.
type Ignored struct {
	Kind Type
}

func (Answer) Type() Type    { return TypeAnswer }
func (Reset) Type() Type     { return TypeReset }
func (Heartbeat) Type() Type { return TypeHeartbeat }
func (i Ignored) Type() Type { return i.Kind }

// Decode parses one client message.
func Decode(raw []byte) (Inbound, error) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	t, ok := ParseType(env.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	data := dataString(env.Data)

	switch t {
	case TypeAnswer:
		return Answer{Value: data}, nil
	case TypeReset:
		return Reset{Data: data}, nil
	case TypeHeartbeat:
		return Heartbeat{Data: data}, nil
	default:
		return Ignored{Kind: t}, nil
	}
}

// dataString accepts both `"12"` and `12` for the data field.
func dataString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
