package battle

import (
	"sort"

	"mathbattle/internal/questions"
)

type Mode string

const (
	// Shared gives every player the same Question.
	Shared Mode = "shared"
	// SpeedTrial gives each player an independent Question.
	SpeedTrial Mode = "speedTrial"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case Shared, SpeedTrial:
		return Mode(s), true
	}
	return "", false
}

// Battle maps player names to their active Question. A Battle is never
// mutated after construction; New, Extend and Prune all return a fresh value.
type Battle struct {
	Mode      Mode
	Questions map[string]*questions.Question
}

func New(players []string, mode Mode) *Battle {
	b := &Battle{Mode: mode, Questions: make(map[string]*questions.Question, len(players))}
	shared := questions.Generate()
	for _, name := range players {
		if mode == Shared {
			b.Questions[name] = shared
		} else {
			b.Questions[name] = questions.Generate()
		}
	}
	return b
}

// Extend assigns Questions to players missing from existing. Players that
// already hold a Question keep the same instance.
func Extend(existing *Battle, players []string) *Battle {
	b := &Battle{Mode: existing.Mode, Questions: make(map[string]*questions.Question, len(existing.Questions)+len(players))}
	for name, q := range existing.Questions {
		b.Questions[name] = q
	}

	var shared *questions.Question
	if b.Mode == Shared {
		shared = existing.sharedQuestion()
	}
	for _, name := range players {
		if _, ok := b.Questions[name]; ok {
			continue
		}
		if b.Mode == Shared {
			if shared == nil {
				shared = questions.Generate()
			}
			b.Questions[name] = shared
		} else {
			b.Questions[name] = questions.Generate()
		}
	}
	return b
}

// Prune drops Questions held by players not in present.
func (b *Battle) Prune(present []string) *Battle {
	keep := make(map[string]struct{}, len(present))
	for _, name := range present {
		keep[name] = struct{}{}
	}
	out := &Battle{Mode: b.Mode, Questions: make(map[string]*questions.Question, len(present))}
	for name, q := range b.Questions {
		if _, ok := keep[name]; ok {
			out.Questions[name] = q
		}
	}
	return out
}

func (b *Battle) QuestionFor(name string) *questions.Question {
	if b == nil {
		return nil
	}
	return b.Questions[name]
}

// Names returns the players holding a Question, sorted.
func (b *Battle) Names() []string {
	names := make([]string, 0, len(b.Questions))
	for name := range b.Questions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Battle) sharedQuestion() *questions.Question {
	for _, q := range b.Questions {
		return q
	}
	return nil
}
