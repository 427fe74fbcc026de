package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mathbattle/internal/events"
	"mathbattle/internal/gamedata"
	"mathbattle/internal/players"
	"mathbattle/internal/rooms"
)

type fakeStream struct {
	in chan []byte

	mu     sync.Mutex
	reason string
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (s *fakeStream) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, io.EOF
	case msg := <-s.in:
		return msg, nil
	}
}

func (s *fakeStream) Close(reason string) error {
	s.mu.Lock()
	s.reason = reason
	s.mu.Unlock()
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *fakeStream) send(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	s.in <- data
}

func setup(t *testing.T) (*Intake, *rooms.Registry) {
	t.Helper()
	cfg := gamedata.DefaultConfig()
	cfg.TimerEnabled = false
	reg := rooms.NewRegistry(cfg, zerolog.Nop(), nil, nil)
	in := NewIntake(reg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		in.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return in, reg
}

func connect(t *testing.T, in *Intake, code, name string) (*rooms.Conn, *fakeStream) {
	t.Helper()
	c := rooms.NewPlayerConn(code, name, players.Student, "", 64)
	s := newFakeStream()
	if err := in.Submit(Pending{Conn: c, Stream: s}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	return c, s
}

func next(t *testing.T, c *rooms.Conn) events.Message {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		if !ok {
			t.Fatalf("%s: send channel closed", c.Name())
		}
		var m events.Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decoding %s: %v", data, err)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: timed out waiting for message", c.Name())
		return events.Message{}
	}
}

func expect(t *testing.T, c *rooms.Conn, want events.Type) events.Message {
	t.Helper()
	m := next(t, c)
	if m.Type != want {
		t.Fatalf("%s: got %q, want %q", c.Name(), m.Type, want)
	}
	return m
}

func waitClosed(t *testing.T, c *rooms.Conn) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("%s: send channel not closed", c.Name())
		}
	}
}

func TestIntake_JoinThenBattle(t *testing.T) {
	in, _ := setup(t)
	john, _ := connect(t, in, "ABCD", "john")

	m := expect(t, john, events.TypeJoin)
	if m.PlayerName == nil || *m.PlayerName != "john" {
		t.Errorf("playerName = %v, want john", m.PlayerName)
	}
	m = expect(t, john, events.TypeBattle)
	if _, ok := m.ActiveBattle.Questions["john"]; !ok {
		t.Error("battle has no question for john")
	}
}

func TestIntake_RejectsDuplicate(t *testing.T) {
	in, reg := setup(t)
	john, _ := connect(t, in, "ABCD", "john")
	expect(t, john, events.TypeJoin)
	expect(t, john, events.TypeBattle)

	dup, stream := connect(t, in, "ABCD", "john")
	waitClosed(t, dup)
	if stream.Reason() != RejectReason {
		t.Errorf("close reason = %q, want %q", stream.Reason(), RejectReason)
	}

	snap, _ := reg.Snapshot("ABCD")
	if len(snap.Players) != 1 {
		t.Errorf("roster size = %d, want 1", len(snap.Players))
	}
}

func TestIntake_DispatchesAnswers(t *testing.T) {
	in, _ := setup(t)
	john, stream := connect(t, in, "ABCD", "john")
	expect(t, john, events.TypeJoin)
	m := expect(t, john, events.TypeBattle)
	answer := m.ActiveBattle.Questions["john"].CorrectAnswer

	stream.send(t, map[string]any{"type": "answer", "data": strconv.Itoa(answer)})
	m = expect(t, john, events.TypeAnswer)
	if m.Data != strconv.Itoa(answer) {
		t.Errorf("answer data = %q, want %d", m.Data, answer)
	}
	m = expect(t, john, events.TypeBattle)
	if m.Players[0].Score != 1 {
		t.Errorf("score = %d, want 1", m.Players[0].Score)
	}
}

func TestIntake_IgnoresBadMessages(t *testing.T) {
	in, _ := setup(t)
	john, stream := connect(t, in, "ABCD", "john")
	expect(t, john, events.TypeJoin)
	expect(t, john, events.TypeBattle)

	stream.in <- []byte("not json")
	stream.send(t, map[string]any{"type": "bogus"})
	stream.send(t, map[string]any{"type": "join", "data": "x"})
	stream.send(t, map[string]any{"type": "answer", "data": "seven"})
	stream.send(t, map[string]any{"type": "heartbeat"})

	expect(t, john, events.TypeHeartbeat)
}

func TestIntake_ResetDispatch(t *testing.T) {
	in, _ := setup(t)
	john, stream := connect(t, in, "ABCD", "john")
	expect(t, john, events.TypeJoin)
	expect(t, john, events.TypeBattle)

	stream.send(t, map[string]any{"type": "reset", "data": "speedTrial"})
	m := expect(t, john, events.TypeBattle)
	if m.ActiveBattle.Mode != "speedTrial" {
		t.Errorf("mode = %q, want speedTrial", m.ActiveBattle.Mode)
	}
}

func TestIntake_StreamCloseRemovesConnection(t *testing.T) {
	in, reg := setup(t)
	john, _ := connect(t, in, "ABCD", "john")
	expect(t, john, events.TypeJoin)
	expect(t, john, events.TypeBattle)

	jane, janeStream := connect(t, in, "ABCD", "jane")
	expect(t, jane, events.TypeJoin)
	expect(t, jane, events.TypeBattle)
	expect(t, john, events.TypeJoin)
	expect(t, john, events.TypeBattle)

	janeStream.Close("bye")
	waitClosed(t, jane)

	m := expect(t, john, events.TypeLeave)
	if len(m.Players) != 1 || m.Players[0].Name != "john" {
		t.Errorf("roster after leave = %+v", m.Players)
	}
	snap, _ := reg.Snapshot("ABCD")
	if len(snap.Players) != 1 {
		t.Errorf("roster size = %d, want 1", len(snap.Players))
	}
}

func TestIntake_SubmitAfterShutdown(t *testing.T) {
	reg := rooms.NewRegistry(gamedata.DefaultConfig(), zerolog.Nop(), nil, nil)
	in := NewIntake(reg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in.Run(ctx)

	err := in.Submit(Pending{Conn: rooms.NewPlayerConn("ABCD", "john", players.Student, "", 1), Stream: newFakeStream()})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() error = %v, want ErrClosed", err)
	}
}

func TestIntake_ShutdownClosesQueued(t *testing.T) {
	reg := rooms.NewRegistry(gamedata.DefaultConfig(), zerolog.Nop(), nil, nil)
	in := NewIntake(reg, zerolog.Nop())

	c := rooms.NewPlayerConn("ABCD", "john", players.Student, "", 1)
	s := newFakeStream()
	if err := in.Submit(Pending{Conn: c, Stream: s}); err != nil {
		t.Fatal(err)
	}
	in.shutdown()

	if _, ok := <-c.Send; ok {
		t.Error("queued connection's send channel should be closed")
	}
	if s.Reason() != ShutdownReason {
		t.Errorf("reason = %q, want %q", s.Reason(), ShutdownReason)
	}
}

func TestIntake_RunWaitsForWorkers(t *testing.T) {
	reg := rooms.NewRegistry(gamedata.DefaultConfig(), zerolog.Nop(), nil, nil)
	in := NewIntake(reg, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		in.Run(ctx)
		close(done)
	}()

	john, _ := connect(t, in, "ABCD", "john")
	expect(t, john, events.TypeJoin)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	waitClosed(t, john)
	if _, ok := reg.Snapshot("ABCD"); !ok {
		t.Fatal("room should still exist")
	}
	if snap, _ := reg.Snapshot("ABCD"); len(snap.Players) != 0 {
		t.Errorf("players after shutdown = %d, want 0", len(snap.Players))
	}
}
