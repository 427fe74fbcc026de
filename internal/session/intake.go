// Package session runs one worker per accepted connection, feeding its
// inbound messages to the room registry.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"mathbattle/internal/events"
	"mathbattle/internal/rooms"
)

const (
	RejectReason   = "User connected already"
	ShutdownReason = "Server shutting down"
)

var ErrClosed = errors.New("intake closed")

// Stream is the inbound half of a connection.
type Stream interface {
	Read(ctx context.Context) ([]byte, error)
	Close(reason string) error
}

// Registry is the subset of *rooms.Registry a worker drives.
type Registry interface {
	AddConnection(c *rooms.Conn) bool
	SendBattle(code, from string)
	RemoveConnection(code, name string)
	ProcessAnswer(code, from, value string)
	ResetRoom(code, from, data string)
	Heartbeat(code, from string)
}

// Pending is a validated connection waiting for a worker.
type Pending struct {
	Conn   *rooms.Conn
	Stream Stream
}

// Intake is an unbounded queue of pending connections.
type Intake struct {
	reg Registry
	log zerolog.Logger

	mu     sync.Mutex
	queue  []Pending
	closed bool
	notify chan struct{}

	wg sync.WaitGroup
}

func NewIntake(reg Registry, log zerolog.Logger) *Intake {
	return &Intake{
		reg:    reg,
		log:    log.With().Str("component", "intake").Logger(),
		notify: make(chan struct{}, 1),
	}
}

// Submit queues p. It never blocks and fails with ErrClosed once Run has
// returned or is shutting down.
func (in *Intake) Submit(p Pending) error {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return ErrClosed
	}
	in.queue = append(in.queue, p)
	in.mu.Unlock()

	select {
	case in.notify <- struct{}{}:
	default:
	}
	return nil
}

// Run starts a worker for every submitted connection until ctx is cancelled.
// It then refuses new connections, closes any still queued, and waits for
// running workers to finish.
func (in *Intake) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			in.shutdown()
			in.wg.Wait()
			return
		case <-in.notify:
			for _, p := range in.take() {
				in.wg.Add(1)
				go func(p Pending) {
					defer in.wg.Done()
					in.serve(ctx, p)
				}(p)
			}
		}
	}
}

func (in *Intake) take() []Pending {
	in.mu.Lock()
	defer in.mu.Unlock()
	batch := in.queue
	in.queue = nil
	return batch
}

func (in *Intake) shutdown() {
	in.mu.Lock()
	in.closed = true
	pending := in.queue
	in.queue = nil
	in.mu.Unlock()

	for _, p := range pending {
		if err := p.Stream.Close(ShutdownReason); err != nil {
			in.log.Debug().Err(err).Str("name", p.Conn.Name()).Msg("closing queued stream")
		}
		close(p.Conn.Send)
	}
}

func (in *Intake) serve(ctx context.Context, p Pending) {
	c := p.Conn
	name := c.Name()
	log := in.log.With().Str("room", c.RoomCode).Str("name", name).Str("conn_id", c.ID.String()).Logger()

	if !in.reg.AddConnection(c) {
		log.Info().Msg("user already exists")
		if err := p.Stream.Close(RejectReason); err != nil {
			log.Debug().Err(err).Msg("closing rejected stream")
		}
		close(c.Send)
		return
	}

	in.reg.SendBattle(c.RoomCode, name)

	for {
		raw, err := p.Stream.Read(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("stream ended")
			break
		}
		in.dispatch(c, raw, log)
	}

	in.reg.RemoveConnection(c.RoomCode, name)
	close(c.Send)
}

func (in *Intake) dispatch(c *rooms.Conn, raw []byte, log zerolog.Logger) {
	msg, err := events.Decode(raw)
	if err != nil {
		log.Debug().Err(err).Msg("dropping message")
		return
	}

	switch m := msg.(type) {
	case events.Answer:
		in.reg.ProcessAnswer(c.RoomCode, c.Name(), m.Value)
	case events.Reset:
		in.reg.ResetRoom(c.RoomCode, c.Name(), m.Data)
	case events.Heartbeat:
		in.reg.Heartbeat(c.RoomCode, c.Name())
	default:
		log.Debug().Str("type", string(msg.Type())).Msg("ignoring message")
	}
}
