package eventbus

import (
	"context"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Frame is one delivery from the bus: either a raw stream payload or the
// transport-closed marker. Seq is the publisher's frame number, 0 if the
// message carried none.
type Frame struct {
	Payload []byte
	Seq     uint64
	Closed  bool
	Cause   string
}

// Subscriber is the part of Bus the coordinator needs.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// StreamCoordinator owns the subscription of one session topic and hands
// frames to the session loop in publish order.
type StreamCoordinator struct {
	sessionID  string
	subscriber Subscriber
	buffer     int

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func NewStreamCoordinator(sessionID string, subscriber Subscriber, buffer int) *StreamCoordinator {
	if buffer <= 0 {
		buffer = 64
	}
	return &StreamCoordinator{
		sessionID:  sessionID,
		subscriber: subscriber,
		buffer:     buffer,
	}
}

// Start subscribes synchronously, so frames published after Start returns are
// never lost, then consumes in the background. The returned channel is closed
// when the subscription ends.
func (sc *StreamCoordinator) Start(ctx context.Context) (<-chan Frame, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.running {
		return nil, errors.Errorf("stream coordinator for %s already running", sc.sessionID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	ch, err := sc.subscriber.Subscribe(runCtx, TopicForSession(sc.sessionID))
	if err != nil {
		cancel()
		log.Error().Err(err).Str("component", "eventbus").Str("session_id", sc.sessionID).Msg("stream coordinator: subscribe failed")
		return nil, err
	}
	sc.cancel = cancel
	sc.running = true
	out := make(chan Frame, sc.buffer)
	go sc.consume(runCtx, ch, out)
	return out, nil
}

func (sc *StreamCoordinator) Stop() {
	if sc == nil {
		return
	}
	sc.mu.Lock()
	if sc.cancel != nil {
		sc.cancel()
	}
	sc.cancel = nil
	sc.mu.Unlock()
}

func (sc *StreamCoordinator) IsRunning() bool {
	if sc == nil {
		return false
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.running
}

func (sc *StreamCoordinator) consume(ctx context.Context, in <-chan *message.Message, out chan<- Frame) {
	defer close(out)
	log.Debug().Str("component", "eventbus").Str("session_id", sc.sessionID).Msg("stream coordinator: started")
	// consume is the only reader of last
	var last uint64
	for msg := range in {
		seq, ok := frameSeq(msg)
		if ok && seq <= last {
			// Redis redelivers pending entries after a nack or restart.
			log.Debug().Str("component", "eventbus").Str("session_id", sc.sessionID).
				Uint64("seq", seq).Uint64("last", last).Msg("stream coordinator: skipping redelivered frame")
			msg.Ack()
			continue
		}
		f := Frame{Seq: seq}
		if msg.Metadata.Get(metaKind) == kindClosed {
			f.Closed = true
			f.Cause = msg.Metadata.Get(metaCause)
		} else {
			f.Payload = append([]byte(nil), msg.Payload...)
		}
		delivered := false
		select {
		case out <- f:
			msg.Ack()
			delivered = true
			if ok {
				last = seq
			}
		case <-ctx.Done():
			msg.Nack()
		}
		if !delivered || f.Closed {
			break
		}
	}
	log.Debug().Str("component", "eventbus").Str("session_id", sc.sessionID).Msg("stream coordinator: stopped")
	sc.mu.Lock()
	sc.running = false
	if sc.cancel != nil {
		sc.cancel()
	}
	sc.cancel = nil
	sc.mu.Unlock()
}

func frameSeq(msg *message.Message) (uint64, bool) {
	v := msg.Metadata.Get(metaSeq)
	if v == "" {
		return 0, false
	}
	seq, err := strconv.ParseUint(v, 10, 64)
	if err != nil || seq == 0 {
		return 0, false
	}
	return seq, true
}
