package transcriptstore

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/T-X-R/BrainstormAI/pkg/events"
	"github.com/T-X-R/BrainstormAI/pkg/render"
	"github.com/rs/zerolog"
)

type writeOp struct {
	session *SessionRecord
	message *MessageRecord
}

// Recorder is a render.Sink that persists session records and finalized
// messages. Apply only enqueues; Run performs the writes, so the session loop
// never waits on the database.
type Recorder struct {
	store   Store
	ops     chan writeOp
	log     zerolog.Logger
	dropped atomic.Int64

	// touched only from Apply, i.e. the session loop
	sessionID string
}

var _ render.Sink = &Recorder{}

func NewRecorder(store Store, buffer int, logger zerolog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	return &Recorder{
		store: store,
		ops:   make(chan writeOp, buffer),
		log:   logger.With().Str("component", "transcript_recorder").Logger(),
	}
}

func (r *Recorder) Apply(cmd render.Command) {
	switch c := cmd.(type) {
	case render.PanelChanged:
		if c.SessionID == "" {
			return
		}
		r.sessionID = c.SessionID
		rec := SessionRecord{SessionID: c.SessionID, Topic: c.Topic}
		switch c.State {
		case render.PanelActive:
			rec.Status = StatusActive
		case render.PanelEnded:
			rec.Status = StatusEnded
		}
		r.enqueue(writeOp{session: &rec})
	case render.Roster:
		if r.sessionID == "" {
			return
		}
		r.enqueue(writeOp{session: &SessionRecord{
			SessionID: r.sessionID,
			Agents:    append([]events.Agent(nil), c.Agents...),
		}})
	case render.Finalize:
		if r.sessionID == "" {
			return
		}
		at := c.At
		if at.IsZero() {
			at = time.Now()
		}
		r.enqueue(writeOp{message: &MessageRecord{
			SessionID:   r.sessionID,
			MessageID:   c.ID,
			AuthorType:  string(c.Author),
			AuthorName:  c.DisplayName,
			Content:     c.Content,
			CreatedAtMs: at.UnixMilli(),
		}})
	}
}

func (r *Recorder) enqueue(op writeOp) {
	select {
	case r.ops <- op:
	default:
		n := r.dropped.Add(1)
		r.log.Warn().Int64("dropped", n).Msg("transcript write queue full, dropping record")
	}
}

// Dropped reports how many records were discarded because the queue was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Run writes queued records until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case op := <-r.ops:
			r.write(context.WithoutCancel(ctx), op)
		case <-ctx.Done():
			r.flush()
			return nil
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case op := <-r.ops:
			r.write(ctx, op)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, op writeOp) {
	switch {
	case op.session != nil:
		if err := r.store.UpsertSession(ctx, *op.session); err != nil {
			r.log.Warn().Err(err).Str("session_id", op.session.SessionID).Msg("persist session failed")
		}
	case op.message != nil:
		if err := r.store.AppendMessage(ctx, *op.message); err != nil {
			r.log.Warn().Err(err).Str("session_id", op.message.SessionID).Str("message_id", op.message.MessageID).Msg("persist message failed")
		}
	}
}
