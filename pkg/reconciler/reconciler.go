// Package reconciler turns the interleaved per-message lifecycle events of a
// brainstorm stream into render commands, with at most one final rendering per
// message id and stop/suppression semantics.
//
// A Reconciler is not safe for concurrent use. It is driven from the session
// event loop, which serializes inbound events and user intents.
package reconciler

import (
	"strings"
	"time"

	"github.com/T-X-R/BrainstormAI/pkg/events"
	"github.com/T-X-R/BrainstormAI/pkg/render"
	"github.com/rs/zerolog"
)

const (
	// DefaultUserLabel names user messages that carry no author name.
	DefaultUserLabel = "User"
	// DefaultAgentLabel names AI messages that carry no nickname.
	DefaultAgentLabel = "Agent"
)

type Reconciler struct {
	pause      *PauseFlag
	sink       render.Sink
	store      *MessageLifecycleStore
	suppressed *SuppressionSet
	// retired holds ids released from suppression by Resume whose terminal
	// event has not arrived yet. Their remaining events stay invisible.
	retired  map[string]struct{}
	resolved map[string]struct{}
	now      func() time.Time
	log      zerolog.Logger
}

type Option func(*Reconciler)

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) { r.log = l.With().Str("component", "reconciler").Logger() }
}

// New builds a reconciler writing to sink. pause is shared with the session
// manager; a nil pause gets a private flag.
func New(pause *PauseFlag, sink render.Sink, opts ...Option) *Reconciler {
	if pause == nil {
		pause = &PauseFlag{}
	}
	if sink == nil {
		sink = render.Discard
	}
	r := &Reconciler{
		pause:      pause,
		sink:       sink,
		store:      NewMessageLifecycleStore(),
		suppressed: NewSuppressionSet(),
		retired:    map[string]struct{}{},
		resolved:   map[string]struct{}{},
		now:        time.Now,
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// absorbed reports whether events for id must no longer have any effect.
func (r *Reconciler) absorbed(id string) bool {
	if _, ok := r.resolved[id]; ok {
		return true
	}
	_, ok := r.retired[id]
	return ok
}

func (r *Reconciler) HandleStarted(e *events.MessageStarted) {
	id := e.MessageID
	if r.absorbed(id) || r.suppressed.Contains(id) {
		return
	}
	if _, ok := r.store.get(id); ok {
		r.log.Debug().Str("message_id", id).Msg("duplicate start ignored")
		return
	}
	if r.pause.IsSet() {
		r.suppressed.Add(id)
		r.log.Debug().Str("message_id", id).Msg("start while paused, suppressed")
		return
	}
	name := strings.TrimSpace(e.Nickname)
	if name == "" {
		name = DefaultAgentLabel
	}
	ent := r.store.track(id, name, strings.TrimSpace(e.TargetAuthorName), r.now())
	r.createView(ent)
}

func (r *Reconciler) HandleDelta(e *events.MessageDelta) {
	id := e.MessageID
	if r.absorbed(id) || r.suppressed.Contains(id) {
		return
	}
	ent, ok := r.store.get(id)
	if !ok {
		r.log.Debug().Str("message_id", id).Msg("delta without start")
		ent = r.store.track(id, DefaultAgentLabel, "", r.now())
	}
	if !ent.hasView {
		r.createView(ent)
	}
	ent.content.WriteString(e.Token)
	r.sink.Apply(render.UpdateContent{ID: id, Content: ent.content.String()})
}

// HandleCompleted finalizes a message with its authoritative content. A
// completion without author_type is attributed to an agent when it names one,
// otherwise to the user. When the completion carries no nickname but the
// message was started with one, the start nickname is used, so such a message
// is still attributed to that agent rather than to the user.
func (r *Reconciler) HandleCompleted(e *events.MessageCompleted) {
	id := e.MessageID
	if _, ok := r.resolved[id]; ok {
		r.log.Debug().Str("message_id", id).Msg("completion for resolved message ignored")
		return
	}
	if r.releaseSuppressed(id) {
		return
	}

	nickname := strings.TrimSpace(e.Nickname)
	ent, tracked := r.store.get(id)
	if nickname == "" && tracked && ent.displayName != DefaultAgentLabel {
		nickname = ent.displayName
	}
	author := resolveAuthor(e.AuthorType, nickname)
	name := DefaultUserLabel
	switch {
	case author == render.AuthorAI && nickname != "":
		name = nickname
	case strings.TrimSpace(e.AuthorName) != "":
		name = strings.TrimSpace(e.AuthorName)
	case author == render.AuthorAI:
		name = DefaultAgentLabel
	}

	at := r.now()
	if tracked {
		at = ent.createdAt
	}
	r.sink.Apply(render.Finalize{ID: id, Author: author, DisplayName: name, Content: e.Content, At: at})
	r.resolve(id)
}

func (r *Reconciler) HandleCancelled(e *events.MessageCancelled) {
	id := e.MessageID
	if _, ok := r.resolved[id]; ok {
		return
	}
	if r.releaseSuppressed(id) {
		return
	}
	ent, tracked := r.store.get(id)
	r.resolve(id)
	if !tracked || !ent.hasView {
		return
	}
	if strings.TrimSpace(e.Content) == "" {
		r.sink.Apply(render.Remove{ID: id})
		return
	}
	name := strings.TrimSpace(e.Nickname)
	if name == "" {
		name = ent.displayName
	}
	r.sink.Apply(render.Finalize{ID: id, Author: render.AuthorAI, DisplayName: name, Content: e.Content, At: ent.createdAt})
}

// HandleStatus applies a server status: generation_stopped raises the pause
// flag, an action is forwarded as a speaker activity hint.
func (r *Reconciler) HandleStatus(e *events.Status) {
	if e.GenerationStopped() {
		if r.pause.Set() {
			r.sink.Apply(render.PauseChanged{Paused: true})
		}
		return
	}
	if strings.TrimSpace(e.Action) == "" {
		return
	}
	r.sink.Apply(render.Activity{
		Nickname: e.Nickname,
		Action:   e.Action,
		Reason:   e.Reason,
		Target:   e.Target,
	})
}

// Stop raises the pause flag and suppresses every message that is currently
// streaming. Their pending views are removed. It returns the suppressed ids.
func (r *Reconciler) Stop() []string {
	if r.pause.Set() {
		r.sink.Apply(render.PauseChanged{Paused: true})
	}
	ids := r.store.ids()
	for _, id := range ids {
		ent, _ := r.store.get(id)
		r.suppressed.Add(id)
		r.store.drop(id)
		if ent.hasView {
			r.sink.Apply(render.Remove{ID: id})
		}
	}
	if len(ids) > 0 {
		r.log.Debug().Strs("message_ids", ids).Msg("suppressed streaming messages")
	}
	return ids
}

// Resume lowers the pause flag and empties the suppression set so that fresh
// messages render again. Ids that were suppressed stay invisible until their
// terminal event arrives.
func (r *Reconciler) Resume() {
	if r.pause.Clear() {
		r.sink.Apply(render.PauseChanged{Paused: false})
	}
	for _, id := range r.suppressed.Drain() {
		r.retired[id] = struct{}{}
	}
}

func (r *Reconciler) createView(ent *entry) {
	ent.hasView = true
	r.sink.Apply(render.CreatePending{
		ID:          ent.id,
		DisplayName: ent.displayName,
		ReplyTo:     ent.replyTo,
		At:          ent.createdAt,
	})
}

// releaseSuppressed handles the terminal event of an invisible message and
// reports whether it did.
func (r *Reconciler) releaseSuppressed(id string) bool {
	_, wasRetired := r.retired[id]
	if !r.suppressed.Remove(id) && !wasRetired {
		return false
	}
	delete(r.retired, id)
	r.store.drop(id)
	r.resolved[id] = struct{}{}
	r.log.Debug().Str("message_id", id).Msg("suppressed message resolved")
	return true
}

func (r *Reconciler) resolve(id string) {
	r.store.drop(id)
	r.suppressed.Remove(id)
	delete(r.retired, id)
	r.resolved[id] = struct{}{}
}

func resolveAuthor(authorType, nickname string) render.AuthorKind {
	switch strings.ToLower(strings.TrimSpace(authorType)) {
	case "":
		if nickname != "" {
			return render.AuthorAI
		}
		return render.AuthorUser
	case string(render.AuthorUser):
		return render.AuthorUser
	default:
		return render.AuthorAI
	}
}

func (r *Reconciler) Paused() bool { return r.pause.IsSet() }

func (r *Reconciler) IsSuppressed(id string) bool { return r.suppressed.Contains(id) }

func (r *Reconciler) IsTracked(id string) bool {
	_, ok := r.store.get(id)
	return ok
}

// Streaming returns the ids currently streaming, in start order.
func (r *Reconciler) Streaming() []string { return r.store.ids() }

func (r *Reconciler) SuppressedCount() int { return r.suppressed.Len() }
