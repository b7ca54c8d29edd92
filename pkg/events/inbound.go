package events

import "strings"

// Type is the `type` discriminator of a stream envelope.
type Type string

const (
	TypeAgentsReady      Type = "agents_ready"
	TypeMessageStarted   Type = "message_started"
	TypeMessageDelta     Type = "message_delta"
	TypeMessageCompleted Type = "message_completed"
	TypeMessageCancelled Type = "message_cancelled"
	TypeStatus           Type = "status"
	TypeError            Type = "error"
	TypeSessionEnded     Type = "session_ended"
)

// StatusGenerationStopped is the status value the server sends once it has halted generation.
const StatusGenerationStopped = "generation_stopped"

// Event is an inbound stream event. The set of implementations is closed:
// every variant lives in this package and is dispatched through Handler.
type Event interface {
	Type() Type
	Accept(h Handler)
}

// Handler receives one callback per inbound variant. Adding a variant adds a
// method here, so every dispatcher has to handle it before the code compiles.
type Handler interface {
	OnAgentsReady(e *AgentsReady)
	OnMessageStarted(e *MessageStarted)
	OnMessageDelta(e *MessageDelta)
	OnMessageCompleted(e *MessageCompleted)
	OnMessageCancelled(e *MessageCancelled)
	OnStatus(e *Status)
	OnServerError(e *ServerError)
	OnSessionEnded(e *SessionEnded)
	OnUnknown(e *Unknown)
}

// Agent is a roster entry as announced by the server.
type Agent struct {
	ID        string `json:"id" yaml:"id"`
	Nickname  string `json:"nickname" yaml:"nickname"`
	Persona   string `json:"persona,omitempty" yaml:"persona,omitempty"`
	Style     string `json:"style,omitempty" yaml:"style,omitempty"`
	ModelName string `json:"model_name,omitempty" yaml:"model_name,omitempty"`
}

type AgentsReady struct {
	SessionID string  `json:"session_id"`
	Agents    []Agent `json:"agents"`
}

type MessageStarted struct {
	MessageID        string `json:"message_id"`
	AgentID          string `json:"agent_id,omitempty"`
	Nickname         string `json:"nickname"`
	Action           string `json:"action,omitempty"`
	TargetMessageID  string `json:"target_message_id,omitempty"`
	TargetAuthorName string `json:"target_author_name,omitempty"`
}

type MessageDelta struct {
	MessageID string `json:"message_id"`
	AgentID   string `json:"agent_id,omitempty"`
	Token     string `json:"token"`
}

// MessageCompleted carries the canonical content of a message. It is also how
// one-shot messages (the user's own echoed input) arrive.
type MessageCompleted struct {
	MessageID       string `json:"message_id"`
	AgentID         string `json:"agent_id,omitempty"`
	Nickname        string `json:"nickname,omitempty"`
	Content         string `json:"content"`
	AuthorType      string `json:"author_type,omitempty"`
	AuthorName      string `json:"author_name,omitempty"`
	TargetMessageID string `json:"target_message_id,omitempty"`
}

type MessageCancelled struct {
	MessageID string `json:"message_id"`
	AgentID   string `json:"agent_id,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	Content   string `json:"content,omitempty"`
}

// Status is either a server-confirmed halt (Status == StatusGenerationStopped)
// or an informational speaker decision (Action set).
type Status struct {
	AgentID  string `json:"agent_id,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Action   string `json:"action,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Target   string `json:"target,omitempty"`
	Status   string `json:"status,omitempty"`
}

// GenerationStopped reports whether the server confirmed that generation halted.
func (s *Status) GenerationStopped() bool {
	return strings.TrimSpace(s.Status) == StatusGenerationStopped
}

type ServerError struct {
	Message   string `json:"error"`
	MessageID string `json:"message_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
}

type SessionEnded struct {
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Unknown wraps envelopes whose type this client does not understand
// (e.g. runtime_started). They are observed, never acted upon.
type Unknown struct {
	Name string
	Data []byte
}

func (*AgentsReady) Type() Type      { return TypeAgentsReady }
func (*MessageStarted) Type() Type   { return TypeMessageStarted }
func (*MessageDelta) Type() Type     { return TypeMessageDelta }
func (*MessageCompleted) Type() Type { return TypeMessageCompleted }
func (*MessageCancelled) Type() Type { return TypeMessageCancelled }
func (*Status) Type() Type           { return TypeStatus }
func (*ServerError) Type() Type      { return TypeError }
func (*SessionEnded) Type() Type     { return TypeSessionEnded }
func (e *Unknown) Type() Type        { return Type(e.Name) }

func (e *AgentsReady) Accept(h Handler)      { h.OnAgentsReady(e) }
func (e *MessageStarted) Accept(h Handler)   { h.OnMessageStarted(e) }
func (e *MessageDelta) Accept(h Handler)     { h.OnMessageDelta(e) }
func (e *MessageCompleted) Accept(h Handler) { h.OnMessageCompleted(e) }
func (e *MessageCancelled) Accept(h Handler) { h.OnMessageCancelled(e) }
func (e *Status) Accept(h Handler)           { h.OnStatus(e) }
func (e *ServerError) Accept(h Handler)      { h.OnServerError(e) }
func (e *SessionEnded) Accept(h Handler)     { h.OnSessionEnded(e) }
func (e *Unknown) Accept(h Handler)          { h.OnUnknown(e) }
