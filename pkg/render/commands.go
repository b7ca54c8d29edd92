// Package render defines the commands the controller emits towards the
// presentation layer. Views never read controller state directly: everything a
// presenter knows arrives as a Command through a Sink.
package render

import (
	"time"

	"github.com/T-X-R/BrainstormAI/pkg/events"
)

// AuthorKind identifies who produced a message.
type AuthorKind string

const (
	AuthorUser AuthorKind = "user"
	AuthorAI   AuthorKind = "ai"
)

// Panel is the session panel state.
type Panel string

const (
	PanelSetup  Panel = "setup"
	PanelActive Panel = "active"
	PanelEnded  Panel = "ended"
)

type StatusLevel string

const (
	StatusInfo  StatusLevel = "info"
	StatusWarn  StatusLevel = "warn"
	StatusError StatusLevel = "error"
)

// Command is a presentation instruction. Implementations are closed to this package.
type Command interface {
	isCommand()
}

// CreatePending creates an in-progress message view.
type CreatePending struct {
	ID          string
	DisplayName string
	ReplyTo     string
	At          time.Time
}

// UpdateContent replaces the displayed content of a pending view.
type UpdateContent struct {
	ID      string
	Content string
}

// Finalize turns the pending view with ID into its final rendering, or
// creates a final view when none exists.
type Finalize struct {
	ID          string
	Author      AuthorKind
	DisplayName string
	Content     string
	At          time.Time
}

// Remove deletes a pending view.
type Remove struct {
	ID string
}

// StatusLine is a session-level notice (connection state, errors, end reasons).
type StatusLine struct {
	ID        string
	Level     StatusLevel
	Text      string
	Transient bool
	At        time.Time
}

// Activity is an informational speaker hint, e.g. an agent deciding to stay silent.
type Activity struct {
	Nickname string
	Action   string
	Reason   string
	Target   string
}

// Roster announces the agents taking part in the session.
type Roster struct {
	Agents []events.Agent
}

// PanelChanged reports a session panel transition.
type PanelChanged struct {
	State     Panel
	SessionID string
	Topic     string
}

// PauseChanged reports a change of the generation pause flag.
type PauseChanged struct {
	Paused bool
}

func (CreatePending) isCommand() {}
func (UpdateContent) isCommand() {}
func (Finalize) isCommand()      {}
func (Remove) isCommand()        {}
func (StatusLine) isCommand()    {}
func (Activity) isCommand()      {}
func (Roster) isCommand()        {}
func (PanelChanged) isCommand()  {}
func (PauseChanged) isCommand()  {}
