package session

import (
	"strings"

	"github.com/T-X-R/BrainstormAI/pkg/events"
	"github.com/T-X-R/BrainstormAI/pkg/render"
)

var _ events.Handler = &Manager{}

// endReasons maps server end reasons to status text.
var endReasons = map[string]string{
	"silence_timeout":       "Session ended after a long silence",
	"max_total_ai_messages": "Session ended: message limit reached",
	"pause_timeout":         "Session ended after staying paused too long",
	"manual_end":            "Session ended",
	"session_ended":         "Session ended",
}

func (m *Manager) OnAgentsReady(e *events.AgentsReady) {
	if len(e.Agents) > 0 {
		m.agents = append([]events.Agent(nil), e.Agents...)
		m.sink.Apply(render.Roster{Agents: append([]events.Agent(nil), e.Agents...)})
	}
	m.setPanel(render.PanelActive)
}

func (m *Manager) OnMessageStarted(e *events.MessageStarted) { m.rec.HandleStarted(e) }

func (m *Manager) OnMessageDelta(e *events.MessageDelta) { m.rec.HandleDelta(e) }

func (m *Manager) OnMessageCompleted(e *events.MessageCompleted) { m.rec.HandleCompleted(e) }

func (m *Manager) OnMessageCancelled(e *events.MessageCancelled) { m.rec.HandleCancelled(e) }

func (m *Manager) OnStatus(e *events.Status) { m.rec.HandleStatus(e) }

func (m *Manager) OnServerError(e *events.ServerError) {
	m.sessLog.Warn().Str("error", e.Message).Str("message_id", e.MessageID).Msg("server reported error")
	text := strings.TrimSpace(e.Message)
	if text == "" {
		text = "unknown error"
	}
	m.status(render.StatusError, "Server error: "+text, false)
}

func (m *Manager) OnSessionEnded(e *events.SessionEnded) {
	reason := strings.TrimSpace(e.Reason)
	text, ok := endReasons[reason]
	switch {
	case ok:
	case reason != "":
		text = "Session ended (" + reason + ")"
	default:
		text = "Session ended"
	}
	m.endLocally(reason)
	m.status(render.StatusInfo, text, false)
}

func (m *Manager) OnUnknown(e *events.Unknown) {
	m.sessLog.Debug().Str("type", e.Name).Msg("ignoring unknown event")
}
