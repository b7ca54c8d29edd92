package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/T-X-R/BrainstormAI/pkg/api"
	"github.com/T-X-R/BrainstormAI/pkg/eventbus"
	"github.com/T-X-R/BrainstormAI/pkg/events"
	"github.com/T-X-R/BrainstormAI/pkg/render"
	"github.com/T-X-R/BrainstormAI/pkg/transport"
)

// intent is a unit of work for the loop goroutine.
type intent interface {
	isIntent()
}

type createdIntent struct {
	resp *api.CreateSessionResponse
}

type attachIntent struct {
	sessionID   string
	conn        transport.Conn
	frames      <-chan eventbus.Frame
	coordinator *eventbus.StreamCoordinator
}

type sendIntent struct {
	text string
}

type stopIntent struct{}

type endIntent struct{}

type exportIntent struct{}

type exportDoneIntent struct {
	location string
	err      error
}

type statusIntent struct {
	level render.StatusLevel
	text  string
}

type stateIntent struct {
	reply chan<- State
}

func (createdIntent) isIntent()    {}
func (attachIntent) isIntent()     {}
func (sendIntent) isIntent()       {}
func (stopIntent) isIntent()       {}
func (endIntent) isIntent()        {}
func (exportIntent) isIntent()     {}
func (exportDoneIntent) isIntent() {}
func (statusIntent) isIntent()     {}
func (stateIntent) isIntent()      {}

func (m *Manager) handleIntent(it intent) {
	switch in := it.(type) {
	case createdIntent:
		m.sessionID = in.resp.SessionID
		m.topic = in.resp.Topic
		m.agents = in.resp.Agents
		m.sessLog = m.log.With().Str("session_id", m.sessionID).Logger()
		m.setPanel(render.PanelActive)
		if len(m.agents) > 0 {
			m.sink.Apply(render.Roster{Agents: append([]events.Agent(nil), m.agents...)})
		}

	case attachIntent:
		if m.sessionID == "" && m.panel == render.PanelSetup {
			m.sessionID = in.sessionID
		}
		if m.panel == render.PanelEnded || in.sessionID != m.sessionID {
			in.coordinator.Stop()
			go func() { _ = in.conn.Close() }()
			return
		}
		m.conn = in.conn
		m.frames = in.frames
		m.coordinator = in.coordinator
		m.live.Store(true)
		m.status(render.StatusInfo, "Connected", true)

	case sendIntent:
		if m.panel == render.PanelEnded {
			return
		}
		if m.conn == nil {
			m.status(render.StatusWarn, "Not connected, message not sent", true)
			return
		}
		m.rec.Resume()
		m.sendFrame(events.UserMessage(in.text))

	case stopIntent:
		ids := m.rec.Stop()
		m.sessLog.Debug().Strs("suppressed", ids).Msg("stop requested")
		if m.conn != nil {
			m.sendFrame(events.Stop())
		}
		m.status(render.StatusInfo, "Generation stopped", true)

	case endIntent:
		if m.panel == render.PanelEnded {
			return
		}
		if m.conn != nil {
			m.sendFrame(events.EndSession())
		}
		id := m.sessionID
		m.endLocally("ended by user")
		m.status(render.StatusInfo, "Session ended", false)
		if id != "" {
			go m.endRemote(id)
		}

	case exportIntent:
		if m.sessionID == "" {
			m.status(render.StatusWarn, "Nothing to export yet", true)
			return
		}
		m.status(render.StatusInfo, "Exporting transcript…", true)
		go m.runExport(m.sessionID)

	case exportDoneIntent:
		if in.err != nil {
			m.status(render.StatusError, "Export failed: "+in.err.Error(), false)
			return
		}
		m.status(render.StatusInfo, "Transcript exported to "+in.location, false)

	case statusIntent:
		m.status(in.level, in.text, false)

	case stateIntent:
		in.reply <- State{
			SessionID:  m.sessionID,
			Topic:      m.topic,
			Panel:      m.panel,
			Agents:     append([]events.Agent(nil), m.agents...),
			Connected:  m.conn != nil,
			Paused:     m.pause.IsSet(),
			Suppressed: m.rec.SuppressedCount(),
			Streaming:  m.rec.Streaming(),
			EndReason:  m.endReason,
		}
	}
}

func (m *Manager) sendFrame(out events.Outbound) {
	b, err := out.Marshal()
	if err != nil {
		m.sessLog.Error().Err(err).Str("type", string(out.Type)).Msg("encode outbound frame")
		return
	}
	if err := m.conn.Send(b); err != nil {
		m.sessLog.Warn().Err(err).Str("type", string(out.Type)).Msg("send failed")
		m.status(render.StatusError, fmt.Sprintf("Could not send %s: %v", out.Type, err), false)
	}
}

func (m *Manager) endRemote(sessionID string) {
	if err := m.api.EndSession(m.base, sessionID); err != nil {
		m.log.Warn().Err(err).Str("session_id", sessionID).Msg("end session request failed")
	}
}

func (m *Manager) runExport(sessionID string) {
	exp, err := m.api.ExportSession(m.base, sessionID)
	var location string
	if err == nil {
		location, err = m.export(m.base, exp)
	}
	if err != nil {
		m.log.Warn().Err(err).Str("session_id", sessionID).Msg("export failed")
	}
	_ = m.post(context.Background(), exportDoneIntent{location: location, err: err})
}

func (m *Manager) handleFrame(f eventbus.Frame) {
	if m.panel == render.PanelEnded {
		return
	}
	if f.Closed {
		m.frames = nil
		m.live.Store(false)
		if m.conn != nil {
			go func(c transport.Conn) { _ = c.Close() }(m.conn)
			m.conn = nil
		}
		cause := strings.TrimSpace(f.Cause)
		m.sessLog.Warn().Str("cause", cause).Msg("stream closed")
		text := "Connection closed"
		if cause != "" {
			text += ": " + cause
		}
		m.status(render.StatusError, text, false)
		return
	}
	ev, err := events.Decode(f.Payload)
	if err != nil {
		m.sessLog.Warn().Err(err).Uint64("seq", f.Seq).Msg("dropping malformed frame")
		return
	}
	ev.Accept(m)
}
