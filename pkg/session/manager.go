// Package session implements the session lifecycle manager: it creates the
// session, owns the stream connection and the panel state, and runs the single
// event loop that serializes inbound stream events and user intents.
package session

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/T-X-R/BrainstormAI/pkg/api"
	"github.com/T-X-R/BrainstormAI/pkg/eventbus"
	"github.com/T-X-R/BrainstormAI/pkg/events"
	"github.com/T-X-R/BrainstormAI/pkg/reconciler"
	"github.com/T-X-R/BrainstormAI/pkg/render"
	"github.com/T-X-R/BrainstormAI/pkg/transport"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// API is the out-of-band request collaborator.
type API interface {
	CreateSession(ctx context.Context, req api.CreateSessionRequest) (*api.CreateSessionResponse, error)
	EndSession(ctx context.Context, sessionID string) error
	ExportSession(ctx context.Context, sessionID string) (*api.Export, error)
}

// ExportFunc persists a downloaded export and returns where it went.
type ExportFunc func(ctx context.Context, exp *api.Export) (string, error)

type Config struct {
	API       API
	Dialer    transport.Dialer
	StreamURL func(sessionID string) (string, error)
	Bus       *eventbus.Bus
	Sink      render.Sink
	Export    ExportFunc
	Logger    zerolog.Logger
	Now       func() time.Time
	// IntentBuffer bounds queued user intents.
	IntentBuffer int
}

// State is a snapshot of session-level state.
type State struct {
	SessionID  string
	Topic      string
	Panel      render.Panel
	Agents     []events.Agent
	Connected  bool
	Paused     bool
	Suppressed int
	Streaming  []string
	EndReason  string
}

// Manager is scoped to one session: construct it in Setup, discard it once
// the session has ended.
type Manager struct {
	api       API
	dialer    transport.Dialer
	streamURL func(string) (string, error)
	bus       *eventbus.Bus
	sink      render.Sink
	export    ExportFunc
	// log is read from several goroutines and never reassigned.
	log zerolog.Logger
	now func() time.Time

	intents chan intent
	// base bounds background work (stream, end/export requests) to the manager's lifetime.
	base       context.Context
	cancelBase context.CancelFunc

	running  atomic.Bool
	creating atomic.Bool
	created  atomic.Bool
	live     atomic.Bool
	ended    atomic.Bool

	// loop-owned state
	sessLog     zerolog.Logger
	pause       *reconciler.PauseFlag
	rec         *reconciler.Reconciler
	sessionID   string
	topic       string
	panel       render.Panel
	agents      []events.Agent
	conn        transport.Conn
	frames      <-chan eventbus.Frame
	coordinator *eventbus.StreamCoordinator
	endReason   string
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.API == nil {
		return nil, errors.New("session manager needs an API client")
	}
	if cfg.Dialer == nil {
		return nil, errors.New("session manager needs a dialer")
	}
	if cfg.StreamURL == nil {
		return nil, errors.New("session manager needs a stream url builder")
	}
	if cfg.Bus == nil {
		return nil, errors.New("session manager needs an event bus")
	}
	if cfg.Sink == nil {
		cfg.Sink = render.Discard
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IntentBuffer <= 0 {
		cfg.IntentBuffer = 64
	}
	base, cancel := context.WithCancel(context.Background())
	logger := cfg.Logger.With().Str("component", "session").Logger()
	pause := &reconciler.PauseFlag{}
	m := &Manager{
		api:        cfg.API,
		dialer:     cfg.Dialer,
		streamURL:  cfg.StreamURL,
		bus:        cfg.Bus,
		sink:       cfg.Sink,
		export:     cfg.Export,
		log:        logger,
		sessLog:    logger,
		now:        cfg.Now,
		intents:    make(chan intent, cfg.IntentBuffer),
		base:       base,
		cancelBase: cancel,
		pause:      pause,
		panel:      render.PanelSetup,
	}
	m.rec = reconciler.New(pause, cfg.Sink, reconciler.WithClock(cfg.Now), reconciler.WithLogger(cfg.Logger))
	return m, nil
}

// Run is the session event loop. It returns when ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("session loop already running")
	}
	defer m.running.Store(false)
	defer m.teardown()

	m.sink.Apply(render.PanelChanged{State: m.panel})
	for {
		select {
		case <-ctx.Done():
			return nil
		case it := <-m.intents:
			m.handleIntent(it)
		case f, ok := <-m.frames:
			if !ok {
				m.frames = nil
				continue
			}
			m.handleFrame(f)
		}
	}
}

func (m *Manager) teardown() {
	m.cancelBase()
	if m.coordinator != nil {
		m.coordinator.Stop()
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.live.Store(false)
}

func (m *Manager) post(ctx context.Context, it intent) error {
	select {
	case m.intents <- it:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.base.Done():
		return ErrNotRunning
	}
}

// CreateSession validates the request, creates the session on the server and
// opens its stream. On rejection the panel stays in Setup and no session
// state is kept, so the caller may retry.
func (m *Manager) CreateSession(ctx context.Context, topic string, agents []api.AgentConfig) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", ErrInvalidTopic
	}
	if len([]rune(topic)) > api.MaxTopicLen {
		return "", ErrTopicTooLong
	}
	count := len(agents)
	if count == 0 {
		count = api.DefaultAgents
	}
	if count < api.MinAgents || count > api.MaxAgents {
		return "", errors.Wrapf(ErrInvalidAgentCount, "%d agents, want %d-%d", count, api.MinAgents, api.MaxAgents)
	}
	if m.created.Load() {
		return "", ErrSessionStarted
	}
	if !m.creating.CompareAndSwap(false, true) {
		return "", errors.Wrap(ErrSessionStarted, "creation in progress")
	}
	defer m.creating.Store(false)

	resp, err := m.api.CreateSession(ctx, api.CreateSessionRequest{
		Topic:        topic,
		AgentCount:   count,
		AgentConfigs: agents,
	})
	if err != nil {
		rejected := &RejectedError{Err: err}
		m.log.Warn().Err(err).Msg("session creation rejected")
		_ = m.post(ctx, statusIntent{level: render.StatusError, text: rejected.Error()})
		return "", rejected
	}
	m.created.Store(true)
	if err := m.post(ctx, createdIntent{resp: resp}); err != nil {
		return resp.SessionID, err
	}
	return resp.SessionID, m.OpenStream(ctx, resp.SessionID)
}

// OpenStream subscribes to the session topic, dials the stream and starts the
// reader. A failed or closed stream is final: there is no reconnection.
func (m *Manager) OpenStream(ctx context.Context, sessionID string) error {
	coordinator := eventbus.NewStreamCoordinator(sessionID, m.bus, 0)
	frames, err := coordinator.Start(m.base)
	if err != nil {
		_ = m.post(ctx, statusIntent{level: render.StatusError, text: "stream unavailable: " + err.Error()})
		return errors.Wrap(err, "subscribe session stream")
	}
	url, err := m.streamURL(sessionID)
	if err == nil {
		var conn transport.Conn
		conn, err = m.dialer.Dial(ctx, url)
		if err == nil {
			if perr := m.post(ctx, attachIntent{sessionID: sessionID, conn: conn, frames: frames, coordinator: coordinator}); perr != nil {
				coordinator.Stop()
				_ = conn.Close()
				return perr
			}
			go m.readLoop(sessionID, conn)
			return nil
		}
	}
	coordinator.Stop()
	m.log.Warn().Err(err).Str("session_id", sessionID).Msg("stream dial failed")
	_ = m.post(ctx, statusIntent{level: render.StatusError, text: "connection failed: " + err.Error()})
	return errors.Wrap(ErrStreamClosed, err.Error())
}

// readLoop publishes every inbound frame on the bus, then the close marker.
func (m *Manager) readLoop(sessionID string, conn transport.Conn) {
	topic := eventbus.TopicForSession(sessionID)
	var seq uint64
	for {
		seq++
		frame, err := conn.ReadFrame()
		if err != nil {
			if perr := m.bus.PublishClosed(topic, seq, err); perr != nil {
				m.log.Warn().Err(perr).Str("session_id", sessionID).Msg("publish close marker failed")
			}
			return
		}
		if err := m.bus.PublishFrame(topic, seq, frame); err != nil {
			m.log.Warn().Err(err).Str("session_id", sessionID).Msg("publish frame failed")
		}
	}
}

// SendUserMessage queues a user message. Blank text and a missing connection
// are rejected without side effects.
func (m *Manager) SendUserMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if m.ended.Load() {
		return ErrSessionEnded
	}
	if !m.live.Load() {
		return ErrNotConnected
	}
	return m.post(ctx, sendIntent{text: text})
}

// StopGeneration pauses rendering of new messages, hides the ones in flight
// and asks the server to stop.
func (m *Manager) StopGeneration(ctx context.Context) error {
	if m.ended.Load() {
		return ErrSessionEnded
	}
	return m.post(ctx, stopIntent{})
}

// EndSession ends the session locally and on the server. Confirmation is the
// caller's job.
func (m *Manager) EndSession(ctx context.Context) error {
	if m.ended.Load() {
		return nil
	}
	return m.post(ctx, endIntent{})
}

// Export downloads the transcript in the background; the outcome arrives as
// a status line.
func (m *Manager) Export(ctx context.Context) error {
	if m.export == nil {
		return errors.New("export is not configured")
	}
	return m.post(ctx, exportIntent{})
}

// State returns a snapshot taken on the loop goroutine.
func (m *Manager) State(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	if err := m.post(ctx, stateIntent{reply: reply}); err != nil {
		return State{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	case <-m.base.Done():
		return State{}, ErrNotRunning
	}
}

// Connected reports whether a live stream connection exists.
func (m *Manager) Connected() bool { return m.live.Load() }

// Ended reports whether the session reached the Ended panel state.
func (m *Manager) Ended() bool { return m.ended.Load() }

func (m *Manager) status(level render.StatusLevel, text string, transient bool) {
	m.sink.Apply(render.StatusLine{
		ID:        uuid.NewString(),
		Level:     level,
		Text:      text,
		Transient: transient,
		At:        m.now(),
	})
}

func (m *Manager) setPanel(p render.Panel) {
	if m.panel == p {
		return
	}
	m.panel = p
	m.sink.Apply(render.PanelChanged{State: p, SessionID: m.sessionID, Topic: m.topic})
}

// endLocally moves to Ended and drops the connection. Later frames are discarded.
func (m *Manager) endLocally(reason string) {
	if m.panel == render.PanelEnded {
		return
	}
	m.endReason = reason
	m.ended.Store(true)
	m.live.Store(false)
	m.setPanel(render.PanelEnded)
	if m.conn != nil {
		// Close flushes queued frames, keep that off the loop.
		go func(c transport.Conn) { _ = c.Close() }(m.conn)
		m.conn = nil
	}
	if m.coordinator != nil {
		m.coordinator.Stop()
	}
	m.frames = nil
}
