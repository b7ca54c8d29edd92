package ui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/T-X-R/BrainstormAI/pkg/api"
	"github.com/T-X-R/BrainstormAI/pkg/events"
	"github.com/T-X-R/BrainstormAI/pkg/render"
	"github.com/T-X-R/BrainstormAI/pkg/session"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestPlain(out io.Writer) *Plain {
	return NewPlain(out, 0, termenv.WithProfile(termenv.Ascii))
}

func TestPlainPrintsCommands(t *testing.T) {
	var out syncBuffer
	p := newTestPlain(&out)

	p.Apply(render.PanelChanged{State: render.PanelActive, SessionID: "s1", Topic: "tides"})
	p.Apply(render.Roster{Agents: []events.Agent{{Nickname: "Ava"}, {Nickname: "Bo"}}})
	p.Apply(render.CreatePending{ID: "m1", DisplayName: "Ava", ReplyTo: "Bo"})
	p.Apply(render.UpdateContent{ID: "m1", Content: "Hel"})
	p.Apply(render.Finalize{ID: "m1", Author: render.AuthorAI, DisplayName: "Ava", Content: "Hello there"})
	p.Apply(render.StatusLine{Level: render.StatusError, Text: "Server error: boom"})
	p.Apply(render.PauseChanged{Paused: true})

	s := out.String()
	require.Contains(t, s, "Session s1: tides")
	require.Contains(t, s, "Agents: Ava · Bo")
	require.Contains(t, s, "… Ava is replying to Bo")
	require.NotContains(t, s, "Hel\n")
	require.Contains(t, s, "Ava: Hello there")
	require.Contains(t, s, "!! Server error: boom")
	require.Contains(t, s, "paused")

	select {
	case <-p.Ended():
		t.Fatal("ended too early")
	default:
	}
	p.Apply(render.PanelChanged{State: render.PanelEnded})
	p.Apply(render.PanelChanged{State: render.PanelEnded})
	<-p.Ended()
}

func TestPlainRunRelaysCommands(t *testing.T) {
	var out syncBuffer
	p := newTestPlain(&out)
	ctrl := &fakeController{}
	in := strings.NewReader(strings.Join([]string{
		"",
		"ocean tides",
		"9",
		"ocean tides",
		"2",
		"",
		"a",
		"hello agents",
		"/stop",
		"/export",
		"/end",
		"n",
		"/end",
		"yes",
		"/quit",
	}, "\n") + "\n")

	err := p.Run(context.Background(), ctrl, in, &api.ModelsResponse{Models: []string{"a", "b"}, DefaultModel: "b"})
	require.NoError(t, err)

	require.Equal(t, []string{"ocean tides"}, ctrl.created)
	require.Equal(t, []api.AgentConfig{{ModelName: "b"}, {ModelName: "a"}}, ctrl.agents[0])
	require.Equal(t, []string{"hello agents"}, ctrl.sent)
	require.Equal(t, 1, ctrl.stops)
	require.Equal(t, 1, ctrl.exports)
	require.Equal(t, 1, ctrl.ends)

	s := out.String()
	require.Contains(t, s, "! a topic is required")
	require.Contains(t, s, "! enter a number between 1 and 5")
}

func TestPlainRunWaitsForEndAfterEOF(t *testing.T) {
	var out syncBuffer
	p := newTestPlain(&out)
	ctrl := &fakeController{}

	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background(), ctrl, strings.NewReader("tides\n\nhi\n"), nil)
	}()

	select {
	case <-done:
		t.Fatal("returned before the session ended")
	case <-time.After(50 * time.Millisecond):
	}
	p.Apply(render.PanelChanged{State: render.PanelEnded})
	require.NoError(t, <-done)
	require.Equal(t, []string{"hi"}, ctrl.sent)
	require.Len(t, ctrl.agents[0], api.DefaultAgents)
}

func TestPlainSendErrorsArePrinted(t *testing.T) {
	var out syncBuffer
	p := newTestPlain(&out)
	ctrl := &fakeController{sendErr: session.ErrNotConnected}
	err := p.Run(context.Background(), ctrl, strings.NewReader("tides\n1\nhi\n/quit\n"), nil)
	require.NoError(t, err)
	require.Contains(t, out.String(), "! Not connected, message not sent")
}
