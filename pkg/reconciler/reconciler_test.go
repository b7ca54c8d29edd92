package reconciler

import (
	"testing"

	"github.com/T-X-R/BrainstormAI/pkg/events"
	"github.com/T-X-R/BrainstormAI/pkg/render"
	"github.com/stretchr/testify/require"
)

type harness struct {
	pause *PauseFlag
	tl    *render.Timeline
	rec   *render.Recorder
	r     *Reconciler
}

func newHarness() *harness {
	h := &harness{pause: &PauseFlag{}, tl: render.NewTimeline(), rec: &render.Recorder{}}
	h.r = New(h.pause, render.MultiSink{h.tl, h.rec})
	return h
}

func (h *harness) start(id, nick string) {
	h.r.HandleStarted(&events.MessageStarted{MessageID: id, Nickname: nick})
}

func (h *harness) delta(id, token string) {
	h.r.HandleDelta(&events.MessageDelta{MessageID: id, Token: token})
}

func (h *harness) completed(e events.MessageCompleted) {
	h.r.HandleCompleted(&e)
}

func (h *harness) cancelled(e events.MessageCancelled) {
	h.r.HandleCancelled(&e)
}

func (h *harness) finalizeCount(id string) int {
	n := 0
	for _, c := range h.rec.Commands {
		if f, ok := c.(render.Finalize); ok && f.ID == id {
			n++
		}
	}
	return n
}

func (h *harness) commandsFor(id string) int {
	n := 0
	for _, c := range h.rec.Commands {
		switch v := c.(type) {
		case render.CreatePending:
			if v.ID == id {
				n++
			}
		case render.UpdateContent:
			if v.ID == id {
				n++
			}
		case render.Finalize:
			if v.ID == id {
				n++
			}
		case render.Remove:
			if v.ID == id {
				n++
			}
		}
	}
	return n
}

func TestCompletedOverridesDeltas(t *testing.T) {
	h := newHarness()
	h.start("m1", "Ava")
	h.delta("m1", "Hel")
	h.delta("m1", "lo")

	v, ok := h.tl.Get("m1")
	require.True(t, ok)
	require.Equal(t, render.ViewPending, v.State)
	require.Equal(t, "Hello", v.Content)

	h.completed(events.MessageCompleted{MessageID: "m1", Nickname: "Ava", Content: "Hello there"})

	views := h.tl.Views()
	require.Len(t, views, 1)
	require.Equal(t, render.ViewFinal, views[0].State)
	require.Equal(t, render.AuthorAI, views[0].Author)
	require.Equal(t, "Ava", views[0].DisplayName)
	require.Equal(t, "Hello there", views[0].Content)
	require.False(t, h.r.IsTracked("m1"))
	require.Empty(t, h.tl.Violations())
}

func TestStopWhileStreamingHidesMessage(t *testing.T) {
	h := newHarness()
	h.start("m2", "Bo")
	h.delta("m2", "Thin")

	ids := h.r.Stop()
	require.Equal(t, []string{"m2"}, ids)
	require.True(t, h.r.Paused())
	require.True(t, h.r.IsSuppressed("m2"))

	h.delta("m2", "king...")
	h.completed(events.MessageCompleted{MessageID: "m2", Nickname: "Bo", Content: "Thinking...done"})

	_, ok := h.tl.Get("m2")
	require.False(t, ok)
	require.Equal(t, 0, h.finalizeCount("m2"))
	require.False(t, h.r.IsSuppressed("m2"))
	require.Equal(t, 0, h.r.SuppressedCount())
}

func TestOneShotCompletedIsAttributedToUser(t *testing.T) {
	h := newHarness()
	h.completed(events.MessageCompleted{MessageID: "m3", Content: "what about tides?"})

	v, ok := h.tl.Get("m3")
	require.True(t, ok)
	require.Equal(t, render.AuthorUser, v.Author)
	require.Equal(t, DefaultUserLabel, v.DisplayName)
	require.Equal(t, render.ViewFinal, v.State)

	h.completed(events.MessageCompleted{MessageID: "u2", AuthorType: "user", AuthorName: "用户", Content: "hi"})
	v, _ = h.tl.Get("u2")
	require.Equal(t, render.AuthorUser, v.Author)
	require.Equal(t, "用户", v.DisplayName)
}

func TestBlankCancelRemovesPendingView(t *testing.T) {
	h := newHarness()
	h.start("m4", "Cy")
	h.delta("m4", "Um")
	require.Equal(t, 1, h.tl.Pending())

	h.cancelled(events.MessageCancelled{MessageID: "m4", Content: "  "})
	_, ok := h.tl.Get("m4")
	require.False(t, ok)
	require.False(t, h.r.IsTracked("m4"))
}

func TestCancelWithContentFinalizesAsAI(t *testing.T) {
	h := newHarness()
	h.start("m5", "Cy")
	h.delta("m5", "partial")
	h.cancelled(events.MessageCancelled{MessageID: "m5", Content: "partial thought"})

	v, ok := h.tl.Get("m5")
	require.True(t, ok)
	require.Equal(t, render.ViewFinal, v.State)
	require.Equal(t, render.AuthorAI, v.Author)
	require.Equal(t, "Cy", v.DisplayName)
	require.Equal(t, "partial thought", v.Content)
}

func TestCancelWithoutViewIsNoop(t *testing.T) {
	h := newHarness()
	h.cancelled(events.MessageCancelled{MessageID: "ghost", Content: "text"})
	require.Empty(t, h.rec.Commands)
}

func TestPausedStartNeverGetsAView(t *testing.T) {
	h := newHarness()
	h.r.HandleStatus(&events.Status{Status: events.StatusGenerationStopped})
	require.True(t, h.pause.IsSet())

	h.start("p1", "Ava")
	require.True(t, h.r.IsSuppressed("p1"))
	h.delta("p1", "tok")
	h.cancelled(events.MessageCancelled{MessageID: "p1", Content: "tok"})
	require.False(t, h.r.IsSuppressed("p1"))

	h.start("p2", "Bo")
	h.delta("p2", "x")
	h.completed(events.MessageCompleted{MessageID: "p2", Nickname: "Bo", Content: "full"})

	require.Equal(t, 0, h.commandsFor("p1"))
	require.Equal(t, 0, h.commandsFor("p2"))
	require.Equal(t, 0, h.tl.Len())
	require.Equal(t, 0, h.r.SuppressedCount())
}

func TestResumeRendersFreshMessages(t *testing.T) {
	h := newHarness()
	h.start("old", "Ava")
	h.r.Stop()
	h.start("late", "Bo")
	require.True(t, h.r.IsSuppressed("late"))

	h.r.Resume()
	require.False(t, h.pause.IsSet())
	require.Equal(t, 0, h.r.SuppressedCount())

	h.start("n", "Ava")
	h.delta("n", "fresh")
	v, ok := h.tl.Get("n")
	require.True(t, ok)
	require.Equal(t, "fresh", v.Content)

	// Messages suppressed before the new user message stay hidden.
	h.delta("old", "more")
	h.completed(events.MessageCompleted{MessageID: "old", Nickname: "Ava", Content: "old done"})
	h.completed(events.MessageCompleted{MessageID: "late", Nickname: "Bo", Content: "late done"})
	_, ok = h.tl.Get("old")
	require.False(t, ok)
	_, ok = h.tl.Get("late")
	require.False(t, ok)
}

func TestDeltaBeforeStartKeepsFirstFragment(t *testing.T) {
	h := newHarness()
	h.delta("d1", "First")
	h.delta("d1", " second")

	v, ok := h.tl.Get("d1")
	require.True(t, ok)
	require.Equal(t, "First second", v.Content)
	require.Equal(t, DefaultAgentLabel, v.DisplayName)

	// A late start does not reset accumulated content.
	h.start("d1", "Ava")
	v, _ = h.tl.Get("d1")
	require.Equal(t, "First second", v.Content)
}

func TestDuplicateStartIsNoop(t *testing.T) {
	h := newHarness()
	h.start("m1", "Ava")
	h.delta("m1", "a")
	h.start("m1", "Other")
	v, _ := h.tl.Get("m1")
	require.Equal(t, "Ava", v.DisplayName)
	require.Equal(t, "a", v.Content)
}

func TestAtMostOneTerminalViewPerID(t *testing.T) {
	h := newHarness()
	h.start("m1", "Ava")
	h.completed(events.MessageCompleted{MessageID: "m1", Nickname: "Ava", Content: "one"})
	h.completed(events.MessageCompleted{MessageID: "m1", Nickname: "Ava", Content: "two"})
	h.cancelled(events.MessageCancelled{MessageID: "m1", Content: ""})
	h.delta("m1", "late")
	h.start("m1", "Ava")

	require.Equal(t, 1, h.finalizeCount("m1"))
	v, _ := h.tl.Get("m1")
	require.Equal(t, "one", v.Content)
	require.Empty(t, h.tl.Violations())
}

func TestCompletedFallsBackToStartNickname(t *testing.T) {
	h := newHarness()
	h.start("m1", "Ava")
	h.completed(events.MessageCompleted{MessageID: "m1", Content: "done"})
	v, _ := h.tl.Get("m1")
	require.Equal(t, render.AuthorAI, v.Author)
	require.Equal(t, "Ava", v.DisplayName)
}

func TestStatusActionIsInformational(t *testing.T) {
	h := newHarness()
	h.start("m1", "Ava")
	h.r.HandleStatus(&events.Status{Nickname: "Bo", Action: "silent", Reason: "nothing to add"})

	require.False(t, h.pause.IsSet())
	require.True(t, h.r.IsTracked("m1"))
	last := h.rec.Commands[len(h.rec.Commands)-1]
	act, ok := last.(render.Activity)
	require.True(t, ok)
	require.Equal(t, "silent", act.Action)
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness()
	h.start("m1", "Ava")
	require.Equal(t, []string{"m1"}, h.r.Stop())
	require.Empty(t, h.r.Stop())
	pauses := 0
	for _, c := range h.rec.Commands {
		if _, ok := c.(render.PauseChanged); ok {
			pauses++
		}
	}
	require.Equal(t, 1, pauses)
}

func TestStopKeepsStartOrder(t *testing.T) {
	h := newHarness()
	for _, id := range []string{"c", "a", "b"} {
		h.start(id, "x")
	}
	require.Equal(t, []string{"c", "a", "b"}, h.r.Streaming())
	require.Equal(t, []string{"c", "a", "b"}, h.r.Stop())
}
