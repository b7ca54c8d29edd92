package events

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDecode_MessageLifecycle(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"message_started","data":{"message_id":"m1","nickname":"Ava","action":"reply_user","target_author_name":"用户"}}`))
	require.NoError(t, err)
	started, ok := ev.(*MessageStarted)
	require.True(t, ok)
	require.Equal(t, "m1", started.MessageID)
	require.Equal(t, "Ava", started.Nickname)
	require.Equal(t, "用户", started.TargetAuthorName)

	ev, err = Decode([]byte(`{"type":"message_delta","data":{"message_id":"m1","token":"Hel"}}`))
	require.NoError(t, err)
	require.Equal(t, TypeMessageDelta, ev.Type())
	require.Equal(t, "Hel", ev.(*MessageDelta).Token)

	ev, err = Decode([]byte(`{"type":"message_completed","data":{"message_id":"u1","author_type":"user","author_name":"me","content":"hi"}}`))
	require.NoError(t, err)
	completed := ev.(*MessageCompleted)
	require.Equal(t, "user", completed.AuthorType)
	require.Equal(t, "me", completed.AuthorName)
	require.Empty(t, completed.Nickname)
}

func TestDecode_StatusAndSessionEvents(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"status","data":{"status":"generation_stopped"}}`))
	require.NoError(t, err)
	require.True(t, ev.(*Status).GenerationStopped())

	ev, err = Decode([]byte(`{"type":"status","data":{"nickname":"Ava","action":"silent","reason":null,"confidence":0.4}}`))
	require.NoError(t, err)
	st := ev.(*Status)
	require.False(t, st.GenerationStopped())
	require.Equal(t, "silent", st.Action)

	ev, err = Decode([]byte(`{"type":"session_ended"}`))
	require.NoError(t, err)
	require.Equal(t, TypeSessionEnded, ev.Type())

	ev, err = Decode([]byte(`{"type":"error","data":{"error":"boom"}}`))
	require.NoError(t, err)
	require.Equal(t, "boom", ev.(*ServerError).Message)

	ev, err = Decode([]byte(`{"type":"agents_ready","data":{"session_id":"s1","agents":[{"id":"a1","nickname":"Ava","persona":"p","style":"s"}]}}`))
	require.NoError(t, err)
	require.Len(t, ev.(*AgentsReady).Agents, 1)
}

func TestDecode_UnknownTypeIsNotAnError(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"runtime_started","data":{"agent_count":3}}`))
	require.NoError(t, err)
	u, ok := ev.(*Unknown)
	require.True(t, ok)
	require.Equal(t, "runtime_started", u.Name)
	require.JSONEq(t, `{"agent_count":3}`, string(u.Data))
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(nil)
	require.ErrorIs(t, err, ErrEmptyFrame)

	_, err = Decode([]byte(`not json`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"data":{}}`))
	require.ErrorIs(t, err, ErrMissingType)

	_, err = Decode([]byte(`{"type":"message_delta","data":{"token":"x"}}`))
	require.True(t, errors.Is(err, ErrMissingMessageID))
}

type recordingHandler struct {
	seen []Type
}

func (r *recordingHandler) OnAgentsReady(e *AgentsReady)           { r.seen = append(r.seen, e.Type()) }
func (r *recordingHandler) OnMessageStarted(e *MessageStarted)     { r.seen = append(r.seen, e.Type()) }
func (r *recordingHandler) OnMessageDelta(e *MessageDelta)         { r.seen = append(r.seen, e.Type()) }
func (r *recordingHandler) OnMessageCompleted(e *MessageCompleted) { r.seen = append(r.seen, e.Type()) }
func (r *recordingHandler) OnMessageCancelled(e *MessageCancelled) { r.seen = append(r.seen, e.Type()) }
func (r *recordingHandler) OnStatus(e *Status)                     { r.seen = append(r.seen, e.Type()) }
func (r *recordingHandler) OnServerError(e *ServerError)           { r.seen = append(r.seen, e.Type()) }
func (r *recordingHandler) OnSessionEnded(e *SessionEnded)         { r.seen = append(r.seen, e.Type()) }
func (r *recordingHandler) OnUnknown(e *Unknown)                   { r.seen = append(r.seen, e.Type()) }

func TestAccept_DispatchesEveryVariant(t *testing.T) {
	all := []Event{
		&AgentsReady{}, &MessageStarted{}, &MessageDelta{}, &MessageCompleted{},
		&MessageCancelled{}, &Status{}, &ServerError{}, &SessionEnded{}, &Unknown{Name: "x"},
	}
	h := &recordingHandler{}
	for _, e := range all {
		e.Accept(h)
	}
	require.Equal(t, []Type{
		TypeAgentsReady, TypeMessageStarted, TypeMessageDelta, TypeMessageCompleted,
		TypeMessageCancelled, TypeStatus, TypeError, TypeSessionEnded, Type("x"),
	}, h.seen)
}

func TestOutbound_Marshal(t *testing.T) {
	b, err := UserMessage("hello").Marshal()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"user_message","content":"hello"}`, string(b))

	b, err = json.Marshal(Stop())
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"stop"}`, string(b))

	b, err = EndSession().Marshal()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"end_session"}`, string(b))
}
