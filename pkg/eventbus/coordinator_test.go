package eventbus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubSubscriber struct {
	ch chan *message.Message
}

func (s *stubSubscriber) Subscribe(_ context.Context, _ string) (<-chan *message.Message, error) {
	return s.ch, nil
}

func numbered(seq int, payload string) *message.Message {
	msg := message.NewMessage(fmt.Sprintf("m%d", seq), []byte(payload))
	msg.Metadata.Set(metaKind, kindFrame)
	msg.Metadata.Set(metaSeq, fmt.Sprintf("%d", seq))
	return msg
}

func collect(t *testing.T, frames <-chan Frame) []Frame {
	t.Helper()
	var got []Frame
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return got
			}
			got = append(got, f)
		case <-timeout:
			t.Fatal("timeout waiting for stream coordinator")
		}
	}
}

func TestStreamCoordinator_SkipsRedeliveredFrames(t *testing.T) {
	ch := make(chan *message.Message, 8)
	sc := NewStreamCoordinator("s1", &stubSubscriber{ch: ch}, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames, err := sc.Start(ctx)
	require.NoError(t, err)

	ch <- numbered(1, "a")
	ch <- numbered(2, "b")
	ch <- numbered(2, "b")
	ch <- numbered(1, "a")
	ch <- numbered(3, "c")
	close(ch)

	got := collect(t, frames)
	require.Len(t, got, 3)
	for i, want := range []string{"a", "b", "c"} {
		require.Equal(t, uint64(i+1), got[i].Seq)
		require.Equal(t, want, string(got[i].Payload))
	}
}

func TestStreamCoordinator_DeliversUnnumberedFrames(t *testing.T) {
	ch := make(chan *message.Message, 2)
	sc := NewStreamCoordinator("s1", &stubSubscriber{ch: ch}, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames, err := sc.Start(ctx)
	require.NoError(t, err)

	ch <- message.NewMessage("1", []byte(`{}`))
	ch <- message.NewMessage("2", []byte(`{}`))
	close(ch)

	got := collect(t, frames)
	require.Len(t, got, 2)
	require.Equal(t, uint64(0), got[1].Seq)
}

func TestBus_InMemoryPreservesOrderAndClosure(t *testing.T) {
	bus, err := New(DefaultSettings(), zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = bus.Close() }()
	require.False(t, bus.Redis())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sc := NewStreamCoordinator("s1", bus, 8)
	frames, err := sc.Start(ctx)
	require.NoError(t, err)

	topic := TopicForSession("s1")
	go func() {
		for i := 0; i < 20; i++ {
			_ = bus.PublishFrame(topic, uint64(i+1), []byte(fmt.Sprintf(`{"n":%d}`, i)))
		}
		_ = bus.PublishClosed(topic, 21, errors.New("eof"))
	}()

	var got []string
	var last Frame
	for f := range frames {
		if f.Closed {
			last = f
			continue
		}
		got = append(got, string(f.Payload))
	}
	require.Len(t, got, 20)
	for i, p := range got {
		require.Equal(t, fmt.Sprintf(`{"n":%d}`, i), p)
	}
	require.True(t, last.Closed)
	require.Equal(t, "eof", last.Cause)
	require.False(t, sc.IsRunning())
}
