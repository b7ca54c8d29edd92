// Package eventbus carries raw stream frames from the transport reader to the
// session event loop over watermill, either in-memory or via Redis Streams.
package eventbus

import (
	"context"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	metaKind   = "kind"
	metaCause  = "cause"
	metaSeq    = "seq"
	kindFrame  = "frame"
	kindClosed = "transport_closed"
)

func TopicForSession(sessionID string) string {
	return "brainstorm.session." + sessionID
}

// Bus is a watermill publisher/subscriber pair.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	settings Settings
	redis    redis.UniversalClient
	logger   zerolog.Logger
	wlogger  watermill.LoggerAdapter
}

// New builds the in-memory bus, or the Redis Streams bus when enabled.
func New(s Settings, logger zerolog.Logger) (*Bus, error) {
	b := &Bus{
		settings: s,
		logger:   logger.With().Str("component", "eventbus").Logger(),
		wlogger:  NewWatermillLogger(logger),
	}
	if s.Redis.Enabled {
		if err := b.buildRedis(); err != nil {
			return nil, err
		}
		return b, nil
	}
	buffer := s.Buffer
	if buffer <= 0 {
		buffer = DefaultSettings().Buffer
	}
	// Publishing blocks until the subscriber acked, which keeps frames in order.
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            buffer,
		BlockPublishUntilSubscriberAck: true,
	}, b.wlogger)
	b.Publisher = ch
	b.Subscriber = ch
	return b, nil
}

func (b *Bus) Redis() bool { return b.redis != nil }

// PublishFrame publishes one inbound stream frame. seq numbers the frames of
// one connection from 1 and lets the subscriber drop redeliveries.
func (b *Bus) PublishFrame(topic string, seq uint64, frame []byte) error {
	msg := message.NewMessage(uuid.NewString(), frame)
	msg.Metadata.Set(metaKind, kindFrame)
	msg.Metadata.Set(metaSeq, strconv.FormatUint(seq, 10))
	return errors.Wrap(b.Publisher.Publish(topic, msg), "publish frame")
}

// PublishClosed publishes the end-of-stream marker after the last frame.
func (b *Bus) PublishClosed(topic string, seq uint64, cause error) error {
	msg := message.NewMessage(uuid.NewString(), nil)
	msg.Metadata.Set(metaKind, kindClosed)
	msg.Metadata.Set(metaSeq, strconv.FormatUint(seq, 10))
	if cause != nil {
		msg.Metadata.Set(metaCause, cause.Error())
	}
	return errors.Wrap(b.Publisher.Publish(topic, msg), "publish close marker")
}

// Subscribe subscribes to topic. In Redis mode the consumer group is created
// at the stream tail first so that a session never replays older frames.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if b.redis != nil {
		if err := EnsureGroupAtTail(ctx, b.redis, topic, b.settings.Redis.Group); err != nil {
			return nil, errors.Wrap(err, "ensure consumer group")
		}
	}
	ch, err := b.Subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, errors.Wrapf(err, "subscribe %s", topic)
	}
	return ch, nil
}

func (b *Bus) Close() error {
	var firstErr error
	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			firstErr = err
		}
	}
	if b.Subscriber != nil && any(b.Subscriber) != any(b.Publisher) {
		if err := b.Subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			b.logger.Debug().Err(err).Msg("redis client close")
		}
	}
	return firstErr
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}
