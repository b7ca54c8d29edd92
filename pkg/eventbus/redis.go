package eventbus

import (
	"context"

	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func (b *Bus) buildRedis() error {
	s := b.settings.Redis
	if s.Addr == "" {
		return errors.New("redis bus enabled without an address")
	}
	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, b.wlogger)
	if err != nil {
		_ = client.Close()
		return errors.Wrap(err, "redis publisher")
	}
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.Group,
		Consumer:      s.Consumer,
	}, b.wlogger)
	if err != nil {
		_ = pub.Close()
		_ = client.Close()
		return errors.Wrap(err, "redis subscriber")
	}
	b.redis = client
	b.Publisher = pub
	b.Subscriber = sub
	b.logger.Info().Str("addr", s.Addr).Str("group", s.Group).Str("consumer", s.Consumer).Msg("using redis streams bus")
	return nil
}

// EnsureGroupAtTail creates the consumer group for stream at the tail ($) if
// it does not exist yet.
func EnsureGroupAtTail(ctx context.Context, client redis.UniversalClient, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		if isBusyGroup(err) {
			return nil
		}
		return err
	}
	log.Info().Str("component", "eventbus").Str("stream", stream).Str("group", group).Msg("created redis consumer group at tail")
	return nil
}
