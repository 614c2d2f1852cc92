package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-neutral view of a consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Handler processes one message. Returning an error stops the consumer at
// the failing record.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Poller is the subset of *kgo.Client used by Consume.
type Poller interface {
	PollFetches(ctx context.Context) kgo.Fetches
}

// Consume polls until ctx is cancelled, handing every record to h in
// partition order. Progress is not persisted; a restarted consumer starts
// again from wherever its client is positioned.
func Consume(ctx context.Context, client Poller, h Handler, logger *slog.Logger) error {
	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		var fetchErr error
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.ErrorContext(ctx, "kafka fetch failed",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
			fetchErr = err
		})
		if fetchErr != nil {
			return fetchErr
		}

		var handleErr error
		fetches.EachRecord(func(r *kgo.Record) {
			if handleErr != nil {
				return
			}
			handleErr = h.Handle(ctx, &Message{
				Topic:     r.Topic,
				Partition: r.Partition,
				Offset:    r.Offset,
				Key:       r.Key,
				Value:     r.Value,
			})
		})
		if handleErr != nil {
			return handleErr
		}
	}
}
