package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type scriptedPoller struct {
	fetches []kgo.Fetches
	polls   int
}

func (p *scriptedPoller) PollFetches(context.Context) kgo.Fetches {
	p.polls++
	if len(p.fetches) == 0 {
		return closedFetches()
	}
	next := p.fetches[0]
	p.fetches = p.fetches[1:]
	return next
}

func closedFetches() kgo.Fetches {
	return fetchesOf(kgo.FetchPartition{Err: kgo.ErrClientClosed})
}

func fetchesOf(partitions ...kgo.FetchPartition) kgo.Fetches {
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{Topic: "residents", Partitions: partitions}}}}
}

func records(values ...string) kgo.FetchPartition {
	p := kgo.FetchPartition{Partition: 0}
	for i, v := range values {
		p.Records = append(p.Records, &kgo.Record{Topic: "residents", Offset: int64(i), Value: []byte(v)})
	}
	return p
}

type recordingHandler struct {
	values []string
	failOn string
}

func (h *recordingHandler) Handle(_ context.Context, msg *Message) error {
	if string(msg.Value) == h.failOn {
		return errors.New("cannot handle " + h.failOn)
	}
	h.values = append(h.values, string(msg.Value))
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConsumeHandlesRecordsInOrder(t *testing.T) {
	poller := &scriptedPoller{fetches: []kgo.Fetches{
		fetchesOf(records("a", "b")),
		fetchesOf(records("c")),
	}}
	h := &recordingHandler{}

	require.NoError(t, Consume(context.Background(), poller, h, discardLogger()))
	assert.Equal(t, []string{"a", "b", "c"}, h.values)
	assert.Equal(t, 3, poller.polls)
}

func TestConsumeStopsAtHandlerError(t *testing.T) {
	poller := &scriptedPoller{fetches: []kgo.Fetches{fetchesOf(records("a", "bad", "c"))}}
	h := &recordingHandler{failOn: "bad"}

	err := Consume(context.Background(), poller, h, discardLogger())
	require.ErrorContains(t, err, "cannot handle bad")
	assert.Equal(t, []string{"a"}, h.values)
	assert.Equal(t, 1, poller.polls)
}

func TestConsumeReturnsFetchErrors(t *testing.T) {
	boom := errors.New("broker gone")
	poller := &scriptedPoller{fetches: []kgo.Fetches{fetchesOf(kgo.FetchPartition{Err: boom})}}

	err := Consume(context.Background(), poller, &recordingHandler{}, discardLogger())
	require.ErrorIs(t, err, boom)
}

func TestConsumeHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	poller := &scriptedPoller{fetches: []kgo.Fetches{{}}}

	err := Consume(ctx, poller, &recordingHandler{}, discardLogger())
	require.ErrorIs(t, err, context.Canceled)
}
