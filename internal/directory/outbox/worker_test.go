package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeStore struct {
	mu        sync.Mutex
	entries   []Entry
	published map[uuid.UUID]bool
	fetchErr  error
}

func newFakeStore(n int) *fakeStore {
	s := &fakeStore{published: make(map[uuid.UUID]bool)}
	for i := range n {
		s.entries = append(s.entries, Entry{
			Seq:         int64(i + 1),
			ID:          uuid.New(),
			AggregateID: fmt.Sprintf("person-%d", i),
			EventType:   "person_added",
			Payload:     []byte(fmt.Sprintf(`{"name":"person-%d"}`, i)),
		})
	}
	return s
}

func (s *fakeStore) FetchPending(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var out []Entry
	for _, e := range s.entries {
		if !s.published[e.ID] && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkPublished(_ context.Context, ids []uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.published[id] = true
	}
	return nil
}

func (s *fakeStore) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries) - len(s.published)
}

type fakeProducer struct {
	mu      sync.Mutex
	keys    []string
	failAt  int
	failErr error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.mu.Lock()
	defer p.mu.Unlock()
	var results kgo.ProduceResults
	for _, r := range rs {
		if p.failErr != nil && len(p.keys) == p.failAt {
			results = append(results, kgo.ProduceResult{Record: r, Err: p.failErr})
			continue
		}
		p.keys = append(p.keys, string(r.Key))
		results = append(results, kgo.ProduceResult{Record: r})
	}
	return results
}

func (p *fakeProducer) produced() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type WorkerSuite struct {
	suite.Suite
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) TestDrainRelaysInOrderAcrossBatches() {
	store := newFakeStore(5)
	producer := &fakeProducer{}
	w := NewWorker(store, producer, "residents", WithBatchSize(2))

	n, err := w.Drain(context.Background())
	s.Require().NoError(err)
	s.Equal(5, n)
	s.Equal([]string{"person-0", "person-1", "person-2", "person-3", "person-4"}, producer.produced())
	s.Equal(0, store.pending())
}

func (s *WorkerSuite) TestDrainStopsAtFirstFailure() {
	store := newFakeStore(4)
	boom := errors.New("broker down")
	producer := &fakeProducer{failAt: 2, failErr: boom}
	w := NewWorker(store, producer, "residents")

	n, err := w.Drain(context.Background())
	s.Require().ErrorIs(err, boom)
	s.Equal(2, n)
	s.Equal([]string{"person-0", "person-1"}, producer.produced())
	s.Equal(2, store.pending(), "failed entry and everything after it stay pending")

	producer.failErr = nil
	n, err = w.Drain(context.Background())
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Equal([]string{"person-0", "person-1", "person-2", "person-3"}, producer.produced())
}

func (s *WorkerSuite) TestDrainSurfacesFetchErrors() {
	store := newFakeStore(1)
	store.fetchErr = errors.New("db down")
	_, err := NewWorker(store, &fakeProducer{}, "residents").Drain(context.Background())
	s.ErrorContains(err, "db down")
}

func (s *WorkerSuite) TestRunRelaysUntilCancelled() {
	store := newFakeStore(3)
	producer := &fakeProducer{}
	w := NewWorker(store, producer, "residents", WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	s.Eventually(func() bool { return store.pending() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Require().NoError(<-done)
	s.Len(producer.produced(), 3)
}

func (s *WorkerSuite) TestRecordCarriesHeaders() {
	w := NewWorker(newFakeStore(0), &fakeProducer{}, "residents")
	e := Entry{ID: uuid.New(), AggregateID: "Cyndie", EventType: "person_added", Payload: []byte(`{}`)}

	r := w.record(e)
	s.Equal("residents", r.Topic)
	s.Equal([]byte("Cyndie"), r.Key)
	s.Equal([]kgo.RecordHeader{
		{Key: "event_type", Value: []byte("person_added")},
		{Key: "outbox_id", Value: []byte(e.ID.String())},
	}, r.Headers)
}
