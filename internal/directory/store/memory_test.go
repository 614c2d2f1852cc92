package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"residents/internal/directory/models"
	dErrors "residents/pkg/domain-errors"
	"residents/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	tx    *MemoryTx
	ctx   context.Context
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.tx = NewMemoryTx(s.store)
	s.ctx = context.Background()
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) add(name string, age uint, status models.ResidencyStatus) {
	err := s.tx.RunInTx(s.ctx, func(ctx context.Context, w Writer) error {
		return w.Append(ctx, models.NewPerson(name, age, status))
	})
	s.Require().NoError(err)
}

// TestAppendAndLookups verifies both views are written by one append.
func (s *InMemoryStoreSuite) TestAppendAndLookups() {
	s.Run("finds latest record by name", func() {
		s.add("Cyndie", 23, models.LivesHere)

		found, err := s.store.FindLatest(s.ctx, "Cyndie")
		s.Require().NoError(err)
		s.Equal(uint(23), found.Age)
		s.Equal(models.LivesHere, found.ResidencyStatus)
	})

	s.Run("returns ErrNotFound for unknown name", func() {
		_, err := s.store.FindLatest(s.ctx, "Unknown")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("accepts empty name", func() {
		s.add("", 0, models.MovedAway)

		found, err := s.store.FindLatest(s.ctx, "")
		s.Require().NoError(err)
		s.Equal(models.MovedAway, found.ResidencyStatus)
	})
}

// TestLogAndIndexDiverge verifies re-adding a name appends to the log but
// replaces the index entry.
func (s *InMemoryStoreSuite) TestLogAndIndexDiverge() {
	s.add("A", 30, models.LivesHere)
	s.add("A", 31, models.MovedAway)

	latest, err := s.store.FindLatest(s.ctx, "A")
	s.Require().NoError(err)
	s.Equal(models.MovedAway, latest.ResidencyStatus)
	s.Equal(uint(31), latest.Age)

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(models.LivesHere, all[0].ResidencyStatus)
	s.Equal(models.MovedAway, all[1].ResidencyStatus)

	count, err := s.store.CountLivesHere(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count, "superseded LivesHere row is still counted")
}

// TestListPreservesInsertionOrder verifies the log keeps add order.
func (s *InMemoryStoreSuite) TestListPreservesInsertionOrder() {
	names := []string{"Cyndie", "Jordan", "Jackson", "Cyndie"}
	for i, name := range names {
		s.add(name, uint(20+i), models.LivesHere)
	}

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, len(names))
	for i, p := range all {
		s.Equal(names[i], p.Name)
		s.Equal(uint(20+i), p.Age)
	}
}

// TestReturnedRecordsAreCopies verifies callers cannot mutate stored records.
func (s *InMemoryStoreSuite) TestReturnedRecordsAreCopies() {
	s.add("Jordan", 24, models.MovedAway)

	found, err := s.store.FindLatest(s.ctx, "Jordan")
	s.Require().NoError(err)
	found.ResidencyStatus = models.LivesHere

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	all[0].Age = 99

	again, err := s.store.FindLatest(s.ctx, "Jordan")
	s.Require().NoError(err)
	s.Equal(models.MovedAway, again.ResidencyStatus)
	s.Equal(uint(24), again.Age)
}

// TestFailedTransactionAppliesNothing verifies staged appends are discarded.
func (s *InMemoryStoreSuite) TestFailedTransactionAppliesNothing() {
	boom := errors.New("notification sink down")
	err := s.tx.RunInTx(s.ctx, func(ctx context.Context, w Writer) error {
		s.Require().NoError(w.Append(ctx, models.NewPerson("Ghost", 40, models.LivesHere)))
		return boom
	})
	s.Require().ErrorIs(err, boom)

	_, err = s.store.FindLatest(s.ctx, "Ghost")
	s.ErrorIs(err, sentinel.ErrNotFound)

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

// TestCancelledContext verifies a cancelled context never enters the callback.
func (s *InMemoryStoreSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	called := false
	err := s.tx.RunInTx(ctx, func(context.Context, Writer) error {
		called = true
		return nil
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	s.False(called)
}

// TestConcurrentAdds verifies no lost updates under concurrent writers and
// that readers never see a half-applied add.
func (s *InMemoryStoreSuite) TestConcurrentAdds() {
	const writers = 100

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := s.tx.RunInTx(s.ctx, func(ctx context.Context, w Writer) error {
				return w.Append(ctx, models.NewPerson(fmt.Sprintf("resident-%d", idx), uint(idx), models.LivesHere))
			})
			if err != nil {
				failures.Add(1)
			}
		}(i)
	}

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			s.store.mu.RLock()
			logLen, indexLen := len(s.store.residents), len(s.store.nameIndex)
			s.store.mu.RUnlock()
			if logLen != indexLen {
				s.Failf("half-applied add observed", "log=%d index=%d", logLen, indexLen)
				return
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-readerDone
	s.Equal(int32(0), failures.Load())

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(all, writers)

	for i := 0; i < writers; i++ {
		_, err := s.store.FindLatest(s.ctx, fmt.Sprintf("resident-%d", i))
		s.NoError(err)
	}

	count, err := s.store.CountLivesHere(s.ctx)
	s.Require().NoError(err)
	s.Equal(writers, count)
}
