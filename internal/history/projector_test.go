package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"residents/internal/directory/models"
	"residents/internal/directory/store"
	"residents/internal/platform/kafka"
	"residents/pkg/testutil"
)

func message(t *testing.T, event models.PersonAdded) *kafka.Message {
	t.Helper()
	payload, err := models.EncodePersonAdded(event)
	require.NoError(t, err)
	return &kafka.Message{Topic: "residents", Key: []byte(event.Name), Value: payload}
}

func added(name string, age uint, status models.ResidencyStatus) models.PersonAdded {
	return models.NewPersonAdded(models.NewPerson(name, age, status), time.Now(), "")
}

func TestProjector(t *testing.T) {
	ctx := context.Background()

	testutil.Given(t, "the scenario stream", func(t *testing.T) {
		residents := store.NewInMemory()
		p := NewProjector(residents)
		for _, e := range []models.PersonAdded{
			added("Cyndie", 23, models.LivesHere),
			added("Jordan", 24, models.MovedAway),
			added("Jackson", 28, models.LivesHere),
		} {
			require.NoError(t, p.Handle(ctx, message(t, e)))
		}

		testutil.Then(t, "the projection matches the source directory", func(t *testing.T) {
			count, err := residents.CountLivesHere(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, count)

			jordan, err := residents.FindLatest(ctx, "Jordan")
			require.NoError(t, err)
			assert.Equal(t, models.MessageMovedAway, jordan.ResidencyStatus.Message())

			_, err = residents.FindLatest(ctx, "Unknown")
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	})

	testutil.Given(t, "a re-add of the same name", func(t *testing.T) {
		residents := store.NewInMemory()
		p := NewProjector(residents)
		require.NoError(t, p.Apply(ctx, added("Sam", 20, models.LivesHere)))
		require.NoError(t, p.Apply(ctx, added("Sam", 21, models.MovedAway)))

		testutil.Then(t, "the log and the index diverge", func(t *testing.T) {
			all, err := residents.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)
			latest, err := residents.FindLatest(ctx, "Sam")
			require.NoError(t, err)
			assert.Equal(t, uint(21), latest.Age)
		})
	})

	testutil.Given(t, "a redelivered event", func(t *testing.T) {
		residents := store.NewInMemory()
		p := NewProjector(residents)
		e := added("Dana", 33, models.LivesHere)

		testutil.When(t, "it is handled twice", func(t *testing.T) {
			require.NoError(t, p.Handle(ctx, message(t, e)))
			require.NoError(t, p.Handle(ctx, message(t, e)))
		})

		testutil.Then(t, "it is applied once", func(t *testing.T) {
			all, err := residents.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	})

	testutil.Given(t, "a malformed payload", func(t *testing.T) {
		p := NewProjector(store.NewInMemory())
		err := p.Handle(ctx, &kafka.Message{Partition: 3, Offset: 9, Value: []byte("{")})
		assert.ErrorContains(t, err, "partition 3 offset 9")
	})
}
