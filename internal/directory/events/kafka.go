package events

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"residents/internal/directory/models"
)

// Producer is the subset of *kgo.Client used for synchronous produce.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher produces each notification synchronously, keyed by name so
// every add for one name lands on the same partition in order.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

// NewKafkaPublisher constructs a Kafka sink writing to topic.
func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishPersonAdded(ctx context.Context, event models.PersonAdded) error {
	record, err := NewRecord(p.topic, event)
	if err != nil {
		return err
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce person added: %w", err)
	}
	return nil
}

// NewRecord encodes event as a Kafka record for topic.
func NewRecord(topic string, event models.PersonAdded) (*kgo.Record, error) {
	payload, err := models.EncodePersonAdded(event)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(event.Name),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(models.EventPersonAdded)},
			{Key: "event_id", Value: []byte(event.EventID.String())},
		},
	}, nil
}
