package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"
)

// ProducerAPI is the publishing surface services depend on, so tests can
// swap in a capture fake.
type ProducerAPI interface {
	Publish(ctx context.Context, key string, message []byte) error
	Close() error
}

// Producer publishes order events to Kafka, keyed by order ID so all
// events of one order land on the same partition in order.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a Producer for the given brokers and topic.
func NewProducer(brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Printf("[KafkaProducer] initialized topic=%s brokers=%v", topic, brokers)
	return &Producer{writer: w, topic: topic}
}

// Publish writes one message.
func (p *Producer) Publish(ctx context.Context, key string, message []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: message,
	}
	return p.writer.WriteMessages(ctx, msg)
}

// PublishJSON marshals v and publishes it under key.
func (p *Producer) PublishJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, key, data)
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	log.Printf("[KafkaProducer] closing writer topic=%s", p.topic)
	return p.writer.Close()
}
