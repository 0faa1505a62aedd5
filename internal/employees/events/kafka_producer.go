package events

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gartstein/employees/internal/employees/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

type EventType string

const (
	EmployeeCreated EventType = "employee_created"
	EmployeeUpdated EventType = "employee_updated"
	EmployeeDeleted EventType = "employee_deleted"
)

// Event announces a mutation accepted by the remote API.
type Event struct {
	Type        EventType        `json:"type"`
	EmployeeIDs []int64          `json:"employeeIds,omitempty"`
	Employee    *models.Employee `json:"employee,omitempty"`
	OccurredAt  time.Time        `json:"occurredAt"`
}

// Key is the partition key: the ids joined by commas, or the employee name
// for a record the API has not assigned an id to yet.
func (ev Event) Key() string {
	if len(ev.EmployeeIDs) == 0 && ev.Employee != nil {
		return ev.Employee.Name
	}
	ids := make([]string, 0, len(ev.EmployeeIDs))
	for _, id := range ev.EmployeeIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return strings.Join(ids, ",")
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer    KafkaWriter
	events    chan Event
	logger    *zap.Logger
	closeChan chan struct{}
	now       func() time.Time
}

// EnsureTopic creates the topic on the first broker. A failure is only
// logged because the topic usually exists already.
func EnsureTopic(brokers []string, topic string, logger *zap.Logger) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.Error(err))
	}
	return nil
}

func NewProducer(brokers []string, logger *zap.Logger, topic string) *Producer {
	p := &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
			Topic:    topic,
		},
		events:    make(chan Event, 1000),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
		now:       time.Now,
	}

	go p.eventLoop()
	return p
}

// Produce queues an event without blocking. The event is dropped when the
// queue is full.
func (p *Producer) Produce(eventType EventType, ids []int64, employee *models.Employee) {
	event := Event{
		Type:        eventType,
		EmployeeIDs: ids,
		Employee:    employee,
		OccurredAt:  p.now().UTC(),
	}
	select {
	case p.events <- event:
	default:
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(eventType)),
			zap.String("key", event.Key()),
		)
	}
}

func (p *Producer) eventLoop() {
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			return
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("key", event.Key()),
		)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key()),
		Value: value,
	})
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("key", event.Key()),
		)
		return
	}
}

func (p *Producer) Close() {
	close(p.closeChan)
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}

// NopProducer discards events. It is used when no brokers are configured.
type NopProducer struct{}

func (NopProducer) Produce(EventType, []int64, *models.Employee) {}

func (NopProducer) Close() {}
