// Package kafkachannel publishes notification emails and letters to Kafka topics
// for delivery by downstream workers.
package kafkachannel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/goliatone/go-casework/notify"
)

const (
	KindEmail  = "email"
	KindLetter = "letter"

	headerKind       = "casework-kind"
	headerDeliveryID = "casework-delivery-id"
)

// MessageWriter is the subset of kafka.Writer the channel uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Envelope is the JSON body published for every message.
type Envelope struct {
	DeliveryID string         `json:"delivery_id"`
	Kind       string         `json:"kind"`
	CaseID     int64          `json:"case_id"`
	Email      *notify.Email  `json:"email,omitempty"`
	Letter     *notify.Letter `json:"letter,omitempty"`
	QueuedAt   time.Time      `json:"queued_at"`
}

// Config names the topics.
type Config struct {
	EmailTopic  string
	LetterTopic string
}

// Channel implements notify.EmailSender and notify.LetterSender over Kafka.
type Channel struct {
	writer MessageWriter
	cfg    Config
	now    func() time.Time
}

// New builds a channel writing through w.
func New(w MessageWriter, cfg Config) (*Channel, error) {
	if w == nil {
		return nil, fmt.Errorf("kafka writer required")
	}
	if strings.TrimSpace(cfg.EmailTopic) == "" || strings.TrimSpace(cfg.LetterTopic) == "" {
		return nil, fmt.Errorf("email and letter topics required")
	}
	return &Channel{writer: w, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}, nil
}

// NewWriter returns a kafka.Writer for brokers. Messages are hashed by key so one
// case keeps its ordering within a topic.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// SendEmail publishes email and returns its delivery id.
func (c *Channel) SendEmail(ctx context.Context, email notify.Email) (string, error) {
	if strings.TrimSpace(email.To) == "" {
		return "", fmt.Errorf("email address required")
	}
	id := deliveryID(email.DeliveryID)
	email.DeliveryID = id
	return id, c.publish(ctx, c.cfg.EmailTopic, Envelope{
		DeliveryID: id,
		Kind:       KindEmail,
		CaseID:     email.CaseID,
		Email:      &email,
	})
}

// SendLetter publishes letter and returns its delivery id.
func (c *Channel) SendLetter(ctx context.Context, letter notify.Letter) (string, error) {
	if letter.Address.Empty() {
		return "", fmt.Errorf("postal address required")
	}
	id := deliveryID(letter.DeliveryID)
	letter.DeliveryID = id
	return id, c.publish(ctx, c.cfg.LetterTopic, Envelope{
		DeliveryID: id,
		Kind:       KindLetter,
		CaseID:     letter.CaseID,
		Letter:     &letter,
	})
}

func (c *Channel) publish(ctx context.Context, topic string, env Envelope) error {
	env.QueuedAt = c.now()
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", env.Kind, err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(env.CaseID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerKind, Value: []byte(env.Kind)},
			{Key: headerDeliveryID, Value: []byte(env.DeliveryID)},
		},
	}
	if err := c.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", env.Kind, topic, err)
	}
	return nil
}

func deliveryID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}
