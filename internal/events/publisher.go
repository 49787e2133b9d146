package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event types emitted by the assessment engine.
const (
	TypeAssessmentCreated = "assessment.created"
	TypeSubmissionCreated = "submission.created"
	TypeSubmissionGraded  = "submission.graded"
)

// Event is the payload fanned out to subscribers.
type Event struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Source       string                 `json:"source"`
	AssessmentID uint                   `json:"assessment_id"`
	StudentID    uint                   `json:"student_id,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// Publisher delivers domain events to the configured brokers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type brokerPublisher struct {
	nats   *nats.Conn
	redis  *redis.Client
	base   string
	nodeID string
	logger zerolog.Logger
}

// NewPublisher builds a publisher that writes to NATS and Redis pub/sub when
// either client is available. The subject base "gema.assessments" yields
// NATS subjects such as "gema.assessments.submission.created" and Redis
// channels such as "gema:assessments:submission.created".
func NewPublisher(natsConn *nats.Conn, redisClient *redis.Client, subjectBase string, logger zerolog.Logger) Publisher {
	if natsConn == nil && redisClient == nil {
		return Nop{}
	}

	return &brokerPublisher{
		nats:   natsConn,
		redis:  redisClient,
		base:   strings.Trim(subjectBase, ". "),
		nodeID: uuid.NewString(),
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *brokerPublisher) Publish(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.Type) == "" {
		return errors.New("event type is required")
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.Source = p.nodeID

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if p.nats != nil {
		if err := p.nats.Publish(Subject(p.base, event.Type), payload); err != nil {
			errs = append(errs, err)
		}
	}
	if p.redis != nil {
		if err := p.redis.Publish(ctx, Channel(p.base, event.Type), payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	p.logger.Debug().Str("event_type", event.Type).Uint("assessment_id", event.AssessmentID).Msg("event published")
	return nil
}

// Subject returns the NATS subject for an event type.
func Subject(base, eventType string) string {
	if base == "" {
		return eventType
	}
	return base + "." + eventType
}

// Channel returns the Redis pub/sub channel for an event type.
func Channel(base, eventType string) string {
	return strings.ReplaceAll(base, ".", ":") + ":" + eventType
}

// Decode parses a published payload.
func Decode(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, err
	}
	if event.Type == "" {
		return Event{}, errors.New("event payload missing type")
	}
	return event, nil
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
