package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event channels.
const (
	ChannelProjectUpdates     = "project-updates"
	ChannelProjectAttachments = "project-attachments"
)

// Event types.
const (
	EventUpdateCreated      = "update.created"
	EventUpdateSubmitted    = "update.submitted"
	EventUpdateApproved     = "update.approved"
	EventUpdateRejected     = "update.rejected"
	EventAttachmentUploaded = "attachment.uploaded"
)

// EventPublisher is satisfied by *mq.MQ.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Event is the JSON envelope published for domain changes.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    int       `json:"actor_id"`
	ProjectID  int       `json:"project_id"`
	Data       any       `json:"data"`
}

// Events publishes domain events. A nil publisher disables publication.
// Failures are logged and never returned.
type Events struct {
	publisher EventPublisher
	logger    *logrus.Logger
}

func NewEvents(publisher EventPublisher, logger *logrus.Logger) *Events {
	return &Events{publisher: publisher, logger: logger}
}

func (e *Events) Emit(ctx context.Context, channel, eventType string, actorID, projectID int, data any) {
	if e == nil || e.publisher == nil {
		return
	}

	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
		ProjectID:  projectID,
		Data:       data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.WithError(err).WithField("event", eventType).Error("encode event")
		return
	}

	attrs := map[string]string{
		"type":       eventType,
		"project_id": strconv.Itoa(projectID),
	}
	if _, err := e.publisher.Publish(ctx, channel, payload, attrs); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"event":   eventType,
			"channel": channel,
		}).Warn("publish event")
	}
}
