package service

import (
	"context"
	"encoding/json"

	"ai-triage-be/internal/pkg/logger"
	"ai-triage-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// ConsumerService drains the triage event topic and writes an audit trail to
// the application log.
type IConsumerService interface {
	Start(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	logger     logger.ILogger
}

func NewConsumerService(subscriber message.Subscriber, sysLogger logger.ILogger) IConsumerService {
	return &consumerService{subscriber: subscriber, logger: sysLogger}
}

func (s *consumerService) Start(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go s.process(messages)
	return nil
}

func (s *consumerService) process(messages <-chan *message.Message) {
	for msg := range messages {
		var evt events.TriageEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			s.logger.Error("CONSUMER", "Failed to unmarshal triage event", map[string]interface{}{
				"message_id": msg.UUID,
				"error":      err.Error(),
			})
			msg.Ack()
			continue
		}

		s.logger.Info("CONSUMER", "Triage event", map[string]interface{}{
			"type":       evt.Type,
			"session_id": evt.SessionID,
			"persona":    evt.Persona,
			"topic":      evt.Topic,
			"augmented":  evt.Augmented,
		})
		msg.Ack()
	}
}
