package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/casework"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventCaseCreated       = "CaseCreated"
	EventCaseCompleted     = "CaseCompleted"
	EventCaseCancelled     = "CaseCancelled"
	EventCaseCasketChanged = "CaseCasketChanged"
)

// MessageReader is satisfied by *broker.KafkaConsumer.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type CaseListener struct {
	consumer MessageReader
	cases    casework.UseCase
	logger   logger.ZapLogger
	backoff  time.Duration
}

func NewCaseListener(consumer MessageReader, cases casework.UseCase, logger logger.ZapLogger) *CaseListener {
	return &CaseListener{
		consumer: consumer,
		cases:    cases,
		logger:   logger,
		backoff:  time.Second,
	}
}

func (l *CaseListener) Start(ctx context.Context) {
	l.logger.Info("Starting case event listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping case event listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(l.backoff)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type CaseEvent struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Payload   CasePayload `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type CasePayload struct {
	CaseID         string           `json:"case_id"`
	Casket         casework.Casket  `json:"casket"`
	PreviousCasket *casework.Casket `json:"previous_casket,omitempty"`
	Actor          string           `json:"actor"`
}

func (l *CaseListener) processMessage(ctx context.Context, value []byte) {
	var event CaseEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	p := event.Payload
	var (
		alloc *casework.Allocation
		err   error
	)
	switch event.EventType {
	case EventCaseCreated:
		alloc, err = l.cases.Open(ctx, p.CaseID, p.Casket, p.Actor)
	case EventCaseCompleted:
		alloc, err = l.cases.Complete(ctx, p.CaseID, p.Casket, p.Actor)
	case EventCaseCancelled:
		alloc, err = l.cases.Cancel(ctx, p.CaseID, p.Actor)
	case EventCaseCasketChanged:
		var previous casework.Casket
		if p.PreviousCasket != nil {
			previous = *p.PreviousCasket
		}
		alloc, err = l.cases.ChangeCasket(ctx, p.CaseID, previous, p.Casket, p.Actor)
	default:
		return
	}

	if err != nil {
		l.logger.Error("Failed to apply case event to inventory",
			zap.String("event_type", event.EventType),
			zap.String("case_id", p.CaseID),
			zap.Error(err),
		)
		return
	}

	l.logger.Info("Processed case event",
		zap.String("event_type", event.EventType),
		zap.String("case_id", p.CaseID),
		zap.String("inventory_id", alloc.InventoryID),
	)
	for _, w := range alloc.Warnings {
		l.logger.Warn("Case stock warning", zap.String("case_id", p.CaseID), zap.String("warning", w))
	}
}
