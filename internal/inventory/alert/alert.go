package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"go.uber.org/zap"
)

// Publisher is satisfied by *broker.KafkaProducer.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type StockAlertEvent struct {
	EventType string           `json:"event_type"`
	Payload   model.StockAlert `json:"payload"`
}

const EventStockAlert = "InventoryStockAlert"

// KafkaAlerter publishes alerts keyed by inventory id.
type KafkaAlerter struct {
	publisher Publisher
	logger    logger.ZapLogger
}

func NewKafkaAlerter(p Publisher, log logger.ZapLogger) *KafkaAlerter {
	return &KafkaAlerter{publisher: p, logger: log}
}

func (a *KafkaAlerter) Alert(ctx context.Context, alert model.StockAlert) error {
	body, err := json.Marshal(StockAlertEvent{EventType: EventStockAlert, Payload: alert})
	if err != nil {
		return fmt.Errorf("marshal stock alert: %w", err)
	}
	if err := a.publisher.Publish(ctx, alert.InventoryID, body); err != nil {
		return fmt.Errorf("publish stock alert: %w", err)
	}
	a.logger.Debug("stock alert published",
		zap.String("inventory_id", alert.InventoryID),
		zap.String("severity", string(alert.Severity)),
	)
	return nil
}

// LogAlerter only writes alerts to the log. Used when no broker is configured.
type LogAlerter struct {
	logger logger.ZapLogger
}

func NewLogAlerter(log logger.ZapLogger) *LogAlerter {
	return &LogAlerter{logger: log}
}

func (a *LogAlerter) Alert(_ context.Context, alert model.StockAlert) error {
	a.logger.Warn("stock alert",
		zap.String("inventory_id", alert.InventoryID),
		zap.String("label", alert.Label),
		zap.String("location", alert.Location),
		zap.Int("available_quantity", alert.AvailableQuantity),
		zap.Int("threshold", alert.Threshold),
		zap.String("severity", string(alert.Severity)),
		zap.String("reason", alert.Reason),
	)
	return nil
}
