package usecase

import (
	"context"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/inventory"
	"github.com/fekuna/funeral-inventory-service/internal/metrics"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"go.uber.org/zap"
)

// notifier hands alerts to the alerting collaborator. Delivery failures are
// logged and swallowed.
type notifier struct {
	alerter             inventory.Alerter
	metrics             *metrics.Recorder
	logger              logger.ZapLogger
	maxOversubscription int
	now                 func() time.Time
}

func newNotifier(alerter inventory.Alerter, rec *metrics.Recorder, log logger.ZapLogger, maxOversubscription int) *notifier {
	return &notifier{
		alerter:             alerter,
		metrics:             rec,
		logger:              log,
		maxOversubscription: maxOversubscription,
		now:                 time.Now,
	}
}

// check raises an alert when the line is at or below its threshold.
func (n *notifier) check(ctx context.Context, line *model.InventoryLine, reason string) {
	if line == nil || !line.IsLow() {
		return
	}
	n.raise(ctx, line, reason)
}

func (n *notifier) raise(ctx context.Context, line *model.InventoryLine, reason string) {
	if n.alerter == nil {
		return
	}

	alert := model.NewStockAlert(line, reason, n.now())
	if n.maxOversubscription > 0 && line.AvailableQuantity() < -n.maxOversubscription {
		alert.Severity = model.SeverityCritical
	}
	n.metrics.Alert(string(alert.Severity))

	if err := n.alerter.Alert(ctx, alert); err != nil {
		n.logger.Error("failed to deliver stock alert",
			zap.String("inventory_id", line.ID),
			zap.String("severity", string(alert.Severity)),
			zap.Error(err),
		)
	}
}
