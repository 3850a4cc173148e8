// Package job runs periodic inventory housekeeping on a cron schedule.
package job

import (
	"context"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/inventory"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/metrics"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	pageSize   = 200
	runTimeout = 2 * time.Minute
)

type Config struct {
	LowStockSpec  string // e.g. "0 7 * * *"; empty disables the sweep
	ReconcileSpec string // e.g. "30 2 * * *"; empty disables reconciliation
	Location      *time.Location
}

// Discrepancy is a line whose reserved_quantity differs from the sum of its
// held reservations. Raw reserves made without a hold show up here too.
type Discrepancy struct {
	InventoryID string
	Reserved    int
	Held        int
}

type Scheduler struct {
	cron    *cron.Cron
	cfg     Config
	repo    inventory.Repository
	alerter inventory.Alerter
	metrics *metrics.Recorder
	logger  logger.ZapLogger
	now     func() time.Time
}

func NewScheduler(cfg Config, repo inventory.Repository, alerter inventory.Alerter, rec *metrics.Recorder, log logger.ZapLogger) *Scheduler {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		cfg:     cfg,
		repo:    repo,
		alerter: alerter,
		metrics: rec,
		logger:  log,
		now:     time.Now,
	}
}

// Start registers the configured jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting inventory scheduler")
	if s.cfg.LowStockSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.LowStockSpec, s.runSweep); err != nil {
			return err
		}
	}
	if s.cfg.ReconcileSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.ReconcileSpec, s.runReconcile); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping inventory scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	n, err := s.SweepLowStock(ctx)
	if err != nil {
		s.logger.Error("low stock sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("low stock sweep finished", zap.Int("alerts", n))
}

func (s *Scheduler) runReconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	found, err := s.Reconcile(ctx)
	if err != nil {
		s.logger.Error("reservation reconciliation failed", zap.Error(err))
		return
	}
	s.logger.Info("reservation reconciliation finished", zap.Int("discrepancies", len(found)))
}

// eachLine pages through lines matching filters.
func (s *Scheduler) eachLine(ctx context.Context, filters dto.InventoryFilters, fn func(*model.InventoryLine)) error {
	filters.PageSize = pageSize
	for page := 1; ; page++ {
		filters.Page = page
		lines, total, err := s.repo.FindAll(ctx, &filters)
		if err != nil {
			return err
		}
		for i := range lines {
			fn(&lines[i])
		}
		if len(lines) == 0 || page*pageSize >= total {
			return nil
		}
	}
}

// SweepLowStock alerts on every line at or below its threshold and returns
// how many alerts were raised.
func (s *Scheduler) SweepLowStock(ctx context.Context) (int, error) {
	raised := 0
	err := s.eachLine(ctx, dto.InventoryFilters{LowStock: true}, func(line *model.InventoryLine) {
		alert := model.NewStockAlert(line, "scheduled_sweep", s.now())
		s.metrics.Alert(string(alert.Severity))
		if err := s.alerter.Alert(ctx, alert); err != nil {
			s.logger.Error("failed to deliver stock alert", zap.String("inventory_id", line.ID), zap.Error(err))
			return
		}
		raised++
	})
	return raised, err
}

// Reconcile compares reserved_quantity with held reservations per line and
// logs every mismatch. It never corrects quantities.
func (s *Scheduler) Reconcile(ctx context.Context) ([]Discrepancy, error) {
	held, err := s.repo.HeldTotals(ctx)
	if err != nil {
		return nil, err
	}

	var found []Discrepancy
	err = s.eachLine(ctx, dto.InventoryFilters{}, func(line *model.InventoryLine) {
		if line.ReservedQuantity == held[line.ID] {
			return
		}
		d := Discrepancy{InventoryID: line.ID, Reserved: line.ReservedQuantity, Held: held[line.ID]}
		found = append(found, d)
		s.logger.Warn("reserved quantity does not match held reservations",
			zap.String("inventory_id", d.InventoryID),
			zap.String("label", line.Label()),
			zap.Int("reserved_quantity", d.Reserved),
			zap.Int("held", d.Held),
		)
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
