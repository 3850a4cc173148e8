// Package casework connects the case lifecycle to casket stock: a new case
// holds one casket, completion consumes it and cancellation gives it back.
package casework

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/funeral-inventory-service/internal/inventory"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"go.uber.org/zap"
)

const casketsPerCase = 1

var ErrMissingCase = errors.New("case id is required")

// Casket is the casket selection recorded on a case.
type Casket struct {
	Description string `json:"casket_description"`
	Color       string `json:"casket_color"`
	Branch      string `json:"branch"`
	Category    string `json:"category"`
}

func (c Casket) empty() bool {
	return strings.TrimSpace(c.Description) == ""
}

// same compares the (name, color) pair that decides whether a casket edit
// moves stock.
func (c Casket) same(o Casket) bool {
	return strings.EqualFold(strings.TrimSpace(c.Description), strings.TrimSpace(o.Description)) &&
		strings.EqualFold(strings.TrimSpace(c.Color), strings.TrimSpace(o.Color)) &&
		strings.EqualFold(strings.TrimSpace(c.Branch), strings.TrimSpace(o.Branch))
}

// Allocation reports what happened to stock for a case. Warnings never stop
// the case itself from being recorded.
type Allocation struct {
	CaseID        string   `json:"case_id"`
	InventoryID   string   `json:"inventory_id,omitempty"`
	ReservationID string   `json:"reservation_id,omitempty"`
	GhostStock    bool     `json:"ghost_stock"`
	NeedsRestock  bool     `json:"needs_restock"`
	Warnings      []string `json:"warnings,omitempty"`
}

func (a *Allocation) warn(format string, args ...any) {
	a.Warnings = append(a.Warnings, fmt.Sprintf(format, args...))
}

type UseCase interface {
	Open(ctx context.Context, caseID string, casket Casket, actor string) (*Allocation, error)
	Complete(ctx context.Context, caseID string, casket Casket, actor string) (*Allocation, error)
	Cancel(ctx context.Context, caseID, actor string) (*Allocation, error)
	ChangeCasket(ctx context.Context, caseID string, previous, next Casket, actor string) (*Allocation, error)
}

type service struct {
	stock    inventory.UseCase
	resolver inventory.Resolver
	logger   logger.ZapLogger
}

func NewService(stock inventory.UseCase, resolver inventory.Resolver, log logger.ZapLogger) UseCase {
	return &service{stock: stock, resolver: resolver, logger: log}
}

func (s *service) Open(ctx context.Context, caseID string, casket Casket, actor string) (*Allocation, error) {
	if caseID == "" {
		return nil, ErrMissingCase
	}
	alloc := &Allocation{CaseID: caseID}
	if casket.empty() {
		return alloc, nil
	}

	line, created, err := s.resolver.FindOrCreateLine(ctx, &dto.FindItemInput{
		Name:     casket.Description,
		Color:    casket.Color,
		Branch:   casket.Branch,
		Category: casket.Category,
	}, caseID)
	if err != nil {
		return nil, err
	}
	alloc.InventoryID = line.ID
	alloc.GhostStock = created
	if created {
		alloc.NeedsRestock = true
		alloc.warn("%s is not stocked at %s, needs restocking", line.Label(), line.Location)
	}

	res, err := s.stock.Hold(ctx, &dto.HoldInput{
		InventoryID:   line.ID,
		Amount:        casketsPerCase,
		ReferenceType: model.ReferenceCase,
		ReferenceID:   caseID,
		Reason:        "casket reserved for case",
		RecordedBy:    actor,
	})
	if err != nil {
		s.logger.Warn("could not reserve casket for case",
			zap.String("case_id", caseID),
			zap.String("inventory_id", line.ID),
			zap.Error(err),
		)
		alloc.NeedsRestock = true
		alloc.warn("%s not found, needs restocking", line.Label())
		return alloc, nil
	}
	alloc.ReservationID = res.ID

	if current, err := s.stock.GetLine(ctx, line.ID); err == nil && current.AvailableQuantity() < 0 {
		alloc.NeedsRestock = true
		alloc.warn("%s at %s is oversubscribed by %d", current.Label(), current.Location, -current.AvailableQuantity())
	}
	return alloc, nil
}

func (s *service) held(ctx context.Context, caseID string) ([]model.Reservation, error) {
	return s.stock.ListReservations(ctx, &dto.ReservationFilters{
		ReferenceType: model.ReferenceCase,
		ReferenceID:   caseID,
		Status:        model.ReservationHeld,
	})
}

// Complete consumes the case's held casket. Cases opened before holds were
// recorded are resolved again by description and committed directly.
func (s *service) Complete(ctx context.Context, caseID string, casket Casket, actor string) (*Allocation, error) {
	if caseID == "" {
		return nil, ErrMissingCase
	}
	alloc := &Allocation{CaseID: caseID}

	holds, err := s.held(ctx, caseID)
	if err != nil {
		return nil, err
	}
	for _, h := range holds {
		if _, err := s.stock.CommitHold(ctx, &dto.ResolveHoldInput{
			ReservationID: h.ID,
			Reason:        "case completed",
			RecordedBy:    actor,
		}); err != nil {
			return nil, err
		}
		alloc.InventoryID = h.InventoryID
		alloc.ReservationID = h.ID
	}
	if len(holds) > 0 || casket.empty() {
		return alloc, nil
	}

	line, err := s.resolver.FindItem(ctx, &dto.FindItemInput{
		Name:     casket.Description,
		Color:    casket.Color,
		Branch:   casket.Branch,
		Category: casket.Category,
	})
	if err != nil {
		return nil, err
	}
	if line == nil {
		alloc.NeedsRestock = true
		alloc.warn("%s not found, needs restocking", casket.Description)
		return alloc, nil
	}

	if _, err := s.stock.Commit(ctx, &dto.CommitInput{
		InventoryID: line.ID,
		Amount:      casketsPerCase,
		CaseID:      caseID,
		Reason:      "case completed",
		RecordedBy:  actor,
	}); err != nil {
		return nil, err
	}
	alloc.InventoryID = line.ID
	return alloc, nil
}

func (s *service) Cancel(ctx context.Context, caseID, actor string) (*Allocation, error) {
	if caseID == "" {
		return nil, ErrMissingCase
	}
	return s.release(ctx, caseID, "case cancelled", actor)
}

func (s *service) release(ctx context.Context, caseID, reason, actor string) (*Allocation, error) {
	alloc := &Allocation{CaseID: caseID}
	holds, err := s.held(ctx, caseID)
	if err != nil {
		return nil, err
	}
	for _, h := range holds {
		_, err := s.stock.ReleaseHold(ctx, &dto.ResolveHoldInput{
			ReservationID: h.ID,
			Reason:        reason,
			RecordedBy:    actor,
		})
		if errors.Is(err, inventory.ErrReservationClosed) {
			// Resolved concurrently; nothing left to give back.
			continue
		}
		if err != nil {
			return nil, err
		}
		alloc.InventoryID = h.InventoryID
		alloc.ReservationID = h.ID
	}
	return alloc, nil
}

// ChangeCasket moves the case's hold when the casket name, color or branch
// changed. Anything else is a no-op.
func (s *service) ChangeCasket(ctx context.Context, caseID string, previous, next Casket, actor string) (*Allocation, error) {
	if caseID == "" {
		return nil, ErrMissingCase
	}
	if previous.same(next) {
		return &Allocation{CaseID: caseID}, nil
	}

	if _, err := s.release(ctx, caseID, "casket changed", actor); err != nil {
		return nil, err
	}
	s.logger.Info("case casket changed",
		zap.String("case_id", caseID),
		zap.String("from", previous.Description),
		zap.String("to", next.Description),
	)
	return s.Open(ctx, caseID, next, actor)
}
