package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/inventory"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/metrics"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type stockResolver struct {
	repo    inventory.Repository
	tx      inventory.TxManager
	locker  inventory.Locker
	alerts  *notifier
	metrics *metrics.Recorder
	logger  logger.ZapLogger
	opts    Options
	now     func() time.Time
}

func NewStockResolver(
	repo inventory.Repository,
	tx inventory.TxManager,
	locker inventory.Locker,
	alerter inventory.Alerter,
	rec *metrics.Recorder,
	log logger.ZapLogger,
	opts Options,
) inventory.Resolver {
	opts = opts.withDefaults()
	return &stockResolver{
		repo:    repo,
		tx:      tx,
		locker:  locker,
		alerts:  newNotifier(alerter, rec, log, opts.MaxOversubscription),
		metrics: rec,
		logger:  log,
		opts:    opts,
		now:     time.Now,
	}
}

// ParseDescription splits "<Name> - <Model>" on the last separator.
func ParseDescription(s string) (name, model string) {
	s = strings.TrimSpace(s)
	idx := strings.LastIndex(s, " - ")
	if idx <= 0 {
		return s, ""
	}
	name = strings.TrimSpace(s[:idx])
	model = strings.TrimSpace(s[idx+3:])
	if name == "" {
		return s, ""
	}
	return name, model
}

// pickByColor prefers an exact color match, then a line with no color. With
// no color requested the first (fullest) line wins.
func pickByColor(lines []model.InventoryLine, color string) *model.InventoryLine {
	if len(lines) == 0 {
		return nil
	}
	color = strings.TrimSpace(color)
	if color == "" {
		return &lines[0]
	}
	for i := range lines {
		if lines[i].Color != nil && strings.EqualFold(strings.TrimSpace(*lines[i].Color), color) {
			return &lines[i]
		}
	}
	for i := range lines {
		if lines[i].Color == nil || strings.TrimSpace(*lines[i].Color) == "" {
			return &lines[i]
		}
	}
	return nil
}

func (r *stockResolver) category(c string) string {
	return orDefault(strings.TrimSpace(c), r.opts.DefaultCategory)
}

func (r *stockResolver) lookup(ctx context.Context, description, color, branch, category string) (*model.InventoryLine, error) {
	name, suffix := ParseDescription(description)

	search := &dto.LineSearch{Category: category, Name: name, Location: branch}
	if suffix != "" {
		search.Model = &suffix
	}
	lines, err := r.repo.Search(ctx, search)
	if err != nil {
		return nil, err
	}
	if line := pickByColor(lines, color); line != nil {
		return line, nil
	}

	// Older records stored the whole description in the model column.
	full := strings.TrimSpace(description)
	lines, err = r.repo.Search(ctx, &dto.LineSearch{Category: category, Model: &full, Location: branch})
	if err != nil {
		return nil, err
	}
	return pickByColor(lines, color), nil
}

func (r *stockResolver) FindItem(ctx context.Context, input *dto.FindItemInput) (*model.InventoryLine, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, nil
	}
	return r.lookup(ctx, input.Name, input.Color, strings.TrimSpace(input.Branch), r.category(input.Category))
}

// ghostLockKey is built from the parsed description so spellings that
// resolve to the same line share a lock.
func ghostLockKey(branch, category, description, color string) string {
	name, suffix := ParseDescription(description)
	key := fmt.Sprintf("lock:inventory:ghost:%s:%s:%s:%s:%s", branch, category, name, suffix, color)
	return strings.ToLower(strings.Join(strings.Fields(key), " "))
}

func (r *stockResolver) FindOrCreateLine(ctx context.Context, input *dto.FindItemInput, caseRef string) (*model.InventoryLine, bool, error) {
	description := strings.TrimSpace(input.Name)
	branch := strings.TrimSpace(input.Branch)
	color := strings.TrimSpace(input.Color)
	category := r.category(input.Category)
	if description == "" || branch == "" {
		return nil, false, fmt.Errorf("%w: casket description and branch are required", inventory.ErrInvalidInput)
	}

	unlock, err := r.locker.Lock(ctx, ghostLockKey(branch, category, description, color), r.opts.LockTTL)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	line, err := r.lookup(ctx, description, color, branch, category)
	if err != nil {
		return nil, false, err
	}
	if line != nil {
		return line, false, nil
	}

	name, suffix := ParseDescription(description)
	now := r.now()
	ghost := &model.InventoryLine{
		ID:                uuid.New().String(),
		Name:              name,
		Model:             optional(suffix),
		Color:             optional(color),
		Category:          category,
		Location:          branch,
		LowStockThreshold: r.opts.DefaultLowStockThreshold,
		IsGhost:           true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = r.tx.RunInTx(ctx, func(ctx context.Context) error {
		tmpl, err := r.template(ctx, name, suffix, category, branch)
		if err != nil {
			return err
		}
		if tmpl != nil {
			ghost.SKU = tmpl.SKU
			ghost.Description = tmpl.Description
			ghost.UnitPrice = tmpl.UnitPrice
			ghost.LowStockThreshold = tmpl.LowStockThreshold
		}

		if err := r.repo.Create(ctx, ghost); err != nil {
			return err
		}
		return r.repo.LogMovement(ctx, &model.StockMovement{
			ID:             uuid.New().String(),
			InventoryID:    ghost.ID,
			CaseID:         optional(caseRef),
			MovementType:   model.MovementAdjustment,
			QuantityChange: 0,
			Reason:         fmt.Sprintf("ghost stock provisioned for %s", orDefault(caseRef, "unknown case")),
			RecordedBy:     "system",
			CreatedAt:      now,
		})
	})
	r.metrics.Operation("provision_ghost", err)
	if err != nil {
		return nil, false, err
	}
	r.metrics.GhostLine()

	r.logger.Warn("provisioned ghost stock line",
		zap.String("inventory_id", ghost.ID),
		zap.String("label", ghost.Label()),
		zap.String("color", color),
		zap.String("location", branch),
		zap.String("case_ref", caseRef),
	)
	r.alerts.raise(ctx, ghost, "ghost_stock")
	return ghost, true, nil
}

// template finds a line to copy pricing and catalogue fields from. Lines of
// the same model win over same-name lines of another model; within each,
// another branch is preferred.
func (r *stockResolver) template(ctx context.Context, name, suffix, category, branch string) (*model.InventoryLine, error) {
	if suffix != "" {
		lines, err := r.repo.Search(ctx, &dto.LineSearch{Category: category, Name: name, Model: &suffix})
		if err != nil {
			return nil, err
		}
		if tmpl := preferOtherBranch(lines, branch); tmpl != nil {
			return tmpl, nil
		}
	}

	lines, err := r.repo.Search(ctx, &dto.LineSearch{Category: category, Name: name})
	if err != nil {
		return nil, err
	}
	return preferOtherBranch(lines, branch), nil
}

func preferOtherBranch(lines []model.InventoryLine, branch string) *model.InventoryLine {
	for i := range lines {
		if lines[i].Location != branch {
			return &lines[i]
		}
	}
	if len(lines) > 0 {
		return &lines[0]
	}
	return nil
}

func sameOptional(a, b *string) bool {
	var x, y string
	if a != nil {
		x = strings.TrimSpace(*a)
	}
	if b != nil {
		y = strings.TrimSpace(*b)
	}
	return strings.EqualFold(x, y)
}

func (r *stockResolver) FindOrCreateCounterpart(ctx context.Context, src *model.InventoryLine, location, transferRef string) (*model.InventoryLine, error) {
	lines, err := r.repo.Search(ctx, &dto.LineSearch{Category: src.Category, Name: src.Name, Location: location})
	if err != nil {
		return nil, err
	}
	for i := range lines {
		if sameOptional(lines[i].Model, src.Model) && sameOptional(lines[i].Color, src.Color) {
			return &lines[i], nil
		}
	}

	now := r.now()
	line := &model.InventoryLine{
		ID:                uuid.New().String(),
		Name:              src.Name,
		Model:             src.Model,
		Color:             src.Color,
		Category:          src.Category,
		SKU:               src.SKU,
		Description:       src.Description,
		UnitPrice:         src.UnitPrice,
		Location:          location,
		LowStockThreshold: src.LowStockThreshold,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err = r.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.repo.Create(ctx, line); err != nil {
			return err
		}
		return r.repo.LogMovement(ctx, &model.StockMovement{
			ID:             uuid.New().String(),
			InventoryID:    line.ID,
			TransferID:     optional(transferRef),
			MovementType:   model.MovementAdjustment,
			QuantityChange: 0,
			Reason:         "line provisioned for incoming transfer",
			RecordedBy:     "system",
			CreatedAt:      now,
		})
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("provisioned destination line",
		zap.String("inventory_id", line.ID),
		zap.String("source_id", src.ID),
		zap.String("location", location),
	)
	return line, nil
}
