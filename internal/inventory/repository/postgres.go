package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/inventory"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/pkg/postgres"
	"github.com/jmoiron/sqlx"
)

var _ inventory.Repository = (*PGRepository)(nil)

const lineColumns = `id, name, model, color, category, sku, description, unit_price,
	stock_quantity, reserved_quantity, location, low_stock_threshold, is_ghost,
	created_at, updated_at`

const movementColumns = `id, inventory_id, case_id, transfer_id, reservation_id,
	movement_type, quantity_change, previous_quantity, new_quantity, reason,
	recorded_by, created_at`

const reservationColumns = `id, inventory_id, quantity, reference_type, reference_id,
	status, reason, created_by, created_at, resolved_at`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) ext(ctx context.Context) sqlx.ExtContext {
	return postgres.Ext(ctx, r.DB)
}

// namedSelect binds a :name query, rebinds it for Postgres and selects into dest.
func namedSelect(ctx context.Context, ext sqlx.ExtContext, dest interface{}, query string, args map[string]interface{}) error {
	q, list, err := sqlx.Named(query, args)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, ext, dest, ext.Rebind(q), list...)
}

func namedGet(ctx context.Context, ext sqlx.ExtContext, dest interface{}, query string, args map[string]interface{}) error {
	q, list, err := sqlx.Named(query, args)
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, ext, dest, ext.Rebind(q), list...)
}

func where(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

func pageClause(page, pageSize int) string {
	if pageSize <= 0 {
		return ""
	}
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.InventoryLine, error) {
	var line model.InventoryLine
	query := `SELECT ` + lineColumns + ` FROM inventory_lines WHERE id = $1`
	err := sqlx.GetContext(ctx, r.ext(ctx), &line, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &line, nil
}

func (r *PGRepository) Search(ctx context.Context, s *dto.LineSearch) ([]model.InventoryLine, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if s.Category != "" {
		conditions = append(conditions, "lower(category) = lower(:category)")
		args["category"] = s.Category
	}
	if s.Name != "" {
		conditions = append(conditions, "lower(name) = lower(:name)")
		args["name"] = s.Name
	}
	if s.Model != nil {
		conditions = append(conditions, "lower(model) = lower(:model)")
		args["model"] = *s.Model
	}
	if s.Location != "" {
		conditions = append(conditions, "location = :location")
		args["location"] = s.Location
	}

	query := `SELECT ` + lineColumns + ` FROM inventory_lines` + where(conditions) +
		` ORDER BY stock_quantity DESC, created_at ASC, id ASC`

	var lines []model.InventoryLine
	if err := namedSelect(ctx, r.ext(ctx), &lines, query, args); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.InventoryFilters) ([]model.InventoryLine, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.Location != "" {
		conditions = append(conditions, "location = :location")
		args["location"] = f.Location
	}
	if f.Category != "" {
		conditions = append(conditions, "lower(category) = lower(:category)")
		args["category"] = f.Category
	}
	if f.LowStock {
		conditions = append(conditions, "stock_quantity - reserved_quantity <= low_stock_threshold")
	}

	ext := r.ext(ctx)
	var count int
	if err := namedGet(ctx, ext, &count, "SELECT count(*) FROM inventory_lines"+where(conditions), args); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + lineColumns + ` FROM inventory_lines` + where(conditions) +
		` ORDER BY updated_at DESC, id ASC` + pageClause(f.Page, f.PageSize)

	var lines []model.InventoryLine
	if err := namedSelect(ctx, ext, &lines, query, args); err != nil {
		return nil, 0, err
	}
	return lines, count, nil
}

func (r *PGRepository) Create(ctx context.Context, line *model.InventoryLine) error {
	query := `
        INSERT INTO inventory_lines (
            id, name, model, color, category, sku, description, unit_price,
            stock_quantity, reserved_quantity, location, low_stock_threshold, is_ghost,
            created_at, updated_at
        )
        VALUES (
            :id, :name, :model, :color, :category, :sku, :description, :unit_price,
            :stock_quantity, :reserved_quantity, :location, :low_stock_threshold, :is_ghost,
            :created_at, :updated_at
        )
    `
	_, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, line)
	return err
}

func (r *PGRepository) Delete(ctx context.Context, id string) (bool, error) {
	query := `
        DELETE FROM inventory_lines l
        WHERE l.id = $1
          AND l.reserved_quantity = 0
          AND NOT EXISTS (
              SELECT 1 FROM inventory_reservations res
              WHERE res.inventory_id = l.id AND res.status = 'held'
          )
    `
	result, err := r.ext(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Adjust relies on the row lock taken by UPDATE: concurrent callers on the
// same line queue behind each other and each sees the previous result.
func (r *PGRepository) Adjust(ctx context.Context, id string, stockDelta, reservedDelta int) (*model.InventoryLine, error) {
	query := `
        UPDATE inventory_lines
        SET stock_quantity = stock_quantity + $2,
            reserved_quantity = reserved_quantity + $3,
            updated_at = now()
        WHERE id = $1
        RETURNING ` + lineColumns

	var line model.InventoryLine
	err := sqlx.GetContext(ctx, r.ext(ctx), &line, query, id, stockDelta, reservedDelta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to adjust inventory line: %w", err)
	}
	return &line, nil
}

func (r *PGRepository) LogMovement(ctx context.Context, m *model.StockMovement) error {
	query := `
        INSERT INTO inventory_movements (
            id, inventory_id, case_id, transfer_id, reservation_id,
            movement_type, quantity_change, previous_quantity, new_quantity,
            reason, recorded_by, created_at
        )
        VALUES (
            :id, :inventory_id, :case_id, :transfer_id, :reservation_id,
            :movement_type, :quantity_change, :previous_quantity, :new_quantity,
            :reason, :recorded_by, :created_at
        )
    `
	if _, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, m); err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}
	return nil
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.InventoryID != "" {
		conditions = append(conditions, "inventory_id = :inventory_id")
		args["inventory_id"] = f.InventoryID
	}
	if f.CaseID != "" {
		conditions = append(conditions, "case_id = :case_id")
		args["case_id"] = f.CaseID
	}
	if f.TransferID != "" {
		conditions = append(conditions, "transfer_id = :transfer_id")
		args["transfer_id"] = f.TransferID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = string(f.MovementType)
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at <= :end_date")
		args["end_date"] = *f.EndDate
	}

	ext := r.ext(ctx)
	var count int
	if err := namedGet(ctx, ext, &count, "SELECT count(*) FROM inventory_movements"+where(conditions), args); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + movementColumns + ` FROM inventory_movements` + where(conditions) +
		` ORDER BY created_at DESC` + pageClause(f.Page, f.PageSize)

	var items []model.StockMovement
	if err := namedSelect(ctx, ext, &items, query, args); err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

func (r *PGRepository) CreateReservation(ctx context.Context, res *model.Reservation) error {
	query := `
        INSERT INTO inventory_reservations (
            id, inventory_id, quantity, reference_type, reference_id,
            status, reason, created_by, created_at, resolved_at
        )
        VALUES (
            :id, :inventory_id, :quantity, :reference_type, :reference_id,
            :status, :reason, :created_by, :created_at, :resolved_at
        )
    `
	_, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, res)
	return err
}

func (r *PGRepository) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	query := `SELECT ` + reservationColumns + ` FROM inventory_reservations WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.ext(ctx), &res, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (r *PGRepository) ListReservations(ctx context.Context, f *dto.ReservationFilters) ([]model.Reservation, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.InventoryID != "" {
		conditions = append(conditions, "inventory_id = :inventory_id")
		args["inventory_id"] = f.InventoryID
	}
	if f.ReferenceType != "" {
		conditions = append(conditions, "reference_type = :reference_type")
		args["reference_type"] = string(f.ReferenceType)
	}
	if f.ReferenceID != "" {
		conditions = append(conditions, "reference_id = :reference_id")
		args["reference_id"] = f.ReferenceID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = string(f.Status)
	}

	query := `SELECT ` + reservationColumns + ` FROM inventory_reservations` + where(conditions) +
		` ORDER BY created_at ASC, id ASC`

	var out []model.Reservation
	if err := namedSelect(ctx, r.ext(ctx), &out, query, args); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PGRepository) ResolveReservation(ctx context.Context, id string, from, to model.ReservationStatus, at time.Time) (bool, error) {
	query := `
        UPDATE inventory_reservations
        SET status = $3, resolved_at = $4
        WHERE id = $1 AND status = $2
    `
	result, err := r.ext(ctx).ExecContext(ctx, query, id, string(from), string(to), at)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PGRepository) HeldTotals(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		InventoryID string `db:"inventory_id"`
		Total       int    `db:"total"`
	}
	query := `
        SELECT inventory_id, COALESCE(SUM(quantity), 0) AS total
        FROM inventory_reservations
        WHERE status = 'held'
        GROUP BY inventory_id
    `
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &rows, query); err != nil {
		return nil, err
	}
	totals := make(map[string]int, len(rows))
	for _, row := range rows {
		totals[row.InventoryID] = row.Total
	}
	return totals, nil
}
