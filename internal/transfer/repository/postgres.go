package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/internal/transfer"
	"github.com/fekuna/funeral-inventory-service/internal/transfer/dto"
	"github.com/fekuna/funeral-inventory-service/pkg/postgres"
	"github.com/jmoiron/sqlx"
)

var _ transfer.Repository = (*PGRepository)(nil)

const transferColumns = `id, transfer_number, from_location, to_location, status,
	driver_id, notes, created_by, created_at, updated_at,
	dispatched_at, completed_at, cancelled_at`

const itemColumns = `id, transfer_id, inventory_id, quantity, reservation_id, destination_id`

// numberingLockSpace namespaces the advisory lock used for transfer numbers.
const numberingLockSpace = 7301

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) ext(ctx context.Context) sqlx.ExtContext {
	return postgres.Ext(ctx, r.DB)
}

func (r *PGRepository) Create(ctx context.Context, t *model.Transfer) error {
	query := `
        INSERT INTO transfers (
            id, transfer_number, from_location, to_location, status,
            driver_id, notes, created_by, created_at, updated_at
        )
        VALUES (
            :id, :transfer_number, :from_location, :to_location, :status,
            :driver_id, :notes, :created_by, :created_at, :updated_at
        )
    `
	ext := r.ext(ctx)
	if _, err := sqlx.NamedExecContext(ctx, ext, query, t); err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return r.insertItems(ctx, ext, t.Items)
}

func (r *PGRepository) insertItems(ctx context.Context, ext sqlx.ExtContext, items []model.TransferItem) error {
	query := `
        INSERT INTO transfer_items (id, transfer_id, inventory_id, quantity, reservation_id, destination_id)
        VALUES (:id, :transfer_id, :inventory_id, :quantity, :reservation_id, :destination_id)
    `
	for i := range items {
		if _, err := sqlx.NamedExecContext(ctx, ext, query, &items[i]); err != nil {
			return fmt.Errorf("failed to insert transfer item: %w", err)
		}
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Transfer, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate locks the transfer row. A concurrent status flip or edit
// waits for it, and once it proceeds it sees the committed row.
func (r *PGRepository) GetForUpdate(ctx context.Context, id string) (*model.Transfer, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *PGRepository) get(ctx context.Context, id, lock string) (*model.Transfer, error) {
	ext := r.ext(ctx)

	var t model.Transfer
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1` + lock
	if err := sqlx.GetContext(ctx, ext, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	itemQuery := `SELECT ` + itemColumns + ` FROM transfer_items WHERE transfer_id = $1 ORDER BY id`
	if err := sqlx.SelectContext(ctx, ext, &t.Items, itemQuery, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.TransferFilters) ([]model.Transfer, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = string(f.Status)
	}
	if f.Location != "" {
		conditions = append(conditions, "(from_location = :location OR to_location = :location)")
		args["location"] = f.Location
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	ext := r.ext(ctx)

	var count int
	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM transfers"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := sqlx.GetContext(ctx, ext, &count, ext.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + transferColumns + " FROM transfers" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	listQuery, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}
	var transfers []model.Transfer
	if err := sqlx.SelectContext(ctx, ext, &transfers, ext.Rebind(listQuery), listArgs...); err != nil {
		return nil, 0, err
	}
	if len(transfers) == 0 {
		return transfers, count, nil
	}

	ids := make([]string, len(transfers))
	index := make(map[string]int, len(transfers))
	for i, t := range transfers {
		ids[i] = t.ID
		index[t.ID] = i
	}
	itemQuery, itemArgs, err := sqlx.In(`SELECT `+itemColumns+` FROM transfer_items WHERE transfer_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, 0, err
	}
	var items []model.TransferItem
	if err := sqlx.SelectContext(ctx, ext, &items, ext.Rebind(itemQuery), itemArgs...); err != nil {
		return nil, 0, err
	}
	for _, item := range items {
		i := index[item.TransferID]
		transfers[i].Items = append(transfers[i].Items, item)
	}
	return transfers, count, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, id string, from, to model.TransferStatus, at time.Time) (bool, error) {
	stamp := ""
	switch to {
	case model.TransferInTransit:
		stamp = ", dispatched_at = $4"
	case model.TransferCompleted:
		stamp = ", completed_at = $4"
	case model.TransferCancelled:
		stamp = ", cancelled_at = $4"
	}
	query := `UPDATE transfers SET status = $3, updated_at = $4` + stamp + ` WHERE id = $1 AND status = $2`

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

func (r *PGRepository) UpdateDetails(ctx context.Context, t *model.Transfer) error {
	query := `
        UPDATE transfers
        SET from_location = :from_location,
            to_location = :to_location,
            driver_id = :driver_id,
            notes = :notes,
            updated_at = :updated_at
        WHERE id = :id
    `
	_, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, t)
	return err
}

func (r *PGRepository) ReplaceItems(ctx context.Context, transferID string, items []model.TransferItem) error {
	ext := r.ext(ctx)
	if _, err := ext.ExecContext(ctx, `DELETE FROM transfer_items WHERE transfer_id = $1`, transferID); err != nil {
		return fmt.Errorf("failed to clear transfer items: %w", err)
	}
	return r.insertItems(ctx, ext, items)
}

func (r *PGRepository) UpdateItem(ctx context.Context, item *model.TransferItem) error {
	query := `
        UPDATE transfer_items
        SET reservation_id = :reservation_id, destination_id = :destination_id
        WHERE id = :id
    `
	_, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, item)
	return err
}

func (r *PGRepository) MaxSequence(ctx context.Context, year int) (int, error) {
	query := `
        SELECT COALESCE(MAX(CAST(split_part(transfer_number, '-', 3) AS integer)), 0)
        FROM transfers
        WHERE transfer_number LIKE $1
    `
	var seq int
	if err := sqlx.GetContext(ctx, r.ext(ctx), &seq, query, fmt.Sprintf("TRF-%d-%%", year)); err != nil {
		return 0, err
	}
	return seq, nil
}

// LockNumbering takes a transaction-scoped advisory lock. Outside a
// transaction it would be released immediately, so it is skipped.
func (r *PGRepository) LockNumbering(ctx context.Context, year int) error {
	if !postgres.InTx(ctx) {
		return nil
	}
	_, err := r.ext(ctx).ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, numberingLockSpace, year)
	return err
}
