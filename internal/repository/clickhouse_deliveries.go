package repository

import (
	"context"
	"fmt"

	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/jmoiron/sqlx"
)

// DeliveryFilter narrows a delivery report. Zero values mean "any".
type DeliveryFilter struct {
	Dispatcher string
	ItemID     string
	GroupID    string
	Limit      int
	Offset     int
}

// CHDeliveriesRepository appends to and reads the ClickHouse delivery log.
type CHDeliveriesRepository interface {
	InsertBatch(ctx context.Context, rows []model.DeliveryAttempt) error
	List(ctx context.Context, f DeliveryFilter) ([]model.DeliveryAttempt, error)
}

type chDeliveriesRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHDeliveriesRepository(ch *sqlx.DB) CHDeliveriesRepository {
	return &chDeliveriesRepository{ch: ch}
}

// InsertBatch sends all rows as one ClickHouse block: clickhouse-go buffers
// prepared-statement executions inside a transaction and flushes on commit.
func (r *chDeliveriesRepository) InsertBatch(ctx context.Context, rows []model.DeliveryAttempt) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO delivery_attempts (dispatcher, item_id, group_id, success, error, attempted_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, a := range rows {
		if _, err := stmt.ExecContext(ctx, a.Dispatcher, a.ItemID, a.GroupID, a.Success, a.Error, a.AttemptedAt.UTC()); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (r *chDeliveriesRepository) List(ctx context.Context, f DeliveryFilter) ([]model.DeliveryAttempt, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := `
		SELECT dispatcher, item_id, group_id, success, error, attempted_at
		FROM delivery_attempts
		WHERE 1 = 1
	`
	var args []any
	if f.Dispatcher != "" {
		q += " AND dispatcher = ?"
		args = append(args, f.Dispatcher)
	}
	if f.ItemID != "" {
		q += " AND item_id = ?"
		args = append(args, f.ItemID)
	}
	if f.GroupID != "" {
		q += " AND group_id = ?"
		args = append(args, f.GroupID)
	}

	q += " ORDER BY attempted_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	var rows []model.DeliveryAttempt
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
