package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/jmoiron/sqlx"
)

// ProductsRepository reads and reschedules rows of promocoes. The table is
// owned by the catalog side; this service only touches agendamento.
type ProductsRepository interface {
	ListScheduled(ctx context.Context, limit int) ([]model.Product, error)
	GetByID(ctx context.Context, id string) (*model.Product, error)
	SetSchedule(ctx context.Context, id string, at *time.Time) error
}

type ProductsRepositoryImpl struct {
	db *sqlx.DB
}

func NewProductsRepository(db *sqlx.DB) *ProductsRepositoryImpl {
	return &ProductsRepositoryImpl{db: db}
}

var _ ProductsRepository = (*ProductsRepositoryImpl)(nil)

const productColumns = `id, titulo, final_message, processed_image_url, imagem_url, agendamento`

// ListScheduled returns products with a non-null agendamento, earliest first.
func (r *ProductsRepositoryImpl) ListScheduled(ctx context.Context, limit int) ([]model.Product, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	var rows []model.Product
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+productColumns+`
		  FROM promocoes
		 WHERE agendamento IS NOT NULL
		 ORDER BY agendamento ASC
		 LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ProductsRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	err := r.db.GetContext(ctx, &p, `
		SELECT `+productColumns+`
		  FROM promocoes
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetSchedule sets agendamento; a nil time clears it, which marks the product delivered.
func (r *ProductsRepositoryImpl) SetSchedule(ctx context.Context, id string, at *time.Time) error {
	var v any
	if at != nil {
		v = at.UTC()
	}
	res, err := r.db.ExecContext(ctx, `UPDATE promocoes SET agendamento = ? WHERE id = ?`, v, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
