package repository

import (
	"context"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/jmoiron/sqlx"
)

// GroupsRepository manages grupos_fixos_agendamento, the persisted destination list.
type GroupsRepository interface {
	ListActive(ctx context.Context) ([]model.DestinationGroup, error)
	List(ctx context.Context) ([]model.DestinationGroup, error)
	Upsert(ctx context.Context, groupID, name string, now time.Time) (created bool, err error)
	SetActive(ctx context.Context, groupID string, active bool, now time.Time) error
	Delete(ctx context.Context, groupID string) error
}

type GroupsRepositoryImpl struct {
	db *sqlx.DB
}

func NewGroupsRepository(db *sqlx.DB) *GroupsRepositoryImpl {
	return &GroupsRepositoryImpl{db: db}
}

var _ GroupsRepository = (*GroupsRepositoryImpl)(nil)

const groupColumns = `id, grupo_id, grupo_nome, ativo, criado_em, atualizado_em`

func (r *GroupsRepositoryImpl) ListActive(ctx context.Context) ([]model.DestinationGroup, error) {
	var rows []model.DestinationGroup
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+groupColumns+` FROM grupos_fixos_agendamento WHERE ativo = TRUE ORDER BY criado_em ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *GroupsRepositoryImpl) List(ctx context.Context) ([]model.DestinationGroup, error) {
	var rows []model.DestinationGroup
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+groupColumns+` FROM grupos_fixos_agendamento ORDER BY criado_em ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert inserts the group or, if grupo_id exists, renames and re-activates it.
// MySQL reports 1 affected row for an insert and 2 for an update.
func (r *GroupsRepositoryImpl) Upsert(ctx context.Context, groupID, name string, now time.Time) (bool, error) {
	const q = `
INSERT INTO grupos_fixos_agendamento
    (grupo_id, grupo_nome, ativo, criado_em, atualizado_em)
VALUES
    (?, ?, TRUE, ?, ?)
ON DUPLICATE KEY UPDATE
    grupo_nome    = VALUES(grupo_nome),
    ativo         = TRUE,
    atualizado_em = VALUES(atualizado_em)
`
	res, err := r.db.ExecContext(ctx, q, groupID, name, now.UTC(), now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *GroupsRepositoryImpl) SetActive(ctx context.Context, groupID string, active bool, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE grupos_fixos_agendamento SET ativo = ?, atualizado_em = ? WHERE grupo_id = ?`,
		active, now.UTC(), groupID)
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

func (r *GroupsRepositoryImpl) Delete(ctx context.Context, groupID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grupos_fixos_agendamento WHERE grupo_id = ?`, groupID)
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
