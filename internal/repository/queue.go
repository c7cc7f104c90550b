package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/jmoiron/sqlx"
)

// QueueRepository persists fila_mensagens_clonadas and owns every status
// transition. Transitions are conditional updates on the current status, so a
// row can only leave a state once.
type QueueRepository interface {
	Insert(ctx context.Context, m model.QueuedMessage) error
	Get(ctx context.Context, id string) (*model.QueuedMessage, error)
	List(ctx context.Context, status model.QueueStatus, limit int) ([]model.QueuedMessage, error)
	Stats(ctx context.Context) (model.QueueStats, error)
	LastPendingDue(ctx context.Context) (*time.Time, error)

	NextDue(ctx context.Context, now time.Time) (*model.QueuedMessage, error)
	Claim(ctx context.Context, id string, now time.Time) (bool, error)
	MarkSent(ctx context.Context, id string, now time.Time) error
	MarkFailed(ctx context.Context, id string, f Failure) error
	Release(ctx context.Context, id string, now time.Time) error

	RequeueRetries(ctx context.Context, now time.Time, maxAttempts int) (int64, error)
	RecoverStale(ctx context.Context, updatedBefore, now time.Time) (int64, error)
	Requeue(ctx context.Context, id string, dueAt, now time.Time) error

	Delete(ctx context.Context, id string) (bool, error)
	PruneSent(ctx context.Context, cutoff time.Time) (int64, error)
}

// Failure describes an enviando -> erro transition.
type Failure struct {
	Reason            string
	IncrementAttempts bool
	NextRetryAt       *time.Time // nil => manual re-queue only
	Now               time.Time
}

type QueueRepositoryImpl struct {
	db *sqlx.DB
}

func NewQueueRepository(db *sqlx.DB) *QueueRepositoryImpl {
	return &QueueRepositoryImpl{db: db}
}

var _ QueueRepository = (*QueueRepositoryImpl)(nil)

const queueColumns = `id, mensagem_original, mensagem_com_afiliado, imagem_url, grupo_origem, grupo_origem_nome,
	agendamento_envio, status, tentativas, erro_mensagem, enviado_em, proximo_retry_em, criado_em, atualizado_em`

// Insert adds a pendente row.
func (r *QueueRepositoryImpl) Insert(ctx context.Context, m model.QueuedMessage) error {
	const q = `
		INSERT INTO fila_mensagens_clonadas
		    (id, mensagem_original, mensagem_com_afiliado, imagem_url, grupo_origem, grupo_origem_nome,
		     agendamento_envio, status, tentativas, criado_em, atualizado_em)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, 'pendente', 0, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, q,
		m.ID, m.OriginalText, m.AffiliateText, m.ImageURL, m.SourceGroup, m.SourceGroupName,
		m.DueAt.UTC(), m.CreatedAt.UTC(), m.CreatedAt.UTC(),
	)
	return err
}

func (r *QueueRepositoryImpl) Get(ctx context.Context, id string) (*model.QueuedMessage, error) {
	var m model.QueuedMessage
	err := r.db.GetContext(ctx, &m, `SELECT `+queueColumns+` FROM fila_mensagens_clonadas WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns rows ordered by due time; an empty status means all.
func (r *QueueRepositoryImpl) List(ctx context.Context, status model.QueueStatus, limit int) ([]model.QueuedMessage, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := `SELECT ` + queueColumns + ` FROM fila_mensagens_clonadas`
	args := []any{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status.String())
	}
	q += ` ORDER BY agendamento_envio ASC LIMIT ?`
	args = append(args, limit)

	var rows []model.QueuedMessage
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *QueueRepositoryImpl) Stats(ctx context.Context) (model.QueueStats, error) {
	var counts []struct {
		Status model.QueueStatus `db:"status"`
		N      int64             `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &counts,
		`SELECT status, COUNT(*) AS n FROM fila_mensagens_clonadas GROUP BY status`); err != nil {
		return model.QueueStats{}, err
	}

	var st model.QueueStats
	for _, c := range counts {
		switch c.Status {
		case model.StatusPending:
			st.Pending = c.N
		case model.StatusSent:
			st.Sent = c.N
		case model.StatusError:
			st.Errors = c.N
		}
	}

	var next sql.NullTime
	if err := r.db.GetContext(ctx, &next,
		`SELECT MIN(agendamento_envio) FROM fila_mensagens_clonadas WHERE status = 'pendente'`); err != nil {
		return model.QueueStats{}, err
	}
	if next.Valid {
		st.NextDueAt = &next.Time
	}
	return st, nil
}

// LastPendingDue is the latest due time among pendente rows, nil if none.
func (r *QueueRepositoryImpl) LastPendingDue(ctx context.Context) (*time.Time, error) {
	var last sql.NullTime
	if err := r.db.GetContext(ctx, &last,
		`SELECT MAX(agendamento_envio) FROM fila_mensagens_clonadas WHERE status = 'pendente'`); err != nil {
		return nil, err
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

// NextDue returns the earliest pendente row due at or before now, nil if none.
func (r *QueueRepositoryImpl) NextDue(ctx context.Context, now time.Time) (*model.QueuedMessage, error) {
	var m model.QueuedMessage
	err := r.db.GetContext(ctx, &m, `
		SELECT `+queueColumns+`
		  FROM fila_mensagens_clonadas
		 WHERE status = 'pendente' AND agendamento_envio <= ?
		 ORDER BY agendamento_envio ASC, id ASC
		 LIMIT 1
	`, now.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Claim moves a row pendente -> enviando. It reports false when another
// worker (or an operator) changed the row first.
func (r *QueueRepositoryImpl) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE fila_mensagens_clonadas SET status = 'enviando', atualizado_em = ?
		 WHERE id = ? AND status = 'pendente'
	`, now.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *QueueRepositoryImpl) MarkSent(ctx context.Context, id string, now time.Time) error {
	return r.transition(ctx, `
		UPDATE fila_mensagens_clonadas
		   SET status = 'enviado', enviado_em = ?, erro_mensagem = NULL, proximo_retry_em = NULL, atualizado_em = ?
		 WHERE id = ? AND status = 'enviando'
	`, now.UTC(), now.UTC(), id)
}

func (r *QueueRepositoryImpl) MarkFailed(ctx context.Context, id string, f Failure) error {
	inc := 0
	if f.IncrementAttempts {
		inc = 1
	}
	var next any
	if f.NextRetryAt != nil {
		next = f.NextRetryAt.UTC()
	}
	return r.transition(ctx, `
		UPDATE fila_mensagens_clonadas
		   SET status = 'erro', erro_mensagem = ?, tentativas = tentativas + ?, proximo_retry_em = ?, atualizado_em = ?
		 WHERE id = ? AND status = 'enviando'
	`, f.Reason, inc, next, f.Now.UTC(), id)
}

// Release puts an in-flight row back to pendente without counting an attempt.
func (r *QueueRepositoryImpl) Release(ctx context.Context, id string, now time.Time) error {
	return r.transition(ctx, `
		UPDATE fila_mensagens_clonadas SET status = 'pendente', atualizado_em = ?
		 WHERE id = ? AND status = 'enviando'
	`, now.UTC(), id)
}

// RequeueRetries moves erro rows whose retry time has come back to pendente.
// agendamento_envio is assigned before proximo_retry_em is cleared (MySQL
// evaluates SET left to right).
func (r *QueueRepositoryImpl) RequeueRetries(ctx context.Context, now time.Time, maxAttempts int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE fila_mensagens_clonadas
		   SET status = 'pendente', agendamento_envio = proximo_retry_em, proximo_retry_em = NULL,
		       erro_mensagem = NULL, atualizado_em = ?
		 WHERE status = 'erro' AND proximo_retry_em IS NOT NULL AND proximo_retry_em <= ? AND tentativas < ?
	`, now.UTC(), now.UTC(), maxAttempts)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecoverStale reverts rows left in enviando by a process that died mid-delivery.
func (r *QueueRepositoryImpl) RecoverStale(ctx context.Context, updatedBefore, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE fila_mensagens_clonadas SET status = 'pendente', atualizado_em = ?
		 WHERE status = 'enviando' AND atualizado_em < ?
	`, now.UTC(), updatedBefore.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Requeue is the operator's way out of erro: back to pendente at dueAt.
func (r *QueueRepositoryImpl) Requeue(ctx context.Context, id string, dueAt, now time.Time) error {
	return r.transition(ctx, `
		UPDATE fila_mensagens_clonadas
		   SET status = 'pendente', agendamento_envio = ?, erro_mensagem = NULL, proximo_retry_em = NULL, atualizado_em = ?
		 WHERE id = ? AND status = 'erro'
	`, dueAt.UTC(), now.UTC(), id)
}

func (r *QueueRepositoryImpl) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fila_mensagens_clonadas WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PruneSent deletes enviado rows sent strictly before cutoff. Other statuses
// are never touched.
func (r *QueueRepositoryImpl) PruneSent(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM fila_mensagens_clonadas WHERE status = 'enviado' AND enviado_em < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *QueueRepositoryImpl) transition(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
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
