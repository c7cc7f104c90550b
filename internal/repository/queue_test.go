package repository

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queueCols = []string{
	"id", "mensagem_original", "mensagem_com_afiliado", "imagem_url", "grupo_origem", "grupo_origem_nome",
	"agendamento_envio", "status", "tentativas", "erro_mensagem", "enviado_em", "proximo_retry_em", "criado_em", "atualizado_em",
}

func TestQueueNextDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns earliest due row", func(t *testing.T) {
		db, mock := newMock(t)
		due := now.Add(-time.Minute)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'pendente' AND agendamento_envio <= ?")).
			WithArgs(now).
			WillReturnRows(sqlmock.NewRows(queueCols).AddRow(
				"01A", "orig", "aff", nil, "src@g.us", "Origem", due, "pendente", 0, nil, nil, nil, due, due,
			))

		m, err := NewQueueRepository(db).NextDue(ctx, now)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "01A", m.ID)
		assert.Equal(t, model.StatusPending, m.Status)
		assert.Equal(t, "aff", m.Text())
	})

	t.Run("nil when nothing is due", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM fila_mensagens_clonadas")).
			WithArgs(now).
			WillReturnRows(sqlmock.NewRows(queueCols))

		m, err := NewQueueRepository(db).NextDue(ctx, now)
		require.NoError(t, err)
		assert.Nil(t, m)
	})
}

func TestQueueClaim(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	claim := regexp.QuoteMeta("SET status = 'enviando', atualizado_em = ? WHERE id = ? AND status = 'pendente'")

	t.Run("won", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(claim).WithArgs(now, "01A").WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := NewQueueRepository(db).Claim(ctx, "01A", now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("lost to another worker", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(claim).WithArgs(now, "01A").WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := NewQueueRepository(db).Claim(ctx, "01A", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestQueueMarkFailed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	retry := now.Add(2 * time.Minute)
	q := regexp.QuoteMeta("SET status = 'erro', erro_mensagem = ?, tentativas = tentativas + ?")

	t.Run("delivery failure counts and schedules a retry", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(q).WithArgs("g1: boom", 1, retry, now, "01A").WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewQueueRepository(db).MarkFailed(ctx, "01A", Failure{
			Reason: "g1: boom", IncrementAttempts: true, NextRetryAt: &retry, Now: now,
		})
		require.NoError(t, err)
	})

	t.Run("configuration failure waits for an operator", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(q).WithArgs("no destination groups", 0, nil, now, "01A").WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewQueueRepository(db).MarkFailed(ctx, "01A", Failure{Reason: "no destination groups", Now: now})
		require.NoError(t, err)
	})

	t.Run("row no longer enviando", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewQueueRepository(db).MarkFailed(ctx, "01A", Failure{Reason: "x", Now: now})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestQueueSweeps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("proximo_retry_em <= ? AND tentativas < ?")).
		WithArgs(now, now, 3).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("WHERE status = 'enviando' AND atualizado_em < ?")).
		WithArgs(now, now.Add(-10*time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM fila_mensagens_clonadas WHERE status = 'enviado' AND enviado_em < ?")).
		WithArgs(now.AddDate(0, 0, -7)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	repo := NewQueueRepository(db)

	n, err := repo.RequeueRetries(ctx, now, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.RecoverStale(ctx, now.Add(-10*time.Minute), now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.PruneSent(ctx, now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestQueueLastPendingDue(t *testing.T) {
	db, mock := newMock(t)
	q := regexp.QuoteMeta("SELECT MAX(agendamento_envio) FROM fila_mensagens_clonadas WHERE status = 'pendente'")
	last := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)

	mock.ExpectQuery(q).WillReturnRows(sqlmock.NewRows([]string{"m"}).AddRow(nil))
	mock.ExpectQuery(q).WillReturnRows(sqlmock.NewRows([]string{"m"}).AddRow(last))

	repo := NewQueueRepository(db)

	got, err := repo.LastPendingDue(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.LastPendingDue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(last))
}

func TestQueueStats(t *testing.T) {
	db, mock := newMock(t)
	next := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS n FROM fila_mensagens_clonadas GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "n"}).
			AddRow("pendente", 3).
			AddRow("enviando", 1).
			AddRow("enviado", 10).
			AddRow("erro", 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(agendamento_envio)")).
		WillReturnRows(sqlmock.NewRows([]string{"m"}).AddRow(next))

	st, err := NewQueueRepository(db).Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.Pending)
	assert.EqualValues(t, 10, st.Sent)
	assert.EqualValues(t, 2, st.Errors)
	require.NotNil(t, st.NextDueAt)
	assert.True(t, st.NextDueAt.Equal(next))
}

func TestQueueListFiltersByStatus(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = ? ORDER BY agendamento_envio ASC LIMIT ?")).
		WithArgs("erro", 100).
		WillReturnRows(sqlmock.NewRows(queueCols))

	rows, err := NewQueueRepository(db).List(ctx, model.StatusError, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestQueueRequeueOnlyFromErro(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND status = 'erro'")).
		WithArgs(now.Add(time.Minute), now, "01A").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewQueueRepository(db).Requeue(ctx, "01A", now.Add(time.Minute), now)
	assert.ErrorIs(t, err, ErrNotFound)
}
