package repository

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productCols = []string{"id", "titulo", "final_message", "processed_image_url", "imagem_url", "agendamento"}

func TestProductsListScheduled(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE agendamento IS NOT NULL ORDER BY agendamento ASC LIMIT ?")).
		WithArgs(200).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("p1", "Fone", "Oferta!", "https://cdn/p.png", "https://img/o.png", at))

	rows, err := NewProductsRepository(db).ListScheduled(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Oferta!", rows[0].Text())
	assert.Equal(t, "https://cdn/p.png", rows[0].Image())
	assert.True(t, rows[0].Due(at))
}

func TestProductsGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM promocoes")).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := NewProductsRepository(db).GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProductsSetSchedule(t *testing.T) {
	q := regexp.QuoteMeta("UPDATE promocoes SET agendamento = ? WHERE id = ?")

	t.Run("clear", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(q).WithArgs(nil, "p1").WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, NewProductsRepository(db).SetSchedule(ctx, "p1", nil))
	})

	t.Run("missing product", func(t *testing.T) {
		db, mock := newMock(t)
		at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		mock.ExpectExec(q).WithArgs(at, "nope").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, NewProductsRepository(db).SetSchedule(ctx, "nope", &at), ErrNotFound)
	})
}
