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

func TestCHDeliveriesInsertBatch(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO delivery_attempts"))
	prep.ExpectExec().WithArgs("clone_queue", "01A", "g1", true, "", at).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("clone_queue", "01A", "g2", false, "boom", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewCHDeliveriesRepository(db).InsertBatch(ctx, []model.DeliveryAttempt{
		{Dispatcher: "clone_queue", ItemID: "01A", GroupID: "g1", Success: true, AttemptedAt: at},
		{Dispatcher: "clone_queue", ItemID: "01A", GroupID: "g2", Error: "boom", AttemptedAt: at},
	})
	require.NoError(t, err)
}

func TestCHDeliveriesInsertBatchEmpty(t *testing.T) {
	db, _ := newMock(t)
	require.NoError(t, NewCHDeliveriesRepository(db).InsertBatch(ctx, nil))
}

func TestCHDeliveriesList(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("AND dispatcher = ? AND item_id = ? ORDER BY attempted_at DESC LIMIT ? OFFSET ?")).
		WithArgs("products", "p1", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"dispatcher", "item_id", "group_id", "success", "error", "attempted_at"}).
			AddRow("products", "p1", "g1", true, "", at))

	rows, err := NewCHDeliveriesRepository(db).List(ctx, DeliveryFilter{Dispatcher: "products", ItemID: "p1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Success)
}
