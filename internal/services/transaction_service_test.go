package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransactionTestService(t *testing.T) (*TransactionService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTransactionService(db, zerolog.Nop()), mock
}

func historyColumns() []string {
	return []string{
		"id", "user_id", "sender_id", "type", "amount", "currency",
		"status", "description", "reference", "created_at", "updated_at", "name",
	}
}

func TestGetUserTransactions(t *testing.T) {
	svc, mock := newTransactionTestService(t)
	now := time.Now()

	rows := sqlmock.NewRows(historyColumns()).
		AddRow("txn-1", 1, 2, "received", "30.0000", "USD", "success", "Lunch", "TXN_1_abc", now, now, "Bob").
		AddRow("txn-2", 1, nil, "deposit", "50.0000", "USD", "success", "Admin balance increase: +$50.00", "ADMIN_1_xyz", now, now, nil)

	mock.ExpectQuery("SELECT t.id, t.user_id, t.sender_id").
		WithArgs(1, 20, 0).
		WillReturnRows(rows)

	entries, err := svc.GetUserTransactions(context.Background(), 1, 20, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NotNil(t, entries[0].SenderName)
	assert.Equal(t, "Bob", *entries[0].SenderName)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("30")))

	assert.Nil(t, entries[1].SenderID)
	assert.Nil(t, entries[1].SenderName)
	assert.Equal(t, "ADMIN_1_xyz", entries[1].Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransactionByID_NotFound(t *testing.T) {
	svc, mock := newTransactionTestService(t)

	mock.ExpectQuery("SELECT t.id, t.user_id, t.sender_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(historyColumns()))

	_, err := svc.GetTransactionByID(context.Background(), "missing")
	assert.EqualError(t, err, "transaction not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
