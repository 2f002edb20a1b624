package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return NewService(db, zerolog.Nop()), mock, db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func balanceRows(amount, currency string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"amount", "currency"}).AddRow(amount, currency)
}

func expectTransferSuccess(mock sqlmock.Sqlmock, senderBal, recipientBal, newSenderBal, newRecipientBal, amount string) {
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(1).
		WillReturnRows(balanceRows(senderBal, "USD"))
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(2).
		WillReturnRows(balanceRows(recipientBal, "USD"))
	mock.ExpectQuery("SELECT u.name, a.account_number").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"name", "account_number"}).AddRow("Bob", "ACC123456002"))
	mock.ExpectExec("UPDATE balances SET amount").
		WithArgs(dec(newSenderBal), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE balances SET amount").
		WithArgs(dec(newRecipientBal), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), 1, 1, "transfer_out", dec(amount), "USD", "success", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), 2, 1, "received", dec(amount), "USD", "success", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestTransfer_Success(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	expectTransferSuccess(mock, "100.0000", "50.0000", "70.0000", "80.0000", "30.00")

	receipt, err := svc.Transfer(context.Background(), 1, 2, dec("30.00"), "rent")
	require.NoError(t, err)

	assert.True(t, receipt.Amount.Equal(dec("30.00")))
	assert.Equal(t, "Bob", receipt.RecipientName)
	assert.Equal(t, "ACC123456002", receipt.RecipientAccountNumber)
	assert.Equal(t, "rent", receipt.Description)
	assert.True(t, strings.HasPrefix(receipt.Reference, "TXN_"), "reference %q", receipt.Reference)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransfer_DefaultDescription(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	expectTransferSuccess(mock, "100.0000", "50.0000", "70.0000", "80.0000", "30.00")

	receipt, err := svc.Transfer(context.Background(), 1, 2, dec("30.00"), "")
	require.NoError(t, err)
	assert.Equal(t, "Transfer to Bob", receipt.Description)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(1).
		WillReturnRows(balanceRows("10.0000", "USD"))
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(2).
		WillReturnRows(balanceRows("50.0000", "USD"))
	mock.ExpectRollback()

	_, err := svc.Transfer(context.Background(), 1, 2, dec("30.00"), "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransfer_RejectedBeforeStoreAccess(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	_, err := svc.Transfer(context.Background(), 1, 2, dec("0"), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Transfer(context.Background(), 1, 2, dec("-5.00"), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Transfer(context.Background(), 1, 1, dec("10.00"), "")
	assert.ErrorIs(t, err, ErrSelfTransfer)

	// invalid inputs must never touch the store
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransfer_AccountNotFound(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.Transfer(context.Background(), 1, 2, dec("30.00"), "")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransfer_RollsBackWhenInsertFails(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(1).
		WillReturnRows(balanceRows("100.0000", "USD"))
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(2).
		WillReturnRows(balanceRows("50.0000", "USD"))
	mock.ExpectQuery("SELECT u.name, a.account_number").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"name", "account_number"}).AddRow("Bob", "ACC123456002"))
	mock.ExpectExec("UPDATE balances SET amount").
		WithArgs(dec("70.0000"), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE balances SET amount").
		WithArgs(dec("80.0000"), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := svc.Transfer(context.Background(), 1, 2, dec("30.00"), "rent")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransferFailed)

	// no commit expectation: the failed insert must abort everything
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransfer_RetriesAfterDeadlock(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(1).
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	mock.ExpectRollback()

	expectTransferSuccess(mock, "100.0000", "50.0000", "70.0000", "80.0000", "30.00")

	receipt, err := svc.Transfer(context.Background(), 1, 2, dec("30.00"), "rent")
	require.NoError(t, err)
	assert.True(t, receipt.Amount.Equal(dec("30.00")))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransfer_GivesUpAfterRepeatedConflicts(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT amount, currency FROM balances").
			WithArgs(1).
			WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
		mock.ExpectRollback()
	}

	_, err := svc.Transfer(context.Background(), 1, 2, dec("30.00"), "")
	assert.ErrorIs(t, err, ErrTransferFailed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransfer_ConcurrentDebitsSameSender(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	// Sender holds 100. Two concurrent transfers of 60 each: only one can
	// pass the sufficiency check. The per-user mutex serializes them, so
	// whichever runs first plays the success script and the second observes
	// the debited balance.
	expectTransferSuccess(mock, "100.0000", "50.0000", "40.0000", "110.0000", "60.00")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(1).
		WillReturnRows(balanceRows("40.0000", "USD"))
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(2).
		WillReturnRows(balanceRows("110.0000", "USD"))
	mock.ExpectRollback()

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), 1, 2, dec("60.00"), "race")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockUsers_OppositeOrdersDoNotDeadlock(t *testing.T) {
	svc, _, db := newTestService(t)
	defer db.Close()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				unlock := svc.lockUsers(1, 2)
				unlock()
			}()
			go func() {
				defer wg.Done()
				unlock := svc.lockUsers(2, 1)
				unlock()
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lockUsers deadlocked with opposite acquisition orders")
	}
}

func TestAdjustBalance_Credit(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(1).
		WillReturnRows(balanceRows("0.0000", "USD"))
	mock.ExpectExec("UPDATE balances SET amount").
		WithArgs(dec("50.0000"), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), 1, "deposit", dec("50.00"), "USD", "success", "bonus", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	balance, txn, err := svc.AdjustBalance(context.Background(), 1, dec("50.00"), "bonus")
	require.NoError(t, err)

	assert.True(t, balance.Amount.Equal(dec("50")))
	assert.Equal(t, "deposit", txn.Type)
	assert.True(t, txn.Amount.Equal(dec("50")))
	assert.Equal(t, "success", txn.Status)
	assert.True(t, strings.HasPrefix(txn.Reference, "ADMIN_"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalance_DebitExceedingBalance(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(1).
		WillReturnRows(balanceRows("20.0000", "USD"))
	mock.ExpectRollback()

	_, _, err := svc.AdjustBalance(context.Background(), 1, dec("-50.00"), "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalance_Debit(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(1).
		WillReturnRows(balanceRows("80.0000", "USD"))
	mock.ExpectExec("UPDATE balances SET amount").
		WithArgs(dec("60.0000"), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), 1, "withdrawal", dec("20.00"), "USD", "success", "Admin balance reduction: -$20.00", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	balance, txn, err := svc.AdjustBalance(context.Background(), 1, dec("-20.00"), "")
	require.NoError(t, err)
	assert.True(t, balance.Amount.Equal(dec("60")))
	assert.Equal(t, "withdrawal", txn.Type)
	assert.True(t, txn.Amount.Equal(dec("20")))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalance_ZeroDelta(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	_, _, err := svc.AdjustBalance(context.Background(), 1, dec("0"), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalance_AccountNotFound(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := svc.AdjustBalance(context.Background(), 99, dec("10.00"), "")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetBalance_DerivesDirectionFromExactDifference(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(1).
		WillReturnRows(balanceRows("20.0000", "USD"))
	mock.ExpectExec("UPDATE balances SET amount").
		WithArgs(dec("50.00"), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), 1, "deposit", dec("30.0000"), "USD", "success", "Admin balance adjustment: +$30.00", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	balance, txn, err := svc.SetBalance(context.Background(), 1, dec("50.00"), "")
	require.NoError(t, err)
	assert.True(t, balance.Amount.Equal(dec("50")))
	assert.Equal(t, "deposit", txn.Type)
	assert.True(t, txn.Amount.Equal(dec("30")))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetBalance_ReductionBecomesWithdrawal(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances").
		WithArgs(1).
		WillReturnRows(balanceRows("20.0000", "USD"))
	mock.ExpectExec("UPDATE balances SET amount").
		WithArgs(dec("5.00"), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), 1, "withdrawal", dec("15.0000"), "USD", "success", "Admin balance adjustment: -$15.00", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, txn, err := svc.SetBalance(context.Background(), 1, dec("5.00"), "")
	require.NoError(t, err)
	assert.Equal(t, "withdrawal", txn.Type)
	assert.True(t, txn.Amount.Equal(dec("15")))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetBalance_RejectsNegativeTarget(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	_, _, err := svc.SetBalance(context.Background(), 1, dec("-1.00"), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	require.NoError(t, mock.ExpectationsWereMet())
}

func receiptRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "sender_id", "type", "amount", "currency", "status",
		"description", "reference", "created_at", "updated_at", "name",
	}).AddRow(
		"8b9f9a3e-0000-0000-0000-000000000001", 1, 1, "transfer_out", "30.0000", "USD",
		"success", "rent", "TXN_1700000000000_abc123def", time.Now(), time.Now(), "Alice",
	)
}

func TestReceiptByReference(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	// two identical lookups: reading a receipt has no side effects
	mock.ExpectQuery("FROM transactions t").
		WithArgs("TXN_1700000000000_abc123def").
		WillReturnRows(receiptRows())
	mock.ExpectQuery("FROM transactions t").
		WithArgs("TXN_1700000000000_abc123def").
		WillReturnRows(receiptRows())

	first, err := svc.ReceiptByReference(context.Background(), "TXN_1700000000000_abc123def")
	require.NoError(t, err)
	second, err := svc.ReceiptByReference(context.Background(), "TXN_1700000000000_abc123def")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Reference, second.Reference)
	assert.True(t, first.Amount.Equal(second.Amount))
	assert.Equal(t, "transfer_out", first.Type)
	require.NotNil(t, first.SenderName)
	assert.Equal(t, "Alice", *first.SenderName)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptByReference_NotFound(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectQuery("FROM transactions t").
		WithArgs("TXN_missing").
		WillReturnError(sql.ErrNoRows)

	_, err := svc.ReceiptByReference(context.Background(), "TXN_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&mysql.MySQLError{Number: 1213}))
	assert.True(t, isRetryable(&mysql.MySQLError{Number: 1205}))
	assert.False(t, isRetryable(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isRetryable(errors.New("connection refused")))
	assert.False(t, isRetryable(nil))
}
