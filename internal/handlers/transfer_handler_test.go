package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"digibank/internal/ledger"
	"digibank/internal/middleware"
	"digibank/internal/services"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransferTestHandler(t *testing.T) (*TransferHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ledgerService := ledger.NewService(db, zerolog.Nop())
	accountService := services.NewAccountService(db, zerolog.Nop(), "USD")
	return NewTransferHandler(ledgerService, accountService, zerolog.Nop()), mock
}

func authenticatedRequest(method, target, body string, userID int, role string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	ctx = context.WithValue(ctx, middleware.UserRoleKey, role)
	return req.WithContext(ctx)
}

func TestTransferHandler_RejectsInvalidAmount(t *testing.T) {
	handler, mock := newTransferTestHandler(t)

	for _, amount := range []string{"0", "-5", "abc", ""} {
		body := `{"recipient_account_number":"ACC123456002","amount":"` + amount + `"}`
		req := authenticatedRequest("POST", "/api/v1/transfers", body, 1, "user")
		rec := httptest.NewRecorder()
		handler.Transfer(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "amount %q", amount)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferHandler_RejectsUnauthenticated(t *testing.T) {
	handler, mock := newTransferTestHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/transfers", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.Transfer(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferHandler_Success(t *testing.T) {
	handler, mock := newTransferTestHandler(t)

	mock.ExpectQuery("SELECT u.id, u.name, a.account_number").
		WithArgs("ACC123456002").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "account_number"}).
			AddRow(2, "Bob", "ACC123456002"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances WHERE user_id = \\? FOR UPDATE").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "currency"}).AddRow("100.0000", "USD"))
	mock.ExpectQuery("SELECT amount, currency FROM balances WHERE user_id = \\? FOR UPDATE").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "currency"}).AddRow("50.0000", "USD"))
	mock.ExpectQuery("SELECT u.name, a.account_number").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"name", "account_number"}).AddRow("Bob", "ACC123456002"))
	mock.ExpectExec("UPDATE balances SET amount").
		WithArgs(decimal.RequireFromString("70.0000"), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE balances SET amount").
		WithArgs(decimal.RequireFromString("80.0000"), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := `{"recipient_account_number":"ACC123456002","amount":"30.00","description":"Lunch"}`
	req := authenticatedRequest("POST", "/api/v1/transfers", body, 1, "user")
	rec := httptest.NewRecorder()
	handler.Transfer(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var receipt struct {
		Reference     string `json:"reference"`
		Amount        string `json:"amount"`
		RecipientName string `json:"recipient_name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.True(t, strings.HasPrefix(receipt.Reference, "TXN_"))
	assert.Equal(t, "30", receipt.Amount)
	assert.Equal(t, "Bob", receipt.RecipientName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferHandler_InsufficientFunds(t *testing.T) {
	handler, mock := newTransferTestHandler(t)

	mock.ExpectQuery("SELECT u.id, u.name, a.account_number").
		WithArgs("ACC123456002").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "account_number"}).
			AddRow(2, "Bob", "ACC123456002"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount, currency FROM balances WHERE user_id = \\? FOR UPDATE").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "currency"}).AddRow("10.0000", "USD"))
	mock.ExpectQuery("SELECT amount, currency FROM balances WHERE user_id = \\? FOR UPDATE").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "currency"}).AddRow("50.0000", "USD"))
	mock.ExpectRollback()

	body := `{"recipient_account_number":"ACC123456002","amount":"30.00"}`
	req := authenticatedRequest("POST", "/api/v1/transfers", body, 1, "user")
	rec := httptest.NewRecorder()
	handler.Transfer(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferHandler_ReferenceLookupNotFound(t *testing.T) {
	handler, mock := newTransferTestHandler(t)

	mock.ExpectQuery("SELECT (.+) FROM transactions t").
		WithArgs("TXN_missing").
		WillReturnError(sql.ErrNoRows)

	req := authenticatedRequest("GET", "/api/v1/transfers/TXN_missing", "", 1, "user")
	req = mux.SetURLVars(req, map[string]string{"reference": "TXN_missing"})
	rec := httptest.NewRecorder()
	handler.GetTransferByReference(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
