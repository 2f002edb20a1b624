package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"digibank/internal/ledger"
	"digibank/internal/middleware"
	"digibank/internal/models"
	"digibank/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type AdminHandler struct {
	accountService     *services.AccountService
	transactionService *services.TransactionService
	ledger             *ledger.Service
	logger             zerolog.Logger
}

func NewAdminHandler(accountService *services.AccountService, transactionService *services.TransactionService, ledgerService *ledger.Service, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		accountService:     accountService,
		transactionService: transactionService,
		ledger:             ledgerService,
		logger:             logger,
	}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accountService.ListUsers(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list users")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to list users")
		return
	}
	if users == nil {
		users = []*models.UserSummary{}
	}

	respondWithJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	user, err := h.accountService.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "user_not_found", "User not found")
			return
		}
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to fetch user")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to fetch user")
		return
	}

	user.PasswordHash = ""
	respondWithJSON(w, http.StatusOK, user)
}

// GetUserTransactions lets an admin read any user's transaction history.
func (h *AdminHandler) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	entries, err := h.transactionService.GetUserTransactions(r.Context(), userID, maxHistoryLimit, 0)
	if err != nil {
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to fetch transactions")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to fetch transactions")
		return
	}
	if entries == nil {
		entries = []*models.HistoryEntry{}
	}

	respondWithJSON(w, http.StatusOK, entries)
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, err := h.accountService.CreateUser(r.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			respondWithError(w, http.StatusConflict, "email_taken", "An account with this email already exists")
			return
		}
		respondWithError(w, http.StatusBadRequest, "user_creation_failed", err.Error())
		return
	}

	user.PasswordHash = ""
	respondWithJSON(w, http.StatusCreated, user)
}

func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.accountService.UpdateUserRole(r.Context(), userID, req.Role); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "user_not_found", "User not found")
			return
		}
		respondWithError(w, http.StatusBadRequest, "role_update_failed", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "User role updated"})
}

func (h *AdminHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	adminID, _ := middleware.GetUserID(r)
	if adminID == userID {
		respondWithError(w, http.StatusBadRequest, "self_ban", "You cannot ban your own account")
		return
	}

	var req models.BanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.accountService.BanUser(r.Context(), userID, req.Reason); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "user_not_found", "User not found")
			return
		}
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to ban user")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to ban user")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "User banned"})
}

func (h *AdminHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	if err := h.accountService.UnbanUser(r.Context(), userID); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "user_not_found", "User not found")
			return
		}
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to unban user")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to unban user")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "User unbanned"})
}

// AdjustBalance applies an administrative balance change. The action decides
// how the amount is read: increase and reduce are deltas, set is an absolute
// target whose delta the ledger derives in exact decimal arithmetic.
func (h *AdminHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req models.AdjustBalanceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_amount", "Amount must be a decimal number")
		return
	}

	var (
		balance *models.Balance
		txn     *models.Transaction
	)
	switch req.Action {
	case "increase":
		if !amount.IsPositive() {
			respondWithError(w, http.StatusBadRequest, "invalid_amount", "Amount must be positive")
			return
		}
		balance, txn, err = h.ledger.AdjustBalance(r.Context(), req.UserID, amount, req.Description)
	case "reduce":
		if !amount.IsPositive() {
			respondWithError(w, http.StatusBadRequest, "invalid_amount", "Amount must be positive")
			return
		}
		balance, txn, err = h.ledger.AdjustBalance(r.Context(), req.UserID, amount.Neg(), req.Description)
	case "set":
		balance, txn, err = h.ledger.SetBalance(r.Context(), req.UserID, amount, req.Description)
	default:
		respondWithError(w, http.StatusBadRequest, "invalid_action", "Action must be increase, reduce, or set")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			respondWithError(w, http.StatusUnprocessableEntity, "insufficient_funds", "Balance cannot go negative")
		case errors.Is(err, ledger.ErrInvalidAmount):
			respondWithError(w, http.StatusBadRequest, "invalid_amount", "Adjustment would not change the balance")
		case errors.Is(err, ledger.ErrAccountNotFound):
			respondWithError(w, http.StatusNotFound, "account_not_found", "Account not found")
		default:
			h.logger.Error().Err(err).Int("user_id", req.UserID).Msg("Balance adjustment failed")
			respondWithError(w, http.StatusInternalServerError, "adjustment_failed", "Balance adjustment failed")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, models.AdjustBalanceResponse{
		NewBalance:  balance.Amount,
		Transaction: txn,
	})
}

func pathUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_user_id", "Invalid user ID")
		return 0, false
	}
	return userID, true
}
