package handlers

import (
	"net/http"
	"strconv"

	"digibank/internal/middleware"
	"digibank/internal/models"
	"digibank/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type TransactionHandler struct {
	transactionService *services.TransactionService
	logger             zerolog.Logger
}

func NewTransactionHandler(transactionService *services.TransactionService, logger zerolog.Logger) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

func (h *TransactionHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondWithError(w, http.StatusBadRequest, "invalid_limit", "Limit must be a positive number")
			return
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondWithError(w, http.StatusBadRequest, "invalid_offset", "Offset must be a non-negative number")
			return
		}
		offset = parsed
	}

	entries, err := h.transactionService.GetUserTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to fetch transactions")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to fetch transactions")
		return
	}
	if entries == nil {
		entries = []*models.HistoryEntry{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": entries,
		"limit":        limit,
		"offset":       offset,
	})
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	transactionID := mux.Vars(r)["id"]
	entry, err := h.transactionService.GetTransactionByID(r.Context(), transactionID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "transaction_not_found", "Transaction not found")
		return
	}

	userRole, _ := middleware.GetUserRole(r)
	if userRole != string(models.RoleAdmin) && entry.UserID != userID {
		respondWithError(w, http.StatusForbidden, "forbidden", "You can only view your own transactions")
		return
	}

	respondWithJSON(w, http.StatusOK, entry)
}
