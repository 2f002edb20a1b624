package handlers

import (
	"errors"
	"net/http"

	"digibank/internal/middleware"
	"digibank/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type AccountHandler struct {
	accountService *services.AccountService
	logger         zerolog.Logger
}

func NewAccountHandler(accountService *services.AccountService, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

func (h *AccountHandler) GetAccountDetails(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	details, err := h.accountService.GetAccountDetails(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			respondWithError(w, http.StatusNotFound, "account_not_found", "Account not found")
			return
		}
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to fetch account details")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to fetch account details")
		return
	}

	respondWithJSON(w, http.StatusOK, details)
}

// GetRecipient resolves an account number to a display name, so a sender can
// confirm who they are paying before committing a transfer.
func (h *AccountHandler) GetRecipient(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	accountNumber := mux.Vars(r)["accountNumber"]
	recipient, err := h.accountService.GetRecipientByAccountNumber(r.Context(), accountNumber, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountNotFound):
			respondWithError(w, http.StatusNotFound, "account_not_found", "No account found with this number")
		case errors.Is(err, services.ErrSelfRecipient):
			respondWithError(w, http.StatusBadRequest, "self_transfer", "You cannot send money to your own account")
		default:
			h.logger.Error().Err(err).Msg("Failed to resolve recipient")
			respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to resolve recipient")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, recipient)
}
