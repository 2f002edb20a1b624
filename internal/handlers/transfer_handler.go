package handlers

import (
	"errors"
	"net/http"

	"digibank/internal/ledger"
	"digibank/internal/middleware"
	"digibank/internal/models"
	"digibank/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type TransferHandler struct {
	ledger         *ledger.Service
	accountService *services.AccountService
	logger         zerolog.Logger
}

func NewTransferHandler(ledgerService *ledger.Service, accountService *services.AccountService, logger zerolog.Logger) *TransferHandler {
	return &TransferHandler{
		ledger:         ledgerService,
		accountService: accountService,
		logger:         logger,
	}
}

// Transfer moves money from the authenticated user to the account number
// named in the request.
func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		respondWithError(w, http.StatusBadRequest, "invalid_amount", "Amount must be a positive number")
		return
	}

	recipient, err := h.accountService.GetRecipientByAccountNumber(r.Context(), req.RecipientAccountNumber, senderID)
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

	receipt, err := h.ledger.Transfer(r.Context(), senderID, recipient.UserID, amount, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			respondWithError(w, http.StatusUnprocessableEntity, "insufficient_funds", "Insufficient balance for this transfer")
		case errors.Is(err, ledger.ErrInvalidAmount):
			respondWithError(w, http.StatusBadRequest, "invalid_amount", "Amount must be a positive number")
		case errors.Is(err, ledger.ErrSelfTransfer):
			respondWithError(w, http.StatusBadRequest, "self_transfer", "You cannot send money to your own account")
		case errors.Is(err, ledger.ErrAccountNotFound):
			respondWithError(w, http.StatusNotFound, "account_not_found", "Account not found")
		default:
			h.logger.Error().Err(err).Int("sender_id", senderID).Msg("Transfer failed")
			respondWithError(w, http.StatusInternalServerError, "transfer_failed", "Transfer could not be completed")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, receipt)
}

// GetTransferByReference returns the stored record for a completed transfer.
// Lookup is read-only, so retrying it after a timeout is always safe.
func (h *TransferHandler) GetTransferByReference(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserID(r); !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	reference := mux.Vars(r)["reference"]
	entry, err := h.ledger.ReceiptByReference(r.Context(), reference)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "transaction_not_found", "No transaction found with this reference")
			return
		}
		h.logger.Error().Err(err).Str("reference", reference).Msg("Reference lookup failed")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Lookup failed")
		return
	}

	respondWithJSON(w, http.StatusOK, entry)
}
