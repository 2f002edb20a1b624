package handlers

import (
	"context"
	"errors"
	"net/http"

	"digibank/internal/middleware"
	"digibank/internal/models"
	"digibank/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type CardHandler struct {
	cardService *services.CardService
	logger      zerolog.Logger
}

func NewCardHandler(cardService *services.CardService, logger zerolog.Logger) *CardHandler {
	return &CardHandler{
		cardService: cardService,
		logger:      logger,
	}
}

func (h *CardHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	userRole, _ := middleware.GetUserRole(r)
	activeOnly := userRole != string(models.RoleAdmin)

	products, err := h.cardService.ListProducts(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list card products")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to list card products")
		return
	}
	if products == nil {
		products = []*models.CardProduct{}
	}

	respondWithJSON(w, http.StatusOK, products)
}

func (h *CardHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req models.CardProductRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	productID, err := h.cardService.CreateProduct(r.Context(), &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "product_creation_failed", err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"product_id": productID})
}

func (h *CardHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]

	var req models.CardProductRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.cardService.UpdateProduct(r.Context(), productID, &req); err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			respondWithError(w, http.StatusNotFound, "product_not_found", "Card product not found")
			return
		}
		respondWithError(w, http.StatusBadRequest, "product_update_failed", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Card product updated"})
}

func (h *CardHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]

	if err := h.cardService.DeleteProduct(r.Context(), productID); err != nil {
		switch {
		case errors.Is(err, services.ErrProductNotFound):
			respondWithError(w, http.StatusNotFound, "product_not_found", "Card product not found")
		case errors.Is(err, services.ErrProductInUse):
			respondWithError(w, http.StatusConflict, "product_in_use", "Cards exist for this product; it cannot be deleted")
		default:
			h.logger.Error().Err(err).Str("product_id", productID).Msg("Failed to delete card product")
			respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to delete card product")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Card product deleted"})
}

func (h *CardHandler) SeedProducts(w http.ResponseWriter, r *http.Request) {
	count, err := h.cardService.SeedDefaultProducts(r.Context())
	if err != nil {
		respondWithError(w, http.StatusConflict, "seed_failed", err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Card products seeded",
		"count":   count,
	})
}

func (h *CardHandler) RequestCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.CardRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	cardID, err := h.cardService.RequestCard(r.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			respondWithError(w, http.StatusNotFound, "product_not_found", "Card product not found or inactive")
			return
		}
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Card request failed")
		respondWithError(w, http.StatusInternalServerError, "card_request_failed", "Card request could not be created")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{
		"card_id": cardID,
		"status":  string(models.CardStatusPending),
	})
}

func (h *CardHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	cardID := mux.Vars(r)["id"]
	if err := h.cardService.ConfirmPayment(r.Context(), userID, cardID); err != nil {
		if errors.Is(err, services.ErrCardNotFound) {
			respondWithError(w, http.StatusNotFound, "card_not_found", "Card not found")
			return
		}
		h.logger.Error().Err(err).Str("card_id", cardID).Msg("Payment confirmation failed")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Payment confirmation failed")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Payment confirmed"})
}

func (h *CardHandler) ListMyCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	cards, err := h.cardService.ListUserCards(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to list cards")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to list cards")
		return
	}
	if cards == nil {
		cards = []*models.CardListEntry{}
	}

	respondWithJSON(w, http.StatusOK, cards)
}

func (h *CardHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	pendingOnly := r.URL.Query().Get("status") == string(models.CardStatusPending)

	cards, err := h.cardService.ListRequests(r.Context(), pendingOnly)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list card requests")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to list card requests")
		return
	}
	if cards == nil {
		cards = []*models.CardListEntry{}
	}

	respondWithJSON(w, http.StatusOK, cards)
}

func (h *CardHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.cardService.Approve, "Card approved")
}

func (h *CardHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.cardService.Reject, "Card rejected")
}

func (h *CardHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.cardService.Suspend, "Card suspended")
}

func (h *CardHandler) Activate(w http.ResponseWriter, r *http.Request) {
	cardID := mux.Vars(r)["id"]

	if err := h.cardService.Activate(r.Context(), cardID); err != nil {
		if errors.Is(err, services.ErrCardNotFound) {
			respondWithError(w, http.StatusNotFound, "card_not_found", "Card not found")
			return
		}
		respondWithError(w, http.StatusBadRequest, "card_update_failed", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Card activated"})
}

// Issue returns the generated credentials once; the CVV is never served on
// later reads.
func (h *CardHandler) Issue(w http.ResponseWriter, r *http.Request) {
	cardID := mux.Vars(r)["id"]

	var req models.CardReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	card, err := h.cardService.Issue(r.Context(), cardID, req.AdminNotes)
	if err != nil {
		if errors.Is(err, services.ErrCardNotFound) {
			respondWithError(w, http.StatusNotFound, "card_not_found", "Card not found")
			return
		}
		h.logger.Error().Err(err).Str("card_id", cardID).Msg("Card issuance failed")
		respondWithError(w, http.StatusInternalServerError, "card_issuance_failed", "Card could not be issued")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Card issued",
		"card_id":     card.ID,
		"card_number": card.CardNumber,
		"cvv":         card.CVV,
		"expiry_date": card.ExpiryDate,
	})
}

func (h *CardHandler) updateStatus(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, cardID, notes string) error, message string) {
	cardID := mux.Vars(r)["id"]

	var req models.CardReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := fn(r.Context(), cardID, req.AdminNotes); err != nil {
		if errors.Is(err, services.ErrCardNotFound) {
			respondWithError(w, http.StatusNotFound, "card_not_found", "Card not found")
			return
		}
		respondWithError(w, http.StatusBadRequest, "card_update_failed", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": message})
}
