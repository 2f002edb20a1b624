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

type KycHandler struct {
	kycService *services.KycService
	logger     zerolog.Logger
}

func NewKycHandler(kycService *services.KycService, logger zerolog.Logger) *KycHandler {
	return &KycHandler{
		kycService: kycService,
		logger:     logger,
	}
}

func (h *KycHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.KycRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.kycService.Submit(r.Context(), userID, &req); err != nil {
		h.logger.Error().Err(err).Int("user_id", userID).Msg("KYC submission failed")
		respondWithError(w, http.StatusBadRequest, "kyc_submission_failed", err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{
		"message": "KYC submitted for review",
		"status":  string(models.KycStatusPending),
	})
}

func (h *KycHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	submission, err := h.kycService.GetByUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrKycNotFound) {
			respondWithError(w, http.StatusNotFound, "kyc_not_found", "No KYC submission on file")
			return
		}
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to fetch KYC status")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to fetch KYC status")
		return
	}

	respondWithJSON(w, http.StatusOK, submission)
}

func (h *KycHandler) List(w http.ResponseWriter, r *http.Request) {
	pendingOnly := r.URL.Query().Get("status") == string(models.KycStatusPending)

	entries, err := h.kycService.List(r.Context(), pendingOnly)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list KYC submissions")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to list KYC submissions")
		return
	}
	if entries == nil {
		entries = []*models.KycListEntry{}
	}

	respondWithJSON(w, http.StatusOK, entries)
}

func (h *KycHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.kycService.Approve)
}

func (h *KycHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.kycService.Reject)
}

func (h *KycHandler) review(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, kycID, notes string) error) {
	kycID := mux.Vars(r)["id"]

	var req models.KycReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := fn(r.Context(), kycID, req.AdminNotes); err != nil {
		if errors.Is(err, services.ErrKycNotFound) {
			respondWithError(w, http.StatusNotFound, "kyc_not_found", "KYC submission not found")
			return
		}
		respondWithError(w, http.StatusBadRequest, "kyc_review_failed", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "KYC review recorded"})
}
