package handlers

import (
	"errors"
	"net/http"

	"digibank/internal/middleware"
	"digibank/internal/models"
	"digibank/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type SupportHandler struct {
	supportService *services.SupportService
	logger         zerolog.Logger
}

func NewSupportHandler(supportService *services.SupportService, logger zerolog.Logger) *SupportHandler {
	return &SupportHandler{
		supportService: supportService,
		logger:         logger,
	}
}

func (h *SupportHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.CreateChatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	chatID, err := h.supportService.CreateChat(r.Context(), userID, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "chat_creation_failed", err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"chat_id": chatID})
}

func (h *SupportHandler) ListMyChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	chats, err := h.supportService.ListUserChats(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to list chats")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to list chats")
		return
	}
	if chats == nil {
		chats = []*models.SupportChat{}
	}

	respondWithJSON(w, http.StatusOK, chats)
}

func (h *SupportHandler) ListAllChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.supportService.ListAllChats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list chats")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to list chats")
		return
	}
	if chats == nil {
		chats = []*models.ChatWithUser{}
	}

	respondWithJSON(w, http.StatusOK, chats)
}

func (h *SupportHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}
	userRole, _ := middleware.GetUserRole(r)

	chatID := mux.Vars(r)["id"]
	detail, err := h.supportService.GetChatDetail(r.Context(), chatID, userID, userRole)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			respondWithError(w, http.StatusNotFound, "chat_not_found", "Chat not found")
		case errors.Is(err, services.ErrChatForbidden):
			respondWithError(w, http.StatusForbidden, "forbidden", "You can only view your own chats")
		default:
			h.logger.Error().Err(err).Str("chat_id", chatID).Msg("Failed to load chat")
			respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to load chat")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, detail)
}

func (h *SupportHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}
	userRole, _ := middleware.GetUserRole(r)

	var req models.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	chatID := mux.Vars(r)["id"]
	messageID, err := h.supportService.SendMessage(r.Context(), chatID, userID, userRole, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			respondWithError(w, http.StatusNotFound, "chat_not_found", "Chat not found")
		case errors.Is(err, services.ErrChatForbidden):
			respondWithError(w, http.StatusForbidden, "forbidden", "You can only write to your own chats")
		default:
			respondWithError(w, http.StatusBadRequest, "message_failed", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"message_id": messageID})
}

func (h *SupportHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}
	userRole, _ := middleware.GetUserRole(r)

	chatID := mux.Vars(r)["id"]
	if err := h.supportService.MarkMessagesRead(r.Context(), chatID, userID, userRole); err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			respondWithError(w, http.StatusNotFound, "chat_not_found", "Chat not found")
		case errors.Is(err, services.ErrChatForbidden):
			respondWithError(w, http.StatusForbidden, "forbidden", "You can only update your own chats")
		default:
			h.logger.Error().Err(err).Str("chat_id", chatID).Msg("Failed to mark messages read")
			respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to mark messages read")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Messages marked read"})
}

func (h *SupportHandler) UpdateChatStatus(w http.ResponseWriter, r *http.Request) {
	var req models.ChatStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	chatID := mux.Vars(r)["id"]
	if err := h.supportService.UpdateChatStatus(r.Context(), chatID, req.Status); err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			respondWithError(w, http.StatusNotFound, "chat_not_found", "Chat not found")
		case errors.Is(err, services.ErrInvalidStatus):
			respondWithError(w, http.StatusBadRequest, "invalid_status", "Status must be open, pending, or closed")
		default:
			h.logger.Error().Err(err).Str("chat_id", chatID).Msg("Failed to update chat status")
			respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to update chat status")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Chat status updated"})
}

func (h *SupportHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}
	userRole, _ := middleware.GetUserRole(r)

	count, err := h.supportService.UnreadCount(r.Context(), userID, userRole)
	if err != nil {
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to count unread messages")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to count unread messages")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}
