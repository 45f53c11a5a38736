package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seller-portal/internal/auth"
	"seller-portal/internal/logger"
	"seller-portal/internal/models"
	"seller-portal/internal/utils"
)

type Handler struct {
	Publication *PublicationSettings
	Logger      *logger.Logger
}

func NewHandler(publication *PublicationSettings, log *logger.Logger) *Handler {
	return &Handler{Publication: publication, Logger: log}
}

// RegisterRoutes expects auth.Middleware to have run already.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin(h.Logger))
		r.Get("/admin/settings/publication-id", h.GetPublicationID)
		r.Put("/admin/settings/publication-id", h.PutPublicationID)
	})
}

func (h *Handler) GetPublicationID(w http.ResponseWriter, r *http.Request) {
	id, err := h.Publication.Get(r.Context())
	if err != nil {
		h.Logger.Error("SETTINGS", fmt.Sprintf("GetPublicationID: %v", err))
		utils.ErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.PublicationIDResponse{OK: true, PublicationID: id})
}

func (h *Handler) PutPublicationID(w http.ResponseWriter, r *http.Request) {
	var req models.PublicationIDRequest
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.Publication.Set(r.Context(), req.PublicationID, auth.UserID(r.Context()))
	if errors.Is(err, ErrInvalid) {
		utils.WriteError(w, http.StatusBadRequest, models.ErrorResponse{Error: "publicationId is too long", Field: "publicationId"})
		return
	}
	if err != nil {
		h.Logger.Error("SETTINGS", fmt.Sprintf("PutPublicationID: %v", err))
		utils.ErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.PublicationIDResponse{OK: true, PublicationID: id})
}
