package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

const (
	messageUnexpected       = "An unexpected error occurred"
	messageValidationFailed = "Validation failed"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).WithField("component", "http").Warn("failed to write response body")
	}
}

func writeError(w http.ResponseWriter, status int, message string, fields map[string]string) {
	writeJSON(w, status, errorResponse{
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Errors:    fields,
	})
}

// statusForError сопоставляет доменную ошибку с HTTP статусом.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case domain.IsInvalidOrder(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		writeError(w, status, messageUnexpected, nil)
		return
	}

	message := err.Error()
	var invalid *domain.InvalidOrderError
	if errors.As(err, &invalid) {
		message = invalid.PublicMessage()
		if invalid.ProductID > 0 {
			h.logger.WithError(err).WithField("product_id", invalid.ProductID).Warn("order rejected by product check")
		}
	}
	writeError(w, status, message, nil)
}
