package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/rapidphotos/internal/common"
)

const (
	KindNotFound           = "NOT_FOUND"
	KindVerificationFailed = "VERIFICATION_FAILED"
	KindValidationFailed   = "VALIDATION_FAILED"
	KindUnauthenticated    = "UNAUTHENTICATED"
	KindInternal           = "INTERNAL"
)

// ApiError is the JSON body of every non-2xx response.
type ApiError struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}

// classify maps a service error onto an HTTP status, error kind and message.
func classify(err error) (int, string, string) {
	var (
		limitErr        *common.LimitError
		verificationErr *common.VerificationError
		validationErr   *common.ValidationError
		notFoundErr     *common.NotFoundError
	)

	switch {
	case errors.As(err, &limitErr):
		return http.StatusTooManyRequests, string(limitErr.Kind), limitErr.Message
	case errors.As(err, &verificationErr):
		return http.StatusUnprocessableEntity, KindVerificationFailed, verificationErr.Reason
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, KindValidationFailed, validationErr.Message
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, KindNotFound, notFoundErr.Message
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, KindNotFound, "Not found"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, KindUnauthenticated, "Authentication required"
	default:
		return http.StatusInternalServerError, KindInternal, "Internal server error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind, message := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ApiError{
		Timestamp: h.now().UTC(),
		Status:    status,
		Kind:      kind,
		Message:   message,
		Path:      r.URL.Path,
	})
}
