package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/rapidphotos/internal/common"
	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
	"github.com/go-chi/chi/v5"
)

const defaultFailureMessage = "Unknown error"

// decodeBody decodes a JSON request body. An empty body is accepted when
// optional is set and leaves dst untouched.
func decodeBody(r *http.Request, dst any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return common.NewValidationError("Invalid request payload")
	}
	return nil
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req models.InitiateUploadRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.uploads.Initiate(r.Context(), ownerID(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req models.UploadCompleteRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.uploads.Complete(r.Context(), ownerID(r), chi.URLParam(r, "photoId"), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w)
}

func (h *Handler) handleFailed(w http.ResponseWriter, r *http.Request) {
	var req models.UploadFailedRequest
	if err := decodeBody(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	message := req.ErrorMessage
	if message == "" {
		message = defaultFailureMessage
	}

	if err := h.uploads.Fail(r.Context(), ownerID(r), chi.URLParam(r, "photoId"), message); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w)
}

func (h *Handler) handleBatchComplete(w http.ResponseWriter, r *http.Request) {
	var req models.BatchCompleteRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	processed, err := h.uploads.BatchComplete(r.Context(), ownerID(r), req.Items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BatchCompleteResponse{
		Status:    "success",
		Processed: processed,
		Total:     len(req.Items),
	})
}

func (h *Handler) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.uploads.BatchStatus(r.Context(), ownerID(r), chi.URLParam(r, "batchId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
