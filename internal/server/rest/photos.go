package rest

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/rapidphotos/internal/common"
	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
	"github.com/go-chi/chi/v5"
)

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.NewValidationError("Invalid %s parameter", name)
	}
	return v, nil
}

func (h *Handler) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "pageSize", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.photos.List(r.Context(), ownerID(r), page, pageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	res, err := h.photos.Get(r.Context(), ownerID(r), chi.URLParam(r, "photoId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTagsRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.photos.UpdateTags(r.Context(), ownerID(r), chi.URLParam(r, "photoId"), req.Tags); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w)
}

func (h *Handler) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := h.photos.Delete(r.Context(), ownerID(r), chi.URLParam(r, "photoId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w)
}
