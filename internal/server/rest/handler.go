// Package rest exposes the upload lifecycle and the photo gallery over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dmitrijs2005/rapidphotos/internal/logging"
	"github.com/dmitrijs2005/rapidphotos/internal/server/metrics"
	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Uploads is the upload lifecycle as seen by the HTTP layer.
type Uploads interface {
	Initiate(ctx context.Context, ownerID string, req models.InitiateUploadRequest) (*models.InitiateUploadResponse, error)
	Complete(ctx context.Context, ownerID, photoID string, req models.UploadCompleteRequest) error
	Fail(ctx context.Context, ownerID, photoID, message string) error
	BatchComplete(ctx context.Context, ownerID string, items []models.BatchCompleteItem) (int, error)
	BatchStatus(ctx context.Context, ownerID, batchID string) (*models.BatchStatusResponse, error)
}

// Photos is the gallery read/query layer.
type Photos interface {
	List(ctx context.Context, ownerID string, page, pageSize int) (*models.PhotoListResponse, error)
	Get(ctx context.Context, ownerID, photoID string) (*models.PhotoDto, error)
	Delete(ctx context.Context, ownerID, photoID string) error
	UpdateTags(ctx context.Context, ownerID, photoID string, tags []string) ([]string, error)
}

// Handler wires HTTP routes to the upload and photo services.
type Handler struct {
	uploads        Uploads
	photos         Photos
	jwtSecret      []byte
	allowedOrigins []string
	logger         logging.Logger
	now            func() time.Time
}

// NewHandler creates a Handler instance.
func NewHandler(uploads Uploads, photos Photos, secretKey string, allowedOrigins []string, l logging.Logger) *Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Handler{
		uploads:        uploads,
		photos:         photos,
		jwtSecret:      []byte(secretKey),
		allowedOrigins: allowedOrigins,
		logger:         l.With("module", "rest"),
		now:            time.Now,
	}
}

// Router returns a configured chi router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authenticate)

		r.Route("/upload", func(r chi.Router) {
			r.Post("/initiate", h.handleInitiate)
			r.Post("/complete/batch", h.handleBatchComplete)
			r.Post("/complete/{photoId}", h.handleComplete)
			r.Post("/failed/{photoId}", h.handleFailed)
			r.Get("/batch/{batchId}/status", h.handleBatchStatus)
		})

		r.Route("/photos", func(r chi.Router) {
			r.Get("/", h.handleListPhotos)
			r.Get("/{photoId}", h.handleGetPhoto)
			r.Put("/{photoId}/tags", h.handleUpdateTags)
			r.Delete("/{photoId}", h.handleDeletePhoto)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
