package relay

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/your-org/thumbrelay/internal/thumbnail"
)

// HTTPHandler exposes health, stats and an on-demand conversion endpoint.
type HTTPHandler struct {
	service      *Service
	logger       *zap.Logger
	maxSizeBytes int64
	router       chi.Router
}

// NewHTTPHandler constructs the HTTP handler and wires routes.
func NewHTTPHandler(service *Service, logger *zap.Logger, maxSizeBytes int64) *HTTPHandler {
	h := &HTTPHandler{
		service:      service,
		logger:       logger,
		maxSizeBytes: maxSizeBytes,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Get("/api/v1/stats", h.handleStats)
	r.Post("/api/v1/thumbnails", h.handleConvert)

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	spec := h.service.Spec()
	writeJSON(w, http.StatusOK, map[string]any{
		"thumbnail_size": spec.MaxDimension,
		"jpeg_quality":   spec.JPEGQuality,
		"stats":          h.service.Stats(),
	})
}

func (h *HTTPHandler) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxSizeBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxSizeBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	log := h.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
	res, err := h.service.Convert(payload, log)
	if err != nil {
		writeError(w, statusForKind(thumbnail.KindOf(err)), err.Error())
		return
	}

	w.Header().Set("Content-Type", contentTypeJPEG)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Thumbnail-Width", strconv.Itoa(res.Width))
	w.Header().Set("X-Thumbnail-Height", strconv.Itoa(res.Height))
	w.Header().Set("X-Source-Format", res.SourceFormat.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		log.Warn("write thumbnail response", zap.Error(err))
	}
}

func statusForKind(kind thumbnail.Kind) int {
	switch kind {
	case thumbnail.KindPayloadTooSmall, thumbnail.KindUnrecognizedFormat:
		return http.StatusUnsupportedMediaType
	case thumbnail.KindDecodeFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
