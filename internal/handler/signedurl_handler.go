// Package handler provides HTTP handlers for the Fletcher Signer API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/fletcher-signer/internal/service"
)

// SignedURLHandler handles signed upload URL requests.
type SignedURLHandler struct {
	service service.UploadURLService
	logger  zerolog.Logger
}

// SignedURLHandlerConfig contains configuration for the handler.
type SignedURLHandlerConfig struct {
	Service service.UploadURLService
	Logger  zerolog.Logger
}

// NewSignedURLHandler creates a new signed URL handler.
func NewSignedURLHandler(cfg SignedURLHandlerConfig) *SignedURLHandler {
	return &SignedURLHandler{
		service: cfg.Service,
		logger:  cfg.Logger.With().Str("handler", "signed-url").Logger(),
	}
}

// RegisterRoutes registers signed URL routes.
func (h *SignedURLHandler) RegisterRoutes(r chi.Router) {
	r.Post("/signed-url", h.handleCreateSignedURL)
	r.Get("/debug/identity", h.handleDebugIdentity)
}

// createSignedURLRequest is the request body for POST /signed-url.
// Pointer fields distinguish omitted from explicitly empty: an omitted
// content_type means image/jpeg, an explicitly empty one falls through
// to application/octet-stream.
type createSignedURLRequest struct {
	Filename       *string `json:"filename"`
	ContentType    *string `json:"content_type"`
	ExpiresMinutes *int    `json:"expires_minutes"`
}

// signedURLResponse is the response body for POST /signed-url.
type signedURLResponse struct {
	URL         string    `json:"url"`
	Method      string    `json:"method"`
	BlobName    string    `json:"blob_name"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// identityResponse is the response body for GET /debug/identity.
type identityResponse struct {
	Backend        string `json:"backend"`
	SignerIdentity string `json:"signer_identity"`
	Bucket         string `json:"bucket"`
}

func (h *SignedURLHandler) handleCreateSignedURL(w http.ResponseWriter, r *http.Request) {
	var req createSignedURLRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetailError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	input := service.CreateUploadURLInput{}
	if req.Filename != nil {
		input.Filename = *req.Filename
	}
	if req.ContentType != nil {
		input.ContentType = *req.ContentType
	} else {
		input.ContentType = "image/jpeg"
	}
	if req.ExpiresMinutes != nil && *req.ExpiresMinutes != 0 {
		input.Expiry = time.Duration(*req.ExpiresMinutes) * time.Minute
	}

	output, err := h.service.CreateUploadURL(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, signedURLResponse{
		URL:         output.URL,
		Method:      output.Method,
		BlobName:    output.BlobName,
		ContentType: output.ContentType,
		ExpiresAt:   output.ExpiresAt,
	})
}

func (h *SignedURLHandler) handleDebugIdentity(w http.ResponseWriter, r *http.Request) {
	identity := h.service.Identity()
	writeJSON(w, http.StatusOK, identityResponse{
		Backend:        identity.Backend,
		SignerIdentity: identity.SignerIdentity,
		Bucket:         identity.Bucket,
	})
}

// writeServiceError maps service errors to HTTP status codes. The split is
// made once, here: validation failures are the client's fault, everything
// else is ours.
func (h *SignedURLHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidExpiration),
		errors.Is(err, service.ErrInvalidFilename):
		writeDetailError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("failed to create signed URL")
		writeDetailError(w, http.StatusInternalServerError, "Error generating signed URL")
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetailError writes an error response as {"detail": message}.
func writeDetailError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
