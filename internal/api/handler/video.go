package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hszk-dev/mediacatalog/internal/api/middleware"
	"github.com/hszk-dev/mediacatalog/internal/domain/model"
	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
	"github.com/hszk-dev/mediacatalog/internal/usecase"
)

// Response types

type VideoResponse struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	YearLaunched int      `json:"year_launched"`
	Opened       bool     `json:"opened"`
	Rating       string   `json:"rating"`
	Duration     int      `json:"duration"`
	CategoryIDs  []string `json:"categories_id"`
	GenreIDs     []string `json:"genres_id"`
	CastMembers  []string `json:"cast_members_id"`

	VideoFile      string `json:"video_file,omitempty"`
	ThumbFile      string `json:"thumb_file,omitempty"`
	BannerFile     string `json:"banner_file,omitempty"`
	TrailerFile    string `json:"trailer_file,omitempty"`
	VideoFileURL   string `json:"video_file_url,omitempty"`
	ThumbFileURL   string `json:"thumb_file_url,omitempty"`
	BannerFileURL  string `json:"banner_file_url,omitempty"`
	TrailerFileURL string `json:"trailer_file_url,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// DefaultMaxUploadBytes bounds a create or update request body.
const DefaultMaxUploadBytes = 52 << 30

// VideoHandler handles video-related HTTP requests.
type VideoHandler struct {
	svc            usecase.VideoService
	maxUploadBytes int64
}

// NewVideoHandler creates a new VideoHandler.
// A non-positive maxUploadBytes uses DefaultMaxUploadBytes.
func NewVideoHandler(svc usecase.VideoService, maxUploadBytes int64) *VideoHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &VideoHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// Routes mounts the video endpoints on r.
func (h *VideoHandler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/restore", h.Restore)
	})
}

// Create handles POST /v1/videos
func (h *VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	defer form.close()

	output, err := h.svc.CreateVideo(r.Context(), form.attrs)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	JSON(w, http.StatusCreated, toVideoResponse(output))
}

// Update handles PUT /v1/videos/{id}
func (h *VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}

	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	defer form.close()

	output, err := h.svc.UpdateVideo(r.Context(), videoID, form.attrs)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	JSON(w, http.StatusOK, toVideoResponse(output))
}

// Get handles GET /v1/videos/{id}
func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}

	output, err := h.svc.GetVideo(r.Context(), videoID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	JSON(w, http.StatusOK, toVideoResponse(output))
}

// Delete handles DELETE /v1/videos/{id}
func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteVideo(r.Context(), videoID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Restore handles POST /v1/videos/{id}/restore
func (h *VideoHandler) Restore(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}

	output, err := h.svc.RestoreVideo(r.Context(), videoID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	JSON(w, http.StatusOK, toVideoResponse(output))
}

func (h *VideoHandler) readForm(w http.ResponseWriter, r *http.Request) (*parsedForm, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	form, err := parseVideoForm(r)
	if err == nil {
		return form, true
	}

	var maxErr *http.MaxBytesError
	var vErr *usecase.ValidationError
	switch {
	case errors.As(err, &maxErr):
		Error(w, http.StatusRequestEntityTooLarge, "request_too_large", "Request body exceeds the upload limit")
	case errors.As(err, &vErr):
		FieldError(w, http.StatusUnprocessableEntity, "validation_failed", vErr.Field, vErr.Error())
	default:
		Error(w, http.StatusBadRequest, "invalid_request", "Request body must be a valid form")
	}
	return nil, false
}

func videoIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_video_id", "Video ID must be a valid UUID")
		return uuid.Nil, false
	}
	return videoID, true
}

func (h *VideoHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *usecase.ValidationError
	switch {
	case errors.As(err, &vErr):
		FieldError(w, http.StatusUnprocessableEntity, "validation_failed", vErr.Field, vErr.Error())
		return
	case errors.Is(err, repository.ErrVideoNotFound):
		Error(w, http.StatusNotFound, "video_not_found", "Video not found")
		return
	case errors.Is(err, repository.ErrDuplicateVideo):
		Error(w, http.StatusConflict, "video_already_exists", "Video already exists")
		return
	}

	logger := middleware.RequestLogger(r.Context())
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn("request cancelled", slog.Any("error", err))
		Error(w, http.StatusServiceUnavailable, "request_cancelled", "Request was cancelled")
	case errors.Is(err, usecase.ErrStorageWrite):
		logger.Error("video files could not be stored", slog.Any("error", err))
		Error(w, http.StatusBadGateway, "storage_unavailable", "Video files could not be stored")
	default:
		logger.Error("video request failed", slog.Any("error", err))
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func toVideoResponse(out *usecase.VideoOutput) VideoResponse {
	v := out.Video
	return VideoResponse{
		ID:           v.ID.String(),
		Title:        v.Title,
		Description:  v.Description,
		YearLaunched: v.YearLaunched,
		Opened:       v.Opened,
		Rating:       v.Rating.String(),
		Duration:     v.Duration,
		CategoryIDs:  idStrings(v.CategoryIDs),
		GenreIDs:     idStrings(v.GenreIDs),
		CastMembers:  idStrings(v.CastMemberIDs),

		VideoFile:      v.VideoFile,
		ThumbFile:      v.ThumbFile,
		BannerFile:     v.BannerFile,
		TrailerFile:    v.TrailerFile,
		VideoFileURL:   out.FileURLs[model.FileVideo],
		ThumbFileURL:   out.FileURLs[model.FileThumb],
		BannerFileURL:  out.FileURLs[model.FileBanner],
		TrailerFileURL: out.FileURLs[model.FileTrailer],

		CreatedAt: v.CreatedAt.Format(time.RFC3339),
		UpdatedAt: v.UpdatedAt.Format(time.RFC3339),
	}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
