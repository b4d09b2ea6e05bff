package handler

import (
	"net/http"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// TranscriptHandler handles flat transcript endpoints

type TranscriptHandler struct {
	transcriptionService service.TranscriptionService
	validate             *validator.Validate
	logger               zerolog.Logger
}

// NewTranscriptHandler creates a new TranscriptHandler
func NewTranscriptHandler(transcriptionService service.TranscriptionService, validate *validator.Validate, logger zerolog.Logger) *TranscriptHandler {
	return &TranscriptHandler{
		transcriptionService: transcriptionService,
		validate:             validate,
		logger:               logger,
	}
}

// RegisterRoutes mounts transcript routes under /transcripts/{id}
func (h *TranscriptHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/transcripts", authMw(http.HandlerFunc(h.handleCollection)))
	mux.Handle("/transcripts/", authMw(http.HandlerFunc(h.handleTranscript)))
}

func (h *TranscriptHandler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTranscripts(w, r)
	case http.MethodPost:
		h.createTranscript(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (h *TranscriptHandler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/transcripts/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.getTranscript(w, r, id)
	case http.MethodPut:
		h.updateTranscript(w, r, id)
	case http.MethodDelete:
		h.deleteTranscript(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// listTranscripts godoc
// @Summary List transcripts
// @Description Lists the authenticated user's transcripts, newest first.
// @Tags transcripts
// @Produce json
// @Success 200 {array} dto.TranscriptResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Router /transcripts [get]
func (h *TranscriptHandler) listTranscripts(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}
	limit, offset := pageParams(r)
	transcripts, err := h.transcriptionService.ListTranscripts(r.Context(), userID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]dto.TranscriptResponseDTO, 0, len(transcripts))
	for i := range transcripts {
		resp = append(resp, transcriptDTO(&transcripts[i]))
	}
	writeSuccess(w, http.StatusOK, resp)
}

// createTranscript godoc
// @Summary Create a transcript
// @Description Stores caller-supplied transcript text for an audio file. Returns the existing transcript when one is already stored.
// @Tags transcripts
// @Accept json
// @Produce json
// @Success 201 {object} dto.TranscriptResponseDTO
// @Failure 404 {string} string "Audio file not found"
// @Router /transcripts [post]
func (h *TranscriptHandler) createTranscript(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}
	var req dto.TranscriptCreateDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "audio_file_id and content are required")
		return
	}
	transcript, err := h.transcriptionService.CreateTranscript(r.Context(), userID, req.AudioFileID, req.Content, req.Language)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, transcriptDTO(transcript))
}

// getTranscript godoc
// @Summary Get a transcript
// @Description Retrieves a transcript by its ID.
// @Tags transcripts
// @Produce json
// @Param transcriptId path string true "Transcript ID"
// @Success 200 {object} dto.TranscriptResponseDTO
// @Failure 404 {string} string "Transcript not found"
// @Router /transcripts/{transcriptId} [get]
func (h *TranscriptHandler) getTranscript(w http.ResponseWriter, r *http.Request, id string) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}
	transcript, err := h.transcriptionService.GetTranscript(r.Context(), id, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if transcript == nil {
		writeError(w, http.StatusNotFound, "Transcript not found")
		return
	}
	writeSuccess(w, http.StatusOK, transcriptDTO(transcript))
}

// updateTranscript godoc
// @Summary Update a transcript
// @Description Replaces the transcript text; the word count is recomputed.
// @Tags transcripts
// @Accept json
// @Produce json
// @Param transcriptId path string true "Transcript ID"
// @Success 200 {object} dto.TranscriptResponseDTO
// @Failure 404 {string} string "Transcript not found"
// @Router /transcripts/{transcriptId} [put]
func (h *TranscriptHandler) updateTranscript(w http.ResponseWriter, r *http.Request, id string) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}
	var req dto.TranscriptUpdateDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	transcript, err := h.transcriptionService.UpdateTranscript(r.Context(), userID, id, req.Content, req.Language)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if transcript == nil {
		writeError(w, http.StatusNotFound, "Transcript not found")
		return
	}
	writeSuccess(w, http.StatusOK, transcriptDTO(transcript))
}

// deleteTranscript godoc
// @Summary Delete a transcript
// @Description Removes a transcript. The audio file is untouched.
// @Tags transcripts
// @Produce json
// @Param transcriptId path string true "Transcript ID"
// @Success 200 {object} map[string]string
// @Router /transcripts/{transcriptId} [delete]
func (h *TranscriptHandler) deleteTranscript(w http.ResponseWriter, r *http.Request, id string) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}
	if err := h.transcriptionService.DeleteTranscript(r.Context(), id, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"message": "transcript deleted"})
}
