package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AudioHandler handles audio upload and transcription endpoints

type AudioHandler struct {
	audioService         service.AudioService
	transcriptionService service.TranscriptionService
	validate             *validator.Validate
	logger               zerolog.Logger
}

// NewAudioHandler creates a new AudioHandler
func NewAudioHandler(
	audioService service.AudioService,
	transcriptionService service.TranscriptionService,
	validate *validator.Validate,
	logger zerolog.Logger,
) *AudioHandler {
	return &AudioHandler{
		audioService:         audioService,
		transcriptionService: transcriptionService,
		validate:             validate,
		logger:               logger,
	}
}

// RegisterRoutes mounts audio routes under /audio
func (h *AudioHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/audio", authMw(http.HandlerFunc(h.listAudioFiles)))
	mux.Handle("/audio/upload", authMw(http.HandlerFunc(h.uploadAudio)))
	mux.Handle("/audio/transcribe", authMw(http.HandlerFunc(h.transcribe)))
	mux.Handle("/audio/transcribe/stream", authMw(http.HandlerFunc(h.transcribeStream)))
	mux.Handle("/audio/", authMw(http.HandlerFunc(h.handleAudioFile)))
}

func (h *AudioHandler) handleAudioFile(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/audio/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.getAudioFile(w, r, id)
	case http.MethodDelete:
		h.deleteAudioFile(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func audioFileDTO(f *model.AudioFile) dto.AudioFileResponseDTO {
	return dto.AudioFileResponseDTO{
		AudioFileID: f.ID,
		FileName:    f.FileName,
		SizeBytes:   f.SizeBytes,
		MimeType:    f.MimeType,
		Status:      f.Status,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func transcriptDTO(t *model.Transcript) dto.TranscriptResponseDTO {
	return dto.TranscriptResponseDTO{
		TranscriptID: t.ID,
		AudioFileID:  t.AudioFileID,
		Content:      t.Content,
		Language:     t.Language,
		WordCount:    t.WordCount,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// uploadAudio godoc
// @Summary Upload an audio file
// @Description Accepts a multipart upload of at most 50MB and stores it for transcription.
// @Tags audio
// @Accept mpfd
// @Produce json
// @Param file formData file true "Audio file"
// @Success 201 {object} dto.AudioFileResponseDTO
// @Failure 400 {string} string "Invalid file"
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Router /audio/upload [post]
func (h *AudioHandler) uploadAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}

	// Cap the request body before any parsing so an oversized upload never
	// reaches storage.
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if err := h.audioService.ValidateUpload(header.Size, mimeType); err != nil {
		writeServiceError(w, err)
		return
	}

	created, err := h.audioService.Upload(r.Context(), userID, header.Filename, mimeType, header.Size, file)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, audioFileDTO(created))
}

// listAudioFiles godoc
// @Summary List audio files
// @Description Lists the authenticated user's audio files, newest first.
// @Tags audio
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} dto.AudioFileResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Router /audio [get]
func (h *AudioHandler) listAudioFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}

	limit, offset := pageParams(r)
	files, err := h.audioService.ListAudioFiles(r.Context(), userID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]dto.AudioFileResponseDTO, 0, len(files))
	for i := range files {
		resp = append(resp, audioFileDTO(&files[i]))
	}
	writeSuccess(w, http.StatusOK, resp)
}

func pageParams(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// getAudioFile godoc
// @Summary Get an audio file
// @Description Retrieves an audio file's metadata and processing status.
// @Tags audio
// @Produce json
// @Param audioFileId path string true "Audio file ID"
// @Success 200 {object} dto.AudioFileResponseDTO
// @Failure 404 {string} string "Audio file not found"
// @Router /audio/{audioFileId} [get]
func (h *AudioHandler) getAudioFile(w http.ResponseWriter, r *http.Request, id string) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}
	file, err := h.audioService.GetAudioFile(r.Context(), id, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if file == nil {
		writeError(w, http.StatusNotFound, "Audio file not found")
		return
	}
	writeSuccess(w, http.StatusOK, audioFileDTO(file))
}

// deleteAudioFile godoc
// @Summary Delete an audio file
// @Description Removes the audio file, its transcript, and generated content.
// @Tags audio
// @Produce json
// @Param audioFileId path string true "Audio file ID"
// @Success 200 {object} map[string]string
// @Failure 404 {string} string "Audio file not found"
// @Router /audio/{audioFileId} [delete]
func (h *AudioHandler) deleteAudioFile(w http.ResponseWriter, r *http.Request, id string) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}
	if err := h.audioService.DeleteAudioFile(r.Context(), id, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"message": "audio file deleted"})
}

// transcribe godoc
// @Summary Transcribe an audio file
// @Description Returns the transcript, generating it on first call. Subsequent calls return the stored transcript without charging.
// @Tags audio
// @Accept json
// @Produce json
// @Success 200 {object} dto.TranscribeResponseDTO
// @Failure 403 {string} string "Usage or cost limit reached"
// @Failure 404 {string} string "Audio file not found"
// @Router /audio/transcribe [post]
func (h *AudioHandler) transcribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}

	var req dto.TranscribeRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "audio_file_id is required and must be a UUID")
		return
	}

	outcome, err := h.transcriptionService.Transcribe(r.Context(), userID, req.AudioFileID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, dto.TranscribeResponseDTO{
		Transcript: transcriptDTO(outcome.Transcript),
		Source:     outcome.Source,
		Warning:    outcome.Warning,
	})
}

type streamEvent struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

type streamComplete struct {
	Type       string                    `json:"type"`
	Transcript dto.TranscriptResponseDTO `json:"transcript"`
	Source     string                    `json:"source"`
	Warning    string                    `json:"warning,omitempty"`
}

// transcribeStream godoc
// @Summary Transcribe an audio file over SSE
// @Description Streams progress events while transcription runs, then the transcript in chunks, then a completion event.
// @Tags audio
// @Accept json
// @Produce text/event-stream
// @Success 200 {string} string "SSE stream"
// @Router /audio/transcribe/stream [post]
func (h *AudioHandler) transcribeStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}

	var req dto.TranscribeRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "audio_file_id is required and must be a UUID")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	type result struct {
		outcome *service.TranscribeOutcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := h.transcriptionService.Transcribe(r.Context(), userID, req.AudioFileID)
		done <- result{outcome, err}
	}()

	// Keep-alive progress events while the provider call runs.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var res result
loop:
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			h.sendEvent(w, flusher, streamEvent{Type: "progress"})
		case res = <-done:
			break loop
		}
	}

	if res.err != nil {
		h.sendEvent(w, flusher, streamEvent{Type: "error", Error: res.err.Error()})
		return
	}

	// Emit the transcript in word chunks so clients can render
	// incrementally, then the full record.
	for _, chunk := range chunkWords(res.outcome.Transcript.Content, 40) {
		h.sendEvent(w, flusher, streamEvent{Type: "chunk", Text: chunk})
	}
	h.sendEvent(w, flusher, streamComplete{
		Type:       "complete",
		Transcript: transcriptDTO(res.outcome.Transcript),
		Source:     res.outcome.Source,
		Warning:    res.outcome.Warning,
	})
}

func (h *AudioHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal stream event")
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		h.logger.Debug().Err(err).Msg("Client disconnected during stream")
		return
	}
	flusher.Flush()
}

// chunkWords splits text into chunks of at most n words.
func chunkWords(text string, n int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]string, 0, len(words)/n+1)
	for start := 0; start < len(words); start += n {
		end := start + n
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
