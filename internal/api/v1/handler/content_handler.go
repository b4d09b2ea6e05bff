package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ContentHandler handles learning content and PDF export endpoints

type ContentHandler struct {
	contentService service.ContentService
	pdfService     service.PDFService
	validate       *validator.Validate
	logger         zerolog.Logger
}

// NewContentHandler creates a new ContentHandler
func NewContentHandler(contentService service.ContentService, pdfService service.PDFService, validate *validator.Validate, logger zerolog.Logger) *ContentHandler {
	return &ContentHandler{
		contentService: contentService,
		pdfService:     pdfService,
		validate:       validate,
		logger:         logger,
	}
}

// RegisterRoutes mounts content routes under /content
func (h *ContentHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/content/generate", authMw(http.HandlerFunc(h.generateContent)))
	mux.Handle("/content/", authMw(http.HandlerFunc(h.handleContent)))
}

func (h *ContentHandler) handleContent(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/content/")
	audioFileID, rest, _ := strings.Cut(path, "/")
	if audioFileID == "" {
		http.NotFound(w, r)
		return
	}
	switch {
	case r.Method == http.MethodPost && rest == "pdf":
		h.exportPDF(w, r, audioFileID)
	case r.Method == http.MethodGet && rest == "":
		h.getOrGenerateContent(w, r, audioFileID)
	case r.Method == http.MethodDelete && rest == "":
		h.deleteContent(w, r, audioFileID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func contentDTO(c *model.LearningContent) dto.ContentResponseDTO {
	return dto.ContentResponseDTO{
		ContentID:   c.ID,
		AudioFileID: c.AudioFileID,
		Payload:     c.Payload,
		Model:       c.Model,
		CreatedAt:   c.CreatedAt,
	}
}

// generateContent godoc
// @Summary Generate learning content
// @Description Returns the learning content for an audio file, generating it from the transcript on first call.
// @Tags content
// @Accept json
// @Produce json
// @Success 200 {object} dto.GenerateContentResponseDTO
// @Failure 403 {string} string "Cost limit reached"
// @Failure 404 {string} string "Audio file or transcript not found"
// @Router /content/generate [post]
func (h *ContentHandler) generateContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}

	var req dto.GenerateContentRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "audio_file_id is required and must be a UUID")
		return
	}

	outcome, err := h.contentService.GetOrGenerate(r.Context(), userID, req.AudioFileID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, dto.GenerateContentResponseDTO{
		Content: contentDTO(outcome.Content),
		Source:  outcome.Source,
		Warning: outcome.Warning,
	})
}

// getOrGenerateContent godoc
// @Summary Get learning content
// @Description Returns the learning content for an audio file, generating it from the transcript on first fetch.
// @Tags content
// @Produce json
// @Param audioFileId path string true "Audio file ID"
// @Success 200 {object} dto.GenerateContentResponseDTO
// @Failure 403 {string} string "Cost limit reached"
// @Failure 404 {string} string "Audio file or transcript not found"
// @Router /content/{audioFileId} [get]
func (h *ContentHandler) getOrGenerateContent(w http.ResponseWriter, r *http.Request, audioFileID string) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}
	outcome, err := h.contentService.GetOrGenerate(r.Context(), userID, audioFileID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, dto.GenerateContentResponseDTO{
		Content: contentDTO(outcome.Content),
		Source:  outcome.Source,
		Warning: outcome.Warning,
	})
}

// exportPDF godoc
// @Summary Export learning content as PDF
// @Description Renders the stored learning content as a downloadable PDF.
// @Tags content
// @Produce application/pdf
// @Param audioFileId path string true "Audio file ID"
// @Success 200 {file} file "PDF document"
// @Failure 404 {string} string "Content not found"
// @Router /content/{audioFileId}/pdf [post]
func (h *ContentHandler) exportPDF(w http.ResponseWriter, r *http.Request, audioFileID string) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}
	content, err := h.contentService.GetContent(r.Context(), userID, audioFileID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if content == nil {
		writeError(w, http.StatusNotFound, "Content not found")
		return
	}

	pdfBytes, err := h.pdfService.RenderLearningContent(content)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="learning-content-%s.pdf"`, audioFileID))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdfBytes)))
	w.Write(pdfBytes)
}

// deleteContent godoc
// @Summary Delete learning content
// @Description Removes the generated content; the transcript and audio file are untouched.
// @Tags content
// @Produce json
// @Param audioFileId path string true "Audio file ID"
// @Success 200 {object} map[string]string
// @Router /content/{audioFileId} [delete]
func (h *ContentHandler) deleteContent(w http.ResponseWriter, r *http.Request, audioFileID string) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}
	if err := h.contentService.DeleteContent(r.Context(), userID, audioFileID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"message": "content deleted"})
}
