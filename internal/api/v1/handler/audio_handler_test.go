package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubAudioService struct {
	uploaded  *model.AudioFile
	uploadErr error
	uploads   int
}

func (s *stubAudioService) ValidateUpload(sizeBytes int64, mimeType string) error {
	if sizeBytes > service.MaxUploadBytes {
		return service.ErrFileTooLarge
	}
	if !strings.HasPrefix(mimeType, "audio/") {
		return service.ErrUnsupportedType
	}
	return nil
}

func (s *stubAudioService) Upload(ctx context.Context, userID, fileName, mimeType string, sizeBytes int64, body io.Reader) (*model.AudioFile, error) {
	s.uploads++
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return s.uploaded, nil
}

func (s *stubAudioService) GetAudioFile(ctx context.Context, id, userID string) (*model.AudioFile, error) {
	if s.uploaded != nil && s.uploaded.ID == id {
		return s.uploaded, nil
	}
	return nil, nil
}

func (s *stubAudioService) ListAudioFiles(ctx context.Context, userID string, limit, offset int) ([]model.AudioFile, error) {
	return nil, nil
}

func (s *stubAudioService) DeleteAudioFile(ctx context.Context, id, userID string) error {
	return nil
}

func (s *stubAudioService) DeleteAllForUser(ctx context.Context, userID string) error {
	return nil
}

type stubTranscriptionService struct {
	outcome *service.TranscribeOutcome
	err     error
}

func (s *stubTranscriptionService) Transcribe(ctx context.Context, userID, audioFileID string) (*service.TranscribeOutcome, error) {
	return s.outcome, s.err
}

func (s *stubTranscriptionService) CreateTranscript(ctx context.Context, userID, audioFileID, content, language string) (*model.Transcript, error) {
	return nil, nil
}

func (s *stubTranscriptionService) GetTranscript(ctx context.Context, id, userID string) (*model.Transcript, error) {
	return nil, nil
}

func (s *stubTranscriptionService) ListTranscripts(ctx context.Context, userID string, limit, offset int) ([]model.Transcript, error) {
	return nil, nil
}

func (s *stubTranscriptionService) UpdateTranscript(ctx context.Context, userID, id, content, language string) (*model.Transcript, error) {
	return nil, nil
}

func (s *stubTranscriptionService) DeleteTranscript(ctx context.Context, id, userID string) error {
	return nil
}

func newAudioHandlerFixture() (*AudioHandler, *stubAudioService, *stubTranscriptionService) {
	audioSvc := &stubAudioService{uploaded: &model.AudioFile{
		ID: "11111111-1111-4111-8111-111111111111", UserID: "u1",
		FileName: "lecture.mp3", MimeType: "audio/mpeg", SizeBytes: 11, Status: model.StatusUploaded,
	}}
	transcriptionSvc := &stubTranscriptionService{outcome: &service.TranscribeOutcome{
		Transcript: &model.Transcript{ID: "t1", AudioFileID: "11111111-1111-4111-8111-111111111111", Content: "hi", WordCount: 1},
		Source:     service.SourceGenerated,
	}}
	h := NewAudioHandler(audioSvc, transcriptionSvc, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	return h, audioSvc, transcriptionSvc
}

func authedRequest(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, userID)
	return r.WithContext(ctx)
}

func multipartBody(t *testing.T, fieldName, fileName, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="`+fileName+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadAudioSuccess(t *testing.T) {
	h, svc, _ := newAudioHandlerFixture()
	body, contentType := multipartBody(t, "file", "lecture.mp3", "audio/mpeg", "audio-bytes")

	req := httptest.NewRequest(http.MethodPost, "/audio/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.uploadAudio(rec, authedRequest(req, "u1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 1, svc.uploads)

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.Contains(t, string(envelope.Data), "lecture.mp3")
}

func TestUploadAudioRejectsUnsupportedTypeBeforeStorage(t *testing.T) {
	h, svc, _ := newAudioHandlerFixture()
	body, contentType := multipartBody(t, "file", "doc.pdf", "application/pdf", "%PDF-")

	req := httptest.NewRequest(http.MethodPost, "/audio/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.uploadAudio(rec, authedRequest(req, "u1"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, svc.uploads, "rejected before any storage write")

	var envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.False(t, envelope.Success)
	require.NotEmpty(t, envelope.Error)
}

func TestUploadAudioMissingFileField(t *testing.T) {
	h, _, _ := newAudioHandlerFixture()
	body, contentType := multipartBody(t, "attachment", "lecture.mp3", "audio/mpeg", "audio-bytes")

	req := httptest.NewRequest(http.MethodPost, "/audio/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.uploadAudio(rec, authedRequest(req, "u1"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadAudioUnauthenticated(t *testing.T) {
	h, _, _ := newAudioHandlerFixture()
	body, contentType := multipartBody(t, "file", "lecture.mp3", "audio/mpeg", "audio-bytes")

	req := httptest.NewRequest(http.MethodPost, "/audio/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.uploadAudio(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTranscribeValidatesBody(t *testing.T) {
	h, _, _ := newAudioHandlerFixture()

	req := httptest.NewRequest(http.MethodPost, "/audio/transcribe", strings.NewReader(`{"audio_file_id":"not-a-uuid"}`))
	rec := httptest.NewRecorder()
	h.transcribe(rec, authedRequest(req, "u1"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranscribeReturnsOutcome(t *testing.T) {
	h, _, _ := newAudioHandlerFixture()

	req := httptest.NewRequest(http.MethodPost, "/audio/transcribe", strings.NewReader(`{"audio_file_id":"11111111-1111-4111-8111-111111111111"}`))
	rec := httptest.NewRecorder()
	h.transcribe(rec, authedRequest(req, "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Source     string `json:"source"`
			Transcript struct {
				Content string `json:"content"`
			} `json:"transcript"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.Equal(t, "generated", envelope.Data.Source)
	require.Equal(t, "hi", envelope.Data.Transcript.Content)
}

func TestTranscribeMapsLimitErrors(t *testing.T) {
	h, _, transcriptionSvc := newAudioHandlerFixture()
	transcriptionSvc.outcome = nil
	transcriptionSvc.err = &service.UsageLimitError{Message: "monthly transcription limit reached (30 of 30 minutes used)"}

	req := httptest.NewRequest(http.MethodPost, "/audio/transcribe", strings.NewReader(`{"audio_file_id":"11111111-1111-4111-8111-111111111111"}`))
	rec := httptest.NewRecorder()
	h.transcribe(rec, authedRequest(req, "u1"))

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "monthly transcription limit")
}

func TestTranscribeStreamEmitsChunksAndComplete(t *testing.T) {
	h, _, transcriptionSvc := newAudioHandlerFixture()
	transcriptionSvc.outcome.Transcript.Content = strings.Repeat("word ", 90)

	req := httptest.NewRequest(http.MethodPost, "/audio/transcribe/stream", strings.NewReader(`{"audio_file_id":"11111111-1111-4111-8111-111111111111"}`))
	rec := httptest.NewRecorder()
	h.transcribeStream(rec, authedRequest(req, "u1"))

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	require.Equal(t, 3, strings.Count(body, `"type":"chunk"`), "90 words in 40-word chunks")
	require.Contains(t, body, `"type":"complete"`)
	require.Contains(t, body, `"source":"generated"`)
}

func TestTranscribeStreamEmitsError(t *testing.T) {
	h, _, transcriptionSvc := newAudioHandlerFixture()
	transcriptionSvc.outcome = nil
	transcriptionSvc.err = service.ErrAudioFileNotFound

	req := httptest.NewRequest(http.MethodPost, "/audio/transcribe/stream", strings.NewReader(`{"audio_file_id":"11111111-1111-4111-8111-111111111111"}`))
	rec := httptest.NewRecorder()
	h.transcribeStream(rec, authedRequest(req, "u1"))

	require.Contains(t, rec.Body.String(), `"type":"error"`)
}

func TestChunkWords(t *testing.T) {
	require.Nil(t, chunkWords("", 40))
	require.Equal(t, []string{"a b"}, chunkWords("a b", 40))
	chunks := chunkWords(strings.Repeat("x ", 85), 40)
	require.Len(t, chunks, 3)
}
