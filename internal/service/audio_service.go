package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"app/internal/model"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxUploadBytes caps audio uploads at 50MB.
const MaxUploadBytes = 50 << 20

var (
	ErrAudioFileNotFound = errors.New("audio file not found")
	ErrFileTooLarge      = fmt.Errorf("file exceeds the maximum size of %dMB", MaxUploadBytes>>20)
	ErrUnsupportedType   = errors.New("unsupported audio format")
)

var allowedMimeTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/mp4":   true,
	"audio/m4a":   true,
	"audio/x-m4a": true,
	"audio/webm":  true,
	"audio/ogg":   true,
	"audio/flac":  true,
}

// CleanupQueue defers object-store deletions that failed inline; the cleanup
// worker retries them. A nil queue disables deferral.
type CleanupQueue interface {
	EnqueuePrefix(ctx context.Context, userID, prefix string) error
}

type AudioService interface {
	// ValidateUpload rejects oversized or non-allow-listed files. It must be
	// called before any storage write.
	ValidateUpload(sizeBytes int64, mimeType string) error
	Upload(ctx context.Context, userID, fileName, mimeType string, sizeBytes int64, body io.Reader) (*model.AudioFile, error)
	GetAudioFile(ctx context.Context, id, userID string) (*model.AudioFile, error)
	ListAudioFiles(ctx context.Context, userID string, limit, offset int) ([]model.AudioFile, error)
	DeleteAudioFile(ctx context.Context, id, userID string) error
	// DeleteAllForUser removes every object under the user's storage prefix,
	// part of the account-deletion cascade.
	DeleteAllForUser(ctx context.Context, userID string) error
}

type audioService struct {
	repo    repository.AudioFileRepository
	storage StorageService
	cleanup CleanupQueue
	logger  zerolog.Logger
}

func NewAudioService(repo repository.AudioFileRepository, storage StorageService, cleanup CleanupQueue, logger zerolog.Logger) AudioService {
	return &audioService{
		repo:    repo,
		storage: storage,
		cleanup: cleanup,
		logger:  logger.With().Str("service", "AudioService").Logger(),
	}
}

func (s *audioService) ValidateUpload(sizeBytes int64, mimeType string) error {
	if sizeBytes <= 0 {
		return errors.New("empty file")
	}
	if sizeBytes > MaxUploadBytes {
		return ErrFileTooLarge
	}
	if !allowedMimeTypes[normalizeMime(mimeType)] {
		return ErrUnsupportedType
	}
	return nil
}

func normalizeMime(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// userPrefix is the storage folder holding all of a user's audio objects.
func userPrefix(userID string) string {
	return fmt.Sprintf("audio/%s/", userID)
}

func (s *audioService) Upload(ctx context.Context, userID, fileName, mimeType string, sizeBytes int64, body io.Reader) (*model.AudioFile, error) {
	if err := s.ValidateUpload(sizeBytes, mimeType); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	safeName := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	storagePath := fmt.Sprintf("%s%s/%s", userPrefix(userID), id, safeName)

	file := &model.AudioFile{
		ID:          id,
		UserID:      userID,
		FileName:    safeName,
		StoragePath: storagePath,
		SizeBytes:   sizeBytes,
		MimeType:    normalizeMime(mimeType),
		Status:      model.StatusUploaded,
	}
	created, err := s.repo.CreateAudioFile(ctx, file)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create audio file record")
		return nil, fmt.Errorf("failed to create audio file record: %w", err)
	}

	if err := s.storage.Upload(ctx, storagePath, body, sizeBytes, file.MimeType); err != nil {
		// Roll back the record so the row never points at a missing object.
		if delErr := s.repo.DeleteAudioFile(ctx, id, userID); delErr != nil {
			s.logger.Error().Err(delErr).Str("audio_file_id", id).Msg("Failed to roll back audio file record after upload failure")
		}
		return nil, fmt.Errorf("failed to store audio file: %w", err)
	}

	return created, nil
}

func (s *audioService) GetAudioFile(ctx context.Context, id, userID string) (*model.AudioFile, error) {
	return s.repo.GetAudioFileByID(ctx, id, userID)
}

func (s *audioService) ListAudioFiles(ctx context.Context, userID string, limit, offset int) ([]model.AudioFile, error) {
	return s.repo.ListAudioFilesByUser(ctx, userID, limit, offset)
}

func (s *audioService) DeleteAudioFile(ctx context.Context, id, userID string) error {
	file, err := s.repo.GetAudioFileByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if file == nil {
		return ErrAudioFileNotFound
	}

	// Delete the row first; transcripts and learning content cascade with it.
	if err := s.repo.DeleteAudioFile(ctx, id, userID); err != nil {
		return err
	}

	prefix := fmt.Sprintf("%s%s/", userPrefix(userID), id)
	if err := s.storage.DeletePrefix(ctx, prefix); err != nil {
		s.logger.Error().Err(err).Str("prefix", prefix).Msg("Inline storage cleanup failed; deferring to cleanup queue")
		s.deferCleanup(ctx, userID, prefix)
	}
	return nil
}

func (s *audioService) DeleteAllForUser(ctx context.Context, userID string) error {
	prefix := userPrefix(userID)
	if err := s.storage.DeletePrefix(ctx, prefix); err != nil {
		s.logger.Error().Err(err).Str("prefix", prefix).Msg("Inline storage cleanup failed; deferring to cleanup queue")
		s.deferCleanup(ctx, userID, prefix)
		return err
	}
	return nil
}

func (s *audioService) deferCleanup(ctx context.Context, userID, prefix string) {
	if s.cleanup == nil {
		return
	}
	if err := s.cleanup.EnqueuePrefix(ctx, userID, prefix); err != nil {
		s.logger.Error().Err(err).Str("prefix", prefix).Msg("Failed to enqueue storage cleanup job")
	}
}
