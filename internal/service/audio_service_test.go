package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"app/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeCleanupQueue struct {
	prefixes []string
	err      error
}

func (f *fakeCleanupQueue) EnqueuePrefix(ctx context.Context, userID, prefix string) error {
	if f.err != nil {
		return f.err
	}
	f.prefixes = append(f.prefixes, prefix)
	return nil
}

func newAudioFixture() (AudioService, *fakeAudioRepo, *fakeStorage, *fakeCleanupQueue) {
	repo := &fakeAudioRepo{files: map[string]*model.AudioFile{}}
	storage := &fakeStorage{objects: map[string][]byte{}}
	queue := &fakeCleanupQueue{}
	return NewAudioService(repo, storage, queue, zerolog.Nop()), repo, storage, queue
}

func TestValidateUpload(t *testing.T) {
	svc, _, _, _ := newAudioFixture()

	require.NoError(t, svc.ValidateUpload(10<<20, "audio/mpeg"))
	require.NoError(t, svc.ValidateUpload(MaxUploadBytes, "audio/wav"))
	require.NoError(t, svc.ValidateUpload(1024, "Audio/MP4; codecs=opus"))

	require.ErrorIs(t, svc.ValidateUpload(MaxUploadBytes+1, "audio/mpeg"), ErrFileTooLarge)
	require.ErrorIs(t, svc.ValidateUpload(1024, "video/mp4"), ErrUnsupportedType)
	require.ErrorIs(t, svc.ValidateUpload(1024, "application/pdf"), ErrUnsupportedType)
	require.ErrorIs(t, svc.ValidateUpload(1024, ""), ErrUnsupportedType)
	require.Error(t, svc.ValidateUpload(0, "audio/mpeg"))
}

func TestUploadStoresObjectAndRecord(t *testing.T) {
	svc, repo, storage, _ := newAudioFixture()

	file, err := svc.Upload(context.Background(), "u1", "lecture.mp3", "audio/mpeg", 11, strings.NewReader("audio-bytes"))
	require.NoError(t, err)
	require.Equal(t, model.StatusUploaded, file.Status)
	require.True(t, strings.HasPrefix(file.StoragePath, "audio/u1/"))
	require.Contains(t, repo.files, file.ID)
	require.Contains(t, storage.objects, file.StoragePath)
}

func TestUploadSanitizesFileName(t *testing.T) {
	svc, _, _, _ := newAudioFixture()

	file, err := svc.Upload(context.Background(), "u1", "../../etc/passwd.mp3", "audio/mpeg", 11, strings.NewReader("audio-bytes"))
	require.NoError(t, err)
	require.Equal(t, "passwd.mp3", file.FileName)
	require.NotContains(t, file.StoragePath, "..")
}

func TestUploadRejectsOversize(t *testing.T) {
	svc, repo, storage, _ := newAudioFixture()

	_, err := svc.Upload(context.Background(), "u1", "big.mp3", "audio/mpeg", MaxUploadBytes+1, strings.NewReader(""))
	require.ErrorIs(t, err, ErrFileTooLarge)
	require.Empty(t, repo.files, "no record for a rejected upload")
	require.Empty(t, storage.objects, "nothing written to storage")
}

func TestDeleteAudioFileCleansStorage(t *testing.T) {
	svc, repo, storage, queue := newAudioFixture()
	file, err := svc.Upload(context.Background(), "u1", "lecture.mp3", "audio/mpeg", 11, strings.NewReader("audio-bytes"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAudioFile(context.Background(), file.ID, "u1"))
	require.Empty(t, repo.files)
	require.Empty(t, storage.objects)
	require.Empty(t, queue.prefixes, "no deferral when inline cleanup works")
}

func TestDeleteAudioFileDefersOnStorageFailure(t *testing.T) {
	svc, repo, storage, queue := newAudioFixture()
	file, err := svc.Upload(context.Background(), "u1", "lecture.mp3", "audio/mpeg", 11, strings.NewReader("audio-bytes"))
	require.NoError(t, err)

	storage.deleteErr = errors.New("s3 unavailable")
	require.NoError(t, svc.DeleteAudioFile(context.Background(), file.ID, "u1"), "row deletion succeeds even when storage fails")
	require.Empty(t, repo.files)
	require.Len(t, queue.prefixes, 1)
	require.True(t, strings.HasPrefix(queue.prefixes[0], "audio/u1/"))
}

func TestDeleteAudioFileNotFound(t *testing.T) {
	svc, _, _, _ := newAudioFixture()
	err := svc.DeleteAudioFile(context.Background(), "missing", "u1")
	require.ErrorIs(t, err, ErrAudioFileNotFound)
}

func TestDeleteAllForUserDefersOnFailure(t *testing.T) {
	svc, _, storage, queue := newAudioFixture()
	storage.deleteErr = errors.New("s3 unavailable")

	err := svc.DeleteAllForUser(context.Background(), "u1")
	require.Error(t, err)
	require.Equal(t, []string{"audio/u1/"}, queue.prefixes)
}
