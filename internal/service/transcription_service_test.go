package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"app/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeAudioRepo struct {
	files    map[string]*model.AudioFile
	statuses []string
}

func (f *fakeAudioRepo) CreateAudioFile(ctx context.Context, file *model.AudioFile) (*model.AudioFile, error) {
	f.files[file.ID] = file
	return file, nil
}

func (f *fakeAudioRepo) GetAudioFileByID(ctx context.Context, id, userID string) (*model.AudioFile, error) {
	file, ok := f.files[id]
	if !ok || file.UserID != userID {
		return nil, nil
	}
	cp := *file
	return &cp, nil
}

func (f *fakeAudioRepo) ListAudioFilesByUser(ctx context.Context, userID string, limit, offset int) ([]model.AudioFile, error) {
	var out []model.AudioFile
	for _, file := range f.files {
		if file.UserID == userID {
			out = append(out, *file)
		}
	}
	return out, nil
}

func (f *fakeAudioRepo) UpdateStatus(ctx context.Context, id, userID, status string) error {
	if file, ok := f.files[id]; ok {
		file.Status = status
		f.statuses = append(f.statuses, status)
	}
	return nil
}

func (f *fakeAudioRepo) DeleteAudioFile(ctx context.Context, id, userID string) error {
	delete(f.files, id)
	return nil
}

type fakeTranscriptRepo struct {
	byAudioFile map[string]*model.Transcript
	insertErr   error
	inserts     int
	// loseRaceTo, when set, lands in the store during the next insert
	// attempt, simulating a concurrent request winning the unique
	// constraint between the winner check and the insert.
	loseRaceTo *model.Transcript
}

func (f *fakeTranscriptRepo) GetTranscriptByID(ctx context.Context, id, userID string) (*model.Transcript, error) {
	for _, t := range f.byAudioFile {
		if t.ID == id && t.UserID == userID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeTranscriptRepo) GetTranscriptByAudioFileID(ctx context.Context, audioFileID, userID string) (*model.Transcript, error) {
	t, ok := f.byAudioFile[audioFileID]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTranscriptRepo) ListTranscriptsByUser(ctx context.Context, userID string, limit, offset int) ([]model.Transcript, error) {
	var out []model.Transcript
	for _, t := range f.byAudioFile {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTranscriptRepo) InsertTranscript(ctx context.Context, t *model.Transcript) (*model.Transcript, bool, error) {
	if f.insertErr != nil {
		return nil, false, f.insertErr
	}
	if f.loseRaceTo != nil {
		f.byAudioFile[f.loseRaceTo.AudioFileID] = f.loseRaceTo
		f.loseRaceTo = nil
	}
	// ON CONFLICT DO NOTHING yields no row on conflict.
	if _, ok := f.byAudioFile[t.AudioFileID]; ok {
		return nil, false, nil
	}
	f.inserts++
	cp := *t
	f.byAudioFile[t.AudioFileID] = &cp
	return t, true, nil
}

func (f *fakeTranscriptRepo) UpdateTranscript(ctx context.Context, t *model.Transcript) (*model.Transcript, error) {
	f.byAudioFile[t.AudioFileID] = t
	return t, nil
}

func (f *fakeTranscriptRepo) DeleteTranscript(ctx context.Context, id, userID string) error {
	for k, t := range f.byAudioFile {
		if t.ID == id {
			delete(f.byAudioFile, k)
		}
	}
	return nil
}

type fakeUsageService struct {
	snapshot  *model.UsageSnapshot
	snapErr   error
	addedMins int
}

func (f *fakeUsageService) Snapshot(ctx context.Context, userID string) (*model.UsageSnapshot, error) {
	return f.snapshot, f.snapErr
}

func (f *fakeUsageService) SnapshotOrProvision(ctx context.Context, userID string) (*model.UsageSnapshot, error) {
	return f.snapshot, f.snapErr
}

func (f *fakeUsageService) AddUsage(ctx context.Context, userID string, minutes int) error {
	f.addedMins += minutes
	return nil
}

func (f *fakeUsageService) Provision(ctx context.Context, userID string, plan model.Plan) error {
	return nil
}

func (f *fakeUsageService) ChangePlan(ctx context.Context, userID string, plan model.Plan) error {
	return nil
}

type fakeCostService struct {
	decision *CostDecision
	checkErr error
	spends   []decimal.Decimal
	services []string
}

func (f *fakeCostService) CheckLimit(ctx context.Context, userID string, estimatedUSD decimal.Decimal, plan model.Plan) (*CostDecision, error) {
	return f.decision, f.checkErr
}

func (f *fakeCostService) RecordSpend(ctx context.Context, userID string, actualUSD decimal.Decimal, service, referenceID string) error {
	f.spends = append(f.spends, actualUSD)
	f.services = append(f.services, service)
	return nil
}

func (f *fakeCostService) Provision(ctx context.Context, userID string) error { return nil }

func (f *fakeCostService) Snapshot(ctx context.Context, userID string) (*model.CostRecord, error) {
	return nil, ErrCostRecordNotFound
}

type fakeSpeechClient struct {
	result *TranscriptionResult
	err    error
	calls  int
}

func (f *fakeSpeechClient) Transcribe(ctx context.Context, audio io.Reader, mimeType string) (*TranscriptionResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeStorage struct {
	objects   map[string][]byte
	deleteErr error
	deleted   []string
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	data, _ := io.ReadAll(body)
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (f *fakeStorage) DeleteObject(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) DeletePrefix(ctx context.Context, prefix string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			delete(f.objects, k)
		}
	}
	f.deleted = append(f.deleted, prefix)
	return nil
}

type fakeEvents struct {
	published []string
}

func (f *fakeEvents) Publish(ctx context.Context, eventType, userID, audioFileID, resourceID string) {
	f.published = append(f.published, eventType)
}

type transcriptionFixture struct {
	svc         TranscriptionService
	audioRepo   *fakeAudioRepo
	transcripts *fakeTranscriptRepo
	usage       *fakeUsageService
	costs       *fakeCostService
	speech      *fakeSpeechClient
	storage     *fakeStorage
	events      *fakeEvents
}

func newTranscriptionFixture() *transcriptionFixture {
	f := &transcriptionFixture{
		audioRepo:   &fakeAudioRepo{files: map[string]*model.AudioFile{}},
		transcripts: &fakeTranscriptRepo{byAudioFile: map[string]*model.Transcript{}},
		usage: &fakeUsageService{snapshot: &model.UsageSnapshot{
			PlanName: "free", AllowedMinutes: 30, UsedMinutes: 5, RemainingMinutes: 25,
		}},
		costs:   &fakeCostService{decision: &CostDecision{Allowed: true}},
		speech:  &fakeSpeechClient{result: &TranscriptionResult{Text: "hello world from the lecture", Language: "en", DurationSeconds: 95}},
		storage: &fakeStorage{objects: map[string][]byte{"audio/u1/a1/lecture.mp3": []byte("audio-bytes")}},
		events:  &fakeEvents{},
	}
	f.audioRepo.files["a1"] = &model.AudioFile{
		ID: "a1", UserID: "u1", FileName: "lecture.mp3",
		StoragePath: "audio/u1/a1/lecture.mp3", SizeBytes: 3 << 20,
		MimeType: "audio/mpeg", Status: model.StatusUploaded,
	}
	f.svc = NewTranscriptionService(f.transcripts, f.audioRepo, f.usage, f.costs, f.speech, f.storage, f.events, zerolog.Nop())
	return f
}

func TestTranscribeGeneratesAndSettles(t *testing.T) {
	f := newTranscriptionFixture()

	outcome, err := f.svc.Transcribe(context.Background(), "u1", "a1")
	require.NoError(t, err)
	require.Equal(t, SourceGenerated, outcome.Source)
	require.Empty(t, outcome.Warning)
	require.Equal(t, "hello world from the lecture", outcome.Transcript.Content)
	require.Equal(t, 5, outcome.Transcript.WordCount)

	require.Equal(t, 1, f.speech.calls)
	require.Equal(t, 2, f.usage.addedMins, "95s bills as 2 minutes")
	require.Len(t, f.costs.spends, 1)
	require.Equal(t, []string{EventTranscriptionCompleted}, f.events.published)
	require.Equal(t, model.StatusCompleted, f.audioRepo.files["a1"].Status)
}

func TestTranscribeReturnsStoredWithoutProviderCall(t *testing.T) {
	f := newTranscriptionFixture()
	f.transcripts.byAudioFile["a1"] = &model.Transcript{
		ID: "t1", AudioFileID: "a1", UserID: "u1", Content: "stored", WordCount: 1,
	}

	outcome, err := f.svc.Transcribe(context.Background(), "u1", "a1")
	require.NoError(t, err)
	require.Equal(t, SourceDatabase, outcome.Source)
	require.Equal(t, "stored", outcome.Transcript.Content)
	require.Zero(t, f.speech.calls, "no paid call for an existing transcript")
	require.Zero(t, f.usage.addedMins, "no usage recorded for a reused transcript")
}

func TestTranscribeSequentialCallsChargeOnce(t *testing.T) {
	f := newTranscriptionFixture()

	first, err := f.svc.Transcribe(context.Background(), "u1", "a1")
	require.NoError(t, err)
	second, err := f.svc.Transcribe(context.Background(), "u1", "a1")
	require.NoError(t, err)

	require.Equal(t, SourceGenerated, first.Source)
	require.Equal(t, SourceDatabase, second.Source)
	require.Equal(t, first.Transcript.ID, second.Transcript.ID)
	require.Equal(t, 1, f.speech.calls)
	require.Len(t, f.costs.spends, 1)
}

func TestTranscribeRejectedWhenOverLimit(t *testing.T) {
	f := newTranscriptionFixture()
	f.usage.snapshot = &model.UsageSnapshot{
		PlanName: "free", AllowedMinutes: 30, UsedMinutes: 30, IsOverLimit: true,
	}

	_, err := f.svc.Transcribe(context.Background(), "u1", "a1")
	var limitErr *UsageLimitError
	require.ErrorAs(t, err, &limitErr)
	require.Zero(t, f.speech.calls)
}

func TestTranscribeFailsClosedOnQuotaError(t *testing.T) {
	f := newTranscriptionFixture()
	f.usage.snapErr = errors.New("db down")

	_, err := f.svc.Transcribe(context.Background(), "u1", "a1")
	require.Error(t, err)
	require.Zero(t, f.speech.calls, "paid call never proceeds on unverified quota")
}

func TestTranscribeRejectedByCostGate(t *testing.T) {
	f := newTranscriptionFixture()
	f.costs.decision = &CostDecision{Allowed: false, Message: "monthly spending limit of $2.00 reached for the free plan"}

	_, err := f.svc.Transcribe(context.Background(), "u1", "a1")
	var costErr *CostLimitError
	require.ErrorAs(t, err, &costErr)
	require.Contains(t, costErr.Message, "monthly spending limit")
	require.Zero(t, f.speech.calls)
}

func TestTranscribeProviderFailureMarksFailed(t *testing.T) {
	f := newTranscriptionFixture()
	f.speech.err = &SpeechProviderError{StatusCode: 500, Body: "boom"}

	_, err := f.svc.Transcribe(context.Background(), "u1", "a1")
	require.Error(t, err)
	require.Equal(t, model.StatusFailed, f.audioRepo.files["a1"].Status)
	require.Zero(t, f.usage.addedMins, "nothing recorded for a failed call")
	require.Empty(t, f.costs.spends)
}

func TestTranscribePersistFailureReturnsWarning(t *testing.T) {
	f := newTranscriptionFixture()
	f.transcripts.insertErr = errors.New("connection reset")

	outcome, err := f.svc.Transcribe(context.Background(), "u1", "a1")
	require.NoError(t, err, "a generated transcript is returned even when persistence fails")
	require.Equal(t, SourceGenerated, outcome.Source)
	require.NotEmpty(t, outcome.Warning)
	require.Equal(t, "hello world from the lecture", outcome.Transcript.Content)
	require.Equal(t, 2, f.usage.addedMins, "the provider call happened, so it is billed")
	require.Len(t, f.costs.spends, 1)
}

func TestTranscribeLosesInsertRaceReturnsWinner(t *testing.T) {
	f := newTranscriptionFixture()
	f.transcripts.loseRaceTo = &model.Transcript{
		ID: "t-winner", AudioFileID: "a1", UserID: "u1", Content: "winner text", WordCount: 2,
	}

	outcome, err := f.svc.Transcribe(context.Background(), "u1", "a1")
	require.NoError(t, err)
	require.NotNil(t, outcome.Transcript, "losing the insert race must return the row that won")
	require.Equal(t, "t-winner", outcome.Transcript.ID)
	require.Equal(t, SourceDatabase, outcome.Source)
	require.Empty(t, outcome.Warning)

	require.Equal(t, 1, f.speech.calls)
	require.Equal(t, 2, f.usage.addedMins, "the provider call this request made is still billed")
	require.Len(t, f.costs.spends, 1)
	require.Empty(t, f.events.published, "only the winning insert publishes an event")
	require.Equal(t, model.StatusCompleted, f.audioRepo.files["a1"].Status)
}

func TestTranscribeUnknownAudioFile(t *testing.T) {
	f := newTranscriptionFixture()
	_, err := f.svc.Transcribe(context.Background(), "u1", "missing")
	require.ErrorIs(t, err, ErrAudioFileNotFound)
}

func TestTranscribeForeignAudioFileLooksAbsent(t *testing.T) {
	f := newTranscriptionFixture()
	_, err := f.svc.Transcribe(context.Background(), "u2", "a1")
	require.ErrorIs(t, err, ErrAudioFileNotFound)
}

func TestBilledMinutesRoundsUp(t *testing.T) {
	require.Equal(t, 1, billedMinutes(0))
	require.Equal(t, 1, billedMinutes(59.9))
	require.Equal(t, 1, billedMinutes(60))
	require.Equal(t, 2, billedMinutes(60.1))
}

func TestEstimateMinutesFromSize(t *testing.T) {
	require.Equal(t, 1, estimateMinutes(100))
	require.Equal(t, 1, estimateMinutes(1<<20))
	require.Equal(t, 3, estimateMinutes(3<<20))
	require.Equal(t, 50, estimateMinutes(50<<20))
}

func TestCreateTranscriptStoresSuppliedText(t *testing.T) {
	f := newTranscriptionFixture()

	transcript, err := f.svc.CreateTranscript(context.Background(), "u1", "a1", "imported text here", "de")
	require.NoError(t, err)
	require.Equal(t, "a1", transcript.AudioFileID)
	require.Equal(t, 3, transcript.WordCount)
	require.Equal(t, "de", transcript.Language)
	require.Zero(t, f.speech.calls, "manual creation must not call the provider")
}

func TestCreateTranscriptReturnsExistingRow(t *testing.T) {
	f := newTranscriptionFixture()

	first, err := f.svc.CreateTranscript(context.Background(), "u1", "a1", "first version", "")
	require.NoError(t, err)
	second, err := f.svc.CreateTranscript(context.Background(), "u1", "a1", "second version", "")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "first version", second.Content)
	require.Equal(t, 1, f.transcripts.inserts)
}

func TestCreateTranscriptUnknownAudioFile(t *testing.T) {
	f := newTranscriptionFixture()
	_, err := f.svc.CreateTranscript(context.Background(), "u1", "missing", "text", "")
	require.ErrorIs(t, err, ErrAudioFileNotFound)
}
