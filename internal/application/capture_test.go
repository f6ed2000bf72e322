package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
	"human-guard/internal/infrastructure/storage"
)

type fakeDetector struct {
	mu      sync.Mutex
	calls   int
	origins []string
	resp    *entity.DetectionResponse
	err     error
	release chan struct{}
}

func (d *fakeDetector) Detect(ctx context.Context, origin string, img *entity.Image) (*entity.DetectionResponse, error) {
	d.mu.Lock()
	d.calls++
	d.origins = append(d.origins, origin)
	d.mu.Unlock()

	if d.release != nil {
		<-d.release
	}
	return d.resp, d.err
}

func (d *fakeDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type statusErr struct{}

func (statusErr) Error() string       { return "detect: 502 Bad Gateway" }
func (statusErr) UserMessage() string { return "Error: Bad Gateway" }

type fakeCamera struct {
	mu      sync.Mutex
	opened  int
	open    int
	err     error
	frame   image.Image
	readErr error
}

func (c *fakeCamera) Open(ctx context.Context) (port.CameraStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.opened++
	c.open++
	return &fakeStream{camera: c}, nil
}

func (c *fakeCamera) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

type fakeStream struct {
	camera *fakeCamera
	closed bool
}

func (s *fakeStream) ReadFrame(ctx context.Context) (image.Image, error) {
	return s.camera.frame, s.camera.readErr
}

func (s *fakeStream) Close() error {
	s.camera.mu.Lock()
	defer s.camera.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.camera.open--
	}
	return nil
}

type memoryHistory struct {
	mu      sync.Mutex
	records []entity.DetectionRecord
}

func (h *memoryHistory) Add(ctx context.Context, record *entity.DetectionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	record.ID = int64(len(h.records) + 1)
	h.records = append(h.records, *record)
	return nil
}

func (h *memoryHistory) ListByAccount(ctx context.Context, accountID string, limit int) ([]entity.DetectionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []entity.DetectionRecord
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		if h.records[i].AccountID == accountID {
			out = append(out, h.records[i])
		}
	}
	return out, nil
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil))
	return buf.Bytes()
}

type fixture struct {
	svc      *CaptureService
	detector *fakeDetector
	camera   *fakeCamera
	history  *memoryHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		detector: &fakeDetector{resp: &entity.DetectionResponse{
			Prediction: []byte(`{"Prediction": "Fake", "Real Confidence": 0.12, "Fake Confidence": 0.88}`),
		}},
		camera:  &fakeCamera{frame: image.NewRGBA(image.Rect(0, 0, 2, 1))},
		history: &memoryHistory{},
	}
	f.svc = NewCaptureService(storage.NewMemoryCaptureRepository(), f.detector, f.camera,
		NewHistoryService(f.history), CaptureLimits{MaxImageSize: 1 << 20, SubmitTimeout: time.Second})
	return f
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("submission did not finish")
	}
}

func TestCaptureService_SubmitSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)
	_, err = f.svc.BindAccount(ctx, session.ID, "acc-1")
	require.NoError(t, err)

	session, err = f.svc.ChooseFile(ctx, session.ID, "face.jpg", jpegBytes(t))
	require.NoError(t, err)
	require.Equal(t, entity.StateHasImage, session.State)
	require.Equal(t, "image/jpeg", session.Image.ContentType)
	require.True(t, session.CanSubmit())

	done, err := f.svc.Submit(ctx, session.ID, "http://localhost:5173")
	require.NoError(t, err)
	wait(t, done)

	session, err = f.svc.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateHasResult, session.State)
	require.NotNil(t, session.Verdict)
	require.True(t, session.Verdict.IsFake())
	require.Equal(t, 12, session.Verdict.RealPercent())
	require.Equal(t, 88, session.Verdict.FakePercent())
	require.Empty(t, session.LastError)
	require.Equal(t, []string{"http://localhost:5173"}, f.detector.origins)

	records, err := f.history.ListByAccount(ctx, "acc-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "face.jpg", records[0].Filename)
}

func TestCaptureService_SubmitWithoutImageIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, session.ID, "")
	require.ErrorIs(t, err, entity.ErrNoImage)

	_, err = f.svc.StartCamera(ctx, session.ID)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, session.ID, "")
	require.ErrorIs(t, err, entity.ErrNoImage)
	require.Zero(t, f.detector.callCount())
}

func TestCaptureService_SingleSubmissionInFlight(t *testing.T) {
	f := newFixture(t)
	f.detector.release = make(chan struct{})
	ctx := context.Background()

	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)
	_, err = f.svc.ChooseFile(ctx, session.ID, "a.jpg", jpegBytes(t))
	require.NoError(t, err)

	done, err := f.svc.Submit(ctx, session.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, session.ID, "")
	require.ErrorIs(t, err, entity.ErrSubmitting)
	_, err = f.svc.ChooseFile(ctx, session.ID, "b.jpg", jpegBytes(t))
	require.ErrorIs(t, err, entity.ErrSubmitting)

	close(f.detector.release)
	wait(t, done)
	require.Equal(t, 1, f.detector.callCount())
}

func TestCaptureService_SubmitFailureThenRetry(t *testing.T) {
	f := newFixture(t)
	f.detector.err = statusErr{}
	ctx := context.Background()

	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)
	_, err = f.svc.ChooseFile(ctx, session.ID, "a.jpg", jpegBytes(t))
	require.NoError(t, err)

	done, err := f.svc.Submit(ctx, session.ID, "")
	require.NoError(t, err)
	wait(t, done)

	session, err = f.svc.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateHasError, session.State)
	require.Equal(t, "Error: Bad Gateway", session.LastError)
	require.Nil(t, session.Verdict)

	f.detector.err = nil
	done, err = f.svc.Submit(ctx, session.ID, "")
	require.NoError(t, err)
	wait(t, done)

	session, err = f.svc.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateHasResult, session.State)
	require.Empty(t, session.LastError)
	require.Empty(t, f.history.records, "anonymous sessions are not recorded")
}

func TestCaptureService_SubmitWithoutPredictionIsUnknown(t *testing.T) {
	f := newFixture(t)
	f.detector.resp = &entity.DetectionResponse{}
	ctx := context.Background()

	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)
	_, err = f.svc.ChooseFile(ctx, session.ID, "a.jpg", jpegBytes(t))
	require.NoError(t, err)

	done, err := f.svc.Submit(ctx, session.ID, "")
	require.NoError(t, err)
	wait(t, done)

	session, err = f.svc.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateHasResult, session.State)
	require.Empty(t, session.LastError)
	require.NotNil(t, session.Verdict)
	require.Equal(t, entity.LabelUnknown, session.Verdict.Label)
	require.Zero(t, session.Verdict.RealPercent())
	require.Zero(t, session.Verdict.FakePercent())
}

func TestCaptureService_SubmitErrorMessages(t *testing.T) {
	require.Equal(t, msgSubmitTimeout, submitErrorMessage(context.DeadlineExceeded))
	require.Equal(t, msgMalformedAnswer, submitErrorMessage(port.ErrMalformedResponse))
	require.Equal(t, msgSubmitFailed, submitErrorMessage(errors.New("dial tcp: refused")))
	require.Equal(t, "Error: Bad Gateway", submitErrorMessage(statusErr{}))
}

func TestCaptureService_ClearDropsLateResponse(t *testing.T) {
	f := newFixture(t)
	f.detector.release = make(chan struct{})
	ctx := context.Background()

	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)
	_, err = f.svc.ChooseFile(ctx, session.ID, "a.jpg", jpegBytes(t))
	require.NoError(t, err)

	done, err := f.svc.Submit(ctx, session.ID, "")
	require.NoError(t, err)

	session, err = f.svc.Clear(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateIdle, session.State)

	close(f.detector.release)
	wait(t, done)

	session, err = f.svc.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateIdle, session.State)
	require.Nil(t, session.Verdict)
	require.False(t, session.HasImage())
}

func TestCaptureService_DiscardDuringSubmit(t *testing.T) {
	f := newFixture(t)
	f.detector.release = make(chan struct{})
	ctx := context.Background()

	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)
	_, err = f.svc.ChooseFile(ctx, session.ID, "a.jpg", jpegBytes(t))
	require.NoError(t, err)
	done, err := f.svc.Submit(ctx, session.ID, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Discard(ctx, session.ID))
	close(f.detector.release)
	wait(t, done)

	_, err = f.svc.Get(ctx, session.ID)
	require.ErrorIs(t, err, port.ErrSessionNotFound)
}

func TestCaptureService_StartStopCameraReleasesDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)

	session, err = f.svc.StartCamera(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateCameraOpen, session.State)

	// повторный старт не захватывает устройство ещё раз
	_, err = f.svc.StartCamera(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.camera.opened)
	require.Equal(t, 1, f.camera.active())

	session, err = f.svc.StopCamera(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateIdle, session.State)
	require.False(t, session.HasImage())
	require.Zero(t, f.camera.active())

	session, err = f.svc.StopCamera(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateIdle, session.State)
	require.Zero(t, f.camera.active())
}

func TestCaptureService_CameraDenied(t *testing.T) {
	f := newFixture(t)
	f.camera.err = errors.New("permission denied")
	ctx := context.Background()

	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)
	session, err = f.svc.StartCamera(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateIdle, session.State)
	require.Equal(t, entity.MsgCameraUnavailable, session.LastError)

	// повтор разрешён
	f.camera.err = nil
	session, err = f.svc.StartCamera(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateCameraOpen, session.State)
	require.Empty(t, session.LastError)
}

func TestCaptureService_CaptureFrameMirrorsAndStopsCamera(t *testing.T) {
	f := newFixture(t)
	frame := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			frame.Set(x, y, color.White)
		}
	}
	f.camera.frame = frame
	ctx := context.Background()

	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)
	_, err = f.svc.CaptureFrame(ctx, session.ID)
	require.ErrorIs(t, err, entity.ErrCameraNotOpen)

	_, err = f.svc.StartCamera(ctx, session.ID)
	require.NoError(t, err)
	session, err = f.svc.CaptureFrame(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateHasImage, session.State)
	require.Equal(t, capturedFilename, session.Image.Filename)
	require.Zero(t, f.camera.active())

	img, err := jpeg.Decode(bytes.NewReader(session.Image.Data))
	require.NoError(t, err)
	left, _, _, _ := img.At(1, 4).RGBA()
	right, _, _, _ := img.At(14, 4).RGBA()
	require.Less(t, left, right, "white half must move to the right")
}

func TestCaptureService_ChooseFileClosesCamera(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)
	_, err = f.svc.StartCamera(ctx, session.ID)
	require.NoError(t, err)

	session, err = f.svc.ChooseFile(ctx, session.ID, "a.jpg", jpegBytes(t))
	require.NoError(t, err)
	require.False(t, session.CameraActive())
	require.Zero(t, f.camera.active())
}

func TestCaptureService_ChooseFileValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)

	_, err = f.svc.ChooseFile(ctx, session.ID, "a.txt", []byte("hello world"))
	require.ErrorIs(t, err, ErrInvalidImage)
	_, err = f.svc.ChooseFile(ctx, session.ID, "a.jpg", nil)
	require.ErrorIs(t, err, ErrInvalidImage)
	_, err = f.svc.ChooseFile(ctx, session.ID, "big.jpg", make([]byte, 2<<20))
	require.ErrorIs(t, err, ErrImageTooLarge)
}

func TestCaptureService_NewFileAfterResultClearsVerdict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)
	_, err = f.svc.ChooseFile(ctx, session.ID, "a.jpg", jpegBytes(t))
	require.NoError(t, err)
	done, err := f.svc.Submit(ctx, session.ID, "")
	require.NoError(t, err)
	wait(t, done)

	session, err = f.svc.ChooseFile(ctx, session.ID, "b.jpg", jpegBytes(t))
	require.NoError(t, err)
	require.Equal(t, entity.StateHasImage, session.State)
	require.Nil(t, session.Verdict)
	require.Empty(t, session.LastError)
	require.Equal(t, "b.jpg", session.Image.Filename)
}

func TestCaptureService_ExpireIdleReleasesCamera(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Open(ctx, "web:1")
	require.NoError(t, err)
	_, err = f.svc.StartCamera(ctx, session.ID)
	require.NoError(t, err)

	n, err := f.svc.ExpireIdle(ctx, -time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Zero(t, f.camera.active())

	_, err = f.svc.Get(ctx, session.ID)
	require.ErrorIs(t, err, port.ErrSessionNotFound)
}

type flakyRepository struct {
	port.CaptureRepository
	failID string
}

func (r *flakyRepository) Delete(ctx context.Context, id string) error {
	if id == r.failID {
		return errors.New("storage unavailable")
	}
	return r.CaptureRepository.Delete(ctx, id)
}

func TestCaptureService_ExpireIdleContinuesAfterFailure(t *testing.T) {
	repo := &flakyRepository{CaptureRepository: storage.NewMemoryCaptureRepository()}
	camera := &fakeCamera{frame: image.NewRGBA(image.Rect(0, 0, 2, 1))}
	svc := NewCaptureService(repo, &fakeDetector{}, camera, nil, CaptureLimits{MaxImageSize: 1 << 20, SubmitTimeout: time.Second})
	ctx := context.Background()

	first, err := svc.Open(ctx, "web:1")
	require.NoError(t, err)
	second, err := svc.Open(ctx, "web:2")
	require.NoError(t, err)
	_, err = svc.StartCamera(ctx, second.ID)
	require.NoError(t, err)
	repo.failID = first.ID

	n, err := svc.ExpireIdle(ctx, -time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Zero(t, camera.active())

	_, err = svc.Get(ctx, second.ID)
	require.ErrorIs(t, err, port.ErrSessionNotFound)
	_, err = svc.Get(ctx, first.ID)
	require.NoError(t, err)
}
