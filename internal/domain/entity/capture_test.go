package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testImage() *Image {
	return &Image{Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}}
}

func TestNewCaptureSession_DefaultState(t *testing.T) {
	s := NewCaptureSession("web:1")
	require.Equal(t, StateIdle, s.State)
	require.NotEmpty(t, s.ID)
	require.False(t, s.HasImage())
	require.False(t, s.CanSubmit())
}

func TestCaptureSession_SelectImageClearsVerdictAndError(t *testing.T) {
	s := NewCaptureSession("web:1")
	require.NoError(t, s.SelectImage(testImage()))
	gen, err := s.BeginSubmit()
	require.NoError(t, err)
	require.True(t, s.CompleteSubmit(gen, Verdict{Label: LabelReal}))
	firstPreview := s.PreviewID

	require.NoError(t, s.SelectImage(testImage()))
	require.Equal(t, StateHasImage, s.State)
	require.Nil(t, s.Verdict)
	require.Empty(t, s.LastError)
	require.NotEqual(t, firstPreview, s.PreviewID)
}

func TestCaptureSession_CameraExcludesImage(t *testing.T) {
	s := NewCaptureSession("web:1")
	require.NoError(t, s.SelectImage(testImage()))
	require.NoError(t, s.OpenCamera())
	require.True(t, s.CameraActive())
	require.False(t, s.HasImage())
	require.Empty(t, s.PreviewID)

	require.NoError(t, s.SelectImage(testImage()))
	require.False(t, s.CameraActive())
	require.True(t, s.HasImage())
}

func TestCaptureSession_OpenCameraTwiceIsNoop(t *testing.T) {
	s := NewCaptureSession("web:1")
	require.NoError(t, s.OpenCamera())
	gen := s.Generation
	require.NoError(t, s.OpenCamera())
	require.Equal(t, gen, s.Generation)
	require.Equal(t, StateCameraOpen, s.State)
}

func TestCaptureSession_CameraFailed(t *testing.T) {
	s := NewCaptureSession("web:1")
	require.NoError(t, s.OpenCamera())
	s.CameraFailed()
	require.Equal(t, StateIdle, s.State)
	require.Equal(t, MsgCameraUnavailable, s.LastError)
}

func TestCaptureSession_SubmitGuards(t *testing.T) {
	s := NewCaptureSession("web:1")
	_, err := s.BeginSubmit()
	require.ErrorIs(t, err, ErrNoImage)

	require.NoError(t, s.OpenCamera())
	_, err = s.BeginSubmit()
	require.ErrorIs(t, err, ErrNoImage)
	s.CloseCamera()

	require.NoError(t, s.SelectImage(testImage()))
	_, err = s.BeginSubmit()
	require.NoError(t, err)
	_, err = s.BeginSubmit()
	require.ErrorIs(t, err, ErrSubmitting)
	require.ErrorIs(t, s.SelectImage(testImage()), ErrSubmitting)
	require.ErrorIs(t, s.OpenCamera(), ErrSubmitting)
}

func TestCaptureSession_FailThenRetry(t *testing.T) {
	s := NewCaptureSession("web:1")
	require.NoError(t, s.SelectImage(testImage()))
	gen, err := s.BeginSubmit()
	require.NoError(t, err)
	require.True(t, s.FailSubmit(gen, "Error: Bad Gateway"))
	require.Equal(t, StateHasError, s.State)
	require.Nil(t, s.Verdict)
	require.True(t, s.CanSubmit())

	gen, err = s.BeginSubmit()
	require.NoError(t, err)
	require.Empty(t, s.LastError)
	require.True(t, s.CompleteSubmit(gen, Verdict{Label: LabelFake}))
	require.Empty(t, s.LastError)
	require.False(t, s.CanSubmit())
}

func TestCaptureSession_StaleCompletionDropped(t *testing.T) {
	s := NewCaptureSession("web:1")
	require.NoError(t, s.SelectImage(testImage()))
	gen, err := s.BeginSubmit()
	require.NoError(t, err)

	s.Clear()
	require.False(t, s.CompleteSubmit(gen, Verdict{Label: LabelFake}))
	require.False(t, s.FailSubmit(gen, "late"))
	require.Equal(t, StateIdle, s.State)
	require.Nil(t, s.Verdict)
	require.Empty(t, s.LastError)
}
