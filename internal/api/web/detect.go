package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	app "human-guard/internal/application"
	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
)

const (
	msgSelectImage = "Please select an image first."
	msgUploadError = "Could not read the uploaded file."
	msgServerError = "Something went wrong"

	submittingRefresh = 1
)

// captureView сессия захвата в виде, удобном шаблону и JSON
type captureView struct {
	State      string       `json:"state"`
	CameraOpen bool         `json:"camera_open"`
	PreviewURL string       `json:"preview_url,omitempty"`
	Filename   string       `json:"filename,omitempty"`
	Submitting bool         `json:"submitting"`
	CanSubmit  bool         `json:"can_submit"`
	Result     *verdictView `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
}

type verdictView struct {
	Label       string `json:"label"`
	Headline    string `json:"headline"`
	Class       string `json:"class"`
	RealPercent int    `json:"real_percent"`
	FakePercent int    `json:"fake_percent"`
}

func newCaptureView(session *entity.CaptureSession) captureView {
	view := captureView{
		State:      string(session.State),
		CameraOpen: session.CameraActive(),
		Submitting: session.State == entity.StateSubmitting,
		CanSubmit:  session.CanSubmit(),
		Error:      session.LastError,
	}
	if session.HasImage() {
		view.PreviewURL = "/detect/preview/" + session.PreviewID
		view.Filename = session.Image.Filename
	}
	if session.State == entity.StateHasResult && session.Verdict != nil {
		v := session.Verdict
		view.Result = &verdictView{
			Label:       string(v.Label),
			Headline:    v.Headline(),
			Class:       verdictClass(*v),
			RealPercent: v.RealPercent(),
			FakePercent: v.FakePercent(),
		}
	}
	return view
}

func verdictClass(v entity.Verdict) string {
	switch {
	case v.Label == entity.LabelUnknown:
		return "unknown"
	case v.IsFake():
		return "fake"
	default:
		return "real"
	}
}

// DetectPageHandler страница виджета захвата
func (s *Server) DetectPageHandler(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	session, err := s.captureSession(r.Context(), v)
	if err != nil {
		log.Printf("Error loading capture session: %v", err)
		http.Error(w, msgServerError, http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title:   "Detector",
		Active:  "detect",
		Account: v.account,
		Flashes: v.flashes(),
		Data:    newCaptureView(session),
	}
	if session.State == entity.StateSubmitting {
		data.Refresh = submittingRefresh
	}

	s.saveVisitor(w, r, v)
	s.pages.render(w, http.StatusOK, "detect.html", data)
}

// StateHandler JSON-снимок сессии захвата
func (s *Server) StateHandler(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	session, err := s.captureSession(r.Context(), v)
	if err != nil {
		log.Printf("Error loading capture session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgServerError})
		return
	}
	s.saveVisitor(w, r, v)
	writeJSON(w, http.StatusOK, newCaptureView(session))
}

// PreviewHandler отдаёт выбранное изображение, пока ссылка действительна
func (s *Server) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	id, ok := existingCapture(v)
	if !ok {
		http.NotFound(w, r)
		return
	}

	session, err := s.capture.Get(r.Context(), id)
	if err != nil || !session.HasImage() || session.PreviewID != chi.URLParam(r, "previewID") {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", session.Image.ContentType)
	w.Header().Set("Cache-Control", "private, no-store")
	w.Write(session.Image.Data)
}

// FileHandler принимает файл из диалога выбора или перетаскивания
func (s *Server) FileHandler(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	session, err := s.captureSession(r.Context(), v)
	if err != nil {
		s.failWidget(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(s.opts.MaxUploadSize); err != nil {
		s.finishWidget(w, r, v, session, app.ErrImageTooLarge.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.finishWidget(w, r, v, session, msgSelectImage)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.finishWidget(w, r, v, session, msgUploadError)
		return
	}

	updated, err := s.capture.ChooseFile(r.Context(), session.ID, header.Filename, data)
	if err != nil {
		s.finishWidget(w, r, v, session, widgetMessage(err))
		return
	}
	s.finishWidget(w, r, v, updated, "")
}

// SubmitHandler запускает отправку и сразу возвращает страницу в состоянии ожидания
func (s *Server) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	session, err := s.captureSession(r.Context(), v)
	if err != nil {
		s.failWidget(w, r, err)
		return
	}

	if _, err := s.capture.Submit(r.Context(), session.ID, requestOrigin(r)); err != nil {
		if errors.Is(err, entity.ErrSubmitting) {
			// повторное нажатие во время запроса игнорируется
			s.finishWidget(w, r, v, session, "")
			return
		}
		s.finishWidget(w, r, v, session, widgetMessage(err))
		return
	}

	updated, err := s.capture.Get(r.Context(), session.ID)
	if err != nil {
		s.failWidget(w, r, err)
		return
	}
	s.finishWidget(w, r, v, updated, "")
}

// ClearHandler сбрасывает изображение, результат и ошибку
func (s *Server) ClearHandler(w http.ResponseWriter, r *http.Request) {
	s.widgetAction(w, r, s.capture.Clear)
}

// CameraStartHandler включает камеру
func (s *Server) CameraStartHandler(w http.ResponseWriter, r *http.Request) {
	s.widgetAction(w, r, s.capture.StartCamera)
}

// CameraStopHandler выключает камеру без снимка
func (s *Server) CameraStopHandler(w http.ResponseWriter, r *http.Request) {
	s.widgetAction(w, r, s.capture.StopCamera)
}

// CameraCaptureHandler делает снимок с камеры
func (s *Server) CameraCaptureHandler(w http.ResponseWriter, r *http.Request) {
	s.widgetAction(w, r, s.capture.CaptureFrame)
}

// widgetAction выполняет переход виджета над сессией посетителя
func (s *Server) widgetAction(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*entity.CaptureSession, error)) {
	v := s.visit(r)
	session, err := s.captureSession(r.Context(), v)
	if err != nil {
		s.failWidget(w, r, err)
		return
	}

	updated, err := op(r.Context(), session.ID)
	if err != nil {
		s.finishWidget(w, r, v, session, widgetMessage(err))
		return
	}
	s.finishWidget(w, r, v, updated, "")
}

func (s *Server) failWidget(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("Error handling widget request: %v", err)
	if wantsJSON(r) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgServerError})
		return
	}
	http.Error(w, msgServerError, http.StatusInternalServerError)
}

// finishWidget отвечает JSON-снимком или редиректом на страницу виджета
func (s *Server) finishWidget(w http.ResponseWriter, r *http.Request, v *visitor, session *entity.CaptureSession, message string) {
	if wantsJSON(r) {
		s.saveVisitor(w, r, v)
		view := newCaptureView(session)
		status := http.StatusOK
		if message != "" {
			view.Error = message
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, view)
		return
	}

	if message != "" {
		v.flash(message)
	}
	s.saveVisitor(w, r, v)
	http.Redirect(w, r, "/detect", http.StatusSeeOther)
}

func widgetMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrInvalidImage), errors.Is(err, app.ErrImageTooLarge):
		return err.Error()
	case errors.Is(err, entity.ErrNoImage):
		return msgSelectImage
	case errors.Is(err, entity.ErrSubmitting):
		return "Please wait for the current analysis to finish."
	case errors.Is(err, entity.ErrCameraNotOpen):
		return "The camera is not open."
	case errors.Is(err, port.ErrSessionNotFound):
		return "Your session has expired. Please try again."
	default:
		log.Printf("Error handling widget request: %v", err)
		return msgServerError
	}
}

// requestOrigin восстанавливает адрес, с которого открыта страница
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	if r.Host == "" {
		return ""
	}
	return scheme + "://" + r.Host
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}
