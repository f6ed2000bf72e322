package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"human-guard/internal/domain/entity"
)

const frameWriteTimeout = 5 * time.Second

// CameraStreamHandler шлёт кадры камеры в JPEG, пока камера сессии включена
func (s *Server) CameraStreamHandler(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	id, ok := existingCapture(v)
	if !ok {
		http.Error(w, entity.ErrCameraNotOpen.Error(), http.StatusConflict)
		return
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("ws: accept error: %v", err)
		return
	}
	defer c.CloseNow()

	// клиент ничего не присылает, чтение нужно только для обработки закрытия
	ctx := c.CloseRead(r.Context())

	ticker := time.NewTicker(s.opts.FrameInterval)
	defer ticker.Stop()

	for {
		frame, err := s.capture.Frame(ctx, id)
		if err != nil {
			if errors.Is(err, entity.ErrCameraNotOpen) {
				c.Close(websocket.StatusNormalClosure, "camera closed")
				return
			}
			if ctx.Err() == nil {
				log.Printf("ws: frame error for session %s: %v", id, err)
				c.Close(websocket.StatusInternalError, "camera error")
			}
			return
		}

		wctx, cancel := context.WithTimeout(ctx, frameWriteTimeout)
		err = c.Write(wctx, websocket.MessageBinary, frame)
		cancel()
		if err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
