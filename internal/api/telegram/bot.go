package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "human-guard/internal/application"
	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
)

const (
	msgStart = `👋 Hi! I check photos for signs of deepfake manipulation.

📸 Send me a photo of a face and I will tell you whether it looks real or generated.

📋 Commands:
/detect: check a new photo
/clear: forget the current photo
/help: how to use the bot`

	msgHelp = `ℹ️ How it works:

1️⃣ Send a photo (or an image as a file)
2️⃣ The image goes to the detection service
3️⃣ You get a verdict with real and fake confidence

💡 Tips:
• Use a clear, well lit face
• Files keep full quality, compressed photos may lose detail`

	msgAwaitingPhoto  = "📸 Send the photo you want to check."
	msgCleared        = "🧹 Cleared. Send a new photo whenever you are ready."
	msgSendPhoto      = "📸 Please send a photo to check."
	msgUnknownCommand = "❓ Unknown command. Use /help for the list of commands."
	msgAnalyzing      = "⏳ Analyzing..."
	msgBusy           = "⏳ Still analyzing the previous photo, please wait."
	msgNotImage       = "⚠️ Only image files are allowed."
	msgTooLarge       = "⚠️ The image is too large."
	msgDownloadError  = "⚠️ Could not download the image. Please try again."

	maxDownloadSize = 20 << 20
)

// Bot представляет Telegram-бота
type Bot struct {
	api     *tgbotapi.BotAPI
	capture *app.CaptureService
	client  *http.Client

	mu       sync.Mutex
	sessions map[int64]string // chatID -> id сессии захвата
}

// NewBot создаёт нового бота
func NewBot(token string, capture *app.CaptureService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:      api,
		capture:  capture,
		client:   http.DefaultClient,
		sessions: make(map[int64]string),
	}, nil
}

// Run запускает основной цикл обработки сообщений
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if fileID, filename, ok := imageAttachment(msg); ok {
		b.handleImage(ctx, msg.Chat.ID, fileID, filename)
		return
	}

	if msg.Document != nil {
		b.sendMessage(msg.Chat.ID, msgNotImage)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "detect":
		b.sendMessage(msg.Chat.ID, msgAwaitingPhoto)

	case "clear":
		if id, ok := b.existingSession(msg.Chat.ID); ok {
			if _, err := b.capture.Clear(ctx, id); err != nil && !errors.Is(err, port.ErrSessionNotFound) {
				log.Printf("Error clearing session: %v", err)
			}
		}
		b.sendMessage(msg.Chat.ID, msgCleared)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

// handleImage выбирает изображение, отправляет его и отвечает вердиктом
func (b *Bot) handleImage(ctx context.Context, chatID int64, fileID, filename string) {
	id, err := b.sessionFor(ctx, chatID)
	if err != nil {
		log.Printf("Error opening capture session: %v", err)
		b.sendMessage(chatID, msgDownloadError)
		return
	}

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		log.Printf("Error downloading image: %v", err)
		b.sendMessage(chatID, msgDownloadError)
		return
	}

	if _, err := b.capture.ChooseFile(ctx, id, filename, data); err != nil {
		b.sendMessage(chatID, chooseErrorText(err))
		return
	}

	done, err := b.capture.Submit(ctx, id, "")
	if err != nil {
		b.sendMessage(chatID, chooseErrorText(err))
		return
	}
	b.sendMessage(chatID, msgAnalyzing)

	select {
	case <-done:
	case <-ctx.Done():
		return
	}

	session, err := b.capture.Get(ctx, id)
	if err != nil {
		log.Printf("Error reading capture session: %v", err)
		return
	}
	if text := resultText(session); text != "" {
		b.sendMessage(chatID, text)
	}
}

// sessionFor возвращает сессию чата, открывая новую после истечения старой
func (b *Bot) sessionFor(ctx context.Context, chatID int64) (string, error) {
	if id, ok := b.existingSession(chatID); ok {
		if _, err := b.capture.Get(ctx, id); err == nil {
			return id, nil
		} else if !errors.Is(err, port.ErrSessionNotFound) {
			return "", err
		}
	}

	session, err := b.capture.Open(ctx, ownerID(chatID))
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	b.sessions[chatID] = session.ID
	b.mu.Unlock()
	return session.ID, nil
}

func (b *Bot) existingSession(chatID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.sessions[chatID]
	return id, ok
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func ownerID(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

// imageAttachment достаёт фото наибольшего размера или документ-изображение
func imageAttachment(msg *tgbotapi.Message) (fileID, filename string, ok bool) {
	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		return photo.FileID, "telegram-photo.jpg", true
	}
	if doc := msg.Document; doc != nil && strings.HasPrefix(doc.MimeType, "image/") {
		name := doc.FileName
		if name == "" {
			name = "telegram-image"
		}
		return doc.FileID, name, true
	}
	return "", "", false
}

// resultText форматирует результат или ошибку сессии
func resultText(session *entity.CaptureSession) string {
	switch session.State {
	case entity.StateHasResult:
		v := session.Verdict
		return fmt.Sprintf("%s\n\nReal: %d%%\nFake: %d%%", v.Headline(), v.RealPercent(), v.FakePercent())
	case entity.StateHasError:
		return "⚠️ " + session.LastError
	default:
		return ""
	}
}

func chooseErrorText(err error) string {
	switch {
	case errors.Is(err, app.ErrInvalidImage):
		return msgNotImage
	case errors.Is(err, app.ErrImageTooLarge):
		return msgTooLarge
	case errors.Is(err, entity.ErrSubmitting):
		return msgBusy
	default:
		log.Printf("Error preparing image: %v", err)
		return msgDownloadError
	}
}
