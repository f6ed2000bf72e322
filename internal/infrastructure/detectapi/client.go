package detectapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
)

const (
	detectPath      = "/api/detect"
	formField       = "file"
	maxResponseSize = 4 << 20
)

// Config настройки клиента сервиса детекции
type Config struct {
	BaseURL        string        // явный адрес сервиса, перекрывает политику выбора
	FallbackURL    string        // адрес, если страница неизвестна (бот)
	DevPort        string        // порт дев-сервера страницы
	DevBackendPort string        // порт локального бэкенда в режиме разработки
	Timeout        time.Duration // таймаут HTTP-клиента
}

// Client HTTP-клиент сервиса детекции
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient создаёт клиента
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// StatusError сервис ответил не 2xx
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("detection service returned %d %s", e.Code, e.Status)
}

// UserMessage текст ошибки для пользователя
func (e *StatusError) UserMessage() string {
	return "Error: " + e.Status
}

// ResolveEndpoint выбирает адрес /api/detect для страницы с указанным origin.
func (c *Client) ResolveEndpoint(origin string) string {
	return strings.TrimRight(c.base(origin), "/") + detectPath
}

func (c *Client) base(origin string) string {
	if c.cfg.BaseURL != "" {
		return c.cfg.BaseURL
	}
	u, err := url.Parse(origin)
	if origin == "" || err != nil || u.Host == "" {
		return c.cfg.FallbackURL
	}
	if c.cfg.DevPort != "" && u.Port() == c.cfg.DevPort {
		return "http://" + net.JoinHostPort(u.Hostname(), c.cfg.DevBackendPort)
	}
	return u.Scheme + "://" + u.Host
}

// Detect отправляет изображение multipart-формой и возвращает сырой ответ
func (c *Client) Detect(ctx context.Context, origin string, img *entity.Image) (*entity.DetectionResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, formField, quoteEscaper.Replace(img.Filename)))
	header.Set("Content-Type", img.ContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	endpoint := c.ResolveEndpoint(origin)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, &StatusError{Code: resp.StatusCode, Status: statusText(resp)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return parseResponse(data)
}

// CheckHealth проверяет доступность сервиса по корневому адресу
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.base(""), "/")+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Status: statusText(resp)}
	}
	return nil
}

func parseResponse(data []byte) (*entity.DetectionResponse, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", port.ErrMalformedResponse)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		// без prediction вердикт сводится к Unknown
		return &entity.DetectionResponse{}, nil
	}

	out := &entity.DetectionResponse{
		Status:   doc.Get("status").String(),
		Filename: doc.Get("filename").String(),
		LogID:    doc.Get("log_id").Int(),
	}
	if prediction := doc.Get("prediction"); prediction.Exists() {
		out.Prediction = []byte(prediction.Raw)
	}
	return out, nil
}

// statusText "502 Bad Gateway" -> "Bad Gateway"
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

var _ port.Detector = (*Client)(nil)
