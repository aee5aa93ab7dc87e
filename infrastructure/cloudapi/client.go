package cloudapi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

// Client habla con la Graph API de Meta para el canal cloud: envío de texto,
// descarga de media y descubrimiento del phone-number id.
type Client struct {
	http     *resty.Client
	baseURL  string
	version  string
	channels domain.ChannelRepository
	mediaDir string
	maxBytes int64
}

type Config struct {
	GraphBaseURL string
	GraphVersion string
	SendTimeout  time.Duration
	MediaDir     string
	MaxBytes     int64
}

func NewClient(cfg Config, channels domain.ChannelRepository) *Client {
	timeout := cfg.SendTimeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		http:     resty.New().SetTimeout(timeout),
		baseURL:  cfg.GraphBaseURL,
		version:  cfg.GraphVersion,
		channels: channels,
		mediaDir: cfg.MediaDir,
		maxBytes: cfg.MaxBytes,
	}
}

func (c *Client) endpoint(parts ...string) string {
	url := c.baseURL + "/" + c.version
	for _, p := range parts {
		url += "/" + p
	}
	return url
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText envía un mensaje de texto por la Cloud API y retorna el wamid
// asignado. Si el canal aún no conoce su phone-number id, se descubre y
// persiste antes del primer envío.
func (c *Client) SendText(ctx context.Context, ch domain.ChannelInstance, to, body, quotedID string) (string, error) {
	phoneNumberID, err := c.ensurePhoneNumberID(ctx, &ch)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": body},
	}
	if quotedID != "" {
		payload["context"] = map[string]any{"message_id": quotedID}
	}

	var result sendResponse
	var apiErr graphError
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(ch.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&result).
		SetError(&apiErr).
		Post(c.endpoint(phoneNumberID, "messages"))
	if err != nil {
		return "", domain.Transient("cloud send request", err)
	}
	if resp.IsError() {
		return "", domain.Transient("cloud send rejected",
			fmt.Errorf("graph api %d: %s (code %d)", resp.StatusCode(), apiErr.Error.Message, apiErr.Error.Code))
	}
	if len(result.Messages) == 0 {
		return "", domain.Transient("cloud send response", fmt.Errorf("no message id in response"))
	}
	return result.Messages[0].ID, nil
}

type mediaMetadata struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// Fetch implementa application.MediaFetcher para el canal cloud. La descarga
// es en dos pasos: metadata del media id y luego el binario desde la URL
// firmada, siempre con el token del canal.
func (c *Client) Fetch(ctx context.Context, ch domain.ChannelInstance, content domain.MessageContent) (string, error) {
	if content.MediaRef == "" {
		return "", fmt.Errorf("empty media reference")
	}

	var meta mediaMetadata
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(ch.AccessToken).
		SetResult(&meta).
		Get(c.endpoint(content.MediaRef))
	if err != nil {
		return "", fmt.Errorf("media metadata: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("media metadata: graph api %d", resp.StatusCode())
	}
	if meta.URL == "" {
		return "", fmt.Errorf("media metadata without url")
	}
	if c.maxBytes > 0 && meta.FileSize > c.maxBytes {
		return "", fmt.Errorf("media too large: %d bytes", meta.FileSize)
	}

	bin, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(ch.AccessToken).
		Get(meta.URL)
	if err != nil {
		return "", fmt.Errorf("media download: %w", err)
	}
	if bin.IsError() {
		return "", fmt.Errorf("media download: status %d", bin.StatusCode())
	}

	dir := filepath.Join(c.mediaDir, ch.TenantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("media dir: %w", err)
	}
	name := uuid.NewString() + extensionFor(meta.MimeType)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, bin.Body(), 0o644); err != nil {
		return "", fmt.Errorf("media write: %w", err)
	}

	logrus.Debugf("[CLOUD] Media %s stored at %s (%d bytes)", content.MediaRef, path, len(bin.Body()))
	return path, nil
}

type phoneNumbersResponse struct {
	Data []struct {
		ID                 string `json:"id"`
		DisplayPhoneNumber string `json:"display_phone_number"`
	} `json:"data"`
}

// ensurePhoneNumberID retorna el phone-number id del canal, consultando la
// WABA la primera vez y persistiendo el resultado. La persistencia es best
// effort: si falla, el envío continúa con el id descubierto.
func (c *Client) ensurePhoneNumberID(ctx context.Context, ch *domain.ChannelInstance) (string, error) {
	if ch.PhoneNumberID != "" {
		return ch.PhoneNumberID, nil
	}
	if ch.WabaID == "" {
		return "", domain.Fatal("channel without waba id", nil)
	}

	var result phoneNumbersResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(ch.AccessToken).
		SetResult(&result).
		Get(c.endpoint(ch.WabaID, "phone_numbers"))
	if err != nil {
		return "", domain.Transient("phone number discovery", err)
	}
	if resp.IsError() || len(result.Data) == 0 {
		return "", domain.Transient("phone number discovery",
			fmt.Errorf("graph api %d, %d numbers", resp.StatusCode(), len(result.Data)))
	}

	discovered := result.Data[0].ID
	ch.PhoneNumberID = discovered

	if err := c.channels.SavePhoneNumberID(ctx, ch.ID, discovered); err != nil {
		logrus.WithError(err).Warnf("[CLOUD] Could not persist phone number id for channel %s", ch.ID)
	} else {
		logrus.Infof("[CLOUD] Discovered phone number id %s for channel %s", discovered, ch.ID)
	}
	return discovered, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "audio/ogg", "audio/ogg; codecs=opus":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
