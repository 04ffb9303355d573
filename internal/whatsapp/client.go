// Package whatsapp implements the Messenger port over the WhatsApp
// Graph API: text, interactive list/button sends, media resolution
// and media mirroring.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/construex/whatsapp-designer/internal/domain"
	"github.com/construex/whatsapp-designer/internal/facet"
)

// FooterText is appended to plain text and list messages so users can
// always find their way back to the start of the flow
const FooterText = "Type *3* anytime to restart your design preferences."

const listHeaderText = "🏡 ABYAT Imagine – Design Inspiration"

// Config holds Graph API credentials
type Config struct {
	AccessToken   string
	PhoneNumberID string
	GraphBaseURL  string
	Timeout       time.Duration
}

// Client implements domain.Messenger
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a Graph API client
func NewClient(cfg Config) *Client {
	if cfg.GraphBaseURL == "" {
		cfg.GraphBaseURL = "https://graph.facebook.com/v21.0"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AppendFooter adds the restart hint unless the message already
// carries one
func AppendFooter(message string) string {
	text := strings.TrimSpace(message)
	if text == "" {
		return FooterText
	}

	normalized := strings.ToLower(text)
	if strings.Contains(normalized, "type *3*") ||
		strings.Contains(normalized, "type 3") ||
		strings.Contains(normalized, strings.ToLower(FooterText)) {
		return text
	}

	return text + "\n\n" + FooterText
}

// SendText sends a plain text message with the restart footer
func (c *Client) SendText(ctx context.Context, to, body string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": AppendFooter(body)},
	}
	return c.postMessage(ctx, payload)
}

// SendList sends an interactive list prompt with one row per option
func (c *Client) SendList(ctx context.Context, to, body string, options []domain.FacetOption) error {
	rows := make([]map[string]string, 0, len(options))
	for _, opt := range options {
		rows = append(rows, map[string]string{
			"id":          opt.ID,
			"title":       opt.Title,
			"description": "",
		})
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "list",
			"header": map[string]string{"type": "text", "text": listHeaderText},
			"body":   map[string]string{"text": AppendFooter(body)},
			"footer": map[string]string{"text": "Home Designer Assistant"},
			"action": map[string]any{
				"button": "Select Option",
				"sections": []map[string]any{
					{"title": "Available Options", "rows": rows},
				},
			},
		},
	}
	return c.postMessage(ctx, payload)
}

// SendButtons sends an interactive reply-button prompt, optionally
// headed by an image or text header. No footer: button prompts carry
// their own calls to action.
func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []domain.Button, header *domain.MessageHeader) error {
	replies := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		replies = append(replies, map[string]any{
			"type":  "reply",
			"reply": map[string]string{"id": b.ID, "title": b.Title},
		})
	}

	interactive := map[string]any{
		"type":   "button",
		"body":   map[string]string{"text": body},
		"action": map[string]any{"buttons": replies},
	}

	if header != nil {
		switch {
		case header.MediaID != "":
			interactive["header"] = map[string]any{
				"type":  "image",
				"image": map[string]string{"id": header.MediaID},
			}
		case header.ImageURL != "":
			interactive["header"] = map[string]any{
				"type":  "image",
				"image": map[string]string{"link": header.ImageURL},
			}
		case header.Text != "":
			interactive["header"] = map[string]any{
				"type": "text",
				"text": facet.Truncate(header.Text, 60),
			}
		}
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive":       interactive,
	}
	return c.postMessage(ctx, payload)
}

// SetTyping marks the inbound message read and toggles the typing
// indicator
func (c *Client) SetTyping(ctx context.Context, to, messageID string, typing bool) error {
	if messageID == "" {
		return nil
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	if typing {
		payload["typing_indicator"] = map[string]string{"type": "text"}
	}
	return c.postMessage(ctx, payload)
}

// MediaURL resolves an inbound media id to its download URL
func (c *Client) MediaURL(ctx context.Context, mediaID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s", c.cfg.GraphBaseURL, mediaID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create media request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("media lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media lookup returned status %d", resp.StatusCode)
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode media response: %w", err)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("media response carried no URL")
	}

	return parsed.URL, nil
}

// DownloadMedia fetches media bytes with the Graph credentials
func (c *Client) DownloadMedia(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("media download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "binary/octet-stream" {
		mimeType = guessMimeType(url)
	}

	return data, mimeType, nil
}

// UploadImage downloads the image at url and re-uploads it to the
// Graph media endpoint, returning the media id usable as an
// interactive header
func (c *Client) UploadImage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read image body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "binary/octet-stream" {
		mimeType = guessMimeType(url)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="image.%s"`, extensionFor(mimeType)))
	header.Set("Content-Type", mimeType)

	part, err := form.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := form.WriteField("type", mimeType); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := form.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/media", c.cfg.GraphBaseURL, c.cfg.PhoneNumberID)
	uploadReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	uploadReq.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	uploadReq.Header.Set("Content-Type", form.FormDataContentType())

	uploadResp, err := c.httpClient.Do(uploadReq)
	if err != nil {
		return "", fmt.Errorf("media upload failed: %w", err)
	}
	defer uploadResp.Body.Close()

	if uploadResp.StatusCode < 200 || uploadResp.StatusCode >= 300 {
		return "", fmt.Errorf("media upload returned status %d", uploadResp.StatusCode)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(uploadResp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("media upload returned no id")
	}

	return parsed.ID, nil
}

func (c *Client) postMessage(ctx context.Context, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.cfg.GraphBaseURL, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create message request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("message send failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("message send returned status %d", resp.StatusCode)
	}
	return nil
}

func guessMimeType(url string) string {
	lower := strings.ToLower(url)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}

	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	default:
		return ""
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}
