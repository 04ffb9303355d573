// Package agent talks to the external workflow-agent API: structured
// design search, image-based edit generation, and file re-hosting.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/construex/whatsapp-designer/internal/domain"
	"github.com/rs/zerolog/log"
)

// Config holds the workflow-agent endpoints and credentials
type Config struct {
	StartEndpoint  string
	EditEndpoint   string
	UploadEndpoint string
	AuthorizeToken string
	Subdomain      string
	UserType       string
	CDNBase        string
	Timeout        time.Duration
}

// Client implements domain.DesignAgent over HTTP
type Client struct {
	cfg        Config
	httpClient *http.Client
	parser     *Parser
}

// NewClient creates a workflow-agent client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		parser:     &Parser{CDNBase: cfg.CDNBase},
	}
}

// Parser exposes the client's response parser for callers that parse
// cached payloads
func (c *Client) Parser() *Parser {
	return c.parser
}

// Search runs one design-search workflow and returns the canonical
// design response plus the agent's summary text
func (c *Client) Search(ctx context.Context, payload domain.SearchPayload) (*domain.SearchResult, error) {
	if c.cfg.AuthorizeToken == "" {
		return nil, fmt.Errorf("agent authorize token not configured")
	}

	query, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize search payload: %w", err)
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	if err := form.WriteField("query", string(query)); err != nil {
		return nil, fmt.Errorf("failed to build search form: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to build search form: %w", err)
	}

	raw, err := c.post(ctx, c.cfg.StartEndpoint, form.FormDataContentType(), body)
	if err != nil {
		return nil, err
	}

	workflow, err := ParseEnvelope(raw)
	if err != nil {
		return nil, err
	}

	design, err := c.parser.ExtractDesignResponse(workflow)
	if err != nil {
		return nil, err
	}

	return &domain.SearchResult{
		Design:  design,
		Summary: ExtractSummaryText(workflow),
	}, nil
}

// GenerateEdit dispatches the collected reference images plus the
// user's request to the edit workflow and returns the generated image
func (c *Client) GenerateEdit(ctx context.Context, query string, images []domain.EditImage) (*domain.EditResult, error) {
	if c.cfg.AuthorizeToken == "" {
		return nil, fmt.Errorf("agent authorize token not configured")
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	if err := form.WriteField("query", query); err != nil {
		return nil, fmt.Errorf("failed to build edit form: %w", err)
	}

	seen := make(map[string]bool)
	for i, img := range images {
		url := img.UploadedURL
		if url == "" {
			url = img.SourceURL
		}

		switch {
		case url != "":
			if seen[url] {
				continue
			}
			seen[url] = true
			if err := form.WriteField("files[]", url); err != nil {
				return nil, fmt.Errorf("failed to attach image url: %w", err)
			}
		case len(img.Data) > 0:
			filename := img.Filename
			if filename == "" {
				filename = fmt.Sprintf("edit-%d.jpg", i+1)
			}
			part, err := createFilePart(form, "files[]", filename, img.MimeType)
			if err != nil {
				return nil, fmt.Errorf("failed to attach image bytes: %w", err)
			}
			if _, err := part.Write(img.Data); err != nil {
				return nil, fmt.Errorf("failed to attach image bytes: %w", err)
			}
		default:
			log.Warn().Int("index", i).Msg("edit image has no attachment data")
		}
	}

	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to build edit form: %w", err)
	}

	raw, err := c.post(ctx, c.cfg.EditEndpoint, form.FormDataContentType(), body)
	if err != nil {
		return nil, err
	}

	workflow, err := ParseEnvelope(raw)
	if err != nil {
		return nil, err
	}

	return ExtractEditResult(workflow)
}

// UploadFile re-hosts raw bytes through the agent's file upload
// endpoint and returns the first public URL
func (c *Client) UploadFile(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	part, err := createFilePart(form, "files", filename, mimeType)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	raw, err := c.post(ctx, c.cfg.UploadEndpoint, form.FormDataContentType(), body)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Files []struct {
			Location string `json:"Location"`
		} `json:"files"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if len(parsed.Files) == 0 || parsed.Files[0].Location == "" {
		return "", fmt.Errorf("upload response carried no file URL")
	}

	return parsed.Files[0].Location, nil
}

func (c *Client) post(ctx context.Context, endpoint, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	if c.cfg.AuthorizeToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthorizeToken)
	}
	if c.cfg.Subdomain != "" {
		req.Header.Set("subdomain", c.cfg.Subdomain)
	}
	if c.cfg.UserType != "" {
		req.Header.Set("x-user-type", c.cfg.UserType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read agent response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent returned status %d", resp.StatusCode)
	}

	return raw, nil
}

func createFilePart(form *multipart.Writer, field, filename, mimeType string) (io.Writer, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", mimeType)
	return form.CreatePart(header)
}
