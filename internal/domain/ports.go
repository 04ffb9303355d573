package domain

import (
	"context"
	"time"
)

// Button is one interactive reply button
type Button struct {
	ID    string
	Title string
}

// MessageHeader is an optional interactive-message header: a
// transport media handle, a raw image URL, or plain text
type MessageHeader struct {
	MediaID  string
	ImageURL string
	Text     string
}

// Messenger sends outbound messages over the chat transport and
// mirrors externally-hosted media into transport-native handles
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	SendList(ctx context.Context, to, body string, options []FacetOption) error
	SendButtons(ctx context.Context, to, body string, buttons []Button, header *MessageHeader) error
	// UploadImage downloads the image at url and re-uploads it to the
	// transport, returning the media handle.
	UploadImage(ctx context.Context, url string) (string, error)
	// MediaURL resolves an inbound media id to a download URL.
	MediaURL(ctx context.Context, mediaID string) (string, error)
	// DownloadMedia fetches media bytes plus their MIME type.
	DownloadMedia(ctx context.Context, url string) ([]byte, string, error)
	// SetTyping toggles the typing indicator for the message being
	// answered. Best effort; failures are logged by callers, not
	// propagated.
	SetTyping(ctx context.Context, to, messageID string, typing bool) error
}

// SearchResult bundles what one workflow-agent search run yields: the
// canonical design response (possibly nil) and an optional free-text
// summary produced by the agent
type SearchResult struct {
	Design  *DesignResponse
	Summary string
}

// EditResult is the outcome of an edit-generation run
type EditResult struct {
	ImageURL    string
	Name        string
	Description string
}

// SearchPayload is the external search contract built from a
// DesignSearchState by the facet package
type SearchPayload struct {
	Locale      string         `json:"locale"`
	Currency    string         `json:"currency"`
	Marketplace string         `json:"marketplace"`
	Seed        string         `json:"seed,omitempty"`
	Size        int            `json:"size"`
	Page        int            `json:"page"`
	Filters     map[string]any `json:"filters"`
	Facets      []string       `json:"facets"`
}

// DesignAgent is the workflow-agent backend: structured design
// search, image-based edit generation, and file re-hosting
type DesignAgent interface {
	Search(ctx context.Context, payload SearchPayload) (*SearchResult, error)
	GenerateEdit(ctx context.Context, query string, images []EditImage) (*EditResult, error)
	// UploadFile re-hosts raw bytes and returns a public URL.
	UploadFile(ctx context.Context, filename, mimeType string, data []byte) (string, error)
}

// GatewayNotifier tells the routing gateway to forget a user once
// their session expires
type GatewayNotifier interface {
	SessionExpired(ctx context.Context, userID string) error
}

// Deduper remembers recently processed message ids. MarkSeen
// atomically records an id and reports whether it had been seen
// before; entries are evicted by age.
type Deduper interface {
	MarkSeen(ctx context.Context, messageID string) (seen bool, err error)
}

// TranscriptDirection tags transcript entries
type TranscriptDirection string

const (
	DirectionInbound  TranscriptDirection = "inbound"
	DirectionOutbound TranscriptDirection = "outbound"
)

// TranscriptEntry is one persisted conversation line
type TranscriptEntry struct {
	UserID    string
	SessionID string
	Direction TranscriptDirection
	Type      MessageType
	Body      string
	CreatedAt time.Time
}

// TranscriptRepository persists conversation transcripts. Writes are
// best effort; the conversation flow never blocks on them.
type TranscriptRepository interface {
	Record(ctx context.Context, entry *TranscriptEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]TranscriptEntry, error)
}
