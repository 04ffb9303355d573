package service

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/construex/whatsapp-designer/internal/domain"
)

// MockDesignAgent mocks the DesignAgent interface
type MockDesignAgent struct {
	mock.Mock
}

func (m *MockDesignAgent) Search(ctx context.Context, payload domain.SearchPayload) (*domain.SearchResult, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SearchResult), args.Error(1)
}

func (m *MockDesignAgent) GenerateEdit(ctx context.Context, query string, images []domain.EditImage) (*domain.EditResult, error) {
	args := m.Called(ctx, query, images)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EditResult), args.Error(1)
}

func (m *MockDesignAgent) UploadFile(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	args := m.Called(ctx, filename, mimeType, data)
	return args.String(0), args.Error(1)
}

// MockGateway mocks the GatewayNotifier interface
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SessionExpired(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockTranscripts mocks the TranscriptRepository interface
type MockTranscripts struct {
	mock.Mock
}

func (m *MockTranscripts) Record(ctx context.Context, entry *domain.TranscriptEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockTranscripts) ListByUser(ctx context.Context, userID string, limit int) ([]domain.TranscriptEntry, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]domain.TranscriptEntry), args.Error(1)
}

// memoryDeduper is a trivial in-process Deduper for tests
type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{seen: make(map[string]bool)}
}

func (d *memoryDeduper) MarkSeen(_ context.Context, messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[messageID] {
		return true, nil
	}
	d.seen[messageID] = true
	return false, nil
}

// sentMessage records one outbound message of any kind
type sentMessage struct {
	Kind    string // "text", "list", "buttons"
	Body    string
	Options []domain.FacetOption
	Buttons []domain.Button
	Header  *domain.MessageHeader
}

// fakeMessenger records every outbound message so tests can assert
// on the full reply sequence
type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage

	uploadHandle string
	uploadErr    error
	mediaURL     string
	mediaData    []byte
	mediaMime    string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		uploadHandle: "media-123",
		mediaURL:     "https://cdn.example.com/inbound.jpg",
		mediaData:    []byte("image-bytes"),
		mediaMime:    "image/jpeg",
	}
}

func (f *fakeMessenger) record(msg sentMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
}

func (f *fakeMessenger) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeMessenger) texts() []string {
	var out []string
	for _, msg := range f.messages() {
		if msg.Kind == "text" {
			out = append(out, msg.Body)
		}
	}
	return out
}

func (f *fakeMessenger) SendText(_ context.Context, _, body string) error {
	f.record(sentMessage{Kind: "text", Body: body})
	return nil
}

func (f *fakeMessenger) SendList(_ context.Context, _, body string, options []domain.FacetOption) error {
	f.record(sentMessage{Kind: "list", Body: body, Options: options})
	return nil
}

func (f *fakeMessenger) SendButtons(_ context.Context, _, body string, buttons []domain.Button, header *domain.MessageHeader) error {
	f.record(sentMessage{Kind: "buttons", Body: body, Buttons: buttons, Header: header})
	return nil
}

func (f *fakeMessenger) UploadImage(context.Context, string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return f.uploadHandle, nil
}

func (f *fakeMessenger) MediaURL(context.Context, string) (string, error) {
	return f.mediaURL, nil
}

func (f *fakeMessenger) DownloadMedia(context.Context, string) ([]byte, string, error) {
	return f.mediaData, f.mediaMime, nil
}

func (f *fakeMessenger) SetTyping(context.Context, string, string, bool) error {
	return nil
}
