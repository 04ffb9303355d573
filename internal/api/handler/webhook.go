package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/construex/whatsapp-designer/internal/api/response"
	"github.com/construex/whatsapp-designer/internal/domain"
	"github.com/construex/whatsapp-designer/internal/service"
)

var validate = validator.New()

// WebhookHandler receives the WhatsApp webhook: the GET verification
// handshake and the POST message deliveries
type WebhookHandler struct {
	conversation *service.Conversation
	verifyToken  string
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(conversation *service.Conversation, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		conversation: conversation,
		verifyToken:  verifyToken,
	}
}

// Verify answers the Graph API subscription handshake
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		log.Info().Msg("webhook verified successfully")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	response.Forbidden(w, "verification failed")
}

// webhookEnvelope mirrors the Graph API delivery shape down to the
// first message; everything else in the envelope is ignored
type webhookEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []webhookMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	From string `json:"from" validate:"required"`
	ID   string `json:"id"`
	Type string `json:"type"`

	Text *struct {
		Body string `json:"body"`
	} `json:"text"`

	Interactive *struct {
		ButtonReply *webhookReply `json:"button_reply"`
		ListReply   *webhookReply `json:"list_reply"`
	} `json:"interactive"`

	Image *struct {
		ID      string `json:"id"`
		Caption string `json:"caption"`
	} `json:"image"`
}

type webhookReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Receive acknowledges the delivery immediately and processes the
// message in the background; retries are driven by the sender, not
// by our response code
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var envelope webhookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		log.Warn().Err(err).Msg("undecodable webhook payload")
		w.WriteHeader(http.StatusOK)
		return
	}

	msg := firstMessage(envelope)
	if msg == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := validate.Struct(msg); err != nil {
		log.Warn().Err(err).Msg("webhook message missing sender")
		w.WriteHeader(http.StatusOK)
		return
	}

	// Acknowledge before processing.
	w.WriteHeader(http.StatusOK)

	event := toInboundEvent(*msg)
	go h.conversation.HandleEvent(context.Background(), event)
}

func firstMessage(envelope webhookEnvelope) *webhookMessage {
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			if len(change.Value.Messages) > 0 {
				return &change.Value.Messages[0]
			}
		}
	}
	return nil
}

func toInboundEvent(msg webhookMessage) domain.InboundEvent {
	event := domain.InboundEvent{
		UserID:    msg.From,
		MessageID: msg.ID,
	}

	switch msg.Type {
	case "text":
		event.Type = domain.MessageText
		if msg.Text != nil {
			event.Text = msg.Text.Body
		}

	case "interactive":
		var reply *webhookReply
		if msg.Interactive != nil {
			if msg.Interactive.ButtonReply != nil {
				reply = msg.Interactive.ButtonReply
				event.Type = domain.MessageButton
			} else if msg.Interactive.ListReply != nil {
				reply = msg.Interactive.ListReply
				event.Type = domain.MessageList
			}
		}
		if reply != nil {
			event.Selection = &domain.ReplySelection{ID: reply.ID, Title: reply.Title}
			event.Text = reply.Title
		} else {
			event.Type = domain.MessageUnsupported
			event.Text = "[unsupported message]"
		}

	case "image":
		event.Type = domain.MessageImage
		if msg.Image != nil {
			event.Image = &domain.InboundImage{MediaID: msg.Image.ID, Caption: msg.Image.Caption}
		}

	case "voice":
		event.Type = domain.MessageVoice
		event.Text = "[voice message]"
	case "audio":
		event.Type = domain.MessageAudio
		event.Text = "[audio]"
	case "video":
		event.Type = domain.MessageVideo
		event.Text = "[video]"
	case "document":
		event.Type = domain.MessageDocument
		event.Text = "[document]"
	default:
		event.Type = domain.MessageUnsupported
		event.Text = "[unsupported message]"
	}

	return event
}
