package domain

// MessageType tags the inbound event shape after envelope decoding
type MessageType string

const (
	MessageText        MessageType = "text"
	MessageButton      MessageType = "button"
	MessageList        MessageType = "list"
	MessageImage       MessageType = "image"
	MessageVoice       MessageType = "voice"
	MessageAudio       MessageType = "audio"
	MessageVideo       MessageType = "video"
	MessageDocument    MessageType = "document"
	MessageUnsupported MessageType = "unsupported"
)

// InboundEvent is one user event handed to the conversation service
// after webhook decoding and deduplication
type InboundEvent struct {
	UserID    string
	MessageID string
	Type      MessageType

	// Text carries the body for text events and a placeholder such
	// as "[voice message]" for unsupported media types.
	Text string

	// Selection is set for interactive replies.
	Selection *ReplySelection

	// Image is set for image events.
	Image *InboundImage
}

// ReplySelection is the raw id/title pair of an interactive reply.
// The reply carries no facet key; the conversation service resolves
// it against the stored facet context and action bindings.
type ReplySelection struct {
	ID    string
	Title string
}

// InboundImage references a transport-hosted media object
type InboundImage struct {
	MediaID string
	Caption string
}
