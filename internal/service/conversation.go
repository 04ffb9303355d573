package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/construex/whatsapp-designer/internal/domain"
	"github.com/construex/whatsapp-designer/internal/facet"
	"github.com/construex/whatsapp-designer/internal/session"
)

const (
	resetKeyword   = "1"
	restartKeyword = "3"

	facetOptionLimit = 10

	pricePromptText = "Reply with your budget range in SAR (example: 2000-5000). You can also type *skip* if you want to move on without setting a price."
	priceSingleText = "I saw one price value. Please include both a minimum and a maximum like 2000-5000 so I can filter properly."

	apologyText = "⚠️ Something went wrong while generating your design. Please try again later."

	photoOutsideEditText = "Tap *Edit Preferences* before sending photos so I can use them in your update."

	editUnsupportedText = "I can only work with photos and text while editing. Send a photo, describe the change, or type *7* to exit edit mode."
)

// Conversation is the per-user conversational engine: it walks the
// facet sequence, applies selections, presents inspiration previews
// and delegates to the edit sub-session while one is active.
type Conversation struct {
	store       *session.Store
	messenger   domain.Messenger
	agent       domain.DesignAgent
	gateway     domain.GatewayNotifier
	deduper     domain.Deduper
	transcripts domain.TranscriptRepository
}

// NewConversation wires the conversation service and registers the
// session expiry handlers on the store
func NewConversation(
	store *session.Store,
	messenger domain.Messenger,
	agent domain.DesignAgent,
	gateway domain.GatewayNotifier,
	deduper domain.Deduper,
	transcripts domain.TranscriptRepository,
) *Conversation {
	c := &Conversation{
		store:       store,
		messenger:   messenger,
		agent:       agent,
		gateway:     gateway,
		deduper:     deduper,
		transcripts: transcripts,
	}

	store.SetExpiryHandlers(c.onSessionExpired, c.onEditExpired)
	return c
}

func (c *Conversation) onSessionExpired(userID string, _ *domain.UserSession) {
	if c.gateway == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.gateway.SessionExpired(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("failed to notify gateway about session expiry")
	}
}

func (c *Conversation) onEditExpired(userID string, _ *domain.UserSession) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notice := fmt.Sprintf("⏰ Edit mode closed after %s with no reply.", formatWindow(c.store.EditTTL()))
	if err := c.messenger.SendText(ctx, userID, notice); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("edit timeout notification failed")
	}
}

// formatWindow renders an inactivity window for user-facing copy
func formatWindow(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}

	s := int(d / time.Second)
	if s <= 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", s)
}

// HandleEvent processes one deduplicated inbound event. The webhook
// has already been acknowledged; everything here runs after the fact,
// serialized per user by the session store.
func (c *Conversation) HandleEvent(ctx context.Context, event domain.InboundEvent) {
	if c.deduper != nil && event.MessageID != "" {
		seen, err := c.deduper.MarkSeen(ctx, event.MessageID)
		if err != nil {
			log.Warn().Err(err).Str("message_id", event.MessageID).Msg("dedup check failed, processing anyway")
		} else if seen {
			log.Info().Str("message_id", event.MessageID).Msg("duplicate message ignored")
			return
		}
	}

	if event.MessageID != "" {
		if err := c.messenger.SetTyping(ctx, event.UserID, event.MessageID, true); err != nil {
			log.Debug().Err(err).Msg("typing indicator failed")
		}
	}

	c.store.Do(event.UserID, func(h *session.Handle) {
		c.recordInbound(ctx, h, event)
		c.process(ctx, h, event)
	})
}

func (c *Conversation) process(ctx context.Context, h *session.Handle, event domain.InboundEvent) {
	switch event.Type {
	case domain.MessageImage:
		c.processImage(ctx, h, event)
	case domain.MessageButton, domain.MessageList:
		c.processSelection(ctx, h, event)
	default:
		c.processText(ctx, h, event)
	}
}

func (c *Conversation) processImage(ctx context.Context, h *session.Handle, event domain.InboundEvent) {
	sess := h.Session()
	if sess == nil || sess.EditSession == nil {
		c.sendText(ctx, h, photoOutsideEditText)
		return
	}
	c.handleEditImage(ctx, h, event)
}

func (c *Conversation) processText(ctx context.Context, h *session.Handle, event domain.InboundEvent) {
	text := strings.TrimSpace(event.Text)

	if sess := h.Session(); sess != nil && sess.EditSession != nil {
		if event.Type == domain.MessageText {
			c.handleEditText(ctx, h, text, event.MessageID)
		} else {
			// Placeholder media types keep the edit session alive but
			// never become part of the request.
			h.TouchEdit()
			c.sendText(ctx, h, editUnsupportedText)
		}
		return
	}

	c.respond(ctx, h, resolvedInput{
		text:        text,
		messageID:   event.MessageID,
		messageType: event.Type,
	})
}

// resolvedInput is one inbound event after reply resolution: either a
// (facetKey, value) pair, a short-circuit action, or plain text
type resolvedInput struct {
	text        string
	messageID   string
	messageType domain.MessageType

	facetKey domain.FacetKey
	values   []string
	price    *domain.PriceSelection

	action     domain.ActionKind
	actionMeta *domain.ActionBinding
}

func (in resolvedInput) hasSelection() bool {
	return in.facetKey != "" && (len(in.values) > 0 || in.price != nil)
}

func (c *Conversation) processSelection(ctx context.Context, h *session.Handle, event domain.InboundEvent) {
	sel := event.Selection
	if sel == nil {
		return
	}
	title := strings.TrimSpace(sel.Title)

	// An active edit session claims the reply outright; anything not
	// matching a bound action is treated as edit text.
	if sess := h.Session(); sess != nil && sess.EditSession != nil {
		if !c.handleEditAction(ctx, h, sel.ID, title, event.MessageID) {
			c.handleEditText(ctx, h, title, event.MessageID)
		}
		return
	}

	sess := h.Session()
	facetCtx := c.facetContextFor(sess)

	matched := matchOption(facetCtx, sel.ID, title)

	resolved := title
	if matched != nil {
		if matched.Value != "" {
			resolved = matched.Value
		} else {
			resolved = matched.ID
		}
	} else if sel.ID != "" {
		resolved = sel.ID
	}

	binding := lookupActionBinding(sess, sel.ID, resolved)

	input := resolvedInput{
		text:        title,
		messageID:   event.MessageID,
		messageType: event.Type,
	}

	if binding != nil {
		input.action = binding.Action
		input.actionMeta = binding
	} else {
		if facetCtx != nil {
			input.facetKey = facetCtx.FacetKey
		}
		if input.facetKey == "" && sess != nil {
			input.facetKey = sess.Step
		}
		if kind := actionFromValue(resolved); kind != "" {
			// Preview fallback buttons carry their action as the
			// option value rather than a stored binding.
			input.facetKey = ""
			input.action = kind
		} else if input.facetKey != "" {
			input.values = []string{resolved}
		} else {
			input.text = resolved
		}
	}

	if sess != nil && sess.FacetContext != nil {
		sess.FacetContext = nil
	}

	c.respond(ctx, h, input)
}

// facetContextFor returns the stored facet context, rebuilding it
// from the cached facet counts when it was lost but a step is pending
func (c *Conversation) facetContextFor(sess *domain.UserSession) *domain.FacetContext {
	if sess == nil {
		return nil
	}
	if sess.FacetContext != nil {
		return sess.FacetContext
	}
	if sess.Step == "" {
		return nil
	}

	options := facet.ExtractOptions(sess.FacetCounts, sess.Step, facetOptionLimit)
	rebuilt := &domain.FacetContext{
		FacetKey:  sess.Step,
		Options:   options,
		Timestamp: time.Now(),
		Recovered: true,
	}
	sess.FacetContext = rebuilt

	log.Warn().Str("user", sess.UserID).Str("facet", string(sess.Step)).Msg("rebuilt facet context from cached counts")
	return rebuilt
}

func matchOption(facetCtx *domain.FacetContext, id, title string) *domain.FacetOption {
	if facetCtx == nil {
		return nil
	}
	upperTitle := strings.ToUpper(title)
	for i := range facetCtx.Options {
		opt := &facetCtx.Options[i]
		if (id != "" && opt.ID == id) ||
			(title != "" && (opt.Title == title || opt.Value == title)) ||
			(upperTitle != "" && strings.ToUpper(opt.Title) == upperTitle) {
			return opt
		}
	}
	return nil
}

func lookupActionBinding(sess *domain.UserSession, id, resolved string) *domain.ActionBinding {
	if sess == nil || sess.InspirationContext == nil {
		return nil
	}
	actions := sess.InspirationContext.Actions
	if actions == nil {
		return nil
	}
	if binding, ok := actions[id]; ok {
		return &binding
	}
	if binding, ok := actions[resolved]; ok {
		return &binding
	}
	return nil
}

func actionFromValue(value string) domain.ActionKind {
	switch domain.ActionKind(strings.ToLower(value)) {
	case domain.ActionViewInspirations,
		domain.ActionGenerateInspirations,
		domain.ActionRegenerateInspirations,
		domain.ActionViewProducts,
		domain.ActionEditPreferences:
		return domain.ActionKind(strings.ToLower(value))
	}
	return ""
}

// respond is the main facet-walk response path, shared by text and
// resolved interactive inputs
func (c *Conversation) respond(ctx context.Context, h *session.Handle, input resolvedInput) {
	lower := strings.ToLower(input.text)

	fresh := h.Session() == nil
	shouldReset := fresh || lower == resetKeyword || lower == restartKeyword

	if shouldReset {
		if lower == restartKeyword {
			log.Info().Str("user", h.UserID()).Msg("restart command received")
		}
		h.Replace(c.newSession(h.UserID()))
	} else {
		h.Touch()
	}

	sess := h.Session()

	pendingKey := sess.Step
	if shouldReset {
		pendingKey = ""
	}

	if input.action != "" && input.facetKey == "" {
		if c.handleAction(ctx, h, input) {
			return
		}
	}

	if input.facetKey == "" && pendingKey == domain.FacetPrices && input.text != "" {
		done := c.resolvePriceText(ctx, h, &input, lower)
		if done {
			return
		}
	}

	if input.facetKey == domain.FacetPrices && input.price == nil && len(input.values) > 0 {
		resolvePriceValue(&input)
	}

	appliedKey := domain.FacetKey("")
	if input.hasSelection() {
		sel := facet.Selection{Key: input.facetKey, Values: input.values}
		if input.price != nil {
			sel.Price = *input.price
		}
		facet.ApplySelection(&sess.DesignState, sel)
		appliedKey = input.facetKey
	}

	next := facet.NextUnanswered(sess.DesignState, appliedKey)
	sess.Step = next

	designResponse, agentText := c.searchDesigns(ctx, h, input)

	if designResponse == nil {
		designResponse = &domain.DesignResponse{FacetCounts: sess.FacetCounts}
	}
	if sess.FacetCounts == nil {
		sess.FacetCounts = designResponse.FacetCounts
	}

	responseText := buildSummaryMessage(designResponse, shouldReset, next)
	if agentText != "" {
		responseText = agentText
	}

	visited := make(map[domain.FacetKey]bool)

	for next != "" {
		if visited[next] {
			log.Warn().Str("user", h.UserID()).Str("facet", string(next)).Msg("facet loop detected, aborting walk")
			next = ""
			break
		}
		visited[next] = true

		options := facet.ExtractOptions(sess.FacetCounts, next, facetOptionLimit)

		if len(options) > 0 {
			sess.FacetContext = &domain.FacetContext{
				FacetKey:  next,
				Options:   options,
				Timestamp: time.Now(),
			}
			sess.Step = next

			body := responseText + "\n\nSelect from the options below to refine your design preferences."
			if next == domain.FacetPrices {
				body += "\n\nYou can also reply with your own range (e.g., 2000-5000)."
			}

			if err := c.messenger.SendList(ctx, h.UserID(), body, options); err != nil {
				log.Error().Err(err).Str("user", h.UserID()).Msg("failed to send facet options")
			}
			c.recordOutbound(ctx, h, domain.MessageList, body)
			return
		}

		if next == domain.FacetPrices {
			// No price buckets came back; recommend a budget and move
			// straight to the preview.
			sess.Step = ""
			if c.sendPreferredBudgetAndPreview(ctx, h, responseText, designResponse) {
				return
			}
		}

		log.Info().Str("facet", string(next)).Msg("skipping facet with no options")
		next = facet.NextUnanswered(sess.DesignState, next)
	}

	if next == "" {
		if c.presentPreview(ctx, h, responseText, designResponse, false) {
			sess.Step = ""
			return
		}
	}

	sess.Step = next
	sess.FacetContext = nil

	c.sendText(ctx, h, responseText+"\n\nType *1* anytime - return to *main menu*.")
}

// handleAction short-circuits the facet walk for interactive actions
func (c *Conversation) handleAction(ctx context.Context, h *session.Handle, input resolvedInput) bool {
	sess := h.Session()

	switch input.action {
	case domain.ActionFinalDesignAccept:
		sess.EditSession = nil
		h.CancelEditTimer()
		sess.InspirationContext = nil
		c.sendText(ctx, h, "✅ Glad you like the design! Thanks for using AI Home Designer.\n\nType 1 anytime if you want to start a new project.")
		return true

	case domain.ActionRestartEditSession, domain.ActionStartEditPreferences:
		sess.InspirationContext = nil
		c.startEditSession(ctx, h, input.actionMeta)
		return true

	case domain.ActionViewInspirations,
		domain.ActionGenerateInspirations,
		domain.ActionRegenerateInspirations,
		domain.ActionViewProducts,
		domain.ActionEditPreferences:
		c.handleInspirationAction(ctx, h, input.action, input.actionMeta)
		return true
	}

	return false
}

// resolvePriceText handles free-text input while the price facet is
// pending. Returns true when the turn was fully answered here.
func (c *Conversation) resolvePriceText(ctx context.Context, h *session.Handle, input *resolvedInput, lower string) bool {
	if lower == "skip" {
		input.facetKey = domain.FacetPrices
		input.price = &domain.PriceSelection{Skipped: true}
		c.sendText(ctx, h, "👍 Got it, I'll show inspirations from all price ranges.")
		return false
	}

	parsed := facet.ParsePriceInput(input.text)

	if parsed.Selection != nil {
		input.facetKey = domain.FacetPrices
		input.price = parsed.Selection

		if friendly := facet.FormatPriceRange(*parsed.Selection); friendly != "" {
			c.sendText(ctx, h, fmt.Sprintf("💰 Budget set to %s. Let me update your results.", friendly))
		}
		return false
	}

	if parsed.SingleValue {
		c.sendText(ctx, h, priceSingleText+"\n\n"+pricePromptText)
		return true
	}

	// No numeric tokens at all; fall through to normal handling.
	return false
}

// resolvePriceValue turns a tapped price bucket into an explicit
// range. Bucket options carry "min-max" string values; a skip option
// counts the same as the typed keyword.
func resolvePriceValue(input *resolvedInput) {
	value := strings.TrimSpace(input.values[0])

	if strings.EqualFold(value, "skip") {
		input.price = &domain.PriceSelection{Skipped: true}
		input.values = nil
		return
	}

	if parsed := facet.ParsePriceInput(value); parsed.Selection != nil {
		input.price = parsed.Selection
		input.values = nil
	}
}

// searchDesigns runs one agent search for the current state. Failures
// degrade to the cached facet counts rather than failing the turn.
func (c *Conversation) searchDesigns(ctx context.Context, h *session.Handle, input resolvedInput) (*domain.DesignResponse, string) {
	sess := h.Session()

	payload := facet.BuildSearchPayload(sess.DesignState)

	result, err := c.agent.Search(ctx, payload)
	if err != nil {
		log.Warn().Err(err).Str("user", h.UserID()).Msg("agent search failed, continuing with summary")
		return nil, ""
	}

	if input.messageID != "" {
		if err := c.messenger.SetTyping(ctx, h.UserID(), input.messageID, false); err != nil {
			log.Debug().Err(err).Msg("typing indicator failed")
		}
	}

	if result == nil {
		return nil, ""
	}

	if result.Design != nil && result.Design.FacetCounts != nil {
		sess.FacetCounts = result.Design.FacetCounts
	}

	return result.Design, result.Summary
}

func buildSummaryMessage(resp *domain.DesignResponse, isReset bool, next domain.FacetKey) string {
	total := 0
	if resp != nil {
		total = resp.Total
		if total == 0 {
			total = len(resp.Inspirations)
		}
	}

	var lines []string

	if isReset {
		lines = append(lines, "👋 Welcome to your AI Home Designer!")
	}

	if total > 0 {
		lines = append(lines, "✨ ABYAT Imagine is curating stunning design inspirations just for you...")
	} else {
		lines = append(lines, "💡 Let’s discover beautiful room inspirations crafted around your unique style and preferences.")
	}

	switch {
	case next == domain.FacetPrices:
		lines = append(lines, "\n\nTell me your budget range so I can narrow the inspirations to fit your needs.")
	case next != "":
		lines = append(lines, fmt.Sprintf("\n\nPlease select your preferred %s to proceed.", facet.Label(next)))
	default:
		lines = append(lines, "\n\nThese preferences look great! Please wait while we are preparing your design options.")
	}

	return strings.Join(lines, "\n")
}

func (c *Conversation) newSession(userID string) *domain.UserSession {
	return &domain.UserSession{
		ID:          "sess_" + uuid.NewString(),
		UserID:      userID,
		StartedAt:   time.Now(),
		DesignState: facet.NewDesignState(),
	}
}

// sendText sends a plain text reply and records it in the transcript
func (c *Conversation) sendText(ctx context.Context, h *session.Handle, body string) {
	if err := c.messenger.SendText(ctx, h.UserID(), body); err != nil {
		log.Error().Err(err).Str("user", h.UserID()).Msg("failed to send text message")
		return
	}
	c.recordOutbound(ctx, h, domain.MessageText, body)
}

func (c *Conversation) recordInbound(ctx context.Context, h *session.Handle, event domain.InboundEvent) {
	body := event.Text
	if event.Selection != nil {
		body = event.Selection.Title
	}
	c.record(ctx, h, domain.DirectionInbound, event.Type, body)
}

func (c *Conversation) recordOutbound(ctx context.Context, h *session.Handle, msgType domain.MessageType, body string) {
	c.record(ctx, h, domain.DirectionOutbound, msgType, body)
}

func (c *Conversation) record(ctx context.Context, h *session.Handle, dir domain.TranscriptDirection, msgType domain.MessageType, body string) {
	if c.transcripts == nil {
		return
	}

	sessionID := ""
	if sess := h.Session(); sess != nil {
		sessionID = sess.ID
	}

	entry := &domain.TranscriptEntry{
		UserID:    h.UserID(),
		SessionID: sessionID,
		Direction: dir,
		Type:      msgType,
		Body:      body,
		CreatedAt: time.Now(),
	}
	if err := c.transcripts.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Str("user", h.UserID()).Msg("failed to record transcript entry")
	}
}
