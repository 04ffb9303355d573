package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/construex/whatsapp-designer/internal/agent"
	"github.com/construex/whatsapp-designer/internal/domain"
	"github.com/construex/whatsapp-designer/internal/facet"
	"github.com/construex/whatsapp-designer/internal/session"
)

const (
	minPreviewCount    = 4
	previewRetryWindow = 30 * time.Second

	maxProductIDs = 5
)

// ensurePreview returns an inspiration preview for the user, serving
// the cached one when it is still good. Policy, in order: cache hit
// with enough items, backoff after a recent failed attempt, adopting
// a caller-supplied response with enough items, then a fresh fetch
// with the caller's response as fallback.
func (c *Conversation) ensurePreview(ctx context.Context, h *session.Handle, resp *domain.DesignResponse, force bool) *domain.InspirationPreview {
	sess := h.Session()
	existing := sess.InspirationContext

	if !force && existing != nil && existing.Preview != nil && len(existing.Preview.Inspirations) >= minPreviewCount {
		log.Info().Str("user", h.UserID()).Msg("using cached inspiration preview")
		return existing.Preview
	}

	if !force && existing != nil && existing.Err {
		if time.Since(existing.Timestamp) < previewRetryWindow {
			log.Info().Str("user", h.UserID()).Msg("skipping preview fetch, last attempt failed recently")
			return nil
		}
		log.Info().Str("user", h.UserID()).Msg("retrying inspiration preview fetch after previous error")
	}

	fromResponse := previewFromResponse(resp)

	if !force && fromResponse != nil && len(fromResponse.Inspirations) >= minPreviewCount {
		sess.InspirationContext = &domain.InspirationContext{
			Preview:   fromResponse,
			Timestamp: time.Now(),
			Actions:   make(map[string]domain.ActionBinding),
		}
		return fromResponse
	}

	preview := c.fetchPreview(ctx, h)

	if (preview == nil || len(preview.Inspirations) == 0) && fromResponse != nil && len(fromResponse.Inspirations) > 0 {
		log.Info().Str("user", h.UserID()).Msg("preview fetch empty, falling back to design response data")
		preview = fromResponse
	}

	if preview != nil && len(preview.Inspirations) > 0 {
		sess.InspirationContext = &domain.InspirationContext{
			Preview:   preview,
			Timestamp: time.Now(),
			Actions:   make(map[string]domain.ActionBinding),
		}
		return preview
	}

	sess.InspirationContext = &domain.InspirationContext{
		Timestamp: time.Now(),
		Err:       true,
		Actions:   make(map[string]domain.ActionBinding),
	}
	return nil
}

func previewFromResponse(resp *domain.DesignResponse) *domain.InspirationPreview {
	if resp == nil || len(resp.Inspirations) == 0 {
		return nil
	}

	total := resp.Total
	if total == 0 {
		total = len(resp.Inspirations)
	}

	return &domain.InspirationPreview{
		Inspirations: resp.Inspirations,
		Total:        total,
		FacetCounts:  resp.FacetCounts,
	}
}

func (c *Conversation) fetchPreview(ctx context.Context, h *session.Handle) *domain.InspirationPreview {
	sess := h.Session()

	previewState := sess.DesignState
	previewState.Size = minPreviewCount
	previewState.Page = 1

	result, err := c.agent.Search(ctx, facet.BuildSearchPayload(previewState))
	if err != nil {
		log.Warn().Err(err).Str("user", h.UserID()).Msg("inspiration preview fetch failed")
		return nil
	}
	if result == nil || result.Design == nil {
		return nil
	}
	return previewFromResponse(result.Design)
}

// presentPreview obtains a preview and sends it. Returns false when no
// preview could be obtained.
func (c *Conversation) presentPreview(ctx context.Context, h *session.Handle, introText string, resp *domain.DesignResponse, force bool) bool {
	preview := c.ensurePreview(ctx, h, resp, force)
	if preview == nil || len(preview.Inspirations) == 0 {
		return false
	}

	c.presentInspirations(ctx, h, introText, preview)
	return true
}

// presentInspirations sends up to four inspirations as individual
// button messages, each bound to an edit-preferences action for that
// item
func (c *Conversation) presentInspirations(ctx context.Context, h *session.Handle, introText string, preview *domain.InspirationPreview) {
	sess := h.Session()
	inspCtx := sess.InspirationContext
	if inspCtx == nil {
		inspCtx = &domain.InspirationContext{Preview: preview, Timestamp: time.Now()}
		sess.InspirationContext = inspCtx
	}
	inspCtx.Preview = preview
	inspCtx.Actions = make(map[string]domain.ActionBinding)

	if introText != "" {
		c.sendText(ctx, h, introText)
	}

	inspirations := preview.Inspirations
	if len(inspirations) > minPreviewCount {
		inspirations = inspirations[:minPreviewCount]
	}

	for i, insp := range inspirations {
		title := fmt.Sprintf("Inspiration %d", i+1)
		if insp.Room != "" {
			title = facet.TitleCase(insp.Room)
		}

		description := facet.Truncate(insp.Description, 260)
		if description == "" {
			description = "Curated inspiration just for you. Let me know if you’d like to adjust anything."
		}

		index := i
		buttonID := fmt.Sprintf("edit_preferences_%d", i+1)
		buttons := []domain.Button{{ID: buttonID, Title: "Edit Preferences"}}
		inspCtx.Actions[buttonID] = domain.ActionBinding{
			Action: domain.ActionEditPreferences,
			Index:  &index,
		}

		// A stray generic reply after the preview must not be routed
		// to a stale facet.
		sess.FacetContext = &domain.FacetContext{
			Options:   []domain.FacetOption{{ID: buttonID, Title: "Edit Preferences"}},
			Timestamp: time.Now(),
			Preview:   true,
		}

		sent := false
		if insp.ImageURL != "" {
			mediaID, err := c.messenger.UploadImage(ctx, insp.ImageURL)
			if err != nil {
				log.Warn().Err(err).Str("user", h.UserID()).Msg("unable to mirror inspiration image")
			} else {
				body := fmt.Sprintf("🖼️ *%s*\n%s", title, description)
				if err := c.messenger.SendButtons(ctx, h.UserID(), body, buttons, &domain.MessageHeader{MediaID: mediaID}); err != nil {
					log.Warn().Err(err).Str("user", h.UserID()).Msg("unable to send inspiration message")
				} else {
					c.recordOutbound(ctx, h, domain.MessageButton, body)
					sent = true
				}
			}
		}
		if !sent {
			c.sendText(ctx, h, fmt.Sprintf("%s: %s", title, description))
		}
	}
}

// handleInspirationAction dispatches the inspiration button family:
// view, generate, regenerate, view products and edit preferences
func (c *Conversation) handleInspirationAction(ctx context.Context, h *session.Handle, action domain.ActionKind, meta *domain.ActionBinding) {
	sess := h.Session()

	// One fetch serves the whole dispatch; the presentation path reuses
	// the preview obtained here.
	force := action == domain.ActionGenerateInspirations || action == domain.ActionRegenerateInspirations
	preview := c.ensurePreview(ctx, h, nil, force)

	if preview == nil || len(preview.Inspirations) == 0 {
		if action == domain.ActionRegenerateInspirations {
			c.sendText(ctx, h, "I wasn’t able to regenerate new inspirations right now. Please try again shortly.")
		} else {
			c.sendText(ctx, h, "I couldn't load your inspirations right now. Please try again in a moment or adjust your preferences.")
		}
		return
	}

	inspirations := preview.Inspirations
	if len(inspirations) > minPreviewCount {
		inspirations = inspirations[:minPreviewCount]
	}

	switch action {
	case domain.ActionViewInspirations:
		c.presentInspirations(ctx, h, "Here are your inspirations again.", preview)

	case domain.ActionGenerateInspirations:
		c.presentInspirations(ctx, h, "Here are inspirations tailored to your preferences.", preview)

	case domain.ActionRegenerateInspirations:
		c.presentInspirations(ctx, h, "Here’s another set of inspirations for you.", preview)

	case domain.ActionViewProducts:
		c.sendProductList(ctx, h, inspirations, boundIndex(meta, len(inspirations)))

	case domain.ActionEditPreferences:
		index := boundIndex(meta, len(inspirations))
		target := inspirations[index]

		caption := ""
		if target.Room != "" {
			caption = facet.TitleCase(target.Room)
		}

		sess.InspirationContext = nil
		c.startEditSession(ctx, h, &domain.ActionBinding{
			PrimaryImageURL: target.ImageURL,
			PrimaryCaption:  caption,
		})
	}
}

func boundIndex(meta *domain.ActionBinding, length int) int {
	index := 0
	if meta != nil && meta.Index != nil {
		index = *meta.Index
	}
	if index < 0 {
		index = 0
	}
	if index > length-1 {
		index = length - 1
	}
	return index
}

func (c *Conversation) sendProductList(ctx context.Context, h *session.Handle, inspirations []domain.Inspiration, index int) {
	sess := h.Session()

	productIDs := agent.ProductIDs(inspirations[index])
	if len(productIDs) > maxProductIDs {
		productIDs = productIDs[:maxProductIDs]
	}

	if len(productIDs) == 0 {
		c.sendText(ctx, h, "I couldn’t find specific product matches in this inspiration, but I can fetch more ideas if you tweak your preferences.")
	} else {
		var lines []string
		for i, productID := range productIDs {
			lines = append(lines, fmt.Sprintf("%d. Product ID: %s", i+1, productID))
		}
		c.sendText(ctx, h, fmt.Sprintf(
			"Here are some key products from Inspiration %d:\n%s\n\nLet me know if you'd like details on any of these.",
			index+1, strings.Join(lines, "\n"),
		))
	}

	followUp := []domain.Button{
		{ID: "regenerate_inspirations", Title: "Regenerate"},
		{ID: "edit_preferences_summary", Title: "Edit Preferences"},
	}

	if sess.InspirationContext != nil {
		if sess.InspirationContext.Actions == nil {
			sess.InspirationContext.Actions = make(map[string]domain.ActionBinding)
		}
		sess.InspirationContext.Actions["regenerate_inspirations"] = domain.ActionBinding{Action: domain.ActionRegenerateInspirations}
		sess.InspirationContext.Actions["edit_preferences_summary"] = domain.ActionBinding{Action: domain.ActionEditPreferences}
	}

	sess.FacetContext = &domain.FacetContext{
		Options: []domain.FacetOption{
			{ID: "regenerate_inspirations", Title: "Regenerate"},
			{ID: "edit_preferences_summary", Title: "Edit Preferences"},
		},
		Timestamp: time.Now(),
		Preview:   true,
	}

	body := "What would you like to do next?"
	if err := c.messenger.SendButtons(ctx, h.UserID(), body, followUp, nil); err != nil {
		log.Error().Err(err).Str("user", h.UserID()).Msg("failed to send follow-up buttons")
		return
	}
	c.recordOutbound(ctx, h, domain.MessageButton, body)
}

// sendPreferredBudgetAndPreview handles the prices facet when the
// backend returned no price buckets: recommend a budget derived from
// the facet counts, then present the preview or a two-option fallback
func (c *Conversation) sendPreferredBudgetAndPreview(ctx context.Context, h *session.Handle, responseText string, resp *domain.DesignResponse) bool {
	sess := h.Session()

	budget := derivePreferredBudget(resp, sess.DesignState)

	lines := []string{"💡 Preferred Budget"}
	if budget != nil {
		lines = append(lines, fmt.Sprintf("Based on your selections, we recommend a budget of %s.", facet.FormatSAR(*budget)))
	} else {
		lines = append(lines, "Based on your selections, we recommend continuing with these inspirations.")
	}
	lines = append(lines, "Budget adjustments aren’t available right now, but you can proceed with this tailored recommendation.")

	segments := []string{}
	if strings.TrimSpace(responseText) != "" {
		segments = append(segments, responseText)
	}
	segments = append(segments, strings.Join(lines, "\n"))

	c.sendText(ctx, h, strings.Join(segments, "\n\n"))

	if c.presentPreview(ctx, h, "Here are inspirations tailored to your preferences.", resp, false) {
		return true
	}

	fallback := []domain.FacetOption{
		{ID: string(domain.ActionViewInspirations), Title: "View Inspirations", Value: string(domain.ActionViewInspirations)},
		{ID: string(domain.ActionEditPreferences), Title: "Edit Preferences", Value: string(domain.ActionEditPreferences)},
	}

	sess.FacetContext = &domain.FacetContext{
		Options:   fallback,
		Timestamp: time.Now(),
		Preview:   true,
	}

	buttons := []domain.Button{
		{ID: string(domain.ActionViewInspirations), Title: "View Inspirations"},
		{ID: string(domain.ActionEditPreferences), Title: "Edit Preferences"},
	}

	body := "Would you like to view the inspirations or adjust your preferences?"
	if err := c.messenger.SendButtons(ctx, h.UserID(), body, buttons, nil); err != nil {
		log.Error().Err(err).Str("user", h.UserID()).Msg("failed to send preview fallback buttons")
	} else {
		c.recordOutbound(ctx, h, domain.MessageButton, body)
	}

	return true
}

// derivePreferredBudget picks the largest price signal available:
// the facet max, then range maxima, then segment values, then the
// user's own selected maximum
func derivePreferredBudget(resp *domain.DesignResponse, state domain.DesignSearchState) *float64 {
	if resp != nil && resp.FacetCounts != nil && resp.FacetCounts.Prices != nil {
		prices := resp.FacetCounts.Prices

		if prices.Max != nil {
			return prices.Max
		}

		var best *float64
		for _, r := range prices.Ranges {
			if r.Max != nil && (best == nil || *r.Max > *best) {
				best = r.Max
			}
		}
		if best != nil {
			return best
		}

		for _, seg := range prices.Segments {
			seg := seg
			if best == nil || seg > *best {
				best = &seg
			}
		}
		if best != nil {
			return best
		}
	}

	return state.Filters.Prices.Max
}
