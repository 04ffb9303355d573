package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/construex/whatsapp-designer/internal/domain"
	"github.com/construex/whatsapp-designer/internal/session"
)

const editExitKeyword = "7"

// startEditSession opens the edit sub-session, optionally pinning a
// primary image carried over from an inspiration or a prior result
func (c *Conversation) startEditSession(ctx context.Context, h *session.Handle, seed *domain.ActionBinding) {
	sess := h.Session()

	c.teardownEditSession(h)

	now := time.Now()
	edit := &domain.EditSession{
		StartedAt:         now,
		LastInteractionAt: now,
		Actions:           make(map[string]domain.ActionKind),
	}

	pinned := seed != nil && seed.PrimaryImageURL != ""
	if pinned {
		edit.Images = append(edit.Images, domain.EditImage{
			SourceURL:   seed.PrimaryImageURL,
			UploadedURL: seed.PrimaryImageURL,
			MediaID:     seed.PrimaryImageMediaID,
			MediaHandle: seed.PrimaryMediaHandle,
			IsPrimary:   true,
			Caption:     seed.PrimaryCaption,
		})
	}

	sess.EditSession = edit
	h.TouchEdit()

	introLines := []string{
		"✏️ Edit mode enabled.",
		"Upload reference photos or type your updated request.",
		"Type *7* anytime to exit.",
	}
	if pinned {
		introLines = append([]string{"📌 Current inspiration pinned as the main image above."}, introLines...)
	}

	c.sendText(ctx, h, strings.Join(introLines, "\n\n"))

	if len(edit.Images) > 0 {
		c.sendEditSummary(ctx, h)
	}
}

func (c *Conversation) teardownEditSession(h *session.Handle) {
	h.CancelEditTimer()
	if sess := h.Session(); sess != nil {
		sess.EditSession = nil
	}
}

// handleEditText claims free-text input while an edit session is
// active. The caller has already verified that one exists.
func (c *Conversation) handleEditText(ctx context.Context, h *session.Handle, text, messageID string) {
	sess := h.Session()
	edit := sess.EditSession
	if edit == nil {
		return
	}

	h.TouchEdit()

	if text == "" {
		c.sendText(ctx, h, "Share the changes you'd like or type *7* to exit edit mode.")
		return
	}

	if text == editExitKeyword {
		c.teardownEditSession(h)
		c.sendText(ctx, h, "✅ Edit mode closed. Your selections stay as-is.")
		return
	}

	switch strings.ToLower(text) {
	case "generate", "submit":
		c.generateEdit(ctx, h, messageID)
		return
	}

	edit.PendingQuery = text
	c.sendEditSummary(ctx, h)
}

// handleEditAction claims an interactive reply while an edit session
// is active. Returns false when no edit session exists or the reply
// is not one of the session's bound actions.
func (c *Conversation) handleEditAction(ctx context.Context, h *session.Handle, id, title, messageID string) bool {
	sess := h.Session()
	if sess == nil || sess.EditSession == nil {
		return false
	}
	edit := sess.EditSession

	kind := domain.ActionKind("")
	for _, candidate := range []string{id, title} {
		normalized := strings.ToLower(strings.TrimSpace(candidate))
		if normalized == "" {
			continue
		}
		if mapped, ok := edit.Actions[normalized]; ok {
			kind = mapped
			break
		}
		if normalized == string(domain.ActionEditGenerate) || normalized == string(domain.ActionEditCancel) {
			kind = domain.ActionKind(normalized)
			break
		}
	}

	switch kind {
	case domain.ActionEditGenerate:
		h.TouchEdit()
		c.generateEdit(ctx, h, messageID)
		return true
	case domain.ActionEditCancel:
		c.teardownEditSession(h)
		c.sendText(ctx, h, "Edit mode cancelled.")
		return true
	}

	return false
}

// handleEditImage re-hosts an inbound photo and adds it to the board
func (c *Conversation) handleEditImage(ctx context.Context, h *session.Handle, event domain.InboundEvent) {
	sess := h.Session()
	edit := sess.EditSession
	img := event.Image
	if edit == nil || img == nil {
		return
	}

	sourceURL, err := c.messenger.MediaURL(ctx, img.MediaID)
	if err != nil {
		log.Error().Err(err).Str("user", h.UserID()).Msg("failed to resolve inbound media url")
		c.sendText(ctx, h, apologyText)
		return
	}

	data, mimeType, err := c.messenger.DownloadMedia(ctx, sourceURL)
	if err != nil {
		log.Error().Err(err).Str("user", h.UserID()).Msg("failed to download inbound media")
		c.sendText(ctx, h, apologyText)
		return
	}

	filename := img.MediaID + extensionForMime(mimeType)

	uploadedURL, err := c.agent.UploadFile(ctx, filename, mimeType, data)
	if err != nil {
		log.Warn().Err(err).Str("user", h.UserID()).Msg("failed to re-host inbound image")
	}

	mirrorSource := uploadedURL
	if mirrorSource == "" {
		mirrorSource = sourceURL
	}

	mediaHandle := ""
	if mirrorSource != "" {
		mediaHandle, err = c.messenger.UploadImage(ctx, mirrorSource)
		if err != nil {
			log.Warn().Err(err).Str("user", h.UserID()).Msg("failed to mirror image for interactive header")
			mediaHandle = ""
		}
	}
	if mediaHandle == "" {
		mediaHandle = img.MediaID
	}

	edit.Images = append(edit.Images, domain.EditImage{
		SourceURL:   sourceURL,
		UploadedURL: uploadedURL,
		MediaID:     img.MediaID,
		MediaHandle: mediaHandle,
		Caption:     img.Caption,
		Data:        data,
		MimeType:    mimeType,
		Filename:    filename,
	})

	h.TouchEdit()

	count := edit.UserImageCount()
	lines := []string{"✅ Photo added to your edit board."}
	if count > 1 {
		lines = append(lines, fmt.Sprintf("You now have %d inspiration photos ready.", count))
	} else {
		lines = append(lines, "This image is now ready for your update.")
	}
	lines = append(lines, "Send more photos, describe what to change, or type *7* to wrap up edit mode.")

	c.sendText(ctx, h, strings.Join(lines, "\n\n"))

	if edit.PendingQuery != "" {
		c.sendEditSummary(ctx, h)
	}
}

// sendEditSummary renders the edit board: collected image count, the
// pending request and, once a request exists, a Generate/Cancel pair
// headed by the most relevant image
func (c *Conversation) sendEditSummary(ctx context.Context, h *session.Handle) {
	sess := h.Session()
	edit := sess.EditSession
	if edit == nil {
		return
	}

	h.TouchEdit()

	userImages := edit.UserImageCount()
	hasPinned := userImages < len(edit.Images)

	var lines []string
	if userImages > 0 {
		suffix := ""
		if hasPinned {
			suffix = " (excluding the pinned inspiration)"
		}
		lines = append(lines, fmt.Sprintf("Images saved: %d%s", userImages, suffix))
	} else {
		lines = append(lines, "No reference images yet.")
	}

	switch {
	case edit.PendingQuery != "":
		lines = append(lines, "Request:\n"+edit.PendingQuery)
	case userImages > 0:
		lines = append(lines, "Type your updated request to continue.")
	default:
		lines = append(lines, "Share what you'd like to change or add inspiration photos to guide the update.")
	}

	edit.Actions = map[string]domain.ActionKind{
		"edit_generate": domain.ActionEditGenerate,
		"edit_cancel":   domain.ActionEditCancel,
	}

	if edit.PendingQuery == "" {
		c.sendText(ctx, h, strings.Join(lines, "\n\n"))
		return
	}

	header := c.summaryHeader(ctx, h, edit)

	body := strings.Join(lines, "\n\n") + "\n\nReady to generate the update?"
	buttons := []domain.Button{
		{ID: "edit_generate", Title: "Generate"},
		{ID: "edit_cancel", Title: "Cancel"},
	}

	if err := c.messenger.SendButtons(ctx, h.UserID(), body, buttons, header); err != nil {
		log.Error().Err(err).Str("user", h.UserID()).Msg("failed to send edit summary")
		return
	}
	c.recordOutbound(ctx, h, domain.MessageButton, body)
}

func (c *Conversation) summaryHeader(ctx context.Context, h *session.Handle, edit *domain.EditSession) *domain.MessageHeader {
	primary := edit.PrimaryImage()
	if primary != nil {
		if primary.MediaHandle != "" {
			return &domain.MessageHeader{MediaID: primary.MediaHandle}
		}
		if primary.UploadedURL != "" {
			handle, err := c.messenger.UploadImage(ctx, primary.UploadedURL)
			if err != nil {
				log.Warn().Err(err).Str("user", h.UserID()).Msg("failed to mirror header image")
			} else {
				primary.MediaHandle = handle
				return &domain.MessageHeader{MediaID: handle}
			}
		}
		if primary.MediaID != "" {
			return &domain.MessageHeader{MediaID: primary.MediaID}
		}
	}

	if edit.PendingQuery != "" {
		return &domain.MessageHeader{Text: edit.PendingQuery}
	}
	return nil
}

// generateEdit runs the generation once a request exists, then tears
// the session down whatever the outcome so it can never get stuck
func (c *Conversation) generateEdit(ctx context.Context, h *session.Handle, messageID string) {
	sess := h.Session()
	edit := sess.EditSession
	if edit == nil {
		return
	}

	if edit.PendingQuery == "" {
		c.sendText(ctx, h, "Please type what you would like to adjust before generating.")
		return
	}

	c.sendText(ctx, h, "🛠️ Generating your updated design. This should only take a moment...")

	query := edit.PendingQuery
	images := edit.Images

	defer c.teardownEditSession(h)

	result, err := c.agent.GenerateEdit(ctx, query, images)
	if err != nil {
		log.Error().Err(err).Str("user", h.UserID()).Msg("edit generation failed")
		c.sendText(ctx, h, apologyText)
		return
	}

	if messageID != "" {
		if err := c.messenger.SetTyping(ctx, h.UserID(), messageID, false); err != nil {
			log.Debug().Err(err).Msg("typing indicator failed")
		}
	}

	mediaHandle, err := c.messenger.UploadImage(ctx, result.ImageURL)
	if err != nil {
		log.Error().Err(err).Str("user", h.UserID()).Msg("failed to mirror generated design")
		c.sendText(ctx, h, apologyText)
		return
	}

	description := result.Description
	if description == "" {
		description = "Here’s the updated design based on your preferences."
	}

	body := strings.Join([]string{
		fmt.Sprintf("🖼️ *%s*", result.Name),
		description,
		"Choose *Looks Good* to keep this design, or *Edit Again* to tweak, add, or remove reference images.",
	}, "\n\n")

	buttons := []domain.Button{
		{ID: "edit_result_ok", Title: "Looks Good"},
		{ID: "edit_result_refine", Title: "Edit Again"},
		{ID: "edit_result_preferences", Title: "Edit Preferences"},
	}

	// Edit Again reuses the pinned reference when one was collected,
	// otherwise it starts from the freshly generated image.
	refine := domain.ActionBinding{
		Action:              domain.ActionRestartEditSession,
		PrimaryImageURL:     result.ImageURL,
		PrimaryCaption:      result.Name,
		PrimaryImageMediaID: mediaHandle,
		PrimaryMediaHandle:  mediaHandle,
	}
	for _, img := range images {
		if img.IsPrimary && (img.UploadedURL != "" || img.SourceURL != "" || img.MediaID != "") {
			url := img.UploadedURL
			if url == "" {
				url = img.SourceURL
			}
			handle := img.MediaHandle
			if handle == "" {
				handle = img.MediaID
			}
			refine = domain.ActionBinding{
				Action:              domain.ActionRestartEditSession,
				PrimaryImageURL:     url,
				PrimaryCaption:      img.Caption,
				PrimaryImageMediaID: img.MediaID,
				PrimaryMediaHandle:  handle,
			}
			break
		}
	}

	if err := c.messenger.SendButtons(ctx, h.UserID(), body, buttons, &domain.MessageHeader{MediaID: mediaHandle}); err != nil {
		log.Error().Err(err).Str("user", h.UserID()).Msg("failed to send generated design")
		return
	}
	c.recordOutbound(ctx, h, domain.MessageButton, body)

	sess.InspirationContext = &domain.InspirationContext{
		Timestamp: time.Now(),
		Actions: map[string]domain.ActionBinding{
			"edit_result_ok":     {Action: domain.ActionFinalDesignAccept},
			"edit_result_refine": refine,
			"edit_result_preferences": {
				Action:              domain.ActionStartEditPreferences,
				PrimaryImageURL:     result.ImageURL,
				PrimaryCaption:      result.Name,
				PrimaryImageMediaID: mediaHandle,
				PrimaryMediaHandle:  mediaHandle,
			},
		},
	}
}

func extensionForMime(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
