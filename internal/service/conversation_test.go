package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/construex/whatsapp-designer/internal/domain"
	"github.com/construex/whatsapp-designer/internal/facet"
	"github.com/construex/whatsapp-designer/internal/session"
)

const testUser = "966500000001"

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func sampleCounts() *domain.FacetCounts {
	return &domain.FacetCounts{
		Values: map[domain.FacetKey][]domain.ValueCount{
			domain.FacetRooms: {
				{Value: "LIVING_ROOM", Count: intp(12)},
				{Value: "BEDROOM", Count: intp(8)},
			},
			domain.FacetColors: {
				{Value: "WARM_NEUTRALS", Count: intp(9)},
				{Value: "COOL_TONES", Count: intp(5)},
			},
			domain.FacetStyles: {
				{Value: "MODERN", Count: intp(7)},
				{Value: "BOHO", Count: intp(3)},
			},
			domain.FacetLighting: {
				{Value: "BRIGHT", Count: intp(6)},
				{Value: "COZY", Count: intp(4)},
			},
		},
		Prices: &domain.PriceFacet{
			Ranges: []domain.PriceRange{
				{Min: floatp(0), Max: floatp(2000), Count: intp(4)},
				{Min: floatp(2000), Max: floatp(5000), Count: intp(6)},
			},
		},
	}
}

func sampleInspirations(n int) []domain.Inspiration {
	out := make([]domain.Inspiration, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Inspiration{
			Room:        "LIVING_ROOM",
			Description: "A bright open living space",
			ImageURL:    "https://cdn.abyat.com/inspiration.jpg",
		})
	}
	return out
}

func sampleSearchResult(inspirations int) *domain.SearchResult {
	return &domain.SearchResult{
		Design: &domain.DesignResponse{
			Inspirations: sampleInspirations(inspirations),
			Total:        inspirations,
			FacetCounts:  sampleCounts(),
		},
	}
}

func newTestConversation() (*Conversation, *fakeMessenger, *MockDesignAgent, *session.Store) {
	store := session.NewStore(time.Hour, time.Hour)
	messenger := newFakeMessenger()
	agent := new(MockDesignAgent)

	conv := NewConversation(store, messenger, agent, nil, newMemoryDeduper(), nil)
	return conv, messenger, agent, store
}

func seedSession(store *session.Store, mutate func(sess *domain.UserSession)) {
	store.Do(testUser, func(h *session.Handle) {
		sess := &domain.UserSession{
			ID:          "sess_fixture",
			UserID:      testUser,
			StartedAt:   time.Now(),
			DesignState: facet.NewDesignState(),
		}
		if mutate != nil {
			mutate(sess)
		}
		h.Replace(sess)
	})
}

func currentSession(store *session.Store) *domain.UserSession {
	var sess *domain.UserSession
	store.Do(testUser, func(h *session.Handle) {
		sess = h.Session()
	})
	return sess
}

func textEvent(id, body string) domain.InboundEvent {
	return domain.InboundEvent{
		UserID:    testUser,
		MessageID: id,
		Type:      domain.MessageText,
		Text:      body,
	}
}

func buttonEvent(id, replyID, title string) domain.InboundEvent {
	return domain.InboundEvent{
		UserID:    testUser,
		MessageID: id,
		Type:      domain.MessageButton,
		Selection: &domain.ReplySelection{ID: replyID, Title: title},
	}
}

func TestFreshUserGetsRoomPrompt(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(0), nil)

	conv.HandleEvent(context.Background(), textEvent("wamid.1", "hi"))

	msgs := messenger.messages()
	assert.Len(t, msgs, 1)
	assert.Equal(t, "list", msgs[0].Kind)
	assert.Contains(t, msgs[0].Body, "Welcome to your AI Home Designer")

	values := make([]string, 0, len(msgs[0].Options))
	for _, opt := range msgs[0].Options {
		values = append(values, opt.Value)
	}
	assert.Contains(t, values, "LIVING_ROOM")
	assert.Contains(t, values, "BEDROOM")

	sess := currentSession(store)
	assert.NotNil(t, sess)
	assert.Equal(t, domain.FacetRooms, sess.Step)
	assert.NotNil(t, sess.FacetContext)
	assert.Equal(t, domain.FacetRooms, sess.FacetContext.FacetKey)
}

func TestDuplicateDeliveryProcessedOnce(t *testing.T) {
	conv, messenger, agent, _ := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(0), nil)

	conv.HandleEvent(context.Background(), textEvent("wamid.dup", "hi"))
	conv.HandleEvent(context.Background(), textEvent("wamid.dup", "hi"))

	agent.AssertNumberOfCalls(t, "Search", 1)
	assert.Len(t, messenger.messages(), 1)
}

func TestSelectionAdvancesToNextFacet(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(0), nil)

	conv.HandleEvent(context.Background(), textEvent("wamid.1", "hi"))
	conv.HandleEvent(context.Background(), buttonEvent("wamid.2", "rooms_1", "LIVING ROOM (12)"))

	sess := currentSession(store)
	assert.Equal(t, []string{"LIVING_ROOM"}, sess.DesignState.Filters.Rooms)
	assert.Equal(t, domain.FacetColors, sess.Step)

	msgs := messenger.messages()
	assert.Equal(t, "list", msgs[len(msgs)-1].Kind)
	assert.Contains(t, msgs[len(msgs)-1].Body, "color palette")
}

func TestRestartKeywordResetsSession(t *testing.T) {
	conv, _, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(0), nil)

	seedSession(store, func(sess *domain.UserSession) {
		sess.DesignState.Filters.Rooms = []string{"BEDROOM"}
		sess.Step = domain.FacetColors
	})

	conv.HandleEvent(context.Background(), textEvent("wamid.3", "3"))

	sess := currentSession(store)
	assert.NotEqual(t, "sess_fixture", sess.ID)
	assert.Empty(t, sess.DesignState.Filters.Rooms)
	assert.Equal(t, domain.FacetRooms, sess.Step)
}

func TestPriceSkipShowsPreview(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(4), nil)

	seedSession(store, func(sess *domain.UserSession) {
		sess.DesignState.Filters.Rooms = []string{"BEDROOM"}
		sess.DesignState.Filters.Colors = []string{"WARM_NEUTRALS"}
		sess.DesignState.Filters.Styles = []string{"MODERN"}
		sess.DesignState.Filters.Lighting = []string{"BRIGHT"}
		sess.DesignState.Filters.Dynamic = map[domain.FacetKey][]string{
			domain.FacetBedroomType:    {"MASTER"},
			domain.FacetBedroomBedSize: {"KING"},
		}
		sess.Step = domain.FacetPrices
		sess.FacetCounts = sampleCounts()
	})

	conv.HandleEvent(context.Background(), textEvent("wamid.4", "skip"))

	sess := currentSession(store)
	assert.True(t, sess.DesignState.Filters.Prices.Skipped)
	assert.Equal(t, domain.FacetKey(""), sess.Step)

	msgs := messenger.messages()
	assert.Contains(t, msgs[0].Body, "all price ranges")

	buttonMsgs := 0
	for _, msg := range msgs {
		if msg.Kind == "buttons" {
			buttonMsgs++
			assert.Len(t, msg.Buttons, 1)
			assert.Equal(t, "Edit Preferences", msg.Buttons[0].Title)
			assert.NotNil(t, msg.Header)
		}
	}
	assert.Equal(t, 4, buttonMsgs)

	assert.NotNil(t, sess.InspirationContext)
	assert.Len(t, sess.InspirationContext.Actions, 4)
}

func TestPriceRangeConfirmed(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(0), nil)

	seedSession(store, func(sess *domain.UserSession) {
		sess.Step = domain.FacetPrices
		sess.FacetCounts = sampleCounts()
	})

	conv.HandleEvent(context.Background(), textEvent("wamid.5", "5000-2000"))

	sess := currentSession(store)
	assert.Equal(t, 2000.0, *sess.DesignState.Filters.Prices.Min)
	assert.Equal(t, 5000.0, *sess.DesignState.Filters.Prices.Max)

	texts := messenger.texts()
	assert.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "Budget set to")
}

func TestPriceSingleValueReprompts(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(0), nil)

	seedSession(store, func(sess *domain.UserSession) {
		sess.Step = domain.FacetPrices
		sess.FacetCounts = sampleCounts()
	})

	conv.HandleEvent(context.Background(), textEvent("wamid.6", "3000"))

	sess := currentSession(store)
	assert.False(t, sess.DesignState.Filters.Prices.IsSet())
	assert.Equal(t, domain.FacetPrices, sess.Step)

	texts := messenger.texts()
	assert.Len(t, texts, 1)
	assert.Contains(t, texts[0], "both a minimum and a maximum")

	// The turn ended at the re-prompt; no search ran.
	agent.AssertNumberOfCalls(t, "Search", 0)
}

func TestPriceBucketTapSetsRange(t *testing.T) {
	conv, _, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(0), nil)

	seedSession(store, func(sess *domain.UserSession) {
		sess.Step = domain.FacetPrices
		sess.FacetCounts = sampleCounts()
		sess.FacetContext = &domain.FacetContext{
			FacetKey: domain.FacetPrices,
			Options: []domain.FacetOption{
				{ID: "prices_1", Title: "SAR 0 - SAR 2,000 (4)", Value: "0-2000"},
				{ID: "prices_2", Title: "SAR 2,000 - SAR 5,000 (6)", Value: "2000-5000"},
			},
			Timestamp: time.Now(),
		}
	})

	conv.HandleEvent(context.Background(), buttonEvent("wamid.p1", "prices_2", "SAR 2,000 - SAR 5,000 (6)"))

	sess := currentSession(store)
	if assert.NotNil(t, sess.DesignState.Filters.Prices.Min, "selected price bucket must set the range") {
		assert.Equal(t, 2000.0, *sess.DesignState.Filters.Prices.Min)
	}
	if assert.NotNil(t, sess.DesignState.Filters.Prices.Max) {
		assert.Equal(t, 5000.0, *sess.DesignState.Filters.Prices.Max)
	}
	assert.Equal(t, domain.FacetKey(""), sess.Step)
}

func TestPriceSkipOptionTap(t *testing.T) {
	conv, _, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(0), nil)

	seedSession(store, func(sess *domain.UserSession) {
		sess.Step = domain.FacetPrices
		sess.FacetCounts = sampleCounts()
		sess.FacetContext = &domain.FacetContext{
			FacetKey: domain.FacetPrices,
			Options: []domain.FacetOption{
				{ID: "prices_skip", Title: "Skip", Value: "skip"},
			},
			Timestamp: time.Now(),
		}
	})

	conv.HandleEvent(context.Background(), buttonEvent("wamid.p2", "prices_skip", "Skip"))

	sess := currentSession(store)
	assert.True(t, sess.DesignState.Filters.Prices.Skipped)
	assert.Nil(t, sess.DesignState.Filters.Prices.Min)
}

func TestPreviewCacheHitSkipsFetch(t *testing.T) {
	conv, _, agent, store := newTestConversation()

	seedSession(store, func(sess *domain.UserSession) {
		sess.InspirationContext = &domain.InspirationContext{
			Preview: &domain.InspirationPreview{
				Inspirations: sampleInspirations(5),
				Total:        5,
			},
			Timestamp: time.Now(),
		}
	})

	store.Do(testUser, func(h *session.Handle) {
		preview := conv.ensurePreview(context.Background(), h, nil, false)
		assert.NotNil(t, preview)
		assert.Len(t, preview.Inspirations, 5)
	})

	agent.AssertNumberOfCalls(t, "Search", 0)
}

func TestPreviewBackoffAfterError(t *testing.T) {
	conv, _, agent, store := newTestConversation()

	seedSession(store, func(sess *domain.UserSession) {
		sess.InspirationContext = &domain.InspirationContext{
			Timestamp: time.Now(),
			Err:       true,
		}
	})

	store.Do(testUser, func(h *session.Handle) {
		preview := conv.ensurePreview(context.Background(), h, nil, false)
		assert.Nil(t, preview)
	})

	agent.AssertNumberOfCalls(t, "Search", 0)
}

func TestEditSessionClaimsReplies(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()

	seedSession(store, func(sess *domain.UserSession) {
		sess.Step = domain.FacetColors
		sess.FacetCounts = sampleCounts()
		sess.EditSession = &domain.EditSession{
			StartedAt:         time.Now(),
			LastInteractionAt: time.Now(),
			Actions:           map[string]domain.ActionKind{},
		}
	})

	// A facet-style reply must never reach the facet machine while an
	// edit session is active.
	conv.HandleEvent(context.Background(), buttonEvent("wamid.7", "colors_1", "WARM NEUTRALS (9)"))

	sess := currentSession(store)
	assert.Empty(t, sess.DesignState.Filters.Colors)
	assert.NotNil(t, sess.EditSession)
	assert.Equal(t, "WARM NEUTRALS (9)", sess.EditSession.PendingQuery)

	agent.AssertNumberOfCalls(t, "Search", 0)

	msgs := messenger.messages()
	assert.NotEmpty(t, msgs)
}

func TestVoiceNoteDuringEditSessionStaysInEditMode(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()

	seedSession(store, func(sess *domain.UserSession) {
		sess.Step = domain.FacetColors
		sess.FacetCounts = sampleCounts()
		sess.EditSession = &domain.EditSession{
			StartedAt:         time.Now(),
			LastInteractionAt: time.Now(),
		}
	})

	conv.HandleEvent(context.Background(), domain.InboundEvent{
		UserID:    testUser,
		MessageID: "wamid.v1",
		Type:      domain.MessageVoice,
		Text:      "[voice message]",
	})

	sess := currentSession(store)
	assert.NotNil(t, sess.EditSession, "placeholder events must not end the edit session")
	assert.Empty(t, sess.EditSession.PendingQuery)

	// The facet machine never ran.
	agent.AssertNumberOfCalls(t, "Search", 0)

	texts := messenger.texts()
	assert.Len(t, texts, 1)
	assert.Contains(t, texts[0], "photos and text")
}

func TestEditExitKeywordClosesSession(t *testing.T) {
	conv, messenger, _, store := newTestConversation()

	seedSession(store, func(sess *domain.UserSession) {
		sess.EditSession = &domain.EditSession{
			StartedAt:         time.Now(),
			LastInteractionAt: time.Now(),
		}
	})

	conv.HandleEvent(context.Background(), textEvent("wamid.8", "7"))

	sess := currentSession(store)
	assert.Nil(t, sess.EditSession)

	texts := messenger.texts()
	assert.Contains(t, texts[0], "Edit mode closed")
}

func TestEditGenerateTearsDownSession(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()

	agent.On("GenerateEdit", mock.Anything, "make it warmer", mock.Anything).Return(&domain.EditResult{
		ImageURL:    "https://cdn.agent.com/result.png",
		Name:        "Warm Living Room",
		Description: "A warmer take on your space.",
	}, nil)

	seedSession(store, func(sess *domain.UserSession) {
		sess.EditSession = &domain.EditSession{
			StartedAt:         time.Now(),
			LastInteractionAt: time.Now(),
			PendingQuery:      "make it warmer",
			Actions: map[string]domain.ActionKind{
				"edit_generate": domain.ActionEditGenerate,
				"edit_cancel":   domain.ActionEditCancel,
			},
		}
	})

	conv.HandleEvent(context.Background(), buttonEvent("wamid.9", "edit_generate", "Generate"))

	sess := currentSession(store)
	assert.Nil(t, sess.EditSession, "edit session must be torn down after generation")

	msgs := messenger.messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, "buttons", last.Kind)
	assert.Contains(t, last.Body, "Warm Living Room")
	assert.Len(t, last.Buttons, 3)

	assert.NotNil(t, sess.InspirationContext)
	assert.Equal(t, domain.ActionFinalDesignAccept, sess.InspirationContext.Actions["edit_result_ok"].Action)
	assert.Equal(t, domain.ActionRestartEditSession, sess.InspirationContext.Actions["edit_result_refine"].Action)

	agent.AssertExpectations(t)
}

func TestEditGenerateFailureStillTearsDown(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()

	agent.On("GenerateEdit", mock.Anything, mock.Anything, mock.Anything).Return(nil, assert.AnError)

	seedSession(store, func(sess *domain.UserSession) {
		sess.EditSession = &domain.EditSession{
			StartedAt:         time.Now(),
			LastInteractionAt: time.Now(),
			PendingQuery:      "make it warmer",
		}
	})

	conv.HandleEvent(context.Background(), textEvent("wamid.10", "generate"))

	sess := currentSession(store)
	assert.Nil(t, sess.EditSession)

	texts := messenger.texts()
	assert.Contains(t, texts[len(texts)-1], "Something went wrong")
}

func TestEditImageAddedToBoard(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()

	agent.On("UploadFile", mock.Anything, mock.Anything, "image/jpeg", mock.Anything).
		Return("https://cdn.agent.com/uploaded.jpg", nil)

	seedSession(store, func(sess *domain.UserSession) {
		sess.EditSession = &domain.EditSession{
			StartedAt:         time.Now(),
			LastInteractionAt: time.Now(),
		}
	})

	conv.HandleEvent(context.Background(), domain.InboundEvent{
		UserID:    testUser,
		MessageID: "wamid.11",
		Type:      domain.MessageImage,
		Image:     &domain.InboundImage{MediaID: "media-abc", Caption: "my sofa"},
	})

	sess := currentSession(store)
	assert.Len(t, sess.EditSession.Images, 1)
	img := sess.EditSession.Images[0]
	assert.Equal(t, "https://cdn.agent.com/uploaded.jpg", img.UploadedURL)
	assert.Equal(t, "my sofa", img.Caption)
	assert.False(t, img.IsPrimary)

	texts := messenger.texts()
	assert.Contains(t, texts[0], "Photo added to your edit board")
}

func TestImageOutsideEditSessionNudges(t *testing.T) {
	conv, messenger, _, _ := newTestConversation()

	conv.HandleEvent(context.Background(), domain.InboundEvent{
		UserID:    testUser,
		MessageID: "wamid.12",
		Type:      domain.MessageImage,
		Image:     &domain.InboundImage{MediaID: "media-abc"},
	})

	texts := messenger.texts()
	assert.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Edit Preferences")
}

func TestFinalDesignAcceptClearsContexts(t *testing.T) {
	conv, messenger, _, store := newTestConversation()

	seedSession(store, func(sess *domain.UserSession) {
		sess.InspirationContext = &domain.InspirationContext{
			Timestamp: time.Now(),
			Actions: map[string]domain.ActionBinding{
				"edit_result_ok": {Action: domain.ActionFinalDesignAccept},
			},
		}
	})

	conv.HandleEvent(context.Background(), buttonEvent("wamid.13", "edit_result_ok", "Looks Good"))

	sess := currentSession(store)
	assert.Nil(t, sess.InspirationContext)
	assert.Nil(t, sess.EditSession)

	texts := messenger.texts()
	assert.Contains(t, texts[0], "Glad you like the design")
}

func TestEditPreferencesActionStartsEditSession(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()

	index := 0
	seedSession(store, func(sess *domain.UserSession) {
		sess.InspirationContext = &domain.InspirationContext{
			Preview: &domain.InspirationPreview{
				Inspirations: sampleInspirations(4),
				Total:        4,
			},
			Timestamp: time.Now(),
			Actions: map[string]domain.ActionBinding{
				"edit_preferences_1": {Action: domain.ActionEditPreferences, Index: &index},
			},
		}
	})

	conv.HandleEvent(context.Background(), buttonEvent("wamid.14", "edit_preferences_1", "Edit Preferences"))

	sess := currentSession(store)
	assert.NotNil(t, sess.EditSession)
	assert.Len(t, sess.EditSession.Images, 1)
	assert.True(t, sess.EditSession.Images[0].IsPrimary)
	assert.Nil(t, sess.InspirationContext)

	texts := messenger.texts()
	assert.Contains(t, texts[0], "Edit mode enabled")

	agent.AssertNumberOfCalls(t, "GenerateEdit", 0)
}

func TestActionBindingWinsOverStaleFacetContext(t *testing.T) {
	conv, _, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(4), nil)

	// The same id is both a stale facet option and an action binding;
	// the binding must win and the facet must stay unanswered.
	seedSession(store, func(sess *domain.UserSession) {
		sess.Step = domain.FacetColors
		sess.FacetCounts = sampleCounts()
		sess.FacetContext = &domain.FacetContext{
			FacetKey: domain.FacetColors,
			Options: []domain.FacetOption{
				{ID: "regenerate_inspirations", Title: "Regenerate", Value: "WARM_NEUTRALS"},
			},
			Timestamp: time.Now(),
		}
		sess.InspirationContext = &domain.InspirationContext{
			Preview: &domain.InspirationPreview{
				Inspirations: sampleInspirations(4),
				Total:        4,
			},
			Timestamp: time.Now(),
			Actions: map[string]domain.ActionBinding{
				"regenerate_inspirations": {Action: domain.ActionRegenerateInspirations},
			},
		}
	})

	conv.HandleEvent(context.Background(), buttonEvent("wamid.15", "regenerate_inspirations", "Regenerate"))

	sess := currentSession(store)
	assert.Empty(t, sess.DesignState.Filters.Colors)
}

func TestRegenerateFetchesPreviewOnce(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(4), nil)

	seedSession(store, func(sess *domain.UserSession) {
		sess.InspirationContext = &domain.InspirationContext{
			Preview: &domain.InspirationPreview{
				Inspirations: sampleInspirations(4),
				Total:        4,
			},
			Timestamp: time.Now(),
			Actions: map[string]domain.ActionBinding{
				"regenerate_inspirations": {Action: domain.ActionRegenerateInspirations},
			},
		}
	})

	conv.HandleEvent(context.Background(), buttonEvent("wamid.r1", "regenerate_inspirations", "Regenerate"))

	agent.AssertNumberOfCalls(t, "Search", 1)

	buttonMsgs := 0
	for _, msg := range messenger.messages() {
		if msg.Kind == "buttons" {
			buttonMsgs++
		}
	}
	assert.Equal(t, 4, buttonMsgs, "the fetched preview is presented once")
}

func TestEditTimeoutNoticeMatchesWindow(t *testing.T) {
	store := session.NewStore(time.Hour, 45*time.Minute)
	messenger := newFakeMessenger()
	conv := NewConversation(store, messenger, new(MockDesignAgent), nil, newMemoryDeduper(), nil)

	conv.onEditExpired(testUser, nil)

	texts := messenger.texts()
	assert.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Edit mode closed after 45 minutes")
}

func TestFormatWindow(t *testing.T) {
	assert.Equal(t, "1 minute", formatWindow(time.Minute))
	assert.Equal(t, "2 minutes", formatWindow(2*time.Minute))
	assert.Equal(t, "90 seconds", formatWindow(90*time.Second))
}

func TestFacetReplyWithoutBindingAppliesSelection(t *testing.T) {
	conv, _, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(0), nil)

	seedSession(store, func(sess *domain.UserSession) {
		sess.Step = domain.FacetColors
		sess.FacetCounts = sampleCounts()
		sess.FacetContext = &domain.FacetContext{
			FacetKey: domain.FacetColors,
			Options: []domain.FacetOption{
				{ID: "colors_1", Title: "WARM NEUTRALS (9)", Value: "WARM_NEUTRALS"},
			},
			Timestamp: time.Now(),
		}
	})

	conv.HandleEvent(context.Background(), buttonEvent("wamid.16", "colors_1", "WARM NEUTRALS (9)"))

	sess := currentSession(store)
	assert.Equal(t, []string{"WARM_NEUTRALS"}, sess.DesignState.Filters.Colors)
}

func TestLostFacetContextRecoveredFromStep(t *testing.T) {
	conv, _, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(0), nil)

	seedSession(store, func(sess *domain.UserSession) {
		sess.Step = domain.FacetColors
		sess.FacetCounts = sampleCounts()
		sess.FacetContext = nil
	})

	conv.HandleEvent(context.Background(), buttonEvent("wamid.17", "colors_1", "WARM NEUTRALS (9)"))

	sess := currentSession(store)
	assert.Equal(t, []string{"WARM_NEUTRALS"}, sess.DesignState.Filters.Colors)
}

func TestAgentFailureDegradesToCachedCounts(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	seedSession(store, func(sess *domain.UserSession) {
		sess.Step = domain.FacetRooms
		sess.FacetCounts = sampleCounts()
		sess.FacetContext = &domain.FacetContext{
			FacetKey: domain.FacetRooms,
			Options: []domain.FacetOption{
				{ID: "rooms_1", Title: "LIVING ROOM (12)", Value: "LIVING_ROOM"},
			},
			Timestamp: time.Now(),
		}
	})

	conv.HandleEvent(context.Background(), buttonEvent("wamid.18", "rooms_1", "LIVING ROOM (12)"))

	sess := currentSession(store)
	assert.Equal(t, []string{"LIVING_ROOM"}, sess.DesignState.Filters.Rooms)
	assert.Equal(t, domain.FacetColors, sess.Step)

	// Options still rendered from the cached counts.
	msgs := messenger.messages()
	assert.Equal(t, "list", msgs[len(msgs)-1].Kind)
}

func TestEndToEndFreshUserThroughPreview(t *testing.T) {
	conv, messenger, agent, store := newTestConversation()
	agent.On("Search", mock.Anything, mock.Anything).Return(sampleSearchResult(4), nil)

	ctx := context.Background()

	conv.HandleEvent(ctx, textEvent("wamid.e1", "hi"))
	conv.HandleEvent(ctx, buttonEvent("wamid.e2", "rooms_1", "LIVING ROOM (12)"))
	conv.HandleEvent(ctx, buttonEvent("wamid.e3", "colors_1", "WARM NEUTRALS (9)"))
	conv.HandleEvent(ctx, buttonEvent("wamid.e4", "styles_1", "MODERN (7)"))
	conv.HandleEvent(ctx, buttonEvent("wamid.e5", "lightingAndAtmospheres_1", "BRIGHT (6)"))

	// The living-room dynamic facets have no counts, so the walk skips
	// straight to prices.
	sess := currentSession(store)
	assert.Equal(t, domain.FacetPrices, sess.Step)

	conv.HandleEvent(ctx, textEvent("wamid.e6", "skip"))

	sess = currentSession(store)
	assert.True(t, sess.DesignState.Filters.Prices.Skipped)
	assert.Equal(t, domain.FacetKey(""), sess.Step)

	editButtons := 0
	for _, msg := range messenger.messages() {
		if msg.Kind == "buttons" {
			for _, b := range msg.Buttons {
				if b.Title == "Edit Preferences" && strings.HasPrefix(b.ID, "edit_preferences_") {
					editButtons++
				}
			}
		}
	}
	assert.Equal(t, 4, editButtons, "each previewed inspiration carries its own edit button")
}
