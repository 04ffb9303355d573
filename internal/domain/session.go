package domain

import (
	"time"
)

// UserSession is the per-user aggregate. One instance exists per
// active user, owned by the session store; a user with no aggregate
// is implicitly fresh. EditSession, FacetContext and
// InspirationContext are optional sub-states of an active session,
// so an edit session without a base session is unrepresentable.
type UserSession struct {
	ID          string
	UserID      string
	StartedAt   time.Time
	DesignState DesignSearchState

	// FacetCounts caches the last per-facet counts returned by the
	// search backend, used to render options and to rebuild a lost
	// facet context.
	FacetCounts *FacetCounts

	// Step is the facet key the system is waiting on, or "" when no
	// facet is pending and the flow proceeds to previews/free text.
	Step FacetKey

	FacetContext       *FacetContext
	InspirationContext *InspirationContext
	EditSession        *EditSession
}

// FacetContext remembers the option list last shown so a stateless
// interactive reply can be resolved back to a semantic value
type FacetContext struct {
	FacetKey  FacetKey
	Options   []FacetOption
	Timestamp time.Time
	Preview   bool
	Recovered bool
}

// ActionKind enumerates the interactive actions bound to buttons
// outside the facet walk
type ActionKind string

const (
	ActionViewInspirations       ActionKind = "view_inspirations"
	ActionGenerateInspirations   ActionKind = "generate_inspirations"
	ActionRegenerateInspirations ActionKind = "regenerate_inspirations"
	ActionViewProducts           ActionKind = "view_products"
	ActionEditPreferences        ActionKind = "edit_preferences"
	ActionFinalDesignAccept      ActionKind = "final_design_accept"
	ActionRestartEditSession     ActionKind = "restart_edit_session"
	ActionStartEditPreferences   ActionKind = "start_edit_preferences"
	ActionEditGenerate           ActionKind = "generate"
	ActionEditCancel             ActionKind = "cancel"
)

// ActionBinding describes what tapping a presented button id means
type ActionBinding struct {
	Action ActionKind
	// Index addresses one inspiration of the cached preview, where
	// the action targets a specific item.
	Index *int
	// Primary image metadata carried into a restarted edit session.
	PrimaryImageURL     string
	PrimaryCaption      string
	PrimaryImageMediaID string
	PrimaryMediaHandle  string
}

// InspirationPreview is the cached set of inspirations shown to a user
type InspirationPreview struct {
	Inspirations []Inspiration
	Total        int
	FacetCounts  *FacetCounts
}

// InspirationContext caches the last preview fetch per user, with an
// error flag gating retry backoff and the button-id action bindings
// of the most recent presentation
type InspirationContext struct {
	Preview   *InspirationPreview
	Timestamp time.Time
	Err       bool
	Actions   map[string]ActionBinding
}

// EditImage is one reference image collected during an edit session
type EditImage struct {
	SourceURL   string
	UploadedURL string
	MediaID     string
	// MediaHandle is the transport-native handle obtained by
	// mirroring the image, reusable as an interactive header.
	MediaHandle string
	IsPrimary   bool
	Caption     string
	Data        []byte
	MimeType    string
	Filename    string
}

// EditSession is the nested, time-boxed edit mode. While present on
// an aggregate it claims every inbound event for that user.
type EditSession struct {
	StartedAt         time.Time
	LastInteractionAt time.Time
	Images            []EditImage
	PendingQuery      string
	Actions           map[string]ActionKind
}

// UserImageCount counts images the user uploaded themselves,
// excluding the pinned primary carried in from an inspiration
func (s *EditSession) UserImageCount() int {
	n := 0
	for _, img := range s.Images {
		if !img.IsPrimary {
			n++
		}
	}
	return n
}

// PrimaryImage returns the pinned image, falling back to the first
// uploaded one
func (s *EditSession) PrimaryImage() *EditImage {
	for i := range s.Images {
		if s.Images[i].IsPrimary {
			return &s.Images[i]
		}
	}
	if len(s.Images) > 0 {
		return &s.Images[0]
	}
	return nil
}
