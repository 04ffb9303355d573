package facet

import (
	"github.com/construex/whatsapp-designer/internal/domain"
)

const (
	defaultLocale      = "en-US"
	defaultCurrency    = "SAR"
	defaultMarketplace = "SA"
	defaultSeed        = "b7bae4da-de63-4620-af62-61c380c69248"
)

// NewDesignState builds the default per-user search state
func NewDesignState() domain.DesignSearchState {
	state := domain.DesignSearchState{
		Locale:      defaultLocale,
		Currency:    defaultCurrency,
		Marketplace: defaultMarketplace,
		Seed:        defaultSeed,
		Size:        1,
		Page:        1,
		Filters: domain.Filters{
			Rooms:    []string{},
			Colors:   []string{},
			Styles:   []string{},
			Lighting: []string{},
		},
	}
	state.CurrentFacets = SequenceTokens(SequenceFor(state))
	return state
}

// Recompute refreshes the derived facet token list. Idempotent: the
// result depends only on the selected room.
func Recompute(state *domain.DesignSearchState) {
	state.CurrentFacets = SequenceTokens(SequenceFor(*state))
}

// Selection is one resolved (facet, value) answer. Exactly one of
// Values and Price is meaningful, keyed off Key == FacetPrices.
type Selection struct {
	Key    domain.FacetKey
	Values []string
	Price  domain.PriceSelection
}

// ApplySelection writes a resolved answer into the state and
// recomputes the derived facets. Selecting a room drops every dynamic
// facet that does not belong to the new room and initializes the
// applicable ones empty.
func ApplySelection(state *domain.DesignSearchState, sel Selection) {
	switch sel.Key {
	case "":
		// nothing to apply; still recompute for callers that merged
		// state from elsewhere
	case domain.FacetRooms:
		room := ""
		if len(sel.Values) > 0 {
			room = sel.Values[0]
		}
		if room != "" {
			state.Filters.Rooms = []string{room}
		} else {
			state.Filters.Rooms = []string{}
		}

		state.Filters.Dynamic = make(map[domain.FacetKey][]string)
		for _, key := range RoomDynamicKeys[room] {
			state.Filters.Dynamic[key] = []string{}
		}
	case domain.FacetPrices:
		state.Filters.Prices = sel.Price
	default:
		values := make([]string, 0, len(sel.Values))
		for _, v := range sel.Values {
			if v != "" {
				values = append(values, v)
			}
		}
		state.Filters.SetSelected(sel.Key, values)
	}

	Recompute(state)
}

// NeedsSelection reports whether a facet still awaits an answer. The
// price facet counts as answered when skipped or when either endpoint
// is set.
func NeedsSelection(filters domain.Filters, key domain.FacetKey) bool {
	if key == "" {
		return false
	}
	if key == domain.FacetPrices {
		return !filters.Prices.IsSet()
	}

	values, _ := filters.Selected(key)
	return len(values) == 0
}

// NextUnanswered scans the sequence starting just after previous (or
// from the start when previous is empty) and returns the first facet
// still needing a selection, or "" when none remains. Deterministic
// and terminating; callers walking repeatedly must still track
// visited keys, since a facet the backend returns no options for
// never becomes answered.
func NextUnanswered(state domain.DesignSearchState, previous domain.FacetKey) domain.FacetKey {
	sequence := SequenceFor(state)

	start := 0
	if previous != "" {
		for i, key := range sequence {
			if key == previous {
				start = i + 1
				break
			}
		}
	}

	for _, key := range sequence[start:] {
		if NeedsSelection(state.Filters, key) {
			return key
		}
	}
	return ""
}
