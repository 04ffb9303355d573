// Package facet holds the room-conditional facet catalog and the pure
// functions that map per-user filter selections to the external search
// contract and back to presentable option lists.
package facet

import (
	"strings"
	"unicode"

	"github.com/construex/whatsapp-designer/internal/domain"
)

// DefaultSequence is asked while no room is selected
var DefaultSequence = []domain.FacetKey{
	domain.FacetRooms,
	domain.FacetColors,
	domain.FacetStyles,
	domain.FacetLighting,
	domain.FacetPrices,
}

// RoomDynamicKeys lists the room-specific facets unlocked by each
// room selection
var RoomDynamicKeys = map[string][]domain.FacetKey{
	"LIVING_ROOM": {domain.FacetLivingRoomLayout, domain.FacetLivingRoomSpace},
	"DINING_ROOM": {domain.FacetDiningRoomType, domain.FacetDiningRoomTableSize},
	"BEDROOM":     {domain.FacetBedroomType, domain.FacetBedroomBedSize},
	"OUTDOOR":     {domain.FacetOutdoorSpace, domain.FacetOutdoorFeature},
}

// AllDynamicKeys is the union of every room's dynamic facets
var AllDynamicKeys = func() []domain.FacetKey {
	seen := make(map[domain.FacetKey]bool)
	var keys []domain.FacetKey
	for _, room := range []string{"LIVING_ROOM", "DINING_ROOM", "BEDROOM", "OUTDOOR"} {
		for _, key := range RoomDynamicKeys[room] {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}()

// facetTokens maps filter keys to the facet tokens of the search API
var facetTokens = map[domain.FacetKey]string{
	domain.FacetRooms:               "ROOM",
	domain.FacetColors:              "COLORS",
	domain.FacetStyles:              "STYLES",
	domain.FacetLighting:            "LIGHTING_ATMOSPHERE",
	domain.FacetLivingRoomLayout:    "LIVING_ROOM_LAYOUT",
	domain.FacetLivingRoomSpace:     "LIVING_ROOM_SPACE",
	domain.FacetDiningRoomType:      "DINING_ROOM_TYPE",
	domain.FacetDiningRoomTableSize: "DINING_ROOM_TABLE_SIZE",
	domain.FacetBedroomType:         "BEDROOM_TYPE",
	domain.FacetBedroomBedSize:      "BEDROOM_BED_SIZE",
	domain.FacetOutdoorSpace:        "OUTDOOR_SPACE",
	domain.FacetOutdoorFeature:      "OUTDOOR_FEATURE",
	domain.FacetPrices:              "PRICE",
}

var labels = map[domain.FacetKey]string{
	domain.FacetRooms:               "a room type",
	domain.FacetColors:              "a color palette",
	domain.FacetStyles:              "a style",
	domain.FacetLighting:            "lighting & atmosphere",
	domain.FacetLivingRoomLayout:    "a living room layout",
	domain.FacetLivingRoomSpace:     "a living room space",
	domain.FacetDiningRoomType:      "a dining room type",
	domain.FacetDiningRoomTableSize: "a dining room table size",
	domain.FacetBedroomType:         "a bedroom type",
	domain.FacetBedroomBedSize:      "a bed size",
	domain.FacetOutdoorSpace:        "an outdoor space",
	domain.FacetOutdoorFeature:      "an outdoor feature",
	domain.FacetPrices:              "a price range",
}

// SequenceFor selects the room-specific sequence when a room is
// chosen, otherwise the default sequence. Room sequences insert the
// room's dynamic facets between lighting and prices.
func SequenceFor(state domain.DesignSearchState) []domain.FacetKey {
	dynamic, ok := RoomDynamicKeys[state.Filters.Room()]
	if !ok {
		return DefaultSequence
	}

	sequence := make([]domain.FacetKey, 0, len(DefaultSequence)+len(dynamic))
	sequence = append(sequence,
		domain.FacetRooms,
		domain.FacetColors,
		domain.FacetStyles,
		domain.FacetLighting,
	)
	sequence = append(sequence, dynamic...)
	sequence = append(sequence, domain.FacetPrices)
	return sequence
}

// SequenceTokens converts a facet-key sequence into the token list
// sent to the search API
func SequenceTokens(sequence []domain.FacetKey) []string {
	tokens := make([]string, 0, len(sequence))
	for _, key := range sequence {
		if token, ok := facetTokens[key]; ok {
			tokens = append(tokens, token)
		} else if key != "" {
			tokens = append(tokens, strings.ToUpper(string(key)))
		}
	}
	return tokens
}

// Label renders a facet key as the phrase used in prompts
func Label(key domain.FacetKey) string {
	if label, ok := labels[key]; ok {
		return label
	}
	return Humanize(string(key))
}

// Humanize turns a raw facet value or key into a readable label:
// camelCase split, separators collapsed, leading capital
func Humanize(value string) string {
	if value == "" {
		return ""
	}

	var b strings.Builder
	runes := []rune(value)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}

	words := strings.Fields(b.String())
	out := strings.Join(words, " ")
	if out == "" {
		return ""
	}
	return strings.ToUpper(out[:1]) + out[1:]
}

// TitleCase renders a raw value as a display title: separators
// collapsed and every word capitalized
func TitleCase(value string) string {
	if value == "" {
		return ""
	}

	var b strings.Builder
	runes := []rune(value)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}

	words := strings.Fields(b.String())
	for i, word := range words {
		lower := strings.ToLower(word)
		words[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(words, " ")
}

// MaxOptionTitleLen is the display width the transport allows for
// interactive row titles
const MaxOptionTitleLen = 24

// Truncate shortens a string to maxLen, replacing the tail with "..."
func Truncate(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}
	if maxLen <= 3 {
		return value[:maxLen]
	}
	return value[:maxLen-3] + "..."
}
