package domain

// FacetKey identifies one filterable dimension of a design search
type FacetKey string

const (
	FacetRooms    FacetKey = "rooms"
	FacetColors   FacetKey = "colors"
	FacetStyles   FacetKey = "styles"
	FacetLighting FacetKey = "lightingAndAtmospheres"
	FacetPrices   FacetKey = "prices"

	FacetLivingRoomLayout    FacetKey = "livingRoomLayout"
	FacetLivingRoomSpace     FacetKey = "livingRoomSpace"
	FacetDiningRoomType      FacetKey = "diningRoomType"
	FacetDiningRoomTableSize FacetKey = "diningRoomTableSize"
	FacetBedroomType         FacetKey = "bedroomType"
	FacetBedroomBedSize      FacetKey = "bedroomBedSize"
	FacetOutdoorSpace        FacetKey = "outdoorSpace"
	FacetOutdoorFeature      FacetKey = "outdoorFeature"
)

// PriceSelection is the price facet's selection: an explicit range,
// an explicit skip, or unset (all fields zero)
type PriceSelection struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Skipped bool     `json:"skipped,omitempty"`
}

// IsSet reports whether the user has answered the price facet,
// either with a range or by skipping it
func (p PriceSelection) IsSet() bool {
	return p.Skipped || p.Min != nil || p.Max != nil
}

// Filters holds the per-user facet selections. Fixed facets are
// always present; room-specific facets live in Dynamic and are
// re-initialized whenever the room changes.
type Filters struct {
	Rooms    []string              `json:"rooms"`
	Colors   []string              `json:"colors"`
	Styles   []string              `json:"styles"`
	Lighting []string              `json:"lightingAndAtmospheres"`
	Dynamic  map[FacetKey][]string `json:"dynamic,omitempty"`
	Prices   PriceSelection        `json:"prices"`
}

// Selected returns the selected values for an array-valued facet.
// The second return reports whether the facet exists at all for the
// current filter set (a dynamic facet for a different room does not).
func (f Filters) Selected(key FacetKey) ([]string, bool) {
	switch key {
	case FacetRooms:
		return f.Rooms, true
	case FacetColors:
		return f.Colors, true
	case FacetStyles:
		return f.Styles, true
	case FacetLighting:
		return f.Lighting, true
	case FacetPrices:
		return nil, false
	default:
		values, ok := f.Dynamic[key]
		return values, ok
	}
}

// SetSelected replaces the selection of an array-valued facet
func (f *Filters) SetSelected(key FacetKey, values []string) {
	switch key {
	case FacetRooms:
		f.Rooms = values
	case FacetColors:
		f.Colors = values
	case FacetStyles:
		f.Styles = values
	case FacetLighting:
		f.Lighting = values
	case FacetPrices:
		// price is set through Prices, never as a value list
	default:
		if f.Dynamic == nil {
			f.Dynamic = make(map[FacetKey][]string)
		}
		f.Dynamic[key] = values
	}
}

// Room returns the first selected room, or "" when no room is chosen
func (f Filters) Room() string {
	if len(f.Rooms) == 0 {
		return ""
	}
	return f.Rooms[0]
}

// DesignSearchState is the mutable per-user search selection.
// CurrentFacets is derived from Filters and must be recomputed on
// every mutation; callers go through facet.ApplySelection rather
// than writing it directly.
type DesignSearchState struct {
	Locale        string   `json:"locale"`
	Currency      string   `json:"currency"`
	Marketplace   string   `json:"marketplace"`
	Seed          string   `json:"seed,omitempty"`
	Size          int      `json:"size"`
	Page          int      `json:"page"`
	Filters       Filters  `json:"filters"`
	CurrentFacets []string `json:"currentFacets"`
}

// FacetOption is one presentable choice for a facet, sanitized for
// the interactive list/button limits of the transport
type FacetOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value"`
	Count       *int   `json:"count,omitempty"`
}

// ValueCount is one canonical facet count entry after response-shape
// normalization
type ValueCount struct {
	Value string
	Count *int
}

// PriceRange is one priced bucket reported by the search backend
type PriceRange struct {
	Min   *float64
	Max   *float64
	Count *int
}

// PriceFacet is the canonical form of the backend's price facet
type PriceFacet struct {
	Min      *float64
	Max      *float64
	Segments []float64
	Ranges   []PriceRange
}

// FacetCounts is the canonical per-facet count set extracted from a
// search response, regardless of which raw shape the backend used
type FacetCounts struct {
	Values map[FacetKey][]ValueCount
	Prices *PriceFacet
}

// Get returns the canonical entries for an array-valued facet
func (c *FacetCounts) Get(key FacetKey) []ValueCount {
	if c == nil || c.Values == nil {
		return nil
	}
	return c.Values[key]
}

// Inspiration is one candidate design returned by the search backend.
// Raw keeps the undecoded payload for product-id extraction.
type Inspiration struct {
	Room        string
	Description string
	ImageURL    string
	Raw         map[string]any
}

// DesignResponse is the canonical search result
type DesignResponse struct {
	Inspirations []Inspiration
	Total        int
	FacetCounts  *FacetCounts
}
