package facet

import (
	"github.com/construex/whatsapp-designer/internal/domain"
)

// dynamicPayloadKeys renames the dynamic filter keys to their plural
// forms used by the search API
var dynamicPayloadKeys = map[domain.FacetKey]string{
	domain.FacetLivingRoomLayout:    "livingRoomLayouts",
	domain.FacetLivingRoomSpace:     "livingRoomSpaces",
	domain.FacetDiningRoomType:      "diningRoomTypes",
	domain.FacetDiningRoomTableSize: "diningRoomTableSizes",
	domain.FacetBedroomType:         "bedroomTypes",
	domain.FacetBedroomBedSize:      "bedroomBedSizes",
	domain.FacetOutdoorSpace:        "outdoorSpaces",
	domain.FacetOutdoorFeature:      "outdoorFeatures",
}

func serializePrices(prices domain.PriceSelection) []map[string]float64 {
	if prices.Min == nil && prices.Max == nil {
		return []map[string]float64{}
	}

	min := prices.Min
	if min == nil {
		min = prices.Max
	}
	max := prices.Max
	if max == nil {
		max = prices.Min
	}

	return []map[string]float64{{"min": *min, "max": *max}}
}

func serializeFilters(filters domain.Filters) map[string]any {
	nonNil := func(values []string) []string {
		if values == nil {
			return []string{}
		}
		return values
	}

	result := map[string]any{
		"rooms":                  nonNil(filters.Rooms),
		"colors":                 nonNil(filters.Colors),
		"styles":                 nonNil(filters.Styles),
		"lightingAndAtmospheres": nonNil(filters.Lighting),
		"prices":                 serializePrices(filters.Prices),
		"categorization":         []string{},
		"inStockPercentage":      map[string]int{"min": 80},
	}

	for key, apiKey := range dynamicPayloadKeys {
		if values, ok := filters.Dynamic[key]; ok && len(values) > 0 {
			result[apiKey] = values
		}
	}

	return result
}

// BuildSearchPayload serializes the state into the external search
// contract. Skipped prices are omitted the same as unset ones; the
// in-stock floor and empty categorization are always forced.
func BuildSearchPayload(state domain.DesignSearchState) domain.SearchPayload {
	payload := domain.SearchPayload{
		Locale:      state.Locale,
		Currency:    state.Currency,
		Marketplace: state.Marketplace,
		Seed:        state.Seed,
		Size:        state.Size,
		Page:        state.Page,
		Filters:     serializeFilters(state.Filters),
		Facets:      state.CurrentFacets,
	}

	if payload.Locale == "" {
		payload.Locale = "en-SA"
	}
	if payload.Currency == "" {
		payload.Currency = defaultCurrency
	}
	if payload.Marketplace == "" {
		payload.Marketplace = "ABYAT_SA"
	}
	if payload.Size == 0 {
		payload.Size = 20
	}
	if payload.Facets == nil {
		payload.Facets = []string{}
	}

	return payload
}
