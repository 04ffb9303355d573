package facet

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/construex/whatsapp-designer/internal/domain"
)

var priceTokenPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)(\s*[kKmM]?)`)

// ParsePriceTokens extracts every numeric token from free text,
// applying k/m suffix multipliers
func ParsePriceTokens(text string) []float64 {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var tokens []float64
	for _, match := range priceTokenPattern.FindAllStringSubmatch(text, -1) {
		raw := strings.ReplaceAll(match[1], ",", "")
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(match[2])) {
		case "k":
			value *= 1_000
		case "m":
			value *= 1_000_000
		}

		tokens = append(tokens, value)
	}

	return tokens
}

// PriceParse is the outcome of parsing a free-text budget message
type PriceParse struct {
	// Selection is set when the text yields a usable range.
	Selection *domain.PriceSelection
	// SingleValue reports that exactly one endpoint was given (or two
	// equal ones); the caller re-prompts instead of mutating state.
	SingleValue bool
}

// ParsePriceInput interprets a free-text budget reply. Two numeric
// tokens yield a swap-normalized range; equal tokens are rejected as
// ambiguous; a single token is rejected since a range needs both
// endpoints; no tokens falls through to normal text handling.
func ParsePriceInput(text string) PriceParse {
	tokens := ParsePriceTokens(text)

	if len(tokens) >= 2 {
		min, max := tokens[0], tokens[1]
		if min > max {
			min, max = max, min
		}
		if min == max {
			return PriceParse{SingleValue: true}
		}
		return PriceParse{Selection: &domain.PriceSelection{Min: &min, Max: &max}}
	}

	if len(tokens) == 1 {
		return PriceParse{SingleValue: true}
	}

	return PriceParse{}
}

// FormatPriceRange renders a selected range for confirmation messages
func FormatPriceRange(sel domain.PriceSelection) string {
	switch {
	case sel.Min != nil && sel.Max != nil:
		return FormatSAR(*sel.Min) + " - " + FormatSAR(*sel.Max)
	case sel.Min != nil:
		return "from " + FormatSAR(*sel.Min)
	case sel.Max != nil:
		return "up to " + FormatSAR(*sel.Max)
	default:
		return ""
	}
}
