package facet

import (
	"testing"

	"github.com/construex/whatsapp-designer/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestParsePriceInput(t *testing.T) {
	t.Run("range", func(t *testing.T) {
		parsed := ParsePriceInput("2000-5000")
		assert.False(t, parsed.SingleValue)
		if assert.NotNil(t, parsed.Selection) {
			assert.Equal(t, 2000.0, *parsed.Selection.Min)
			assert.Equal(t, 5000.0, *parsed.Selection.Max)
		}
	})

	t.Run("reversed range is swap-normalized", func(t *testing.T) {
		parsed := ParsePriceInput("5000-2000")
		if assert.NotNil(t, parsed.Selection) {
			assert.Equal(t, 2000.0, *parsed.Selection.Min)
			assert.Equal(t, 5000.0, *parsed.Selection.Max)
		}
	})

	t.Run("single value rejected", func(t *testing.T) {
		parsed := ParsePriceInput("3000")
		assert.Nil(t, parsed.Selection)
		assert.True(t, parsed.SingleValue)
	})

	t.Run("k suffix single value rejected", func(t *testing.T) {
		parsed := ParsePriceInput("5k")
		assert.Nil(t, parsed.Selection)
		assert.True(t, parsed.SingleValue)
	})

	t.Run("suffix range", func(t *testing.T) {
		parsed := ParsePriceInput("between 2k and 1m")
		if assert.NotNil(t, parsed.Selection) {
			assert.Equal(t, 2000.0, *parsed.Selection.Min)
			assert.Equal(t, 1000000.0, *parsed.Selection.Max)
		}
	})

	t.Run("equal endpoints rejected as ambiguous", func(t *testing.T) {
		parsed := ParsePriceInput("4000-4000")
		assert.Nil(t, parsed.Selection)
		assert.True(t, parsed.SingleValue)
	})

	t.Run("no tokens is a no-op", func(t *testing.T) {
		parsed := ParsePriceInput("something comfortable")
		assert.Nil(t, parsed.Selection)
		assert.False(t, parsed.SingleValue)
	})
}

func TestFormatPriceRange(t *testing.T) {
	min, max := 2000.0, 5000.0

	assert.Equal(t, "SAR 2,000 - SAR 5,000",
		FormatPriceRange(domain.PriceSelection{Min: &min, Max: &max}))
	assert.Equal(t, "from SAR 2,000", FormatPriceRange(domain.PriceSelection{Min: &min}))
	assert.Equal(t, "up to SAR 5,000", FormatPriceRange(domain.PriceSelection{Max: &max}))
	assert.Equal(t, "", FormatPriceRange(domain.PriceSelection{}))
}
