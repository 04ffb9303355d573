package agent

import (
	"encoding/json"
	"testing"

	"github.com/construex/whatsapp-designer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFacetCounts_RecordArray(t *testing.T) {
	raw := map[string]any{
		"colors": []any{
			map[string]any{"value": "BLUE", "count": float64(4)},
			map[string]any{"name": "RED", "total": float64(2)},
			map[string]any{"option": "GREEN"},
		},
	}

	counts, err := ParseFacetCounts(raw)
	require.NoError(t, err)

	entries := counts.Get(domain.FacetColors)
	require.Len(t, entries, 3)
	assert.Equal(t, "BLUE", entries[0].Value)
	assert.Equal(t, 4, *entries[0].Count)
	assert.Equal(t, "RED", entries[1].Value)
	assert.Equal(t, 2, *entries[1].Count)
	assert.Equal(t, "GREEN", entries[2].Value)
	assert.Nil(t, entries[2].Count)
}

func TestParseFacetCounts_ValueCountMap(t *testing.T) {
	raw := map[string]any{
		"styles": map[string]any{
			"MODERN":  float64(7),
			"CLASSIC": float64(3),
		},
	}

	counts, err := ParseFacetCounts(raw)
	require.NoError(t, err)

	entries := counts.Get(domain.FacetStyles)
	assert.Len(t, entries, 2)
	byValue := map[string]*int{}
	for _, e := range entries {
		byValue[e.Value] = e.Count
	}
	assert.Equal(t, 7, *byValue["MODERN"])
	assert.Equal(t, 3, *byValue["CLASSIC"])
}

func TestParseFacetCounts_LegacyKeysRenamed(t *testing.T) {
	raw := map[string]any{
		"bedroomTypeCounts": []any{
			map[string]any{"value": "MASTER", "count": float64(5)},
		},
	}

	counts, err := ParseFacetCounts(raw)
	require.NoError(t, err)
	assert.Len(t, counts.Get(domain.FacetBedroomType), 1)
}

func TestParseFacetCounts_PriceRanges(t *testing.T) {
	raw := map[string]any{
		"prices": []any{
			map[string]any{"min": float64(1000), "max": float64(5000), "count": float64(9)},
			map[string]any{"min": float64(5000), "max": float64(10000), "total": float64(2)},
			map[string]any{},
		},
	}

	counts, err := ParseFacetCounts(raw)
	require.NoError(t, err)
	require.NotNil(t, counts.Prices)

	assert.Equal(t, 1000.0, *counts.Prices.Min)
	assert.Equal(t, 10000.0, *counts.Prices.Max)
	assert.Equal(t, []float64{1000, 5000}, counts.Prices.Segments)
	assert.Len(t, counts.Prices.Ranges, 2)
}

func TestParseFacetCounts_UnrecognizedShape(t *testing.T) {
	_, err := ParseFacetCounts(map[string]any{"colors": float64(12)})
	var shapeErr *ErrUnrecognizedShape
	assert.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "colors", shapeErr.Facet)

	_, err = ParseFacetCounts(map[string]any{"prices": "cheap"})
	assert.ErrorAs(t, err, &shapeErr)
}

func TestExtractDesignResponse_Nested(t *testing.T) {
	body := []byte(`{"workflowlog":{"tasks":[
		{"tool":"noise","result":{"data":{"status":"ok"}}},
		{"tool":"search","result":{"data":{"payload":{"inspirations":[
			{"room":"LIVING_ROOM","description":"Airy","image":{"url":"designs/1.jpg"}},
			{"room":"BEDROOM","imageUrl":"https://img.example.com/2.jpg"}
		],"total":11,"facetCounts":{"colors":{"BLUE":2}}}}}}
	]}}`)

	workflow, err := ParseEnvelope(body)
	require.NoError(t, err)

	parser := &Parser{CDNBase: "https://cdn.example.com/"}
	design, err := parser.ExtractDesignResponse(workflow)
	require.NoError(t, err)
	require.NotNil(t, design)

	assert.Equal(t, 11, design.Total)
	require.Len(t, design.Inspirations, 2)
	assert.Equal(t, "https://cdn.example.com/designs/1.jpg", design.Inspirations[0].ImageURL)
	assert.Equal(t, "https://img.example.com/2.jpg", design.Inspirations[1].ImageURL)
	require.NotNil(t, design.FacetCounts)
	assert.Len(t, design.FacetCounts.Get(domain.FacetColors), 1)
}

func TestExtractDesignResponse_NoDesignTask(t *testing.T) {
	body := []byte(`{"workflowlog":{"tasks":[{"tool":"noise","result":{"data":"hello"}}]}}`)
	workflow, err := ParseEnvelope(body)
	require.NoError(t, err)

	parser := &Parser{}
	design, err := parser.ExtractDesignResponse(workflow)
	assert.NoError(t, err)
	assert.Nil(t, design)
}

func TestExtractSummaryText(t *testing.T) {
	t.Run("string data", func(t *testing.T) {
		body := []byte(`{"workflowlog":{"tasks":[{"tool":"owncondition","result":{"data":"Looking great"}}]}}`)
		workflow, err := ParseEnvelope(body)
		require.NoError(t, err)
		assert.Equal(t, "Looking great", ExtractSummaryText(workflow))
	})

	t.Run("message field", func(t *testing.T) {
		body := []byte(`{"workflowlog":{"tasks":[{"tool":"owncondition","result":{"data":{"message":"Almost done"}}}]}}`)
		workflow, err := ParseEnvelope(body)
		require.NoError(t, err)
		assert.Equal(t, "Almost done", ExtractSummaryText(workflow))
	})

	t.Run("absent", func(t *testing.T) {
		assert.Equal(t, "", ExtractSummaryText(nil))
	})
}

func TestExtractEditResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		body := []byte(`{"workflowlog":{"tasks":[
			{"tool":"gemini-edit-images-(nano-banana)","result":{"data":{
				"s3_url":"https://s3.example.com/out.png","name":"Refined Loft","description":"Warmer tones"
			}}}
		]}}`)
		workflow, err := ParseEnvelope(body)
		require.NoError(t, err)

		result, err := ExtractEditResult(workflow)
		require.NoError(t, err)
		assert.Equal(t, "https://s3.example.com/out.png", result.ImageURL)
		assert.Equal(t, "Refined Loft", result.Name)
	})

	t.Run("missing image url", func(t *testing.T) {
		body := []byte(`{"workflowlog":{"tasks":[
			{"tool":"gemini-edit-images-(nano-banana)","result":{"data":{"name":"x"}}}
		]}}`)
		workflow, err := ParseEnvelope(body)
		require.NoError(t, err)

		_, err = ExtractEditResult(workflow)
		assert.Error(t, err)
	})

	t.Run("task never ran", func(t *testing.T) {
		workflow := &workflowLog{Tasks: []workflowTask{{Tool: "noise", Result: &workflowResult{Data: json.RawMessage(`{}`)}}}}
		_, err := ExtractEditResult(workflow)
		assert.Error(t, err)
	})
}

func TestProductIDs(t *testing.T) {
	insp := domain.Inspiration{Raw: map[string]any{
		"id": "12345",
		"sections": []any{
			map[string]any{"productId": "abc-1"},
			map[string]any{"products": map[string]any{"99887": map[string]any{}, "xx": map[string]any{}}},
		},
		"shortId": "12", // too short to be a product id
	}}

	ids := ProductIDs(insp)
	assert.ElementsMatch(t, []string{"12345", "abc-1", "99887"}, ids)
}
