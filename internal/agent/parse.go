package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/construex/whatsapp-designer/internal/domain"
)

// The workflow agent returns an opaque task log; design results,
// summary text and generated images are located by task shape rather
// than position.
type workflowLog struct {
	Tasks []workflowTask `json:"tasks"`
}

type workflowTask struct {
	Tool   string          `json:"tool"`
	Result *workflowResult `json:"result"`
}

type workflowResult struct {
	Data json.RawMessage `json:"data"`
}

type agentEnvelope struct {
	WorkflowLog *workflowLog `json:"workflowlog"`
}

const (
	summaryTool   = "owncondition"
	editImageTool = "gemini-edit-images-(nano-banana)"
)

// Parser maps raw workflow-agent responses to canonical domain types.
// Each known raw shape is handled explicitly; anything else is an
// ErrUnrecognizedShape instead of a best-effort guess.
type Parser struct {
	CDNBase string
}

// ErrUnrecognizedShape reports a facet payload in none of the known
// backend shapes
type ErrUnrecognizedShape struct {
	Facet string
}

func (e *ErrUnrecognizedShape) Error() string {
	return fmt.Sprintf("unrecognized facet payload shape for %q", e.Facet)
}

// ParseEnvelope decodes a raw agent response body
func ParseEnvelope(body []byte) (*workflowLog, error) {
	var envelope agentEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode agent response: %w", err)
	}
	if envelope.WorkflowLog == nil {
		return nil, nil
	}
	return envelope.WorkflowLog, nil
}

// ExtractSummaryText returns the free-text summary produced by the
// agent's condition task, if any
func ExtractSummaryText(log *workflowLog) string {
	if log == nil {
		return ""
	}

	for _, task := range log.Tasks {
		if task.Tool != summaryTool || task.Result == nil {
			continue
		}

		var text string
		if err := json.Unmarshal(task.Result.Data, &text); err == nil && text != "" {
			return text
		}

		var obj struct {
			Message string `json:"message"`
			Text    string `json:"text"`
		}
		if err := json.Unmarshal(task.Result.Data, &obj); err == nil {
			if obj.Message != "" {
				return obj.Message
			}
			if obj.Text != "" {
				return obj.Text
			}
		}
	}

	return ""
}

// ExtractEditResult locates the image-edit task and returns its
// generated image. A run without an image URL is an error.
func ExtractEditResult(log *workflowLog) (*domain.EditResult, error) {
	if log == nil {
		return nil, fmt.Errorf("agent returned no workflow log")
	}

	for _, task := range log.Tasks {
		if task.Tool != editImageTool || task.Result == nil {
			continue
		}

		var data struct {
			S3URL       string `json:"s3_url"`
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(task.Result.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to decode edit task result: %w", err)
		}
		if data.S3URL == "" {
			return nil, fmt.Errorf("agent workflow did not return an image URL")
		}

		result := &domain.EditResult{
			ImageURL:    data.S3URL,
			Name:        data.Name,
			Description: data.Description,
		}
		if result.Name == "" {
			result.Name = "AI Design Preview"
		}
		return result, nil
	}

	return nil, fmt.Errorf("agent workflow did not run the edit task")
}

// ExtractDesignResponse scans the task log for the first result that
// unwraps into a design-shaped payload and parses it canonically.
// Returns nil without error when no task carries one.
func (p *Parser) ExtractDesignResponse(log *workflowLog) (*domain.DesignResponse, error) {
	if log == nil {
		return nil, nil
	}

	for _, task := range log.Tasks {
		if task.Result == nil || len(task.Result.Data) == 0 {
			continue
		}

		var raw any
		if err := json.Unmarshal(task.Result.Data, &raw); err != nil {
			continue
		}

		candidate := unwrapDesignResult(raw, 0)
		if candidate == nil {
			continue
		}
		return p.parseDesignResponse(candidate)
	}

	return nil, nil
}

// unwrapDesignResult digs through the wrapper layers various agent
// tools put around their payloads, depth-limited
func unwrapDesignResult(candidate any, depth int) map[string]any {
	if candidate == nil || depth > 4 {
		return nil
	}

	switch v := candidate.(type) {
	case []any:
		for _, item := range v {
			if found := unwrapDesignResult(item, depth+1); found != nil {
				return found
			}
		}
	case map[string]any:
		if v["facetCounts"] != nil || v["inspirations"] != nil || v["results"] != nil {
			return v
		}
		if _, ok := v["total"].(float64); ok {
			return v
		}
		for _, key := range []string{"data", "payload", "value", "result", "response"} {
			if nested, ok := v[key]; ok {
				if found := unwrapDesignResult(nested, depth+1); found != nil {
					return found
				}
			}
		}
	}

	return nil
}

func (p *Parser) parseDesignResponse(raw map[string]any) (*domain.DesignResponse, error) {
	response := &domain.DesignResponse{}

	items, _ := raw["inspirations"].([]any)
	if items == nil {
		items, _ = raw["results"].([]any)
	}
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		response.Inspirations = append(response.Inspirations, p.parseInspiration(obj))
	}

	switch total := raw["total"].(type) {
	case float64:
		response.Total = int(total)
	default:
		if hits, ok := raw["totalHits"].(float64); ok {
			response.Total = int(hits)
		} else {
			response.Total = len(response.Inspirations)
		}
	}

	if rawCounts, ok := raw["facetCounts"].(map[string]any); ok {
		counts, err := ParseFacetCounts(rawCounts)
		if err != nil {
			return nil, err
		}
		response.FacetCounts = counts
	}

	return response, nil
}

func (p *Parser) parseInspiration(raw map[string]any) domain.Inspiration {
	insp := domain.Inspiration{Raw: raw}
	insp.Room, _ = raw["room"].(string)
	insp.Description, _ = raw["description"].(string)
	insp.ImageURL = p.inspirationImageURL(raw)
	return insp
}

// inspirationImageURL resolves the image URL across the shapes the
// backend has been seen returning
func (p *Parser) inspirationImageURL(raw map[string]any) string {
	if image, ok := raw["image"].(map[string]any); ok {
		if url, ok := image["url"].(string); ok && url != "" {
			return p.cdnURL(url)
		}
	}
	if url, ok := raw["image"].(string); ok && url != "" {
		return p.cdnURL(url)
	}
	if url, ok := raw["imageUrl"].(string); ok && url != "" {
		return p.cdnURL(url)
	}
	if media, ok := raw["media"].([]any); ok && len(media) > 0 {
		if first, ok := media[0].(map[string]any); ok {
			if url, ok := first["url"].(string); ok && url != "" {
				return p.cdnURL(url)
			}
		}
	}
	if images, ok := raw["images"].(map[string]any); ok {
		if product, ok := images["productImages"].([]any); ok && len(product) > 0 {
			if url, ok := product[0].(string); ok && url != "" {
				return p.cdnURL(url)
			}
		}
	}
	return ""
}

var absoluteURLPattern = regexp.MustCompile(`(?i)^https?://`)

func (p *Parser) cdnURL(path string) string {
	if path == "" || absoluteURLPattern.MatchString(path) {
		return path
	}
	base := strings.TrimSuffix(p.CDNBase, "/")
	return base + "/" + strings.TrimPrefix(path, "/")
}

// legacyCountKeys maps the backend's older per-room count keys to the
// canonical facet keys
var legacyCountKeys = map[string]domain.FacetKey{
	"livingRoomLayoutCounts":    domain.FacetLivingRoomLayout,
	"livingRoomSpaceCounts":     domain.FacetLivingRoomSpace,
	"diningRoomTypeCounts":      domain.FacetDiningRoomType,
	"diningRoomTableSizeCounts": domain.FacetDiningRoomTableSize,
	"bedroomTypeCounts":         domain.FacetBedroomType,
	"bedroomBedSizeCounts":      domain.FacetBedroomBedSize,
	"outdoorSpaceCounts":        domain.FacetOutdoorSpace,
	"outdoorFeatureCounts":      domain.FacetOutdoorFeature,
}

// ParseFacetCounts normalizes the backend's heterogeneous facet-count
// shapes (array of records, value-count maps, price range arrays,
// legacy *Counts keys) into one canonical type
func ParseFacetCounts(raw map[string]any) (*domain.FacetCounts, error) {
	counts := &domain.FacetCounts{Values: make(map[domain.FacetKey][]domain.ValueCount)}

	for rawKey, value := range raw {
		key := domain.FacetKey(rawKey)
		if canonical, ok := legacyCountKeys[rawKey]; ok {
			key = canonical
		}

		if key == domain.FacetPrices {
			prices, err := parsePriceFacet(value)
			if err != nil {
				return nil, err
			}
			counts.Prices = prices
			continue
		}

		entries, err := parseValueCounts(rawKey, value)
		if err != nil {
			return nil, err
		}
		counts.Values[key] = entries
	}

	return counts, nil
}

func parseValueCounts(facet string, value any) ([]domain.ValueCount, error) {
	switch v := value.(type) {
	case nil:
		return []domain.ValueCount{}, nil
	case []any:
		entries := make([]domain.ValueCount, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				if s, ok := item.(string); ok && s != "" {
					entries = append(entries, domain.ValueCount{Value: s})
					continue
				}
				return nil, &ErrUnrecognizedShape{Facet: facet}
			}

			name := firstString(obj, "value", "name", "option", "id")
			if name == "" {
				continue
			}
			entries = append(entries, domain.ValueCount{
				Value: name,
				Count: firstNumber(obj, "count", "total", "valueCount", "score"),
			})
		}
		return entries, nil
	case map[string]any:
		entries := make([]domain.ValueCount, 0, len(v))
		for name, count := range v {
			entry := domain.ValueCount{Value: name}
			if n, ok := count.(float64); ok {
				c := int(n)
				entry.Count = &c
			}
			entries = append(entries, entry)
		}
		return entries, nil
	default:
		return nil, &ErrUnrecognizedShape{Facet: facet}
	}
}

func parsePriceFacet(value any) (*domain.PriceFacet, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		facet := &domain.PriceFacet{}
		seenSegments := make(map[float64]bool)

		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, &ErrUnrecognizedShape{Facet: string(domain.FacetPrices)}
			}

			r := domain.PriceRange{
				Min:   floatField(obj, "min"),
				Max:   floatField(obj, "max"),
				Count: firstNumber(obj, "count", "total", "valueCount"),
			}
			if r.Min == nil && r.Max == nil {
				continue
			}
			facet.Ranges = append(facet.Ranges, r)

			if r.Min != nil {
				if facet.Min == nil || *r.Min < *facet.Min {
					facet.Min = r.Min
				}
				if !seenSegments[*r.Min] {
					seenSegments[*r.Min] = true
					facet.Segments = append(facet.Segments, *r.Min)
				}
			}
			if r.Max != nil && (facet.Max == nil || *r.Max > *facet.Max) {
				facet.Max = r.Max
			}
		}

		return facet, nil
	case map[string]any:
		// already-normalized shape: {min, max, segments, ranges}
		facet := &domain.PriceFacet{
			Min: floatField(v, "min"),
			Max: floatField(v, "max"),
		}
		if segments, ok := v["segments"].([]any); ok {
			for _, s := range segments {
				if n, ok := s.(float64); ok {
					facet.Segments = append(facet.Segments, n)
				}
			}
		}
		if ranges, ok := v["ranges"].([]any); ok {
			for _, item := range ranges {
				obj, ok := item.(map[string]any)
				if !ok {
					continue
				}
				facet.Ranges = append(facet.Ranges, domain.PriceRange{
					Min:   floatField(obj, "min"),
					Max:   floatField(obj, "max"),
					Count: firstNumber(obj, "count", "total", "valueCount"),
				})
			}
		}
		return facet, nil
	default:
		return nil, &ErrUnrecognizedShape{Facet: string(domain.FacetPrices)}
	}
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(obj map[string]any, keys ...string) *int {
	for _, key := range keys {
		if n, ok := obj[key].(float64); ok {
			v := int(n)
			return &v
		}
	}
	return nil
}

func floatField(obj map[string]any, key string) *float64 {
	if n, ok := obj[key].(float64); ok {
		return &n
	}
	return nil
}

var numericIDPattern = regexp.MustCompile(`^\d{3,}$`)

// ProductIDs walks an inspiration's raw payload collecting product
// identifiers: product-id fields, numeric id-suffixed fields, and
// keys of `products` maps
func ProductIDs(insp domain.Inspiration) []string {
	seen := make(map[string]bool)
	var ids []string

	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	var walk func(node any, depth int)
	walk = func(node any, depth int) {
		if depth > 8 {
			return
		}

		switch v := node.(type) {
		case []any:
			for _, item := range v {
				walk(item, depth+1)
			}
		case map[string]any:
			if products, ok := v["products"].(map[string]any); ok {
				for id := range products {
					if numericIDPattern.MatchString(id) {
						add(id)
					}
				}
			}

			for key, value := range v {
				s, ok := value.(string)
				if !ok {
					walk(value, depth+1)
					continue
				}

				lower := strings.ToLower(key)
				switch {
				case strings.Contains(lower, "productid") || lower == "product":
					add(s)
				case lower == "id" || strings.HasSuffix(lower, "id"):
					if numericIDPattern.MatchString(s) {
						add(s)
					}
				}
			}
		}
	}

	walk(insp.Raw, 0)
	return ids
}
