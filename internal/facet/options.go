package facet

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/construex/whatsapp-designer/internal/domain"
)

// FormatSAR renders an amount as a whole-riyal currency string with
// thousands separators
func FormatSAR(amount float64) string {
	return "SAR " + groupThousands(int64(amount+0.5))
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)

	out := strings.Join(parts, ",")
	if negative {
		out = "-" + out
	}
	return out
}

func priceOptions(facet *domain.PriceFacet, limit int) []domain.FacetOption {
	if facet == nil {
		return nil
	}

	type bucket struct {
		min, max float64
		count    *int
	}

	var buckets []bucket
	seen := make(map[string]bool)

	for _, r := range facet.Ranges {
		if r.Min == nil || r.Max == nil {
			continue
		}
		min, max := *r.Min, *r.Max
		if min == max {
			continue
		}
		if min > max {
			min, max = max, min
		}

		key := fmt.Sprintf("%v-%v", min, max)
		if seen[key] {
			continue
		}
		seen[key] = true
		buckets = append(buckets, bucket{min: min, max: max, count: r.Count})
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].min < buckets[j].min })

	if len(buckets) > limit {
		buckets = buckets[:limit]
	}

	options := make([]domain.FacetOption, 0, len(buckets))
	for i, b := range buckets {
		label := FormatSAR(b.min) + " - " + FormatSAR(b.max)
		title := label
		if b.count != nil {
			title = fmt.Sprintf("%s (%d)", label, *b.count)
		}

		options = append(options, domain.FacetOption{
			ID:          fmt.Sprintf("prices_%d", i+1),
			Title:       Truncate(title, MaxOptionTitleLen),
			Description: "Tap to set budget range",
			Value:       fmt.Sprintf("%v-%v", b.min, b.max),
			Count:       b.count,
		})
	}

	return options
}

// ExtractOptions turns canonical facet counts into a presentable,
// bounded option list. Price ranges are deduplicated by endpoints and
// sorted ascending; other facets sort by count descending with
// alphabetical tie-break. Titles are truncated to the transport's
// display width, with counts appended parenthetically.
func ExtractOptions(counts *domain.FacetCounts, key domain.FacetKey, limit int) []domain.FacetOption {
	if counts == nil || key == "" {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	if key == domain.FacetPrices {
		return priceOptions(counts.Prices, limit)
	}

	entries := counts.Get(key)
	if len(entries) == 0 {
		return nil
	}

	type labeled struct {
		domain.ValueCount
		label string
	}

	items := make([]labeled, 0, len(entries))
	for _, entry := range entries {
		if entry.Value == "" {
			continue
		}
		items = append(items, labeled{ValueCount: entry, label: Humanize(entry.Value)})
	}

	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := -1, -1
		if items[i].Count != nil {
			ci = *items[i].Count
		}
		if items[j].Count != nil {
			cj = *items[j].Count
		}
		if ci == cj {
			return items[i].label < items[j].label
		}
		return ci > cj
	})

	if len(items) > limit {
		items = items[:limit]
	}

	options := make([]domain.FacetOption, 0, len(items))
	for i, item := range items {
		title := item.label
		if item.Count != nil {
			title = fmt.Sprintf("%s (%d)", item.label, *item.Count)
		}

		description := ""
		if item.Value != item.label {
			description = Truncate(item.Value, 60)
		}

		options = append(options, domain.FacetOption{
			ID:          fmt.Sprintf("%s_%d", key, i+1),
			Title:       Truncate(TitleCase(title), MaxOptionTitleLen),
			Description: description,
			Value:       item.Value,
			Count:       item.Count,
		})
	}

	return options
}
