package facet

import (
	"testing"

	"github.com/construex/whatsapp-designer/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRecomputeIdempotent(t *testing.T) {
	state := NewDesignState()
	ApplySelection(&state, Selection{Key: domain.FacetRooms, Values: []string{"BEDROOM"}})

	first := append([]string(nil), state.CurrentFacets...)
	Recompute(&state)
	Recompute(&state)

	assert.Equal(t, first, state.CurrentFacets)
}

func TestApplySelection_RoomSwitchClearsDynamics(t *testing.T) {
	state := NewDesignState()
	ApplySelection(&state, Selection{Key: domain.FacetRooms, Values: []string{"LIVING_ROOM"}})
	ApplySelection(&state, Selection{Key: domain.FacetLivingRoomLayout, Values: []string{"OPEN"}})

	assert.Equal(t, []string{"OPEN"}, state.Filters.Dynamic[domain.FacetLivingRoomLayout])

	ApplySelection(&state, Selection{Key: domain.FacetRooms, Values: []string{"BEDROOM"}})

	_, hasLayout := state.Filters.Dynamic[domain.FacetLivingRoomLayout]
	assert.False(t, hasLayout, "living room layout should be cleared")

	bedType, ok := state.Filters.Dynamic[domain.FacetBedroomType]
	assert.True(t, ok)
	assert.Empty(t, bedType)

	bedSize, ok := state.Filters.Dynamic[domain.FacetBedroomBedSize]
	assert.True(t, ok)
	assert.Empty(t, bedSize)
}

func TestSequenceFor(t *testing.T) {
	state := NewDesignState()
	assert.Equal(t, DefaultSequence, SequenceFor(state))

	ApplySelection(&state, Selection{Key: domain.FacetRooms, Values: []string{"OUTDOOR"}})
	seq := SequenceFor(state)
	assert.Equal(t, domain.FacetPrices, seq[len(seq)-1])
	assert.Contains(t, seq, domain.FacetOutdoorSpace)
	assert.Contains(t, seq, domain.FacetOutdoorFeature)
	assert.Len(t, seq, 7)
}

func TestNeedsSelection_Prices(t *testing.T) {
	filters := domain.Filters{}
	assert.True(t, NeedsSelection(filters, domain.FacetPrices))

	filters.Prices = domain.PriceSelection{Skipped: true}
	assert.False(t, NeedsSelection(filters, domain.FacetPrices))

	min := 100.0
	filters.Prices = domain.PriceSelection{Min: &min}
	assert.False(t, NeedsSelection(filters, domain.FacetPrices))
}

func TestNextUnanswered(t *testing.T) {
	state := NewDesignState()

	assert.Equal(t, domain.FacetRooms, NextUnanswered(state, ""))

	ApplySelection(&state, Selection{Key: domain.FacetRooms, Values: []string{"LIVING_ROOM"}})
	assert.Equal(t, domain.FacetColors, NextUnanswered(state, domain.FacetRooms))

	// unknown previous key restarts the scan
	assert.Equal(t, domain.FacetColors, NextUnanswered(state, domain.FacetKey("bogus")))
}

// Walking the sequence with a visited guard must terminate even when
// every facet stays unanswered forever.
func TestFacetWalkTerminates(t *testing.T) {
	state := NewDesignState()
	ApplySelection(&state, Selection{Key: domain.FacetRooms, Values: []string{"DINING_ROOM"}})
	state.Filters.Rooms = nil // force rooms back to unanswered without clearing dynamics

	visited := make(map[domain.FacetKey]bool)
	key := NextUnanswered(state, "")
	steps := 0
	for key != "" {
		if visited[key] {
			break
		}
		visited[key] = true
		key = NextUnanswered(state, key)
		steps++
		if steps > 20 {
			t.Fatal("facet walk did not terminate")
		}
	}

	seq := SequenceFor(state)
	assert.LessOrEqual(t, steps, len(seq))
}

func TestHumanizeAndTitleCase(t *testing.T) {
	assert.Equal(t, "Living Room Layout", Humanize("livingRoomLayout"))
	assert.Equal(t, "OPEN PLAN", Humanize("OPEN_PLAN"))
	assert.Equal(t, "Living Room", TitleCase("LIVING_ROOM"))
	assert.Equal(t, "Bed Size", TitleCase("bedSize"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 24))
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaa...", Truncate("aaaaaaaaaaaaaaaaaaaaaaaaaaaa", 24))
	assert.Len(t, Truncate("aaaaaaaaaaaaaaaaaaaaaaaaaaaa", 24), 24)
}
