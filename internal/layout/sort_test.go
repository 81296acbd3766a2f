package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"calgrid/internal/model"
)

func keys(occs []model.Occurrence) []string {
	out := make([]string, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.Key())
	}
	return out
}

func TestSortEarliestFirst(t *testing.T) {
	occs := []model.Occurrence{
		occ("late", jan(5, 15, 0), jan(5, 16, 0)),
		model.OccurrenceOf(allDayEvent("holiday", 5, 5)),
		occ("early", jan(5, 8, 0), jan(5, 9, 0)),
		occ("overnight", jan(5, 22, 0), jan(6, 2, 0)),
		occ("early-too", jan(5, 8, 0), jan(5, 8, 30)),
	}

	got := SortEarliestFirst(occs)

	assert.Equal(t, []string{"holiday", "overnight", "early", "early-too", "late"}, keys(got))
	assert.Equal(t, "late", occs[0].Key(), "input must not be reordered")
}

func TestSortLongestFirst_Stable(t *testing.T) {
	occs := []model.Occurrence{
		occ("a", jan(5, 9, 0), jan(5, 10, 0)),
		occ("b", jan(5, 11, 0), jan(5, 14, 0)),
		occ("c", jan(5, 8, 0), jan(5, 9, 0)),
		occ("d", jan(5, 7, 0), jan(5, 8, 0)),
	}

	first := SortLongestFirst(occs)
	second := SortLongestFirst(occs)

	assert.Equal(t, []string{"b", "a", "c", "d"}, keys(first))
	assert.Equal(t, first, second)
}

func TestMonthCellOrder(t *testing.T) {
	occs := []model.Occurrence{
		occ("short", jan(5, 9, 0), jan(5, 10, 0)),
		occ("long", jan(5, 12, 0), jan(5, 15, 0)),
		model.OccurrenceOf(allDayEvent("holiday", 5, 5)),
		occ("short-early", jan(5, 7, 0), jan(5, 8, 0)),
	}

	got := sortedCopy(occs, MonthCellOrder)

	assert.Equal(t, []string{"holiday", "long", "short-early", "short"}, keys(got))
}

func TestLatestEndFirst(t *testing.T) {
	occs := []model.Occurrence{
		model.OccurrenceOf(allDayEvent("short", 5, 6)),
		model.OccurrenceOf(allDayEvent("long", 5, 9)),
	}
	got := sortedCopy(occs, LatestEndFirst)
	assert.Equal(t, []string{"long", "short"}, keys(got))
}
