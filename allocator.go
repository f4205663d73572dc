package papergen

import (
	"fmt"
	"math"
	"sort"
)

// fractionEpsilon is the tolerance when deciding whether a difficulty
// distribution is fractional (values summing to 1).
const fractionEpsilon = 1e-6

// Allocate resolves a PaperConfig into the concrete grid of generation cells.
// Each section's difficulty distribution is resolved to absolute per-tier
// counts, and each tier's count is split across the section's topics, both by
// the largest-remainder method so integer totals are conserved exactly.
//
// A failing section contributes no cells and is reported as an
// AllocationError; the remaining sections still allocate. Cells with a zero
// target are omitted. Cells are emitted in section, topic, tier order.
func Allocate(config PaperConfig) ([]Cell, []AllocationError) {
	var cells []Cell
	var errs []AllocationError

	for si, section := range config.Sections {
		tierCounts, err := resolveTiers(section)
		if err != nil {
			errs = append(errs, AllocationError{Section: section.Name, Reason: err.Error()})
			continue
		}

		// grid[topic][tier]
		grid := make([][]int, len(section.Topics))
		for ti := range grid {
			grid[ti] = make([]int, len(Tiers))
		}
		for _, tier := range Tiers {
			counts := splitAcrossTopics(tierCounts[tier], len(section.Topics))
			for ti, n := range counts {
				grid[ti][int(tier)] = n
			}
		}

		for ti := range section.Topics {
			for _, tier := range Tiers {
				target := grid[ti][int(tier)]
				if target == 0 {
					continue
				}
				cells = append(cells, Cell{
					SectionIndex: si,
					TopicIndex:   ti,
					Section:      section.Name,
					Topic:        section.Topics[ti],
					Tier:         tier,
					Target:       target,
				})
			}
		}
	}

	return cells, errs
}

// resolveTiers turns a section's difficulty distribution into absolute
// per-tier counts summing exactly to QuestionCount.
func resolveTiers(section SectionSpec) (map[DifficultyTier]int, error) {
	if section.QuestionCount <= 0 {
		return nil, fmt.Errorf("question_count must be positive, got %d", section.QuestionCount)
	}
	if len(section.Topics) == 0 {
		return nil, fmt.Errorf("no topics declared for a quota of %d questions", section.QuestionCount)
	}
	if len(section.Distribution) == 0 {
		return nil, fmt.Errorf("empty difficulty distribution")
	}

	var sum float64
	integral := true
	for tier, v := range section.Distribution {
		if v < 0 {
			return nil, fmt.Errorf("negative share for tier %s", tier)
		}
		if v != math.Trunc(v) {
			integral = false
		}
		sum += v
	}

	counts := make(map[DifficultyTier]int, len(Tiers))
	switch {
	case math.Abs(sum-1) <= fractionEpsilon:
		// Fractional mode. (A distribution of whole counts summing to 1 for a
		// 1-question section resolves identically either way.)
		fractions := make([]float64, len(Tiers))
		for _, tier := range Tiers {
			fractions[int(tier)] = section.Distribution[tier]
		}
		resolved := largestRemainder(section.QuestionCount, fractions)
		for _, tier := range Tiers {
			counts[tier] = resolved[int(tier)]
		}
	case integral && int(sum) == section.QuestionCount:
		for _, tier := range Tiers {
			counts[tier] = int(section.Distribution[tier])
		}
	case integral:
		return nil, fmt.Errorf("difficulty counts sum to %d, want %d", int(sum), section.QuestionCount)
	default:
		return nil, fmt.Errorf("difficulty fractions sum to %g, want 1", sum)
	}

	return counts, nil
}

// largestRemainder apportions total across the given fractional weights:
// floor every share, then hand out the leftover one by one in order of
// descending fractional part, ties broken by ascending index (tier order
// Easy, Medium, Hard). The results always sum to total.
func largestRemainder(total int, fractions []float64) []int {
	counts := make([]int, len(fractions))
	type slot struct {
		index int
		frac  float64
	}
	slots := make([]slot, 0, len(fractions))

	assigned := 0
	for i, f := range fractions {
		share := f * float64(total)
		floor := int(math.Floor(share + fractionEpsilon))
		counts[i] = floor
		assigned += floor
		slots = append(slots, slot{index: i, frac: share - float64(floor)})
	}

	sort.SliceStable(slots, func(a, b int) bool {
		return slots[a].frac > slots[b].frac
	})

	for i := 0; assigned < total; i = (i + 1) % len(slots) {
		counts[slots[i].index]++
		assigned++
	}
	return counts
}

// splitAcrossTopics spreads count over n topics on an equal base share.
// With equal shares every remainder ties, so the leftover goes to the
// earliest-declared topics, matching largest-remainder with declaration-order
// tie-breaking.
func splitAcrossTopics(count, n int) []int {
	counts := make([]int, n)
	if n == 0 || count == 0 {
		return counts
	}
	base := count / n
	rem := count % n
	for i := range counts {
		counts[i] = base
		if i < rem {
			counts[i]++
		}
	}
	return counts
}
