package papergen

import (
	"testing"
)

func section(name string, count int, dist map[DifficultyTier]float64, topics ...string) SectionSpec {
	refs := make([]TopicRef, len(topics))
	for i, t := range topics {
		refs[i] = TopicRef{MainTopic: t, Subtopic: t + " basics"}
	}
	return SectionSpec{Name: name, QuestionCount: count, Distribution: dist, Topics: refs}
}

func cellSum(cells []Cell) int {
	sum := 0
	for _, c := range cells {
		sum += c.Target
	}
	return sum
}

func TestAllocateConservesQuota(t *testing.T) {
	tests := []struct {
		name   string
		count  int
		dist   map[DifficultyTier]float64
		topics int
	}{
		{"even split", 10, map[DifficultyTier]float64{Easy: 0.6, Medium: 0.3, Hard: 0.1}, 3},
		{"indivisible", 7, map[DifficultyTier]float64{Easy: 0.6, Medium: 0.3, Hard: 0.1}, 3},
		{"single question", 1, map[DifficultyTier]float64{Easy: 0.5, Medium: 0.3, Hard: 0.2}, 2},
		{"many topics", 11, map[DifficultyTier]float64{Easy: 0.34, Medium: 0.33, Hard: 0.33}, 5},
		{"absolute counts", 20, map[DifficultyTier]float64{Easy: 12, Medium: 5, Hard: 3}, 4},
		{"one tier only", 9, map[DifficultyTier]float64{Easy: 1.0}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topics := make([]string, tt.topics)
			for i := range topics {
				topics[i] = string(rune('A' + i))
			}
			config := PaperConfig{
				Name:     "test",
				Sections: []SectionSpec{section("S", tt.count, tt.dist, topics...)},
			}

			cells, errs := Allocate(config)
			if len(errs) != 0 {
				t.Fatalf("unexpected allocation errors: %v", errs)
			}
			if got := cellSum(cells); got != tt.count {
				t.Errorf("cell targets sum to %d, want %d", got, tt.count)
			}
		})
	}
}

func TestAllocateExampleScenario(t *testing.T) {
	// 10 questions at 60/30/10 over 3 topics: tiers resolve to 6/3/1, and
	// Easy's 6 splits 2/2/2.
	config := PaperConfig{
		Name: "test",
		Sections: []SectionSpec{
			section("Main", 10, map[DifficultyTier]float64{Easy: 0.6, Medium: 0.3, Hard: 0.1}, "T1", "T2", "T3"),
		},
	}

	cells, errs := Allocate(config)
	if len(errs) != 0 {
		t.Fatalf("unexpected allocation errors: %v", errs)
	}

	tierTotals := map[DifficultyTier]int{}
	easyByTopic := map[string]int{}
	for _, c := range cells {
		tierTotals[c.Tier] += c.Target
		if c.Tier == Easy {
			easyByTopic[c.Topic.MainTopic] += c.Target
		}
	}

	if tierTotals[Easy] != 6 || tierTotals[Medium] != 3 || tierTotals[Hard] != 1 {
		t.Errorf("tier totals = %v, want Easy:6 Medium:3 Hard:1", tierTotals)
	}
	for _, topic := range []string{"T1", "T2", "T3"} {
		if easyByTopic[topic] != 2 {
			t.Errorf("Easy count for %s = %d, want 2", topic, easyByTopic[topic])
		}
	}
}

func TestAllocateSevenQuestionsLargestRemainder(t *testing.T) {
	// 7 at 60/30/10: shares 4.2/2.1/0.7. Floors 4/2/0 leave one, which goes
	// to Hard (largest fractional part).
	counts, err := resolveTiers(section("S", 7, map[DifficultyTier]float64{Easy: 0.6, Medium: 0.3, Hard: 0.1}, "T"))
	if err != nil {
		t.Fatal(err)
	}
	if counts[Easy] != 4 || counts[Medium] != 2 || counts[Hard] != 1 {
		t.Errorf("counts = %v, want Easy:4 Medium:2 Hard:1", counts)
	}
}

func TestAllocateTieBreakTierOrder(t *testing.T) {
	// 2 at 50/30/20: shares 1.0/0.6/0.4. Floors 1/0/0 leave one, Medium's
	// fractional part wins over Hard's.
	counts, err := resolveTiers(section("S", 2, map[DifficultyTier]float64{Easy: 0.5, Medium: 0.3, Hard: 0.2}, "T"))
	if err != nil {
		t.Fatal(err)
	}
	if counts[Easy] != 1 || counts[Medium] != 1 || counts[Hard] != 0 {
		t.Errorf("counts = %v, want Easy:1 Medium:1 Hard:0", counts)
	}
}

func TestAllocateTopicSplitDeclarationOrder(t *testing.T) {
	// 5 over 3 topics: base 1 each, remainder 2 goes to the first two
	// declared topics.
	got := splitAcrossTopics(5, 3)
	want := []int{2, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitAcrossTopics(5, 3) = %v, want %v", got, want)
		}
	}
}

func TestAllocateOmitsZeroCells(t *testing.T) {
	config := PaperConfig{
		Name: "test",
		Sections: []SectionSpec{
			section("S", 2, map[DifficultyTier]float64{Easy: 1.0}, "T1", "T2", "T3"),
		},
	}
	cells, errs := Allocate(config)
	if len(errs) != 0 {
		t.Fatalf("unexpected allocation errors: %v", errs)
	}
	for _, c := range cells {
		if c.Target == 0 {
			t.Errorf("zero-target cell emitted: %s", c)
		}
	}
	if len(cells) != 2 {
		t.Errorf("got %d cells, want 2 (third topic gets nothing)", len(cells))
	}
}

func TestAllocateSectionErrors(t *testing.T) {
	tests := []struct {
		name    string
		section SectionSpec
	}{
		{"zero count", section("S", 0, map[DifficultyTier]float64{Easy: 1.0}, "T")},
		{"negative count", section("S", -3, map[DifficultyTier]float64{Easy: 1.0}, "T")},
		{"no topics", section("S", 5, map[DifficultyTier]float64{Easy: 1.0})},
		{"bad fractions", section("S", 5, map[DifficultyTier]float64{Easy: 0.5, Medium: 0.3}, "T")},
		{"bad counts", section("S", 5, map[DifficultyTier]float64{Easy: 2, Medium: 2}, "T")},
		{"empty distribution", section("S", 5, nil, "T")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := PaperConfig{Name: "test", Sections: []SectionSpec{tt.section}}
			cells, errs := Allocate(config)
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1", len(errs))
			}
			if errs[0].Section != "S" {
				t.Errorf("error tagged %q, want %q", errs[0].Section, "S")
			}
			if len(cells) != 0 {
				t.Errorf("failing section still produced %d cells", len(cells))
			}
		})
	}
}

func TestAllocateFailingSectionDoesNotBlockOthers(t *testing.T) {
	config := PaperConfig{
		Name: "test",
		Sections: []SectionSpec{
			section("Broken", 5, map[DifficultyTier]float64{Easy: 0.5}, "T"),
			section("Fine", 4, map[DifficultyTier]float64{Easy: 0.5, Medium: 0.5}, "T"),
		},
	}
	cells, errs := Allocate(config)
	if len(errs) != 1 || errs[0].Section != "Broken" {
		t.Fatalf("errors = %v, want one for Broken", errs)
	}
	if got := cellSum(cells); got != 4 {
		t.Errorf("surviving cells sum to %d, want 4", got)
	}
	for _, c := range cells {
		if c.Section != "Fine" {
			t.Errorf("unexpected cell from section %q", c.Section)
		}
	}
}
