package papergen

import (
	"fmt"
	"strings"
)

// Validator checks a candidate question's structural invariants. All checks
// run and report together rather than short-circuiting, so the run log shows
// everything wrong with a rejected candidate at once.
type Validator struct {
	cfg GenerationConfig
}

// NewValidator creates a validator with the given tuning.
func NewValidator(cfg GenerationConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate returns the list of problems with a candidate; empty means valid.
// requireVisualCue applies only to diagram-derived cells: the question text
// must reference its figure so it cannot stand alone.
func (v *Validator) Validate(q *Question, requireVisualCue bool) []string {
	var errs []string

	if strings.TrimSpace(q.Text) == "" {
		errs = append(errs, "question text is empty")
	}

	if len(q.Options) != len(OptionLetters) {
		errs = append(errs, fmt.Sprintf("expected %d options, got %d", len(OptionLetters), len(q.Options)))
	}

	seen := make(map[string]int, len(q.Options))
	for i, opt := range q.Options {
		trimmed := strings.TrimSpace(opt)
		if trimmed == "" {
			errs = append(errs, fmt.Sprintf("option %s is empty", optionLabel(i)))
			continue
		}
		if len(trimmed) < v.cfg.MinOptionLength {
			errs = append(errs, fmt.Sprintf("option %s is too short", optionLabel(i)))
		}
		key := strings.ToLower(trimmed)
		if prev, dup := seen[key]; dup {
			errs = append(errs, fmt.Sprintf("option %s duplicates option %s", optionLabel(i), optionLabel(prev)))
		} else {
			seen[key] = i
		}
	}

	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		errs = append(errs, fmt.Sprintf("correct answer index %d is out of range", q.CorrectAnswer))
	}

	explanation := strings.TrimSpace(q.Explanation)
	if explanation == "" {
		errs = append(errs, "explanation is empty")
	} else if len(explanation) < v.cfg.MinExplanationLength {
		errs = append(errs, fmt.Sprintf("explanation is too short (%d < %d characters)",
			len(explanation), v.cfg.MinExplanationLength))
	}

	if v.cfg.RequireReferences && len(q.References) < v.cfg.MinReferences {
		errs = append(errs, fmt.Sprintf("not enough references (%d < %d)",
			len(q.References), v.cfg.MinReferences))
	}

	if requireVisualCue && !v.hasVisualCue(q.Text) {
		errs = append(errs, "question does not reference the provided diagram")
	}

	return errs
}

func (v *Validator) hasVisualCue(text string) bool {
	lower := strings.ToLower(text)
	for _, cue := range v.cfg.VisualCuePhrases {
		if cue != "" && strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

func optionLabel(i int) string {
	if i < 0 || i >= len(OptionLetters) {
		return fmt.Sprintf("#%d", i+1)
	}
	return OptionLetters[i]
}
