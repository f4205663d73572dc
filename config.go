package papergen

import (
	"os"
	"strconv"
	"strings"
)

// GenerationConfig tunes validation and retry behavior for one assembly run.
type GenerationConfig struct {
	// Validation.
	MinExplanationLength int
	RequireReferences    bool
	MinReferences        int
	MinOptionLength      int
	// Cue phrases, lowercase. A diagram-derived question must contain at
	// least one of them so the question cannot stand without its figure.
	VisualCuePhrases []string

	// Retry budget: a cell with target n gets n*AttemptsPerQuestion plus
	// AttemptFloor attempts, so a 1-question cell still gets several tries.
	AttemptsPerQuestion int
	AttemptFloor        int

	// Assembly.
	Concurrency int // max cells generating at once
	BatchSize   int // questions requested per generation call
	FewShot     bool
	TextModel   string
	VisionModel string
	Temperature float32
	MaxTokens   int
}

// DefaultGenerationConfig returns the stock tuning. The validation defaults
// mirror the paper template requirements; the budget defaults give every
// cell a handful of retries without letting a bad topic spin forever.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MinExplanationLength: 20,
		RequireReferences:    true,
		MinReferences:        1,
		MinOptionLength:      2,
		VisualCuePhrases: []string{
			"diagram", "figure", "graph", "image", "shown", "chart", "plot",
		},
		AttemptsPerQuestion: 3,
		AttemptFloor:        2,
		Concurrency:         4,
		BatchSize:           5,
		FewShot:             true,
		TextModel:           "gpt-4o",
		VisionModel:         "gpt-4o",
		Temperature:         0.7,
		MaxTokens:           2048,
	}
}

// ConfigFromEnv overlays environment overrides on the defaults. The cmds load
// a .env file first, so deployments can tune the engine without flags.
func ConfigFromEnv() GenerationConfig {
	cfg := DefaultGenerationConfig()
	if v, ok := envInt("PAPERGEN_MIN_EXPLANATION_LENGTH"); ok {
		cfg.MinExplanationLength = v
	}
	if v, ok := envBool("PAPERGEN_REQUIRE_REFERENCES"); ok {
		cfg.RequireReferences = v
	}
	if v, ok := envInt("PAPERGEN_MIN_REFERENCES"); ok {
		cfg.MinReferences = v
	}
	if v, ok := envInt("PAPERGEN_ATTEMPTS_PER_QUESTION"); ok {
		cfg.AttemptsPerQuestion = v
	}
	if v, ok := envInt("PAPERGEN_ATTEMPT_FLOOR"); ok {
		cfg.AttemptFloor = v
	}
	if v, ok := envInt("PAPERGEN_CONCURRENCY"); ok {
		cfg.Concurrency = v
	}
	if v, ok := envInt("PAPERGEN_BATCH_SIZE"); ok {
		cfg.BatchSize = v
	}
	if v := os.Getenv("PAPERGEN_TEXT_MODEL"); v != "" {
		cfg.TextModel = v
	}
	if v := os.Getenv("PAPERGEN_VISION_MODEL"); v != "" {
		cfg.VisionModel = v
	}
	if v := os.Getenv("PAPERGEN_VISUAL_CUES"); v != "" {
		cues := strings.Split(v, ",")
		for i := range cues {
			cues[i] = strings.ToLower(strings.TrimSpace(cues[i]))
		}
		cfg.VisualCuePhrases = cues
	}
	return cfg
}

// RetryBudget bounds the attempts a single cell may consume.
type RetryBudget struct {
	MaxAttempts int
}

// BudgetFor computes the retry budget for a cell under this config.
func (c GenerationConfig) BudgetFor(cell Cell) RetryBudget {
	return RetryBudget{MaxAttempts: cell.Target*c.AttemptsPerQuestion + c.AttemptFloor}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
