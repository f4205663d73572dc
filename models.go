package papergen

import (
	"fmt"
	"strings"
	"time"
)

// DifficultyTier is the cognitive-load tier of a question, ordered Easy < Medium < Hard.
type DifficultyTier int

const (
	Easy DifficultyTier = iota
	Medium
	Hard
)

// Tiers lists all difficulty tiers in ascending order. Quota resolution and
// output ordering both follow this order.
var Tiers = []DifficultyTier{Easy, Medium, Hard}

func (d DifficultyTier) String() string {
	switch d {
	case Easy:
		return "Easy"
	case Medium:
		return "Medium"
	case Hard:
		return "Hard"
	}
	return fmt.Sprintf("DifficultyTier(%d)", int(d))
}

// ParseDifficulty converts a tier name to a DifficultyTier, case-insensitively.
func ParseDifficulty(s string) (DifficultyTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy, nil
	case "medium":
		return Medium, nil
	case "hard":
		return Hard, nil
	}
	return Easy, fmt.Errorf("unknown difficulty tier: %q", s)
}

func (d DifficultyTier) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DifficultyTier) UnmarshalText(text []byte) error {
	tier, err := ParseDifficulty(string(text))
	if err != nil {
		return err
	}
	*d = tier
	return nil
}

// VisualContext is a diagram (or formula/graph image) extracted from a source
// document, paired with the text surrounding it. Produced by an upstream
// extractor; the engine only ever reads it.
type VisualContext struct {
	ID          string   `json:"id" yaml:"id"`
	Text        string   `json:"text" yaml:"text"`
	Images      [][]byte `json:"-" yaml:"-"`
	ImagePaths  []string `json:"image_paths,omitempty" yaml:"image_paths,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// TopicRef names a (main topic, subtopic) pair within a section. A topic that
// carries visual context is generated through the vision path first.
type TopicRef struct {
	MainTopic string         `json:"main_topic" yaml:"main_topic"`
	Subtopic  string         `json:"subtopic" yaml:"subtopic"`
	Visual    *VisualContext `json:"visual,omitempty" yaml:"visual,omitempty"`
}

func (t TopicRef) String() string {
	if t.Subtopic == "" {
		return t.MainTopic
	}
	return t.MainTopic + " / " + t.Subtopic
}

// SectionSpec declares one section of a paper: how many questions it gets,
// how they split across difficulty tiers, and which topics they draw from.
//
// Distribution values are either fractions summing to 1 (resolved with the
// largest-remainder method) or absolute counts summing to QuestionCount.
type SectionSpec struct {
	Name          string                     `json:"name" yaml:"name"`
	QuestionCount int                        `json:"question_count" yaml:"question_count"`
	Distribution  map[DifficultyTier]float64 `json:"difficulty_distribution" yaml:"difficulty_distribution"`
	Topics        []TopicRef                 `json:"topics" yaml:"topics"`
}

// PaperConfig is the declarative description of a paper. Immutable once
// assembly starts.
type PaperConfig struct {
	ID             string        `json:"id" yaml:"id"`
	Name           string        `json:"name" yaml:"name"`
	Subject        string        `json:"subject" yaml:"subject"`
	TotalQuestions int           `json:"total_questions,omitempty" yaml:"total_questions,omitempty"`
	Sections       []SectionSpec `json:"sections" yaml:"sections"`
}

// Cell is one (section, topic, difficulty) unit of generation work. Cells are
// derived fresh from a PaperConfig for each run and never persisted.
type Cell struct {
	SectionIndex int            `json:"section_index"`
	TopicIndex   int            `json:"topic_index"`
	Section      string         `json:"section"`
	Topic        TopicRef       `json:"topic"`
	Tier         DifficultyTier `json:"tier"`
	Target       int            `json:"target"`
}

func (c Cell) String() string {
	return fmt.Sprintf("%s / %s / %s (target %d)", c.Section, c.Topic, c.Tier, c.Target)
}

// CellState is the terminal state a cell reaches after generation.
type CellState string

const (
	CellFilled    CellState = "filled"    // target reached
	CellPartial   CellState = "partial"   // budget exhausted with some questions accepted
	CellExhausted CellState = "exhausted" // budget exhausted with nothing accepted
)

// GenerationAttemptRecord tracks per-cell attempt accounting for one run.
// One unit is consumed per failed generation call and per candidate processed.
type GenerationAttemptRecord struct {
	Attempts    int    `json:"attempts"`
	Accepted    int    `json:"accepted"`
	Rejected    int    `json:"rejected"`
	Duplicates  int    `json:"duplicates"`
	Malformed   int    `json:"malformed"`
	LastFailure string `json:"last_failure,omitempty"`
}

// CellReport is the per-cell fulfillment record surfaced on the Paper.
type CellReport struct {
	Cell     Cell                    `json:"cell"`
	State    CellState               `json:"state"`
	Record   GenerationAttemptRecord `json:"record"`
	FellBack bool                    `json:"fell_back"` // vision cell permanently switched to text generation
}

// Question is a single accepted MCQ with full provenance. Never mutated after
// acceptance.
type Question struct {
	ID            string         `json:"id"`
	Section       string         `json:"section"`
	MainTopic     string         `json:"main_topic"`
	Subtopic      string         `json:"subtopic"`
	Difficulty    DifficultyTier `json:"difficulty"`
	Text          string         `json:"text"`
	Options       []string       `json:"options"`
	CorrectAnswer int            `json:"correct_answer"` // 0-based index into Options
	Explanation   string         `json:"explanation"`
	References    []string       `json:"references"`
	ImageRef      string         `json:"image_ref,omitempty"`
	ImageDesc     string         `json:"image_desc,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// OptionLetters maps option indexes to the A-D answer keys used in prompts
// and exports.
var OptionLetters = []string{"A", "B", "C", "D"}

// AnswerLetter returns the A-D key of the correct option, or "?" when the
// index is out of range.
func (q *Question) AnswerLetter() string {
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(OptionLetters) {
		return "?"
	}
	return OptionLetters[q.CorrectAnswer]
}

// AllocationError reports a section whose quota could not be resolved. The
// section contributes no cells; the rest of the paper proceeds.
type AllocationError struct {
	Section string `json:"section"`
	Reason  string `json:"reason"`
}

func (e AllocationError) Error() string {
	return fmt.Sprintf("section %q: %s", e.Section, e.Reason)
}

// Paper is the finished artifact of one assembly run: the accepted questions
// in deterministic order plus the fulfillment report. Immutable once returned.
type Paper struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Subject        string            `json:"subject"`
	Config         PaperConfig       `json:"config"`
	Questions      []Question        `json:"questions"`
	Fulfillment    []CellReport      `json:"fulfillment,omitempty"` // cells that did not fill
	AllocationErrs []AllocationError `json:"allocation_errors,omitempty"`
	TotalRequested int               `json:"total_requested"`
	TotalAccepted  int               `json:"total_accepted"`
	Incomplete     bool              `json:"incomplete"`
	CreatedAt      time.Time         `json:"created_at"`
}
