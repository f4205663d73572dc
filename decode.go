package papergen

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Candidate is the structured shape the engine expects to find embedded in a
// raw generation response. Field names follow the paper template the prompts
// ask for.
type Candidate struct {
	Text          string        `json:"question_text_en"`
	OptionA       string        `json:"option_a_en"`
	OptionB       string        `json:"option_b_en"`
	OptionC       string        `json:"option_c_en"`
	OptionD       string        `json:"option_d_en"`
	CorrectAnswer string        `json:"correct_answer"`
	Explanation   string        `json:"explanation"`
	References    referenceList `json:"references"`
}

// referenceList tolerates models that return a single reference string where
// a list was asked for.
type referenceList []string

func (r *referenceList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*r = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*r = []string{single}
		return nil
	}
	// Unusable references are dropped, not fatal; the validator decides
	// whether the question survives without them.
	*r = nil
	return nil
}

var (
	jsonArrayRe   = regexp.MustCompile(`(?s)\[.*\]`)
	jsonObjectRe  = regexp.MustCompile(`(?s)\{.*\}`)
	trailingComma = regexp.MustCompile(`,(\s*[\]}])`)
)

// DecodeCandidates extracts structured candidates from a raw model response.
// Models wrap their JSON in prose, code fences, or markdown more often than
// not, so the first JSON array (or lone object) found anywhere in the text is
// taken; trailing commas are scrubbed before a second decode attempt.
func DecodeCandidates(raw string) ([]Candidate, error) {
	// A lone object's inner reference list also matches the array pattern,
	// so when the array match does not decode, retry with the object match
	// wrapped in brackets.
	attempts := make([]string, 0, 2)
	if m := jsonArrayRe.FindString(raw); m != "" {
		attempts = append(attempts, m)
	}
	if m := jsonObjectRe.FindString(raw); m != "" {
		attempts = append(attempts, "["+m+"]")
	}
	if len(attempts) == 0 {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var firstErr error
	for _, jsonStr := range attempts {
		var candidates []Candidate
		err := json.Unmarshal([]byte(jsonStr), &candidates)
		if err != nil {
			cleaned := trailingComma.ReplaceAllString(jsonStr, "$1")
			err = json.Unmarshal([]byte(cleaned), &candidates)
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(candidates) == 0 {
			return nil, fmt.Errorf("response contained an empty candidate list")
		}
		return candidates, nil
	}
	return nil, fmt.Errorf("invalid JSON in response: %w", firstErr)
}

// ToQuestion builds a provenance-stamped Question from a candidate. The
// answer key comes back as a letter A-D and is mapped to an option index; an
// unknown letter yields index -1, which the validator rejects.
func (c Candidate) ToQuestion(cell Cell) *Question {
	q := &Question{
		ID:         uuid.NewString(),
		Section:    cell.Section,
		MainTopic:  cell.Topic.MainTopic,
		Subtopic:   cell.Topic.Subtopic,
		Difficulty: cell.Tier,
		Text:       strings.TrimSpace(c.Text),
		Options: []string{
			strings.TrimSpace(c.OptionA),
			strings.TrimSpace(c.OptionB),
			strings.TrimSpace(c.OptionC),
			strings.TrimSpace(c.OptionD),
		},
		CorrectAnswer: answerIndex(c.CorrectAnswer),
		Explanation:   strings.TrimSpace(c.Explanation),
		CreatedAt:     time.Now(),
	}
	for _, ref := range c.References {
		if ref = strings.TrimSpace(ref); ref != "" {
			q.References = append(q.References, ref)
		}
	}
	if cell.Topic.Visual != nil {
		q.ImageRef = cell.Topic.Visual.ID
		q.ImageDesc = cell.Topic.Visual.Description
	}
	return q
}

func answerIndex(letter string) int {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	// Tolerate "Option B" style answers.
	letter = strings.TrimSpace(strings.TrimPrefix(letter, "OPTION"))
	for i, l := range OptionLetters {
		if letter == l {
			return i
		}
	}
	return -1
}
