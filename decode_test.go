package papergen

import (
	"strings"
	"testing"
)

const sampleCandidate = `{
  "question_text_en": "What is the eutectoid temperature in the Fe-C system?",
  "option_a_en": "1147 C",
  "option_b_en": "912 C",
  "option_c_en": "727 C",
  "option_d_en": "600 C",
  "correct_answer": "C",
  "explanation": "Austenite transforms to pearlite at 727 C, the eutectoid temperature of the iron-carbon system.",
  "references": ["Rhines, Phase Diagrams in Metallurgy, Chapter 4"]
}`

func TestDecodeCandidatesPlainArray(t *testing.T) {
	cands, err := DecodeCandidates("[" + sampleCandidate + "]")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
	if cands[0].CorrectAnswer != "C" {
		t.Errorf("correct_answer = %q, want C", cands[0].CorrectAnswer)
	}
}

func TestDecodeCandidatesEmbeddedInProse(t *testing.T) {
	raw := "Sure! Here are the questions you asked for:\n\n```json\n[" +
		sampleCandidate + "]\n```\n\nLet me know if you need more."
	cands, err := DecodeCandidates(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
}

func TestDecodeCandidatesWrapsLoneObject(t *testing.T) {
	cands, err := DecodeCandidates("Here is one question: " + sampleCandidate)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
}

func TestDecodeCandidatesCleansTrailingCommas(t *testing.T) {
	raw := `[{
		"question_text_en": "Q?",
		"option_a_en": "a",
		"option_b_en": "b",
		"option_c_en": "c",
		"option_d_en": "d",
		"correct_answer": "A",
		"explanation": "Because a is the answer for well-documented reasons.",
		"references": ["ref",],
	}]`
	cands, err := DecodeCandidates(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
}

func TestDecodeCandidatesReferencesAsString(t *testing.T) {
	raw := strings.Replace(sampleCandidate,
		`["Rhines, Phase Diagrams in Metallurgy, Chapter 4"]`,
		`"Rhines, Phase Diagrams in Metallurgy, Chapter 4"`, 1)
	cands, err := DecodeCandidates("[" + raw + "]")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands[0].References) != 1 {
		t.Errorf("references = %v, want single-element list", cands[0].References)
	}
}

func TestDecodeCandidatesNoJSON(t *testing.T) {
	if _, err := DecodeCandidates("I am unable to generate questions right now."); err == nil {
		t.Error("prose-only response decoded without error")
	}
}

func TestDecodeCandidatesEmptyArray(t *testing.T) {
	if _, err := DecodeCandidates("[]"); err == nil {
		t.Error("empty candidate list decoded without error")
	}
}

func TestCandidateToQuestion(t *testing.T) {
	cands, err := DecodeCandidates("[" + sampleCandidate + "]")
	if err != nil {
		t.Fatal(err)
	}

	cell := Cell{
		Section: "Main",
		Topic:   TopicRef{MainTopic: "Material Science", Subtopic: "Phase Diagrams"},
		Tier:    Hard,
		Target:  1,
	}
	q := cands[0].ToQuestion(cell)

	if q.ID == "" {
		t.Error("question ID not assigned")
	}
	if q.Section != "Main" || q.MainTopic != "Material Science" || q.Difficulty != Hard {
		t.Errorf("provenance not stamped: %+v", q)
	}
	if q.CorrectAnswer != 2 {
		t.Errorf("correct answer index = %d, want 2 (letter C)", q.CorrectAnswer)
	}
	if len(q.Options) != 4 {
		t.Errorf("got %d options, want 4", len(q.Options))
	}
}

func TestAnswerIndexVariants(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"A", 0},
		{"b", 1},
		{" C ", 2},
		{"Option D", 3},
		{"E", -1},
		{"", -1},
	}
	for _, tt := range tests {
		if got := answerIndex(tt.in); got != tt.want {
			t.Errorf("answerIndex(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCandidateVisualProvenance(t *testing.T) {
	cands, err := DecodeCandidates("[" + sampleCandidate + "]")
	if err != nil {
		t.Fatal(err)
	}
	cell := Cell{
		Section: "Main",
		Topic: TopicRef{
			MainTopic: "Mechanics",
			Visual:    &VisualContext{ID: "diagram_p2_img1", Description: "Free body diagram"},
		},
		Tier: Medium,
	}
	q := cands[0].ToQuestion(cell)
	if q.ImageRef != "diagram_p2_img1" || q.ImageDesc != "Free body diagram" {
		t.Errorf("visual provenance not carried: ref=%q desc=%q", q.ImageRef, q.ImageDesc)
	}
}
