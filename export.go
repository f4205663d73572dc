package papergen

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// csvHeaders is the delivery template's exact column set. The Hindi columns
// are part of the template but filled by a downstream translation step, so
// they export empty here.
var csvHeaders = []string{
	"Test Section",
	"Main Topic",
	"Sub-topic",
	"Difficulty Level",
	"Translation for options required?",
	"Question ID",
	"Question- English",
	"Question- Hindi",
	"Option A- English",
	"Option A- Hindi",
	"Option B- English",
	"Option B- Hindi",
	"Option C- English",
	"Option C- Hindi",
	"Option D- English",
	"Option D- Hindi",
	"Correct Answer",
	"Solution/Workout/Explanation",
	"Reference(s)",
}

// WriteCSV serializes a paper's questions in the delivery template layout.
func WriteCSV(paper *Paper, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, q := range paper.Questions {
		var refs strings.Builder
		for i, ref := range q.References {
			if i > 0 {
				refs.WriteString("\n")
			}
			refs.WriteString(fmt.Sprintf("%d. %s", i+1, ref))
		}

		option := func(i int) string {
			if i < len(q.Options) {
				return q.Options[i]
			}
			return ""
		}

		row := []string{
			q.Section,
			q.MainTopic,
			q.Subtopic,
			q.Difficulty.String(),
			"",
			q.ID,
			q.Text,
			"",
			option(0), "",
			option(1), "",
			option(2), "",
			option(3), "",
			"Option " + q.AnswerLetter(),
			q.Explanation,
			refs.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
