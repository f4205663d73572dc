package papergen

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are an expert question writer for high-stakes technical examinations. " +
	"Generate multiple-choice questions that are technically accurate, clearly worded, " +
	"appropriately challenging for the requested difficulty, and backed by credible references. " +
	"Every question has exactly 4 options with exactly one correct answer. " +
	"Respond with a JSON array only."

const visionSystemPrompt = "You are an expert question writer for technical examinations. " +
	"You are given one or more diagrams, graphs, or formula images with surrounding text. " +
	"Generate multiple-choice questions that REQUIRE interpreting the provided image to answer: " +
	"they must not be answerable from text alone, and the question text must refer to the diagram. " +
	"Every question has exactly 4 options with exactly one correct answer. " +
	"Respond with a JSON array only."

// buildGenerationPrompt constructs the text-mode prompt for one cell.
func buildGenerationPrompt(subject string, cell Cell, n int, cfg GenerationConfig) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Generate %d multiple choice question(s).\n\n", n))
	sb.WriteString(fmt.Sprintf("Subject: %s\n", subject))
	sb.WriteString(fmt.Sprintf("Main topic: %s\n", cell.Topic.MainTopic))
	if cell.Topic.Subtopic != "" {
		sb.WriteString(fmt.Sprintf("Subtopic: %s\n", cell.Topic.Subtopic))
	}
	sb.WriteString(fmt.Sprintf("Difficulty: %s\n\n", cell.Tier))

	sb.WriteString(difficultyDefinition(cell.Tier))
	sb.WriteString("\n")

	// A diagram cell that fell back to text generation still has to produce
	// questions anchored to its figure; the extracted context text stands in
	// for the image itself.
	if v := cell.Topic.Visual; v != nil {
		if v.Text != "" {
			sb.WriteString("Source material (describes a diagram the student will see):\n")
			sb.WriteString(v.Text)
			sb.WriteString("\n\n")
		}
		sb.WriteString("Each question must explicitly reference the accompanying diagram ")
		sb.WriteString("(e.g. \"In the diagram shown...\").\n\n")
	}

	writeRequirements(&sb, cfg)
	if cfg.FewShot {
		sb.WriteString("\nExample of the expected shape:\n")
		sb.WriteString(fewShotExample)
		sb.WriteString("\n")
	}
	writeOutputContract(&sb)

	return sb.String()
}

// buildVisionPrompt constructs the vision-mode prompt for a diagram cell.
func buildVisionPrompt(subject string, cell Cell, n int, cfg GenerationConfig) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Generate %d diagram-based multiple choice question(s).\n\n", n))
	sb.WriteString(fmt.Sprintf("Subject: %s\n", subject))
	sb.WriteString(fmt.Sprintf("Main topic: %s\n", cell.Topic.MainTopic))
	if cell.Topic.Subtopic != "" {
		sb.WriteString(fmt.Sprintf("Subtopic: %s\n", cell.Topic.Subtopic))
	}
	sb.WriteString(fmt.Sprintf("Difficulty: %s\n\n", cell.Tier))

	if v := cell.Topic.Visual; v != nil && v.Text != "" {
		sb.WriteString("Context accompanying the image(s):\n")
		sb.WriteString(v.Text)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Each question must explicitly reference the provided image ")
	sb.WriteString("(e.g. \"In the diagram shown...\", \"From the graph...\") ")
	sb.WriteString("and must not be answerable without it.\n\n")

	writeRequirements(&sb, cfg)
	writeOutputContract(&sb)

	return sb.String()
}

func writeRequirements(sb *strings.Builder, cfg GenerationConfig) {
	sb.WriteString("Requirements:\n")
	sb.WriteString("- Each question has exactly 4 options, all distinct and plausible\n")
	sb.WriteString("- The correct answer is non-obvious but unambiguously correct\n")
	sb.WriteString("- Do not give the answer away in the question text\n")
	sb.WriteString(fmt.Sprintf("- The explanation teaches WHY the answer is correct (at least %d characters)\n",
		cfg.MinExplanationLength))
	if cfg.RequireReferences {
		sb.WriteString(fmt.Sprintf("- Include at least %d credible reference(s) (textbook chapters, reputable URLs)\n",
			cfg.MinReferences))
	}
}

func writeOutputContract(sb *strings.Builder) {
	sb.WriteString("\nReturn ONLY a JSON array of objects with these exact keys:\n")
	sb.WriteString(`"question_text_en", "option_a_en", "option_b_en", "option_c_en", "option_d_en", `)
	sb.WriteString(`"correct_answer" (one of "A", "B", "C", "D"), "explanation", "references" (array of strings)`)
	sb.WriteString("\n")
}

func difficultyDefinition(tier DifficultyTier) string {
	switch tier {
	case Easy:
		return "Easy means direct recall of definitions, formulas, or basic facts; single-step problems with minimal reasoning.\n"
	case Medium:
		return "Medium means applying concepts or formulas; 1-2 steps of reasoning, possibly combining two related concepts.\n"
	case Hard:
		return "Hard means multi-step reasoning combining multiple concepts; requires deep understanding and analysis.\n"
	}
	return ""
}

const fewShotExample = `[
  {
    "question_text_en": "What is the determinant of a 2x2 identity matrix?",
    "option_a_en": "0",
    "option_b_en": "1",
    "option_c_en": "2",
    "option_d_en": "-1",
    "correct_answer": "B",
    "explanation": "The determinant of an identity matrix of any size is 1: for I = [[1,0],[0,1]], det(I) = 1*1 - 0*0 = 1. The identity matrix applies no scaling or rotation, hence determinant 1.",
    "references": [
      "https://en.wikipedia.org/wiki/Determinant",
      "Linear Algebra and Its Applications, Gilbert Strang, Chapter 5"
    ]
  }
]`
