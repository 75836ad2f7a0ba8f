package profile

import "strings"

// PromptTemplate renders the schema-grounded prompt for one family. The
// section order is fixed (instruction, schema, question); only the markers
// differ between families.
type PromptTemplate struct {
	Pre            string // opening/system marker, may be empty
	Instruction    string
	SchemaHeader   string
	QuestionHeader string
	AnswerHeader   string // trailing marker that cues the completion
}

// Render assembles the full prompt.
func (t PromptTemplate) Render(schemaCtx, question string) string {
	var b strings.Builder
	if t.Pre != "" {
		b.WriteString(t.Pre)
		b.WriteString("\n")
	}
	b.WriteString(t.Instruction)
	b.WriteString("\n\n")
	b.WriteString(t.SchemaHeader)
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(schemaCtx))
	b.WriteString("\n\n")
	b.WriteString(t.QuestionHeader)
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\n")
	b.WriteString(t.AnswerHeader)
	b.WriteString("\n")
	return b.String()
}

const baseInstruction = "Translate the question into a single SQL statement for the schema below. " +
	"Return only SQL, no explanation."

// templateFor returns the family's prompt markers.
func templateFor(f Family) PromptTemplate {
	switch f {
	case FamilySQLCoder:
		return PromptTemplate{
			Instruction:    "### Task\n" + baseInstruction,
			SchemaHeader:   "### Database Schema",
			QuestionHeader: "### Question",
			AnswerHeader:   "### Answer\n```sql",
		}
	case FamilyMistral:
		return PromptTemplate{
			Pre:            "[INST]",
			Instruction:    baseInstruction,
			SchemaHeader:   "Schema:",
			QuestionHeader: "Question:",
			AnswerHeader:   "[/INST]",
		}
	case FamilyDeepSeek:
		return PromptTemplate{
			Instruction:    "You are a SQL assistant. " + baseInstruction,
			SchemaHeader:   "### Schema",
			QuestionHeader: "### Question",
			AnswerHeader:   "### Response",
		}
	case FamilyPhi:
		return PromptTemplate{
			Pre:            "<|user|>",
			Instruction:    baseInstruction,
			SchemaHeader:   "Schema:",
			QuestionHeader: "Question:",
			AnswerHeader:   "<|assistant|>",
		}
	default: // llama and anything chat-tuned like it
		return PromptTemplate{
			Pre:            "<|start_header_id|>user<|end_header_id|>",
			Instruction:    baseInstruction,
			SchemaHeader:   "Schema:",
			QuestionHeader: "Question:",
			AnswerHeader:   "<|start_header_id|>assistant<|end_header_id|>",
		}
	}
}
