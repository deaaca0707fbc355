package llm

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a PostgreSQL expert. Given a database schema and a question, respond with a single valid PostgreSQL SELECT statement that answers the question.

Rules:
- Respond with the SQL statement only, no explanation and no markdown fences.
- Use only tables and columns that appear in the schema.
- Prefer explicit column lists over SELECT *.
- Never generate statements that modify data or schema.`

// buildPrompt renders the user message for a generation request
func buildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("Database schema:\n\n")
	b.WriteString(req.SchemaContext)
	b.WriteString("\n")

	if len(req.Hints) > 0 {
		b.WriteString("\nGuidance for this database:\n")

		for _, hint := range req.Hints {
			fmt.Fprintf(&b, "- %s\n", hint)
		}
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n", req.Question)

	if req.PriorSQL != "" {
		b.WriteString("\nA previous attempt at this question produced:\n\n")
		b.WriteString(req.PriorSQL)
		b.WriteString("\n\nIt failed with this database error:\n\n")
		b.WriteString(req.PriorError)
		b.WriteString("\n\nGenerate a corrected statement that avoids this error.")
	}

	return b.String()
}

// extractSQL strips markdown fences and surrounding noise from model
// output. Models add fences despite instructions often enough that this
// has to be unconditional.
func extractSQL(raw string) string {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")

		var kept []string

		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}

			kept = append(kept, line)
		}

		text = strings.TrimSpace(strings.Join(kept, "\n"))
	}

	return strings.TrimSuffix(text, ";")
}
