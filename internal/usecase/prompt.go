package usecase

import (
	"strings"
	"text/template"

	"docqa/internal/domain"
)

// SystemPrompt is sent as the system message of every completion.
const SystemPrompt = "You are a helpful assistant."

// FallbackAnswer is what the model is told to reply when the context does
// not contain the answer.
const FallbackAnswer = "Information not available in the provided documents."

var promptTemplate = template.Must(template.New("prompt").Parse(`You are an intelligent document assistant.

Answer the question strictly using the context below.
If the answer is not present in the context, reply exactly: "{{.Fallback}}"

Context:
{{.Context}}

Question:
{{.Question}}

Answer in clear, complete sentences.`))

type promptData struct {
	Fallback string
	Context  string
	Question string
}

// ComposePrompt renders the user prompt. Chunk texts are joined with a
// newline in retrieval order.
func ComposePrompt(question string, chunks []domain.ScoredChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Chunk.Text
	}

	var sb strings.Builder
	// the template is fixed and its data is plain strings, so Execute cannot fail
	_ = promptTemplate.Execute(&sb, promptData{
		Fallback: FallbackAnswer,
		Context:  strings.Join(texts, "\n"),
		Question: question,
	})
	return sb.String()
}
