package docblade

import "fmt"

// promptTemplate instructs the model to answer only from the retrieved
// excerpts and to admit when they are insufficient.
const promptTemplate = `You are a document support assistant. Use ONLY the provided document excerpts to answer the question. If the excerpts do not contain the answer, say you do not know.

Context:
%s

Question: %s
Answer:`

func RenderPrompt(context, question string) string {
	return fmt.Sprintf(promptTemplate, context, question)
}
