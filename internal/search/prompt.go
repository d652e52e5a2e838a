package search

import (
	"fmt"

	"github.com/hyperjump/tanya/internal/models"
)

const namespaceSystemPrompt = `You answer questions about a single set of uploaded documents.
Use only the document text supplied by the user message. Do not use outside knowledge.
If the text does not contain the answer, reply exactly: I don't know.
Reply in plain text without markdown or HTML.`

const globalSystemPrompt = `You answer questions using excerpts drawn from several uploaded documents.
Each excerpt block starts with a "Source:" line naming the namespace and document it came from.
Base the answer only on the excerpts.
Format the answer as HTML fragments: use <p> for paragraphs, <ul>/<li> for lists, <strong> for key terms.
When sources disagree or cover different aspects, compare them and name the source of each point.
If the user asks for a simpler explanation or a step-by-step breakdown, structure the answer that way.
If the excerpts do not cover the question, say: I couldn't find details on that in your uploaded documents. You may try rephrasing or uploading related PDFs.
If the question is unrelated to the documents, say: I specialize in answering queries based on uploaded PDFs. Try asking something relevant to your documents.`

// systemPrompt returns the fixed instruction for mode.
func systemPrompt(mode models.Mode) string {
	if mode == models.ModeGlobal {
		return globalSystemPrompt
	}
	return namespaceSystemPrompt
}

// userPrompt combines the question with the selected evidence.
func userPrompt(mode models.Mode, question, evidence string) string {
	if mode == models.ModeGlobal {
		return fmt.Sprintf("Question:\n\"%s\"\n\nExcerpts from multiple namespaces and documents:\n---\n%s\n---\n\n"+
			"Using only the excerpts above, give the most accurate and well-structured answer you can.", question, evidence)
	}
	return fmt.Sprintf("Based on this text, answer the question: \"%s\"\n\nText:\n%s", question, evidence)
}
