package search

// fallbackAnswers is the fixed set of replies used when retrieval finds no usable evidence.
var fallbackAnswers = []string{
	"I couldn't find anything related to that. Maybe try rephrasing?",
	"It looks like I don't have that information yet. You can upload related documents if needed!",
	"Hmm, I couldn't find relevant details. Try asking something else about your uploaded PDFs!",
	"I'm here to help with document-related queries. Maybe refine your question?",
}

// FallbackAnswers returns a copy of the fallback candidate set.
func FallbackAnswers() []string {
	out := make([]string, len(fallbackAnswers))
	copy(out, fallbackAnswers)
	return out
}

func (e *Engine) pickFallback() string {
	i := e.intn(len(fallbackAnswers))
	if i < 0 || i >= len(fallbackAnswers) {
		i = 0
	}
	return fallbackAnswers[i]
}
