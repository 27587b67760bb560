package llm

import "strings"

// CleanJSONBlock strips a markdown code fence from a model response. Gemini
// wraps structured output in ```json fences often enough that evaluation
// parsing runs every response through here before unmarshalling.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	body := strings.TrimPrefix(text, "```")
	body = strings.TrimPrefix(body, "json")
	// Other language tags show up occasionally; drop the opening line when
	// it looks like a tag rather than content.
	if nl := strings.Index(body, "\n"); nl >= 0 && isFenceTag(body[:nl]) {
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isFenceTag(line string) bool {
	return len(line) < 20 && !strings.Contains(line, " ") && !strings.Contains(line, "{")
}
