package artifact

import "strings"

const separator = "\n---\n"

// EncodeSidecar renders the prompt file: the user's prompt, a line "---",
// then the prompt as revised by the generation API
func EncodeSidecar(original, revised string) string {
	return original + separator + revised
}

// DecodeSidecar splits on the last separator line, so a user prompt that
// itself contains "---" lines keeps them
func DecodeSidecar(text string) (original, revised string, ok bool) {
	i := strings.LastIndex(text, separator)
	if i < 0 {
		return text, "", false
	}
	return text[:i], text[i+len(separator):], true
}
