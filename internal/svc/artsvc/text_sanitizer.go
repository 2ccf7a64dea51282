package artsvc

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer strips markup from user supplied text. Titles, bios and
// descriptions are plain text; any HTML in them is dropped.
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer returns a sanitizer using bluemonday's strict policy.
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxSanitizeRounds bounds the unescape passes for nested entity encodings.
const maxSanitizeRounds = 8

// Sanitize removes all tags from s and trims surrounding whitespace.
// Entities escaped by the policy are decoded again so "&" stays "&". Decoding
// repeats until the text is stable so encoded markup cannot turn into tags.
func (s *TextSanitizer) Sanitize(text string) string {
	for range maxSanitizeRounds {
		clean := html.UnescapeString(s.policy.Sanitize(text))
		if clean == text {
			return strings.TrimSpace(clean)
		}

		text = clean
	}

	return strings.TrimSpace(s.policy.Sanitize(text))
}

// SanitizeAll sanitizes every element of texts in place and returns it.
func (s *TextSanitizer) SanitizeAll(texts []string) []string {
	for i, text := range texts {
		texts[i] = s.Sanitize(text)
	}

	return texts
}
