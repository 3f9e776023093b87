package core

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richTextPolicy  = newRichTextPolicy()
	plainTextPolicy = bluemonday.StrictPolicy()
)

// basic formatting only; no attributes, no styles.
func newRichTextPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "u", "ul", "ol", "li", "h1", "h2", "h3", "h4", "h5", "h6")
	return p
}

// SanitizeHTML keeps basic formatting tags and strips everything else.
func SanitizeHTML(s string) string {
	return strings.TrimSpace(richTextPolicy.Sanitize(s))
}

// StripTags removes every tag from s and returns plain text.
func StripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainTextPolicy.Sanitize(s)))
}

// StripTagsAll applies StripTags to each element of ss, dropping emptied values.
func StripTagsAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = StripTags(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
