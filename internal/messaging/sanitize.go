package messaging

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy = bluemonday.StrictPolicy()
	// <@U123>, <@!123>, <#C123|name> and similar platform tokens.
	mentionRE = regexp.MustCompile(`<[@#!][^>]*>`)
)

// Sanitize strips markup and platform mention tokens from inbound text.
func Sanitize(text string) string {
	text = mentionRE.ReplaceAllString(text, "")
	text = html.UnescapeString(policy.Sanitize(text))
	return strings.Join(strings.Fields(text), " ")
}
