package utils

import "github.com/microcosm-cc/bluemonday"

// Display names come from admin forms and OAuth profiles; strip any markup
// outright rather than allowing a safe subset.
var namePolicy = bluemonday.StrictPolicy()

// SanitizeName removes all HTML from a user-visible display name.
func SanitizeName(input string) string {
	return namePolicy.Sanitize(input)
}
