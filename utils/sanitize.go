package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richPolicy  = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

// Sanitize keeps safe formatting markup and drops anything executable.
func Sanitize(input string) string {
	return strings.TrimSpace(richPolicy.Sanitize(input))
}

// SanitizeText strips every tag, for single-line labels such as objective names.
func SanitizeText(input string) string {
	return strings.TrimSpace(plainPolicy.Sanitize(input))
}
