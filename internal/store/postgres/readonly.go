package postgres

import (
	"regexp"
	"strings"
)

var (
	lineCommentPattern  = regexp.MustCompile(`(?m)--.*$`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)

	writeOperationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*insert\s+`),
		regexp.MustCompile(`^\s*update\s+`),
		regexp.MustCompile(`^\s*delete\s+`),
		regexp.MustCompile(`^\s*drop\s+`),
		regexp.MustCompile(`^\s*create\s+`),
		regexp.MustCompile(`^\s*alter\s+`),
		regexp.MustCompile(`^\s*truncate\s+`),
		regexp.MustCompile(`^\s*grant\s+`),
		regexp.MustCompile(`^\s*revoke\s+`),
		regexp.MustCompile(`^\s*set\s+`),
	}
)

// IsReadOnlyQuery reports whether query contains no write operations. Comments
// are stripped before matching so a leading comment cannot hide a write.
func IsReadOnlyQuery(query string) bool {
	query = lineCommentPattern.ReplaceAllString(query, "")
	query = blockCommentPattern.ReplaceAllString(query, "")
	query = strings.ToLower(strings.TrimSpace(query))

	for _, pattern := range writeOperationPatterns {
		if pattern.MatchString(query) {
			return false
		}
	}
	return true
}
