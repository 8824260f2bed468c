package middleware

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Input validation for the HTTP surface. The pipeline validates events
// on its own; these checks reject malformed requests before any I/O.

var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// ValidateBucket checks S3 bucket naming rules.
func ValidateBucket(bucket string) error {
	if bucket == "" {
		return fmt.Errorf("bucket cannot be empty")
	}
	if !bucketPattern.MatchString(bucket) || strings.Contains(bucket, "..") {
		return fmt.Errorf("invalid bucket name: %q", bucket)
	}
	return nil
}

// ValidateObjectKey rejects keys S3 would refuse and traversal-looking paths.
func ValidateObjectKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if len(key) > 1024 {
		return fmt.Errorf("key longer than 1024 bytes")
	}
	if !utf8.ValidString(key) {
		return fmt.Errorf("key is not valid UTF-8")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("key must not start with '/'")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return fmt.Errorf("path traversal detected")
		}
	}
	for _, r := range key {
		if r < 32 || r == 127 {
			return fmt.Errorf("invalid characters in key")
		}
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
