// Package redact provides utilities for redacting sensitive information from strings
// before they are logged or stored on a task record. It helps prevent the accidental
// leakage of credentials, connection strings, file paths, and other sensitive data
// that might be included in error messages from generation backends and stores.
package redact

import (
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Precompiled regex patterns
var (
	// Database connection strings
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql|mongodb|db|database|connection)://[^@\s]+@`)

	// Credentials and tokens
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)
	bearerRegex   = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/=]{8,}`)
	apiKeyRegex   = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|key|access|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)
	awsKeyRegex = regexp.MustCompile(`(AKIA|AccessKey(Id)?)([^a-zA-Z0-9])?[A-Z0-9]{8,}`)
	// JWT token pattern - matches the standard three-part base64url-encoded JWT token format
	jwtTokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)

	// File paths
	unixPathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)
	winPathRegex  = regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`)

	// Stack trace fragments
	stackTraceRegex = regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`)

	// Email addresses
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// credentialRules only touch secrets, so messages keep their shape.
	credentialRules = []rule{
		{dbConnRegex, RedactedCredentialPlaceholder},
		{passwordRegex, RedactedCredentialPlaceholder},
		{jwtTokenRegex, "[REDACTED_JWT]"},
		{bearerRegex, "Bearer " + RedactedKeyPlaceholder},
		{apiKeyRegex, RedactedKeyPlaceholder},
		{awsKeyRegex, RedactedKeyPlaceholder},
	}

	// allRules also strip paths, traces and addresses.
	allRules = append(append([]rule{}, credentialRules...),
		rule{stackTraceRegex, "[STACK_TRACE_REDACTED]"},
		rule{emailRegex, "[REDACTED_EMAIL]"},
		rule{unixPathRegex, RedactedPathPlaceholder},
		rule{winPathRegex, RedactedPathPlaceholder},
	)
)

// String redacts sensitive information from the input string. Use it for
// log output.
func String(input string) string {
	return apply(input, allRules)
}

// Credentials redacts only secrets such as passwords, tokens and keys.
// Use it for messages shown to users, where paths and field names matter.
func Credentials(input string) string {
	return apply(input, credentialRules)
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}

func apply(input string, rules []rule) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}
