package tokens

import "strings"

// Redact masks a credential for logging, keeping only the last four
// characters. Tokens must never be logged in cleartext.
func Redact(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return "****" + token[len(token)-4:]
}
