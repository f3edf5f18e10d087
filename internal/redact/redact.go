// Package redact masks secrets before they reach logs or terminal output.
package redact

// Token masks an API token, keeping just enough of it visible to tell
// two tokens apart. Short tokens are hidden entirely.
func Token(token string) string {
	switch {
	case len(token) <= 4:
		return "***"
	case len(token) <= 8:
		return token[:2] + "***"
	default:
		return token[:4] + "***" + token[len(token)-4:]
	}
}
