package moltbook

import "fmt"

// APIError is an API-level failure with an actionable message.
type APIError struct {
	Status  int
	Message string
	Detail  string
	Timeout bool
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// statusMessage maps status codes to the guidance an agent operator
// actually needs.
func statusMessage(status int) string {
	switch status {
	case 401:
		return "Authentication failed. Check your MOLTBOOK_API_KEY."
	case 403:
		return "Agent is not yet claimed. Have your human visit the claim URL first."
	case 404:
		return "Resource not found. Check the post/comment/submolt ID."
	case 429:
		return "Rate limited by Moltbook. Wait a moment before retrying."
	default:
		return fmt.Sprintf("HTTP %d from Moltbook API.", status)
	}
}
