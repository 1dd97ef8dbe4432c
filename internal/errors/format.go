package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ae, ok := As(err)
	if !ok {
		ae = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ae.Message)
	if ae.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ae.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ae.Code)
	return sb.String()
}

// Payload is the wire shape of an error in API and MCP responses.
type Payload struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
}

// ToPayload converts any error into its wire shape. Errors that are not
// AppErrors are reported as internal errors without leaking their text.
func ToPayload(err error) Payload {
	ae, ok := As(err)
	if !ok {
		return Payload{Code: ErrCodeInternal, Message: "internal error"}
	}
	return Payload{
		Code:       ae.Code,
		Message:    ae.Message,
		Details:    ae.Details,
		Suggestion: ae.Suggestion,
	}
}

type jsonError struct {
	Payload
	Category  string `json:"category"`
	Severity  string `json:"severity"`
	Cause     string `json:"cause,omitempty"`
	Retryable bool   `json:"retryable"`
}

// FormatJSON returns the full JSON representation of the error, cause included.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	ae, ok := As(err)
	if !ok {
		ae = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Payload: Payload{
			Code:       ae.Code,
			Message:    ae.Message,
			Details:    ae.Details,
			Suggestion: ae.Suggestion,
		},
		Category:  string(ae.Category),
		Severity:  string(ae.Severity),
		Retryable: ae.Retryable,
	}
	if ae.Cause != nil {
		je.Cause = ae.Cause.Error()
	}
	return json.Marshal(je)
}

// LogAttrs returns slog key-value pairs describing err, suitable for
// logger.Error("...", errors.LogAttrs(err)...).
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	ae, ok := As(err)
	if !ok {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", ae.Code,
		"error", ae.Message,
		"category", string(ae.Category),
	}
	if ae.Cause != nil {
		attrs = append(attrs, "cause", ae.Cause.Error())
	}
	for k, v := range ae.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
