package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

var blockedAttributeFragments = []string{
	"code",
	"token",
	"secret",
	"password",
	"authorization",
}

// SafeAttributes drops attributes whose key could carry a join code, invitation code or credential.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if isBlockedKey(string(attr.Key)) {
			continue
		}
		out = append(out, attr)
	}
	return out
}

func isBlockedKey(key string) bool {
	key = strings.ToLower(key)
	if key == "http.status_code" {
		return false
	}
	for _, fragment := range blockedAttributeFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

const maxErrorMessage = 256

// SafeError returns an error suitable for span recording: trimmed and length-capped.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return nil
	}
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage]
	}
	return errors.New(msg)
}
