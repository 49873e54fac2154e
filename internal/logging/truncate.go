package logging

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Debug logging of RPC traffic would otherwise echo entire markdown documents
// and clipboard blocks into the log file.
const maxLoggedString = 256

func TruncateValue(value string) string {
	if len(value) <= maxLoggedString {
		return value
	}
	return value[:maxLoggedString] + "…(+" + strconv.Itoa(len(value)-maxLoggedString) + " bytes)"
}

func TruncateAny(value any) any {
	switch typed := value.(type) {
	case string:
		return TruncateValue(typed)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			out[key] = TruncateAny(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = TruncateAny(val)
		}
		return out
	case []string:
		out := make([]string, len(typed))
		for i, val := range typed {
			out[i] = TruncateValue(val)
		}
		return out
	default:
		return value
	}
}

func TruncateJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return TruncateValue(strings.TrimSpace(string(raw)))
	}
	return TruncateAny(payload)
}
