package serialmux

import (
	"strings"
)

const (
	EventTypeSample  = "sample"
	EventTypeConfig  = "config"
	EventTypeComment = "comment"
	EventTypeUnknown = "unknown"
)

// ClassifyPayload inspects a line from the IMU and returns an event type
// token. Lines are classified by shape only; motion.ParseReading does the
// real parsing.
func ClassifyPayload(payload string) string {
	p := strings.TrimSpace(payload)
	switch {
	case p == "":
		return EventTypeUnknown
	case strings.HasPrefix(p, "#"):
		return EventTypeComment
	case strings.HasPrefix(p, "{"):
		if strings.Contains(p, `"ax"`) {
			return EventTypeSample
		}
		return EventTypeConfig
	}
	if n := strings.Count(p, ","); n == 2 || n == 3 {
		return EventTypeSample
	}
	return EventTypeUnknown
}
