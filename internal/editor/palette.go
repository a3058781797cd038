package editor

import "github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"

const fallbackColor = "#64748b"

var statusColors = map[string]string{
	domain.LabelWork:  "#3b82f6",
	domain.LabelLeave: "#ef4444",
	domain.LabelSick:  "#f59e0b",
}

func IsStatusLabel(label string) bool {
	_, ok := statusColors[label]
	return ok
}

func ColorFor(label string) string {
	if c, ok := statusColors[label]; ok {
		return c
	}
	return fallbackColor
}
