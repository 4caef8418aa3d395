package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	// SubjectPanelChanged receives every panel event.
	SubjectPanelChanged = "auction.panel"
	// SubjectPanelAll matches every per-panel subject.
	SubjectPanelAll = "auction.panel.>"
)

// BuildPanelSubject builds the per-panel subject, e.g. auction.panel.queue-status.
func BuildPanelSubject(panelID string) string {
	return fmt.Sprintf("%s.%s", SubjectPanelChanged, SubjectToken(panelID))
}

// SubjectToken makes s safe as a single subject token: dots, spaces and wildcards become
// underscores; an empty string becomes "_".
func SubjectToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '\t', '*', '>':
			return '_'
		}
		return r
	}, s)
}
