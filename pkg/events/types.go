// Package events defines panel state events and the publishers that fan them out.
package events

import (
	"time"

	"github.com/morezero/auction-admin/pkg/uistate"
)

// PanelChangedEvent is emitted whenever a control or panel changes state.
type PanelChangedEvent struct {
	Panel     string `json:"panel"`
	State     string `json:"state"`
	Label     string `json:"label,omitempty"`
	Disabled  bool   `json:"disabled"`
	Seq       uint64 `json:"seq"`
	Site      string `json:"site,omitempty"`
	Timestamp string `json:"timestamp"`
}

// FromView builds an event from a tracker view.
func FromView(v uistate.View, site string) *PanelChangedEvent {
	return &PanelChangedEvent{
		Panel:     v.ID,
		State:     v.State,
		Label:     v.Label,
		Disabled:  v.Disabled,
		Seq:       v.Seq,
		Site:      site,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
