package events

import (
	"context"
	"errors"
)

// EventPublisher is the interface for publishing panel events.
type EventPublisher interface {
	PublishPanel(ctx context.Context, event *PanelChangedEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (no COMMS, no dashboard clients).
type NoOpPublisher struct{}

// PublishPanel is a no-op.
func (p *NoOpPublisher) PublishPanel(_ context.Context, _ *PanelChangedEvent) error {
	return nil
}

// MultiPublisher publishes to every non-nil publisher, continuing past failures.
type MultiPublisher []EventPublisher

// PublishPanel publishes to all and joins the errors.
func (m MultiPublisher) PublishPanel(ctx context.Context, event *PanelChangedEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishPanel(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
