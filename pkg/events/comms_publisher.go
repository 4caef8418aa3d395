package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/auction-admin/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// GlobalSubject overrides the global panel subject (PANEL_EVENT_SUBJECT).
	GlobalSubject string
}

// CommsPublisher publishes panel events to COMMS subjects.
type CommsPublisher struct {
	nc            *comms.Conn
	globalSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	globalSubject := commsutil.SubjectPanelChanged
	if opts != nil && opts.GlobalSubject != "" {
		globalSubject = opts.GlobalSubject
	}
	return &CommsPublisher{nc: nc, globalSubject: globalSubject}
}

// PublishPanel publishes a PanelChangedEvent to both the per-panel and global subjects.
func (p *CommsPublisher) PublishPanel(_ context.Context, event *PanelChangedEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	panelSubject := commsutil.BuildPanelSubject(event.Panel)
	if err := p.nc.Publish(panelSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, panelSubject, err))
		return err
	}

	if err := p.nc.Publish(p.globalSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, p.globalSubject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published %s -> %s", commsPublisherLogPrefix, event.Panel, event.State))
	return nil
}

// Subscribe delivers decoded events from subject (commsutil.SubjectPanelAll when empty) to fn.
func Subscribe(nc *comms.Conn, subject string, fn func(*PanelChangedEvent)) (*comms.Subscription, error) {
	if subject == "" {
		subject = commsutil.SubjectPanelAll
	}
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var event PanelChangedEvent
		if err := commsutil.DecodePayload(msg.Data, &event); err != nil {
			slog.Warn(fmt.Sprintf("%s - dropping undecodable event on %s: %v", commsPublisherLogPrefix, msg.Subject, err))
			return
		}
		fn(&event)
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", commsPublisherLogPrefix, subject, err)
	}
	return sub, nil
}
