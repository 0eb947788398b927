package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/order-assistant/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// SubjectPrefix overrides the subject prefix (e.g. from EVENTS_SUBJECT_PREFIX).
	SubjectPrefix string
}

// CommsPublisher publishes dispatch events to COMMS subjects.
type CommsPublisher struct {
	nc     *comms.Conn
	prefix string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	prefix := commsutil.DefaultSubjectPrefix
	if opts != nil && opts.SubjectPrefix != "" {
		prefix = opts.SubjectPrefix
	}
	return &CommsPublisher{nc: nc, prefix: prefix}
}

// PublishDispatched publishes a DispatchedEvent to both the per-tool
// and global dispatch subjects.
func (p *CommsPublisher) PublishDispatched(_ context.Context, event *DispatchedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	toolSubject := commsutil.BuildDispatchSubject(p.prefix, event.Tool)
	if err := p.nc.Publish(toolSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, toolSubject, err))
		return err
	}

	globalSubject := commsutil.DispatchSubject(p.prefix)
	if err := p.nc.Publish(globalSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, globalSubject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published dispatch event %s for %s", commsPublisherLogPrefix, event.ID, event.Tool))
	return nil
}
