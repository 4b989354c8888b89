// Package eventbus publishes workflow and node lifecycle events
// (NodeStarted, NodeCompleted, NodeFailed, WorkflowCompleted) for host
// observability. It wraps watermill's CQRS event bus: an in-process
// watermill/gochannel transport by default, or a NATS JetStream transport
// when a host wants the same events visible to a
// separate process.
//
// Publishing never fails the workflow it instruments — a side channel
// (§4.10) is exactly that, and an event bus outage must not turn into a
// ComputationError for a node that otherwise computed correctly.
package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/Bayer-Group/phenex-go/internal/config"
	"github.com/Bayer-Group/phenex-go/internal/logging"
)

// topicPrefix namespaces every lifecycle event under "phenex.<EventName>".
const topicPrefix = "phenex."

// NodeStarted announces that a compute node's Execute has begun.
type NodeStarted struct {
	RunID     string `json:"run_id"`
	NodeName  string `json:"node_name"`
	NodeClass string `json:"node_class"`
}

// NodeCompleted announces that a compute node finished successfully.
type NodeCompleted struct {
	RunID     string        `json:"run_id"`
	NodeName  string        `json:"node_name"`
	NodeClass string        `json:"node_class"`
	Duration  time.Duration `json:"duration"`
	CacheHit  bool          `json:"cache_hit"`
}

// NodeFailed announces that a compute node's Execute returned an error.
type NodeFailed struct {
	RunID     string `json:"run_id"`
	NodeName  string `json:"node_name"`
	NodeClass string `json:"node_class"`
	Error     string `json:"error"`
}

// WorkflowCompleted announces that a workflow run (every node reachable
// from its roots) has finished, successfully or not.
type WorkflowCompleted struct {
	RunID    string `json:"run_id"`
	NodeCount int   `json:"node_count"`
	Error    string `json:"error,omitempty"`
}

// EventBus publishes lifecycle events onto a watermill transport selected
// by config.EventBusConfig.Kind.
type EventBus struct {
	bus      *cqrs.EventBus
	sub      message.Subscriber // non-nil only for the in-process (gochannel) transport; lets tests and in-process observers subscribe without a NATS server
	closer   func() error
	logger   watermill.LoggerAdapter
}

// New builds an EventBus for cfg.Kind ("inproc" or "nats").
func New(cfg config.EventBusConfig) (*EventBus, error) {
	logger := watermill.NewStdLogger(false, false)

	var pub message.Publisher
	var sub message.Subscriber
	var closer func() error

	switch cfg.Kind {
	case "", "inproc":
		gc := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		pub, sub, closer = gc, gc, gc.Close
	case "nats":
		if cfg.NATSUrl == "" {
			return nil, fmt.Errorf("eventbus: event_bus.kind=nats requires a nats_url")
		}
		natsPub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
			URL:       cfg.NATSUrl,
			Marshaler: &wmNats.NATSMarshaler{},
			JetStream: wmNats.JetStreamConfig{
				Disabled:      false,
				AutoProvision: true,
			},
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("eventbus: create nats publisher: %w", err)
		}
		pub, sub, closer = natsPub, nil, natsPub.Close
	default:
		return nil, fmt.Errorf("eventbus: unknown event_bus.kind %q", cfg.Kind)
	}

	bus, err := cqrs.NewEventBusWithConfig(pub, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			return topicPrefix + params.EventName, nil
		},
		Marshaler: cqrs.JSONMarshaler{GenerateName: cqrs.StructName},
		Logger:    logger,
	})
	if err != nil {
		if closer != nil {
			_ = closer()
		}
		return nil, fmt.Errorf("eventbus: create event bus: %w", err)
	}

	return &EventBus{bus: bus, sub: sub, closer: closer, logger: logger}, nil
}

// Topic returns the wire topic a given event value (NodeStarted{}, etc.)
// publishes under, for callers that want to Subscribe directly.
func Topic(eventName string) string {
	return topicPrefix + eventName
}

// Subscriber exposes the underlying transport's Subscriber, non-nil only
// for the in-process (gochannel) transport. NATS mode has no in-process
// reader by design — a separate process subscribes via its own NATS
// connection.
func (b *EventBus) Subscriber() message.Subscriber {
	return b.sub
}

// Publish sends event to its topic. Failures are logged and swallowed:
// the event bus is a side channel and must never turn an
// otherwise-successful node execution into an error.
func (b *EventBus) Publish(ctx context.Context, event interface{}) {
	if b == nil {
		return
	}
	if err := b.bus.Publish(ctx, event); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("eventbus: publish failed")
	}
}

// Close releases the underlying transport.
func (b *EventBus) Close() error {
	if b == nil || b.closer == nil {
		return nil
	}
	return b.closer()
}
