package publisher

import (
	"context"
	"fmt"

	"github.com/maxpert/s3avro/cfg"
	"github.com/maxpert/s3avro/telemetry"
	"github.com/rs/zerolog/log"
)

type notificationTarget struct {
	name        string
	topic       string
	sink        Sink
	transformer Transformer
}

// Notifier announces published streams to the configured sinks
type Notifier struct {
	targets []notificationTarget
	backoff Backoff
}

// NewNotifier creates a sink and transformer for every notification config
func NewNotifier(configs []cfg.NotificationConfiguration, backoff Backoff) (*Notifier, error) {
	n := &Notifier{
		targets: make([]notificationTarget, 0, len(configs)),
		backoff: backoff.withDefaults(),
	}

	for _, c := range configs {
		if err := n.add(c); err != nil {
			n.Close()
			return nil, fmt.Errorf("failed to add notification %q: %w", c.Name, err)
		}
	}

	return n, nil
}

func (n *Notifier) add(c cfg.NotificationConfiguration) error {
	snk, err := createSink(c)
	if err != nil {
		return fmt.Errorf("failed to create sink: %w", err)
	}

	trans, err := createTransformer(c.Format)
	if err != nil {
		snk.Close()
		return fmt.Errorf("failed to create transformer: %w", err)
	}

	n.targets = append(n.targets, notificationTarget{
		name:        c.Name,
		topic:       c.Topic,
		sink:        snk,
		transformer: trans,
	})

	log.Info().
		Str("sink", c.Name).
		Str("type", c.Type).
		Str("format", c.Format).
		Msg("Added notification sink")
	return nil
}

// Len returns the number of notification targets
func (n *Notifier) Len() int {
	return len(n.targets)
}

// Notify publishes the manifest to every target. Failures are logged only.
func (n *Notifier) Notify(ctx context.Context, m Manifest) {
	for _, t := range n.targets {
		if err := n.notify(ctx, t, m); err != nil {
			telemetry.NotificationsTotal.With(t.name, "failed").Inc()
			log.Warn().Err(err).Str("sink", t.name).Str("stream", m.Stream).Msg("Failed to send publication notice")
			continue
		}
		telemetry.NotificationsTotal.With(t.name, "success").Inc()
	}
}

func (n *Notifier) notify(ctx context.Context, t notificationTarget, m Manifest) error {
	data, err := t.transformer.Transform(m)
	if err != nil {
		return fmt.Errorf("failed to transform manifest: %w", err)
	}

	return n.backoff.Do(ctx, "notify "+t.name, func() error {
		return t.sink.Publish(t.topic, m.Stream, data)
	})
}

// Close releases every sink
func (n *Notifier) Close() {
	for _, t := range n.targets {
		if err := t.sink.Close(); err != nil {
			log.Warn().Err(err).Str("sink", t.name).Msg("Failed to close notification sink")
		}
	}
}
