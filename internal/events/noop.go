package events

import "context"

// NoopPublisher discards events when no broker is configured (SCOUT_NATS_URL
// unset). It still rejects subjects outside the scout.* namespace so a
// broker-less run surfaces the same wiring mistakes a real one would.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(_ context.Context, topic string, _ any) error {
	return validateSubject(topic)
}

func (*NoopPublisher) Close() error {
	return nil
}
