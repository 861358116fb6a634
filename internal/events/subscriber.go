package events

// Subscriber receives pipeline envelopes from the event bus.
type Subscriber interface {
	// Subscribe delivers decoded envelopes for the given scout.* subject
	// (NATS wildcards allowed). Call the returned cancel function to
	// unsubscribe and close the channel.
	Subscribe(topic string) (<-chan Envelope, func(), error)
	Close() error
}
