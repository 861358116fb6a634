package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// subjectPrefix is the namespace every pipeline subject lives under. A topic
// outside it is a wiring mistake, not a runtime condition.
const subjectPrefix = "scout."

func validateSubject(topic string) error {
	if !strings.HasPrefix(topic, subjectPrefix) {
		return fmt.Errorf("subject %q is outside the %s* namespace", topic, subjectPrefix)
	}
	return nil
}

// Envelope is the wire form of every published pipeline event. Payload holds
// the JSON encoding of the topic's payload struct (EventDiscovered,
// ApprovalDecided, and so on).
type Envelope struct {
	Topic      string          `json:"topic"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NATSPublisher wraps each pipeline event in an Envelope and publishes it to
// its scout.* subject.
type NATSPublisher struct {
	conn *nats.Conn
	now  func() time.Time
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc, now: time.Now}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, topic string, event any) error {
	if err := validateSubject(topic); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", topic, err)
	}
	data, err := json.Marshal(Envelope{Topic: topic, OccurredAt: p.now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("marshaling %s envelope: %w", topic, err)
	}
	return p.conn.Publish(topic, data)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber consumes pipeline envelopes, e.g. for the CLI watch flow.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to NATS with unbounded reconnection. Extra
// nats.Option values (e.g. disconnect/reconnect handlers) can be appended.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe returns a channel of decoded envelopes for the given subject,
// which must sit in the scout.* namespace and may use NATS wildcards
// ("scout.>" for everything). Messages that do not decode as an Envelope are
// dropped. Call the returned cancel function to unsubscribe and close the
// channel.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan Envelope, func(), error) {
	if err := validateSubject(topic); err != nil {
		return nil, nil, err
	}
	ch := make(chan Envelope, 64)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return
		}
		if env.Topic == "" {
			env.Topic = msg.Subject
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- env:
		default:
			// Drop when the channel is full to avoid blocking the NATS client.
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// Flush ensures the subscription is registered on the server before
	// returning, so that messages published on other connections are routed.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			mu.Unlock()
			// Drain remaining envelopes so senders don't block, then close.
			for {
				select {
				case <-ch:
				default:
					close(ch)
					return
				}
			}
		})
	}

	return ch, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
