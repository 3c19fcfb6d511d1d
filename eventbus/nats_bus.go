package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrInvalidEvent is returned when publishing an event without its required fields.
var ErrInvalidEvent = errors.New("invalid event: missing required fields")

// Publisher is what scenario runs publish through.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop discards events. It is used when no NATS URL is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// NATSBus publishes run events on NATS core subjects, one subject per event type
// under a common prefix.
type NATSBus struct {
	nc     *nats.Conn
	prefix string
}

type NATSConfig struct {
	URL     string
	Subject string
	Name    string
}

func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	name := cfg.Name
	if name == "" {
		name = "tbreport"
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSBus{nc: nc, prefix: SubjectPrefix(cfg.Subject)}, nil
}

// SubjectPrefix returns the configured prefix or the default one.
func SubjectPrefix(subject string) string {
	if subject == "" {
		return "tbreport.runs"
	}
	return subject
}

// Subject is where events of type typ are published.
func Subject(prefix, typ string) string { return prefix + "." + typ }

func (b *NATSBus) Publish(ctx context.Context, evt Event) error {
	if !evt.Valid() {
		return ErrInvalidEvent
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.nc.Publish(Subject(b.prefix, evt.Type), data)
}

// Subscribe delivers every run event until ctx is done. Undecodable messages are
// dropped.
func (b *NATSBus) Subscribe(ctx context.Context, handler func(Event)) (*nats.Subscription, error) {
	sub, err := b.nc.Subscribe(b.prefix+".>", func(msg *nats.Msg) {
		var evt Event
		if err := json.Unmarshal(msg.Data, &evt); err == nil {
			handler(evt)
		}
	})
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = sub.Drain()
	}()
	return sub, nil
}

// Close drains the connection.
func (b *NATSBus) Close() error {
	return b.nc.Drain()
}
