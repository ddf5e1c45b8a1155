// Package nats publishes session events to NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/TraceScope/internal/logger"
	"github.com/Strob0t/TraceScope/internal/port/messagequeue"
	"github.com/Strob0t/TraceScope/internal/resilience"
)

const (
	streamName      = "TRACESCOPE"
	headerRequestID = "X-Request-ID"
	publishTimeout  = 5 * time.Second
)

// Publisher implements messagequeue.Publisher on a JetStream stream.
// Publishing goes through a circuit breaker so a broker outage costs one
// rejected call instead of a timeout per event.
type Publisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	breaker *resilience.Breaker
}

// Connect connects to url and ensures a stream capturing subjectPrefix.>.
func Connect(ctx context.Context, url, subjectPrefix string, breaker *resilience.Breaker) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("tracescope"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ".>"},
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	if breaker == nil {
		breaker = resilience.NewBreaker(5, 30*time.Second)
	}
	breaker.OnTransition(func(from, to resilience.State) {
		slog.Warn("nats publish breaker", "from", from, "to", to)
	})

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Publisher{nc: nc, js: js, breaker: breaker}, nil
}

// Publish validates data and sends it to subject, carrying the request id of
// ctx as a header.
func (p *Publisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}

	return p.breaker.Execute(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if _, err := p.js.PublishMsg(ctx, msg); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	})
}

// JetStream returns the JetStream context of the connection.
func (p *Publisher) JetStream() jetstream.JetStream {
	return p.js
}

// IsConnected reports whether the connection is up.
func (p *Publisher) IsConnected() bool {
	return p.nc.IsConnected()
}

// Close drains the connection.
func (p *Publisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
