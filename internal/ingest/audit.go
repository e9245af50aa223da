// Package ingest consumes notice change events back from JetStream.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"noticeboard-backend/internal/events"
	"noticeboard-backend/internal/metrics"
)

const (
	auditDurable = "noticeboard-audit"

	minFetch     = 8
	maxFetch     = 512
	initialFetch = 64
	fetchWait    = 5 * time.Second
	nakDelay     = 5 * time.Second
)

type pullSubscriber interface {
	PullSubscribe(subj, durable string, opts ...nats.SubOpt) (*nats.Subscription, error)
}

type fetcher interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
	Drain() error
}

// AuditConsumer writes one log line per notice change event. It runs a
// durable pull consumer so events published while the server was down are
// picked up on restart.
type AuditConsumer struct {
	js      pullSubscriber
	sub     fetcher
	log     *slog.Logger
	metrics *metrics.Collector
	done    chan struct{}
}

func NewAuditConsumer(js pullSubscriber, log *slog.Logger, m *metrics.Collector) *AuditConsumer {
	return &AuditConsumer{js: js, log: log, metrics: m}
}

// Start subscribes and consumes in the background until ctx is cancelled.
func (c *AuditConsumer) Start(ctx context.Context) error {
	sub, err := c.js.PullSubscribe(
		events.SubjectFilter,
		auditDurable,
		nats.BindStream(events.StreamName),
		nats.ManualAck(),
		nats.AckWait(30*time.Second),
		nats.MaxDeliver(3),
		nats.MaxAckPending(1000),
	)
	if err != nil {
		return err
	}
	c.run(ctx, sub)
	c.log.Info("audit consumer started", slog.String("durable", auditDurable))
	return nil
}

func (c *AuditConsumer) run(ctx context.Context, sub fetcher) {
	c.sub = sub
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.consumeLoop(ctx)
	}()
}

func (c *AuditConsumer) consumeLoop(ctx context.Context) {
	b := batcher{size: initialFetch}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.sub.Fetch(b.size, nats.MaxWait(fetchWait))
		switch {
		case err == nil, errors.Is(err, nats.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		case errors.Is(err, nats.ErrBadSubscription), errors.Is(err, nats.ErrConnectionClosed):
			return
		default:
			c.log.Warn("fetch notice events", slog.Any("error", err))
		}
		b.observe(len(msgs))

		for _, msg := range msgs {
			c.handle(msg)
		}
	}
}

func (c *AuditConsumer) handle(msg *nats.Msg) {
	event, err := events.Decode(msg.Data)
	if err != nil {
		c.log.Error("undecodable notice event", slog.String("subject", msg.Subject), slog.Any("error", err))
		_ = msg.Term()
		return
	}

	c.log.Info("notice event",
		slog.String("type", event.Type),
		slog.String("notice_id", event.NoticeID),
		slog.String("user_id", event.UserID),
		slog.String("category", event.Category),
		slog.Time("at", time.UnixMilli(event.TS).UTC()))
	c.metrics.RecordEventConsumed(event.Type)
	_ = msg.Ack()
}

// Stop drains the subscription and waits for the loop to exit.
func (c *AuditConsumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	err := c.sub.Drain()
	<-c.done
	return err
}

// batcher grows the fetch size after three full batches and shrinks it after
// three empty ones, staying within [minFetch, maxFetch].
type batcher struct {
	size  int
	full  int
	empty int
}

func (b *batcher) observe(got int) {
	switch {
	case got == 0:
		b.empty++
		b.full = 0
		if b.empty >= 3 {
			b.size = max(b.size/2, minFetch)
			b.empty = 0
		}
	case got == b.size:
		b.full++
		b.empty = 0
		if b.full >= 3 {
			b.size = min(b.size*2, maxFetch)
			b.full = 0
		}
	default:
		b.full = 0
		b.empty = 0
	}
}
