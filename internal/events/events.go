// Package events publishes notice change events to NATS JetStream.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"noticeboard-backend/internal/models"
)

const (
	StreamName    = "NOTICE_EVENTS"
	SubjectFilter = subjectPrefix + ".>"
	subjectPrefix = "notices"
	eventVersion  = 1
)

type Publisher interface {
	Publish(ctx context.Context, eventType string, notice *models.Notice) error
	Close() error
}

// Noop drops every event. It is used when no NATS URL is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, *models.Notice) error { return nil }

func (Noop) Close() error { return nil }

type jetStream interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

type NATSPublisher struct {
	nc     *nats.Conn
	js     jetStream
	stream nats.JetStreamContext
	now    func() time.Time
}

// Connect dials url and makes sure the notice events stream exists.
func Connect(url string, log *slog.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("noticeboard-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(1 * time.Second),
		nats.ReconnectJitter(500*time.Millisecond, 2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error("NATS error", slog.Any("error", err))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	log.Info("connected to NATS", slog.String("url", nc.ConnectedUrl()))

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if err := ensureStream(js, log); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return &NATSPublisher{nc: nc, js: js, stream: js, now: time.Now}, nil
}

func ensureStream(js nats.JetStreamContext, log *slog.Logger) error {
	_, err := js.StreamInfo(StreamName)
	if err == nats.ErrStreamNotFound {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:       StreamName,
			Subjects:   []string{SubjectFilter},
			Retention:  nats.LimitsPolicy,
			MaxAge:     7 * 24 * time.Hour,
			MaxMsgSize: 64 * 1024,
			Discard:    nats.DiscardOld,
			Storage:    nats.FileStorage,
		})
		if err != nil {
			return fmt.Errorf("create stream %s: %w", StreamName, err)
		}
		log.Info("created JetStream stream", slog.String("stream", StreamName))
		return nil
	}
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	return nil
}

// Publish sends a msgpack-encoded NoticeEvent to notices.<userID>.<eventType>.
func (p *NATSPublisher) Publish(ctx context.Context, eventType string, notice *models.Notice) error {
	msg, err := p.message(eventType, notice)
	if err != nil {
		return err
	}
	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

func (p *NATSPublisher) message(eventType string, notice *models.Notice) (*nats.Msg, error) {
	event := models.NoticeEvent{
		V:        eventVersion,
		TS:       p.now().UnixMilli(),
		Type:     eventType,
		NoticeID: notice.ID,
		UserID:   notice.UserID,
		Category: notice.Category,
	}
	payload, err := msgpack.Marshal(&event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(Subject(notice.UserID, eventType))
	msg.Data = payload
	msg.Header.Set(nats.MsgIdHdr, notice.ID+":"+eventType+":"+fmt.Sprint(event.TS))
	return msg, nil
}

// JetStream is the context the publisher was connected with.
func (p *NATSPublisher) JetStream() nats.JetStreamContext {
	return p.stream
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

func Subject(userID, eventType string) string {
	return subjectPrefix + "." + userID + "." + eventType
}

// Decode is the inverse of the payload written by Publish.
func Decode(data []byte) (models.NoticeEvent, error) {
	var event models.NoticeEvent
	err := msgpack.Unmarshal(data, &event)
	return event, err
}
