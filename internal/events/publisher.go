package events

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

type Type string

const (
	NoteCreated    Type = "note.created"
	NoteUpdated    Type = "note.updated"
	NoteDeleted    Type = "note.deleted"
	TenantUpgraded Type = "tenant.upgraded"
)

// Event is the msgpack payload published on tenant-scoped subjects. Subjects
// carry the tenant id, so a consumer subscribed to one tenant's subject tree
// never sees another tenant's events.
type Event struct {
	Type      Type      `msgpack:"type"`
	TenantID  string    `msgpack:"tenant_id"`
	ActorID   string    `msgpack:"actor_id"`
	SubjectID string    `msgpack:"subject_id"`
	At        time.Time `msgpack:"at"`
}

// Publisher emits lifecycle events over NATS. It is best-effort: publishing
// failures are logged and never fail the request that triggered them. A nil
// Publisher is a no-op, which is how the service runs without NATS.
type Publisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

func Connect(url string, logger *zap.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(1 * time.Second),
		nats.ReconnectJitter(500*time.Millisecond, 2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	logger.Info("connected to nats", zap.String("url", nc.ConnectedUrl()))

	return &Publisher{nc: nc, logger: logger}, nil
}

func (p *Publisher) Publish(evt Event) {
	if p == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	payload, err := msgpack.Marshal(&evt)
	if err != nil {
		p.logger.Error("marshal event", zap.Error(err), zap.String("type", string(evt.Type)))
		return
	}

	subject := fmt.Sprintf("notes.%s.events.%s", evt.TenantID, evt.Type)
	if err := p.nc.Publish(subject, payload); err != nil {
		p.logger.Warn("publish event", zap.Error(err), zap.String("subject", subject))
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.nc.Drain()
}
