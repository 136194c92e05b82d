package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/resilience"
)

// DefaultSubject carries one message per completed retrieval.
const DefaultSubject = "retrieval.completed"

const operationPublish = "nats.publish"

// Headers set on every retrieval event.
const (
	HeaderMsgID     = "Nats-Msg-Id"
	HeaderRequestID = "X-Request-Id"
)

type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Queue publishes retrieval events and lets consumers follow them.
type Queue struct {
	conn     *nats.Conn
	pub      msgPublisher
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

// Options tunes the connection. Zero values take the defaults below.
type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	if o.RetryOnFailedConnect == nil {
		retry := true
		o.RetryOnFailedConnect = &retry
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) natsOptions() []nats.Option {
	logger := o.Logger
	return []nats.Option{
		nats.Name("pbs-retrieval"),
		nats.Timeout(o.ConnectTimeout),
		nats.ReconnectWait(o.ReconnectWait),
		nats.MaxReconnects(o.MaxReconnects),
		nats.RetryOnFailedConnect(*o.RetryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

// NewWithOptions connects to url. An empty subject means DefaultSubject.
func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	options = options.withDefaults()
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url, options.natsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		pub:      conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   options.Logger,
	}, nil
}

func (q *Queue) Subject() string {
	return q.subject
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Record publishes the query log as a JSON event. The entry id doubles as
// the message id so a JetStream stream on the subject drops redelivered
// duplicates.
func (q *Queue) Record(ctx context.Context, entry domain.QueryLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal retrieval event: %w", err)
	}
	msg := nats.NewMsg(q.subject)
	msg.Data = data
	if entry.ID != "" {
		msg.Header.Set(HeaderMsgID, entry.ID)
	}
	if entry.RequestID != "" {
		msg.Header.Set(HeaderRequestID, entry.RequestID)
	}

	call := func(context.Context) error {
		if err := q.pub.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, operationPublish, call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return resilience.MarkTemporary(operationPublish, err, classifyPublishError)
}

// transientErrors are connection states the client recovers from on its own.
var transientErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
}

func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	for _, transient := range transientErrors {
		if errors.Is(err, transient) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// SubscribeRetrievals delivers raw retrieval events until ctx is done, then
// drains the subscription.
func (q *Queue) SubscribeRetrievals(ctx context.Context, handler func(context.Context, []byte) error) error {
	sub, err := q.conn.Subscribe(q.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		if err := handler(ctx, msg.Data); err != nil {
			q.logger.Warn("retrieval_event_handler_failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
