package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
	"github.com/kirillkom/pdf-processor/internal/infrastructure/resilience"
)

const (
	DefaultSubject = "documents.processed"
	queueGroup     = "exporters"
)

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	Name               string
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
}

func New(url, subject string, options Options) (*Queue, error) {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	name := options.Name
	if name == "" {
		name = "pdf-processor"
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentProcessed(ctx context.Context, event domain.DocumentProcessed) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}

	call := func(context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeDocumentProcessed blocks until ctx is done, then drains the subscription.
func (q *Queue) SubscribeDocumentProcessed(ctx context.Context, handler func(context.Context, domain.DocumentProcessed) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, queueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		dispatch(ctx, msg.Data, handler)
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
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func dispatch(ctx context.Context, data []byte, handler func(context.Context, domain.DocumentProcessed) error) {
	event, err := decodeEvent(data)
	if err != nil {
		slog.Error("nats_message_rejected", "error", err, "bytes", len(data))
		return
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handler(handlerCtx, event); err != nil {
		slog.Error("processed_event_handler_failed", "run_id", event.RunID, "error", err)
	}
}

func encodeEvent(event domain.DocumentProcessed) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal processed event: %w", err)
	}
	return payload, nil
}

func decodeEvent(data []byte) (domain.DocumentProcessed, error) {
	var event domain.DocumentProcessed
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.DocumentProcessed{}, domain.WrapError(domain.ErrInvalidInput, "decode processed event", err)
	}
	if strings.TrimSpace(event.RunID) == "" {
		return domain.DocumentProcessed{}, domain.WrapError(domain.ErrInvalidInput, "decode processed event", errors.New("run_id is required"))
	}
	return event, nil
}
