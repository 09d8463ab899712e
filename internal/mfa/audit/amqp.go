package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange is the durable topic exchange audit events are published to.
// Routing key is the event kind, so consumers can bind e.g. "bypass_*".
const Exchange = "mfa.audit"

const dialTimeout = 10 * time.Second

// AMQPRecorder publishes audit events to RabbitMQ for downstream consumers
// (SIEM ingestion, alerting). Publish failures are logged and reported but a
// lost event here never fails the operation that produced it; the caller
// decides, and the store recorder remains the durable trail.
type AMQPRecorder struct {
	conn     *amqp.Connection
	channels channelGuard
	logger   *slog.Logger
}

func NewAMQPRecorder(amqpURL string, logger *slog.Logger) (*AMQPRecorder, error) {
	conn, err := amqp.DialConfig(amqpURL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, err
	}

	r := &AMQPRecorder{conn: conn, logger: logger}
	ch, err := r.openChannel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	r.channels.ch = ch
	return r, nil
}

func (r *AMQPRecorder) Record(ctx context.Context, event domain.AuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   event.CreatedAt,
		MessageId:   event.ID,
		Body:        body,
	}

	ch := r.channels.current()
	err = ch.PublishWithContext(ctx, Exchange, event.Kind, false, false, msg)
	if err == nil {
		return nil
	}

	// One-shot retry on a fresh channel; broker restarts invalidate channels.
	fresh, replaced, repErr := r.channels.replace(ch, r.openChannel)
	if repErr != nil {
		return err
	}
	if replaced {
		_ = ch.Close()
	}
	if err := fresh.PublishWithContext(ctx, Exchange, event.Kind, false, false, msg); err != nil {
		r.logger.WarnContext(ctx, "audit publish failed after retry",
			"kind", event.Kind, "error", err)
		return err
	}
	return nil
}

// openChannel opens a channel on the recorder's connection with the audit
// exchange declared.
func (r *AMQPRecorder) openChannel() (*amqp.Channel, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

func (r *AMQPRecorder) Close() error {
	if ch := r.channels.current(); ch != nil {
		_ = ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// channelGuard hands out the active channel and serializes its replacement.
// Records run concurrently, so when several of them hit the same dead channel
// only one replacement may be opened and the rest must reuse it instead of
// leaking channels of their own.
type channelGuard struct {
	mu sync.Mutex
	ch *amqp.Channel
}

func (g *channelGuard) current() *amqp.Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ch
}

// replace swaps stale for a channel obtained from open. If another caller
// already swapped it out, the current channel is returned without calling
// open and replaced is false; the caller then must not close stale, as the
// winner owns that cleanup.
func (g *channelGuard) replace(stale *amqp.Channel, open func() (*amqp.Channel, error)) (ch *amqp.Channel, replaced bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ch != stale {
		return g.ch, false, nil
	}
	ch, err = open()
	if err != nil {
		return nil, false, err
	}
	g.ch = ch
	return ch, true, nil
}
