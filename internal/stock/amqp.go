package stock

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const publishTimeout = 3 * time.Second

// fanout exchange経由で全APIインスタンスに通知する（受け側はConsumeAMQP）
type AMQPNotifier struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
	log      zerolog.Logger
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil)
}

func NewAMQPNotifier(conn *amqp.Connection, exchange string, log zerolog.Logger) (*AMQPNotifier, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open amqp channel")
	}
	if err := declareExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, errors.Wrap(err, "declare exchange")
	}
	return &AMQPNotifier{
		ch:       ch,
		exchange: exchange,
		log:      log.With().Str("component", "amqp_notifier").Logger(),
	}, nil
}

// 送信は裏で行い、失敗はログだけ
func (n *AMQPNotifier) Notify(_ context.Context, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		n.log.Warn().Err(err).Msg("marshal stock event")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		n.mu.Lock()
		defer n.mu.Unlock()
		err := n.ch.PublishWithContext(ctx, n.exchange, "", false, false, amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   ev.At,
			Body:        body,
		})
		if err != nil {
			n.log.Warn().Err(err).Str("reason", ev.Reason).Msg("publish stock event")
		}
	}()
}

func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch.Close()
}

// 専用キューをexchangeにbindし、受信ごとにbへpublishする
func ConsumeAMQP(ctx context.Context, conn *amqp.Connection, exchange string, b *Broadcaster, log zerolog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "open amqp channel")
	}
	if err := declareExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return errors.Wrap(err, "declare exchange")
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return errors.Wrap(err, "declare queue")
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		_ = ch.Close()
		return errors.Wrap(err, "bind queue")
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return errors.Wrap(err, "consume")
	}

	log = log.With().Str("component", "amqp_consumer").Str("queue", q.Name).Logger()
	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					log.Warn().Msg("consumer stopped")
					return
				}
				var ev Event
				if err := json.Unmarshal(d.Body, &ev); err != nil {
					log.Warn().Err(err).Msg("bad stock event")
				}
				// 中身に関係なく最新の残数を配る
				b.Publish()
			}
		}
	}()
	return nil
}
