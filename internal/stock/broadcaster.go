package stock

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// 遅い読み手のために溜めておく件数
const subscriberBuffer = 4

var ErrClosed = errors.New("stock broadcaster closed")

// ライブ更新1本分
type Subscription struct {
	ID uuid.UUID
	ch chan Snapshot

	// 以下はworkerだけが触る
	sent    int
	dropped int
}

// 最初の値は購読時点の残数。Unsubscribeか停止でcloseされる
func (s *Subscription) C() <-chan Snapshot { return s.ch }

// ブロックしない。送るのはworkerだけなので、満杯でも抜けば必ず入る。
// 捨てたらtrueを返す
func (s *Subscription) offer(snap Snapshot) bool {
	select {
	case s.ch <- snap:
		s.sent++
		return false
	default:
	}

	queued := make([]Snapshot, 0, cap(s.ch))
	for drained := false; !drained; {
		select {
		case v := <-s.ch:
			queued = append(queued, v)
		default:
			drained = true
		}
	}

	dropped := false
	if len(queued) == cap(s.ch) {
		drop := 0
		// 初回スナップショットがまだ読まれていなければ先頭は残す
		if s.sent-s.dropped == len(queued) && len(queued) > 1 {
			drop = 1
		}
		queued = append(queued[:drop], queued[drop+1:]...)
		s.dropped++
		dropped = true
	}
	for _, v := range queued {
		s.ch <- v
	}
	s.ch <- snap
	s.sent++
	return dropped
}

type subscribeReq struct {
	ctx   context.Context
	reply chan subscribeResult
}

type subscribeResult struct {
	sub *Subscription
	err error
}

// 購読者の登録・解除と配信はすべてRunのgoroutineで行う。
// なので初回スナップショットは後続のpublishより必ず先に届く
type Broadcaster struct {
	source Source
	log    zerolog.Logger

	subscribe   chan subscribeReq
	unsubscribe chan *Subscription
	pending     chan struct{}
	done        chan struct{}

	startOnce sync.Once
	subs      map[uuid.UUID]*Subscription
}

func NewBroadcaster(source Source, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		source:      source,
		log:         log.With().Str("component", "stock_broadcaster").Logger(),
		subscribe:   make(chan subscribeReq),
		unsubscribe: make(chan *Subscription),
		pending:     make(chan struct{}, 1),
		done:        make(chan struct{}),
		subs:        make(map[uuid.UUID]*Subscription),
	}
}

// ctxが終わるまで回し、最後に全購読をcloseする（2回目以降は何もしない）
func (b *Broadcaster) Run(ctx context.Context) {
	started := false
	b.startOnce.Do(func() { started = true })
	if !started {
		return
	}
	defer func() {
		for id, sub := range b.subs {
			close(sub.ch)
			delete(b.subs, id)
		}
		close(b.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-b.subscribe:
			sub, err := b.register(req.ctx)
			req.reply <- subscribeResult{sub: sub, err: err}
		case sub := <-b.unsubscribe:
			if _, ok := b.subs[sub.ID]; ok {
				delete(b.subs, sub.ID)
				close(sub.ch)
			}
		case <-b.pending:
			b.fanOut(ctx)
		}
	}
}

func (b *Broadcaster) register(ctx context.Context) (*Subscription, error) {
	snap, err := b.source.Snapshot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "initial snapshot")
	}
	sub := &Subscription{ID: uuid.New(), ch: make(chan Snapshot, subscriberBuffer)}
	sub.offer(snap)
	b.subs[sub.ID] = sub
	b.log.Debug().Str("subscription", sub.ID.String()).Int("subscribers", len(b.subs)).Msg("subscribed")
	return sub, nil
}

func (b *Broadcaster) fanOut(ctx context.Context) {
	if len(b.subs) == 0 {
		return
	}
	snap, err := b.source.Snapshot(ctx)
	if err != nil {
		// best effort: 次のpublishか再接続で追いつく
		b.log.Warn().Err(err).Msg("snapshot for publish failed")
		return
	}
	for _, sub := range b.subs {
		if sub.offer(snap) {
			b.log.Debug().Str("subscription", sub.ID.String()).Msg("snapshot dropped")
		}
	}
}

func (b *Broadcaster) Subscribe(ctx context.Context) (*Subscription, error) {
	reply := make(chan subscribeResult, 1)
	select {
	case b.subscribe <- subscribeReq{ctx: ctx, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return nil, ErrClosed
	}
	res := <-reply
	return res.sub, res.err
}

// 何度呼んでもよい
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	select {
	case b.unsubscribe <- sub:
	case <-b.done:
	}
}

// ブロックしない。処理待ちのものがあればまとめる
func (b *Broadcaster) Publish() {
	select {
	case b.pending <- struct{}{}:
	default:
	}
}

func (b *Broadcaster) Notify(_ context.Context, ev Event) {
	b.log.Debug().Str("reason", ev.Reason).Int64("order_id", ev.OrderID).Msg("stock event")
	b.Publish()
}

// Runが抜けたらclose
func (b *Broadcaster) Done() <-chan struct{} { return b.done }
