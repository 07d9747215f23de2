package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"preorder/internal/domain/model"
	repo "preorder/internal/repository"
	"preorder/internal/stock"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// 受け取り案内（全注文で共通）
type PickupInfo struct {
	Location string
	Time     string
	Note     string
}

type OrderUsecase struct {
	tx       repo.TransactionManager
	orders   repo.OrderRepository
	quota    *QuotaAccountant
	codec    model.OrderCodec
	pickup   PickupInfo
	notifier stock.Notifier
	clock    Clock

	// 残数チェック〜INSERTを直列化する（売り越し防止）
	admitMu sync.Mutex
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	quota *QuotaAccountant,
	codec model.OrderCodec,
	pickup PickupInfo,
	notifier stock.Notifier,
	clock Clock,
) *OrderUsecase {
	if notifier == nil {
		notifier = stock.NopNotifier{}
	}
	return &OrderUsecase{
		tx:       tx,
		orders:   orders,
		quota:    quota,
		codec:    codec,
		pickup:   pickup,
		notifier: notifier,
		clock:    clock,
	}
}

type SubmitOrderInput struct {
	Name          string
	Phone         string
	Quantity      string // JSONの数値または数値文字列
	DepositorName string
}

type LookupOrderInput struct {
	Phone string
	Code  string
}

type OrderOutput struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Quantity      int       `json:"quantity"`
	PickupSlot    string    `json:"pickupSlot"`
	DepositorName string    `json:"depositorName"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

type PickupInfoOutput struct {
	Location  string `json:"location"`
	Time      string `json:"time"`
	Note      string `json:"note"`
	Limit     *int   `json:"limit,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}

type OrderWithPickupOutput struct {
	OrderOutput
	PickupInfo PickupInfoOutput `json:"pickupInfo"`
}

// Submit は日次上限の範囲内なら注文を受け付ける。
func (u *OrderUsecase) Submit(ctx context.Context, in SubmitOrderInput) (OrderWithPickupOutput, error) {
	phone := strings.TrimSpace(in.Phone)
	depositor := strings.TrimSpace(in.DepositorName)
	if phone == "" || depositor == "" {
		return OrderWithPickupOutput{}, NewValidationError("missing required fields")
	}

	qty, err := model.ParseQuantity(in.Quantity)
	if err != nil {
		return OrderWithPickupOutput{}, NewValidationError("invalid quantity")
	}

	created, remaining, err := u.admit(ctx, model.Order{
		Name:          strings.TrimSpace(in.Name),
		Phone:         phone,
		Quantity:      qty,
		PickupSlot:    u.pickup.Time,
		DepositorName: depositor,
		Status:        model.OrderStatusAwaitingPayment,
	})
	if err != nil {
		if IsKind(err, KindQuotaExceeded) {
			zerolog.Ctx(ctx).Info().Int("quantity", qty).Msg("order rejected: quota exceeded")
		}
		return OrderWithPickupOutput{}, err
	}

	zerolog.Ctx(ctx).Info().
		Int64("order_id", created.ID).
		Int("quantity", qty).
		Int("remaining", remaining).
		Msg("order accepted")

	u.notifier.Notify(ctx, stock.Event{
		Reason:  stock.ReasonOrderCreated,
		OrderID: created.ID,
		At:      created.CreatedAt,
	})

	limit := u.quota.Limit()
	return OrderWithPickupOutput{
		OrderOutput: u.toOrderOutput(created),
		PickupInfo:  u.pickupOutput(&limit, &remaining),
	}, nil
}

// admit は「今日の合計を読む→上限判定→INSERT」を1つの直列区間で行う。
// mutexで同一プロセス内の受付を、TxとLockDayでDB上の整合を守る。
func (u *OrderUsecase) admit(ctx context.Context, order model.Order) (model.Order, int, error) {
	u.admitMu.Lock()
	defer u.admitMu.Unlock()

	var remaining int
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.clock.Now()
		dayStart, _ := u.quota.DayBounds(now)
		if err := r.Quota().LockDay(ctx, dayStart); err != nil {
			return storageFailure(err, "lock day")
		}

		total, err := u.quota.committedOn(ctx, r.Quota(), now)
		if err != nil {
			return err
		}
		if total+order.Quantity > u.quota.Limit() {
			// 書き込みはしない
			return NewQuotaExceededError(u.quota.Remaining(total))
		}

		order.CreatedAt = now.UTC()
		order.UpdatedAt = order.CreatedAt
		if err := r.Orders().Create(ctx, &order); err != nil {
			return storageFailure(err, "create order")
		}
		remaining = u.quota.Remaining(total + order.Quantity)
		return nil
	})
	if err != nil {
		return model.Order{}, 0, storageFailure(err, "admit order")
	}
	return order, remaining, nil
}

// Lookup は注文コードと電話番号が両方一致したときだけ注文を返す。
func (u *OrderUsecase) Lookup(ctx context.Context, in LookupOrderInput) (OrderWithPickupOutput, error) {
	phone := strings.TrimSpace(in.Phone)
	code := strings.TrimSpace(in.Code)
	if phone == "" || code == "" {
		return OrderWithPickupOutput{}, NewValidationError("missing lookup fields")
	}

	id, err := u.codec.Parse(code)
	if err != nil {
		return OrderWithPickupOutput{}, NewValidationError("invalid order code")
	}

	o, err := u.orders.FindByIDAndPhone(ctx, id, phone)
	if errors.Is(err, repo.ErrNotFound) {
		//電話番号違いも「存在しない扱い」にする
		return OrderWithPickupOutput{}, NewNotFoundError()
	}
	if err != nil {
		return OrderWithPickupOutput{}, storageFailure(err, "lookup order")
	}

	return OrderWithPickupOutput{
		OrderOutput: u.toOrderOutput(o),
		PickupInfo:  u.pickupOutput(nil, nil),
	}, nil
}

// PickupInfo は受け取り案内と現在の残数
func (u *OrderUsecase) PickupInfo(ctx context.Context) (PickupInfoOutput, error) {
	total, err := u.quota.CommittedToday(ctx)
	if err != nil {
		return PickupInfoOutput{}, err
	}
	limit := u.quota.Limit()
	remaining := u.quota.Remaining(total)
	return u.pickupOutput(&limit, &remaining), nil
}

func (u *OrderUsecase) pickupOutput(limit, remaining *int) PickupInfoOutput {
	return PickupInfoOutput{
		Location:  u.pickup.Location,
		Time:      u.pickup.Time,
		Note:      u.pickup.Note,
		Limit:     limit,
		Remaining: remaining,
	}
}

func (u *OrderUsecase) toOrderOutput(o model.Order) OrderOutput {
	return toOrderOutput(u.codec, o)
}

func toOrderOutput(codec model.OrderCodec, o model.Order) OrderOutput {
	return OrderOutput{
		ID:            o.ID,
		Code:          codec.Format(o.ID),
		Name:          o.Name,
		Phone:         o.Phone,
		Quantity:      o.Quantity,
		PickupSlot:    o.PickupSlot,
		DepositorName: o.DepositorName,
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt.UTC(),
	}
}
