package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

type OrderStatus string

const (
	// 入金確認待ち（初期状態）
	OrderStatusAwaitingPayment OrderStatus = "pending_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusPickedUp        OrderStatus = "picked_up"
)

// 許可されている遷移（運用ミスの訂正用に戻りも含む）
var orderStatusEdges = map[OrderStatus][]OrderStatus{
	OrderStatusAwaitingPayment: {OrderStatusPaid},
	OrderStatusPaid:            {OrderStatusPickedUp, OrderStatusAwaitingPayment},
	OrderStatusPickedUp:        {OrderStatusPaid},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatusEdges[s]
	return ok
}

// CanTransitionTo reports whether next is a neighbour of s in the status graph.
// Staying in the same state is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return s.Valid()
	}
	for _, n := range orderStatusEdges[s] {
		if n == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID            int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string      `gorm:"type:varchar(100)" json:"name"`
	Phone         string      `gorm:"type:varchar(40);not null;index" json:"phone"`
	Quantity      int         `gorm:"not null" json:"quantity"`
	PickupSlot    string      `gorm:"type:varchar(100);not null" json:"pickup_slot"`
	DepositorName string      `gorm:"type:varchar(100);not null" json:"depositor_name"`
	Status        OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt     time.Time   `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"not null" json:"updated_at"`
}

var ErrInvalidQuantity = errors.New("invalid quantity")

// ParseQuantity は数値または数値文字列を正の整数として解釈する。
// "3.0" は3として受け付け、"3.5" や 0 以下は拒否する。
func ParseQuantity(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrInvalidQuantity
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidQuantity
	}
	if f != math.Trunc(f) || f <= 0 || f > math.MaxInt32 {
		return 0, ErrInvalidQuantity
	}
	return int(f), nil
}

// OrderCodec は注文IDと表示用コード（DUBAI-0012）を相互変換する
type OrderCodec struct {
	prefix  string
	pattern *regexp.Regexp
}

func NewOrderCodec(prefix string) OrderCodec {
	return OrderCodec{
		prefix:  prefix,
		pattern: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(prefix) + `-(\d+)`),
	}
}

func (c OrderCodec) Prefix() string { return c.prefix }

func (c OrderCodec) Format(id int64) string {
	return fmt.Sprintf("%s-%04d", c.prefix, id)
}

var ErrInvalidOrderCode = errors.New("invalid order code")

// Parse は "PREFIX-<数字>" か数字のみを受け付ける
func (c OrderCodec) Parse(code string) (int64, error) {
	s := strings.TrimSpace(code)
	if m := c.pattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidOrderCode
	}
	return id, nil
}
