package ordering

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// OrderType is the delivery mode of the active order context. Lookups of
// businesses and orders are filtered by it.
type OrderType int

const (
	Delivery  OrderType = 1
	Pickup    OrderType = 2
	EatIn     OrderType = 3
	Curbside  OrderType = 4
	DriveThru OrderType = 5
)

var orderTypeNames = map[OrderType]string{
	Delivery:  "delivery",
	Pickup:    "pickup",
	EatIn:     "eat_in",
	Curbside:  "curbside",
	DriveThru: "drive_thru",
}

func (t OrderType) String() string {
	if name, ok := orderTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("order_type(%d)", int(t))
}

// ParseOrderType accepts a name ("pickup") or a number ("2").
func ParseOrderType(s string) (OrderType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range orderTypeNames {
		if s == name || s == fmt.Sprint(int(t)) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown order type %q", s)
}

// OrderTypeSource reports the current order type.
type OrderTypeSource interface {
	OrderType() OrderType
}

// OrderType lets a fixed value serve as its own source.
func (t OrderType) OrderType() OrderType { return t }

// OrderTypeSelector is a source the caller can switch at runtime.
type OrderTypeSelector struct {
	current atomic.Int64
}

// NewOrderTypeSelector starts at initial.
func NewOrderTypeSelector(initial OrderType) *OrderTypeSelector {
	s := &OrderTypeSelector{}
	s.current.Store(int64(initial))
	return s
}

// Set switches the order type.
func (s *OrderTypeSelector) Set(t OrderType) {
	s.current.Store(int64(t))
}

// OrderType returns the selected order type.
func (s *OrderTypeSelector) OrderType() OrderType {
	return OrderType(s.current.Load())
}
